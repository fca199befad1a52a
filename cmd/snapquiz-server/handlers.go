package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cltxvz/snapQuiz/internal/gamemode"
	"github.com/cltxvz/snapQuiz/internal/quiz"
	"github.com/cltxvz/snapQuiz/internal/wikimedia"
	"github.com/rs/zerolog/log"
)

// quizRunner is the slice of the quiz pipeline the handlers need.
type quizRunner interface {
	Run(ctx context.Context, mode gamemode.Mode) (*quiz.Result, error)
	RunLegacy(ctx context.Context, difficulty string) (*quiz.Result, error)
}

// imageSource yields random image candidates for the quiz-less endpoint.
type imageSource interface {
	Fetch(ctx context.Context) (*wikimedia.Candidate, error)
}

type server struct {
	pipeline quizRunner
	source   imageSource
}

type quizRequest struct {
	Mode string `json:"mode"`
}

type quizResponse struct {
	ImageURLs []string `json:"image_urls"`
	Quiz      string   `json:"quiz"`
}

type imageResponse struct {
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}

// POST /get_quiz
func (s *server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = gamemode.Basic.String()
	}

	mode, err := gamemode.Parse(req.Mode)
	if err != nil {
		log.Warn().Str("mode", req.Mode).Msg("Rejected unknown game mode")
		httpError(w, http.StatusBadRequest, "invalid game mode")
		return
	}

	result, err := s.pipeline.Run(r.Context(), mode)
	if err != nil {
		log.Error().Err(err).Str("mode", mode.String()).Msg("Quiz generation failed")
		httpError(w, http.StatusInternalServerError, "AI quiz generation failed.")
		return
	}

	respondJSON(w, http.StatusOK, quizResponse{ImageURLs: result.ImageURLs, Quiz: result.Quiz})
}

// GET /get_quiz/{difficulty}, the legacy single-image variant.
func (s *server) handleLegacyQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	difficulty := strings.TrimPrefix(r.URL.Path, "/get_quiz/")
	if difficulty == "" || strings.Contains(difficulty, "/") {
		httpError(w, http.StatusNotFound, "not found")
		return
	}

	result, err := s.pipeline.RunLegacy(r.Context(), difficulty)
	if err != nil {
		log.Error().Err(err).Str("difficulty", difficulty).Msg("Legacy quiz generation failed")
		httpError(w, http.StatusInternalServerError, "AI quiz generation failed.")
		return
	}

	respondJSON(w, http.StatusOK, quizResponse{ImageURLs: result.ImageURLs, Quiz: result.Quiz})
}

// GET /get_image
func (s *server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	c, err := s.source.Fetch(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Image fetch failed")
		httpError(w, http.StatusInternalServerError, "Could not fetch image")
		return
	}

	respondJSON(w, http.StatusOK, imageResponse{ImageURL: c.URL, Description: c.Description()})
}

// GET /wake_up, a keep-alive probe used by the hosted frontend.
func (s *server) handleWakeUp(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Server is awake!"})
}
