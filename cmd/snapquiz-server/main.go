package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cltxvz/snapQuiz/internal/auth"
	"github.com/cltxvz/snapQuiz/internal/imageproc"
	"github.com/cltxvz/snapQuiz/internal/logging"
	"github.com/cltxvz/snapQuiz/internal/quiz"
	"github.com/cltxvz/snapQuiz/internal/wikimedia"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

// CLI flags
var (
	portFlag  int
	modelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "snapquiz-server",
	Short: "API server for the SnapQuiz memory game",
	Long: `SnapQuiz Server fetches random photographs from Wikimedia Commons and asks
Gemini to generate multiple-choice memory quizzes about them. It serves the
JSON API consumed by the SnapQuiz single-page frontend.

Examples:
  snapquiz-server
  snapquiz-server --port 9090
  snapquiz-server --model gemini-2.5-flash`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", quiz.DefaultModel, "Gemini model to use")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	// Optional .env file for local development; environment wins if both set.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment from .env")
	}

	logging.Init()

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get API key")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	if err := auth.ValidateAPIKey(ctx, client, modelFlag); err != nil {
		log.Fatal().Err(err).Msg("Invalid API key")
	}

	httpClient := &http.Client{}
	source := wikimedia.NewSource(httpClient)
	srv := &server{
		pipeline: quiz.NewPipeline(source, imageproc.NewNormalizer(httpClient), quiz.NewGenerator(client, modelFlag)),
		source:   source,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/get_quiz", srv.handleGetQuiz)
	mux.HandleFunc("/get_quiz/", srv.handleLegacyQuiz)
	mux.HandleFunc("/get_image", srv.handleGetImage)
	mux.HandleFunc("/wake_up", srv.handleWakeUp)

	handler := withLogging(withCORS(mux))

	addr := fmt.Sprintf(":%d", portFlag)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", portFlag).Str("model", modelFlag).Msg("Starting SnapQuiz server")

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// withLogging logs every API request with its duration.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("API request")
	})
}

// withCORS allows cross-origin requests from the separately hosted frontend.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(os.Getenv("SNAPQUIZ_ALLOWED_ORIGIN"))
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
