// Package quiz drives the image-to-quiz pipeline: acquire candidates,
// normalize them, generate quiz text with Gemini, validate the result, and
// retry the whole attempt on any transient failure.
package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/cltxvz/snapQuiz/internal/gamemode"
	"github.com/cltxvz/snapQuiz/internal/imageproc"
	"github.com/cltxvz/snapQuiz/internal/metrics"
	"github.com/cltxvz/snapQuiz/internal/wikimedia"
	"github.com/rs/zerolog/log"
)

// maxAttempts bounds how many full fetch-normalize-generate-validate passes
// one request may consume.
const maxAttempts = 5

// ErrExhausted is returned when every attempt failed transiently. No single
// underlying cause is "the" reason after several independent attempts, so the
// individual failures are logged but not surfaced.
var ErrExhausted = errors.New("quiz generation failed after all attempts")

// ImageSource yields random image candidates.
type ImageSource interface {
	Fetch(ctx context.Context) (*wikimedia.Candidate, error)
}

// ImageNormalizer stages a remote image for AI ingestion.
type ImageNormalizer interface {
	Normalize(ctx context.Context, rawURL string) (*imageproc.Image, error)
}

// QuizGenerator produces quiz text from a staged image batch.
type QuizGenerator interface {
	Generate(ctx context.Context, images []*imageproc.Image, prompt string) (string, error)
}

// Result is a successfully generated quiz with the source image URLs, in the
// order the images were presented to the model.
type Result struct {
	ImageURLs []string
	Quiz      string
}

// Pipeline orchestrates the end-to-end quiz flow.
type Pipeline struct {
	source     ImageSource
	normalizer ImageNormalizer
	generator  QuizGenerator

	maxAttempts int
}

// NewPipeline wires a Pipeline from its three collaborators.
func NewPipeline(source ImageSource, normalizer ImageNormalizer, generator QuizGenerator) *Pipeline {
	return &Pipeline{
		source:      source,
		normalizer:  normalizer,
		generator:   generator,
		maxAttempts: maxAttempts,
	}
}

// Run generates a quiz for the given game mode. Invalid modes fail
// immediately without consuming any attempt; every transient failure inside
// an attempt abandons that attempt wholesale and the next one starts from
// scratch with fresh images.
func (p *Pipeline) Run(ctx context.Context, mode gamemode.Mode) (*Result, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %v", gamemode.ErrInvalidMode, mode)
	}
	return p.run(ctx, mode.String(), mode.ImageCount(), mode.Prompt())
}

// RunLegacy generates a quiz with the legacy single-image, difficulty-scaled
// prompt ("easy", "medium", "hard"; unknown levels fall back to medium).
func (p *Pipeline) RunLegacy(ctx context.Context, difficulty string) (*Result, error) {
	return p.run(ctx, "legacy/"+difficulty, 1, gamemode.DifficultyPrompt(difficulty))
}

func (p *Pipeline) run(ctx context.Context, label string, imageCount int, prompt string) (*Result, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		result, err := p.attempt(ctx, imageCount, prompt)
		if err == nil {
			log.Info().
				Str("mode", label).
				Int("attempt", attempt).
				Int("image_count", len(result.ImageURLs)).
				Int("quiz_length", len(result.Quiz)).
				Msg("Quiz generated")

			metrics.New("SnapQuiz").
				Dimension("Mode", label).
				Metric("QuizPipelineAttempts", float64(attempt), metrics.UnitCount).
				Count("QuizPipelineSuccess").
				Flush()
			return result, nil
		}

		log.Warn().
			Err(err).
			Str("mode", label).
			Int("attempt", attempt).
			Int("max_attempts", p.maxAttempts).
			Msg("Quiz attempt failed")
	}

	metrics.New("SnapQuiz").
		Dimension("Mode", label).
		Count("QuizPipelineExhausted").
		Flush()
	return nil, ErrExhausted
}

// attempt performs one full pass. Either every stage succeeds and the result
// is returned, or the attempt is abandoned: partially fetched or normalized
// image sets are never fed forward, and all staged images of this attempt are
// released before returning, success or failure.
func (p *Pipeline) attempt(ctx context.Context, imageCount int, prompt string) (_ *Result, err error) {
	candidates := make([]*wikimedia.Candidate, 0, imageCount)
	for i := 0; i < imageCount; i++ {
		c, fetchErr := p.source.Fetch(ctx)
		if fetchErr != nil {
			return nil, fmt.Errorf("failed to fetch image %d of %d: %w", i+1, imageCount, fetchErr)
		}
		candidates = append(candidates, c)
	}

	images := make([]*imageproc.Image, 0, imageCount)
	defer func() {
		for _, img := range images {
			if relErr := img.Release(); relErr != nil {
				log.Warn().Err(relErr).Str("path", img.Path).Msg("Failed to release staged image")
			}
		}
	}()

	for _, c := range candidates {
		img, normErr := p.normalizer.Normalize(ctx, c.URL)
		if normErr != nil {
			return nil, fmt.Errorf("failed to normalize %s: %w", c.URL, normErr)
		}
		images = append(images, img)
	}

	text, genErr := p.generator.Generate(ctx, images, prompt)
	if genErr != nil {
		return nil, fmt.Errorf("quiz generation failed: %w", genErr)
	}

	if valErr := Validate(text); valErr != nil {
		return nil, fmt.Errorf("quiz rejected: %w", valErr)
	}

	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.URL
	}
	return &Result{ImageURLs: urls, Quiz: text}, nil
}
