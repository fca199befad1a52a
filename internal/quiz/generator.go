package quiz

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cltxvz/snapQuiz/internal/imageproc"
	"github.com/cltxvz/snapQuiz/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for quiz generation.
// Can be overridden via the --model flag.
const DefaultModel = "gemini-flash-latest"

// stagedMIMEType is the MIME type of every normalized image; the normalizer
// always re-encodes to JPEG.
const stagedMIMEType = "image/jpeg"

// Generator produces quiz text from staged images via the Gemini API.
type Generator struct {
	client *genai.Client
	model  string
}

// NewGenerator creates a Generator bound to a Gemini client and model.
func NewGenerator(client *genai.Client, model string) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model}
}

// Generate uploads the staged images to the Gemini Files API and requests a
// single text completion with the given prompt. Images are uploaded in slice
// order; the prompts reference "Image 1", "Image 2" positionally, so upload
// order is the only correlation mechanism. Any upload failure fails the whole
// call; no partial batch is ever submitted.
func (g *Generator) Generate(ctx context.Context, images []*imageproc.Image, prompt string) (string, error) {
	if len(images) == 0 {
		return "", fmt.Errorf("no images to generate a quiz from")
	}

	parts := []*genai.Part{{Text: prompt}}

	uploadStart := time.Now()
	for i, img := range images {
		file, err := g.uploadImage(ctx, img)
		if err != nil {
			return "", fmt.Errorf("failed to upload image %d of %d: %w", i+1, len(images), err)
		}
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{
				MIMEType: file.MIMEType,
				FileURI:  file.URI,
			},
		})
	}
	uploadElapsed := time.Since(uploadStart)

	log.Debug().
		Str("model", g.model).
		Int("image_count", len(images)).
		Int("prompt_length", len(prompt)).
		Dur("upload_duration", uploadElapsed).
		Msg("Starting Gemini API call for quiz generation")

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	generateStart := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	generateElapsed := time.Since(generateStart)

	m := metrics.New("SnapQuiz").
		Dimension("Operation", "generateQuiz").
		Metric("GeminiFilesApiUploadMs", float64(uploadElapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("GeminiApiLatencyMs", float64(generateElapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("QuizImageCount", float64(len(images)), metrics.UnitCount).
		Count("GeminiApiCalls")
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		log.Error().Err(err).Dur("duration", generateElapsed).Msg("Failed to generate quiz from Gemini")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("received empty response from Gemini API")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("received empty quiz text from Gemini API")
	}

	log.Debug().
		Int("response_length", len(text)).
		Dur("duration", generateElapsed).
		Msg("Gemini API response received for quiz generation")

	return text, nil
}

// uploadImage streams one staged image to the Gemini Files API.
func (g *Generator) uploadImage(ctx context.Context, img *imageproc.Image) (*genai.File, error) {
	f, err := os.Open(img.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open staged image: %w", err)
	}
	defer f.Close()

	file, err := g.client.Files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType: stagedMIMEType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	log.Debug().
		Str("name", file.Name).
		Str("uri", file.URI).
		Str("source_url", img.SourceURL).
		Msg("Image uploaded to Files API")

	return file, nil
}
