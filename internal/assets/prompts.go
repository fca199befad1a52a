// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time. The templates encode the quiz contract sent to Gemini: four
// answer choices per question, correct answer first, and the strict
// "<question> - <c1> - <c2> - <c3> - <c4>" line format. They are transmitted
// verbatim; nothing in this package interprets them.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// BasicModePrompt generates a 5-question quiz over a single image.
//
//go:embed prompts/basic-mode.txt
var BasicModePrompt string

// TwoImagesPrompt generates a 5-question quiz over two images, with at least
// one cross-image comparison question.
//
//go:embed prompts/two-images.txt
var TwoImagesPrompt string

// FourImagesPrompt generates a 5-question quiz over four images, with at least
// two cross-image comparison questions.
//
//go:embed prompts/four-images.txt
var FourImagesPrompt string

// TimedModePrompt generates a quiz over a single image with questions ordered
// by increasing difficulty.
//
//go:embed prompts/timed-mode.txt
var TimedModePrompt string

// --- Dynamic prompt templates ---

//go:embed prompts/legacy-difficulty.txt
var legacyDifficultyTemplate string

// Pre-parsed template for efficiency. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var legacyTmpl = template.Must(template.New("legacy").Parse(legacyDifficultyTemplate))

// legacyPromptData holds the dynamic data injected into the legacy template.
type legacyPromptData struct {
	DifficultyInstruction string
}

// RenderLegacyDifficultyPrompt renders the 10-question legacy quiz prompt with
// the given difficulty instruction line.
func RenderLegacyDifficultyPrompt(difficultyInstruction string) string {
	var buf bytes.Buffer
	// Template execution errors are not expected with our simple templates,
	// but we handle them gracefully by returning whatever was rendered.
	_ = legacyTmpl.Execute(&buf, legacyPromptData{DifficultyInstruction: difficultyInstruction})
	return buf.String()
}
