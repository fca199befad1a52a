// Package gamemode defines the closed set of quiz game modes and maps each
// mode to its prompt template and expected image count.
package gamemode

import (
	"errors"
	"fmt"

	"github.com/cltxvz/snapQuiz/internal/assets"
)

// ErrInvalidMode is returned when a request names a game mode outside the
// supported set. It is fatal to the request and must never be retried.
var ErrInvalidMode = errors.New("invalid game mode")

// Mode is one of the supported quiz game modes.
type Mode int

const (
	// Basic generates a quiz from a single image.
	Basic Mode = iota
	// TwoImages generates a quiz combining two images.
	TwoImages
	// FourImages generates a quiz combining four images.
	FourImages
	// Timed generates a single-image quiz with increasing difficulty.
	Timed
)

// modeNames are the wire names used by the frontend mode selector.
var modeNames = map[Mode]string{
	Basic:      "Basic Mode",
	TwoImages:  "2-Images",
	FourImages: "4-Images",
	Timed:      "Timed Mode",
}

// Parse maps a wire mode name to its Mode. Unknown names return ErrInvalidMode.
func Parse(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ImageCount returns the number of images this mode's prompt references.
// The generator must be given exactly this many images, in order.
func (m Mode) ImageCount() int {
	switch m {
	case TwoImages:
		return 2
	case FourImages:
		return 4
	default:
		return 1
	}
}

// Prompt returns the embedded prompt template for this mode. The template is
// sent to Gemini verbatim.
func (m Mode) Prompt() string {
	switch m {
	case TwoImages:
		return assets.TwoImagesPrompt
	case FourImages:
		return assets.FourImagesPrompt
	case Timed:
		return assets.TimedModePrompt
	default:
		return assets.BasicModePrompt
	}
}

// difficultyInstructions are the per-level lines injected into the legacy
// 10-question prompt. Unknown levels fall back to medium.
var difficultyInstructions = map[string]string{
	"easy":   "Make the questions simple and focus on basic details.",
	"medium": "Make the questions moderately difficult, including object details and colors.",
	"hard":   "Make the questions very detailed and challenging, focusing on obscure details.",
}

// DifficultyPrompt renders the legacy single-image quiz prompt for the given
// difficulty level ("easy", "medium", "hard").
func DifficultyPrompt(level string) string {
	instruction, ok := difficultyInstructions[level]
	if !ok {
		instruction = difficultyInstructions["medium"]
	}
	return assets.RenderLegacyDifficultyPrompt(instruction)
}
