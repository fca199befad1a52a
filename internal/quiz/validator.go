package quiz

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// failureSentinel is pipeline-internal vocabulary inherited from older
	// revisions that signaled failures inside the response body. The prompts
	// never ask the model to produce it, so its presence in a response means
	// the text cannot be trusted as a quiz.
	failureSentinel = "ERROR:"

	// minQuizLength guards against degenerate responses like "ok".
	minQuizLength = 10
)

// Validate checks raw model output against the minimal syntactic quiz
// contract. A nil return means the text is accepted; a non-nil error carries
// the rejection reason and marks the attempt as retryable.
func Validate(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.New("quiz text is empty")
	}
	if len(trimmed) <= minQuizLength {
		return fmt.Errorf("quiz text too short (%d chars)", len(trimmed))
	}
	if strings.Contains(text, failureSentinel) {
		return errors.New("quiz text contains the internal failure sentinel")
	}
	return nil
}
