// Package auth resolves and validates the Gemini API credentials.
package auth

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. GOOGLE_API_KEY environment variable (legacy name)
func GetAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from GEMINI_API_KEY")
		return key, nil
	}

	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from GOOGLE_API_KEY")
		return key, nil
	}

	return "", fmt.Errorf("API key not found. Set GEMINI_API_KEY (or GOOGLE_API_KEY) in the environment or a .env file")
}
