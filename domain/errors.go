// Package domain holds the error taxonomy shared by all layers.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the assistant surfaces to a user.
var (
	// ErrCredentialMissing means no provider API key is configured at all
	ErrCredentialMissing = errors.New("credential missing")
	// ErrCredentialInvalid means the configured API key was rejected
	ErrCredentialInvalid = errors.New("credential invalid")
	// ErrProvider covers network and service failures from the AI provider
	ErrProvider = errors.New("provider error")
	// ErrValidation means structured extraction returned unusable fields
	ErrValidation = errors.New("validation error")
	// ErrUserCancelled marks a workflow the user aborted on purpose
	ErrUserCancelled = errors.New("cancelled by user")
	// ErrUnsupportedEnvironment means no speech engine is available
	ErrUnsupportedEnvironment = errors.New("speech engine unavailable")
)

// CredentialMissing wraps err (or creates a bare error) as a missing-credential failure
func CredentialMissing(detail string) error {
	return fmt.Errorf("%w: %s", ErrCredentialMissing, detail)
}

// ProviderFailure wraps a raw provider error into the taxonomy
func ProviderFailure(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

// UserMessage translates any error into the user-facing replacement text used
// for failed assistant turns. It distinguishes missing credential, invalid
// credential, and unexpected errors.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrCredentialMissing):
		return "The assistant is not configured yet: set the GEMINI_API_KEY environment variable and restart."
	case errors.Is(err, ErrCredentialInvalid):
		return "The configured API key was rejected. Please verify your GEMINI_API_KEY."
	case errors.Is(err, ErrValidation):
		return "I could not extract the details I needed from that request."
	default:
		return fmt.Sprintf("Sorry, something went wrong: %v", err)
	}
}
