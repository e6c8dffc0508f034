package repositories

import (
	"context"

	"github.com/satriahrh/kirana/domain/entities"
)

// Role defines the provider-side role vocabulary
type Role string

const (
	UserRole  Role = "user"
	ModelRole Role = "model"
)

// ChatMessage is one prior turn handed to the provider as history
type ChatMessage struct {
	Role Role
	Text string
}

// TurnPart is one piece of the new turn: either text or inline binary data
type TurnPart struct {
	Text     string
	MIMEType string
	Data     []byte
}

// ChatOptions configures a streamed chat completion
type ChatOptions struct {
	SearchEnabled     bool
	SystemInstruction string
}

// ChatDelta is one streamed increment. Text deltas arrive in order; Grounding
// is only populated on the final delta. A non-nil Err terminates the stream.
type ChatDelta struct {
	Text      string
	Grounding []entities.GroundingSource
	Err       error
}

// Schema describes the shape requested from structured JSON generation
type Schema struct {
	Type       string
	Properties map[string]Schema
	Required   []string
	Desc       string
}

// GeneratedImage is a single provider-produced image
type GeneratedImage struct {
	MIMEType   string
	Base64Data string
}

// Provider abstracts the generative AI backend. All methods may fail with a
// credential, validation, or provider error from the domain taxonomy.
type Provider interface {
	// StreamChat requests a streamed chat completion. The returned channel is
	// closed when the stream completes or fails; errors arrive as a final
	// delta with Err set.
	StreamChat(ctx context.Context, history []ChatMessage, parts []TurnPart, opts ChatOptions) (<-chan ChatDelta, error)
	// GenerateImage produces one image for the prompt
	GenerateImage(ctx context.Context, prompt string) (GeneratedImage, error)
	// GenerateJSON produces an object matching the schema, returned as raw JSON
	GenerateJSON(ctx context.Context, prompt string, schema Schema) ([]byte, error)
	// GeneratePlainText produces a single non-streamed text completion
	GeneratePlainText(ctx context.Context, prompt string, systemInstruction string) (string, error)
}
