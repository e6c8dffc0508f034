package llm

import (
	"context"

	"github.com/satriahrh/kirana/domain"
	"github.com/satriahrh/kirana/domain/repositories"
)

// UnconfiguredProvider stands in when no API key is configured. Every call
// fails with the missing-credential error, which each turn translates into a
// user-facing configuration instruction instead of crashing at startup.
type UnconfiguredProvider struct{}

var _ repositories.Provider = (*UnconfiguredProvider)(nil)

// NewUnconfiguredProvider creates the credential-missing stand-in
func NewUnconfiguredProvider() *UnconfiguredProvider {
	return &UnconfiguredProvider{}
}

func (u *UnconfiguredProvider) StreamChat(context.Context, []repositories.ChatMessage, []repositories.TurnPart, repositories.ChatOptions) (<-chan repositories.ChatDelta, error) {
	return nil, domain.CredentialMissing("GEMINI_API_KEY environment variable is not set")
}

func (u *UnconfiguredProvider) GenerateImage(context.Context, string) (repositories.GeneratedImage, error) {
	return repositories.GeneratedImage{}, domain.CredentialMissing("GEMINI_API_KEY environment variable is not set")
}

func (u *UnconfiguredProvider) GenerateJSON(context.Context, string, repositories.Schema) ([]byte, error) {
	return nil, domain.CredentialMissing("GEMINI_API_KEY environment variable is not set")
}

func (u *UnconfiguredProvider) GeneratePlainText(context.Context, string, string) (string, error) {
	return "", domain.CredentialMissing("GEMINI_API_KEY environment variable is not set")
}
