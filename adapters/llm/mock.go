package llm

import (
	"context"
	"sync"

	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
)

// MockProvider is a scriptable in-memory provider for tests and local
// development without API credentials.
type MockProvider struct {
	mu sync.Mutex

	// ChatChunks are streamed one per delta; ChatErr aborts the stream after
	// the configured chunks.
	ChatChunks []string
	ChatErr    error
	Grounding  []entities.GroundingSource
	// StreamErr fails StreamChat immediately, before any delta
	StreamErr error

	ImageResult repositories.GeneratedImage
	ImageErr    error

	JSONResult []byte
	JSONErr    error

	TextResult string
	TextErr    error

	// Recorded inputs for assertions
	ChatCalls  []repositories.ChatOptions
	ImageCalls []string
	JSONCalls  []string
	TextCalls  []string
}

var _ repositories.Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock with a canned one-chunk reply
func NewMockProvider() *MockProvider {
	return &MockProvider{
		ChatChunks:  []string{"Hello! This is a mock response."},
		ImageResult: repositories.GeneratedImage{MIMEType: "image/png", Base64Data: "bW9jaw=="},
		TextResult:  "a detailed mock prompt",
		JSONResult:  []byte(`{}`),
	}
}

func (m *MockProvider) StreamChat(_ context.Context, _ []repositories.ChatMessage, _ []repositories.TurnPart, opts repositories.ChatOptions) (<-chan repositories.ChatDelta, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, opts)
	chunks := append([]string(nil), m.ChatChunks...)
	chatErr := m.ChatErr
	streamErr := m.StreamErr
	grounding := m.Grounding
	m.mu.Unlock()

	if streamErr != nil {
		return nil, streamErr
	}

	out := make(chan repositories.ChatDelta)
	go func() {
		defer close(out)
		for _, chunk := range chunks {
			out <- repositories.ChatDelta{Text: chunk}
		}
		if chatErr != nil {
			out <- repositories.ChatDelta{Err: chatErr}
			return
		}
		out <- repositories.ChatDelta{Grounding: grounding}
	}()
	return out, nil
}

func (m *MockProvider) GenerateImage(_ context.Context, prompt string) (repositories.GeneratedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ImageCalls = append(m.ImageCalls, prompt)
	return m.ImageResult, m.ImageErr
}

func (m *MockProvider) GenerateJSON(_ context.Context, prompt string, _ repositories.Schema) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JSONCalls = append(m.JSONCalls, prompt)
	return m.JSONResult, m.JSONErr
}

func (m *MockProvider) GeneratePlainText(_ context.Context, prompt string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TextCalls = append(m.TextCalls, prompt)
	return m.TextResult, m.TextErr
}
