package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/kirana/domain"
	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
)

const (
	defaultChatModel  = "gemini-2.0-flash"
	defaultImageModel = "imagen-3.0-generate-002"
)

// GeminiProvider implements the Provider interface using Google's Gemini API
type GeminiProvider struct {
	client     *genai.Client
	logger     *zap.Logger
	chatModel  string
	imageModel string
}

// Ensure GeminiProvider implements the Provider interface
var _ repositories.Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance
func NewGeminiProvider(logger *zap.Logger) (*GeminiProvider, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, domain.CredentialMissing("GEMINI_API_KEY environment variable is not set")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	chatModel := os.Getenv("GEMINI_CHAT_MODEL")
	if chatModel == "" {
		chatModel = defaultChatModel
		logger.Info("Using default chat model", zap.String("model", chatModel))
	}
	imageModel := os.Getenv("GEMINI_IMAGE_MODEL")
	if imageModel == "" {
		imageModel = defaultImageModel
		logger.Info("Using default image model", zap.String("model", imageModel))
	}

	return &GeminiProvider{
		client:     client,
		logger:     logger,
		chatModel:  chatModel,
		imageModel: imageModel,
	}, nil
}

// StreamChat requests a streamed chat completion, forwarding text deltas in
// arrival order and grounding metadata from the final chunk.
func (g *GeminiProvider) StreamChat(ctx context.Context, history []repositories.ChatMessage, parts []repositories.TurnPart, opts repositories.ChatOptions) (<-chan repositories.ChatDelta, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: turn has no content", domain.ErrValidation)
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		var role genai.Role = genai.RoleUser
		if msg.Role == repositories.ModelRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}

	turnParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" {
			turnParts = append(turnParts, genai.NewPartFromText(p.Text))
		} else {
			turnParts = append(turnParts, genai.NewPartFromBytes(p.Data, p.MIMEType))
		}
	}
	contents = append(contents, genai.NewContentFromParts(turnParts, genai.RoleUser))

	config := &genai.GenerateContentConfig{}
	if opts.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemInstruction, genai.RoleUser)
	}
	if opts.SearchEnabled {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	out := make(chan repositories.ChatDelta)
	go func() {
		defer close(out)

		var grounding []entities.GroundingSource
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.chatModel, contents, config) {
			if err != nil {
				out <- repositories.ChatDelta{Err: classifyError(err)}
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			candidate := resp.Candidates[0]

			var text string
			for _, part := range candidate.Content.Parts {
				text += part.Text
			}
			if gm := candidate.GroundingMetadata; gm != nil {
				grounding = convertGrounding(gm)
			}
			if text != "" {
				out <- repositories.ChatDelta{Text: text}
			}
		}
		out <- repositories.ChatDelta{Grounding: grounding}
	}()

	return out, nil
}

// GenerateImage produces one image for the prompt, base64 encoded
func (g *GeminiProvider) GenerateImage(ctx context.Context, prompt string) (repositories.GeneratedImage, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return repositories.GeneratedImage{}, classifyError(err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return repositories.GeneratedImage{}, fmt.Errorf("%w: no image returned", domain.ErrProvider)
	}

	img := resp.GeneratedImages[0].Image
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return repositories.GeneratedImage{
		MIMEType:   mimeType,
		Base64Data: base64.StdEncoding.EncodeToString(img.ImageBytes),
	}, nil
}

// GenerateJSON produces an object matching the schema, returned as raw JSON
func (g *GeminiProvider) GenerateJSON(ctx context.Context, prompt string, schema repositories.Schema) ([]byte, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   convertSchema(schema),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
	if err != nil {
		return nil, classifyError(err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: empty structured response", domain.ErrValidation)
	}
	return []byte(text), nil
}

// GeneratePlainText produces a single non-streamed text completion
func (g *GeminiProvider) GeneratePlainText(ctx context.Context, prompt string, systemInstruction string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
	if err != nil {
		return "", classifyError(err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrProvider)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}

func convertGrounding(gm *genai.GroundingMetadata) []entities.GroundingSource {
	var sources []entities.GroundingSource
	for _, chunk := range gm.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, entities.GroundingSource{
			URI:   chunk.Web.URI,
			Title: chunk.Web.Title,
		})
	}
	return sources
}

func convertSchema(s repositories.Schema) *genai.Schema {
	out := &genai.Schema{
		Description: s.Desc,
		Required:    s.Required,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	return out
}

// classifyError maps provider failures onto the domain taxonomy
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return fmt.Errorf("%w: %s", domain.ErrCredentialInvalid, apiErr.Message)
		case apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
			return fmt.Errorf("%w: %s", domain.ErrCredentialInvalid, apiErr.Message)
		}
	}
	return domain.ProviderFailure(err)
}
