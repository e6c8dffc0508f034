package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ImageGenerationStatus represents where an image workflow is within its lifecycle
type ImageGenerationStatus string

const (
	ImageStatusConfirmingPrompt ImageGenerationStatus = "confirming_prompt"
	ImageStatusGenerating       ImageGenerationStatus = "generating"
	ImageStatusDone             ImageGenerationStatus = "done"
	ImageStatusError            ImageGenerationStatus = "error"
)

// GeneratedImage is one produced image together with the prompt that made it
type GeneratedImage struct {
	URL    string `json:"url" bson:"url"`
	Prompt string `json:"prompt" bson:"prompt"`
}

// ImageGenerationData tracks the confirm/generate/regenerate workflow attached
// to a single assistant message. Images is an append-only history; Prompt is
// mutable only while the status is confirming_prompt.
type ImageGenerationData struct {
	Status         ImageGenerationStatus `json:"status" bson:"status"`
	OriginalPrompt string                `json:"original_prompt" bson:"original_prompt"`
	Prompt         string                `json:"prompt" bson:"prompt"`
	Images         []GeneratedImage      `json:"images" bson:"images"`
	Error          string                `json:"error,omitempty" bson:"error,omitempty"`
}

// GroundingSource is one citation attached to a search-augmented response
type GroundingSource struct {
	URI   string `json:"uri" bson:"uri"`
	Title string `json:"title" bson:"title"`
}

// Message is a single entry in a chat session. IsStreaming is true while text
// is still being appended incrementally and flips to false exactly once.
type Message struct {
	ID          string               `json:"id" bson:"id"`
	Role        MessageRole          `json:"role" bson:"role"`
	Text        string               `json:"text" bson:"text"`
	IsStreaming bool                 `json:"is_streaming" bson:"is_streaming"`
	Mode        InteractionMode      `json:"mode,omitempty" bson:"mode,omitempty"`
	Attachments []FileAttachment     `json:"attachments,omitempty" bson:"attachments,omitempty"`
	ImageGen    *ImageGenerationData `json:"image_gen,omitempty" bson:"image_gen,omitempty"`
	Grounding   []GroundingSource    `json:"grounding,omitempty" bson:"grounding,omitempty"`
	CreatedAt   time.Time            `json:"created_at" bson:"created_at"`
}

// ChatSession represents one conversation, messages ordered by insertion
type ChatSession struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Messages  []Message `json:"messages" bson:"messages"`
}

const defaultSessionTitle = "New Chat"

// titleLimit caps the derived session title length
const titleLimit = 40

// NewChatSession creates an empty session with the default title
func NewChatSession() *ChatSession {
	return &ChatSession{
		ID:        uuid.NewString(),
		Title:     defaultSessionTitle,
		CreatedAt: time.Now(),
		Messages:  make([]Message, 0),
	}
}

// NewUserMessage builds a user message for an utterance
func NewUserMessage(text string, attachments []FileAttachment, mode InteractionMode) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        MessageRoleUser,
		Text:        text,
		Mode:        mode,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
}

// NewAssistantMessage builds an assistant message. Streaming messages start
// with empty text that grows as chunks arrive.
func NewAssistantMessage(text string, streaming bool) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        MessageRoleAssistant,
		Text:        text,
		IsStreaming: streaming,
		CreatedAt:   time.Now(),
	}
}

// IsUntitled reports whether the session still carries the default title
func (s *ChatSession) IsUntitled() bool {
	return s.Title == defaultSessionTitle
}

// DeriveTitle sets the session title from the first real turn: the first ~40
// characters of the text, ellipsized if truncated, or the first attachment's
// name when the turn has no text.
func (s *ChatSession) DeriveTitle(text string, attachments []FileAttachment) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		if len(attachments) > 0 {
			s.Title = attachments[0].Name
		}
		return
	}

	runes := []rune(trimmed)
	if len(runes) <= titleLimit {
		s.Title = trimmed
		return
	}
	s.Title = string(runes[:titleLimit]) + "..."
}

// MessageIndex returns the index of the message with the given id, or -1
func (s *ChatSession) MessageIndex(messageID string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}
