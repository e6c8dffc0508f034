package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client-to-server message types
const (
	MessageTypeUtterance       MessageType = "utterance"
	MessageTypeSetMode         MessageType = "set_mode"
	MessageTypeEditResubmit    MessageType = "edit_resubmit"
	MessageTypeImageConfirm    MessageType = "image_confirm"
	MessageTypeImageRegenerate MessageType = "image_regenerate"
	MessageTypeImageCancel     MessageType = "image_cancel"
	MessageTypeMic             MessageType = "mic"
	MessageTypeStopSpeaking    MessageType = "stop_speaking"
	MessageTypeSessionCreate   MessageType = "session_create"
	MessageTypeSessionSelect   MessageType = "session_select"
	MessageTypeSessionDelete   MessageType = "session_delete"
)

// Server-to-client message types
const (
	MessageTypeSessionUpdate MessageType = "session_update"
	MessageTypeVoiceStatus   MessageType = "voice_status"
	MessageTypeBannerError   MessageType = "banner_error"
	MessageTypeSpeechAudio   MessageType = "speech_audio"
	MessageTypeAction        MessageType = "action"
)

// ClientMessage is the envelope for every JSON message a UI client sends
type ClientMessage struct {
	Type MessageType `json:"type"`

	// utterance / edit_resubmit
	Text        string                    `json:"text,omitempty"`
	Attachments []entities.FileAttachment `json:"attachments,omitempty"`

	// set_mode
	Mode entities.InteractionMode `json:"mode,omitempty"`

	// session / message addressing
	SessionID string `json:"session_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`

	// image_confirm
	Accept bool `json:"accept,omitempty"`

	// mic
	Enabled bool `json:"enabled,omitempty"`
}

// ParseClientMessage decodes and minimally validates one client message
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed client message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("client message missing type")
	}
	return &msg, nil
}

// ServerMessage is the envelope for every JSON message pushed to UI clients
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`

	// session_update
	Sessions []*entities.ChatSession `json:"sessions,omitempty"`
	ActiveID string                  `json:"active_id,omitempty"`

	// voice_status
	VoiceState entities.VoiceState `json:"voice_state,omitempty"`

	// banner_error
	Error string `json:"error,omitempty"`

	// speech_audio
	UtteranceID string `json:"utterance_id,omitempty"`
	AudioData   string `json:"audio_data,omitempty"` // base64 encoded

	// action
	Action *ActionPayload `json:"action,omitempty"`
}

// ActionPayload describes one external side effect the UI should perform
type ActionPayload struct {
	Kind     string                   `json:"kind"` // open_url | compose_email | download_note
	URL      string                   `json:"url,omitempty"`
	Email    *repositories.EmailDraft `json:"email,omitempty"`
	Filename string                   `json:"filename,omitempty"`
	Content  string                   `json:"content,omitempty"`
}

func newServerMessage(t MessageType) ServerMessage {
	return ServerMessage{Type: t, Timestamp: time.Now()}
}

func encodeServerMessage(msg ServerMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode server message: %w", err)
	}
	return data, nil
}
