package websocket

import (
	"encoding/json"
	"testing"

	"github.com/satriahrh/kirana/domain/entities"
)

func TestParseClientMessage(t *testing.T) {
	raw := []byte(`{"type":"utterance","text":"hello","attachments":[{"name":"a.png","mime_type":"image/png","base64_data":"aGk="}]}`)

	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.Type != MessageTypeUtterance {
		t.Errorf("Expected utterance type, got %s", msg.Type)
	}
	if msg.Text != "hello" {
		t.Errorf("Expected text hello, got %q", msg.Text)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Name != "a.png" {
		t.Errorf("Expected 1 attachment, got %v", msg.Attachments)
	}
}

func TestParseClientMessageRejectsMissingType(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"text":"hello"}`)); err == nil {
		t.Error("Expected missing type to be rejected")
	}
}

func TestParseClientMessageRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Error("Expected malformed JSON to be rejected")
	}
}

func TestServerMessageOmitsUnusedFields(t *testing.T) {
	msg := newServerMessage(MessageTypeVoiceStatus)
	msg.VoiceState = entities.VoiceStateListening

	data, err := encodeServerMessage(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Round trip failed: %v", err)
	}
	if decoded["voice_state"] != "listening" {
		t.Errorf("Expected voice_state listening, got %v", decoded["voice_state"])
	}
	if _, ok := decoded["sessions"]; ok {
		t.Error("Unused fields must be omitted from the wire format")
	}
	if _, ok := decoded["action"]; ok {
		t.Error("Unused fields must be omitted from the wire format")
	}
}
