package entities

import (
	"strings"
	"testing"
)

func TestNewChatSession(t *testing.T) {
	session := NewChatSession()

	if session.ID == "" {
		t.Error("Expected session to have an ID")
	}

	if session.Title != "New Chat" {
		t.Errorf("Expected default title New Chat, got %s", session.Title)
	}

	if !session.IsUntitled() {
		t.Error("Fresh session should report untitled")
	}

	if len(session.Messages) != 0 {
		t.Errorf("Expected empty messages, got %d messages", len(session.Messages))
	}
}

func TestDeriveTitleFromShortText(t *testing.T) {
	session := NewChatSession()
	session.DeriveTitle("Tell me about whales", nil)

	if session.Title != "Tell me about whales" {
		t.Errorf("Expected title to match text, got %s", session.Title)
	}

	if session.IsUntitled() {
		t.Error("Session should no longer report untitled")
	}
}

func TestDeriveTitleTruncatesLongText(t *testing.T) {
	session := NewChatSession()
	long := strings.Repeat("a", 100)
	session.DeriveTitle(long, nil)

	expected := strings.Repeat("a", 40) + "..."
	if session.Title != expected {
		t.Errorf("Expected truncated title %s, got %s", expected, session.Title)
	}
}

func TestDeriveTitleCountsRunes(t *testing.T) {
	session := NewChatSession()
	long := strings.Repeat("é", 50)
	session.DeriveTitle(long, nil)

	expected := strings.Repeat("é", 40) + "..."
	if session.Title != expected {
		t.Errorf("Expected rune-aware truncation, got %s", session.Title)
	}
}

func TestDeriveTitleFromAttachment(t *testing.T) {
	session := NewChatSession()
	session.DeriveTitle("   ", []FileAttachment{{Name: "report.pdf"}})

	if session.Title != "report.pdf" {
		t.Errorf("Expected title from attachment name, got %s", session.Title)
	}
}

func TestDeriveTitleKeepsDefaultWithoutInput(t *testing.T) {
	session := NewChatSession()
	session.DeriveTitle("", nil)

	if !session.IsUntitled() {
		t.Errorf("Expected default title to remain, got %s", session.Title)
	}
}

func TestMessageIndex(t *testing.T) {
	session := NewChatSession()
	first := NewUserMessage("hello", nil, ModeNone)
	second := NewAssistantMessage("hi there", false)
	session.Messages = append(session.Messages, first, second)

	if i := session.MessageIndex(second.ID); i != 1 {
		t.Errorf("Expected index 1, got %d", i)
	}

	if i := session.MessageIndex("missing"); i != -1 {
		t.Errorf("Expected -1 for a missing message, got %d", i)
	}
}

func TestUtteranceIsEmpty(t *testing.T) {
	if !(Utterance{}).IsEmpty() {
		t.Error("Zero utterance should be empty")
	}

	if (Utterance{Text: "hi"}).IsEmpty() {
		t.Error("Utterance with text should not be empty")
	}

	if (Utterance{Attachments: []FileAttachment{{Name: "a.png"}}}).IsEmpty() {
		t.Error("Utterance with attachments should not be empty")
	}
}
