package usecase

import (
	"testing"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain/entities"
)

func newTestStore() *SessionStore {
	return NewSessionStore(zap.NewNop())
}

func TestCreateSessionBecomesActive(t *testing.T) {
	store := newTestStore()

	first := store.CreateSession()
	second := store.CreateSession()

	if store.ActiveID() != second.ID {
		t.Errorf("Expected newest session active, got %s", store.ActiveID())
	}

	sessions, activeID := store.Snapshot()
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != second.ID || sessions[1].ID != first.ID {
		t.Error("Expected newest session first")
	}
	if activeID != second.ID {
		t.Errorf("Expected snapshot active id %s, got %s", second.ID, activeID)
	}
}

func TestActiveSessionCreatesWhenEmpty(t *testing.T) {
	store := newTestStore()

	session := store.ActiveSession()
	if session == nil {
		t.Fatal("Expected a session to be created")
	}
	if store.ActiveID() != session.ID {
		t.Error("Created session should be active")
	}

	again := store.ActiveSession()
	if again.ID != session.ID {
		t.Error("Second call should return the same session")
	}
}

func TestDeleteActiveSessionMovesPointer(t *testing.T) {
	store := newTestStore()
	first := store.CreateSession()
	second := store.CreateSession()

	store.DeleteSession(second.ID)

	if store.ActiveID() != first.ID {
		t.Errorf("Expected pointer to move to %s, got %s", first.ID, store.ActiveID())
	}

	store.DeleteSession(first.ID)
	if store.ActiveID() != "" {
		t.Errorf("Expected empty active id, got %s", store.ActiveID())
	}
}

func TestAppendMessageDerivesTitleOnce(t *testing.T) {
	store := newTestStore()
	session := store.CreateSession()

	store.AppendMessage(session.ID, entities.NewUserMessage("Plan a weekend trip", nil, entities.ModeNone))
	store.AppendMessage(session.ID, entities.NewUserMessage("Another message", nil, entities.ModeNone))

	sessions, _ := store.Snapshot()
	if sessions[0].Title != "Plan a weekend trip" {
		t.Errorf("Expected title from first user message, got %s", sessions[0].Title)
	}
}

func TestUpdateMessageMissing(t *testing.T) {
	store := newTestStore()
	session := store.CreateSession()

	if store.UpdateMessage(session.ID, "missing", func(m *entities.Message) {}) {
		t.Error("Expected update on a missing message to report false")
	}
}

func TestTruncateBefore(t *testing.T) {
	store := newTestStore()
	session := store.CreateSession()

	user := entities.NewUserMessage("hello", []entities.FileAttachment{{Name: "a.png"}}, entities.ModeNone)
	assistant := entities.NewAssistantMessage("hi", false)
	store.AppendMessage(session.ID, user)
	store.AppendMessage(session.ID, assistant)

	removed, ok := store.TruncateBefore(session.ID, user.ID)
	if !ok {
		t.Fatal("Expected truncation to find the message")
	}
	if removed.ID != user.ID {
		t.Errorf("Expected removed head %s, got %s", user.ID, removed.ID)
	}
	if len(removed.Attachments) != 1 {
		t.Error("Expected removed message to carry its attachments")
	}
	if msgs := store.Messages(session.ID); len(msgs) != 0 {
		t.Errorf("Expected empty session after truncation, got %d messages", len(msgs))
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	store := newTestStore()
	session := store.CreateSession()

	msg := entities.NewAssistantMessage("image", false)
	msg.ImageGen = &entities.ImageGenerationData{
		Status: entities.ImageStatusDone,
		Images: []entities.GeneratedImage{{URL: "data:one"}},
	}
	store.AppendMessage(session.ID, msg)

	snapshot, _ := store.Snapshot()
	snapshot[0].Messages[0].Text = "mutated"
	snapshot[0].Messages[0].ImageGen.Images[0].URL = "mutated"

	msgs := store.Messages(session.ID)
	if msgs[0].Text != "image" {
		t.Error("Snapshot mutation leaked into stored message text")
	}
	if msgs[0].ImageGen.Images[0].URL != "data:one" {
		t.Error("Snapshot mutation leaked into stored image data")
	}
}

func TestOnChangeFiresPerMutation(t *testing.T) {
	store := newTestStore()
	changes := 0
	store.SetOnChange(func() { changes++ })

	session := store.CreateSession()
	store.AppendMessage(session.ID, entities.NewUserMessage("hi", nil, entities.ModeNone))
	store.SetActive(session.ID)

	if changes != 3 {
		t.Errorf("Expected 3 change notifications, got %d", changes)
	}
}
