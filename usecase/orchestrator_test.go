package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/adapters/llm"
	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
)

// mockActions records every side effect the orchestrator requests
type mockActions struct {
	mu          sync.Mutex
	OpenedURLs  []string
	Emails      []repositories.EmailDraft
	NoteFiles   []string
	NoteContent []string
}

func (a *mockActions) OpenURL(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.OpenedURLs = append(a.OpenedURLs, url)
}

func (a *mockActions) ComposeEmail(draft repositories.EmailDraft) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Emails = append(a.Emails, draft)
}

func (a *mockActions) OfferNoteDownload(filename, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.NoteFiles = append(a.NoteFiles, filename)
	a.NoteContent = append(a.NoteContent, content)
}

// mockVoice records speech channel interactions
type mockVoice struct {
	mu          sync.Mutex
	Thinking    []bool
	SpokenIDs   []string
	SpokenTexts []string
	StopCalls   int
}

func (v *mockVoice) SetThinking(thinking bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Thinking = append(v.Thinking, thinking)
}

func (v *mockVoice) Speak(messageID, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.SpokenIDs = append(v.SpokenIDs, messageID)
	v.SpokenTexts = append(v.SpokenTexts, text)
}

func (v *mockVoice) StopSpeaking() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.StopCalls++
}

type harness struct {
	store        *SessionStore
	provider     *llm.MockProvider
	actions      *mockActions
	images       *ImageWorkflow
	orchestrator *Orchestrator
}

func newHarness() *harness {
	logger := zap.NewNop()
	store := NewSessionStore(logger)
	provider := llm.NewMockProvider()
	actions := &mockActions{}
	images := NewImageWorkflow(store, provider, logger)
	orchestrator := NewOrchestrator(store, provider, actions, images, logger)
	return &harness{
		store:        store,
		provider:     provider,
		actions:      actions,
		images:       images,
		orchestrator: orchestrator,
	}
}

// activeMessages returns the active session's messages, failing when none exists
func (h *harness) activeMessages(t *testing.T) []entities.Message {
	t.Helper()
	id := h.store.ActiveID()
	if id == "" {
		t.Fatal("Expected an active session")
	}
	return h.store.Messages(id)
}

func TestEmptyUtteranceIgnored(t *testing.T) {
	h := newHarness()

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{})

	sessions, _ := h.store.Snapshot()
	if len(sessions) != 0 {
		t.Errorf("Expected no session for an empty utterance, got %d", len(sessions))
	}
}

func TestChatTurnStreamsIntoAssistantMessage(t *testing.T) {
	h := newHarness()
	h.provider.ChatChunks = []string{"Hel", "lo ", "there"}

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "greet me please"})

	msgs := h.activeMessages(t)
	if len(msgs) != 2 {
		t.Fatalf("Expected user and assistant messages, got %d", len(msgs))
	}

	assistant := msgs[1]
	if assistant.Role != entities.MessageRoleAssistant {
		t.Errorf("Expected assistant role, got %s", assistant.Role)
	}
	if assistant.Text != "Hello there" {
		t.Errorf("Expected assembled text, got %q", assistant.Text)
	}
	if assistant.IsStreaming {
		t.Error("Expected streaming flag cleared after the final chunk")
	}
}

func TestFirstUserMessageTitlesSession(t *testing.T) {
	h := newHarness()

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "what is a lighthouse"})

	sessions, _ := h.store.Snapshot()
	if sessions[0].Title != "what is a lighthouse" {
		t.Errorf("Expected title from the first turn, got %s", sessions[0].Title)
	}
}

func TestSearchStaysOffByDefault(t *testing.T) {
	h := newHarness()

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "just a question about rivers"})

	if len(h.provider.ChatCalls) != 1 {
		t.Fatalf("Expected 1 chat call, got %d", len(h.provider.ChatCalls))
	}
	if h.provider.ChatCalls[0].SearchEnabled {
		t.Error("Search should be disabled outside deep research")
	}
}

func TestDeepResearchModeIsOneShot(t *testing.T) {
	h := newHarness()
	h.provider.Grounding = []entities.GroundingSource{{URI: "https://example.com", Title: "Example"}}

	h.orchestrator.SetMode(entities.ModeDeepResearch)
	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "research question about tides"})

	if !h.provider.ChatCalls[0].SearchEnabled {
		t.Error("Deep research turn should enable search")
	}
	if h.orchestrator.Mode() != entities.ModeNone {
		t.Errorf("Expected mode cleared after the turn, got %s", h.orchestrator.Mode())
	}

	msgs := h.activeMessages(t)
	assistant := msgs[len(msgs)-1]
	if len(assistant.Grounding) != 1 || assistant.Grounding[0].URI != "https://example.com" {
		t.Errorf("Expected grounding sources on the reply, got %v", assistant.Grounding)
	}

	// A command inside a deep research turn must still reach the model.
	h.orchestrator.SetMode(entities.ModeDeepResearch)
	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "open youtube"})
	if len(h.actions.OpenedURLs) != 0 {
		t.Error("Commands must not run while a mode is armed")
	}
}

func TestImageModeClearsAtDispatch(t *testing.T) {
	h := newHarness()

	h.orchestrator.SetMode(entities.ModeImage)
	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "a watercolor fox"})

	if h.orchestrator.Mode() != entities.ModeNone {
		t.Errorf("Expected image mode cleared at dispatch, got %s", h.orchestrator.Mode())
	}

	msgs := h.activeMessages(t)
	assistant := msgs[len(msgs)-1]
	if assistant.ImageGen == nil {
		t.Fatal("Expected image workflow data on the reply")
	}
	if assistant.ImageGen.Status != entities.ImageStatusConfirmingPrompt {
		t.Errorf("Expected confirming_prompt, got %s", assistant.ImageGen.Status)
	}
	if len(h.provider.ChatCalls) != 0 {
		t.Error("Image turn must not call the chat endpoint")
	}

	// The next utterance is an ordinary chat turn.
	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "and tell me about foxes"})
	if len(h.provider.ChatCalls) != 1 {
		t.Errorf("Expected a plain chat turn after image mode, got %d chat calls", len(h.provider.ChatCalls))
	}
}

func TestStreamFailureReplacesMessageAndBanners(t *testing.T) {
	h := newHarness()
	h.provider.ChatChunks = []string{"partial "}
	h.provider.ChatErr = errors.New("stream interrupted")

	var banner string
	h.orchestrator.SetOnBanner(func(text string) { banner = text })

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "tell me something long"})

	msgs := h.activeMessages(t)
	assistant := msgs[len(msgs)-1]
	if assistant.IsStreaming {
		t.Error("Failed turn must clear the streaming flag")
	}
	if !strings.Contains(assistant.Text, "Sorry, something went wrong") {
		t.Errorf("Expected failure text, got %q", assistant.Text)
	}
	if banner == "" {
		t.Error("Expected a banner for the failed turn")
	}
}

func TestCorruptAttachmentFailsTurn(t *testing.T) {
	h := newHarness()
	h.provider.ChatChunks = []string{"never sent"}

	var banner string
	h.orchestrator.SetOnBanner(func(text string) { banner = text })

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{
		Text:        "what is in this photo",
		Attachments: []entities.FileAttachment{{Name: "photo.png", MIMEType: "image/png", Base64Data: "not-base64!!"}},
	})

	if len(h.provider.ChatCalls) != 0 {
		t.Errorf("Expected no chat call for an undecodable attachment, got %d", len(h.provider.ChatCalls))
	}

	msgs := h.activeMessages(t)
	assistant := msgs[len(msgs)-1]
	if assistant.IsStreaming {
		t.Error("Failed turn must clear the streaming flag")
	}
	expected := "I could not extract the details I needed from that request."
	if assistant.Text != expected {
		t.Errorf("Expected the validation text, got %q", assistant.Text)
	}
	if banner != expected {
		t.Errorf("Expected a banner with the validation text, got %q", banner)
	}
}

func TestMissingCredentialSurfacesInstruction(t *testing.T) {
	logger := zap.NewNop()
	store := NewSessionStore(logger)
	provider := llm.NewUnconfiguredProvider()
	images := NewImageWorkflow(store, provider, logger)
	o := NewOrchestrator(store, provider, &mockActions{}, images, logger)

	var banner string
	o.SetOnBanner(func(text string) { banner = text })

	o.HandleUtterance(context.Background(), entities.Utterance{Text: "hello"})

	msgs := store.Messages(store.ActiveID())
	assistant := msgs[len(msgs)-1]
	expected := "The assistant is not configured yet: set the GEMINI_API_KEY environment variable and restart."
	if assistant.Text != expected {
		t.Errorf("Expected configuration instruction, got %q", assistant.Text)
	}
	if banner != expected {
		t.Errorf("Expected banner with the same instruction, got %q", banner)
	}
}

func TestVoiceTurnSpeaksReply(t *testing.T) {
	h := newHarness()
	h.provider.ChatChunks = []string{"It is ", "noon."}
	voice := &mockVoice{}
	h.orchestrator.SetVoice(voice)

	h.orchestrator.HandleVoiceUtterance(context.Background(), "what time is it")

	if len(voice.SpokenTexts) != 1 || voice.SpokenTexts[0] != "It is noon." {
		t.Errorf("Expected the reply spoken, got %v", voice.SpokenTexts)
	}
	if len(voice.Thinking) != 2 || !voice.Thinking[0] || voice.Thinking[1] {
		t.Errorf("Expected thinking on then off, got %v", voice.Thinking)
	}

	msgs := h.activeMessages(t)
	assistant := msgs[len(msgs)-1]
	if voice.SpokenIDs[0] != assistant.ID {
		t.Error("Spoken utterance should carry the assistant message id")
	}
}

func TestTypedTurnDoesNotSpeak(t *testing.T) {
	h := newHarness()
	voice := &mockVoice{}
	h.orchestrator.SetVoice(voice)

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "typed question"})

	if len(voice.SpokenTexts) != 0 {
		t.Errorf("Typed turns must not be spoken, got %v", voice.SpokenTexts)
	}
}

func TestResubmitEditTruncatesAndReruns(t *testing.T) {
	h := newHarness()
	voice := &mockVoice{}
	h.orchestrator.SetVoice(voice)

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{Text: "original question"})
	msgs := h.activeMessages(t)
	userID := msgs[0].ID
	sessionID := h.store.ActiveID()

	h.orchestrator.ResubmitEdit(context.Background(), sessionID, userID, "edited question")

	msgs = h.store.Messages(sessionID)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages after resubmit, got %d", len(msgs))
	}
	if msgs[0].Text != "edited question" {
		t.Errorf("Expected edited text, got %q", msgs[0].Text)
	}
	if msgs[0].ID == userID {
		t.Error("Resubmitted message should be a fresh message")
	}
	if voice.StopCalls != 1 {
		t.Errorf("Expected playback stopped before resubmit, got %d stops", voice.StopCalls)
	}
	if len(h.provider.ChatCalls) != 2 {
		t.Errorf("Expected a second chat call, got %d", len(h.provider.ChatCalls))
	}
}

func TestResubmitEditKeepsAttachments(t *testing.T) {
	h := newHarness()
	att := entities.FileAttachment{Name: "photo.png", MIMEType: "image/png", Base64Data: "aGk="}

	h.orchestrator.HandleUtterance(context.Background(), entities.Utterance{
		Text:        "what is in this photo",
		Attachments: []entities.FileAttachment{att},
	})
	sessionID := h.store.ActiveID()
	userID := h.store.Messages(sessionID)[0].ID

	h.orchestrator.ResubmitEdit(context.Background(), sessionID, userID, "describe this photo")

	msgs := h.store.Messages(sessionID)
	if len(msgs[0].Attachments) != 1 || msgs[0].Attachments[0].Name != "photo.png" {
		t.Errorf("Expected original attachments carried over, got %v", msgs[0].Attachments)
	}
}

func TestHistoryExcludesWorkflowMessages(t *testing.T) {
	h := newHarness()
	session := h.store.CreateSession()

	h.store.AppendMessage(session.ID, entities.NewUserMessage("earlier question", nil, entities.ModeNone))
	h.store.AppendMessage(session.ID, entities.NewAssistantMessage("earlier answer", false))
	imageMsg := entities.NewAssistantMessage("Here's your image.", false)
	imageMsg.ImageGen = &entities.ImageGenerationData{Status: entities.ImageStatusDone}
	h.store.AppendMessage(session.ID, imageMsg)

	user := entities.NewUserMessage("follow-up", nil, entities.ModeNone)
	h.store.AppendMessage(session.ID, user)

	history := h.orchestrator.historyBefore(session.ID, user.ID)
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].Role != repositories.UserRole || history[1].Role != repositories.ModelRole {
		t.Errorf("Expected user then model roles, got %v", history)
	}
}
