package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain"
	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
)

// VoiceGateway is what the orchestrator needs from the speech channel. A nil
// gateway means voice is unavailable and every call is skipped.
type VoiceGateway interface {
	// SetThinking suspends listening while a turn is being processed
	SetThinking(thinking bool)
	// Speak plays a synthesized assistant reply tied to a message id
	Speak(messageID, text string)
	// StopSpeaking cancels the in-flight utterance
	StopSpeaking()
}

// Orchestrator advances exactly one conversational turn per utterance: it
// appends the user message, routes through mode-gated dispatch (image
// workflow, deep research, local commands, plain chat) and streams the
// assistant response into the session store.
type Orchestrator struct {
	store    *SessionStore
	provider repositories.Provider
	actions  repositories.ActionRunner
	images   *ImageWorkflow
	voice    VoiceGateway
	logger   *zap.Logger

	commands []command

	// mode is owned solely by the orchestrator and transitions only at turn
	// boundaries: image clears at dispatch, deep research at turn end.
	modeMu sync.Mutex
	mode   entities.InteractionMode

	onBanner func(text string)
}

// NewOrchestrator creates the turn orchestrator
func NewOrchestrator(
	store *SessionStore,
	provider repositories.Provider,
	actions repositories.ActionRunner,
	images *ImageWorkflow,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		provider: provider,
		actions:  actions,
		images:   images,
		logger:   logger,
		commands: commandTable(),
	}
}

// SetVoice attaches the speech channel. Optional; text interaction works
// without it.
func (o *Orchestrator) SetVoice(voice VoiceGateway) {
	o.voice = voice
}

// SetOnBanner registers the transient top-level error listener
func (o *Orchestrator) SetOnBanner(fn func(text string)) {
	o.onBanner = fn
}

// SetMode arms the interaction mode for the next utterance
func (o *Orchestrator) SetMode(mode entities.InteractionMode) {
	o.modeMu.Lock()
	o.mode = mode
	o.modeMu.Unlock()
	o.logger.Info("Interaction mode set", zap.String("mode", string(mode)))
}

// Mode returns the currently armed mode
func (o *Orchestrator) Mode() entities.InteractionMode {
	o.modeMu.Lock()
	defer o.modeMu.Unlock()
	return o.mode
}

// HandleUtterance processes one typed utterance and blocks until the turn
// completes. Callers run concurrent turns in their own goroutines; streamed
// writes are scoped to distinct message ids so they cannot interleave.
func (o *Orchestrator) HandleUtterance(ctx context.Context, utt entities.Utterance) {
	o.handle(ctx, utt, false)
}

// HandleVoiceUtterance processes one spoken utterance; the completed chat
// reply is played back through the speech channel.
func (o *Orchestrator) HandleVoiceUtterance(ctx context.Context, text string) {
	o.handle(ctx, entities.Utterance{Text: text}, true)
}

// ResubmitEdit truncates the session to just before the edited user message
// and re-runs the turn with the new text and the original attachments. Any
// in-progress speech playback is cancelled first.
func (o *Orchestrator) ResubmitEdit(ctx context.Context, sessionID, messageID, newText string) {
	if o.voice != nil {
		o.voice.StopSpeaking()
	}

	removed, ok := o.store.TruncateBefore(sessionID, messageID)
	if !ok {
		o.logger.Warn("Edit targeted a missing message",
			zap.String("sessionID", sessionID),
			zap.String("messageID", messageID))
		return
	}
	o.store.SetActive(sessionID)
	o.handle(ctx, entities.Utterance{Text: newText, Attachments: removed.Attachments}, false)
}

func (o *Orchestrator) handle(ctx context.Context, utt entities.Utterance, speakReply bool) {
	if utt.IsEmpty() {
		return
	}

	session := o.store.ActiveSession()
	sessionID := session.ID

	// Image mode is one-shot and exits at dispatch time, before anything can fail.
	o.modeMu.Lock()
	mode := o.mode
	if mode == entities.ModeImage {
		o.mode = entities.ModeNone
	}
	o.modeMu.Unlock()

	// The user message is appended synchronously so the UI never observes a
	// dispatched turn without its trigger.
	userMsg := entities.NewUserMessage(utt.Text, utt.Attachments, mode)
	o.store.AppendMessage(sessionID, userMsg)

	o.setThinking(true)
	defer func() {
		if mode == entities.ModeDeepResearch {
			o.clearModeIf(entities.ModeDeepResearch)
		}
		o.setThinking(false)
	}()

	text := strings.TrimSpace(utt.Text)

	if mode == entities.ModeImage && text != "" {
		o.images.Start(ctx, sessionID, text)
		return
	}

	if mode == entities.ModeNone && len(utt.Attachments) == 0 && text != "" {
		for _, cmd := range o.commands {
			if match := cmd.pattern.FindStringSubmatch(text); match != nil {
				o.logger.Info("Local command matched",
					zap.String("command", cmd.name),
					zap.String("sessionID", sessionID))
				cmd.run(ctx, o, sessionID, text, match)
				return
			}
		}
	}

	o.runChatTurn(ctx, sessionID, userMsg.ID, utt, mode == entities.ModeDeepResearch, speakReply)
}

// runChatTurn streams a chat completion into a fresh assistant message
func (o *Orchestrator) runChatTurn(ctx context.Context, sessionID, userMessageID string, utt entities.Utterance, searchEnabled, speakReply bool) {
	assistant := entities.NewAssistantMessage("", true)
	o.store.AppendMessage(sessionID, assistant)

	history := o.historyBefore(sessionID, userMessageID)
	parts, err := buildTurnParts(utt)
	if err != nil {
		o.failTurn(sessionID, assistant.ID, err)
		return
	}

	deltas, err := o.provider.StreamChat(ctx, history, parts, repositories.ChatOptions{
		// Search grounding adds latency, so it stays off outside deep research.
		SearchEnabled: searchEnabled,
	})
	if err != nil {
		o.failTurn(sessionID, assistant.ID, err)
		return
	}

	var grounding []entities.GroundingSource
	for delta := range deltas {
		if delta.Err != nil {
			o.failTurn(sessionID, assistant.ID, delta.Err)
			return
		}
		if delta.Text != "" {
			chunk := delta.Text
			o.store.UpdateMessage(sessionID, assistant.ID, func(m *entities.Message) {
				m.Text += chunk
			})
		}
		if len(delta.Grounding) > 0 {
			grounding = delta.Grounding
		}
	}

	var finalText string
	o.store.UpdateMessage(sessionID, assistant.ID, func(m *entities.Message) {
		m.Grounding = grounding
		m.IsStreaming = false
		finalText = m.Text
	})

	if speakReply && o.voice != nil && finalText != "" {
		o.voice.Speak(assistant.ID, finalText)
	}
}

// failTurn converts any streaming error into a replacement assistant message
// and a transient banner. The turn always ends here; errors never escape.
func (o *Orchestrator) failTurn(sessionID, messageID string, err error) {
	text := domain.UserMessage(err)
	o.logger.Error("Chat turn failed",
		zap.String("sessionID", sessionID),
		zap.String("messageID", messageID),
		zap.Error(err))

	o.store.UpdateMessage(sessionID, messageID, func(m *entities.Message) {
		m.Text = text
		m.IsStreaming = false
	})
	if o.onBanner != nil {
		o.onBanner(text)
	}
}

// historyBefore maps prior user/assistant turns to the provider's role
// vocabulary, stopping at the message that triggered the current turn.
func (o *Orchestrator) historyBefore(sessionID, userMessageID string) []repositories.ChatMessage {
	msgs := o.store.Messages(sessionID)
	var history []repositories.ChatMessage
	for _, m := range msgs {
		if m.ID == userMessageID {
			break
		}
		if m.IsStreaming || m.Text == "" || m.ImageGen != nil {
			continue
		}
		role := repositories.UserRole
		if m.Role == entities.MessageRoleAssistant {
			role = repositories.ModelRole
		}
		history = append(history, repositories.ChatMessage{Role: role, Text: m.Text})
	}
	return history
}

// buildTurnParts converts attachments to inline binary parts, with the
// utterance text as the final part. An undecodable attachment fails the whole
// turn; sending the provider a partial payload would answer the wrong question.
func buildTurnParts(utt entities.Utterance) ([]repositories.TurnPart, error) {
	var parts []repositories.TurnPart
	for _, att := range utt.Attachments {
		data, err := base64.StdEncoding.DecodeString(att.Base64Data)
		if err != nil {
			return nil, fmt.Errorf("%w: attachment %q is not valid base64", domain.ErrValidation, att.Name)
		}
		parts = append(parts, repositories.TurnPart{MIMEType: att.MIMEType, Data: data})
	}
	if utt.Text != "" {
		parts = append(parts, repositories.TurnPart{Text: utt.Text})
	}
	return parts, nil
}

func (o *Orchestrator) appendAssistantText(sessionID, text string) {
	o.store.AppendMessage(sessionID, entities.NewAssistantMessage(text, false))
}

func (o *Orchestrator) setThinking(thinking bool) {
	if o.voice != nil {
		o.voice.SetThinking(thinking)
	}
}

func (o *Orchestrator) clearModeIf(mode entities.InteractionMode) {
	o.modeMu.Lock()
	if o.mode == mode {
		o.mode = entities.ModeNone
	}
	o.modeMu.Unlock()
}
