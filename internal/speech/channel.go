// Package speech coordinates continuous recognition and synthesis into a
// single wake-word-gated voice channel.
package speech

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain"
	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
)

// AckUtteranceID is the reserved utterance id used for the wake-word
// acknowledgement, so it is never mistaken for a real assistant message.
const AckUtteranceID = "wake-ack"

const (
	defaultWakePhrase   = "hey kirana"
	defaultAckText      = "Yes?"
	defaultRestartDelay = 50 * time.Millisecond
)

// Config tunes the voice channel
type Config struct {
	// WakePhrase must be heard before an utterance is treated as a command
	WakePhrase string
	// AckText is spoken when the wake phrase is recognized
	AckText string
	// RestartDelay spaces out recognizer restarts so environments that end
	// sessions rapidly do not produce a tight restart loop
	RestartDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.WakePhrase == "" {
		c.WakePhrase = defaultWakePhrase
	}
	if c.AckText == "" {
		c.AckText = defaultAckText
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = defaultRestartDelay
	}
}

type hardwareState int

const (
	hwStopped hardwareState = iota
	hwStarting
	hwRunning
)

// Channel is the voice interaction state machine. All engine events and
// caller requests are funneled onto one loop goroutine, so state transitions
// are pure functions of (current state, event). The caller's intent flag is
// the source of truth for whether recognition should run; hardware start and
// stop calls are best-effort and an error from either is treated as a no-op.
type Channel struct {
	recognizer  repositories.Recognizer
	synthesizer repositories.Synthesizer
	cfg         Config
	logger      *zap.Logger

	commands chan func()
	done     chan struct{}

	// loop-owned state, never touched outside the Run goroutine
	micEnabled bool
	thinking   bool
	hwState    hardwareState
	isAwake    bool
	speaking   bool
	speakingID string
	restartC   <-chan time.Time

	wakeNormalized string

	status atomic.Value // entities.VoiceState

	onUtterance func(text string)
	onStatus    func(state entities.VoiceState)
	onError     func(kind string)
}

// NewChannel creates the voice channel. Missing engines are reported as an
// unsupported environment; the caller disables voice and carries on.
func NewChannel(recognizer repositories.Recognizer, synthesizer repositories.Synthesizer, cfg Config, logger *zap.Logger) (*Channel, error) {
	if recognizer == nil || synthesizer == nil {
		return nil, domain.ErrUnsupportedEnvironment
	}
	cfg.applyDefaults()

	c := &Channel{
		recognizer:     recognizer,
		synthesizer:    synthesizer,
		cfg:            cfg,
		logger:         logger,
		commands:       make(chan func(), 16),
		done:           make(chan struct{}),
		wakeNormalized: normalizeTranscript(cfg.WakePhrase),
	}
	c.status.Store(entities.VoiceStateIdle)
	return c, nil
}

// SetOnUtterance registers the command listener. Must be called before Run.
func (c *Channel) SetOnUtterance(fn func(text string)) { c.onUtterance = fn }

// SetOnStatus registers the status change listener. Must be called before Run.
func (c *Channel) SetOnStatus(fn func(state entities.VoiceState)) { c.onStatus = fn }

// SetOnError registers the listener for recognition errors other than
// silence. Must be called before Run.
func (c *Channel) SetOnError(fn func(kind string)) { c.onError = fn }

// Status returns the current overall voice state
func (c *Channel) Status() entities.VoiceState {
	return c.status.Load().(entities.VoiceState)
}

// EnableMic records the caller's intent to listen and reconciles hardware
func (c *Channel) EnableMic(enabled bool) {
	c.post(func() {
		c.micEnabled = enabled
		if !enabled {
			c.isAwake = false
		}
		c.reconcile()
	})
}

// SetThinking suspends listening while a turn is processed, so the channel
// neither captures the assistant's own audio nor races a new command.
func (c *Channel) SetThinking(thinking bool) {
	c.post(func() {
		c.thinking = thinking
		c.reconcile()
	})
}

// Speak plays one synthesized utterance, cancelling any in-flight one first
func (c *Channel) Speak(messageID, text string) {
	c.post(func() {
		c.startSpeaking(messageID, text)
	})
}

// StopSpeaking cancels the active utterance. State cleanup happens when the
// engine delivers its own end event.
func (c *Channel) StopSpeaking() {
	c.post(func() {
		c.synthesizer.Cancel()
	})
}

func (c *Channel) post(fn func()) {
	select {
	case c.commands <- fn:
	case <-c.done:
	}
}

// Run drives the event loop until the context is cancelled
func (c *Channel) Run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.synthesizer.Cancel()
			if c.hwState != hwStopped {
				if err := c.recognizer.Stop(); err != nil {
					c.logger.Debug("Recognizer stop on shutdown", zap.Error(err))
				}
			}
			return

		case fn := <-c.commands:
			fn()

		case ev := <-c.recognizer.Events():
			c.handleRecognizerEvent(ev)

		case ev := <-c.synthesizer.Events():
			c.handleSynthesizerEvent(ev)

		case <-c.restartC:
			c.restartC = nil
			c.reconcile()
		}
	}
}

func (c *Channel) shouldListen() bool {
	return c.micEnabled && !c.thinking && !c.speaking
}

// reconcile drives the hardware toward the intent flags and republishes the
// overall status.
func (c *Channel) reconcile() {
	if c.shouldListen() {
		if c.hwState == hwStopped && c.restartC == nil {
			c.hwState = hwStarting
			if err := c.recognizer.Start(); err != nil {
				// The engine may already be active; intent is the source of truth.
				c.logger.Debug("Recognizer start returned error", zap.Error(err))
			}
			c.hwState = hwRunning
		}
	} else if c.hwState != hwStopped {
		if err := c.recognizer.Stop(); err != nil {
			c.logger.Debug("Recognizer stop returned error", zap.Error(err))
		}
		// The engine's own end event may lag or never arrive; treat the
		// hardware as stopped as soon as the stop is issued.
		c.hwState = hwStopped
	}
	c.publishStatus()
}

// publishStatus computes the single overall state. Synthesis takes precedence
// over recognition: while speaking the channel never reports listening.
func (c *Channel) publishStatus() {
	var s entities.VoiceState
	switch {
	case c.speaking:
		s = entities.VoiceStateSpeaking
	case c.thinking:
		s = entities.VoiceStateThinking
	case c.micEnabled && c.hwState != hwStopped:
		s = entities.VoiceStateListening
	default:
		s = entities.VoiceStateIdle
	}

	if c.status.Load().(entities.VoiceState) == s {
		return
	}
	c.status.Store(s)
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

func (c *Channel) handleRecognizerEvent(ev repositories.RecognizerEvent) {
	switch ev.Kind {
	case repositories.RecognizerResult:
		c.handleTranscript(strings.Join(ev.Alternatives, " "))

	case repositories.RecognizerEnd:
		c.hwState = hwStopped
		if c.shouldListen() {
			// Delay the restart instead of reopening immediately; some
			// environments end and restart sessions in rapid succession.
			c.restartC = time.After(c.cfg.RestartDelay)
		}
		c.publishStatus()

	case repositories.RecognizerError:
		if ev.ErrKind == repositories.ErrNoSpeech {
			// Expected during silence; the end handler covers the restart.
			return
		}
		c.logger.Warn("Recognition error", zap.String("kind", ev.ErrKind))
		// A surfaced error disarms the mic; listening must not silently
		// resume until the user turns it back on.
		c.micEnabled = false
		c.isAwake = false
		c.hwState = hwStopped
		c.publishStatus()
		if c.onError != nil {
			go c.onError(ev.ErrKind)
		}
	}
}

// handleTranscript applies the wake gate to one finalized transcript. The
// gate is one-shot: each command must be preceded by a fresh wake phrase.
func (c *Channel) handleTranscript(raw string) {
	raw = strings.TrimSpace(raw)
	normalized := normalizeTranscript(raw)
	if normalized == "" {
		return
	}

	if !c.isAwake {
		if strings.Contains(normalized, c.wakeNormalized) {
			c.isAwake = true
			c.logger.Info("Wake phrase recognized")
			c.startSpeaking(AckUtteranceID, c.cfg.AckText)
		}
		return
	}

	c.logger.Info("Dispatching utterance", zap.Int("length", len(raw)))
	if c.onUtterance != nil {
		// The listener runs a full turn; never block the event loop on it.
		go c.onUtterance(raw)
	}
	c.isAwake = false
}

func (c *Channel) handleSynthesizerEvent(ev repositories.SynthesizerEvent) {
	// A cancelled utterance's events can arrive after its replacement was
	// requested; only events for the current utterance may change state.
	if ev.UtteranceID != c.speakingID {
		return
	}

	switch ev.Kind {
	case repositories.SynthesizerStart:
		c.speaking = true
		c.reconcile()

	case repositories.SynthesizerEnd:
		c.speaking = false
		c.speakingID = ""
		c.reconcile()

	case repositories.SynthesizerError:
		// Interrupted/canceled are the expected outcome of Cancel, not failures.
		if ev.ErrKind != repositories.ErrSynthInterrupted && ev.ErrKind != repositories.ErrSynthCanceled {
			c.logger.Warn("Synthesis error",
				zap.String("utteranceID", ev.UtteranceID),
				zap.String("kind", ev.ErrKind))
			if c.onError != nil {
				go c.onError(ev.ErrKind)
			}
		}
		c.speaking = false
		c.speakingID = ""
		c.reconcile()
	}
}

// startSpeaking enforces the single-speaker invariant before synthesizing.
// speakingID records which utterance is allowed to drive speaking state from
// here on; it is set before the engine can deliver any event for it.
func (c *Channel) startSpeaking(utteranceID, text string) {
	c.synthesizer.Cancel()
	if err := c.synthesizer.Speak(utteranceID, text); err != nil {
		c.logger.Error("Synthesis request failed",
			zap.String("utteranceID", utteranceID),
			zap.Error(err))
		return
	}
	c.speakingID = utteranceID
}

// normalizeTranscript lowercases and collapses whitespace for matching
func normalizeTranscript(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
