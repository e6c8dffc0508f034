package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "pcm_24000"
	defaultChunkSize    = 4096
)

// ElevenLabsConfig holds configuration for the ElevenLabs synthesizer.
// APIKey is required; the rest fall back to defaults.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// ElevenLabsSynthesizer implements the Synthesizer interface using the Eleven
// Labs streaming TTS API. Synthesized audio chunks are handed to the audio
// sink (the websocket layer forwards them to the browser for playback);
// start/end/error events drive the speech channel's state.
type ElevenLabsSynthesizer struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	httpClient   *http.Client
	logger       *zap.Logger

	events   chan repositories.SynthesizerEvent
	audioOut func(utteranceID string, chunk []byte)

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ repositories.Synthesizer = (*ElevenLabsSynthesizer)(nil)

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// NewElevenLabsSynthesizer creates a new Eleven Labs synthesizer instance
func NewElevenLabsSynthesizer(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsSynthesizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("eleven labs API key is required")
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
		logger.Info("Using default voice ID", zap.String("voiceID", voiceID))
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
		logger.Info("Using default model ID", zap.String("modelID", modelID))
	}
	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
		logger.Info("Using default output format", zap.String("outputFormat", outputFormat))
	}

	return &ElevenLabsSynthesizer{
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		voiceID:      voiceID,
		modelID:      modelID,
		outputFormat: outputFormat,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
		events:       make(chan repositories.SynthesizerEvent, 16),
	}, nil
}

// SetAudioOut registers the sink that receives synthesized audio chunks.
// Must be set before the first Speak.
func (e *ElevenLabsSynthesizer) SetAudioOut(fn func(utteranceID string, chunk []byte)) {
	e.audioOut = fn
}

// Events returns the synthesis event stream
func (e *ElevenLabsSynthesizer) Events() <-chan repositories.SynthesizerEvent {
	return e.events
}

// Speak synthesizes one utterance. The caller cancels any in-flight
// utterance first; this method only starts the new one.
func (e *ElevenLabsSynthesizer) Speak(utteranceID string, text string) error {
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	go e.synthesize(ctx, utteranceID, text)
	return nil
}

// Cancel interrupts the in-flight utterance. The resulting "canceled" event
// is the expected outcome, not a failure.
func (e *ElevenLabsSynthesizer) Cancel() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
}

func (e *ElevenLabsSynthesizer) synthesize(ctx context.Context, utteranceID, text string) {
	payload, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: e.modelID})
	if err != nil {
		e.fail(utteranceID, "encode", err)
		return
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s", e.apiBaseURL, e.voiceID, e.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		e.fail(utteranceID, "request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			e.emitCanceled(utteranceID)
			return
		}
		e.fail(utteranceID, "network", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		e.fail(utteranceID, "api", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
		return
	}

	e.events <- repositories.SynthesizerEvent{
		Kind:        repositories.SynthesizerStart,
		UtteranceID: utteranceID,
	}

	buf := make([]byte, defaultChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 && e.audioOut != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			e.audioOut(utteranceID, chunk)
		}
		if err == io.EOF {
			e.events <- repositories.SynthesizerEvent{
				Kind:        repositories.SynthesizerEnd,
				UtteranceID: utteranceID,
			}
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				e.emitCanceled(utteranceID)
				return
			}
			e.fail(utteranceID, "stream", err)
			return
		}
	}
}

func (e *ElevenLabsSynthesizer) emitCanceled(utteranceID string) {
	e.events <- repositories.SynthesizerEvent{
		Kind:        repositories.SynthesizerError,
		UtteranceID: utteranceID,
		ErrKind:     repositories.ErrSynthCanceled,
	}
}

func (e *ElevenLabsSynthesizer) fail(utteranceID, kind string, err error) {
	e.logger.Error("Synthesis failed",
		zap.String("utteranceID", utteranceID),
		zap.String("kind", kind),
		zap.Error(err))
	e.events <- repositories.SynthesizerEvent{
		Kind:        repositories.SynthesizerError,
		UtteranceID: utteranceID,
		ErrKind:     kind,
	}
}
