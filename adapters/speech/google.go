package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain/repositories"
)

// GoogleRecognizer implements the Recognizer interface on Google Cloud
// streaming recognition. Audio is pushed in through Feed (the websocket layer
// forwards browser microphone chunks); finalized transcripts come out as
// typed events.
type GoogleRecognizer struct {
	sampleRate int
	language   string
	logger     *zap.Logger

	events chan repositories.RecognizerEvent

	mu      sync.Mutex
	running bool
	client  *speech.Client
	stream  speechpb.Speech_StreamingRecognizeClient
	cancel  context.CancelFunc
}

var _ repositories.Recognizer = (*GoogleRecognizer)(nil)

// NewGoogleRecognizer creates a recognizer for the given audio parameters
func NewGoogleRecognizer(sampleRate int, language string, logger *zap.Logger) *GoogleRecognizer {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleRecognizer{
		sampleRate: sampleRate,
		language:   language,
		logger:     logger,
		events:     make(chan repositories.RecognizerEvent, 16),
	}
}

// Events returns the recognition event stream
func (g *GoogleRecognizer) Events() <-chan repositories.RecognizerEvent {
	return g.events
}

// Start opens a streaming recognition session. Starting an already running
// recognizer returns an error the caller treats as a no-op.
func (g *GoogleRecognizer) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("recognizer already started")
	}

	ctx, cancel := context.WithCancel(context.Background())

	client, err := speech.NewClient(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		cancel()
		return fmt.Errorf("failed to open streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(g.sampleRate),
					LanguageCode:    g.language,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		cancel()
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.client = client
	g.stream = stream
	g.cancel = cancel
	g.running = true

	go g.receive(stream, client)

	g.logger.Info("Streaming recognition started",
		zap.Int("sampleRate", g.sampleRate),
		zap.String("language", g.language))
	return nil
}

// Stop closes the streaming session. Stopping a stopped recognizer returns
// an error the caller treats as a no-op.
func (g *GoogleRecognizer) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return fmt.Errorf("recognizer not started")
	}
	g.running = false
	g.stream.CloseSend()
	g.cancel()
	return nil
}

// Feed pushes one audio chunk into the active session
func (g *GoogleRecognizer) Feed(data []byte) error {
	g.mu.Lock()
	stream := g.stream
	running := g.running
	g.mu.Unlock()

	if !running {
		return fmt.Errorf("recognizer not started")
	}
	if len(data) == 0 {
		return nil
	}

	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	})
}

// receive pumps recognition responses into typed events until the stream ends
func (g *GoogleRecognizer) receive(stream speechpb.Speech_StreamingRecognizeClient, client *speech.Client) {
	defer client.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			g.mu.Lock()
			g.running = false
			g.mu.Unlock()

			if err == io.EOF || isExpectedClose(err) {
				g.events <- repositories.RecognizerEvent{Kind: repositories.RecognizerEnd}
				return
			}
			g.logger.Warn("Recognition stream failed", zap.Error(err))
			g.events <- repositories.RecognizerEvent{
				Kind:    repositories.RecognizerError,
				ErrKind: "network",
			}
			return
		}

		var alternatives []string
		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				alternatives = append(alternatives, result.Alternatives[0].Transcript)
			}
		}
		if len(alternatives) > 0 {
			g.events <- repositories.RecognizerEvent{
				Kind:         repositories.RecognizerResult,
				Alternatives: alternatives,
			}
		}
	}
}

// isExpectedClose reports whether a stream error is an ordinary session end
// (caller stop or the service's silence timeout) rather than a failure.
func isExpectedClose(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "OutOfRange") ||
		strings.Contains(msg, "Exceeded maximum allowed stream duration")
}
