package repositories

// RecognizerEventKind discriminates recognition events
type RecognizerEventKind string

const (
	RecognizerResult RecognizerEventKind = "result"
	RecognizerEnd    RecognizerEventKind = "end"
	RecognizerError  RecognizerEventKind = "error"
)

// ErrNoSpeech is the error kind a recognizer reports when it heard nothing.
// It is expected during silence and must be suppressed by the consumer.
const ErrNoSpeech = "no-speech"

// RecognizerEvent is one typed event from the recognition engine. Result
// events carry every finalized alternative since the previous result.
type RecognizerEvent struct {
	Kind         RecognizerEventKind
	Alternatives []string
	ErrKind      string
}

// Recognizer abstracts a continuous speech recognition engine. Start and Stop
// are best-effort: calling them when the engine is already in the requested
// state returns an error the caller treats as a no-op.
type Recognizer interface {
	Start() error
	Stop() error
	Events() <-chan RecognizerEvent
}

// SynthesizerEventKind discriminates synthesis events
type SynthesizerEventKind string

const (
	SynthesizerStart SynthesizerEventKind = "start"
	SynthesizerEnd   SynthesizerEventKind = "end"
	SynthesizerError SynthesizerEventKind = "error"
)

// Synthesis error kinds that signal expected cancellation, not failure
const (
	ErrSynthInterrupted = "interrupted"
	ErrSynthCanceled    = "canceled"
)

// SynthesizerEvent is one typed event from the synthesis engine, tied to the
// utterance id passed to Speak.
type SynthesizerEvent struct {
	Kind        SynthesizerEventKind
	UtteranceID string
	ErrKind     string
}

// Synthesizer abstracts a speech synthesis queue. Cancel interrupts the
// in-flight utterance; cleanup is driven by the engine's own end event.
type Synthesizer interface {
	Speak(utteranceID string, text string) error
	Cancel()
	Events() <-chan SynthesizerEvent
}
