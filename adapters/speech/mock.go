package speech

import (
	"fmt"
	"sync"

	"github.com/satriahrh/kirana/domain/repositories"
)

// MockRecognizer is a scriptable recognition engine for tests and local
// development. Tests inject events directly; the Started flag mirrors a real
// engine that errors when asked to enter the state it is already in.
type MockRecognizer struct {
	mu         sync.Mutex
	started    bool
	StartCalls int
	StopCalls  int

	events chan repositories.RecognizerEvent
}

var _ repositories.Recognizer = (*MockRecognizer)(nil)

// NewMockRecognizer creates a mock recognition engine
func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{
		events: make(chan repositories.RecognizerEvent, 16),
	}
}

func (m *MockRecognizer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
	if m.started {
		return fmt.Errorf("recognizer already started")
	}
	m.started = true
	return nil
}

func (m *MockRecognizer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
	if !m.started {
		return fmt.Errorf("recognizer not started")
	}
	m.started = false
	return nil
}

func (m *MockRecognizer) Events() <-chan repositories.RecognizerEvent {
	return m.events
}

// Started reports whether the engine believes it is running
func (m *MockRecognizer) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// StartCount returns how many Start calls were made
func (m *MockRecognizer) StartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StartCalls
}

// EmitResult injects a finalized recognition result
func (m *MockRecognizer) EmitResult(alternatives ...string) {
	m.events <- repositories.RecognizerEvent{
		Kind:         repositories.RecognizerResult,
		Alternatives: alternatives,
	}
}

// EmitEnd injects a session end event, marking the engine stopped first the
// way a real engine would
func (m *MockRecognizer) EmitEnd() {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	m.events <- repositories.RecognizerEvent{Kind: repositories.RecognizerEnd}
}

// EmitError injects a recognition error of the given kind
func (m *MockRecognizer) EmitError(kind string) {
	m.events <- repositories.RecognizerEvent{
		Kind:    repositories.RecognizerError,
		ErrKind: kind,
	}
}

// SpokenUtterance records one Speak call on the mock synthesizer
type SpokenUtterance struct {
	ID   string
	Text string
}

// MockSynthesizer is a scriptable synthesis engine. With AutoComplete set it
// emits start and end events for every Speak, which is enough for demo
// wiring; tests leave it off and inject events by hand.
type MockSynthesizer struct {
	mu           sync.Mutex
	Spoken       []SpokenUtterance
	CancelCalls  int
	AutoComplete bool

	events chan repositories.SynthesizerEvent
}

var _ repositories.Synthesizer = (*MockSynthesizer)(nil)

// NewMockSynthesizer creates a mock synthesis engine
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{
		events: make(chan repositories.SynthesizerEvent, 16),
	}
}

func (m *MockSynthesizer) Speak(utteranceID string, text string) error {
	m.mu.Lock()
	m.Spoken = append(m.Spoken, SpokenUtterance{ID: utteranceID, Text: text})
	auto := m.AutoComplete
	m.mu.Unlock()

	if auto {
		m.EmitStart(utteranceID)
		m.EmitEnd(utteranceID)
	}
	return nil
}

func (m *MockSynthesizer) Cancel() {
	m.mu.Lock()
	m.CancelCalls++
	m.mu.Unlock()
}

func (m *MockSynthesizer) Events() <-chan repositories.SynthesizerEvent {
	return m.events
}

// SpokenCount returns how many utterances were requested so far
func (m *MockSynthesizer) SpokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Spoken)
}

// CancelCount returns how many Cancel calls were made
func (m *MockSynthesizer) CancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CancelCalls
}

// LastSpoken returns the most recent Speak call
func (m *MockSynthesizer) LastSpoken() (SpokenUtterance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Spoken) == 0 {
		return SpokenUtterance{}, false
	}
	return m.Spoken[len(m.Spoken)-1], true
}

// EmitStart injects a synthesis start event
func (m *MockSynthesizer) EmitStart(utteranceID string) {
	m.events <- repositories.SynthesizerEvent{
		Kind:        repositories.SynthesizerStart,
		UtteranceID: utteranceID,
	}
}

// EmitEnd injects a synthesis end event
func (m *MockSynthesizer) EmitEnd(utteranceID string) {
	m.events <- repositories.SynthesizerEvent{
		Kind:        repositories.SynthesizerEnd,
		UtteranceID: utteranceID,
	}
}

// EmitError injects a synthesis error of the given kind
func (m *MockSynthesizer) EmitError(utteranceID, kind string) {
	m.events <- repositories.SynthesizerEvent{
		Kind:        repositories.SynthesizerError,
		UtteranceID: utteranceID,
		ErrKind:     kind,
	}
}
