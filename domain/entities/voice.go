package entities

// VoiceState is the single process-wide assistant state observed by the UI
type VoiceState string

const (
	VoiceStateIdle      VoiceState = "idle"
	VoiceStateListening VoiceState = "listening"
	VoiceStateThinking  VoiceState = "thinking"
	VoiceStateSpeaking  VoiceState = "speaking"
)

// InteractionMode selects how the next utterance is dispatched. Both modes
// are one-shot: image mode clears at dispatch, deep research at turn end.
type InteractionMode string

const (
	ModeNone         InteractionMode = ""
	ModeImage        InteractionMode = "image"
	ModeDeepResearch InteractionMode = "deep_research"
)
