package session

// State is the conversational state of one session.
type State int32

const (
	StateIdle      State = iota // nothing in flight
	StateListening              // microphone audio accumulating
	StateThinking               // ASR/LLM in flight
	StateSpeaking               // TTS audio streaming out
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}
