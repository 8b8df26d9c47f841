package vad

// Config controls utterance endpointing on top of the VAD service.
type Config struct {
	MinConfidence     float32 `json:"min_confidence"`      // Minimum detector confidence for a chunk to count as speech.
	SilenceHangoverMs int     `json:"silence_hangover_ms"` // Trailing silence required before the utterance is sealed.
	MinSpeechMs       int     `json:"min_speech_ms"`       // Minimum accumulated speech before an endpoint can fire, filtering out clicks and pops.
	MaxUtteranceMs    int     `json:"max_utterance_ms"`    // Hard cap on utterance length; 0 disables the cap.
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:     0.5,
		SilenceHangoverMs: 700,
		MinSpeechMs:       200,
		MaxUtteranceMs:    30000,
	}
}
