package tts

// Config controls how reply text is fed to the TTS service.
type Config struct {
	MinSentenceLength int `json:"min_sentence_length"` // Sentences shorter than this are merged into the next one to avoid choppy audio.
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinSentenceLength: 8,
	}
}
