package tts

import "vocalink/core"

type TTSOutputEvent struct {
	AudioChunk core.AudioChunk
	Text       string // The sentence this audio voices.
	SliceIndex int    // Position of this chunk within the reply, starting at 0.
}

func (e *TTSOutputEvent) GetId() string {
	return "tts.output"
}

// TTSCompletedEvent terminates a successful run: all audio for the reply has
// been emitted.
type TTSCompletedEvent struct {
}

func (e *TTSCompletedEvent) GetId() string {
	return "tts.completed"
}
