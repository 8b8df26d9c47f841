package asr

import "vocalink/core"

// ASRTranscribeRequestEvent seeds an audio run: the sealed utterance audio to
// be transcribed.
type ASRTranscribeRequestEvent struct {
	Audio core.AudioChunk
}

func (e *ASRTranscribeRequestEvent) GetId() string {
	return "asr.transcribe_request"
}

// ASRPartialOutputEvent is best-effort interim feedback while transcription is
// in flight.
type ASRPartialOutputEvent struct {
	Text string
}

func (e *ASRPartialOutputEvent) GetId() string {
	return "asr.partial_output"
}

// ASRFinalOutputEvent seals the transcript; downstream stages treat it as the
// user's utterance.
type ASRFinalOutputEvent struct {
	Text string
}

func (e *ASRFinalOutputEvent) GetId() string {
	return "asr.final_output"
}
