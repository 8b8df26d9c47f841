package vad

import "vocalink/core"

// VADService classifies one chunk of 16-bit PCM audio.
type VADService interface {
	ProcessAudio(chunk core.AudioChunk) (core.VADResult, error)
	Reset()
}

// Segmenter turns a stream of microphone chunks into utterance endpoints: it
// feeds each chunk to the VAD service and fires once enough speech has been
// followed by enough silence. One Segmenter serves one session; it is not
// safe for concurrent use.
type Segmenter struct {
	service VADService
	config  Config

	sawSpeech bool
	speechMs  float64
	silenceMs float64
	totalMs   float64
}

func NewSegmenter(service VADService, config Config) *Segmenter {
	return &Segmenter{service: service, config: config}
}

// Feed processes one chunk and reports whether the utterance just ended.
func (s *Segmenter) Feed(chunk core.AudioChunk) (bool, error) {
	durMs := chunk.GetDurationInSeconds() * 1000
	s.totalMs += durMs

	result, err := s.service.ProcessAudio(chunk)
	if err != nil {
		return false, err
	}

	if result.IsSpeech && result.Confidence >= s.config.MinConfidence {
		s.sawSpeech = true
		s.speechMs += durMs
		s.silenceMs = 0
	} else if s.sawSpeech {
		s.silenceMs += durMs
	}

	if s.sawSpeech &&
		s.speechMs >= float64(s.config.MinSpeechMs) &&
		s.silenceMs >= float64(s.config.SilenceHangoverMs) {
		return true, nil
	}
	if s.config.MaxUtteranceMs > 0 && s.totalMs >= float64(s.config.MaxUtteranceMs) {
		return true, nil
	}
	return false, nil
}

// SawSpeech reports whether any speech was detected since the last reset.
// A sealed segment without speech is a no-op turn.
func (s *Segmenter) SawSpeech() bool {
	return s.sawSpeech
}

// Reset prepares the segmenter for the next utterance.
func (s *Segmenter) Reset() {
	s.sawSpeech = false
	s.speechMs = 0
	s.silenceMs = 0
	s.totalMs = 0
	s.service.Reset()
}
