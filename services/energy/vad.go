package energy

import (
	"context"

	"vocalink/audioutil"
	"vocalink/core"
)

// EnergyVADService is an RMS-threshold voice activity detector with a short
// smoothing window. It trades model accuracy for zero dependencies and is the
// default detector; the handler-side contract is the same one a model-backed
// detector would implement.
type EnergyVADService struct {
	config Config
	window []bool
}

// Config holds the configuration for the energy VAD service.
type Config struct {
	Threshold    float64 `json:"threshold"`     // RMS amplitude above which a chunk counts as speech
	SmoothWindow int     `json:"smooth_window"` // chunks of majority-vote smoothing
}

func DefaultConfig() Config {
	return Config{
		Threshold:    300.0,
		SmoothWindow: 4,
	}
}

func NewEnergyVADService(config Config) *EnergyVADService {
	if config.Threshold <= 0 {
		config.Threshold = DefaultConfig().Threshold
	}
	if config.SmoothWindow <= 0 {
		config.SmoothWindow = DefaultConfig().SmoothWindow
	}
	return &EnergyVADService{config: config}
}

func (s *EnergyVADService) Init(ctx context.Context) error { return nil }

func (s *EnergyVADService) Cleanup() error {
	s.window = nil
	return nil
}

// ProcessAudio classifies one chunk of 16-bit PCM. The decision is a majority
// vote over the last SmoothWindow chunks so single noisy frames do not flip
// the detector.
func (s *EnergyVADService) ProcessAudio(chunk core.AudioChunk) (core.VADResult, error) {
	rms := audioutil.RMS(chunk.Data)
	loud := rms >= s.config.Threshold

	s.window = append(s.window, loud)
	if len(s.window) > s.config.SmoothWindow {
		s.window = s.window[len(s.window)-s.config.SmoothWindow:]
	}
	trueCount := 0
	for _, v := range s.window {
		if v {
			trueCount++
		}
	}
	isSpeech := trueCount*2 >= len(s.window) && trueCount > 0

	confidence := float32(rms / (2 * s.config.Threshold))
	if confidence > 1 {
		confidence = 1
	}
	return core.VADResult{IsSpeech: isSpeech, Confidence: confidence}, nil
}

// Reset clears the smoothing window between utterances.
func (s *EnergyVADService) Reset() {
	s.window = s.window[:0]
}
