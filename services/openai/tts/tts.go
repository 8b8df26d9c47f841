package tts

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"

	"vocalink/core"
)

// The speech endpoint's raw PCM format is fixed at 24 kHz mono 16-bit.
const pcmSampleRate = 24000

// OpenAITTSService synthesizes one sentence at a time through the speech
// endpoint, returning raw PCM so downstream framing stays codec-free.
type OpenAITTSService struct {
	client *openai.Client
	config Config

	mu            sync.RWMutex
	isInitialized bool
}

// Config holds the configuration for the OpenAI TTS service.
type Config struct {
	APIKey  string  `json:"-"`
	BaseURL string  `json:"base_url,omitempty"`
	Model   string  `json:"model"`
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Model: string(openai.TTSModel1),
		Voice: string(openai.VoiceAlloy),
		Speed: 1.0,
	}
}

func NewOpenAITTSService(config Config) *OpenAITTSService {
	return &OpenAITTSService{config: config}
}

func (s *OpenAITTSService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.APIKey == "" {
		return fmt.Errorf("openai tts: API key is required")
	}
	clientCfg := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientCfg.BaseURL = s.config.BaseURL
	}
	s.client = openai.NewClientWithConfig(clientCfg)
	s.isInitialized = true
	return nil
}

func (s *OpenAITTSService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

// Synthesize renders one sentence to 16-bit PCM audio.
func (s *OpenAITTSService) Synthesize(ctx context.Context, text string) (core.AudioChunk, error) {
	s.mu.RLock()
	client := s.client
	initialized := s.isInitialized
	s.mu.RUnlock()
	if !initialized {
		return core.AudioChunk{}, fmt.Errorf("openai tts: service not initialized")
	}

	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.Model),
		Voice:          openai.SpeechVoice(s.config.Voice),
		Input:          text,
		Speed:          s.config.Speed,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("openai tts: create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("openai tts: read audio: %w", err)
	}
	return core.AudioChunk{
		Data:       data,
		SampleRate: pcmSampleRate,
		Channels:   1,
		Format:     core.PCM,
	}, nil
}
