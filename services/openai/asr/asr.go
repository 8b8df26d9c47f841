package asr

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/sashabaranov/go-openai"

	"vocalink/audioutil"
	"vocalink/core"
)

// OpenAIASRService transcribes sealed utterance audio through the Whisper
// endpoint. It is request/response: the whole segment goes up, one transcript
// comes back.
type OpenAIASRService struct {
	client *openai.Client
	config Config

	mu            sync.RWMutex
	isInitialized bool
}

// Config holds the configuration for the OpenAI ASR service.
type Config struct {
	APIKey   string `json:"-"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model"`
	Language string `json:"language,omitempty"` // ISO-639-1 hint; empty lets Whisper detect
}

func DefaultConfig() Config {
	return Config{Model: openai.Whisper1}
}

func NewOpenAIASRService(config Config) *OpenAIASRService {
	return &OpenAIASRService{config: config}
}

func (s *OpenAIASRService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.APIKey == "" {
		return fmt.Errorf("openai asr: API key is required")
	}
	clientCfg := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientCfg.BaseURL = s.config.BaseURL
	}
	s.client = openai.NewClientWithConfig(clientCfg)
	s.isInitialized = true
	return nil
}

func (s *OpenAIASRService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

// Transcribe converts one utterance of PCM audio to text. The chunk must be
// 16-bit PCM; it is wrapped in a WAV header for upload.
func (s *OpenAIASRService) Transcribe(ctx context.Context, chunk core.AudioChunk) (string, error) {
	s.mu.RLock()
	client := s.client
	initialized := s.isInitialized
	s.mu.RUnlock()
	if !initialized {
		return "", fmt.Errorf("openai asr: service not initialized")
	}

	wav := audioutil.WAV(chunk.Data, chunk.SampleRate, chunk.Channels)
	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.Model,
		Language: s.config.Language,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return "", fmt.Errorf("openai asr: transcription: %w", err)
	}
	return resp.Text, nil
}
