package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"

	"vocalink/core"
)

// OpenAILLMService streams chat completions from OpenAI or any
// OpenAI-compatible endpoint (set BaseURL for DeepSeek, Groq, local servers).
type OpenAILLMService struct {
	client *openai.Client
	config Config

	mu            sync.RWMutex
	isInitialized bool
}

// Config holds the configuration for the OpenAI LLM service.
type Config struct {
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// DefaultConfig returns a Config with sensible defaults. APIKey is injected
// from the environment after loading settings.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

func NewOpenAILLMService(config Config) *OpenAILLMService {
	return &OpenAILLMService{config: config}
}

func (s *OpenAILLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.APIKey == "" {
		return fmt.Errorf("openai llm: API key is required")
	}
	clientCfg := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientCfg.BaseURL = s.config.BaseURL
	}
	s.client = openai.NewClientWithConfig(clientCfg)
	s.isInitialized = true
	return nil
}

func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

// RunCompletion streams one completion for the given conversation, pushing
// each token to outChan. It honors ctx: cancellation stops the stream within
// one token and returns ctx.Err(). The accumulated reply is returned on
// success.
func (s *OpenAILLMService) RunCompletion(ctx context.Context, convo core.LLMContext, outChan chan<- string) (string, error) {
	s.mu.RLock()
	client := s.client
	initialized := s.isInitialized
	s.mu.RUnlock()
	if !initialized {
		return "", fmt.Errorf("openai llm: service not initialized")
	}

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    convertMessages(convo.Messages),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		Stream:      true,
	}

	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai llm: create stream: %w", err)
	}
	defer stream.Close()

	var full string
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return full, ctx.Err()
			}
			return full, fmt.Errorf("openai llm: stream recv: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		select {
		case outChan <- delta:
			full += delta
		case <-ctx.Done():
			return full, ctx.Err()
		}
	}
}

func convertMessages(messages []core.LLMMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case core.LLMMessageRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case core.LLMMessageRoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Message})
	}
	return out
}
