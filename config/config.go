// Package config loads server settings: defaults first, then an optional JSON
// file overlay, then secrets from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"vocalink/core"
	"vocalink/handlers/tts"
	"vocalink/handlers/vad"
	"vocalink/protocol"
	"vocalink/services/energy"
	openaiasr "vocalink/services/openai/asr"
	openaillm "vocalink/services/openai/llm"
	openaitts "vocalink/services/openai/tts"
)

// Settings is the full server configuration.
type Settings struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	// Active character configuration, announced to clients on connect.
	ConfName        string             `json:"conf_name"`
	ConfUID         string             `json:"conf_uid"`
	PersonaPrompt   string             `json:"persona_prompt"`
	ProactivePrompt string             `json:"proactive_prompt"`
	ModelInfo       protocol.ModelInfo `json:"model_info"`

	// Alternative characters offered through the config listing.
	Characters []protocol.CharacterConfig `json:"characters"`

	HistoryDir      string `json:"history_dir"`
	InputSampleRate int    `json:"input_sample_rate"`

	Log core.LogConfig `json:"log"`

	LLM openaillm.Config `json:"llm"`
	ASR openaiasr.Config `json:"asr"`
	TTS openaitts.Config `json:"tts"`

	VAD       energy.Config `json:"vad"`
	Segmenter vad.Config    `json:"segmenter"`
	Synthesis tts.Config    `json:"synthesis"`
}

func DefaultSettings() Settings {
	return Settings{
		Host:            "0.0.0.0",
		Port:            12393,
		ConfName:        "default",
		ConfUID:         "default",
		PersonaPrompt:   "You are a friendly voice assistant. Keep replies short and conversational.",
		ProactivePrompt: "Say something to re-engage the user, in character.",
		ModelInfo: protocol.ModelInfo{
			Name:   "default",
			KScale: 1.0,
		},
		HistoryDir:      "chat_history",
		InputSampleRate: 16000,
		Log:             core.DefaultLogConfig(),
		LLM:             openaillm.DefaultConfig(),
		ASR:             openaiasr.DefaultConfig(),
		TTS:             openaitts.DefaultConfig(),
		VAD:             energy.DefaultConfig(),
		Segmenter:       vad.DefaultConfig(),
		Synthesis:       tts.DefaultConfig(),
	}
}

// FromFile overlays a JSON settings file on top of the defaults. A missing
// path returns the defaults untouched.
func FromFile(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return settings, nil
}

// InjectAPIKeys fills service credentials from the environment. Config files
// never carry keys.
func (s *Settings) InjectAPIKeys() {
	key := os.Getenv("OPENAI_API_KEY")
	if s.LLM.APIKey == "" {
		s.LLM.APIKey = key
	}
	if s.ASR.APIKey == "" {
		s.ASR.APIKey = key
	}
	if s.TTS.APIKey == "" {
		s.TTS.APIKey = key
	}
}

// Addr is the host:port the server listens on.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
