package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"vocalink/config"
	"vocalink/core"
	"vocalink/history"
	"vocalink/pipeline"
	"vocalink/router"
	"vocalink/server"
	openaiasr "vocalink/services/openai/asr"
	openaillm "vocalink/services/openai/llm"
	openaitts "vocalink/services/openai/tts"
	"vocalink/session"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", getEnv("SETTINGS_PATH", "./settings.json"), "path to the JSON settings file")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.NewDevelopmentLogger().Warn("no .env.local file found or failed to load", "error", err.Error())
	}

	settings, err := config.FromFile(configPath)
	if err != nil {
		core.NewDevelopmentLogger().Fatal("settings load failed", "path", configPath, "error", err.Error())
	}
	settings.InjectAPIKeys()

	var logger *core.Logger
	if settings.Log.File != "" {
		logger = core.NewProductionLogger(settings.Log)
	} else {
		logger = core.NewDevelopmentLogger()
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llmService := openaillm.NewOpenAILLMService(settings.LLM)
	asrService := openaiasr.NewOpenAIASRService(settings.ASR)
	ttsService := openaitts.NewOpenAITTSService(settings.TTS)
	for name, svc := range map[string]core.IService{
		"llm": llmService,
		"asr": asrService,
		"tts": ttsService,
	} {
		if err := svc.Init(ctx); err != nil {
			// The server still serves text-side traffic when a provider is
			// unconfigured; the affected stage fails per run.
			logger.Warn("service init failed", "service", name, "error", err.Error())
		}
	}

	var store history.Store
	if settings.HistoryDir != "" {
		store, err = history.NewFileStore(settings.HistoryDir)
		if err != nil {
			logger.Fatal("history store setup failed", "dir", settings.HistoryDir, "error", err.Error())
		}
	} else {
		store = history.NewMemoryStore()
	}

	pipe := pipeline.New(asrService, llmService, ttsService, settings.Synthesis, logger)
	registry := session.NewRegistry(logger)
	rt := router.New(registry, store, pipe, &settings, logger)
	srv := server.New(&settings, registry, rt, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err.Error())
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", "error", err.Error())
	}
	_ = llmService.Cleanup()
	_ = asrService.Cleanup()
	_ = ttsService.Cleanup()
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
