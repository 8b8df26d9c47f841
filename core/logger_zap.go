package core

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls the production (zap-backed) logger.
type LogConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	File       string `json:"file"`        // log file path; empty logs to stderr only
	MaxSize    int    `json:"max_size"`    // megabytes before rotation
	MaxBackups int    `json:"max_backups"` // rotated files to keep
	MaxAge     int    `json:"max_age"`     // days to keep rotated files
	Compress   bool   `json:"compress"`
}

// DefaultLogConfig returns rotation settings suitable for a long-running server.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		File:       "logs/vocalink.log",
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
}

// NewProductionLogger builds a Logger whose handler writes structured JSON via
// zap, with lumberjack rotation when a file path is configured.
func NewProductionLogger(cfg LogConfig) *Logger {
	level := zapcore.InfoLevel
	_ = level.Set(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	sink := zapcore.AddSync(os.Stderr)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		sink = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stderr), zapcore.AddSync(rotator))
	}

	zl := zap.New(zapcore.NewCore(encoder, sink, level))
	sugar := zl.Sugar()

	handler := func(level string, msg string, attrs map[string]interface{}) {
		kv := make([]interface{}, 0, len(attrs)*2)
		for k, v := range attrs {
			kv = append(kv, k, v)
		}
		switch level {
		case "DEBUG":
			sugar.Debugw(msg, kv...)
		case "WARN":
			sugar.Warnw(msg, kv...)
		case "ERROR":
			sugar.Errorw(msg, kv...)
		case "FATAL":
			sugar.Fatalw(msg, kv...)
		default:
			sugar.Infow(msg, kv...)
		}
	}

	logger := NewLogger(handler)
	logger.syncFunc = zl.Sync
	return logger
}
