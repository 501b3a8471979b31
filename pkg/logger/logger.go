package logger

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	Level       string
	Environment string
	// Service is attached to every entry as the "service" field.
	Service string
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// New builds the process logger. Production writes sampled JSON, since a
// busy landing page sends a heartbeat per visitor every few seconds. Other
// environments get a colored console.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config

	switch opts.Environment {
	case "production":
		config = zap.NewProductionConfig()
		config.Encoding = "json"
		config.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	default:
		config = zap.NewDevelopmentConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.Sampling = nil
	}

	config.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if len(opts.OutputPaths) > 0 {
		config.OutputPaths = opts.OutputPaths
	}
	if opts.Service != "" {
		config.InitialFields = map[string]any{"service": opts.Service}
	}

	logger, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// ParseLevel falls back to info for anything zap does not understand.
func ParseLevel(level string) zapcore.Level {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return zapLevel
}

// Sync flushes logger. Terminals and pipes reject fsync, those errors are
// ignored.
func Sync(logger *zap.Logger) {
	err := logger.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return
	}
	fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
}
