// Package logging builds the zap loggers shared by the binaries.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger, or a console logger when development
// is set. level accepts the zap level names (debug, info, warn, error).
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Must is New for main packages; it falls back to a production logger at info
// level when the configured level cannot be parsed.
func Must(level string, development bool) *zap.Logger {
	logger, err := New(level, development)
	if err == nil {
		return logger
	}
	fallback, ferr := zap.NewProduction()
	if ferr != nil {
		return zap.NewNop()
	}
	fallback.Warn("invalid log configuration, using defaults", zap.Error(err))
	return fallback
}
