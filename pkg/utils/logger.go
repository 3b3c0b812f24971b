package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (info level).
// format overrides the encoding ("json" or "console"); empty keeps the preset.
func NewLogger(debug bool, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	switch format {
	case "":
	case "json", "console":
		cfg.Encoding = format
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
