package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/config"
)

// New builds the configured provider wrapped in a Guard. A provider that
// cannot start is an error; there is no fallback to another provider.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (*Guard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var inner Embedder
	switch cfg.Provider {
	case "hash":
		inner = NewHashEmbedder(cfg.Dimensions)
	case "onnx":
		e, err := NewONNXEmbedder(ONNXOptions{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			Model:       cfg.Model,
			Dimensions:  cfg.Dimensions,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create onnx embedder: %w", err)
		}
		inner = e
	case "openai":
		e, err := NewOpenAIEmbedder(OpenAIOptions{
			APIKey:     cfg.OpenAI.APIKey(),
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create openai embedder: %w", err)
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	logger.Info("embedder ready",
		zap.String("provider", inner.Name()),
		zap.Int("dimensions", inner.Dimensions()))

	return NewGuard(inner,
		WithMaxConcurrency(cfg.MaxConcurrency),
		WithCacheSize(cfg.CacheSize),
		WithMaxInputChars(cfg.MaxInputChars),
		WithLogger(logger.Named("embedding")),
	), nil
}
