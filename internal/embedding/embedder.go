// Package embedding turns text into fixed-length vectors.
//
// Providers (hash, ONNX, OpenAI-compatible) implement Embedder; a Guard wraps
// the chosen provider with input validation, truncation, caching and a
// concurrency bound, and is the only Embedder the rest of the service sees.
package embedding

import (
	"context"
	"errors"
)

// ErrEmbedding wraps every failure to produce a vector.
var ErrEmbedding = errors.New("embedding failed")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	// Name identifies the provider and model, e.g. "openai:text-embedding-3-small".
	Name() string
	Close() error
}
