package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/hyperjump/semdex/pkg/utils"
)

const bigramWeight = 0.5

// HashEmbedder maps text to a vector with signed feature hashing over
// word unigrams and bigrams. It needs no model files and is fully
// deterministic, so texts sharing words land close together.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length feature vector for text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmbedding)
	}

	vec := make([]float32, e.dimensions)
	tokens := Tokens(trimmed)
	if len(tokens) == 0 {
		// Punctuation or symbols only.
		e.add(vec, trimmed, 1)
	}
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, bigramWeight)
		}
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(e.dimensions)
	if h>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Name identifies the hash feature space.
func (e *HashEmbedder) Name() string {
	return "hash:xxhash-features"
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
