package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/pkg/utils"
)

// Guard wraps a provider with the checks every caller relies on: blank
// input is rejected, long input is truncated, results are cached, the
// number of in-flight provider calls is bounded, and provider panics and
// errors surface as ErrEmbedding.
type Guard struct {
	inner         Embedder
	sem           *semaphore.Weighted
	cache         *Cache
	maxInputChars int
	logger        *zap.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithMaxConcurrency bounds simultaneous provider calls.
func WithMaxConcurrency(n int64) GuardOption {
	return func(g *Guard) {
		if n > 0 {
			g.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithCacheSize enables an LRU of the given capacity.
func WithCacheSize(n int) GuardOption {
	return func(g *Guard) {
		if n > 0 {
			g.cache = NewCache(n)
		}
	}
}

// WithMaxInputChars truncates input longer than n runes at a word boundary.
func WithMaxInputChars(n int) GuardOption {
	return func(g *Guard) {
		g.maxInputChars = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard wraps inner. Without options calls are serialized and uncached.
func NewGuard(inner Embedder, opts ...GuardOption) *Guard {
	g := &Guard{
		inner:  inner,
		sem:    semaphore.NewWeighted(1),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Prepare returns the text that will actually be embedded and whether it was truncated.
func (g *Guard) Prepare(text string) (string, bool) {
	return utils.TruncateWords(text, g.maxInputChars)
}

// Embed validates and embeds text.
func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmbedding)
	}
	text, truncated := g.Prepare(text)
	if truncated {
		g.logger.Debug("truncated embedding input", zap.Int("max_chars", g.maxInputChars))
	}

	if g.cache != nil {
		if vec, ok := g.cache.Get(text); ok {
			return vec, nil
		}
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	start := time.Now()
	vec, err := g.call(ctx, text)
	g.sem.Release(1)
	if err != nil {
		g.logger.Warn("embedding failed", zap.String("provider", g.inner.Name()), zap.Error(err))
		return nil, err
	}

	if len(vec) != g.inner.Dimensions() {
		return nil, fmt.Errorf("%w: %s returned %d values, want %d",
			models.ErrDimensionMismatch, g.inner.Name(), len(vec), g.inner.Dimensions())
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: %s returned non-finite values", ErrEmbedding, g.inner.Name())
		}
	}

	g.logger.Debug("embedded text",
		zap.String("provider", g.inner.Name()),
		zap.Int("runes", len([]rune(text))),
		zap.Duration("took", time.Since(start)))

	if g.cache != nil {
		g.cache.Set(text, vec)
	}
	return vec, nil
}

func (g *Guard) call(ctx context.Context, text string) (vec []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vec = nil
			err = fmt.Errorf("%w: provider panic: %v", ErrEmbedding, r)
		}
	}()
	vec, err = g.inner.Embed(ctx, text)
	if err != nil && !errors.Is(err, ErrEmbedding) {
		err = fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	return vec, err
}

// MaxInputChars returns the truncation limit; zero means unlimited.
func (g *Guard) MaxInputChars() int {
	return g.maxInputChars
}

// Dimensions returns the provider's dimension.
func (g *Guard) Dimensions() int {
	return g.inner.Dimensions()
}

// Name returns the provider's name.
func (g *Guard) Name() string {
	return g.inner.Name()
}

// Close releases the provider.
func (g *Guard) Close() error {
	return g.inner.Close()
}
