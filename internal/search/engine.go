// Package search answers free-text queries against the vector index.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/config"
	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/vector"
)

// Engine embeds a query and returns the nearest stored records.
type Engine struct {
	embedder embedding.Embedder
	index    vector.Index
	defaultK int
	maxK     int
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for query events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine. cfg may be nil; defaults are then used.
func NewEngine(embedder embedding.Embedder, index vector.Index, cfg *config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{
		embedder: embedder,
		index:    index,
		defaultK: config.DefaultK,
		maxK:     config.DefaultMaxK,
		logger:   zap.NewNop(),
	}
	if cfg != nil {
		if cfg.DefaultK > 0 {
			e.defaultK = cfg.DefaultK
		}
		if cfg.MaxK > 0 {
			e.maxK = cfg.MaxK
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns up to k records most similar to query, best first. k <= 0
// selects the default and values above the maximum are capped. Embedding
// failures, including a blank query, are returned as embedding.ErrEmbedding.
func (e *Engine) Search(ctx context.Context, query string, k int) (*models.QueryResponse, error) {
	start := time.Now()
	k = models.NormalizeK(k, e.defaultK, e.maxK)

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := e.index.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	for i, r := range results {
		r.Rank = i + 1
	}

	resp := &models.QueryResponse{
		Query:   query,
		K:       k,
		Results: results,
		Total:   len(results),
		TookMS:  time.Since(start).Milliseconds(),
	}
	e.logger.Debug("search",
		zap.Int("k", k),
		zap.Int("results", resp.Total),
		zap.Int64("took_ms", resp.TookMS))
	return resp, nil
}

// DefaultK returns the k used when a request leaves it unset.
func (e *Engine) DefaultK() int { return e.defaultK }

// MaxK returns the largest k served.
func (e *Engine) MaxK() int { return e.maxK }
