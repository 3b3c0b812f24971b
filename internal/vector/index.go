// Package vector stores document records with their embeddings and answers
// k-nearest-neighbor queries by cosine similarity.
package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/semdex/internal/models"
)

// MetricCosine is the only similarity metric. Scores are in [-1, 1], higher is closer.
const MetricCosine = "cosine"

var (
	// ErrDimensionMismatch means a vector's length differs from the index dimension.
	ErrDimensionMismatch = models.ErrDimensionMismatch
	// ErrIndexUnavailable means the backend cannot be reached or has been closed.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrNotFound means no record has the requested id.
	ErrNotFound = errors.New("record not found")
)

// Index is a durable store of records searchable by vector similarity.
// Implementations are safe for concurrent use.
type Index interface {
	// Insert stores rec. rec.Vector must have Dimensions() components.
	Insert(ctx context.Context, rec *models.Record) error
	// Query returns up to k records ranked by similarity to vector. An
	// empty index yields an empty result, not an error.
	Query(ctx context.Context, vector []float32, k int) ([]*models.Result, error)
	Get(ctx context.Context, id string) (*models.Record, error)
	Count() int
	Dimensions() int
	Type() string
	Close() error
}

func checkDimensions(vec []float32, dims int) error {
	if len(vec) != dims {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), dims)
	}
	return nil
}

func checkRecord(rec *models.Record, dims int) error {
	if rec == nil || rec.ID == "" {
		return errors.New("record id is required")
	}
	return checkDimensions(rec.Vector, dims)
}
