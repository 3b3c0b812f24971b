package vector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/pkg/utils"
)

// Reserved chromem metadata keys for record fields chromem has no slot for.
const (
	chromemSourceKey  = "_source_name"
	chromemCreatedKey = "_created_at"
)

var errNoEmbedding = errors.New("documents must be inserted with an embedding")

// ChromemIndex stores records in a persistent chromem-go collection.
type ChromemIndex struct {
	collection *chromem.Collection
	path       string
	dims       int
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChromemIndex opens the collection under dir, creating it if needed.
func NewChromemIndex(dir, collection string, compress bool, meta Meta, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ensureMetaFile(filepath.Join(dir, "meta.yaml"), meta); err != nil {
		return nil, err
	}

	db, err := chromem.NewPersistentDB(filepath.Join(dir, "chromem"), compress)
	if err != nil {
		return nil, fmt.Errorf("%w: open chromem db: %w", ErrIndexUnavailable, err)
	}

	// Records always carry embeddings; the collection must never embed on its own.
	noEmbed := func(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }
	c, err := db.GetOrCreateCollection(collection, map[string]string{"metric": meta.Metric}, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("%w: open collection %s: %w", ErrIndexUnavailable, collection, err)
	}

	logger.Info("opened chromem vector index",
		zap.String("path", dir),
		zap.String("collection", collection),
		zap.Int("records", c.Count()))

	return &ChromemIndex{collection: c, path: dir, dims: meta.Dimensions, logger: logger}, nil
}

// Insert adds rec to the collection; chromem persists it immediately.
func (c *ChromemIndex) Insert(ctx context.Context, rec *models.Record) error {
	if err := checkRecord(rec, c.dims); err != nil {
		return err
	}
	if c.isClosed() {
		return fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	metadata := models.CloneMetadata(rec.Metadata)
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata[chromemSourceKey] = rec.SourceName
	metadata[chromemCreatedKey] = strconv.FormatInt(rec.CreatedAt.UnixNano(), 10)

	doc := chromem.Document{
		ID:        rec.ID,
		Metadata:  metadata,
		Embedding: utils.NormalizedCopy(rec.Vector),
		Content:   rec.Text,
	}
	if err := c.collection.AddDocument(ctx, doc); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("insert record: %w", err)
		}
		return fmt.Errorf("%w: insert record: %w", ErrIndexUnavailable, err)
	}
	return nil
}

// Query returns up to k nearest documents; k is clamped to the collection size.
func (c *ChromemIndex) Query(ctx context.Context, vector []float32, k int) ([]*models.Result, error) {
	if err := checkDimensions(vector, c.dims); err != nil {
		return nil, err
	}
	if c.isClosed() {
		return nil, fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}

	results := make([]*models.Result, 0)
	if n := c.collection.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return results, nil
	}

	hits, err := c.collection.QueryEmbedding(ctx, utils.NormalizedCopy(vector), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrIndexUnavailable, err)
	}
	for _, h := range hits {
		rec := fromChromem(h.ID, h.Content, h.Metadata)
		results = append(results, models.NewResult(rec, float64(h.Similarity)))
	}
	return results, nil
}

// Get returns the document with id.
func (c *ChromemIndex) Get(ctx context.Context, id string) (*models.Record, error) {
	if c.isClosed() {
		return nil, fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}
	doc, err := c.collection.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec := fromChromem(doc.ID, doc.Content, doc.Metadata)
	rec.Vector = doc.Embedding
	return rec, nil
}

func fromChromem(id, content string, metadata map[string]string) *models.Record {
	rec := &models.Record{ID: id, Text: content, Metadata: make(map[string]string, len(metadata))}
	for k, v := range metadata {
		switch k {
		case chromemSourceKey:
			rec.SourceName = v
		case chromemCreatedKey:
			if ns, err := strconv.ParseInt(v, 10, 64); err == nil {
				rec.CreatedAt = time.Unix(0, ns)
			}
		default:
			if !strings.HasPrefix(k, "_") {
				rec.Metadata[k] = v
			}
		}
	}
	return rec
}

func (c *ChromemIndex) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Count returns the number of documents.
func (c *ChromemIndex) Count() int {
	return c.collection.Count()
}

// Dimensions returns the vector dimension.
func (c *ChromemIndex) Dimensions() int {
	return c.dims
}

// Type returns "chromem".
func (c *ChromemIndex) Type() string {
	return TypeChromem
}

// Close marks the index closed. chromem writes every document as it is added.
func (c *ChromemIndex) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
