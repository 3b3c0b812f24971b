// Package service ties ingestion, search and the index into the operations
// exposed over HTTP, NATS and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/ingest"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/search"
	"github.com/hyperjump/semdex/internal/vector"
)

// Service defines the operations of semdex.
type Service interface {

	// Ingest stores every readable, extractable file as one record.
	Ingest(ctx context.Context, files []models.File) (*models.IngestReport, error)

	// Search returns the k records closest to query.
	Search(ctx context.Context, query string, k int) (*models.QueryResponse, error)

	// Document returns a stored record by id.
	Document(ctx context.Context, id string) (*models.Record, error)

	// Status describes the index and embedder in use.
	Status(ctx context.Context) (*models.Status, error)

	// Close releases the index and the embedder.
	Close() error
}

type ServiceMiddleware func(Service) Service

// Option configures the service.
type Option func(*service)

// WithDataPath sets the directory reported in disk usage.
func WithDataPath(path string) Option {
	return func(s *service) { s.dataPath = path }
}

// WithVersion sets the version reported by Status.
func WithVersion(v string) Option {
	return func(s *service) { s.version = v }
}

// NewService builds the service over a shared embedder and index. The
// service owns both and closes them on Close.
func NewService(embedder embedding.Embedder, index vector.Index, ingester *ingest.Ingester, engine *search.Engine, opts ...Option) Service {
	svc := &service{
		embedder: embedder,
		index:    index,
		ingester: ingester,
		engine:   engine,
		log:      zap.L().With(zap.String("service", "semdex")),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type service struct {
	embedder embedding.Embedder
	index    vector.Index
	ingester *ingest.Ingester
	engine   *search.Engine
	dataPath string
	version  string
	log      *zap.Logger
}

func (svc *service) Ingest(ctx context.Context, files []models.File) (*models.IngestReport, error) {
	return svc.ingester.Ingest(ctx, files)
}

func (svc *service) Search(ctx context.Context, query string, k int) (*models.QueryResponse, error) {
	return svc.engine.Search(ctx, query, k)
}

func (svc *service) Document(ctx context.Context, id string) (*models.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", vector.ErrNotFound)
	}
	return svc.index.Get(ctx, id)
}

func (svc *service) Status(ctx context.Context) (*models.Status, error) {
	disk, err := vector.DiskUsageBytes(svc.dataPath)
	if err != nil {
		svc.log.Warn("disk usage unavailable", zap.String("path", svc.dataPath), zap.Error(err))
	}
	return &models.Status{
		Records:    svc.index.Count(),
		Dimensions: svc.index.Dimensions(),
		Metric:     vector.MetricCosine,
		IndexType:  svc.index.Type(),
		Embedder:   svc.embedder.Name(),
		DiskBytes:  disk,
		Version:    svc.version,
	}, nil
}

func (svc *service) Close() error {
	return errors.Join(svc.index.Close(), svc.embedder.Close())
}
