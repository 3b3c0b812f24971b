package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/vector"
)

const namespace = "semdex"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ingestedFiles *prometheus.CounterVec
	searches      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics registers the collectors. records, when non-nil, backs the
// record count gauge.
func NewMetrics(records func() int) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		ingestedFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_files_total",
				Help:      "Files processed by ingestion, by outcome status and failure kind",
			},
			[]string{"status", "kind"},
		),
		searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Search requests by outcome",
			},
			[]string{"outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of service operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	if records != nil {
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records",
				Help:      "Records stored in the vector index",
			},
			func() float64 { return float64(records()) },
		)
	}
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentingMiddleware records counts and latencies of service calls.
func InstrumentingMiddleware(m *Metrics) ServiceMiddleware {
	return func(next Service) Service {
		return &instrumentingMiddleware{m: m, next: next}
	}
}

type instrumentingMiddleware struct {
	m    *Metrics
	next Service
}

func (mw *instrumentingMiddleware) observe(op string, start time.Time) {
	mw.m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (mw *instrumentingMiddleware) Ingest(ctx context.Context, files []models.File) (*models.IngestReport, error) {
	defer mw.observe("ingest", time.Now())

	report, err := mw.next.Ingest(ctx, files)
	if report != nil {
		for _, o := range report.Outcomes {
			mw.m.ingestedFiles.WithLabelValues(o.Status, o.Kind).Inc()
		}
	}
	return report, err
}

func (mw *instrumentingMiddleware) Search(ctx context.Context, query string, k int) (*models.QueryResponse, error) {
	defer mw.observe("search", time.Now())

	resp, err := mw.next.Search(ctx, query, k)
	mw.m.searches.WithLabelValues(searchOutcome(err)).Inc()
	return resp, err
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, embedding.ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, vector.ErrIndexUnavailable):
		return "index_unavailable"
	default:
		return "error"
	}
}

func (mw *instrumentingMiddleware) Document(ctx context.Context, id string) (*models.Record, error) {
	defer mw.observe("document", time.Now())
	return mw.next.Document(ctx, id)
}

func (mw *instrumentingMiddleware) Status(ctx context.Context) (*models.Status, error) {
	defer mw.observe("status", time.Now())
	return mw.next.Status(ctx)
}

func (mw *instrumentingMiddleware) Close() error {
	return mw.next.Close()
}
