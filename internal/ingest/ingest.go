// Package ingest drives extraction, embedding and insertion for batches of files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/extract"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/vector"
)

// Extractor turns raw file content into plain text.
type Extractor interface {
	Extract(content []byte, filename string) (string, error)
}

// preparer is implemented by embedders that rewrite input before embedding,
// such as the guard's truncation.
type preparer interface {
	Prepare(text string) (string, bool)
}

// Ingester runs the per-file pipeline. It is safe for concurrent use;
// batches may interleave their insertions.
type Ingester struct {
	extractor Extractor
	embedder  embedding.Embedder
	index     vector.Index
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for per-file events.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(in *Ingester) { in.now = now }
}

// NewIngester creates an ingester over the shared extractor, embedder and index.
func NewIngester(extractor Extractor, embedder embedding.Embedder, index vector.Index, opts ...Option) *Ingester {
	in := &Ingester{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest processes files strictly in order. Per-file failures are recorded in
// the report. A catastrophic failure stops the batch: the remaining files are
// marked aborted and the report is returned together with the error.
func (in *Ingester) Ingest(ctx context.Context, files []models.File) (*models.IngestReport, error) {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return in.run(ctx, names, func(i int) models.File { return files[i] })
}

// IngestPaths reads and ingests local files, one at a time.
func (in *Ingester) IngestPaths(ctx context.Context, paths []string) (*models.IngestReport, error) {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return in.run(ctx, names, func(i int) models.File { return ReadFile(paths[i]) })
}

// ReadFile loads a file from disk. A read error is carried in the result.
func ReadFile(path string) models.File {
	content, err := os.ReadFile(path)
	return models.File{Name: filepath.Base(path), Content: content, ReadErr: err}
}

func (in *Ingester) run(ctx context.Context, names []string, load func(int) models.File) (*models.IngestReport, error) {
	start := time.Now()
	n := len(names)
	report := &models.IngestReport{Outcomes: make([]models.Outcome, 0, n)}

	var fatal error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			fatal = fmt.Errorf("ingest cancelled: %w", err)
			abortFrom(report, names[i:])
			break
		}

		outcome, err := in.ingestOne(ctx, load(i))
		report.Outcomes = append(report.Outcomes, outcome)
		if err != nil {
			fatal = err
			abortFrom(report, names[i+1:])
			break
		}
	}

	if fatal != nil {
		report.Error = fatal.Error()
	}
	report.Finalize()

	fields := []zap.Field{
		zap.String("status", report.Status),
		zap.Int("files", n),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("aborted", report.Aborted),
		zap.Duration("took", time.Since(start)),
	}
	if fatal != nil {
		in.logger.Error("ingest batch aborted", append(fields, zap.Error(fatal))...)
		return report, fatal
	}
	in.logger.Info("ingest batch finished", fields...)
	return report, nil
}

func abortFrom(report *models.IngestReport, names []string) {
	for _, name := range names {
		report.Outcomes = append(report.Outcomes, models.Outcome{
			Filename: name,
			Status:   models.StatusAborted,
		})
	}
}

// ingestOne returns the file's outcome and a non-nil error only when the
// failure must stop the batch.
func (in *Ingester) ingestOne(ctx context.Context, f models.File) (models.Outcome, error) {
	out := models.Outcome{Filename: f.Name}

	if f.ReadErr != nil {
		return in.fail(out, models.KindRead, f.ReadErr), nil
	}

	text, err := in.extractor.Extract(f.Content, f.Name)
	if err != nil {
		if errors.Is(err, extract.ErrEmptyContent) {
			return in.fail(out, models.KindEmptyContent, err), nil
		}
		return in.fail(out, models.KindExtraction, err), nil
	}

	vec, err := in.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			return in.fail(out, models.KindEmbedding, err), fmt.Errorf("embed %s: %w", f.Name, err)
		}
		return in.fail(out, models.KindEmbedding, err), nil
	}

	now := in.now().UTC()
	metadata := map[string]string{
		models.MetaFilename:   f.Name,
		models.MetaExtension:  strings.ToLower(filepath.Ext(f.Name)),
		models.MetaSizeBytes:  strconv.Itoa(len(f.Content)),
		models.MetaIngestedAt: now.Format(time.RFC3339),
	}
	if p, ok := in.embedder.(preparer); ok {
		if _, truncated := p.Prepare(text); truncated {
			metadata[models.MetaTruncated] = "true"
		}
	}

	rec := &models.Record{
		ID:         in.newID(),
		Text:       text,
		SourceName: f.Name,
		Metadata:   metadata,
		Vector:     vec,
		CreatedAt:  now,
	}
	if err := in.index.Insert(ctx, rec); err != nil {
		return in.fail(out, models.KindIndex, err), fmt.Errorf("insert %s: %w", f.Name, err)
	}

	in.logger.Debug("ingested file",
		zap.String("filename", f.Name),
		zap.String("id", rec.ID),
		zap.Int("runes", len([]rune(text))))

	out.Status = models.StatusSucceeded
	out.ID = rec.ID
	return out, nil
}

func (in *Ingester) fail(out models.Outcome, kind string, err error) models.Outcome {
	in.logger.Warn("file not ingested",
		zap.String("filename", out.Filename),
		zap.String("kind", kind),
		zap.Error(err))
	out.Status = models.StatusFailed
	out.Kind = kind
	out.Error = err.Error()
	return out
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
