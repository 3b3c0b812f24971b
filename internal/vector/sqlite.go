package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/pkg/utils"
)

// SQLite driver names: "sqlite3" is mattn/go-sqlite3 (cgo), "sqlite" is modernc.org/sqlite.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// SQLiteIndex keeps records in SQLite and their unit vectors in memory for
// exact search. Writes go through a single connection.
type SQLiteIndex struct {
	db     *sql.DB
	path   string
	dims   int
	logger *zap.Logger

	mu     sync.RWMutex
	flat   flat
	closed bool
}

// NewSQLiteIndex opens or creates the database at path with the given driver,
// verifies its metadata against meta, and loads every stored vector.
func NewSQLiteIndex(ctx context.Context, path, driver string, meta Meta, logger *zap.Logger) (*SQLiteIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrIndexUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	idx := &SQLiteIndex{db: db, path: path, dims: meta.Dimensions, logger: logger}
	if err := idx.init(ctx, meta); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("opened sqlite vector index",
		zap.String("path", path),
		zap.String("driver", driver),
		zap.Int("records", idx.flat.len()))
	return idx, nil
}

func (s *SQLiteIndex) init(ctx context.Context, meta Meta) error {
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrIndexUnavailable, pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		source_name TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.ensureMeta(ctx, meta); err != nil {
		return err
	}
	return s.loadVectors(ctx)
}

func (s *SQLiteIndex) ensureMeta(ctx context.Context, want Meta) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return fmt.Errorf("read index meta: %w", err)
	}
	stored := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return fmt.Errorf("read index meta: %w", err)
		}
		stored[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read index meta: %w", err)
	}

	if len(stored) == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO index_meta (key, value) VALUES ('dimensions', ?), ('metric', ?), ('embedder', ?)`,
			strconv.Itoa(want.Dimensions), want.Metric, want.Embedder)
		if err != nil {
			return fmt.Errorf("write index meta: %w", err)
		}
		return nil
	}

	dims, err := strconv.Atoi(stored["dimensions"])
	if err != nil {
		return fmt.Errorf("corrupt index meta dimensions %q", stored["dimensions"])
	}
	return Meta{Dimensions: dims, Metric: stored["metric"], Embedder: stored["embedder"]}.Compatible(want)
}

func (s *SQLiteIndex) loadVectors(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM records ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("load vectors: %w", err)
		}
		vec := bytesToFloat32Slice(blob)
		if err := checkDimensions(vec, s.dims); err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		s.flat.add(id, vec)
	}
	return rows.Err()
}

// Insert stores rec durably, then makes it searchable.
func (s *SQLiteIndex) Insert(ctx context.Context, rec *models.Record) error {
	if err := checkRecord(rec, s.dims); err != nil {
		return err
	}
	if s.isClosed() {
		return fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	unit := utils.NormalizedCopy(rec.Vector)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, source_name, content, metadata, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceName, rec.Text, string(metadata), float32SliceToBytes(unit), rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return s.classify("insert record", err)
	}

	s.mu.Lock()
	s.flat.add(rec.ID, unit)
	s.mu.Unlock()
	return nil
}

// Query ranks stored vectors in memory and loads the winners' rows.
func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, k int) ([]*models.Result, error) {
	if err := checkDimensions(vector, s.dims); err != nil {
		return nil, err
	}
	unit := utils.NormalizedCopy(vector)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}
	hits := s.flat.search(unit, k)
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = s.flat.ids[h.pos]
	}
	s.mu.RUnlock()

	results := make([]*models.Result, 0, len(hits))
	if len(hits) == 0 {
		return results, nil
	}

	records, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, h := range hits {
		rec, ok := records[ids[i]]
		if !ok {
			continue
		}
		results = append(results, models.NewResult(rec, h.score))
	}
	return results, nil
}

func (s *SQLiteIndex) fetch(ctx context.Context, ids []string) (map[string]*models.Record, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_name, content, metadata, created_at FROM records WHERE id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, s.classify("fetch records", err)
	}
	defer rows.Close()

	out := make(map[string]*models.Record, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("fetch records", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec       models.Record
		metadata  string
		createdAt int64
	)
	if err := row.Scan(&rec.ID, &rec.SourceName, &rec.Text, &metadata, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdAt)
	return &rec, nil
}

// Get returns the record with id, including its stored unit vector.
func (s *SQLiteIndex) Get(ctx context.Context, id string) (*models.Record, error) {
	if s.isClosed() {
		return nil, fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_name, content, metadata, created_at FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, s.classify("get record", err)
	}

	var blob []byte
	if err := s.db.QueryRowContext(ctx, `SELECT embedding FROM records WHERE id = ?`, id).Scan(&blob); err == nil {
		rec.Vector = bytesToFloat32Slice(blob)
	}
	return rec, nil
}

// classify keeps context errors as they are and reports everything else
// from the database as the index being unavailable.
func (s *SQLiteIndex) classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Error("sqlite index error", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrIndexUnavailable, op, err)
}

func (s *SQLiteIndex) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Count returns the number of records.
func (s *SQLiteIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flat.len()
}

// Dimensions returns the vector dimension.
func (s *SQLiteIndex) Dimensions() int {
	return s.dims
}

// Type returns "sqlite".
func (s *SQLiteIndex) Type() string {
	return TypeSQLite
}

// Close closes the database. Later calls fail with ErrIndexUnavailable.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
