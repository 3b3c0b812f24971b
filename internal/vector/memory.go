package vector

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/pkg/utils"
)

// MemoryIndex is an in-memory brute-force index. With a snapshot path it
// loads the snapshot on open and writes it on Save and Close.
type MemoryIndex struct {
	meta     Meta
	snapshot string

	mu      sync.RWMutex
	flat    flat
	records map[string]*models.Record
	closed  bool
}

type memorySnapshot struct {
	Meta    Meta
	Records []*snapshotRecord
}

type snapshotRecord struct {
	ID         string
	Text       string
	SourceName string
	Metadata   map[string]string
	Vector     []float32
	CreatedAt  time.Time
}

// NewMemoryIndex creates an index for meta.Dimensions-sized vectors. An
// empty snapshot path keeps everything in memory only.
func NewMemoryIndex(meta Meta, snapshot string) (*MemoryIndex, error) {
	if meta.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m := &MemoryIndex{meta: meta, snapshot: snapshot, records: make(map[string]*models.Record)}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryIndex) load() error {
	if m.snapshot == "" {
		return nil
	}
	f, err := os.Open(m.snapshot)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index snapshot: %w", err)
	}
	defer f.Close()

	var snap memorySnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decode index snapshot: %w", err)
	}
	if err := snap.Meta.Compatible(m.meta); err != nil {
		return err
	}
	for _, r := range snap.Records {
		rec := &models.Record{
			ID:         r.ID,
			Text:       r.Text,
			SourceName: r.SourceName,
			Metadata:   r.Metadata,
			Vector:     r.Vector,
			CreatedAt:  r.CreatedAt,
		}
		m.records[rec.ID] = rec
		m.flat.add(rec.ID, rec.Vector)
	}
	return nil
}

// Insert adds a copy of rec.
func (m *MemoryIndex) Insert(_ context.Context, rec *models.Record) error {
	if err := checkRecord(rec, m.meta.Dimensions); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	stored := &models.Record{
		ID:         rec.ID,
		Text:       rec.Text,
		SourceName: rec.SourceName,
		Metadata:   models.CloneMetadata(rec.Metadata),
		Vector:     utils.NormalizedCopy(rec.Vector),
		CreatedAt:  rec.CreatedAt,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}
	if _, exists := m.records[stored.ID]; exists {
		return fmt.Errorf("duplicate record id %s", stored.ID)
	}
	m.records[stored.ID] = stored
	m.flat.add(stored.ID, stored.Vector)
	return nil
}

// Query returns the top-k records by cosine similarity.
func (m *MemoryIndex) Query(_ context.Context, vector []float32, k int) ([]*models.Result, error) {
	if err := checkDimensions(vector, m.meta.Dimensions); err != nil {
		return nil, err
	}
	unit := utils.NormalizedCopy(vector)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}

	hits := m.flat.search(unit, k)
	results := make([]*models.Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.NewResult(m.records[m.flat.ids[h.pos]], h.score))
	}
	return results, nil
}

// Get returns a copy of the record with id.
func (m *MemoryIndex) Get(_ context.Context, id string) (*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("%w: index closed", ErrIndexUnavailable)
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *rec
	out.Metadata = models.CloneMetadata(rec.Metadata)
	return &out, nil
}

// Save writes the snapshot, replacing the previous one atomically.
func (m *MemoryIndex) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.save()
}

func (m *MemoryIndex) save() error {
	if m.snapshot == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.snapshot), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	snap := memorySnapshot{Meta: m.meta, Records: make([]*snapshotRecord, 0, len(m.flat.ids))}
	for _, id := range m.flat.ids {
		r := m.records[id]
		snap.Records = append(snap.Records, &snapshotRecord{
			ID: r.ID, Text: r.Text, SourceName: r.SourceName,
			Metadata: r.Metadata, Vector: r.Vector, CreatedAt: r.CreatedAt,
		})
	}

	tmp := m.snapshot + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		return fmt.Errorf("encode index snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index snapshot: %w", err)
	}
	if err := os.Rename(tmp, m.snapshot); err != nil {
		return fmt.Errorf("replace index snapshot: %w", err)
	}
	return nil
}

// Count returns the number of records.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flat.len()
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.meta.Dimensions
}

// Type returns "memory".
func (m *MemoryIndex) Type() string {
	return TypeMemory
}

// Close saves the snapshot and rejects further calls.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.save()
}
