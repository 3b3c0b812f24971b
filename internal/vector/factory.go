package vector

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/config"
)

// Index types.
const (
	TypeSQLite  = "sqlite"
	TypeChromem = "chromem"
	TypeMemory  = "memory"
)

// Open creates the configured index under cfg.Path. The stored metadata
// must match meta, otherwise Open fails. cfg.Path is locked until Close;
// a second Open of the same directory fails with ErrLocked.
func Open(ctx context.Context, cfg config.VectorConfig, meta Meta, logger *zap.Logger) (Index, error) {
	if cfg.Path == "" {
		return open(ctx, cfg, meta, logger)
	}
	lock, err := lockDir(cfg.Path)
	if err != nil {
		return nil, err
	}
	idx, err := open(ctx, cfg, meta, logger)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &lockedIndex{Index: idx, lock: lock}, nil
}

func open(ctx context.Context, cfg config.VectorConfig, meta Meta, logger *zap.Logger) (Index, error) {
	if meta.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", meta.Dimensions)
	}
	if meta.Metric == "" {
		meta.Metric = MetricCosine
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("vector")

	switch cfg.Type {
	case TypeSQLite, "":
		driver := cfg.SQLiteDriver
		if driver == "" {
			driver = DriverModernc
		}
		return NewSQLiteIndex(ctx, filepath.Join(cfg.Path, "records.db"), driver, meta, logger)
	case TypeChromem:
		collection := cfg.Collection
		if collection == "" {
			collection = "documents"
		}
		return NewChromemIndex(cfg.Path, collection, cfg.Compress, meta, logger)
	case TypeMemory:
		snapshot := ""
		if cfg.Path != "" {
			snapshot = filepath.Join(cfg.Path, "memory.gob")
		}
		return NewMemoryIndex(meta, snapshot)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: sqlite, chromem, memory)", cfg.Type)
	}
}
