package vector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Meta pins the vector space an index was built in. It is written when
// the index is created and checked every time it is reopened.
type Meta struct {
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"`
	Embedder   string `yaml:"embedder"`
}

// NewMeta returns cosine metadata for the given dimension and embedder name.
func NewMeta(dimensions int, embedder string) Meta {
	return Meta{Dimensions: dimensions, Metric: MetricCosine, Embedder: embedder}
}

// Compatible reports why an index built with m cannot serve want.
func (m Meta) Compatible(want Meta) error {
	if m.Dimensions != want.Dimensions {
		return fmt.Errorf("%w: index holds %d-dimensional vectors, embedder produces %d",
			ErrDimensionMismatch, m.Dimensions, want.Dimensions)
	}
	if m.Metric != want.Metric {
		return fmt.Errorf("index uses metric %q, configured %q", m.Metric, want.Metric)
	}
	if m.Embedder != "" && want.Embedder != "" && m.Embedder != want.Embedder {
		return fmt.Errorf("index was built with embedder %q, configured %q", m.Embedder, want.Embedder)
	}
	return nil
}

// ensureMetaFile writes want to path if absent, otherwise checks compatibility.
func ensureMetaFile(path string, want Meta) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
		out, err := yaml.Marshal(want)
		if err != nil {
			return fmt.Errorf("marshal index meta: %w", err)
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("write index meta: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index meta: %w", err)
	}

	var stored Meta
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse index meta: %w", err)
	}
	return stored.Compatible(want)
}
