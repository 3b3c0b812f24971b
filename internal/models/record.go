// Package models defines core data structures for records, queries, and ingestion outcomes.
package models

import "time"

// Metadata keys written for every ingested record.
const (
	MetaFilename   = "filename"
	MetaExtension  = "extension"
	MetaSizeBytes  = "size_bytes"
	MetaIngestedAt = "ingested_at"
	MetaTruncated  = "truncated"
)

// Record is a stored document: its text, source name and embedding.
// Records are immutable once inserted.
type Record struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	SourceName string            `json:"source_name"`
	Metadata   map[string]string `json:"metadata"`
	Vector     []float32         `json:"-"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Result is a single query hit. Score is cosine similarity, higher is closer.
type Result struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	SourceName string            `json:"source_name"`
	Metadata   map[string]string `json:"metadata"`
	Score      float64           `json:"score"`
	Rank       int               `json:"rank"`
}

// NewResult builds a result from a stored record.
func NewResult(r *Record, score float64) *Result {
	return &Result{
		ID:         r.ID,
		Text:       r.Text,
		SourceName: r.SourceName,
		Metadata:   CloneMetadata(r.Metadata),
		Score:      score,
	}
}

// CloneMetadata returns a copy of m; nil stays nil.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
