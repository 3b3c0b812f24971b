package models

import (
	"fmt"
	"strings"
)

// QueryRequest is a free-text search with an optional result count.
type QueryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate rejects blank queries and normalizes K: zero or negative becomes
// defaultK, values above maxK are capped.
func (q *QueryRequest) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	q.K = NormalizeK(q.K, defaultK, maxK)
	return nil
}

// NormalizeK applies the default and the cap to k.
func NormalizeK(k, defaultK, maxK int) int {
	if k <= 0 {
		k = defaultK
	}
	if maxK > 0 && k > maxK {
		k = maxK
	}
	return k
}

// QueryResponse is the ranked result set for one query.
type QueryResponse struct {
	Query   string    `json:"query"`
	K       int       `json:"k"`
	Results []*Result `json:"results"`
	Total   int       `json:"total"`
	TookMS  int64     `json:"took_ms"`
}

// Status describes the running index.
type Status struct {
	Records    int    `json:"records"`
	Dimensions int    `json:"dimensions"`
	Metric     string `json:"metric"`
	IndexType  string `json:"index_type"`
	Embedder   string `json:"embedder"`
	DiskBytes  int64  `json:"disk_bytes"`
	Version    string `json:"version,omitempty"`
}
