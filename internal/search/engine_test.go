package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/semdex/internal/config"
	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/vector"
)

const testDims = 512

func testEngine(t *testing.T, cfg *config.SearchConfig) (*Engine, *embedding.Guard, *vector.MemoryIndex) {
	t.Helper()
	emb := embedding.NewGuard(embedding.NewHashEmbedder(testDims))
	t.Cleanup(func() { _ = emb.Close() })
	idx, err := vector.NewMemoryIndex(vector.NewMeta(testDims, emb.Name()), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return NewEngine(emb, idx, cfg), emb, idx
}

func insertText(t *testing.T, emb embedding.Embedder, idx vector.Index, id, text string) {
	t.Helper()
	vec, err := emb.Embed(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	rec := &models.Record{
		ID: id, Text: text, SourceName: id + ".txt", Vector: vec,
		Metadata:  map[string]string{models.MetaFilename: id + ".txt"},
		CreatedAt: time.Now(),
	}
	if err := idx.Insert(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
}

func TestEngine_Search(t *testing.T) {
	ctx := context.Background()
	engine, emb, idx := testEngine(t, nil)
	insertText(t, emb, idx, "ml", "machine learning algorithms")
	insertText(t, emb, idx, "cook", "slow cooked tomato sauce recipe")
	insertText(t, emb, idx, "garden", "planting tulips in autumn")

	resp, err := engine.Search(ctx, "machine learning algorithms", 2)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Results) != 2 {
		t.Fatalf("total = %d, results = %d, want 2", resp.Total, len(resp.Results))
	}
	top := resp.Results[0]
	if top.ID != "ml" {
		t.Errorf("top result = %q, want ml", top.ID)
	}
	if top.Text != "machine learning algorithms" || top.Metadata[models.MetaFilename] != "ml.txt" {
		t.Errorf("top result = %+v", top)
	}
	for i, r := range resp.Results {
		if r.Rank != i+1 {
			t.Errorf("result %d rank = %d", i, r.Rank)
		}
		if i > 0 && r.Score > resp.Results[i-1].Score {
			t.Errorf("results not ordered by score: %f after %f", r.Score, resp.Results[i-1].Score)
		}
	}
	if resp.Query != "machine learning algorithms" || resp.K != 2 {
		t.Errorf("response echo = %q k=%d", resp.Query, resp.K)
	}
}

func TestEngine_SearchEmptyIndex(t *testing.T) {
	engine, _, _ := testEngine(t, nil)
	resp, err := engine.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results == nil || len(resp.Results) != 0 || resp.Total != 0 {
		t.Errorf("results = %#v, want empty non-nil", resp.Results)
	}
}

func TestEngine_SearchNormalizesK(t *testing.T) {
	engine, emb, idx := testEngine(t, &config.SearchConfig{DefaultK: 2, MaxK: 3})
	for i := 0; i < 6; i++ {
		insertText(t, emb, idx, fmt.Sprintf("doc%d", i), fmt.Sprintf("document number %d", i))
	}
	tests := []struct {
		k, want int
	}{
		{0, 2},
		{-4, 2},
		{1, 1},
		{3, 3},
		{50, 3},
	}
	for _, tt := range tests {
		resp, err := engine.Search(context.Background(), "document", tt.k)
		if err != nil {
			t.Fatal(err)
		}
		if resp.K != tt.want || len(resp.Results) != tt.want {
			t.Errorf("k=%d: got k=%d with %d results, want %d", tt.k, resp.K, len(resp.Results), tt.want)
		}
	}
	if engine.DefaultK() != 2 || engine.MaxK() != 3 {
		t.Errorf("DefaultK/MaxK = %d/%d", engine.DefaultK(), engine.MaxK())
	}
}

func TestEngine_SearchBlankQuery(t *testing.T) {
	engine, _, _ := testEngine(t, nil)
	_, err := engine.Search(context.Background(), "   ", 5)
	if !errors.Is(err, embedding.ErrEmbedding) {
		t.Errorf("err = %v, want ErrEmbedding", err)
	}
}

func TestEngine_SearchClosedIndex(t *testing.T) {
	engine, _, idx := testEngine(t, nil)
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := engine.Search(context.Background(), "query", 5)
	if !errors.Is(err, vector.ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrIndexUnavailable", err)
	}
}

func TestNewEngine_defaults(t *testing.T) {
	engine, _, _ := testEngine(t, &config.SearchConfig{})
	if engine.DefaultK() != config.DefaultK || engine.MaxK() != config.DefaultMaxK {
		t.Errorf("defaults = %d/%d", engine.DefaultK(), engine.MaxK())
	}
}
