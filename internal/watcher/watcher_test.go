package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/extract"
	"github.com/hyperjump/semdex/internal/ingest"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/vector"
)

const testDebounce = 50 * time.Millisecond

type recordingIngester struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recordingIngester) IngestPaths(_ context.Context, paths []string) (*models.IngestReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]string(nil), paths...))
	report := &models.IngestReport{}
	for _, p := range paths {
		report.Outcomes = append(report.Outcomes, models.Outcome{Filename: filepath.Base(p), Status: models.StatusSucceeded})
	}
	report.Finalize()
	return report, nil
}

func (r *recordingIngester) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []string
	for _, b := range r.batches {
		all = append(all, b...)
	}
	sort.Strings(all)
	return all
}

func (r *recordingIngester) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startWatcher(t *testing.T, roots, exts []string, ing Ingester) *Watcher {
	t.Helper()
	w := NewWatcher(roots, exts, ing, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, nil, []string{".txt"}, &recordingIngester{})

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_BatchesCreatedFilesWithExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}
	rec := &recordingIngester{}
	startWatcher(t, []string{dir}, []string{".txt"}, rec)

	for _, name := range []string{"a.txt", "b.txt", "skip.bin"} {
		if err := writeFile(filepath.Join(sub, name), "hello "+name); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return len(rec.paths()) == 2 })
	got := rec.paths()
	if !strings.HasSuffix(got[0], "a.txt") || !strings.HasSuffix(got[1], "b.txt") {
		t.Errorf("ingested %v", got)
	}
}

func TestWatcher_IngestsEachPathOnce(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingIngester{}
	startWatcher(t, []string{dir}, nil, rec)

	path := filepath.Join(dir, "note.md")
	if err := writeFile(path, "first"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rec.batchCount() == 1 })

	if err := writeFile(path, "second"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(4 * testDebounce)
	if n := len(rec.paths()); n != 1 {
		t.Errorf("file ingested %d times, want once", n)
	}
}

func TestWatcher_AddDirectorySyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	rec := &recordingIngester{}
	w := startWatcher(t, nil, []string{".txt"}, rec)

	if err := w.AddDirectory(dir, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.paths()) == 1 })
	if got := rec.paths(); !strings.HasSuffix(got[0], "a.txt") {
		t.Errorf("ingested %v", got)
	}
}

func TestWatcher_ExistingFilesIgnoredOnStart(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "old.txt"), "already here"); err != nil {
		t.Fatal(err)
	}
	rec := &recordingIngester{}
	startWatcher(t, []string{dir}, []string{".txt"}, rec)

	time.Sleep(4 * testDebounce)
	if n := rec.batchCount(); n != 0 {
		t.Errorf("batches = %d, want 0", n)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "watch", "me")

	startWatcher(t, []string{root}, []string{".txt"}, &recordingIngester{})

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_HandleNewDirectory_recursiveSubfolders(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingIngester{}
	startWatcher(t, []string{dir}, []string{".txt", ".md"}, rec)

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "ignore.xyz"), "skip"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		for _, p := range rec.paths() {
			if strings.HasSuffix(p, "deep.txt") {
				return true
			}
		}
		return false
	})
	for _, p := range rec.paths() {
		if strings.HasSuffix(p, "ignore.xyz") {
			t.Errorf("ignore.xyz should not be ingested")
		}
	}
}

func TestWatcher_IngestsIntoIndex(t *testing.T) {
	const dims = 64
	emb := embedding.NewGuard(embedding.NewHashEmbedder(dims))
	idx, err := vector.NewMemoryIndex(vector.NewMeta(dims, emb.Name()), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	dir := t.TempDir()
	startWatcher(t, []string{dir}, []string{".txt"}, ingest.NewIngester(extract.NewExtractor(), emb, idx))

	if err := writeFile(filepath.Join(dir, "live.txt"), "watched content"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return idx.Count() == 1 })
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
		{"/a/b", []string{".txt"}, false},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

type countingIngester struct {
	Ingester
	mu      sync.Mutex
	batches int
}

func (c *countingIngester) IngestPaths(ctx context.Context, paths []string) (*models.IngestReport, error) {
	report, err := c.Ingester.IngestPaths(ctx, paths)
	c.mu.Lock()
	c.batches++
	c.mu.Unlock()
	return report, err
}

func (c *countingIngester) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches
}

func TestWatcher_RetriesFileThatFailed(t *testing.T) {
	const dims = 64
	emb := embedding.NewGuard(embedding.NewHashEmbedder(dims))
	idx, err := vector.NewMemoryIndex(vector.NewMeta(dims, emb.Name()), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	dir := t.TempDir()
	ing := &countingIngester{Ingester: ingest.NewIngester(extract.NewExtractor(), emb, idx)}
	startWatcher(t, []string{dir}, []string{".txt"}, ing)

	path := filepath.Join(dir, "late.txt")
	if err := writeFile(path, ""); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return ing.count() >= 1 })
	if idx.Count() != 0 {
		t.Fatalf("empty file should not be stored, count = %d", idx.Count())
	}

	if err := writeFile(path, "content written after creation"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return idx.Count() == 1 })

	// Stored now, so later writes are ignored.
	if err := writeFile(path, "rewritten"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(4 * testDebounce)
	if idx.Count() != 1 {
		t.Errorf("count = %d, want 1", idx.Count())
	}
}
