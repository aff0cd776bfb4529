package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"petscan/internal/library"
)

func setupIndexer(t *testing.T) (*Indexer, *library.Catalog, string) {
	t.Helper()

	root := t.TempDir()
	c, err := library.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"), root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	idx := New(c, root, 0)
	cfg := DefaultParallelWalkerConfig()
	cfg.BatchSize = 2
	idx.SetParallelConfig(cfg)
	t.Cleanup(idx.Stop)
	return idx, c, root
}

func TestIndexPopulatesCatalog(t *testing.T) {
	idx, c, root := setupIndexer(t)
	writeFiles(t, root, "a.jpg", "b.jpg", "c.png", "d/e.jpg", "f.mov", "readme.md")

	var completed []Result
	idx.SetOnIndexComplete(func(r Result) { completed = append(completed, r) })

	result, err := idx.Index(context.Background())
	if err != nil {
		t.Fatalf("Index() error: %v", err)
	}
	if result.Files != 5 {
		t.Errorf("Files = %d, want 5", result.Files)
	}

	stats := c.GetStats()
	if stats.TotalAssets != 5 || stats.Images != 4 || stats.Videos != 1 {
		t.Errorf("stats = %+v, want 5 total, 4 images, 1 video", stats)
	}
	if len(completed) != 1 {
		t.Errorf("callback ran %d times, want 1", len(completed))
	}
	if !idx.IsReady() {
		t.Error("IsReady() = false after index")
	}
	if idx.IsIndexing() {
		t.Error("IsIndexing() = true after index")
	}
	if idx.LastIndexTime().IsZero() {
		t.Error("LastIndexTime() is zero after index")
	}
	if got := idx.GetProgress(); got.IsIndexing || got.FilesIndexed != 5 {
		t.Errorf("GetProgress() = %+v", got)
	}

	h, err := c.Get(context.Background(), AssetID("d/e.jpg"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h.Path != filepath.Join(root, "d", "e.jpg") {
		t.Errorf("Path = %s", h.Path)
	}
}

func TestIndexRemovesMissingFiles(t *testing.T) {
	idx, c, root := setupIndexer(t)
	writeFiles(t, root, "a.jpg", "b.jpg")

	if _, err := idx.Index(context.Background()); err != nil {
		t.Fatalf("first Index: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "a.jpg")); err != nil {
		t.Fatal(err)
	}
	// indexed_at has millisecond resolution
	time.Sleep(5 * time.Millisecond)

	result, err := idx.Index(context.Background())
	if err != nil {
		t.Fatalf("second Index: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("Removed = %d, want 1", result.Removed)
	}
	if _, err := c.Get(context.Background(), AssetID("a.jpg")); !errors.Is(err, library.ErrNotFound) {
		t.Errorf("Get(a.jpg) error = %v, want ErrNotFound", err)
	}
	if _, err := c.Get(context.Background(), AssetID("b.jpg")); err != nil {
		t.Errorf("Get(b.jpg) error = %v", err)
	}
}

type recordingStore struct {
	mu       sync.Mutex
	batches  [][]library.Asset
	deletes  int
	failNext error
}

func (s *recordingStore) UpsertAssets(_ context.Context, rows []library.Asset, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		return s.failNext
	}
	s.batches = append(s.batches, rows)
	return nil
}

func (s *recordingStore) DeleteMissing(context.Context, time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	return 0, nil
}

func TestIndexBatches(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg")

	store := &recordingStore{}
	idx := New(store, root, 0)
	cfg := DefaultParallelWalkerConfig()
	cfg.BatchSize = 2
	idx.SetParallelConfig(cfg)
	defer idx.Stop()

	if _, err := idx.Index(context.Background()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	sizes := make([]int, 0, len(store.batches))
	for _, b := range store.batches {
		sizes = append(sizes, len(b))
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [2 2 1]", sizes)
	}
	if store.deletes != 1 {
		t.Errorf("DeleteMissing called %d times, want 1", store.deletes)
	}
}

func TestIndexStoreFailureSkipsCleanup(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "1.jpg")

	var called bool
	store := &recordingStore{failNext: errors.New("disk full")}
	idx := New(store, root, 0)
	idx.SetOnIndexComplete(func(Result) { called = true })
	defer idx.Stop()

	if _, err := idx.Index(context.Background()); err == nil {
		t.Fatal("expected error from failing store")
	}
	if store.deletes != 0 {
		t.Errorf("DeleteMissing called %d times after failed run", store.deletes)
	}
	if called {
		t.Error("completion callback ran after failed run")
	}
}

func TestIndexCancelledSkipsCleanup(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "1.jpg")

	store := &recordingStore{}
	idx := New(store, root, 0)
	defer idx.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.Index(ctx); err == nil {
		t.Fatal("expected error from cancelled run")
	}
	if store.deletes != 0 {
		t.Errorf("DeleteMissing called %d times after cancelled run", store.deletes)
	}
}

func TestIndexSkipsWhenRunning(t *testing.T) {
	idx, _, _ := setupIndexer(t)

	if !idx.tryStartIndexing() {
		t.Fatal("tryStartIndexing() = false on idle indexer")
	}
	result, err := idx.Index(context.Background())
	if err != nil || result != (Result{}) {
		t.Errorf("Index() while running = %+v, %v; want zero result", result, err)
	}
	if idx.TriggerIndex() {
		t.Error("TriggerIndex() = true while running")
	}
	idx.finishIndexing()
}

func TestStartAndHealth(t *testing.T) {
	idx, _, root := setupIndexer(t)
	writeFiles(t, root, "a.jpg")

	if status := idx.GetHealthStatus(); status.Ready {
		t.Error("Ready before first index")
	}

	idx.Start()
	deadline := time.Now().Add(5 * time.Second)
	for !idx.IsReady() {
		if time.Now().After(deadline) {
			t.Fatal("indexer never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	status := idx.GetHealthStatus()
	if !status.Ready || status.FilesIndexed != 1 || status.InitialIndexError != "" {
		t.Errorf("GetHealthStatus() = %+v", status)
	}
}
