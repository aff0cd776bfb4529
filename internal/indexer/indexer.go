package indexer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"petscan/internal/library"
	"petscan/internal/logging"
	"petscan/internal/metrics"
)

// Delay between batches to allow scans to read the catalog
const batchDelay = 10 * time.Millisecond

// Store is the part of the catalog the indexer writes to.
type Store interface {
	UpsertAssets(ctx context.Context, rows []library.Asset, indexedAt time.Time) error
	DeleteMissing(ctx context.Context, cutoff time.Time) (int64, error)
}

// Indexer keeps a Store in step with a library directory.
type Indexer struct {
	store          Store
	root           string
	indexInterval  time.Duration
	parallelConfig ParallelWalkerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	filesIndexed  atomic.Int64
	indexProgress atomic.Value

	onIndexComplete func(Result)
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	FilesIndexed int64     `json:"filesIndexed"`
	IsIndexing   bool      `json:"isIndexing"`
	StartedAt    time.Time `json:"startedAt,omitzero"`
}

// Result summarizes a completed index run.
type Result struct {
	Files    int64         `json:"files"`
	Folders  int64         `json:"folders"`
	Removed  int64         `json:"removed"`
	Duration time.Duration `json:"duration"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool           `json:"ready"`
	Indexing          bool           `json:"indexing"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	LastIndexed       time.Time      `json:"lastIndexed,omitzero"`
	InitialIndexError string         `json:"initialIndexError,omitempty"`
	FilesIndexed      int64          `json:"filesIndexed"`
	IndexProgress     *IndexProgress `json:"indexProgress,omitempty"`
}

// New creates an indexer. An indexInterval of zero disables periodic runs.
func New(store Store, root string, indexInterval time.Duration) *Indexer {
	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		store:          store,
		root:           root,
		indexInterval:  indexInterval,
		parallelConfig: DefaultParallelWalkerConfig(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.parallelConfig = config
}

// SetOnIndexComplete sets a callback invoked after every successful run.
func (idx *Indexer) SetOnIndexComplete(callback func(Result)) {
	idx.onIndexComplete = callback
}

// Start runs the initial index in the background and schedules periodic
// runs.
func (idx *Indexer) Start() {
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		logging.Info("Starting initial index in background...")
		if _, err := idx.Index(idx.ctx); err != nil {
			logging.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
	}()

	if idx.indexInterval > 0 {
		idx.wg.Add(1)
		go func() {
			defer idx.wg.Done()
			idx.periodicIndex()
		}()
	}
}

// Stop cancels any run in flight and waits for background work to end.
func (idx *Indexer) Stop() {
	idx.cancel()
	idx.wg.Wait()
}

// Index performs a full index of the library. It returns a zero Result and
// no error when another run is already in flight.
func (idx *Indexer) Index(ctx context.Context) (Result, error) {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return Result{}, nil
	}
	defer idx.finishIndexing()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting library index of %s", idx.root)
	idx.resetProgress(startTime)

	walker := NewParallelWalker(idx.root, idx.parallelConfig)
	rows, err := walker.Walk(ctx)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return Result{}, fmt.Errorf("walk %s: %w", idx.root, err)
	}

	if err := idx.storeBatches(ctx, rows, startTime); err != nil {
		metrics.IndexerErrors.Inc()
		return Result{}, err
	}

	// Every row still present was stamped at or after startTime.
	removed, err := idx.store.DeleteMissing(ctx, startTime)
	if err != nil {
		logging.Error("Error cleaning up missing assets: %v", err)
		metrics.IndexerErrors.Inc()
	} else if removed > 0 {
		logging.Info("Removed %d missing assets from catalog", removed)
	}

	files, folders, _ := walker.Stats()
	result := Result{
		Files:    files,
		Folders:  folders,
		Removed:  removed,
		Duration: time.Since(startTime),
	}
	idx.finalizeIndex(result)
	return result, nil
}

// storeBatches upserts rows in batches with a short pause between them.
func (idx *Indexer) storeBatches(ctx context.Context, rows []library.Asset, indexedAt time.Time) error {
	total := len(rows)
	batchSize := max(idx.parallelConfig.BatchSize, 1)
	logging.Info("Storing %d assets in batches of %d", total, batchSize)

	for i := 0; i < total; i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(i+batchSize, total)
		if err := idx.store.UpsertAssets(ctx, rows[i:end], indexedAt); err != nil {
			return fmt.Errorf("store batch %d-%d: %w", i, end, err)
		}

		idx.filesIndexed.Store(int64(end))
		idx.indexProgress.Store(IndexProgress{
			FilesIndexed: int64(end),
			IsIndexing:   true,
			StartedAt:    indexedAt,
		})

		if end < total {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(batchDelay):
			}
		}
	}
	return nil
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
}

func (idx *Indexer) resetProgress(startTime time.Time) {
	idx.filesIndexed.Store(0)
	idx.indexProgress.Store(IndexProgress{
		IsIndexing: true,
		StartedAt:  startTime,
	})
}

func (idx *Indexer) finalizeIndex(result Result) {
	idx.indexMu.Lock()
	idx.lastIndexTime = time.Now()
	idx.initialIndexError = nil
	idx.indexMu.Unlock()

	idx.indexProgress.Store(IndexProgress{FilesIndexed: result.Files})

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(result.Duration.Seconds())
	metrics.IndexerFilesProcessed.Add(float64(result.Files))

	logging.Info("Index complete: %d files, %d folders, %d removed in %v",
		result.Files, result.Folders, result.Removed, result.Duration.Round(time.Millisecond))

	if idx.onIndexComplete != nil {
		idx.onIndexComplete(result)
	}
}

func (idx *Indexer) periodicIndex() {
	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-index triggered")
			if _, err := idx.Index(idx.ctx); err != nil {
				logging.Error("periodic re-index failed: %v", err)
			}
		case <-idx.ctx.Done():
			return
		}
	}
}

// TriggerIndex starts a run in the background. It reports false when a run
// is already in flight.
func (idx *Indexer) TriggerIndex() bool {
	if idx.IsIndexing() {
		return false
	}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		if _, err := idx.Index(idx.ctx); err != nil {
			logging.Error("manually triggered re-index failed: %v", err)
		}
	}()
	return true
}

// IsIndexing returns whether an index operation is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// IsReady reports whether the first index run has finished.
func (idx *Indexer) IsReady() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

// LastIndexTime returns the time of the last completed index operation.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// GetProgress returns the current indexing progress.
func (idx *Indexer) GetProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:        idx.initialIndexComplete,
		Indexing:     idx.isIndexing,
		StartTime:    idx.startTime,
		Uptime:       time.Since(idx.startTime).Round(time.Second).String(),
		LastIndexed:  idx.lastIndexTime,
		FilesIndexed: idx.filesIndexed.Load(),
	}
	if idx.isIndexing {
		progress := idx.GetProgress()
		status.IndexProgress = &progress
	}
	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}
	return status
}
