package indexer

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 derives stable ids, not security
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"petscan/internal/assets"
	"petscan/internal/library"
	"petscan/internal/logging"
	"petscan/internal/mediatypes"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel workers
	NumWorkers int
	// BatchSize is the number of rows per catalog transaction
	BatchSize int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultParallelWalkerConfig returns the defaults, honoring an
// INDEX_WORKERS override.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	// 3 workers stays friendly to NFS-mounted libraries.
	numWorkers := 3
	if override := os.Getenv("INDEX_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			numWorkers = count
		}
	}

	return ParallelWalkerConfig{
		NumWorkers:    numWorkers,
		BatchSize:     500,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

type fileJob struct {
	path    string
	relPath string
	info    os.FileInfo
}

// ParallelWalker walks a directory tree with a pool of workers that turn
// files into catalog rows.
type ParallelWalker struct {
	config ParallelWalkerConfig
	root   string

	jobs    chan fileJob
	results chan library.Asset
	wg      sync.WaitGroup

	filesProcessed atomic.Int64
	dirsVisited    atomic.Int64
	errorsCount    atomic.Int64
}

// NewParallelWalker creates a walker for root.
func NewParallelWalker(root string, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	return &ParallelWalker{
		config:  config,
		root:    root,
		jobs:    make(chan fileJob, config.ChannelBuffer),
		results: make(chan library.Asset, config.ChannelBuffer),
	}
}

// Walk collects a row for every media file under the root. When ctx ends
// early it returns the rows found so far together with ctx's error.
func (pw *ParallelWalker) Walk(ctx context.Context) ([]library.Asset, error) {
	logging.Info("Starting parallel directory walk with %d workers", pw.config.NumWorkers)
	startTime := time.Now()

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(ctx)
	}

	var rows []library.Asset
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for row := range pw.results {
			rows = append(rows, row)
		}
	}()

	walkErr := pw.walkAndEnqueue(ctx)
	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	<-collected

	logging.Info("Parallel walk complete: %d files, %d folders in %v (errors: %d)",
		pw.filesProcessed.Load(), pw.dirsVisited.Load(), time.Since(startTime), pw.errorsCount.Load())

	if walkErr != nil {
		return rows, walkErr
	}
	return rows, ctx.Err()
}

func (pw *ParallelWalker) walkAndEnqueue(ctx context.Context) error {
	return filepath.WalkDir(pw.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			pw.errorsCount.Add(1)
			if path == pw.root {
				return err
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if path != pw.root && pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			pw.dirsVisited.Add(1)
			return nil
		}
		if _, ok := mediatypes.ForPath(d.Name()); !ok {
			return nil
		}

		relPath, err := filepath.Rel(pw.root, path)
		if err != nil {
			return nil //nolint:nilerr // skip this file, keep walking
		}
		info, err := d.Info()
		if err != nil {
			pw.errorsCount.Add(1)
			logging.Warn("Error getting info for %s: %v", path, err)
			return nil
		}

		select {
		case pw.jobs <- fileJob{path: path, relPath: relPath, info: info}:
			return nil
		case <-ctx.Done():
			return fs.SkipAll
		}
	})
}

func (pw *ParallelWalker) worker(ctx context.Context) {
	defer pw.wg.Done()

	for job := range pw.jobs {
		if ctx.Err() != nil {
			continue // drain so the walker never blocks
		}
		row, ok := assetForFile(job)
		if !ok {
			continue
		}
		pw.filesProcessed.Add(1)
		pw.results <- row
	}
}

// assetForFile builds the catalog row for a file.
func assetForFile(job fileJob) (library.Asset, bool) {
	mediaType, ok := mediatypes.ForPath(job.relPath)
	if !ok {
		return library.Asset{}, false
	}
	return library.Asset{
		Handle: assets.Handle{
			ID:        AssetID(job.relPath),
			CreatedAt: job.info.ModTime(),
			Path:      job.path,
			MediaType: mediaType,
		},
		Size:    job.info.Size(),
		ModTime: job.info.ModTime(),
	}, true
}

// AssetID derives the stable id of the file at relPath under the library
// root.
func AssetID(relPath string) string {
	sum := md5.Sum([]byte(filepath.ToSlash(relPath))) //nolint:gosec // MD5 derives stable ids, not security
	return hex.EncodeToString(sum[:])
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, folders, errors int64) {
	return pw.filesProcessed.Load(), pw.dirsVisited.Load(), pw.errorsCount.Load()
}
