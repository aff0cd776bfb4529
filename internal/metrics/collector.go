package metrics

import (
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"petscan/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current catalog statistics
type Stats struct {
	TotalAssets int
	Images      int
	Videos      int
	Undated     int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath may be empty to skip
// database file sizes.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	collectRuntime()

	if c.dbPath != "" {
		collectDBSizes(c.dbPath)
	}

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	LibraryAssetsTotal.WithLabelValues("image").Set(float64(stats.Images))
	LibraryAssetsTotal.WithLabelValues("video").Set(float64(stats.Videos))
	LibraryUndatedAssets.Set(float64(stats.Undated))

	logging.Debug("Metrics collected: assets=%d, images=%d, videos=%d, undated=%d",
		stats.TotalAssets, stats.Images, stats.Videos, stats.Undated)
}

func collectRuntime() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	GoMemAllocBytes.Set(float64(m.HeapAlloc))
	GoMemSysBytes.Set(float64(m.Sys))

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < 1<<62 {
		GoMemLimit.Set(float64(limit))
	} else {
		GoMemLimit.Set(0)
	}
}

func collectDBSizes(dbPath string) {
	files := map[string]string{
		"main": dbPath,
		"wal":  dbPath + "-wal",
		"shm":  dbPath + "-shm",
	}
	for label, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
