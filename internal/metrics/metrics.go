package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_websocket_clients",
			Help: "Number of connected scan event subscribers",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petscan_db_query_duration_seconds",
			Help:    "Catalog database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "petscan_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petscan_indexer_runs_total",
			Help: "Total number of library index runs",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_indexer_last_run_timestamp",
			Help: "Timestamp of the last index run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_indexer_last_run_duration_seconds",
			Help: "Duration of the last index run in seconds",
		},
	)

	IndexerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petscan_indexer_files_processed_total",
			Help: "Total number of image files indexed",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petscan_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)
)

// Library metrics
var (
	LibraryAssetsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "petscan_library_assets",
			Help: "Number of assets in the catalog by media type",
		},
		[]string{"type"},
	)

	LibraryUndatedAssets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_library_undated_assets",
			Help: "Number of catalog assets without a creation date",
		},
	)
)

// Scan pipeline metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_scan_runs_total",
			Help: "Total number of scan runs by outcome",
		},
		[]string{"outcome"}, // "completed", "cancelled", "superseded", "unauthorized"
	)

	ScanItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_scan_items_total",
			Help: "Total number of scanned assets by outcome",
		},
		[]string{"outcome"}, // "accepted", "load_failed", "classify_failed", "rejected"
	)

	ScanAcceptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_scan_accepted_total",
			Help: "Total number of accepted pet photos by category",
		},
		[]string{"category"},
	)

	ScanBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petscan_scan_batches_total",
			Help: "Total number of completed scan batches",
		},
	)

	ScanRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_scan_running",
			Help: "Whether a scan is in flight (1 = running, 0 = idle)",
		},
	)

	ScanProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_scan_progress_ratio",
			Help: "Progress of the current or last scan (0.0-1.0)",
		},
	)

	ScanResults = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_scan_results",
			Help: "Number of accepted photos in the current or last scan",
		},
	)

	ScanStaleWritesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petscan_scan_stale_writes_dropped_total",
			Help: "State writes discarded because their run had been superseded",
		},
	)

	ScanRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "petscan_scan_run_duration_seconds",
			Help:    "Scan run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	ScanStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petscan_scan_stage_duration_seconds",
			Help:    "Per-item scan stage duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"}, // "load", "classify"
	)
)

// Image loading metrics
var (
	ImageLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_image_loads_total",
			Help: "Total number of image loads by quality tier and status",
		},
		[]string{"quality", "status"},
	)

	ImageLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petscan_image_load_duration_seconds",
			Help:    "Image load duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"quality", "source"}, // source: "vips", "imaging", "remote", "none"
	)

	ImageLoadDuplicateDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petscan_image_load_duplicate_deliveries_total",
			Help: "Image deliveries discarded after the first for the same request",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a stale file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_filesystem_retry_failures_total",
			Help: "Filesystem operations that still failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_filesystem_stale_errors_total",
			Help: "Stale file handle (ESTALE) errors observed",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petscan_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Classifier metrics
var (
	ClassifierRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petscan_classifier_requests_total",
			Help: "Total number of classification requests by backend and status",
		},
		[]string{"backend", "status"},
	)

	ClassifierDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petscan_classifier_duration_seconds",
			Help:    "Classification duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	ClassifierDuplicateCallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petscan_classifier_duplicate_callbacks_total",
			Help: "Classifier callbacks discarded after the first for the same request",
		},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 if unlimited)",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_go_memory_alloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_go_memory_sys_bytes",
			Help: "Total memory obtained from the OS in bytes",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_memory_usage_ratio",
			Help: "Heap usage as a ratio of GOMEMLIMIT (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petscan_memory_paused",
			Help: "Whether scanning is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petscan_memory_gc_pauses_total",
			Help: "Number of times scanning paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "petscan_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
