// Package metrics provides Prometheus instrumentation for petscan.
//
// All collectors are registered with the default registry through promauto
// and share the "petscan_" prefix. Other packages record by importing this
// package and using the exported variables directly:
//
//	metrics.ScanItemsTotal.WithLabelValues("accepted").Inc()
//	metrics.ImageLoadDuration.WithLabelValues("fast", "vips").Observe(0.04)
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//   - WebSocketClients: connected scan event subscribers
//
// ## Database and Library Metrics
//   - DBQueryTotal, DBQueryDuration: catalog queries by operation
//   - DBSizeBytes: SQLite main, WAL and SHM file sizes
//   - LibraryAssetsTotal, LibraryUndatedAssets: catalog contents
//
// ## Indexer Metrics
//   - IndexerRunsTotal, IndexerIsRunning, IndexerFilesProcessed, IndexerErrors
//   - IndexerLastRunTimestamp, IndexerLastRunDuration
//
// ## Scan Metrics
//   - ScanRunsTotal: runs by outcome (completed, cancelled, superseded, unauthorized)
//   - ScanItemsTotal: items by outcome (accepted, load_failed, classify_failed, rejected)
//   - ScanAcceptedTotal: accepted photos by category
//   - ScanBatchesTotal, ScanRunning, ScanProgress, ScanResults
//   - ScanStaleWritesDropped: writes from superseded runs that were ignored
//   - ScanRunDuration, ScanStageDuration
//
// ## Image and Classifier Metrics
//   - ImageLoadsTotal, ImageLoadDuration
//   - ImageLoadDuplicateDeliveries, ClassifierDuplicateCallbacks: late
//     callbacks dropped by the single-resolution adapters
//   - ClassifierRequestsTotal, ClassifierDuration
//
// ## Memory Metrics
//   - GoMemLimit, GoMemAllocBytes, GoMemSysBytes
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//
// # Collector
//
// [Collector] periodically refreshes gauges that are computed rather than
// recorded: catalog statistics from a [StatsProvider], database file sizes
// and Go runtime memory.
//
//	collector := metrics.NewCollector(catalog, dbPath, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Acceptance rate:
//
//	sum(rate(petscan_scan_items_total{outcome="accepted"}[1h])) /
//	sum(rate(petscan_scan_items_total[1h]))
//
// P95 classification latency:
//
//	histogram_quantile(0.95, sum(rate(petscan_scan_stage_duration_seconds_bucket{stage="classify"}[5m])) by (le))
package metrics
