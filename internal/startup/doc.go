// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// Configuration is read from environment variables via [LoadConfig]. A .env
// file (path from ENV_FILE, default .env) is loaded first when present;
// variables already set in the environment take precedence over it.
// The following environment variables are supported:
//
//   - LIBRARY_DIR: Photo library to index and scan (default: /photos)
//   - DATABASE_DIR: Directory holding the catalog database (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - INDEX_INTERVAL: Full re-index interval as Go duration (default: 30m, 0 disables)
//   - INDEX_WORKERS: Parallel walker workers (default: 3)
//   - SCAN_ON_INDEX: Start a scan after every successful index (default: false)
//   - SCAN_MAX_PHOTOS: Most recent photos examined per scan (default: 1000)
//   - SCAN_BATCH_SIZE: Photos classified per batch (default: 20)
//   - SCAN_THRESHOLD: Minimum pet confidence, in [0, 1) (default: 0.6)
//   - SCAN_COOLDOWN: Pause between batches (default: 100ms)
//   - SCAN_TARGET_SIZE: Longest side of classifier input in pixels (default: 512)
//   - SCAN_ALLOW_REMOTE: Fetch photos that are only available remotely (default: true)
//   - SCAN_ITEM_TIMEOUT: Per-photo load guard (default: 1m)
//   - TIMEZONE: IANA zone used to group photos by day (default: Local)
//   - CLASSIFIER: dnn or http (default: dnn)
//   - MODEL_PATH, MODEL_CONFIG_PATH: Detection network files for the dnn backend
//   - CLASSIFIER_URL, CLASSIFIER_TOKEN: Remote endpoint for the http backend
//   - CLASSIFIER_RPS: Request rate limit for the http backend (default: 5)
//   - DECODE_WORKERS: Concurrent image decodes (default: one per CPU, at most 8)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Share of MEMORY_LIMIT for the Go heap (default: 0.8)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//
// # Directory Setup
//
//   - Database directory: created if missing, must be writable
//   - Library directory: checked but not created (should be mounted)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogCatalogInit]: Catalog open timing
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogImagingInit]: libvips availability
//   - [LogClassifierInit]: Classifier backend
//   - [LogIndexerInit]: Indexer interval and scan-on-index
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	startup.LogCatalogInit(config.DatabasePath, time.Since(catalogStart))
//	startup.LogIndexerInit(config.IndexInterval, config.ScanOnIndex)
//
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
package startup
