package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"initialize_schema", "upsert_assets", "delete_missing",
		"count", "fetch", "get_asset", "stats", "begin_transaction", "commit", "rollback"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"image", "video"} {
		LibraryAssetsTotal.WithLabelValues(t)
	}

	// --- Scan pipeline ---
	for _, outcome := range []string{"completed", "cancelled", "superseded", "unauthorized"} {
		ScanRunsTotal.WithLabelValues(outcome)
	}
	for _, outcome := range []string{"accepted", "load_failed", "classify_failed", "rejected"} {
		ScanItemsTotal.WithLabelValues(outcome)
	}
	for _, category := range []string{"dog", "cat", "other"} {
		ScanAcceptedTotal.WithLabelValues(category)
	}
	for _, stage := range []string{"load", "classify"} {
		ScanStageDuration.WithLabelValues(stage)
	}

	// --- Image loading ---
	for _, q := range []string{"fast", "high"} {
		for _, status := range []string{"success", "error", "remote_denied"} {
			ImageLoadsTotal.WithLabelValues(q, status)
		}
		for _, source := range []string{"vips", "imaging", "remote", "none"} {
			ImageLoadDuration.WithLabelValues(q, source)
		}
	}

	// --- Filesystem ---
	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetryDuration.WithLabelValues(op)
	}

	// --- Classifier ---
	for _, backend := range []string{"dnn", "http"} {
		for _, status := range []string{"success", "error", "rate_limited"} {
			ClassifierRequestsTotal.WithLabelValues(backend, status)
		}
		ClassifierDuration.WithLabelValues(backend)
	}
}
