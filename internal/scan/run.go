package scan

import (
	"context"
	"time"

	"petscan/internal/assets"
	"petscan/internal/imageload"
	"petscan/internal/logging"
	"petscan/internal/metrics"
	"petscan/internal/results"
)

// run is the body of one scan. Only writes tagged with gen reach the state.
func (p *Pipeline) run(ctx context.Context, gen uint64, runID string, fetched assets.FetchResult, total int, done chan struct{}) {
	defer close(done)

	started := time.Now()
	acc := results.NewAccumulator()
	// Items run to completion even if the scan is cancelled mid-item.
	itemCtx := context.WithoutCancel(ctx)

	scanned := 0
	cancelled := false
	superseded := false

batches:
	for batchStart := 0; batchStart < total; batchStart += p.cfg.BatchSize {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if p.backpressure != nil && !p.backpressure.WaitIfPaused(ctx) && ctx.Err() != nil {
			cancelled = true
			break
		}

		batchEnd := min(batchStart+p.cfg.BatchSize, total)
		logging.Debug("Scan %s: batch %d-%d of %d", runID, batchStart, batchEnd, total)

		for i := batchStart; i < batchEnd; i++ {
			if ctx.Err() != nil {
				cancelled = true
				break batches
			}

			p.scanItem(itemCtx, fetched, i, acc)
			scanned++

			n := scanned
			if !p.update(gen, func(s *State) {
				s.ScannedCount = n
				s.Progress = float64(n) / float64(total)
			}) {
				superseded = true
				break batches
			}
		}

		photos := acc.Snapshot()
		byDate := results.GroupByDay(photos, p.cfg.Location)
		if !p.update(gen, func(s *State) {
			s.Results = photos
			s.ResultsByDate = byDate
		}) {
			superseded = true
			break
		}
		metrics.ScanBatchesTotal.Inc()

		if batchEnd < total && p.cfg.Cooldown > 0 {
			timer := time.NewTimer(p.cfg.Cooldown)
			select {
			case <-ctx.Done():
				timer.Stop()
				cancelled = true
				break batches
			case <-timer.C:
			}
		}
	}

	metrics.ScanRunDuration.Observe(time.Since(started).Seconds())

	if superseded {
		logging.Debug("Scan %s stopped after being superseded", runID)
		return
	}

	photos := acc.Snapshot()
	byDate := results.GroupByDay(photos, p.cfg.Location)
	finished := p.now()

	ok := p.update(gen, func(s *State) {
		s.Results = photos
		s.ResultsByDate = byDate
		s.ScannedCount = scanned
		s.IsScanning = false
		s.Cancelled = cancelled
		s.FinishedAt = finished
		if !cancelled {
			s.Progress = 1.0
		}
	})
	if !ok {
		return
	}

	p.mu.Lock()
	if gen == p.generation {
		p.running = false
	}
	p.mu.Unlock()
	metrics.ScanRunning.Set(0)

	if cancelled {
		metrics.ScanRunsTotal.WithLabelValues("cancelled").Inc()
		logging.Info("Scan %s cancelled after %d/%d photos, %d pets found", runID, scanned, total, len(photos))
		return
	}
	metrics.ScanRunsTotal.WithLabelValues("completed").Inc()
	logging.Info("Scan %s completed: %d photos in %v, %d pets found",
		runID, scanned, time.Since(started).Round(time.Millisecond), len(photos))
}

// scanItem loads, classifies and, if accepted, records item i. Failures
// reject the item; they never stop the run.
func (p *Pipeline) scanItem(ctx context.Context, fetched assets.FetchResult, i int, acc *results.Accumulator) {
	if p.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ItemTimeout)
		defer cancel()
	}

	asset, err := fetched.At(ctx, i)
	if err != nil {
		logging.Warn("Scan: failed to read asset %d: %v", i, err)
		metrics.ScanItemsTotal.WithLabelValues("load_failed").Inc()
		return
	}

	start := time.Now()
	img, ok := imageload.Load(ctx, p.images, asset, p.cfg.imageRequest())
	metrics.ScanStageDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	if !ok {
		metrics.ScanItemsTotal.WithLabelValues("load_failed").Inc()
		return
	}

	start = time.Now()
	result, err := p.classifier.Classify(ctx, img)
	metrics.ScanStageDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	if err != nil {
		logging.Debug("Scan: classification failed for %s: %v", asset.ID, err)
		metrics.ScanItemsTotal.WithLabelValues("classify_failed").Inc()
		return
	}

	photo, ok := results.Accept(asset, result, p.cfg.Threshold, p.now())
	if !ok {
		metrics.ScanItemsTotal.WithLabelValues("rejected").Inc()
		return
	}
	if acc.Add(photo) {
		metrics.ScanItemsTotal.WithLabelValues("accepted").Inc()
		metrics.ScanAcceptedTotal.WithLabelValues(string(photo.Category)).Inc()
		logging.Debug("Scan: %s is a %s (%.2f)", asset.ID, photo.Category, photo.Confidence)
	}
}
