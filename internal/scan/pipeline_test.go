package scan

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"petscan/internal/assets"
	"petscan/internal/classify"
	"petscan/internal/metrics"
	"petscan/internal/results"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func waitForRun(t *testing.T, p *Pipeline) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return p.Snapshot()
}

func waitForState(t *testing.T, updates <-chan State, match func(State) bool) State {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-updates:
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatal("expected state was never published")
		}
	}
}

func TestScanAcceptance(t *testing.T) {
	handles := makeHandles(6)
	undated := assets.Handle{ID: "undated", Path: "/photos/undated.jpg", MediaType: assets.MediaTypeImage}
	handles = append(handles, undated)

	classifier := &fakeClassifier{
		results: map[string]classify.Result{
			"asset-00": {Category: classify.CategoryDog, Confidence: 0.61},
			"asset-01": {Category: classify.CategoryCat, Confidence: 0.6},
			"asset-02": {Category: classify.CategoryNone, Confidence: 0.95},
			"asset-03": {Category: classify.CategoryOther, Confidence: 0.8},
			"asset-05": {Category: classify.CategoryCat, Confidence: 0.99},
			"undated":  {Category: classify.CategoryDog, Confidence: 0.7},
		},
		errIDs: map[string]bool{"asset-05": true},
	}
	loader := &fakeLoader{failIDs: map[string]bool{"asset-04": true}}

	clock := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	p := New(assets.NewMemorySource(handles), loader, classifier, testConfig(),
		WithClock(func() time.Time { return clock }))

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	state := waitForRun(t, p)

	var ids []string
	for _, photo := range state.Results {
		ids = append(ids, photo.ID)
	}
	want := []string{"asset-00", "asset-03", "undated"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("accepted = %v, want %v", ids, want)
	}

	last := state.Results[len(state.Results)-1]
	if !last.Date.Equal(clock) {
		t.Errorf("undated photo date = %v, want clock time %v", last.Date, clock)
	}
	if state.ScannedCount != len(handles) || state.TotalCount != len(handles) {
		t.Errorf("scanned %d of %d, want %d", state.ScannedCount, state.TotalCount, len(handles))
	}
	if state.Cancelled || state.IsScanning {
		t.Errorf("unexpected terminal state %+v", state.Summary())
	}
}

func TestScanSingleResolution(t *testing.T) {
	handles := makeHandles(5)
	classifier := &fakeClassifier{results: allDogs(handles)}

	for _, async := range []bool{false, true} {
		classifier.calls.Store(0)
		loader := &fakeLoader{opportunistic: true, async: async}
		p := New(assets.NewMemorySource(handles), loader, classifier, testConfig())

		if err := p.Scan(context.Background()); err != nil {
			t.Fatalf("Scan: %v", err)
		}
		state := waitForRun(t, p)

		if got := classifier.calls.Load(); got != int64(len(handles)) {
			t.Errorf("async=%v: classifier called %d times, want %d", async, got, len(handles))
		}
		if state.ScannedCount != len(handles) {
			t.Errorf("async=%v: scanned %d, want %d", async, state.ScannedCount, len(handles))
		}
		// The first delivery is the preview, which the fake scores as "other".
		for _, photo := range state.Results {
			if photo.Category != classify.CategoryOther {
				t.Errorf("async=%v: %s classified from %s delivery, want first", async, photo.ID, photo.Category)
			}
		}
	}
}

func TestScanProgressAndIndexConsistency(t *testing.T) {
	handles := makeHandles(10)
	classifier := &fakeClassifier{results: allDogs(handles)}
	p := New(assets.NewMemorySource(handles), &fakeLoader{}, classifier, testConfig())

	updates, unsubscribe := p.Subscribe(256)
	defer unsubscribe()

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	waitForRun(t, p)

	var states []State
	for {
		select {
		case s := <-updates:
			states = append(states, s)
			continue
		default:
		}
		break
	}

	if len(states) < 2 {
		t.Fatalf("got %d published states", len(states))
	}

	var lastProgress float64
	var lastVersion uint64
	for i, s := range states {
		if s.Version <= lastVersion && i > 0 {
			t.Errorf("state %d: version %d not above %d", i, s.Version, lastVersion)
		}
		lastVersion = s.Version

		if s.RunID == "" {
			continue // state before the first run
		}
		if s.Progress < lastProgress {
			t.Errorf("state %d: progress went from %v to %v", i, lastProgress, s.Progress)
		}
		lastProgress = s.Progress

		if s.ResultsByDate.Len() != len(s.Results) {
			t.Errorf("state %d: index holds %d photos, results %d", i, s.ResultsByDate.Len(), len(s.Results))
		}
		if !reflect.DeepEqual(s.ResultsByDate, results.GroupByDay(s.Results, time.UTC)) {
			t.Errorf("state %d: index is not the day partition of results", i)
		}
	}

	final := states[len(states)-1]
	if final.Progress != 1.0 || final.IsScanning {
		t.Errorf("final state progress=%v scanning=%v", final.Progress, final.IsScanning)
	}
	if len(final.Results) != len(handles) {
		t.Errorf("final results = %d, want %d", len(final.Results), len(handles))
	}
}

func TestScanCancelDuringCooldown(t *testing.T) {
	handles := makeHandles(10)
	classifier := &fakeClassifier{results: allDogs(handles)}

	cfg := testConfig()
	cfg.BatchSize = 4
	cfg.Cooldown = time.Hour
	p := New(assets.NewMemorySource(handles), &fakeLoader{}, classifier, cfg)

	updates, unsubscribe := p.Subscribe(64)
	defer unsubscribe()

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	// Cancel once the first batch is published and the run sits in cooldown.
	waitForState(t, updates, func(s State) bool { return len(s.Results) == 4 })
	p.Cancel()
	if p.Snapshot().IsScanning {
		t.Error("Cancel should publish IsScanning=false immediately")
	}

	state := waitForRun(t, p)
	if !state.Cancelled {
		t.Error("expected cancelled state")
	}
	if state.ScannedCount != 4 || len(state.Results) != 4 {
		t.Errorf("scanned %d with %d results, want 4 and 4", state.ScannedCount, len(state.Results))
	}
	if state.Progress != 0.4 {
		t.Errorf("progress = %v, want 0.4", state.Progress)
	}
	if state.ResultsByDate.Len() != 4 {
		t.Errorf("index holds %d photos, want 4", state.ResultsByDate.Len())
	}
	if state.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}
}

func TestScanCapsWorkingSet(t *testing.T) {
	handles := makeHandles(12)
	classifier := &fakeClassifier{results: allDogs(handles)}

	cfg := testConfig()
	cfg.MaxPhotos = 5
	p := New(assets.NewMemorySource(handles), &fakeLoader{}, classifier, cfg)

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	state := waitForRun(t, p)

	if state.TotalCount != 5 || state.ScannedCount != 5 {
		t.Errorf("total=%d scanned=%d, want 5", state.TotalCount, state.ScannedCount)
	}
	want := []string{"asset-00", "asset-01", "asset-02", "asset-03", "asset-04"}
	if got := classifier.seenIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("classified %v, want newest five %v", got, want)
	}
}

func TestScanSupersedesRunningScan(t *testing.T) {
	handles := makeHandles(6)
	classifier := &fakeClassifier{
		results: allDogs(handles),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	p := New(assets.NewMemorySource(handles), &fakeLoader{}, classifier, testConfig())

	staleBefore := testutil.ToFloat64(metrics.ScanStaleWritesDropped)

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	first := p.Snapshot()

	select {
	case <-classifier.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached the classifier")
	}

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	second := p.Snapshot()
	if second.RunID == first.RunID {
		t.Fatal("second scan reused the run id")
	}
	if second.Version <= first.Version {
		t.Errorf("version did not advance: %d -> %d", first.Version, second.Version)
	}

	// Let the first run's in-flight item finish; its write must be dropped.
	close(classifier.block)
	state := waitForRun(t, p)

	if state.RunID != second.RunID {
		t.Errorf("final state from run %s, want %s", state.RunID, second.RunID)
	}
	if state.ScannedCount != len(handles) || len(state.Results) != len(handles) {
		t.Errorf("scanned=%d results=%d, want %d", state.ScannedCount, len(state.Results), len(handles))
	}
	if state.IsScanning {
		t.Error("second run still scanning")
	}

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(metrics.ScanStaleWritesDropped) <= staleBefore {
		if time.Now().After(deadline) {
			t.Fatal("stale write from superseded run was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScanUnauthorized(t *testing.T) {
	source := assets.NewMemorySource(makeHandles(3))
	source.SetAuthorizationError(assets.ErrUnauthorized)
	p := New(source, &fakeLoader{}, &fakeClassifier{}, testConfig())

	before := p.Snapshot()
	err := p.Scan(context.Background())
	if !errors.Is(err, assets.ErrUnauthorized) {
		t.Fatalf("Scan error = %v, want ErrUnauthorized", err)
	}
	after := p.Snapshot()
	if after.IsScanning || after.Version != before.Version {
		t.Errorf("state changed after unauthorized scan: %+v", after)
	}
}

func TestCancelWithoutRunIsNoop(t *testing.T) {
	p := New(assets.NewMemorySource(nil), &fakeLoader{}, &fakeClassifier{}, testConfig())
	before := p.Snapshot().Version
	p.Cancel()
	if got := p.Snapshot().Version; got != before {
		t.Errorf("Cancel published version %d, want %d", got, before)
	}
}

func TestScanEmptySource(t *testing.T) {
	p := New(assets.NewMemorySource(nil), &fakeLoader{}, &fakeClassifier{}, testConfig())
	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	state := waitForRun(t, p)
	if state.Progress != 1.0 || state.IsScanning || state.TotalCount != 0 {
		t.Errorf("unexpected state %+v", state.Summary())
	}
}

func TestScanWaitsOnBackpressure(t *testing.T) {
	handles := makeHandles(7)
	bp := &countingBackpressure{}
	p := New(assets.NewMemorySource(handles), &fakeLoader{}, &fakeClassifier{results: allDogs(handles)},
		testConfig(), WithBackpressure(bp))

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	waitForRun(t, p)

	// 7 items in batches of 3.
	if got := bp.waits.Load(); got != 3 {
		t.Errorf("backpressure consulted %d times, want 3", got)
	}
}

func TestPhotosForDate(t *testing.T) {
	handles := makeHandles(30) // spans two days back from noon
	p := New(assets.NewMemorySource(handles), &fakeLoader{}, &fakeClassifier{results: allDogs(handles)}, testConfig())

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	waitForRun(t, p)

	june1 := p.PhotosForDate(time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC))
	if len(june1) != 13 { // 12:00 back to 00:00
		t.Errorf("June 1 has %d photos, want 13", len(june1))
	}
	for _, photo := range june1 {
		if photo.Date.Day() != 1 {
			t.Errorf("photo %s dated %v listed for June 1", photo.ID, photo.Date)
		}
	}
	if got := p.PhotosForDate(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)); got != nil {
		t.Errorf("expected no photos, got %d", len(got))
	}

	if _, ok := p.Photo("asset-00"); !ok {
		t.Error("Photo(asset-00) not found")
	}
	if _, ok := p.Photo("missing"); ok {
		t.Error("Photo(missing) found")
	}
}

func TestSubscribeKeepsNewestState(t *testing.T) {
	handles := makeHandles(9)
	p := New(assets.NewMemorySource(handles), &fakeLoader{}, &fakeClassifier{results: allDogs(handles)}, testConfig())

	updates, unsubscribe := p.Subscribe(1)

	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	final := waitForRun(t, p)

	got := <-updates
	if got.Version != final.Version {
		t.Errorf("pending state version %d, want newest %d", got.Version, final.Version)
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-updates; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	handles := makeHandles(2)
	p := New(assets.NewMemorySource(handles), &fakeLoader{}, &fakeClassifier{results: allDogs(handles)}, testConfig())
	if err := p.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	snap := waitForRun(t, p)
	snap.Results[0].ID = "mutated"

	if p.Snapshot().Results[0].ID == "mutated" {
		t.Error("Snapshot shares result storage with the pipeline")
	}
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{Cooldown: -time.Second}.normalized()
	def := DefaultConfig()

	if cfg.MaxPhotos != def.MaxPhotos || cfg.BatchSize != def.BatchSize || cfg.TargetSize != def.TargetSize {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Cooldown != 0 {
		t.Errorf("negative cooldown = %v, want 0", cfg.Cooldown)
	}
	if cfg.Location == nil {
		t.Error("Location not defaulted")
	}
}
