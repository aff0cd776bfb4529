package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	stats Stats
}

func (m *mockStatsProvider) GetStats() Stats {
	return m.stats
}

func TestCollectorCollect(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{TotalAssets: 12, Images: 10, Videos: 2, Undated: 3}}

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	if err := os.WriteFile(dbPath, make([]byte, 4096), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}

	c := NewCollector(provider, dbPath, time.Minute)
	c.collect()

	if got := testutil.ToFloat64(LibraryAssetsTotal.WithLabelValues("image")); got != 10 {
		t.Errorf("image assets = %v, want 10", got)
	}
	if got := testutil.ToFloat64(LibraryAssetsTotal.WithLabelValues("video")); got != 2 {
		t.Errorf("video assets = %v, want 2", got)
	}
	if got := testutil.ToFloat64(LibraryUndatedAssets); got != 3 {
		t.Errorf("undated = %v, want 3", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 4096 {
		t.Errorf("db main size = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("wal")); got != 0 {
		t.Errorf("missing wal size = %v, want 0", got)
	}
	if got := testutil.ToFloat64(GoMemAllocBytes); got <= 0 {
		t.Errorf("heap alloc = %v, want > 0", got)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, "", time.Minute)
	c.collect() // must not panic
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{Images: 7}}
	c := NewCollector(provider, "", 10*time.Millisecond)
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()

	if got := testutil.ToFloat64(LibraryAssetsTotal.WithLabelValues("image")); got != 7 {
		t.Errorf("image assets = %v, want 7", got)
	}
}
