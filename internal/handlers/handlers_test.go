package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"petscan/internal/assets"
	"petscan/internal/classify"
	"petscan/internal/imageload"
	"petscan/internal/indexer"
	"petscan/internal/metrics"
	"petscan/internal/results"
	"petscan/internal/scan"

	"github.com/gorilla/mux"
)

var day1 = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

type solidLoader struct{}

func (solidLoader) RequestImage(_ context.Context, asset assets.Handle, req imageload.Request, handler imageload.Handler) {
	if asset.ID == "broken" {
		handler(nil, imageload.Delivery{Err: errors.New("unreadable")})
		return
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	handler(img, imageload.Delivery{})
}

type fakeIndexer struct {
	ready   bool
	trigger bool
	status  indexer.HealthStatus
}

func (f *fakeIndexer) IsReady() bool                         { return f.ready }
func (f *fakeIndexer) GetHealthStatus() indexer.HealthStatus { return f.status }
func (f *fakeIndexer) TriggerIndex() bool                    { return f.trigger }

type fakeStats struct{ stats metrics.Stats }

func (f fakeStats) GetStats() metrics.Stats { return f.stats }

type testEnv struct {
	router   *mux.Router
	pipeline *scan.Pipeline
	source   *assets.MemorySource
	indexer  *fakeIndexer
	hub      *Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	source := assets.NewMemorySource([]assets.Handle{
		{ID: "a", CreatedAt: day1, Path: "/photos/a.jpg", MediaType: assets.MediaTypeImage},
		{ID: "b", CreatedAt: day1.Add(-time.Hour), Path: "/photos/b.jpg", MediaType: assets.MediaTypeImage},
		{ID: "c", CreatedAt: day1.Add(-24 * time.Hour), Path: "/photos/c.jpg", MediaType: assets.MediaTypeImage},
		{ID: "broken", CreatedAt: day1.Add(-48 * time.Hour), Path: "/photos/broken.jpg", MediaType: assets.MediaTypeImage},
	})
	classifier := classify.Func(func(context.Context, image.Image) (classify.Result, error) {
		return classify.Result{Category: classify.CategoryDog, Confidence: 0.9}, nil
	})

	cfg := scan.DefaultConfig()
	cfg.BatchSize = 2
	cfg.Cooldown = 0
	cfg.Location = time.UTC
	pipeline := scan.New(source, solidLoader{}, classifier, cfg)

	idx := &fakeIndexer{ready: true, trigger: true, status: indexer.HealthStatus{Ready: true, Uptime: "1s"}}
	hub := NewHub(pipeline.Snapshot)
	h := New(pipeline, idx, fakeStats{metrics.Stats{TotalAssets: 4, Images: 4}}, solidLoader{}, hub)

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return &testEnv{router: router, pipeline: pipeline, source: source, indexer: idx, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func (e *testEnv) scanAndWait(t *testing.T) {
	t.Helper()
	if rec := e.do(t, http.MethodPost, "/api/scan"); rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/scan = %d: %s", rec.Code, rec.Body.String())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.pipeline.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestGetScanBeforeFirstRun(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	state := decode[scan.State](t, rec)
	if state.IsScanning || state.ScannedCount != 0 {
		t.Errorf("initial state = %+v", state)
	}
}

func TestStartScanAndListPhotos(t *testing.T) {
	env := newTestEnv(t)
	env.scanAndWait(t)

	state := decode[scan.State](t, env.do(t, http.MethodGet, "/api/scan"))
	if state.IsScanning || state.Progress != 1 || state.ScannedCount != 4 {
		t.Errorf("final state = %+v", state)
	}
	if len(state.Results) != 3 {
		t.Errorf("results = %d, want 3", len(state.Results))
	}

	summary := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/scan?results=false"))
	if _, ok := summary["results"]; ok && summary["results"] != nil {
		t.Errorf("results=false still returned results: %v", summary["results"])
	}

	photos := decode[PhotosResponse](t, env.do(t, http.MethodGet, "/api/photos"))
	if photos.Count != 3 || photos.ByCategory["dog"] != 3 {
		t.Errorf("photos = %+v", photos)
	}
	if photos.Photos[0].ID != "a" {
		t.Errorf("first photo = %s, want newest day first", photos.Photos[0].ID)
	}

	days := decode[[]results.DayGroup](t, env.do(t, http.MethodGet, "/api/photos/days"))
	if len(days) != 2 || days[0].Day != "2024-06-01" || len(days[0].Photos) != 2 {
		t.Errorf("days = %+v", days)
	}
	if days[0].Label != "Saturday, June 1, 2024" {
		t.Errorf("label = %q", days[0].Label)
	}
}

func TestPhotosForDay(t *testing.T) {
	env := newTestEnv(t)
	env.scanAndWait(t)

	tests := []struct {
		date      string
		wantCode  int
		wantCount int
	}{
		{"2024-06-01", http.StatusOK, 2},
		{"2024-05-31", http.StatusOK, 1},
		{"2024-01-01", http.StatusOK, 0},
		{"June-1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.date, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/photos/days/"+tt.date)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[PhotosResponse](t, rec)
			if resp.Count != tt.wantCount || len(resp.Photos) != tt.wantCount {
				t.Errorf("count = %d, want %d", resp.Count, tt.wantCount)
			}
		})
	}
}

func TestStartScanUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.source.SetAuthorizationError(assets.ErrUnauthorized)

	rec := env.do(t, http.MethodPost, "/api/scan")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["error"] == "" {
		t.Error("expected error message")
	}
}

func TestStartScanSourceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.source.SetAuthorizationError(errors.New("catalog offline"))

	if rec := env.do(t, http.MethodPost, "/api/scan"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestCancelScanWithoutRun(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/scan")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if state := decode[scan.State](t, rec); state.IsScanning {
		t.Error("IsScanning after cancel")
	}
}

func TestPhotoImage(t *testing.T) {
	env := newTestEnv(t)
	env.scanAndWait(t)

	rec := env.do(t, http.MethodGet, "/api/photos/a/image")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := jpeg.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("bounds = %v, want 8x6", b)
	}

	if rec := env.do(t, http.MethodGet, "/api/photos/broken/image"); rec.Code != http.StatusNotFound {
		t.Errorf("rejected photo status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/photos/zzz/image"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown photo status = %d, want 404", rec.Code)
	}
}

func TestReindex(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/library/reindex"); rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	env.indexer.trigger = false
	if rec := env.do(t, http.MethodPost, "/api/library/reindex"); rec.Code != http.StatusConflict {
		t.Errorf("status while indexing = %d, want 409", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	health := decode[HealthResponse](t, rec)
	if health.Status != statusHealthy || health.TotalAssets != 4 {
		t.Errorf("health = %+v", health)
	}

	env.indexer.ready = false
	env.indexer.status = indexer.HealthStatus{Ready: false, InitialIndexError: "walk failed"}
	rec = env.do(t, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status when not ready = %d", rec.Code)
	}
	if health := decode[HealthResponse](t, rec); health.Status != statusDegraded {
		t.Errorf("status = %q, want degraded", health.Status)
	}

	if rec := env.do(t, http.MethodGet, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz = %d, want 503", rec.Code)
	}
	if rec := env.do(t, http.MethodHead, "/livez"); rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD livez = %d with %d bytes", rec.Code, rec.Body.Len())
	}
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"goVersion"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
