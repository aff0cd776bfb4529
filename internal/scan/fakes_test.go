package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"petscan/internal/assets"
	"petscan/internal/classify"
	"petscan/internal/imageload"
)

// taggedImage carries the asset id through the loader so the fake
// classifier can look up a scripted result.
type taggedImage struct {
	*image.Gray
	id      string
	preview bool
}

// fakeLoader delivers tagged images. Opportunistic mode fires the handler
// twice: a preview, then the final image.
type fakeLoader struct {
	failIDs       map[string]bool
	opportunistic bool
	async         bool
}

func (l *fakeLoader) RequestImage(_ context.Context, asset assets.Handle, _ imageload.Request, handler imageload.Handler) {
	deliver := func() {
		if l.failIDs[asset.ID] {
			handler(nil, imageload.Delivery{Err: errors.New("unreadable")})
			return
		}
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		if l.opportunistic {
			handler(taggedImage{Gray: img, id: asset.ID, preview: true}, imageload.Delivery{Degraded: true})
		}
		handler(taggedImage{Gray: img, id: asset.ID}, imageload.Delivery{})
	}
	if l.async {
		go deliver()
		return
	}
	deliver()
}

// fakeClassifier returns scripted results per asset id.
type fakeClassifier struct {
	mu      sync.Mutex
	results map[string]classify.Result
	errIDs  map[string]bool
	seen    []string
	calls   atomic.Int64

	// block, when set, is waited on by the first call only.
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (c *fakeClassifier) Classify(_ context.Context, img image.Image) (classify.Result, error) {
	c.calls.Add(1)
	tagged, ok := img.(taggedImage)
	if !ok {
		return classify.Result{}, fmt.Errorf("unexpected image %T", img)
	}

	if c.block != nil {
		first := false
		c.once.Do(func() { first = true })
		if first {
			close(c.entered)
			<-c.block
		}
	}

	c.mu.Lock()
	c.seen = append(c.seen, tagged.id)
	c.mu.Unlock()

	if c.errIDs[tagged.id] {
		return classify.Result{}, errors.New("model failure")
	}
	if tagged.preview {
		return classify.Result{Category: classify.CategoryOther, Confidence: 0.99}, nil
	}
	return c.results[tagged.id], nil
}

func (c *fakeClassifier) seenIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.seen))
	copy(out, c.seen)
	return out
}

// countingBackpressure records every wait.
type countingBackpressure struct {
	waits atomic.Int64
}

func (b *countingBackpressure) WaitIfPaused(context.Context) bool {
	b.waits.Add(1)
	return true
}

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// makeHandles creates n image assets, newest first, one hour apart.
func makeHandles(n int) []assets.Handle {
	handles := make([]assets.Handle, n)
	for i := range handles {
		handles[i] = assets.Handle{
			ID:        fmt.Sprintf("asset-%02d", i),
			CreatedAt: baseTime.Add(-time.Duration(i) * time.Hour),
			Path:      fmt.Sprintf("/photos/%02d.jpg", i),
			MediaType: assets.MediaTypeImage,
		}
	}
	return handles
}

// allDogs scripts a confident dog for every handle.
func allDogs(handles []assets.Handle) map[string]classify.Result {
	out := make(map[string]classify.Result, len(handles))
	for _, h := range handles {
		out[h.ID] = classify.Result{Category: classify.CategoryDog, Confidence: 0.9}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 3
	cfg.Cooldown = 0
	cfg.Location = time.UTC
	return cfg
}
