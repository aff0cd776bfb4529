package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"petscan/internal/assets"
	"petscan/internal/classify"
	"petscan/internal/imageload"
	"petscan/internal/logging"
	"petscan/internal/metrics"
	"petscan/internal/results"

	"github.com/google/uuid"
)

// Backpressure lets the pipeline wait out resource pressure between
// batches. memory.Monitor implements it.
type Backpressure interface {
	WaitIfPaused(ctx context.Context) bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBackpressure makes every batch wait on bp before starting.
func WithBackpressure(bp Backpressure) Option {
	return func(p *Pipeline) {
		p.backpressure = bp
	}
}

// WithClock replaces the clock used for timestamps and undated assets.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline scans an asset source for pet photos. It is safe for concurrent
// use; all state changes go through a single mutex.
type Pipeline struct {
	source       assets.Source
	images       imageload.Manager
	classifier   classify.Classifier
	cfg          Config
	backpressure Backpressure
	now          func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	subs       map[int]chan State
	nextSub    int
}

// New creates an idle pipeline.
func New(source assets.Source, images imageload.Manager, classifier classify.Classifier, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:     source,
		images:     images,
		classifier: classifier,
		cfg:        cfg.normalized(),
		now:        time.Now,
		subs:       make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Scan starts a new run, superseding any run in flight. It returns once the
// working set is known; the run itself proceeds in the background. If the
// source is not authorized no run starts and the current state is left as
// it is.
//
// ctx bounds only the authorization and fetch steps. Use Cancel to stop the
// run.
func (p *Pipeline) Scan(ctx context.Context) error {
	if err := p.source.Authorize(ctx); err != nil {
		metrics.ScanRunsTotal.WithLabelValues("unauthorized").Inc()
		return fmt.Errorf("scan: %w", err)
	}

	fetched, err := p.source.Fetch(ctx, assets.FetchOptions{
		Filter: assets.Filter{MediaType: assets.MediaTypeImage},
		Limit:  p.cfg.MaxPhotos,
		Order:  assets.OrderCreatedDesc,
	})
	if err != nil {
		return fmt.Errorf("scan: fetch assets: %w", err)
	}
	total := min(fetched.Count(), p.cfg.MaxPhotos)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runID := uuid.NewString()
	done := make(chan struct{})

	p.mu.Lock()
	if p.running {
		logging.Info("Scan %s superseded by %s", p.state.RunID, runID)
		p.cancel()
		metrics.ScanRunsTotal.WithLabelValues("superseded").Inc()
	}
	p.generation++
	gen := p.generation
	p.running = true
	p.cancel = cancel
	p.done = done
	p.state = State{
		RunID:         runID,
		Version:       p.state.Version,
		IsScanning:    true,
		TotalCount:    total,
		Results:       []results.PetPhoto{},
		ResultsByDate: results.DateIndex{},
		StartedAt:     p.now(),
	}
	p.publishLocked()
	p.mu.Unlock()

	logging.Info("Scan %s started: %d photos in batches of %d", runID, total, p.cfg.BatchSize)
	metrics.ScanRunning.Set(1)

	go p.run(runCtx, gen, runID, fetched, total, done)
	return nil
}

// Cancel stops the run in flight and immediately publishes IsScanning=false.
// The run still publishes its partial results when it winds down. Cancel is
// a no-op when no run is in flight.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || !p.state.IsScanning {
		return
	}
	logging.Info("Scan %s cancellation requested", p.state.RunID)
	p.cancel()
	p.state.IsScanning = false
	p.publishLocked()
}

// Snapshot returns a copy of the current state.
func (p *Pipeline) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// Wait blocks until the current run, if any, has published its final state.
func (p *Pipeline) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PhotosForDate returns the accepted photos taken on the same calendar day
// as t.
func (p *Pipeline) PhotosForDate(t time.Time) []results.PetPhoto {
	p.mu.Lock()
	defer p.mu.Unlock()

	photos := p.state.ResultsByDate.PhotosFor(t, p.cfg.Location)
	if photos == nil {
		return nil
	}
	out := make([]results.PetPhoto, len(photos))
	copy(out, photos)
	return out
}

// Photo looks up an accepted photo of the current state by asset id.
func (p *Pipeline) Photo(id string) (results.PetPhoto, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, photo := range p.state.Results {
		if photo.ID == id {
			return photo, true
		}
	}
	return results.PetPhoto{}, false
}

// Subscribe registers for every published state. The channel keeps at most
// buffer pending states; when a slow subscriber falls behind, the oldest
// pending state is dropped so the newest is always delivered. The returned
// function unsubscribes and closes the channel.
func (p *Pipeline) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	ch <- p.state
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// update applies fn to the state if gen is still the current run. It
// reports false for a superseded run; the write is dropped.
func (p *Pipeline) update(gen uint64, fn func(s *State)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		metrics.ScanStaleWritesDropped.Inc()
		return false
	}
	fn(&p.state)
	p.publishLocked()
	return true
}

// publishLocked bumps the version and fans the state out. p.mu must be held.
func (p *Pipeline) publishLocked() {
	p.state.Version++

	metrics.ScanProgress.Set(p.state.Progress)
	metrics.ScanResults.Set(float64(len(p.state.Results)))

	for _, ch := range p.subs {
		select {
		case ch <- p.state:
		default:
			// Drop the oldest pending state to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p.state:
			default:
			}
		}
	}
}
