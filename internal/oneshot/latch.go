package oneshot

import (
	"context"
	"sync/atomic"
)

// Latch delivers the first value passed to Resolve and drops the rest.
// The zero value is not usable; create latches with New.
type Latch[T any] struct {
	fired     atomic.Bool
	discarded atomic.Int64
	ch        chan T
	onDiscard func()
}

// Option configures a Latch.
type Option func(*options)

type options struct {
	onDiscard func()
}

// OnDiscard registers a hook invoked for every Resolve call after the first.
func OnDiscard(fn func()) Option {
	return func(o *options) {
		o.onDiscard = fn
	}
}

// New creates an unresolved latch.
func New[T any](opts ...Option) *Latch[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Latch[T]{
		ch:        make(chan T, 1),
		onDiscard: o.onDiscard,
	}
}

// Resolve offers v to the waiter. It reports whether v was the value that
// resolved the latch. Resolve never blocks and is safe for concurrent use.
func (l *Latch[T]) Resolve(v T) bool {
	if !l.fired.CompareAndSwap(false, true) {
		l.discarded.Add(1)
		if l.onDiscard != nil {
			l.onDiscard()
		}
		return false
	}
	l.ch <- v
	return true
}

// Resolved reports whether Resolve has been called at least once.
func (l *Latch[T]) Resolved() bool {
	return l.fired.Load()
}

// Discarded returns how many Resolve calls were dropped.
func (l *Latch[T]) Discarded() int64 {
	return l.discarded.Load()
}

// Wait blocks until the latch resolves or ctx is done. A latch can be
// waited on once; the value is consumed by the first successful Wait.
func (l *Latch[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-l.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Await starts a callback-based operation and returns its first result.
// start receives a resolve function that may be called any number of times,
// from any goroutine, including after Await has returned.
func Await[T any](ctx context.Context, start func(resolve func(T)), opts ...Option) (T, error) {
	l := New[T](opts...)
	start(func(v T) { l.Resolve(v) })
	return l.Wait(ctx)
}
