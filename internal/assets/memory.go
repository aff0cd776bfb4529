package assets

import (
	"context"
	"sort"
	"sync"
)

// MemorySource is a Source over a fixed set of handles.
type MemorySource struct {
	mu      sync.RWMutex
	handles []Handle
	authErr error
}

// NewMemorySource creates a source containing handles.
func NewMemorySource(handles []Handle) *MemorySource {
	cp := make([]Handle, len(handles))
	copy(cp, handles)
	return &MemorySource{handles: cp}
}

// SetAuthorizationError makes Authorize fail with err (nil restores access).
func (s *MemorySource) SetAuthorizationError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authErr = err
}

// Authorize implements Source.
func (s *MemorySource) Authorize(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authErr
}

// Count implements Source.
func (s *MemorySource) Count(_ context.Context, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, h := range s.handles {
		if filter.Matches(h) {
			n++
		}
	}
	return n, nil
}

// Fetch implements Source. The returned result is a snapshot; later changes
// to the source do not affect it.
func (s *MemorySource) Fetch(_ context.Context, opts FetchOptions) (FetchResult, error) {
	s.mu.RLock()
	matched := make([]Handle, 0, len(s.handles))
	for _, h := range s.handles {
		if opts.Filter.Matches(h) {
			matched = append(matched, h)
		}
	}
	s.mu.RUnlock()

	SortHandles(matched, opts.Order)

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return SliceResult(matched), nil
}

// SortHandles orders handles in place. The sort is stable and breaks ties on
// ID so equal timestamps enumerate deterministically.
func SortHandles(handles []Handle, order Order) {
	sort.SliceStable(handles, func(i, j int) bool {
		a, b := handles[i], handles[j]
		if a.HasCreationDate() != b.HasCreationDate() {
			// undated assets always sort last
			return a.HasCreationDate()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == OrderCreatedAsc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
