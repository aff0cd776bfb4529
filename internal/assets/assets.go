package assets

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized is returned by Source.Authorize when the library cannot be
// read, e.g. missing filesystem permissions.
var ErrUnauthorized = errors.New("asset source not authorized")

// ErrOutOfRange is returned by FetchResult.At for an index outside the
// working set.
var ErrOutOfRange = errors.New("asset index out of range")

// MediaType identifies the kind of asset.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Handle is an immutable reference to a single asset in a library.
type Handle struct {
	// ID is stable and unique within a library.
	ID string `json:"id"`
	// CreatedAt is the creation timestamp; the zero value means unknown.
	CreatedAt time.Time `json:"createdAt,omitempty"`
	// Path is the local file backing the asset, if any.
	Path string `json:"path,omitempty"`
	// URL is a remote location for assets not stored locally.
	URL       string    `json:"url,omitempty"`
	MediaType MediaType `json:"mediaType"`
}

// HasCreationDate reports whether the asset carries a creation timestamp.
func (h Handle) HasCreationDate() bool {
	return !h.CreatedAt.IsZero()
}

// IsRemote reports whether image data must be fetched over the network.
func (h Handle) IsRemote() bool {
	return h.Path == "" && h.URL != ""
}

// Order selects the enumeration order of a fetch.
type Order int

const (
	// OrderCreatedDesc returns the most recent assets first. Assets without
	// a creation date sort last.
	OrderCreatedDesc Order = iota
	// OrderCreatedAsc returns the oldest assets first.
	OrderCreatedAsc
)

// Filter restricts which assets a fetch considers.
type Filter struct {
	// MediaType limits results to one kind of asset; empty matches all.
	MediaType MediaType
}

// Matches reports whether h passes the filter.
func (f Filter) Matches(h Handle) bool {
	return f.MediaType == "" || h.MediaType == f.MediaType
}

// FetchOptions describes a working set.
type FetchOptions struct {
	Filter Filter
	// Limit caps the number of handles; 0 means no limit.
	Limit int
	Order Order
}

// FetchResult is an ordered, fixed-size working set.
type FetchResult interface {
	Count() int
	At(ctx context.Context, index int) (Handle, error)
}

// Source is an ordered, countable collection of assets.
type Source interface {
	// Authorize verifies the source can be read. Implementations return an
	// error wrapping ErrUnauthorized when access is denied.
	Authorize(ctx context.Context) error
	// Count returns the number of assets available for the filter.
	Count(ctx context.Context, filter Filter) (int, error)
	// Fetch resolves a working set.
	Fetch(ctx context.Context, opts FetchOptions) (FetchResult, error)
}

// SliceResult is a FetchResult over an in-memory slice.
type SliceResult []Handle

// Count returns the number of handles.
func (r SliceResult) Count() int {
	return len(r)
}

// At returns the handle at index.
func (r SliceResult) At(_ context.Context, index int) (Handle, error) {
	if index < 0 || index >= len(r) {
		return Handle{}, ErrOutOfRange
	}
	return r[index], nil
}
