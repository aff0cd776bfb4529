package results

import (
	"time"

	"petscan/internal/assets"
	"petscan/internal/classify"
)

// DefaultThreshold is the minimum confidence, exclusive, for a photo to be
// accepted.
const DefaultThreshold = 0.6

// PetPhoto is an accepted classification.
type PetPhoto struct {
	ID         string            `json:"id"`
	Date       time.Time         `json:"date"`
	Confidence float64           `json:"confidence"`
	Category   classify.Category `json:"category"`
	Path       string            `json:"path,omitempty"`
	URL        string            `json:"url,omitempty"`
}

// Same reports whether p and other refer to the same asset. Identity is the
// asset id; date, confidence and category do not take part.
func (p PetPhoto) Same(other PetPhoto) bool {
	return p.ID == other.ID
}

// Handle returns an asset handle for the photo's underlying image.
func (p PetPhoto) Handle() assets.Handle {
	return assets.Handle{
		ID:        p.ID,
		CreatedAt: p.Date,
		Path:      p.Path,
		URL:       p.URL,
		MediaType: assets.MediaTypeImage,
	}
}

// Accept turns a classification into a PetPhoto. The result is accepted only
// when its confidence is strictly greater than threshold and it names a
// category. Assets without a creation date are stamped with now.
func Accept(asset assets.Handle, result classify.Result, threshold float64, now time.Time) (PetPhoto, bool) {
	if result.Category == classify.CategoryNone || result.Confidence <= threshold {
		return PetPhoto{}, false
	}

	date := asset.CreatedAt
	if !asset.HasCreationDate() {
		date = now
	}

	return PetPhoto{
		ID:         asset.ID,
		Date:       date,
		Confidence: result.Confidence,
		Category:   result.Category,
		Path:       asset.Path,
		URL:        asset.URL,
	}, true
}

// Accumulator collects accepted photos in insertion order, ignoring repeats
// of an id already present.
type Accumulator struct {
	photos []PetPhoto
	seen   map[string]struct{}
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]struct{})}
}

// Add appends p unless a photo with the same id was already added. It
// reports whether p was appended.
func (a *Accumulator) Add(p PetPhoto) bool {
	if _, ok := a.seen[p.ID]; ok {
		return false
	}
	a.seen[p.ID] = struct{}{}
	a.photos = append(a.photos, p)
	return true
}

// Len returns the number of accepted photos.
func (a *Accumulator) Len() int {
	return len(a.photos)
}

// Snapshot returns a copy of the accepted photos.
func (a *Accumulator) Snapshot() []PetPhoto {
	out := make([]PetPhoto, len(a.photos))
	copy(out, a.photos)
	return out
}

// CountByCategory tallies photos per category.
func CountByCategory(photos []PetPhoto) map[classify.Category]int {
	counts := make(map[classify.Category]int, len(classify.Categories))
	for _, p := range photos {
		counts[p.Category]++
	}
	return counts
}
