package classify

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"

	"petscan/internal/oneshot"
)

func TestBestLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		labels []Label
		want   Result
	}{
		{
			name: "no labels",
			want: Result{},
		},
		{
			name:   "single dog",
			labels: []Label{{Identifier: "Dog", Confidence: 0.8}},
			want:   Result{Category: CategoryDog, Confidence: 0.8},
		},
		{
			name: "highest confidence wins",
			labels: []Label{
				{Identifier: "dog", Confidence: 0.4},
				{Identifier: "cat", Confidence: 0.91},
				{Identifier: "dog", Confidence: 0.5},
			},
			want: Result{Category: CategoryCat, Confidence: 0.91},
		},
		{
			name:   "unknown animal maps to other",
			labels: []Label{{Identifier: "rabbit", Confidence: 0.7}},
			want:   Result{Category: CategoryOther, Confidence: 0.7},
		},
		{
			name:   "zero confidence ignored",
			labels: []Label{{Identifier: "cat", Confidence: 0}},
			want:   Result{},
		},
		{
			name:   "confidence clamped",
			labels: []Label{{Identifier: "cat", Confidence: 1.5}},
			want:   Result{Category: CategoryCat, Confidence: 1},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := BestLabel(tt.labels); got != tt.want {
				t.Errorf("BestLabel() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCategoryPresentation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		category Category
		name     string
		emoji    string
	}{
		{CategoryDog, "Dog", "🐕"},
		{CategoryCat, "Cat", "🐱"},
		{CategoryOther, "Other Pet", "🐾"},
		{CategoryNone, "", ""},
	}

	for _, tt := range tests {
		if got := tt.category.DisplayName(); got != tt.name {
			t.Errorf("%q.DisplayName() = %q, want %q", tt.category, got, tt.name)
		}
		if got := tt.category.Emoji(); got != tt.emoji {
			t.Errorf("%q.Emoji() = %q, want %q", tt.category, got, tt.emoji)
		}
	}
}

// multiFireRecognizer reports each configured result in turn.
type multiFireRecognizer struct {
	results []Result
	err     error
}

func (m multiFireRecognizer) Recognize(_ image.Image, done func(Result, error)) {
	for _, r := range m.results {
		done(r, m.err)
	}
}

func TestAwaitResolvesOnce(t *testing.T) {
	t.Parallel()

	var discarded atomic.Int64
	rec := multiFireRecognizer{results: []Result{
		{Category: CategoryCat, Confidence: 0.9},
		{Category: CategoryDog, Confidence: 0.99},
		{},
	}}

	c := Await(rec, oneshot.OnDiscard(func() { discarded.Add(1) }))
	got, err := c.Classify(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Category != CategoryCat || got.Confidence != 0.9 {
		t.Errorf("Classify() = %+v, want first result", got)
	}
	if discarded.Load() != 2 {
		t.Errorf("discarded = %d, want 2", discarded.Load())
	}
}

func TestAwaitPropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("vision failed")
	c := Await(multiFireRecognizer{results: []Result{{}}, err: boom})
	if _, err := c.Classify(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("Classify error = %v, want %v", err, boom)
	}
}
