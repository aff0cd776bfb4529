package classify

import (
	"context"
	"image"
	"strings"

	"petscan/internal/metrics"
	"petscan/internal/oneshot"
)

// Category is the kind of pet found in an image. The empty Category means
// no pet was recognized.
type Category string

const (
	CategoryNone  Category = ""
	CategoryDog   Category = "dog"
	CategoryCat   Category = "cat"
	CategoryOther Category = "other"
)

// Categories lists every non-empty category.
var Categories = []Category{CategoryDog, CategoryCat, CategoryOther}

// DisplayName returns the human readable name of the category.
func (c Category) DisplayName() string {
	switch c {
	case CategoryDog:
		return "Dog"
	case CategoryCat:
		return "Cat"
	case CategoryOther:
		return "Other Pet"
	default:
		return ""
	}
}

// Emoji returns a pictogram for the category.
func (c Category) Emoji() string {
	switch c {
	case CategoryDog:
		return "🐕"
	case CategoryCat:
		return "🐱"
	case CategoryOther:
		return "🐾"
	default:
		return ""
	}
}

// CategoryForLabel maps a recognizer label onto a category. Unknown labels
// are treated as some other animal.
func CategoryForLabel(label string) Category {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "dog":
		return CategoryDog
	case "cat":
		return CategoryCat
	default:
		return CategoryOther
	}
}

// Result is the outcome of classifying one image.
type Result struct {
	Category   Category `json:"category,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Label is a single recognizer observation.
type Label struct {
	Identifier string  `json:"identifier"`
	Confidence float64 `json:"confidence"`
}

// BestLabel picks the highest-confidence label and maps it to a Result.
// An empty or all-zero label set yields the zero Result.
func BestLabel(labels []Label) Result {
	var best *Label
	for i := range labels {
		if labels[i].Confidence > 0 && (best == nil || labels[i].Confidence > best.Confidence) {
			best = &labels[i]
		}
	}
	if best == nil {
		return Result{}
	}
	return Result{
		Category:   CategoryForLabel(best.Identifier),
		Confidence: clamp(best.Confidence),
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Classifier recognizes pets in decoded images.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (Result, error)
}

// Func adapts a function to the Classifier interface.
type Func func(ctx context.Context, img image.Image) (Result, error)

// Classify implements Classifier.
func (f Func) Classify(ctx context.Context, img image.Image) (Result, error) {
	return f(ctx, img)
}

// CallbackClassifier is the shape of recognizers that report through a
// completion handler rather than a return value.
type CallbackClassifier interface {
	Recognize(img image.Image, done func(Result, error))
}

type outcome struct {
	result Result
	err    error
}

// Await adapts a CallbackClassifier into a Classifier. The completion
// handler may fire any number of times; the first call wins and later ones
// are counted as duplicate callbacks unless opts install their own hook.
func Await(c CallbackClassifier, opts ...oneshot.Option) Classifier {
	opts = append([]oneshot.Option{oneshot.OnDiscard(metrics.ClassifierDuplicateCallbacks.Inc)}, opts...)
	return Func(func(ctx context.Context, img image.Image) (Result, error) {
		out, err := oneshot.Await(ctx, func(resolve func(outcome)) {
			c.Recognize(img, func(r Result, err error) {
				resolve(outcome{result: r, err: err})
			})
		}, opts...)
		if err != nil {
			return Result{}, err
		}
		return out.result, out.err
	})
}
