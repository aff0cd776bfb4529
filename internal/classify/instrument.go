package classify

import (
	"context"
	"image"
	"time"

	"petscan/internal/metrics"
)

// Instrumented wraps c so every call is recorded under the given backend
// label.
func Instrumented(backend string, c Classifier) Classifier {
	return Func(func(ctx context.Context, img image.Image) (Result, error) {
		start := time.Now()
		result, err := c.Classify(ctx, img)
		metrics.ClassifierDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

		status := "success"
		switch {
		case IsRateLimited(err):
			status = "rate_limited"
		case err != nil:
			status = "error"
		}
		metrics.ClassifierRequestsTotal.WithLabelValues(backend, status).Inc()
		return result, err
	})
}
