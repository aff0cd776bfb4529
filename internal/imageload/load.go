package imageload

import (
	"context"
	"image"

	"petscan/internal/assets"
	"petscan/internal/logging"
	"petscan/internal/metrics"
	"petscan/internal/oneshot"
)

// Load requests an image and waits for the first delivery. Any further
// deliveries for the same request are discarded. It returns false when the
// first delivery carries no image or ctx ends first.
func Load(ctx context.Context, m Manager, asset assets.Handle, req Request) (image.Image, bool) {
	type delivery struct {
		img image.Image
		err error
	}

	got, err := oneshot.Await(ctx, func(resolve func(delivery)) {
		m.RequestImage(ctx, asset, req, func(img image.Image, d Delivery) {
			resolve(delivery{img: img, err: d.Err})
		})
	}, oneshot.OnDiscard(func() {
		metrics.ImageLoadDuplicateDeliveries.Inc()
	}))
	if err != nil {
		logging.Debug("Image load for %s abandoned: %v", asset.ID, err)
		return nil, false
	}
	if got.err != nil || got.img == nil {
		return nil, false
	}
	return got.img, true
}
