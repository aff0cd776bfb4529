// Package oneshot adapts callback-style APIs that may signal completion more
// than once into calls that resolve exactly once.
//
// A Latch accepts any number of Resolve calls; only the first one is
// delivered to the waiter, later ones are discarded. Await wraps the common
// pattern of starting a callback-based request and blocking on its first
// result:
//
//	img, err := oneshot.Await(ctx, func(resolve func(image.Image)) {
//	    manager.RequestImage(ctx, asset, req, func(img image.Image, _ imageload.Delivery) {
//	        resolve(img)
//	    })
//	})
package oneshot
