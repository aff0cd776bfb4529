package imageload

import (
	"fmt"
	"image"
	"io"
	"math"

	"petscan/internal/filesystem"
	"petscan/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the largest width or height decoded at full
	// quality; bigger images are downscaled.
	MaxImageDimension = 4096

	// MaxImagePixels caps decoded area (~20MP, ~80MB as RGBA).
	MaxImagePixels = 20_000_000
)

// constrainedSize returns the dimensions an image of width x height should be
// scaled to so it respects maxDimension and maxPixels. ok is false when no
// scaling is needed.
func constrainedSize(width, height, maxDimension, maxPixels int) (w, h int, ok bool) {
	if width <= 0 || height <= 0 {
		return width, height, false
	}
	if width <= maxDimension && height <= maxDimension && width*height <= maxPixels {
		return width, height, false
	}

	w, h = width, height
	if w > maxDimension || h > maxDimension {
		if w > h {
			h = h * maxDimension / w
			w = maxDimension
		} else {
			w = w * maxDimension / h
			h = maxDimension
		}
	}

	if w*h > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(w*h))
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}

	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h, true
}

// decodeFile decodes path with EXIF auto-orientation, downscaling anything
// larger than the package limits.
func decodeFile(path string) (image.Image, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return decodeReader(f)
}

// decodeReader is decodeFile for streamed data.
func decodeReader(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return constrain(img), nil
}

func constrain(img image.Image) image.Image {
	b := img.Bounds()
	w, h, ok := constrainedSize(b.Dx(), b.Dy(), MaxImageDimension, MaxImagePixels)
	if !ok {
		return img
	}
	logging.Debug("Constraining large image from %dx%d to %dx%d", b.Dx(), b.Dy(), w, h)
	return imaging.Resize(img, w, h, imaging.Lanczos)
}
