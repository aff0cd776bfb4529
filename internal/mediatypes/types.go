package mediatypes

import (
	"path/filepath"
	"strings"

	"petscan/internal/assets"
)

// ImageExtensions lists the image formats the loader can decode, either
// with libvips or the pure Go decoders.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
}

// VideoExtensions lists video formats. Videos are cataloged but never
// scanned.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
}

// ForPath returns the media type of a file by its extension. ok is false
// for files that are neither images nor videos.
func ForPath(path string) (mediaType assets.MediaType, ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ImageExtensions[ext]:
		return assets.MediaTypeImage, true
	case VideoExtensions[ext]:
		return assets.MediaTypeVideo, true
	default:
		return "", false
	}
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	mediaType, ok := ForPath(path)
	return ok && mediaType == assets.MediaTypeImage
}
