// Package mediatypes maps file extensions to asset media types for the
// indexer.
//
//	mediaType, ok := mediatypes.ForPath("holiday/IMG_0042.HEIC") // image, true
package mediatypes
