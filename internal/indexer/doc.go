// Package indexer keeps the library catalog in step with the photo
// directory.
//
// An index run walks the library with a pool of workers, turns every image
// and video file into a catalog row and upserts the rows in batches, pausing
// briefly between batches so scans reading the catalog are not starved.
// Rows for files that were not seen during a complete walk are removed
// afterwards. Hidden files and directories (prefixed with '.') are skipped.
//
// Asset ids are derived from the path relative to the library root, so a
// file keeps its id across runs. The creation date is the file
// modification time.
//
// Runs happen once at start, then on a fixed interval, and on demand via
// TriggerIndex. Only one run is in flight at a time.
package indexer
