// Package library is the SQLite catalog of the photo library.
//
// The indexer writes one row per image file; the scan pipeline reads the
// catalog through the assets.Source interface, newest first. Rows carry a
// creation date when one is known. Undated rows always sort after dated
// ones.
//
// The database runs in WAL mode so scans can read while the indexer writes.
package library
