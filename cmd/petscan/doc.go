// Command petscan scans a photo directory for pictures of pets from the
// command line.
//
// Usage:
//
//	petscan scan [dir]     index dir, run one scan and print results by day
//	petscan index [dir]    index dir into the catalog only
//	petscan version        print build information
//
// The catalog lives under the user cache directory unless --db is given.
// Interrupting a scan with Ctrl+C cancels it; the photos accepted so far are
// still printed.
package main
