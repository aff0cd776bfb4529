// Package handlers provides the HTTP API of the petscan service.
//
// It includes handlers for:
//   - Starting, cancelling and observing scans
//   - Listing accepted photos, flat or grouped by day
//   - Serving a full-quality JPEG of an accepted photo
//   - A websocket stream of scan progress
//   - Library re-indexing, health checks and version information
package handlers
