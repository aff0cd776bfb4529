// Package middleware provides HTTP middleware for the petscan API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//
// Both wrap the response writer in a way that keeps http.Flusher and
// http.Hijacker working, so the scan events websocket can pass through.
package middleware
