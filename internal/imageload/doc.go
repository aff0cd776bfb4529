// Package imageload delivers decoded images for assets.
//
// Loader.RequestImage is callback based and, like the photo library APIs it
// models, may invoke its handler more than once for a single request: an
// opportunistic request first receives a degraded preview and then the final
// image. Callers that need exactly one answer use Load, which resolves on
// the first delivery and discards the rest.
//
// Local files are decoded with libvips when it is available (decode-time
// shrinking keeps peak memory low for the fast tier) and with the imaging
// package otherwise. Remote assets are fetched through an SSRF-safe HTTP
// client and only when the request allows network access.
package imageload
