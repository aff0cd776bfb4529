// Package scan runs the pet photo scan.
//
// A run takes the newest assets from an [assets.Source] (at most
// Config.MaxPhotos), splits them into batches and, one item at a time, loads
// a small rendition of the image and classifies it. Accepted photos
// accumulate in a result set that is re-partitioned by day after every
// batch. Observers read the state through [Pipeline.Snapshot] or receive
// every published version through [Pipeline.Subscribe].
//
// Runs are last-call-wins: calling Scan while a run is in flight cancels it
// and retires its generation, so any write the old run still attempts is
// dropped. Cancellation is cooperative. It is checked before every batch and
// every item and interrupts the inter-batch cooldown, but an item that is
// already loading or classifying finishes first.
package scan
