// Package results holds the accepted output of a scan: the pet photos that
// passed the acceptance threshold and their partition by calendar day.
//
// Everything here is pure. The pipeline owns the mutable state and uses
// these helpers to derive what it publishes.
package results
