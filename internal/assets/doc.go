// Package assets defines the asset handles the scan pipeline works on and
// the Source interface it enumerates them from.
//
// A Source is an ordered, countable collection: Fetch resolves a capped,
// ordered working set whose handles are read by index. The sqlite catalog
// in package library is the production Source; MemorySource backs tests and
// small in-process libraries.
package assets
