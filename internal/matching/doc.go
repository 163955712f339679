// Package matching ranks catalog entries against the series and episode
// recovered from a filename.
//
// An Engine holds the catalog as an immutable snapshot tagged with a
// generation derived from the catalog content. Load swaps in a new snapshot atomically; IsCacheValid and
// State report whether it is still inside its TTL. Nothing refreshes the
// snapshot in the background, callers reload when the cache goes stale.
//
// Candidates carry the generation they were produced from. Resolve refuses
// candidates from any other generation with ErrStaleSnapshot so catalog indices
// are never applied to a different catalog, even across processes.
package matching
