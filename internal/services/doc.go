// Package services defines shared utilities consumed by the batch pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and operation names for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (malformed container, lookup, persistence, validation) with
//     errors.Is regardless of how deep they were wrapped.
//
// Subpackages hold the HTTP clients for the media server and the cover search
// service.
package services
