// Package catalog models catalog documents: JSON arrays of figure records
// keyed by audio identifier and content hash.
//
// Entry tolerates the loose typing found in hand-maintained catalogs and keeps
// unknown fields intact across a load/save round trip. FileStore provides
// whole-document reads and writes guarded by a file lock and a content
// version check, so two overlapping writers cannot silently drop each other's
// changes. NextModelNumber and MaxSequence derive the identifiers for newly
// appended custom entries.
package catalog
