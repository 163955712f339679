// Package textutil provides text processing utilities for fuzzy comparison and
// filename sanitization.
//
// The primary use cases are:
//   - Folding German text (umlauts, sharp s, other diacritics) to ASCII-ish
//     lowercase before comparison
//   - Scoring string similarity with Ratio, PartialRatio, TokenSortRatio and
//     TokenSetRatio, all returning values in [0, 1]
//   - Sanitizing filenames for safe filesystem use
//
// The ratios are built on an Indel distance (Levenshtein with substitutions
// costing two edits) so Ratio equals 1 - distance / (len(a) + len(b)).
package textutil
