// Package coversearch queries an image search API for cover art and downloads
// the chosen images. Search requests share a token bucket so bursts from a
// batch do not exceed the provider's rate limit.
package coversearch
