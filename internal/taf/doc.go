// Package taf reads the identifying fields of Tonie audio containers.
//
// A container starts with a fixed 4096 byte header followed by Ogg/Opus audio.
// The header carries a little-endian audio identifier at 0x04, a 20 byte
// content hash at 0x08, a track count at 0x1C and a quality value at 0x20.
// When the fixed layout cannot be decoded the parser falls back to scanning
// for plausible values instead of failing. An embedded JPEG or PNG cover may
// appear anywhere in the first 10 MiB after the header.
//
// Only inputs shorter than the header are rejected; the error carries the
// services.ErrMalformedContainer marker.
package taf
