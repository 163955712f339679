// Package library describes directory listings of TAF files and provides a
// lister for folders on local disk.
package library
