package library

import (
	"path"
	"strings"
)

// HeaderInfo is the pre-parsed header data a listing may carry for a file.
type HeaderInfo struct {
	AudioID      uint32 `json:"audio_id,omitempty"`
	Hash         string `json:"hash,omitempty"`
	TrackSeconds []int  `json:"track_seconds,omitempty"`
}

// File is one file of a listing. Header is nil when nothing was parsed.
type File struct {
	Name   string      `json:"name"`
	Size   int64       `json:"size"`
	Header *HeaderInfo `json:"header,omitempty"`
}

// Listing is the content of one directory.
type Listing struct {
	Directories []string `json:"directories"`
	Files       []File   `json:"files"`
}

// Lookup returns the file called name.
func (l Listing) Lookup(name string) (File, bool) {
	for _, file := range l.Files {
		if file.Name == name {
			return file, true
		}
	}
	return File{}, false
}

// IsTAF reports whether name carries the .taf extension.
func IsTAF(name string) bool {
	return strings.EqualFold(path.Ext(name), ".taf")
}
