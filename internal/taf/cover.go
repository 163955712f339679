package taf

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// CoverSearchWindow bounds how far past the header a cover image is searched for.
const CoverSearchWindow = 10 << 20

var (
	jpegStart = []byte{0xFF, 0xD8, 0xFF}
	jpegEnd   = []byte{0xFF, 0xD9}
	pngStart  = []byte("\x89PNG\r\n\x1a\n")
	pngEnd    = []byte("IEND\xaeB`\x82")
)

// ExtractCover returns the first embedded JPEG, or failing that PNG, found in
// data together with its format name. Candidates that do not decode as images
// are ignored; a nil slice means no usable cover.
func ExtractCover(data []byte) ([]byte, string) {
	if candidate := carve(data, jpegStart, jpegEnd); candidate != nil && validImage(candidate, "jpeg") {
		return candidate, "jpeg"
	}
	if candidate := carve(data, pngStart, pngEnd); candidate != nil && validImage(candidate, "png") {
		return candidate, "png"
	}
	return nil, ""
}

func carve(data, start, end []byte) []byte {
	from := bytes.Index(data, start)
	if from < 0 {
		return nil
	}
	to := bytes.Index(data[from:], end)
	if to < 0 {
		return nil
	}
	return data[from : from+to+len(end)]
}

// validImage checks the image header only. Pixel data is not decoded.
func validImage(data []byte, want string) bool {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil && format == want
}
