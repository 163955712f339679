package taf

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tafsync/internal/services"
)

const (
	// HeaderSize is the fixed length of the TAF header block.
	HeaderSize = 4096

	offsetAudioID = 0x04
	offsetHash    = 0x08
	offsetTracks  = 0x1C
	offsetQuality = 0x20
	hashLength    = 20

	maxTrackCount = 500
	maxQuality    = 100

	heuristicIDScanLimit   = 100
	heuristicHashScanLimit = 200
	heuristicIDMin         = 1_000_000
	heuristicIDMax         = 4_000_000_000
	heuristicHashMinUnique = 10
)

var errDecode = errors.New("taf: header field out of range")

// Header holds the identifying fields read from a TAF header block.
type Header struct {
	AudioID    uint32
	HasAudioID bool
	// Hash is the lowercase hex encoding of the 20 byte content hash, empty when unknown.
	Hash       string
	TrackCount int
	Quality    int
	Size       int64
	FileName   string
	Cover      []byte
	CoverType  string
	// Heuristic reports that the fields were recovered by scanning rather than fixed offsets.
	Heuristic bool
}

// Parse decodes the header from data, which must hold at least HeaderSize
// bytes. size is the full container size; bytes beyond the header are
// searched for an embedded cover image.
func Parse(data []byte, size int64) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, shortHeader(len(data))
	}
	header := decode(data[:HeaderSize])
	header.Size = size
	window := data[HeaderSize:]
	if len(window) > CoverSearchWindow {
		window = window[:CoverSearchWindow]
	}
	header.Cover, header.CoverType = ExtractCover(window)
	return header, nil
}

// ParseHeaderReader reads only the header block from r. No cover is
// extracted.
func ParseHeaderReader(r io.ReaderAt, size int64) (Header, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(io.NewSectionReader(r, 0, HeaderSize), buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Header{}, shortHeader(n)
		}
		return Header{}, services.Wrap(services.ErrMalformedContainer, "taf", "read header", "", err)
	}
	header := decode(buf)
	header.Size = size
	return header, nil
}

// ParseReader reads the header and the cover search window from r.
func ParseReader(r io.ReaderAt, size int64) (Header, error) {
	header, err := ParseHeaderReader(r, size)
	if err != nil {
		return Header{}, err
	}

	windowLen := int64(CoverSearchWindow)
	if size > 0 && size-HeaderSize < windowLen {
		windowLen = max(size-HeaderSize, 0)
	}
	if windowLen > 0 {
		window, err := io.ReadAll(io.NewSectionReader(r, HeaderSize, windowLen))
		if err == nil {
			header.Cover, header.CoverType = ExtractCover(window)
		}
	}
	return header, nil
}

// ParseFile parses the TAF container at path, including its cover.
func ParseFile(path string) (Header, error) {
	return parseFile(path, ParseReader)
}

// ParseHeaderFile parses only the header block of the TAF container at path.
// It reads HeaderSize bytes regardless of the file size.
func ParseHeaderFile(path string) (Header, error) {
	return parseFile(path, ParseHeaderReader)
}

func parseFile(path string, parse func(io.ReaderAt, int64) (Header, error)) (Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("open taf file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Header{}, fmt.Errorf("stat taf file: %w", err)
	}
	header, err := parse(file, info.Size())
	if err != nil {
		return Header{}, err
	}
	header.FileName = filepath.Base(path)
	return header, nil
}

func decode(block []byte) Header {
	header, err := parseStrict(block)
	if err != nil {
		return ParseHeuristic(block)
	}
	return header
}

// parseStrict reads the nominal fixed-offset layout.
func parseStrict(block []byte) (Header, error) {
	if len(block) < offsetQuality+4 {
		return Header{}, errDecode
	}
	header := Header{
		AudioID:    binary.LittleEndian.Uint32(block[offsetAudioID:]),
		HasAudioID: true,
		Hash:       hex.EncodeToString(block[offsetHash : offsetHash+hashLength]),
	}
	if tracks := binary.LittleEndian.Uint32(block[offsetTracks:]); tracks >= 1 && tracks <= maxTrackCount {
		header.TrackCount = int(tracks)
	}
	quality := binary.LittleEndian.Uint32(block[offsetQuality:])
	if quality > maxQuality {
		quality = min(quality/1000, maxQuality)
	}
	header.Quality = int(quality)
	return header, nil
}

// ParseHeuristic scans block for plausible identifier and hash values when the
// fixed layout cannot be decoded. The identifier is the first 4-byte aligned
// little-endian value in (1e6, 4e9) within the first 100 bytes; the hash is the
// first 20 byte window after offset 4 holding more than 10 distinct byte values.
// It never fails.
func ParseHeuristic(block []byte) Header {
	header := Header{TrackCount: 1, Heuristic: true}

	idLimit := min(heuristicIDScanLimit, len(block)-4)
	for offset := 0; offset < idLimit; offset += 4 {
		value := binary.LittleEndian.Uint32(block[offset:])
		if value > heuristicIDMin && value < heuristicIDMax {
			header.AudioID = value
			header.HasAudioID = true
			break
		}
	}
	if !header.HasAudioID {
		return header
	}

	hashLimit := min(heuristicHashScanLimit, len(block)-hashLength)
	for offset := 4; offset < hashLimit; offset++ {
		window := block[offset : offset+hashLength]
		if looksLikeHash(window) {
			header.Hash = hex.EncodeToString(window)
			break
		}
	}
	return header
}

func looksLikeHash(window []byte) bool {
	var seen [256]bool
	unique := 0
	for _, b := range window {
		if !seen[b] {
			seen[b] = true
			unique++
		}
	}
	return unique > heuristicHashMinUnique
}

func shortHeader(n int) error {
	return services.Wrap(services.ErrMalformedContainer, "taf", "read header",
		fmt.Sprintf("header too small (%d of %d bytes)", n, HeaderSize), nil)
}
