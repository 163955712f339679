package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CategoryCustom marks entries created by this tool.
const CategoryCustom = "custom"

// Entry is one record of a catalog document. Fields unknown to this package
// are kept in Extra and written back unchanged.
type Entry struct {
	No       string
	Model    string
	AudioID  []string
	Hash     []string
	Title    string
	Series   string
	Episodes string
	Tracks   []string
	Release  string
	Language string
	Category string
	Pic      string
	Extra    map[string]json.RawMessage
}

type wireEntry struct {
	No       string   `json:"no"`
	Model    string   `json:"model"`
	AudioID  []string `json:"audio_id"`
	Hash     []string `json:"hash"`
	Title    string   `json:"title"`
	Series   string   `json:"series"`
	Episodes string   `json:"episodes"`
	Tracks   []string `json:"tracks"`
	Release  string   `json:"release"`
	Language string   `json:"language"`
	Category string   `json:"category"`
	Pic      string   `json:"pic"`
}

var knownKeys = map[string]struct{}{
	"no": {}, "model": {}, "audio_id": {}, "hash": {}, "title": {}, "series": {},
	"episodes": {}, "tracks": {}, "release": {}, "language": {}, "category": {}, "pic": {},
}

// MarshalJSON writes the known fields in catalog order followed by any extra
// fields sorted by key. Nil lists are written as [].
func (e Entry) MarshalJSON() ([]byte, error) {
	wire := wireEntry{
		No:       e.No,
		Model:    e.Model,
		AudioID:  nonNil(e.AudioID),
		Hash:     nonNil(e.Hash),
		Title:    e.Title,
		Series:   e.Series,
		Episodes: e.Episodes,
		Tracks:   nonNil(e.Tracks),
		Release:  e.Release,
		Language: e.Language,
		Category: e.Category,
		Pic:      e.Pic,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(e.Extra))
	for key := range e.Extra {
		if _, known := knownKeys[key]; !known {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(e.Extra[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts strings or numbers for scalar fields and a single
// value or a list for list fields, since hand-edited catalogs mix both.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Entry
	var err error
	scalars := []struct {
		key string
		dst *string
	}{
		{"no", &out.No}, {"model", &out.Model}, {"title", &out.Title},
		{"series", &out.Series}, {"episodes", &out.Episodes}, {"release", &out.Release},
		{"language", &out.Language}, {"category", &out.Category}, {"pic", &out.Pic},
	}
	for _, field := range scalars {
		if *field.dst, err = flexString(raw[field.key]); err != nil {
			return fmt.Errorf("catalog entry field %s: %w", field.key, err)
		}
	}
	lists := []struct {
		key string
		dst *[]string
	}{
		{"audio_id", &out.AudioID}, {"hash", &out.Hash}, {"tracks", &out.Tracks},
	}
	for _, field := range lists {
		if *field.dst, err = flexList(raw[field.key]); err != nil {
			return fmt.Errorf("catalog entry field %s: %w", field.key, err)
		}
	}
	for key, value := range raw {
		if _, known := knownKeys[key]; known {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[key] = append(json.RawMessage(nil), value...)
	}
	*e = out
	return nil
}

func flexString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	case '{', '[':
		return "", fmt.Errorf("expected scalar, got %s", firstByte(trimmed))
	default:
		return string(trimmed), nil
	}
}

func flexList(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '[' {
		value, err := flexString(trimmed)
		if err != nil || value == "" {
			return nil, err
		}
		return []string{value}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		value, err := flexString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func firstByte(b []byte) string {
	if len(b) == 0 {
		return "nothing"
	}
	return strconv.QuoteRune(rune(b[0]))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// DecodeEntries parses a catalog document body. An empty body is an empty catalog.
func DecodeEntries(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return entries, nil
}

// EncodeEntries renders entries as an indented JSON array.
func EncodeEntries(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	return append(data, '\n'), nil
}

// NextModelNumber returns the model number following the highest numeric model
// that starts with prefix. Values below floor are ignored, so an empty catalog
// yields floor+1.
func NextModelNumber(entries []Entry, prefix string, floor int) int {
	highest := floor
	for _, entry := range entries {
		model := strings.TrimSpace(entry.Model)
		if !strings.HasPrefix(model, prefix) {
			continue
		}
		n, err := strconv.Atoi(model)
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return highest + 1
}

// MaxSequence returns the largest numeric "no" in entries, or -1 when none parse.
func MaxSequence(entries []Entry) int {
	highest := -1
	for _, entry := range entries {
		n, err := strconv.Atoi(strings.TrimSpace(entry.No))
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return highest
}
