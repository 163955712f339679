package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"tafsync/internal/catalog"
)

// WriteTAF writes a bare 4096 byte TAF header to path. The 20 hash bytes
// count up from hashSeed, so a seed of 1 yields "0102...14".
func WriteTAF(t testing.TB, path string, audioID uint32, hashSeed byte, tracks uint32) {
	t.Helper()

	block := make([]byte, 4096)
	binary.LittleEndian.PutUint32(block[4:], audioID)
	for i := range 20 {
		block[8+i] = hashSeed + byte(i)
	}
	binary.LittleEndian.PutUint32(block[0x1C:], tracks)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, block, 0o644); err != nil {
		t.Fatalf("write taf %s: %v", path, err)
	}
}

// WriteCatalog writes entries as a catalog document at path.
func WriteCatalog(t testing.TB, path string, entries []catalog.Entry) {
	t.Helper()

	data, err := catalog.EncodeEntries(entries)
	if err != nil {
		t.Fatalf("encode catalog: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write catalog %s: %v", path, err)
	}
}
