package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tafsync/internal/services"
	"tafsync/internal/testsupport"
)

func TestLocalListerListsAndParses(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Hoerspiele")
	if err := os.MkdirAll(filepath.Join(dir, "Bibi"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testsupport.WriteTAF(t, filepath.Join(dir, "b.taf"), 1553093472, 1, 3)
	if err := os.WriteFile(filepath.Join(dir, "a.TAF"), []byte("short"), 0o644); err != nil {
		t.Fatalf("write short taf: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}

	lister := NewLocalLister(root, nil)
	listing, err := lister.ListDirectory(context.Background(), "Hoerspiele")
	if err != nil {
		t.Fatalf("ListDirectory returned error: %v", err)
	}
	if len(listing.Directories) != 1 || listing.Directories[0] != "Bibi" {
		t.Fatalf("unexpected directories %v", listing.Directories)
	}
	if len(listing.Files) != 3 {
		t.Fatalf("expected 3 files, got %+v", listing.Files)
	}

	short, _ := listing.Lookup("a.TAF")
	if short.Header != nil {
		t.Fatalf("expected no header for truncated file, got %+v", short.Header)
	}
	parsed, ok := listing.Lookup("b.taf")
	if !ok || parsed.Header == nil {
		t.Fatalf("expected parsed header, got %+v", parsed)
	}
	if parsed.Header.AudioID != 1553093472 || parsed.Header.Hash != "0102030405060708090a0b0c0d0e0f1011121314" {
		t.Fatalf("unexpected header %+v", parsed.Header)
	}
	if parsed.Size != 4096 {
		t.Fatalf("unexpected size %d", parsed.Size)
	}
	txt, _ := listing.Lookup("notes.txt")
	if txt.Header != nil {
		t.Fatal("expected non taf files to stay unparsed")
	}
}

func TestLocalListerStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTAF(t, filepath.Join(root, "top.taf"), 2000000, 1, 3)
	lister := NewLocalLister(root, nil)

	listing, err := lister.ListDirectory(context.Background(), "../../..")
	if err != nil {
		t.Fatalf("ListDirectory returned error: %v", err)
	}
	if _, ok := listing.Lookup("top.taf"); !ok {
		t.Fatalf("expected relative escape to clamp to root, got %+v", listing)
	}

	_, err = lister.ListDirectory(context.Background(), filepath.Dir(root))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for absolute path outside root, got %v", err)
	}
}

func TestLocalListerMissingDirectory(t *testing.T) {
	_, err := NewLocalLister(t.TempDir(), nil).ListDirectory(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIsTAF(t *testing.T) {
	for name, want := range map[string]bool{"a.taf": true, "B.TAF": true, "c.taf.bak": false, "taf": false} {
		if got := IsTAF(name); got != want {
			t.Fatalf("IsTAF(%q) = %v, want %v", name, got, want)
		}
	}
}
