package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"tafsync/internal/fileutil"
	"tafsync/internal/logging"
	"tafsync/internal/services"
)

// ErrConflict reports that the document changed on disk after it was loaded.
var ErrConflict = errors.New("catalog changed since it was loaded")

const lockRetryDelay = 50 * time.Millisecond

// Document is a loaded catalog together with the version it was read at.
type Document struct {
	Entries []Entry
	// Version fingerprints the bytes the document was loaded from; empty when
	// the file did not exist.
	Version string
}

// FileStore reads and writes a catalog document on the local filesystem.
// Saves hold an exclusive lock on a sibling .lock file, refuse to overwrite a
// document that changed since Load, and replace the file atomically.
type FileStore struct {
	dir    string
	name   string
	logger *slog.Logger
}

// NewFileStore creates a store for the document at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		dir:    filepath.Dir(path),
		name:   filepath.Base(path),
		logger: logging.NewComponentLogger(logger, "catalog"),
	}
}

// Path returns the default document path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, s.name)
}

// Load reads the default document. A missing file is an empty catalog.
func (s *FileStore) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	return s.read(s.Path())
}

// LoadCatalog returns the entries of the default document.
func (s *FileStore) LoadCatalog(ctx context.Context) ([]Entry, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Entries, nil
}

// Save replaces the document named by destinationHint (the default document
// when empty) with doc.Entries. Only the base name of the hint is used so
// writes stay inside the store directory.
func (s *FileStore) Save(ctx context.Context, doc Document, destinationHint string) error {
	target := s.target(destinationHint)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return services.Wrap(services.ErrPersistence, "catalog", "save", "create directory", err)
	}
	lock := flock.New(target + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "catalog", "lock", target, err)
	}
	if !locked {
		return services.Wrap(services.ErrPersistence, "catalog", "lock", "lock not acquired", ctx.Err())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release catalog lock",
				logging.String(logging.FieldEventType, "catalog_unlock_failed"),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the stale .lock file if writes keep failing"),
				logging.String(logging.FieldImpact, "later saves may wait for the lock"))
		}
	}()

	current, err := s.read(target)
	if err != nil {
		return err
	}
	if current.Version != doc.Version {
		return services.Wrap(services.ErrPersistence, "catalog", "save", target, ErrConflict)
	}

	data, err := EncodeEntries(doc.Entries)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "catalog", "save", "encode", err)
	}
	if err := fileutil.WriteAtomic(target, data, 0o644); err != nil {
		return services.Wrap(services.ErrPersistence, "catalog", "save", target, err)
	}

	s.logger.Info("catalog saved",
		logging.String("path", target),
		logging.Int("entry_count", len(doc.Entries)))
	return nil
}

func (s *FileStore) target(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return s.Path()
	}
	base := filepath.Base(hint)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return s.Path()
	}
	return filepath.Join(s.dir, base)
}

func (s *FileStore) read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, nil
		}
		return Document{}, services.Wrap(services.ErrPersistence, "catalog", "read", path, err)
	}
	entries, err := DecodeEntries(data)
	if err != nil {
		return Document{}, services.Wrap(services.ErrPersistence, "catalog", "read", path, err)
	}
	return Document{Entries: entries, Version: Fingerprint(data)}, nil
}

// Fingerprint returns the version string for a document body.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
