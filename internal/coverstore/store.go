package coverstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"tafsync/internal/logging"
	"tafsync/internal/services"
	"tafsync/internal/textutil"
)

// Store writes cover images below dir and reports them under publicPrefix,
// the path the box server exposes the directory as.
type Store struct {
	fs           afero.Fs
	dir          string
	publicPrefix string
	logger       *slog.Logger
}

// New creates a store on the host filesystem.
func New(dir, publicPrefix string, logger *slog.Logger) *Store {
	return NewWithFS(afero.NewOsFs(), dir, publicPrefix, logger)
}

// NewWithFS creates a store on fs.
func NewWithFS(fs afero.Fs, dir, publicPrefix string, logger *slog.Logger) *Store {
	return &Store{
		fs:           fs,
		dir:          filepath.Clean(dir),
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		logger:       logging.NewComponentLogger(logger, "coverstore"),
	}
}

// FileName returns the stable file name used for a cover downloaded from sourceURL.
func FileName(sourceURL string) string {
	sum := md5.Sum([]byte(sourceURL))
	return "cover_" + hex.EncodeToString(sum[:])[:8] + ".jpg"
}

// Save stores the image downloaded from sourceURL and returns its public path.
// Saving the same URL twice overwrites the earlier file.
func (s *Store) Save(ctx context.Context, sourceURL string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.SaveNamed(FileName(sourceURL), data)
}

// SaveNamed stores data under name, sanitized to a plain file name, and
// returns its public path.
func (s *Store) SaveNamed(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", services.Wrap(services.ErrValidation, "coverstore", "save", "empty image", nil)
	}
	name = textutil.SanitizeFileName(filepath.Base(name), "cover.jpg")
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrPersistence, "coverstore", "save", "create directory", err)
	}
	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrPersistence, "coverstore", "save", target, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return "", services.Wrap(services.ErrPersistence, "coverstore", "save", target, err)
	}
	s.logger.Debug("cover saved",
		logging.String(logging.FieldFilePath, target),
		logging.Int("bytes", len(data)))
	return s.PublicPath(name), nil
}

// PublicPath maps a stored file name to the path recorded in catalog entries.
func (s *Store) PublicPath(name string) string {
	return path.Join(s.publicPrefix, name)
}

// Exists reports whether a cover called name is stored.
func (s *Store) Exists(name string) (bool, error) {
	_, err := s.fs.Stat(filepath.Join(s.dir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat cover: %w", err)
}
