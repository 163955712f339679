package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tafsync/internal/logging"
	"tafsync/internal/services"
	"tafsync/internal/taf"
)

// LocalLister lists directories below a root folder and parses the header of
// every TAF file it finds.
type LocalLister struct {
	root   string
	logger *slog.Logger
}

// NewLocalLister creates a lister rooted at root.
func NewLocalLister(root string, logger *slog.Logger) *LocalLister {
	return &LocalLister{
		root:   filepath.Clean(root),
		logger: logging.NewComponentLogger(logger, "library"),
	}
}

// ListDirectory lists dir, which is interpreted relative to the root. Paths
// that would leave the root are rejected.
func (l *LocalLister) ListDirectory(ctx context.Context, dir string) (Listing, error) {
	full, err := l.resolve(dir)
	if err != nil {
		return Listing{}, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Listing{}, services.Wrap(services.ErrNotFound, "library", "list directory", dir, err)
		}
		return Listing{}, services.Wrap(services.ErrLookup, "library", "list directory", dir, err)
	}

	listing := Listing{Directories: []string{}, Files: []File{}}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Listing{}, err
		}
		if entry.IsDir() {
			listing.Directories = append(listing.Directories, entry.Name())
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		file := File{Name: entry.Name(), Size: info.Size()}
		if IsTAF(file.Name) {
			file.Header = l.readHeader(filepath.Join(full, file.Name))
		}
		listing.Files = append(listing.Files, file)
	}
	sort.Strings(listing.Directories)
	sort.Slice(listing.Files, func(i, j int) bool { return listing.Files[i].Name < listing.Files[j].Name })
	return listing, nil
}

func (l *LocalLister) readHeader(path string) *HeaderInfo {
	header, err := taf.ParseHeaderFile(path)
	if err != nil {
		l.logger.Debug("taf header unreadable",
			logging.String(logging.FieldFilePath, path),
			logging.Error(err))
		return nil
	}
	info := &HeaderInfo{Hash: header.Hash}
	if header.HasAudioID {
		info.AudioID = header.AudioID
	}
	return info
}

func (l *LocalLister) resolve(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if filepath.IsAbs(dir) {
		rel, err := filepath.Rel(l.root, filepath.Clean(dir))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", services.Wrap(services.ErrValidation, "library", "resolve path",
				fmt.Sprintf("%s is outside %s", dir, l.root), err)
		}
		return filepath.Join(l.root, rel), nil
	}
	// Rooting the relative path first keeps ".." from climbing above the root.
	return filepath.Join(l.root, filepath.Clean(string(filepath.Separator)+dir)), nil
}
