package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tafsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The journal is disabled unless WithJournal is given.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CoverDir = filepath.Join(base, "pics")
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.CustomCatalogPath = filepath.Join(base, "data", "tonies.custom.json")
	cfgVal.Journal.Enabled = false
	cfgVal.Journal.Path = filepath.Join(base, "data", "journal.db")
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(cfgVal.Paths.LibraryDir, 0o755); err != nil {
		t.Fatalf("mkdir library dir: %v", err)
	}
	return builder.cfg
}

// WithJournal enables the commit journal.
func WithJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = true
	}
}

// WithReferenceCatalog points the local reference catalog at path.
func WithReferenceCatalog(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.ReferenceCatalogPath = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WriteConfigFile encodes cfg as TOML next to its data directory and returns
// the file path. Server and cover search environment fallbacks are cleared
// so the file is the only source.
func WriteConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()
	t.Setenv("TAFSYNC_SERVER_URL", cfg.Server.URL)
	t.Setenv("TAFSYNC_COVER_SEARCH_URL", cfg.CoverSearch.BaseURL)

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
