package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations used by the CLI.
type Paths struct {
	DataDir              string `toml:"data_dir"`
	LogDir               string `toml:"log_dir"`
	CoverDir             string `toml:"cover_dir"`
	LibraryDir           string `toml:"library_dir"`
	CustomCatalogPath    string `toml:"custom_catalog_path"`
	ReferenceCatalogPath string `toml:"reference_catalog_path"`
}

// Server describes the media server that owns the file index, the reference
// catalog, and the reload endpoint.
type Server struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Matching tunes the catalog matching engine.
type Matching struct {
	AutoSelectThreshold float64 `toml:"auto_select_threshold"`
	WeakMatchThreshold  float64 `toml:"weak_match_threshold"`
	CacheTTLSeconds     int     `toml:"cache_ttl_seconds"`
	MaxCandidates       int     `toml:"max_candidates"`
}

// Batch holds the limits and allocation rules for batch operations.
type Batch struct {
	AnalyzeLimit      int    `toml:"analyze_limit"`
	SearchLimit       int    `toml:"search_limit"`
	ProcessLimit      int    `toml:"process_limit"`
	SearchResultLimit int    `toml:"search_result_limit"`
	ModelPrefix       string `toml:"model_prefix"`
	ModelFloor        int    `toml:"model_floor"`
	DefaultLanguage   string `toml:"default_language"`
	CoverPublicPrefix string `toml:"cover_public_prefix"`
}

// CoverSearch configures the external cover image search service.
type CoverSearch struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Journal configures the commit journal database.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tafsync.
//
// Configuration sections by subsystem:
//   - Paths: data, log and cover directories plus catalog documents
//   - Server: media server URL and credentials
//   - Matching: auto-select and weak-match thresholds, snapshot TTL
//   - Batch: request caps, model number allocation, entry defaults
//   - CoverSearch: image search endpoint and rate limit
//   - Journal: commit history database
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Server      Server      `toml:"server"`
	Matching    Matching    `toml:"matching"`
	Batch       Batch       `toml:"batch"`
	CoverSearch CoverSearch `toml:"cover_search"`
	Journal     Journal     `toml:"journal"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config file (or in the
// working directory) is loaded first so environment fallbacks can pick it up.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tafsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotEnv reads .env files without overriding variables that are already set.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "" && dir != "." {
		candidates = append([]string{filepath.Join(dir, ".env")}, candidates...)
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load env file %s: %w", abs, err)
		}
	}
	return nil
}

// EnsureDirectories creates the directories the CLI writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.CoverDir}
	if c.Paths.CustomCatalogPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.CustomCatalogPath))
	}
	if c.Journal.Enabled && c.Journal.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheTTL returns the matching snapshot lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Matching.CacheTTLSeconds) * time.Second
}

// ServerTimeout returns the HTTP timeout for media server requests.
func (c *Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// CoverSearchTimeout returns the HTTP timeout for cover search requests.
func (c *Config) CoverSearchTimeout() time.Duration {
	return time.Duration(c.CoverSearch.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
