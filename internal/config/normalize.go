package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeMatching()
	c.normalizeBatch()
	c.normalizeCoverSearch()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CoverDir) == "" {
		c.Paths.CoverDir = defaultCoverDir
	}
	if c.Paths.CoverDir, err = expandPath(c.Paths.CoverDir); err != nil {
		return fmt.Errorf("paths.cover_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(strings.TrimSpace(c.Paths.LibraryDir)); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CustomCatalogPath) == "" {
		c.Paths.CustomCatalogPath = filepath.Join(c.Paths.DataDir, defaultCustomCatalogName)
	}
	if c.Paths.CustomCatalogPath, err = expandPath(c.Paths.CustomCatalogPath); err != nil {
		return fmt.Errorf("paths.custom_catalog_path: %w", err)
	}
	if c.Paths.ReferenceCatalogPath, err = expandPath(strings.TrimSpace(c.Paths.ReferenceCatalogPath)); err != nil {
		return fmt.Errorf("paths.reference_catalog_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.URL = strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	if c.Server.URL == "" {
		if value, ok := os.LookupEnv("TAFSYNC_SERVER_URL"); ok {
			c.Server.URL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.Server.APIKey = strings.TrimSpace(c.Server.APIKey)
	if c.Server.APIKey == "" {
		if value, ok := os.LookupEnv("TAFSYNC_SERVER_API_KEY"); ok {
			c.Server.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Server.TimeoutSeconds <= 0 {
		c.Server.TimeoutSeconds = defaultServerTimeout
	}
}

func (c *Config) normalizeMatching() {
	if c.Matching.CacheTTLSeconds <= 0 {
		c.Matching.CacheTTLSeconds = defaultCacheTTLSeconds
	}
	if c.Matching.MaxCandidates <= 0 {
		c.Matching.MaxCandidates = defaultMaxCandidates
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.AnalyzeLimit <= 0 {
		c.Batch.AnalyzeLimit = defaultAnalyzeLimit
	}
	if c.Batch.SearchLimit <= 0 {
		c.Batch.SearchLimit = defaultSearchLimit
	}
	if c.Batch.ProcessLimit <= 0 {
		c.Batch.ProcessLimit = defaultProcessLimit
	}
	if c.Batch.SearchResultLimit <= 0 {
		c.Batch.SearchResultLimit = defaultSearchResultLimit
	}
	c.Batch.ModelPrefix = strings.TrimSpace(c.Batch.ModelPrefix)
	if c.Batch.ModelPrefix == "" {
		c.Batch.ModelPrefix = defaultModelPrefix
	}
	if c.Batch.ModelFloor <= 0 {
		c.Batch.ModelFloor = defaultModelFloor
	}
	c.Batch.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Batch.DefaultLanguage))
	if c.Batch.DefaultLanguage == "" {
		c.Batch.DefaultLanguage = defaultLanguage
	}
	c.Batch.CoverPublicPrefix = strings.TrimRight(strings.TrimSpace(c.Batch.CoverPublicPrefix), "/")
	if c.Batch.CoverPublicPrefix == "" {
		c.Batch.CoverPublicPrefix = defaultCoverPublicPrefix
	}
}

func (c *Config) normalizeCoverSearch() {
	c.CoverSearch.BaseURL = strings.TrimRight(strings.TrimSpace(c.CoverSearch.BaseURL), "/")
	if c.CoverSearch.BaseURL == "" {
		if value, ok := os.LookupEnv("TAFSYNC_COVER_SEARCH_URL"); ok {
			c.CoverSearch.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.CoverSearch.APIKey = strings.TrimSpace(c.CoverSearch.APIKey)
	if c.CoverSearch.APIKey == "" {
		if value, ok := os.LookupEnv("TAFSYNC_COVER_SEARCH_API_KEY"); ok {
			c.CoverSearch.APIKey = strings.TrimSpace(value)
		}
	}
	if c.CoverSearch.RequestsPerSecond <= 0 {
		c.CoverSearch.RequestsPerSecond = defaultCoverSearchRate
	}
	if c.CoverSearch.TimeoutSeconds <= 0 {
		c.CoverSearch.TimeoutSeconds = defaultCoverSearchTimeout
	}
}

func (c *Config) normalizeJournal() error {
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = filepath.Join(c.Paths.DataDir, defaultJournalName)
	}
	var err error
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
