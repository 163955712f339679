package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateCoverSearch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.URL == "" {
		return nil
	}
	if err := validateHTTPURL(c.Server.URL); err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	return nil
}

func (c *Config) validateMatching() error {
	auto := c.Matching.AutoSelectThreshold
	weak := c.Matching.WeakMatchThreshold
	if auto < 0 || auto > 1 {
		return errors.New("matching.auto_select_threshold must be between 0 and 1")
	}
	if weak < 0 || weak > 1 {
		return errors.New("matching.weak_match_threshold must be between 0 and 1")
	}
	if weak > auto {
		return errors.New("matching.weak_match_threshold must not exceed matching.auto_select_threshold")
	}
	return nil
}

func (c *Config) validateBatch() error {
	for _, r := range c.Batch.ModelPrefix {
		if r < '0' || r > '9' {
			return fmt.Errorf("batch.model_prefix must be numeric, got %q", c.Batch.ModelPrefix)
		}
	}
	if !strings.HasPrefix(c.Batch.CoverPublicPrefix, "/") {
		return fmt.Errorf("batch.cover_public_prefix must be an absolute path, got %q", c.Batch.CoverPublicPrefix)
	}
	return nil
}

func (c *Config) validateCoverSearch() error {
	if c.CoverSearch.BaseURL == "" {
		return nil
	}
	if err := validateHTTPURL(c.CoverSearch.BaseURL); err != nil {
		return fmt.Errorf("cover_search.base_url: %w", err)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
