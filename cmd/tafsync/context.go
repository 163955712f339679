package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tafsync/internal/batch"
	"tafsync/internal/catalog"
	"tafsync/internal/config"
	"tafsync/internal/coverstore"
	"tafsync/internal/journal"
	"tafsync/internal/library"
	"tafsync/internal/logging"
	"tafsync/internal/matching"
	"tafsync/internal/services/coversearch"
	"tafsync/internal/services/mediaserver"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return logging.NewFromConfig(nil)
	}
	copied := *cfg
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		copied.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
	}
	return logging.NewFromConfig(&copied)
}

// runtime bundles the collaborators a batch command needs.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	service   *batch.Service
	reference batch.CatalogSource
	journal   *journal.Store
}

func (r *runtime) Close() {
	if r.journal != nil {
		_ = r.journal.Close()
	}
}

// openRuntime builds the batch service. With a server url the media server
// provides listings, the reference catalog and reloads; otherwise the local
// library directory and reference catalog file are used.
func (c *commandContext) openRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}

	deps := batch.Dependencies{
		Store:  catalog.NewFileStore(cfg.Paths.CustomCatalogPath, logger),
		Covers: coverstore.New(cfg.Paths.CoverDir, cfg.Batch.CoverPublicPrefix, logger),
	}

	if cfg.Server.URL != "" {
		client, err := mediaserver.New(cfg.Server.URL, cfg.Server.APIKey,
			mediaserver.WithTimeout(cfg.ServerTimeout()),
			mediaserver.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		deps.Lister = client
		deps.Reference = client
		deps.Reloader = client
	} else {
		root := cfg.Paths.LibraryDir
		if root == "" {
			if root, err = os.Getwd(); err != nil {
				return nil, fmt.Errorf("resolve library directory: %w", err)
			}
		}
		deps.Lister = library.NewLocalLister(root, logger)
		if cfg.Paths.ReferenceCatalogPath != "" {
			deps.Reference = catalog.NewFileStore(cfg.Paths.ReferenceCatalogPath, logger)
		}
	}
	rt.reference = deps.Reference

	coverOpts := []coversearch.Option{
		coversearch.WithTimeout(cfg.CoverSearchTimeout()),
		coversearch.WithLogger(logger),
	}
	if cfg.CoverSearch.BaseURL != "" {
		opts := append(coverOpts, coversearch.WithRateLimit(cfg.CoverSearch.RequestsPerSecond))
		searcher, err := coversearch.New(cfg.CoverSearch.BaseURL, cfg.CoverSearch.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		deps.Searcher = searcher
		deps.Downloader = searcher
	} else {
		deps.Downloader = coversearch.NewDownloader(coverOpts...)
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		rt.journal = store
		deps.Journal = store
	}

	deps.Engine = matching.NewEngine(
		matching.WithThresholds(cfg.Matching.AutoSelectThreshold, cfg.Matching.WeakMatchThreshold),
		matching.WithTTL(cfg.CacheTTL()),
		matching.WithLogger(logger),
	)
	rt.service = batch.NewService(cfg, deps, logger)
	return rt, nil
}

func (c *commandContext) withRuntime(fn func(*runtime) error) error {
	rt, err := c.openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
