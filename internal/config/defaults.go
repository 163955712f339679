package config

const (
	defaultConfigPath          = "~/.config/tafsync/config.toml"
	defaultDataDir             = "~/.local/share/tafsync"
	defaultLogDir              = "~/.local/share/tafsync/logs"
	defaultCoverDir            = "~/.local/share/tafsync/pics"
	defaultCustomCatalogName   = "tonies.custom.json"
	defaultJournalName         = "journal.db"
	defaultServerTimeout       = 10
	defaultAutoSelectThreshold = 0.95
	defaultWeakMatchThreshold  = 0.60
	defaultCacheTTLSeconds     = 300
	defaultMaxCandidates       = 5
	defaultAnalyzeLimit        = 100
	defaultSearchLimit         = 50
	defaultProcessLimit        = 100
	defaultSearchResultLimit   = 5
	defaultModelPrefix         = "9000"
	defaultModelFloor          = 900000
	defaultLanguage            = "de-de"
	defaultCoverPublicPrefix   = "/library/own/pics"
	defaultCoverSearchRate     = 1.0
	defaultCoverSearchTimeout  = 15
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			CoverDir: defaultCoverDir,
		},
		Server: Server{
			TimeoutSeconds: defaultServerTimeout,
		},
		Matching: Matching{
			AutoSelectThreshold: defaultAutoSelectThreshold,
			WeakMatchThreshold:  defaultWeakMatchThreshold,
			CacheTTLSeconds:     defaultCacheTTLSeconds,
			MaxCandidates:       defaultMaxCandidates,
		},
		Batch: Batch{
			AnalyzeLimit:      defaultAnalyzeLimit,
			SearchLimit:       defaultSearchLimit,
			ProcessLimit:      defaultProcessLimit,
			SearchResultLimit: defaultSearchResultLimit,
			ModelPrefix:       defaultModelPrefix,
			ModelFloor:        defaultModelFloor,
			DefaultLanguage:   defaultLanguage,
			CoverPublicPrefix: defaultCoverPublicPrefix,
		},
		CoverSearch: CoverSearch{
			RequestsPerSecond: defaultCoverSearchRate,
			TimeoutSeconds:    defaultCoverSearchTimeout,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
