package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tafsync/internal/catalog"
	"tafsync/internal/config"
	"tafsync/internal/journal"
	"tafsync/internal/library"
	"tafsync/internal/logging"
	"tafsync/internal/matching"
	"tafsync/internal/services"
	"tafsync/internal/services/coversearch"
)

// Lister returns the content of one library directory.
type Lister interface {
	ListDirectory(ctx context.Context, dir string) (library.Listing, error)
}

// CatalogSource loads the reference catalog the engine matches against.
type CatalogSource interface {
	LoadCatalog(ctx context.Context) ([]catalog.Entry, error)
}

// CatalogStore reads and replaces the custom catalog document.
type CatalogStore interface {
	Load(ctx context.Context) (catalog.Document, error)
	Save(ctx context.Context, doc catalog.Document, destinationHint string) error
}

// Reloader asks the box server to pick up catalog changes.
type Reloader interface {
	TriggerReload(ctx context.Context) error
}

// CoverSearcher finds candidate cover images for a text query.
type CoverSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]coversearch.Cover, error)
}

// ImageDownloader fetches an image by URL.
type ImageDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// CoverSaver persists a downloaded cover and returns its public path.
type CoverSaver interface {
	Save(ctx context.Context, sourceURL string, data []byte) (string, error)
}

// Journal records committed runs.
type Journal interface {
	Record(ctx context.Context, run journal.Run) error
}

// Dependencies bundles the collaborators of a Service. Reloader, the cover
// collaborators and Journal may be nil.
type Dependencies struct {
	Engine     *matching.Engine
	Lister     Lister
	Reference  CatalogSource
	Store      CatalogStore
	Reloader   Reloader
	Searcher   CoverSearcher
	Downloader ImageDownloader
	Covers     CoverSaver
	Journal    Journal
}

// Limits caps the size of each batch request.
type Limits struct {
	Analyze       int
	Search        int
	Process       int
	SearchResults int
	MaxCandidates int
}

// Allocation controls how new catalog entries are numbered and labelled.
type Allocation struct {
	ModelPrefix     string
	ModelFloor      int
	DefaultLanguage string
	DestinationHint string
}

// Service drives files through parsing, matching and catalog commits.
type Service struct {
	deps       Dependencies
	limits     Limits
	allocation Allocation
	logger     *slog.Logger
	now        func() time.Time
	newRunID   func() string
}

// Option customises the Service.
type Option func(*Service)

// WithClock overrides the time source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRunIDs overrides run id generation (primarily for tests).
func WithRunIDs(next func() string) Option {
	return func(s *Service) {
		if next != nil {
			s.newRunID = next
		}
	}
}

// WithLimits overrides the configured batch limits.
func WithLimits(limits Limits) Option {
	return func(s *Service) {
		s.limits = limits
	}
}

// NewService builds a batch service from configuration and collaborators.
func NewService(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...Option) *Service {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	s := &Service{
		deps: deps,
		limits: Limits{
			Analyze:       cfg.Batch.AnalyzeLimit,
			Search:        cfg.Batch.SearchLimit,
			Process:       cfg.Batch.ProcessLimit,
			SearchResults: cfg.Batch.SearchResultLimit,
			MaxCandidates: cfg.Matching.MaxCandidates,
		},
		allocation: Allocation{
			ModelPrefix:     cfg.Batch.ModelPrefix,
			ModelFloor:      cfg.Batch.ModelFloor,
			DefaultLanguage: cfg.Batch.DefaultLanguage,
			DestinationHint: cfg.Paths.CustomCatalogPath,
		},
		logger:   logging.NewComponentLogger(logger, "batch"),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deps.Engine == nil {
		s.deps.Engine = matching.NewEngine(matching.WithLogger(logger))
	}
	return s
}

// Engine returns the matching engine the service uses.
func (s *Service) Engine() *matching.Engine {
	return s.deps.Engine
}

func (s *Service) begin(ctx context.Context, stage string) (context.Context, string, *slog.Logger) {
	runID := s.newRunID()
	ctx = services.WithRequestID(ctx, runID)
	ctx = services.WithStage(ctx, stage)
	return ctx, runID, logging.WithContext(ctx, s.logger)
}

func checkLimit(stage string, count, limit int, noun string) error {
	if limit > 0 && count > limit {
		return services.Wrap(services.ErrValidation, stage, "validate request",
			fmt.Sprintf("maximum %d %s per batch, got %d", limit, noun, count), nil)
	}
	return nil
}
