package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"tafsync/internal/catalog"
	"tafsync/internal/language"
	"tafsync/internal/logging"
	"tafsync/internal/services"
	"tafsync/internal/textutil"
)

const (
	// DefaultAutoSelectThreshold is the confidence at which the best candidate
	// is selected without review.
	DefaultAutoSelectThreshold = 0.95
	// DefaultWeakMatchThreshold is the lowest confidence reported at all.
	DefaultWeakMatchThreshold = 0.60
	// DefaultTTL bounds how long a loaded snapshot counts as fresh.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxCandidates applies when a caller passes a non-positive limit.
	DefaultMaxCandidates = 10

	exactConfidence     = 0.95
	defaultLanguage     = "de-de"
	seriesWeight        = 0.6
	episodeWeight       = 0.4
	fuzzyEpisodeSeries  = 0.90
	fuzzyEpisodeEpisode = 0.80
	fuzzySeriesSeries   = 0.80
)

var (
	// ErrNotLoaded reports that no catalog snapshot has been loaded yet.
	ErrNotLoaded = errors.New("catalog snapshot not loaded")
	// ErrStaleSnapshot reports a candidate derived from a replaced snapshot.
	ErrStaleSnapshot = errors.New("candidate belongs to a replaced catalog snapshot")
)

// MatchType classifies how a candidate matched.
type MatchType string

const (
	MatchExact        MatchType = "exact"
	MatchFuzzySeries  MatchType = "fuzzy_series"
	MatchFuzzyEpisode MatchType = "fuzzy_episode"
	MatchPartial      MatchType = "partial"
)

// State is the cache lifecycle of an Engine.
type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateStale
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateStale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// Candidate is one ranked catalog entry. CatalogIndex is only meaningful for
// the snapshot identified by Generation. Generations are derived from catalog
// content, so a candidate stays resolvable in another process that loaded the
// same catalog.
type Candidate struct {
	CatalogIndex int       `json:"catalog_index"`
	Generation   uint64    `json:"generation"`
	Series       string    `json:"series"`
	Episodes     string    `json:"episodes,omitempty"`
	AudioID      []string  `json:"audio_id"`
	Hash         []string  `json:"hash"`
	Pic          string    `json:"pic,omitempty"`
	Model        string    `json:"model,omitempty"`
	Language     string    `json:"language"`
	Confidence   float64   `json:"confidence"`
	MatchType    MatchType `json:"match_type"`
}

// Result is the ranked outcome for one file.
type Result struct {
	FilePath      string      `json:"file_path"`
	ParsedSeries  string      `json:"parsed_series,omitempty"`
	ParsedEpisode string      `json:"parsed_episode,omitempty"`
	Candidates    []Candidate `json:"candidates"`
	BestMatch     *Candidate  `json:"best_match,omitempty"`
	AutoSelected  bool        `json:"auto_selected"`
}

// Query is one input to MatchBatch.
type Query struct {
	Path    string
	Series  string
	Episode string
}

// Stats summarizes the loaded snapshot.
type Stats struct {
	Loaded       bool      `json:"loaded"`
	TotalEntries int       `json:"total_entries"`
	UniqueSeries int       `json:"unique_series"`
	CacheValid   bool      `json:"cache_valid"`
	LastLoad     time.Time `json:"last_load,omitzero"`
	Generation   uint64    `json:"generation"`
}

type snapshot struct {
	entries     []catalog.Entry
	normSeries  []string
	seriesIndex map[string][]int
	generation  uint64
	loadedAt    time.Time
}

// Engine ranks catalog entries against parsed filename metadata. The catalog
// is held as an immutable snapshot replaced wholesale by Load, so concurrent
// matches never observe a partially built index.
type Engine struct {
	autoThreshold float64
	weakThreshold float64
	ttl           time.Duration
	now           func() time.Time
	logger        *slog.Logger

	current atomic.Pointer[snapshot]
}

// Option customises the Engine.
type Option func(*Engine)

// WithThresholds overrides the auto-select and weak-match thresholds.
func WithThresholds(auto, weak float64) Option {
	return func(e *Engine) {
		e.autoThreshold = auto
		e.weakThreshold = weak
	}
}

// WithTTL overrides how long a snapshot stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithClock overrides the time source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine constructs an engine with no catalog loaded.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		autoThreshold: DefaultAutoSelectThreshold,
		weakThreshold: DefaultWeakMatchThreshold,
		ttl:           DefaultTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "matching")
	return e
}

// Load replaces the snapshot with entries and returns its generation. Loading
// identical entries yields the same generation.
func (e *Engine) Load(entries []catalog.Entry) uint64 {
	snap := &snapshot{
		entries:     append([]catalog.Entry(nil), entries...),
		normSeries:  make([]string, len(entries)),
		seriesIndex: make(map[string][]int),
		generation:  SnapshotGeneration(entries),
		loadedAt:    e.now(),
	}
	for i, entry := range snap.entries {
		norm := textutil.NormalizeForMatch(entry.Series)
		snap.normSeries[i] = norm
		if norm != "" {
			snap.seriesIndex[norm] = append(snap.seriesIndex[norm], i)
		}
	}
	e.current.Store(snap)

	e.logger.Info("catalog snapshot loaded",
		logging.Int("entry_count", len(snap.entries)),
		logging.Int("unique_series", len(snap.seriesIndex)),
		logging.Uint64("generation", snap.generation))
	return snap.generation
}

// SnapshotGeneration returns the generation Load assigns to entries: the
// leading 64 bits of the catalog fingerprint, never 0.
func SnapshotGeneration(entries []catalog.Entry) uint64 {
	data, err := catalog.EncodeEntries(entries)
	if err != nil {
		data = fmt.Appendf(nil, "%#v", entries)
	}
	generation, err := strconv.ParseUint(catalog.Fingerprint(data)[:16], 16, 64)
	if err != nil || generation == 0 {
		return 1
	}
	return generation
}

// IsCacheValid reports whether a snapshot is loaded and younger than the TTL.
func (e *Engine) IsCacheValid() bool {
	return e.State() == StateLoaded
}

// State returns the current cache lifecycle state.
func (e *Engine) State() State {
	snap := e.current.Load()
	if snap == nil {
		return StateUninitialized
	}
	if e.now().Sub(snap.loadedAt) < e.ttl {
		return StateLoaded
	}
	return StateStale
}

// Generation returns the generation of the current snapshot, 0 before the
// first Load.
func (e *Engine) Generation() uint64 {
	if snap := e.current.Load(); snap != nil {
		return snap.generation
	}
	return 0
}

// MatchSingle ranks catalog entries for one parsed filename. At most
// maxCandidates candidates are returned, best first.
func (e *Engine) MatchSingle(series, episode, path string, maxCandidates int) Result {
	return e.match(e.current.Load(), Query{Path: path, Series: series, Episode: episode}, maxCandidates)
}

// MatchBatch applies MatchSingle to every query against one snapshot. Results
// are keyed by Query.Path.
func (e *Engine) MatchBatch(queries []Query, maxCandidates int) map[string]Result {
	snap := e.current.Load()
	results := make(map[string]Result, len(queries))
	for _, q := range queries {
		results[q.Path] = e.match(snap, q, maxCandidates)
	}
	return results
}

// Resolve returns the live catalog entry a candidate refers to. Candidates
// produced before the most recent Load are rejected with ErrStaleSnapshot.
func (e *Engine) Resolve(c Candidate) (catalog.Entry, error) {
	return e.ResolveIndex(c.CatalogIndex, c.Generation)
}

// ResolveIndex is Resolve for a bare catalog index and generation pair.
func (e *Engine) ResolveIndex(index int, generation uint64) (catalog.Entry, error) {
	snap := e.current.Load()
	if snap == nil {
		return catalog.Entry{}, services.Wrap(services.ErrValidation, "matching", "resolve", "", ErrNotLoaded)
	}
	if generation != snap.generation {
		return catalog.Entry{}, services.Wrap(services.ErrValidation, "matching", "resolve",
			fmt.Sprintf("generation %d, current %d", generation, snap.generation), ErrStaleSnapshot)
	}
	if index < 0 || index >= len(snap.entries) {
		return catalog.Entry{}, services.Wrap(services.ErrNotFound, "matching", "resolve",
			fmt.Sprintf("catalog index %d out of range", index), nil)
	}
	return snap.entries[index], nil
}

// Stats summarizes the current snapshot.
func (e *Engine) Stats() Stats {
	snap := e.current.Load()
	if snap == nil {
		return Stats{}
	}
	return Stats{
		Loaded:       true,
		TotalEntries: len(snap.entries),
		UniqueSeries: len(snap.seriesIndex),
		CacheValid:   e.IsCacheValid(),
		LastLoad:     snap.loadedAt,
		Generation:   snap.generation,
	}
}

type seriesHit struct {
	index int
	score float64
}

func (e *Engine) match(snap *snapshot, q Query, maxCandidates int) Result {
	result := Result{
		FilePath:      q.Path,
		ParsedSeries:  q.Series,
		ParsedEpisode: q.Episode,
		Candidates:    []Candidate{},
	}
	if q.Series == "" || snap == nil || len(snap.entries) == 0 {
		return result
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	query := textutil.NormalizeForMatch(q.Series)
	scores := make(map[string]float64, len(snap.seriesIndex))
	var hits []seriesHit
	for i, entry := range snap.entries {
		if entry.Series == "" {
			continue
		}
		norm := snap.normSeries[i]
		score, ok := scores[norm]
		if !ok {
			score = seriesScore(query, norm)
			scores[norm] = score
		}
		if score >= e.weakThreshold {
			hits = append(hits, seriesHit{index: i, score: score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if limit := 2 * maxCandidates; len(hits) > limit {
		hits = hits[:limit]
	}

	for _, hit := range hits {
		entry := snap.entries[hit.index]
		episodeScore := EpisodeSimilarity(q.Episode, entry.Episodes)
		confidence := seriesWeight*hit.score + episodeWeight*episodeScore
		if confidence < e.weakThreshold {
			continue
		}
		lang := language.CatalogTag(entry.Language, defaultLanguage)
		result.Candidates = append(result.Candidates, Candidate{
			CatalogIndex: hit.index,
			Generation:   snap.generation,
			Series:       entry.Series,
			Episodes:     entry.Episodes,
			AudioID:      nonNil(entry.AudioID),
			Hash:         nonNil(entry.Hash),
			Pic:          entry.Pic,
			Model:        entry.Model,
			Language:     lang,
			Confidence:   confidence,
			MatchType:    classify(confidence, hit.score, episodeScore),
		})
	}
	sort.SliceStable(result.Candidates, func(a, b int) bool {
		return result.Candidates[a].Confidence > result.Candidates[b].Confidence
	})
	if len(result.Candidates) > maxCandidates {
		result.Candidates = result.Candidates[:maxCandidates]
	}
	if len(result.Candidates) > 0 {
		best := result.Candidates[0]
		result.BestMatch = &best
		result.AutoSelected = best.Confidence >= e.autoThreshold
	}

	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		decision := "review"
		switch {
		case result.BestMatch == nil:
			decision = "unmatched"
		case result.AutoSelected:
			decision = "auto_selected"
		}
		attrs := logging.DecisionAttrs("catalog_match", decision, fmt.Sprintf("%d candidates", len(result.Candidates)))
		attrs = append(attrs, logging.String(logging.FieldFilePath, q.Path))
		e.logger.Debug("match decision", logging.Args(attrs...)...)
	}
	return result
}

func classify(confidence, series, episode float64) MatchType {
	switch {
	case confidence >= exactConfidence:
		return MatchExact
	case series >= fuzzyEpisodeSeries && episode >= fuzzyEpisodeEpisode:
		return MatchFuzzyEpisode
	case series >= fuzzySeriesSeries:
		return MatchFuzzySeries
	default:
		return MatchPartial
	}
}

func nonNil(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
