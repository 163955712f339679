package matching

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"tafsync/internal/catalog"
	"tafsync/internal/services"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSeriesSimilarity(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		target string
		want   float64
	}{
		{"identical", "Bibi Blocksberg", "Bibi Blocksberg", 1},
		{"article and case", "die drei ???", "Drei", 1},
		{"containment", "TKKG", "TKKG Junior", 0.85 + 0.10*4.0/11.0},
		{"empty query", "", "TKKG", 0},
		{"only punctuation", "???", "TKKG", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SeriesSimilarity(tc.query, tc.target); !approx(got, tc.want) {
				t.Fatalf("SeriesSimilarity(%q, %q) = %v, want %v", tc.query, tc.target, got, tc.want)
			}
		})
	}

	if got := SeriesSimilarity("Paw Patrol", "Bibi Blocksberg"); got >= DefaultWeakMatchThreshold {
		t.Fatalf("unrelated series scored %v", got)
	}
}

func TestSeriesSimilarityReflexive(t *testing.T) {
	for _, s := range []string{"Benjamin Blümchen", "Der kleine Drache Kokosnuss", "Conni", "a b c"} {
		if got := SeriesSimilarity(s, s); got != 1 {
			t.Fatalf("SeriesSimilarity(%q, %q) = %v, want 1", s, s, got)
		}
	}
}

func TestEpisodeSimilarity(t *testing.T) {
	tests := []struct {
		query  string
		target string
		want   float64
	}{
		{"Folge 3", "Episode 3", 1},
		{"Folge 3", "Folge 4", 0.2},
		{"", "", 1},
		{"Folge 3", "", 0.5},
		{"", "Die Reise", 0.5},
		{"Die Reise", "die reise", 1},
		{"Die Reise zum Mond", "Reise zum Mond", 1},
	}
	for _, tc := range tests {
		if got := EpisodeSimilarity(tc.query, tc.target); !approx(got, tc.want) {
			t.Fatalf("EpisodeSimilarity(%q, %q) = %v, want %v", tc.query, tc.target, got, tc.want)
		}
	}
}

func TestExtractEpisodeNumber(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"Folge 12", 12, true},
		{"#3", 3, true},
		{"7. Die Reise", 7, true},
		{"Teil 2 und Folge 9", 9, true},
		{"Der Wolf 5", 5, true},
		{"04 Der Schatz", 4, true},
		{"Abenteuer", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got, ok := ExtractEpisodeNumber(tc.text)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ExtractEpisodeNumber(%q) = %d, %v; want %d, %v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMatchSingleExactAutoSelects(t *testing.T) {
	engine := NewEngine()
	engine.Load([]catalog.Entry{{Series: "Bibi Blocksberg", Episodes: "Folge 3", Model: "10000001"}})

	result := engine.MatchSingle("Bibi Blocksberg", "Folge 3", "/lib/bibi.taf", 5)
	if len(result.Candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(result.Candidates))
	}
	best := result.BestMatch
	if best == nil || best.CatalogIndex != 0 || !approx(best.Confidence, 1) {
		t.Fatalf("unexpected best match %+v", best)
	}
	if best.MatchType != MatchExact {
		t.Fatalf("expected exact match, got %s", best.MatchType)
	}
	if !result.AutoSelected {
		t.Fatal("expected auto selection")
	}
	if best.Language != "de-de" {
		t.Fatalf("expected default language, got %q", best.Language)
	}
	if result.FilePath != "/lib/bibi.taf" {
		t.Fatalf("unexpected file path %q", result.FilePath)
	}
}

func TestMatchSingleRanksAndClassifies(t *testing.T) {
	engine := NewEngine()
	engine.Load([]catalog.Entry{
		{Series: "Paw Patrol", Episodes: "Folge 3"},
		{Series: "Bibi Blocksberg", Episodes: "Folge 4"},
		{Series: "Bibi Blocksberg", Episodes: "Folge 3", Language: "en-us"},
		{Series: "", Episodes: "Folge 3"},
	})

	result := engine.MatchSingle("Bibi Blocksberg", "Folge 3", "x.taf", 5)
	if len(result.Candidates) != 2 {
		t.Fatalf("expected two candidates, got %+v", result.Candidates)
	}
	first, second := result.Candidates[0], result.Candidates[1]
	if first.CatalogIndex != 2 || first.MatchType != MatchExact || first.Language != "en-us" {
		t.Fatalf("unexpected first candidate %+v", first)
	}
	if second.CatalogIndex != 1 || !approx(second.Confidence, 0.68) || second.MatchType != MatchFuzzySeries {
		t.Fatalf("unexpected second candidate %+v", second)
	}
}

func TestMatchSingleKeepsCatalogOrderForTies(t *testing.T) {
	engine := NewEngine()
	entries := make([]catalog.Entry, 5)
	for i := range entries {
		entries[i] = catalog.Entry{Series: "Conni", Episodes: "Folge 1"}
	}
	engine.Load(entries)

	result := engine.MatchSingle("Conni", "Folge 1", "conni.taf", 2)
	if len(result.Candidates) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(result.Candidates))
	}
	if result.Candidates[0].CatalogIndex != 0 || result.Candidates[1].CatalogIndex != 1 {
		t.Fatalf("expected catalog order for ties, got %d, %d",
			result.Candidates[0].CatalogIndex, result.Candidates[1].CatalogIndex)
	}
}

func TestMatchSingleEmptyInputs(t *testing.T) {
	engine := NewEngine()
	result := engine.MatchSingle("Bibi", "Folge 1", "a.taf", 5)
	if result.BestMatch != nil || len(result.Candidates) != 0 || result.Candidates == nil {
		t.Fatalf("expected empty result before load, got %+v", result)
	}

	engine.Load([]catalog.Entry{{Series: "Bibi"}})
	result = engine.MatchSingle("", "Folge 1", "a.taf", 5)
	if result.BestMatch != nil || result.AutoSelected {
		t.Fatalf("expected empty result for empty series, got %+v", result)
	}
}

func TestMatchSingleReviewBelowAutoThreshold(t *testing.T) {
	engine := NewEngine()
	engine.Load([]catalog.Entry{{Series: "Bibi Blocksberg", Episodes: "Folge 4"}})

	result := engine.MatchSingle("Bibi Blocksberg", "Folge 3", "a.taf", 5)
	if result.BestMatch == nil || result.AutoSelected {
		t.Fatalf("expected reviewable match, got %+v", result)
	}

	lenient := NewEngine(WithThresholds(0.6, 0.5))
	lenient.Load([]catalog.Entry{{Series: "Bibi Blocksberg", Episodes: "Folge 4"}})
	if !lenient.MatchSingle("Bibi Blocksberg", "Folge 3", "a.taf", 5).AutoSelected {
		t.Fatal("expected auto selection with lowered threshold")
	}
}

func TestMatchBatchKeyedByPath(t *testing.T) {
	engine := NewEngine()
	engine.Load([]catalog.Entry{
		{Series: "Bibi Blocksberg", Episodes: "Folge 3"},
		{Series: "TKKG", Episodes: "Folge 1"},
	})

	results := engine.MatchBatch([]Query{
		{Path: "a.taf", Series: "Bibi Blocksberg", Episode: "Folge 3"},
		{Path: "b.taf", Series: "TKKG", Episode: "Folge 1"},
		{Path: "c.taf"},
	}, 5)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results["a.taf"].BestMatch.CatalogIndex != 0 || results["b.taf"].BestMatch.CatalogIndex != 1 {
		t.Fatalf("unexpected batch results %+v", results)
	}
	if results["c.taf"].BestMatch != nil {
		t.Fatal("expected no match for empty query")
	}
}

func TestCacheValidityFollowsTTL(t *testing.T) {
	clock := newClock()
	engine := NewEngine(WithClock(clock.Now), WithTTL(5*time.Minute))

	if engine.IsCacheValid() || engine.State() != StateUninitialized {
		t.Fatal("expected uninitialized engine to be invalid")
	}
	engine.Load(nil)
	if !engine.IsCacheValid() || engine.State() != StateLoaded {
		t.Fatal("expected fresh snapshot to be valid")
	}
	clock.Advance(5*time.Minute - time.Second)
	if !engine.IsCacheValid() {
		t.Fatal("expected snapshot to be valid just before ttl")
	}
	clock.Advance(time.Second)
	if engine.IsCacheValid() || engine.State() != StateStale {
		t.Fatalf("expected stale snapshot at ttl, got %s", engine.State())
	}
	engine.Load(nil)
	if !engine.IsCacheValid() {
		t.Fatal("expected reload to refresh snapshot")
	}
}

func TestResolveRejectsStaleGeneration(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Resolve(Candidate{}); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}

	first := engine.Load([]catalog.Entry{{Series: "Bibi", Model: "1"}})
	candidate := *engine.MatchSingle("Bibi", "", "a.taf", 5).BestMatch
	if candidate.Generation != first {
		t.Fatalf("candidate generation %d, want %d", candidate.Generation, first)
	}
	entry, err := engine.Resolve(candidate)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if entry.Model != "1" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	second := engine.Load([]catalog.Entry{{Series: "Other"}, {Series: "Bibi", Model: "2"}})
	if second == first {
		t.Fatal("expected new generation")
	}
	_, err = engine.Resolve(candidate)
	if !errors.Is(err, ErrStaleSnapshot) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected stale snapshot validation error, got %v", err)
	}

	if _, err := engine.ResolveIndex(7, second); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for out of range index, got %v", err)
	}
}

func TestStats(t *testing.T) {
	clock := newClock()
	engine := NewEngine(WithClock(clock.Now))
	if stats := engine.Stats(); stats.Loaded || stats.TotalEntries != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	engine.Load([]catalog.Entry{
		{Series: "Bibi Blocksberg"},
		{Series: "bibi blocksberg"},
		{Series: "TKKG"},
		{Series: ""},
	})
	stats := engine.Stats()
	if !stats.Loaded || stats.TotalEntries != 4 || stats.UniqueSeries != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.CacheValid || !stats.LastLoad.Equal(clock.Now()) || stats.Generation != engine.Generation() || stats.Generation == 0 {
		t.Fatalf("unexpected cache stats %+v", stats)
	}
}

func TestGenerationFollowsCatalogContent(t *testing.T) {
	entries := []catalog.Entry{{Series: "TKKG", Episodes: "Folge 1", Model: "10000001"}}

	first := NewEngine()
	generation := first.Load(entries)
	if generation == 0 || generation != SnapshotGeneration(entries) {
		t.Fatalf("unexpected generation %d", generation)
	}

	// A second engine stands in for a later run against the same catalog.
	second := NewEngine()
	if got := second.Load(append([]catalog.Entry(nil), entries...)); got != generation {
		t.Fatalf("expected identical catalogs to share generation %d, got %d", generation, got)
	}
	if _, err := second.ResolveIndex(0, generation); err != nil {
		t.Fatalf("expected selection from another engine to resolve: %v", err)
	}

	changed := NewEngine()
	changed.Load([]catalog.Entry{{Series: "Bibi"}, entries[0]})
	if _, err := changed.ResolveIndex(0, generation); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected stale snapshot after catalog change, got %v", err)
	}
}
