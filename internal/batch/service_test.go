package batch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tafsync/internal/batch"
	"tafsync/internal/catalog"
	"tafsync/internal/journal"
	"tafsync/internal/library"
	"tafsync/internal/matching"
	"tafsync/internal/services"
	"tafsync/internal/services/coversearch"
)

const schuleFile = "Margit_Auer_-_Die_Schule_der_magischen_Tiere_-_Hoerspiel_-_Folge_01.taf"

type fakeLister struct {
	mu       sync.Mutex
	listings map[string]library.Listing
	errs     map[string]error
	calls    []string
}

func (f *fakeLister) ListDirectory(_ context.Context, dir string) (library.Listing, error) {
	f.mu.Lock()
	f.calls = append(f.calls, dir)
	f.mu.Unlock()
	if err := f.errs[dir]; err != nil {
		return library.Listing{}, err
	}
	return f.listings[dir], nil
}

type fakeSource struct {
	entries []catalog.Entry
	err     error
	calls   int
}

func (f *fakeSource) LoadCatalog(context.Context) ([]catalog.Entry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type fakeStore struct {
	doc     catalog.Document
	loadErr error
	saveErr error
	saved   []catalog.Document
	hint    string
}

func (f *fakeStore) Load(context.Context) (catalog.Document, error) {
	if f.loadErr != nil {
		return catalog.Document{}, f.loadErr
	}
	return f.doc, nil
}

func (f *fakeStore) Save(_ context.Context, doc catalog.Document, hint string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, doc)
	f.hint = hint
	return nil
}

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) TriggerReload(context.Context) error {
	f.calls++
	return f.err
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]coversearch.Cover
	errs    map[string]error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]coversearch.Cover, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

type fakeDownloader struct {
	err error
}

func (f fakeDownloader) Download(context.Context, string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("jpeg"), nil
}

type fakeCovers struct{}

func (fakeCovers) Save(_ context.Context, sourceURL string, _ []byte) (string, error) {
	return "/library/own/pics/" + strings.TrimPrefix(sourceURL, "https://img.example/"), nil
}

type fakeJournal struct {
	runs []journal.Run
}

func (f *fakeJournal) Record(_ context.Context, run journal.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
}

func newService(t *testing.T, deps batch.Dependencies) *batch.Service {
	t.Helper()
	return batch.NewService(nil, deps, nil, batch.WithRunIDs(sequentialIDs()))
}

func intPtr(v int) *int { return &v }

func TestAnalyzeRejectsOversizedBatch(t *testing.T) {
	lister := &fakeLister{}
	source := &fakeSource{}
	svc := newService(t, batch.Dependencies{Lister: lister, Reference: source})

	paths := make([]string, 101)
	for i := range paths {
		paths[i] = fmt.Sprintf("lib/%03d.taf", i)
	}
	_, err := svc.Analyze(context.Background(), paths)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(lister.calls) != 0 || source.calls != 0 {
		t.Fatalf("expected no I/O, got %d listings and %d catalog loads", len(lister.calls), source.calls)
	}

	if _, err := svc.Analyze(context.Background(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty request, got %v", err)
	}
}

func TestAnalyzeMergesHeadersAndMatches(t *testing.T) {
	lister := &fakeLister{
		listings: map[string]library.Listing{
			"lib": {Files: []library.File{{
				Name:   schuleFile,
				Size:   4096,
				Header: &library.HeaderInfo{AudioID: 42, Hash: "abcd", TrackSeconds: []int{0, 300}},
			}}},
		},
		errs: map[string]error{"broken": errors.New("boom")},
	}
	source := &fakeSource{entries: []catalog.Entry{
		{Series: "Die Schule der magischen Tiere", Episodes: "Folge 1", Model: "10001"},
		{Series: "Bibi Blocksberg", Episodes: "Folge 1"},
	}}
	svc := newService(t, batch.Dependencies{Lister: lister, Reference: source})

	resp, err := svc.Analyze(context.Background(), []string{
		"lib/" + schuleFile,
		"broken/Bibi_Blocksberg_-_Folge_2.taf",
		"lib/" + schuleFile,
		"Xyz.taf",
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if resp.RunID != "run-1" || resp.Total != 3 || len(resp.Items) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.AutoMatched != 1 || resp.NeedsReview != 1 || resp.Unmatched != 1 {
		t.Fatalf("unexpected tallies auto=%d review=%d unmatched=%d", resp.AutoMatched, resp.NeedsReview, resp.Unmatched)
	}
	if resp.Generation != matching.SnapshotGeneration(source.entries) {
		t.Fatalf("unexpected generation %d", resp.Generation)
	}

	schule := resp.Items[0]
	if schule.AudioID != 42 || schule.Hash != "abcd" || len(schule.TrackSeconds) != 2 {
		t.Fatalf("expected header data, got %+v", schule)
	}
	if schule.Parsed.Series != "Die Schule der magischen Tiere" || schule.Parsed.Episode != "Folge 01" {
		t.Fatalf("unexpected parse %+v", schule.Parsed)
	}
	if !schule.Match.AutoSelected || schule.Match.BestMatch.Model != "10001" {
		t.Fatalf("expected auto-selected match, got %+v", schule.Match)
	}

	bibi := resp.Items[1]
	if bibi.AudioID != 0 || bibi.Hash != "" {
		t.Fatalf("expected no header for failed directory, got %+v", bibi)
	}
	if bibi.Match.AutoSelected || len(bibi.Match.Candidates) == 0 {
		t.Fatalf("expected reviewable match, got %+v", bibi.Match)
	}
	if resp.Items[2].FileName != "Xyz.taf" || resp.Items[2].Match.BestMatch != nil {
		t.Fatalf("expected unmatched root file, got %+v", resp.Items[2])
	}
}

func TestAnalyzeReloadsOnlyExpiredCatalog(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := matching.NewEngine(matching.WithClock(clock.Now), matching.WithTTL(time.Minute))
	source := &fakeSource{entries: []catalog.Entry{{Series: "TKKG", Episodes: "Folge 1"}}}
	svc := newService(t, batch.Dependencies{Engine: engine, Reference: source})
	paths := []string{"TKKG_-_Folge_1.taf"}

	for range 2 {
		if _, err := svc.Analyze(context.Background(), paths); err != nil {
			t.Fatalf("Analyze returned error: %v", err)
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected one catalog load, got %d", source.calls)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	source.err = errors.New("server down")
	resp, err := svc.Analyze(context.Background(), paths)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected reload after ttl, got %d loads", source.calls)
	}
	if resp.Generation != matching.SnapshotGeneration(source.entries) || resp.Items[0].Match.BestMatch == nil {
		t.Fatalf("expected previous snapshot to stay in use, got %+v", resp)
	}
}

func TestSearchMetadata(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]coversearch.Cover{
			"Bibi Blocksberg Folge 3": {
				{URL: "https://img.example/bibi.jpg", Score: 150},
				{URL: "https://img.example/bibi2.jpg", Score: 40},
			},
		},
		errs: map[string]error{"TKKG Folge 1": errors.New("rate limited")},
	}
	svc := newService(t, batch.Dependencies{Searcher: searcher})

	resp, err := svc.SearchMetadata(context.Background(), []batch.SearchItem{
		{FilePath: "lib/Bibi_Blocksberg_Folge_3.taf"},
		{FilePath: "lib/tkkg.taf", Series: "TKKG", Episode: "Folge 1"},
		{FilePath: "lib/nothing.taf", Series: "Nothing"},
	})
	if err != nil {
		t.Fatalf("SearchMetadata returned error: %v", err)
	}
	if resp.Searched != 3 || resp.Found != 1 || len(resp.Results) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}

	bibi := resp.Results["lib/Bibi_Blocksberg_Folge_3.taf"]
	if bibi.Query != "Bibi Blocksberg Folge 3" || len(bibi.Covers) != 2 {
		t.Fatalf("unexpected fallback search %+v", bibi)
	}
	if bibi.BestCover == nil || bibi.BestCover.URL != "https://img.example/bibi.jpg" || bibi.Confidence != 1 {
		t.Fatalf("unexpected best cover %+v", bibi)
	}

	tkkg := resp.Results["lib/tkkg.taf"]
	if tkkg.Error == "" || tkkg.Covers == nil || len(tkkg.Covers) != 0 {
		t.Fatalf("expected per-item failure, got %+v", tkkg)
	}
	if nothing := resp.Results["lib/nothing.taf"]; nothing.Error != "" || nothing.BestCover != nil {
		t.Fatalf("expected empty result without error, got %+v", nothing)
	}
}

func TestSearchMetadataRequiresSearcher(t *testing.T) {
	svc := newService(t, batch.Dependencies{})
	if _, err := svc.SearchMetadata(context.Background(), []batch.SearchItem{{FilePath: "a.taf"}}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	resp, err := svc.SearchMetadata(context.Background(), nil)
	if err != nil || resp.Searched != 0 {
		t.Fatalf("expected empty response, got %+v, %v", resp, err)
	}
}

func TestProcessBatchAllocatesNumbers(t *testing.T) {
	store := &fakeStore{}
	reloader := &fakeReloader{}
	j := &fakeJournal{}
	svc := newService(t, batch.Dependencies{
		Store:      store,
		Reloader:   reloader,
		Downloader: fakeDownloader{},
		Covers:     fakeCovers{},
		Journal:    j,
	})

	resp, err := svc.ProcessBatch(context.Background(), []batch.Selection{
		{FilePath: "a.taf", Source: batch.SourceManual, Series: "Bibi", Episodes: "Folge 1", AudioID: "1234", Hash: "ABCD", ImageURL: "https://img.example/bibi.jpg"},
		{FilePath: "b.taf", Source: batch.SourceITunes, Series: "TKKG", Language: "EN-US"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch returned error: %v", err)
	}
	if resp.Total != 2 || resp.Successful != 2 || resp.Failed != 0 {
		t.Fatalf("unexpected counts %+v", resp)
	}
	first, second := resp.Items[0], resp.Items[1]
	if first.ModelNumber != "900001" || second.ModelNumber != "900002" {
		t.Fatalf("unexpected model numbers %q, %q", first.ModelNumber, second.ModelNumber)
	}
	if first.Entry.No != "0" || second.Entry.No != "1" {
		t.Fatalf("unexpected sequence numbers %q, %q", first.Entry.No, second.Entry.No)
	}
	if first.CoverPath != "/library/own/pics/bibi.jpg" || first.Entry.Pic != first.CoverPath {
		t.Fatalf("unexpected cover %+v", first)
	}
	if first.Entry.AudioID[0] != "1234" || first.Entry.Hash[0] != "ABCD" || first.Entry.Language != "de-de" {
		t.Fatalf("unexpected first entry %+v", first.Entry)
	}
	if second.Entry.Language != "en-us" || len(second.Entry.AudioID) != 0 || second.Entry.Category != catalog.CategoryCustom {
		t.Fatalf("unexpected second entry %+v", second.Entry)
	}

	if len(store.saved) != 1 || len(store.saved[0].Entries) != 2 {
		t.Fatalf("expected one save with two entries, got %+v", store.saved)
	}
	if reloader.calls != 1 {
		t.Fatalf("expected reload trigger, got %d", reloader.calls)
	}
	if len(j.runs) != 1 || j.runs[0].ID != "run-1" || j.runs[0].Successful != 2 || j.runs[0].Items[1].Position != 1 {
		t.Fatalf("unexpected journal runs %+v", j.runs)
	}
}

func TestProcessBatchContinuesExistingNumbers(t *testing.T) {
	store := &fakeStore{doc: catalog.Document{Entries: []catalog.Entry{
		{No: "11", Model: "900007"},
		{No: "3", Model: "12345"},
	}}}
	svc := newService(t, batch.Dependencies{Store: store, Downloader: fakeDownloader{err: errors.New("404")}, Covers: fakeCovers{}})

	resp, err := svc.ProcessBatch(context.Background(), []batch.Selection{
		{FilePath: "a.taf", Source: batch.SourceManual, Series: "Conni", ImageURL: "https://img.example/missing.jpg"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch returned error: %v", err)
	}
	item := resp.Items[0]
	if !item.Success || item.ModelNumber != "900008" || item.Entry.No != "12" {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.CoverPath != "" || item.Entry.Pic != "" {
		t.Fatalf("expected entry without cover, got %+v", item)
	}
	if len(store.saved[0].Entries) != 3 {
		t.Fatalf("expected existing entries to be kept, got %d", len(store.saved[0].Entries))
	}
}

func TestProcessBatchRejectsStaleSelections(t *testing.T) {
	engine := matching.NewEngine()
	stale := engine.Load([]catalog.Entry{{Series: "Bibi"}})
	current := engine.Load([]catalog.Entry{{Series: "Bibi Blocksberg", Episodes: "Folge 3", Pic: "https://img.example/ref.jpg", Language: "de-de"}})
	store := &fakeStore{}
	svc := newService(t, batch.Dependencies{Engine: engine, Store: store, Downloader: fakeDownloader{}, Covers: fakeCovers{}})

	resp, err := svc.ProcessBatch(context.Background(), []batch.Selection{
		{FilePath: "old.taf", Source: batch.SourceCatalog, CatalogIndex: intPtr(0), Generation: stale},
		{FilePath: "new.taf", Source: batch.SourceCatalog, CatalogIndex: intPtr(0), Generation: current},
	})
	if err != nil {
		t.Fatalf("ProcessBatch returned error: %v", err)
	}
	if resp.Successful != 1 || resp.Failed != 1 {
		t.Fatalf("unexpected counts %+v", resp)
	}
	if old := resp.Items[0]; old.Success || old.ModelNumber != "" || old.Error == "" {
		t.Fatalf("expected stale selection to fail, got %+v", old)
	}
	fresh := resp.Items[1]
	if fresh.ModelNumber != "900001" || fresh.Entry.Series != "Bibi Blocksberg" || fresh.Entry.Episodes != "Folge 3" {
		t.Fatalf("expected entry filled from catalog, got %+v", fresh)
	}
	if fresh.CoverPath != "/library/own/pics/ref.jpg" {
		t.Fatalf("expected reference cover, got %q", fresh.CoverPath)
	}
}

func TestProcessBatchLoadsCatalogForSelections(t *testing.T) {
	entries := []catalog.Entry{{Series: "TKKG", Episodes: "Folge 1", Language: "de-de"}}
	generation := matching.SnapshotGeneration(entries)
	source := &fakeSource{entries: entries}
	store := &fakeStore{}
	svc := newService(t, batch.Dependencies{Reference: source, Store: store})

	resp, err := svc.ProcessBatch(context.Background(), []batch.Selection{
		{FilePath: "TKKG_-_Folge_1.taf", Source: batch.SourceCatalog, CatalogIndex: intPtr(0), Generation: generation},
	})
	if err != nil {
		t.Fatalf("ProcessBatch returned error: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected the reference catalog to be loaded once, got %d", source.calls)
	}
	if resp.Successful != 1 || resp.Items[0].Entry.Series != "TKKG" || resp.Items[0].Entry.Episodes != "Folge 1" {
		t.Fatalf("expected selection resolved from loaded catalog, got %+v", resp)
	}

	source.entries = []catalog.Entry{{Series: "Bibi"}, entries[0]}
	svc = newService(t, batch.Dependencies{Reference: source, Store: store})
	resp, err = svc.ProcessBatch(context.Background(), []batch.Selection{
		{FilePath: "TKKG_-_Folge_1.taf", Source: batch.SourceCatalog, CatalogIndex: intPtr(0), Generation: generation},
	})
	if err != nil {
		t.Fatalf("ProcessBatch returned error: %v", err)
	}
	if resp.Successful != 0 || !strings.Contains(resp.Items[0].Error, "replaced catalog snapshot") {
		t.Fatalf("expected stale selection after catalog change, got %+v", resp.Items[0])
	}
}

func TestProcessBatchSaveFailureFailsAll(t *testing.T) {
	engine := matching.NewEngine()
	stale := engine.Load(nil)
	engine.Load([]catalog.Entry{{Series: "Bibi"}})
	store := &fakeStore{saveErr: errors.New("disk full")}
	reloader := &fakeReloader{}
	j := &fakeJournal{}
	svc := newService(t, batch.Dependencies{Engine: engine, Store: store, Reloader: reloader, Journal: j})

	selections := make([]batch.Selection, 5)
	for i := range selections {
		selections[i] = batch.Selection{FilePath: fmt.Sprintf("%d.taf", i), Source: batch.SourceManual, Series: "Bibi"}
	}
	selections[1] = batch.Selection{FilePath: "1.taf", Source: batch.SourceCatalog, CatalogIndex: intPtr(0), Generation: stale}
	selections[3] = batch.Selection{FilePath: "3.taf", Source: batch.SourceCatalog, CatalogIndex: intPtr(0), Generation: stale}

	resp, err := svc.ProcessBatch(context.Background(), selections)
	if err != nil {
		t.Fatalf("ProcessBatch returned error: %v", err)
	}
	if resp.Successful != 0 || resp.Failed != 5 {
		t.Fatalf("expected every item to fail, got %+v", resp)
	}
	for _, i := range []int{0, 2, 4} {
		item := resp.Items[i]
		if item.Success || !strings.HasPrefix(item.Error, "Failed to save: ") || item.ModelNumber != "" || item.Entry != nil {
			t.Fatalf("unexpected item %d: %+v", i, item)
		}
	}
	if strings.HasPrefix(resp.Items[1].Error, "Failed to save") {
		t.Fatalf("expected stale error to be kept, got %q", resp.Items[1].Error)
	}
	if reloader.calls != 0 {
		t.Fatal("expected no reload after failed save")
	}
	if len(j.runs) != 1 || !strings.Contains(j.runs[0].Error, "disk full") {
		t.Fatalf("expected failed run in journal, got %+v", j.runs)
	}
}

func TestProcessBatchLoadFailure(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("corrupt")}
	svc := newService(t, batch.Dependencies{Store: store})

	resp, err := svc.ProcessBatch(context.Background(), []batch.Selection{
		{FilePath: "a.taf", Series: "Bibi"},
		{FilePath: "b.taf", Series: "TKKG"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch returned error: %v", err)
	}
	if resp.Failed != 2 || resp.Successful != 0 {
		t.Fatalf("unexpected counts %+v", resp)
	}
	for _, item := range resp.Items {
		if item.Error != "Failed to load current catalog: corrupt" {
			t.Fatalf("unexpected error %q", item.Error)
		}
	}
	if len(store.saved) != 0 {
		t.Fatal("expected no save")
	}
}

func TestProcessBatchValidatesRequest(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, batch.Dependencies{Store: store})

	_, err := svc.ProcessBatch(context.Background(), []batch.Selection{
		{FilePath: "a.taf", Source: batch.SourceManual, Series: "Bibi"},
		{FilePath: "b.taf", Source: "wikipedia", Series: "TKKG"},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("expected nothing saved")
	}

	resp, err := svc.ProcessBatch(context.Background(), nil)
	if err != nil || resp.Total != 0 || resp.Items == nil {
		t.Fatalf("expected empty response, got %+v, %v", resp, err)
	}

	limited := batch.NewService(nil, batch.Dependencies{Store: store}, nil, batch.WithLimits(batch.Limits{Process: 1}))
	_, err = limited.ProcessBatch(context.Background(), []batch.Selection{{Series: "a"}, {Series: "b"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected limit error, got %v", err)
	}
}
