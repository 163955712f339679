package batch

import (
	"context"
	"strings"
	"sync"

	"tafsync/internal/filename"
	"tafsync/internal/logging"
	"tafsync/internal/services"
	"tafsync/internal/services/coversearch"
)

const searchWorkers = 4

// SearchItem asks for cover candidates for one file.
type SearchItem struct {
	FilePath string `json:"file_path"`
	Series   string `json:"series,omitempty"`
	Episode  string `json:"episode,omitempty"`
}

// SearchResult holds the covers found for one file. A failed search yields an
// empty result with Error set.
type SearchResult struct {
	FilePath   string              `json:"file_path"`
	Query      string              `json:"query"`
	Covers     []coversearch.Cover `json:"covers"`
	BestCover  *coversearch.Cover  `json:"best_cover,omitempty"`
	Confidence float64             `json:"confidence"`
	Error      string              `json:"error,omitempty"`
}

// SearchResponse maps file paths to their search results.
type SearchResponse struct {
	RunID    string                  `json:"run_id,omitempty"`
	Results  map[string]SearchResult `json:"results"`
	Searched int                     `json:"searched"`
	Found    int                     `json:"found"`
}

// SearchQuery builds the cover query for item: series and episode, or the
// cleaned file name when both are empty.
func SearchQuery(item SearchItem) string {
	query := strings.TrimSpace(item.Series + " " + item.Episode)
	if query == "" {
		query = strings.TrimSpace(filename.Clean(item.FilePath))
	}
	return query
}

// SearchMetadata looks up cover candidates for items. Failures are reported
// per item and never abort the batch.
func (s *Service) SearchMetadata(ctx context.Context, items []SearchItem) (SearchResponse, error) {
	if err := checkLimit("search", len(items), s.limits.Search, "items"); err != nil {
		return SearchResponse{}, err
	}
	resp := SearchResponse{Results: make(map[string]SearchResult, len(items)), Searched: len(items)}
	if len(items) == 0 {
		return resp, nil
	}
	if s.deps.Searcher == nil {
		return SearchResponse{}, services.Wrap(services.ErrConfiguration, "search", "search metadata", "no cover search service configured", nil)
	}
	ctx, runID, logger := s.begin(ctx, "search")
	resp.RunID = runID

	results := make([]SearchResult, len(items))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(searchWorkers, len(items)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.searchOne(ctx, items[i])
			}
		}()
	}
	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, result := range results {
		if result.Error != "" {
			logging.WarnWithContext(logger, "cover search failed", "cover_search_failed",
				logging.String(logging.FieldFilePath, result.FilePath),
				logging.String("query", result.Query),
				logging.String("error", result.Error),
				logging.String(logging.FieldErrorHint, "check cover_search settings or retry later"),
				logging.String(logging.FieldImpact, "no cover suggestions for this file"))
		}
		if len(result.Covers) > 0 {
			resp.Found++
		}
		resp.Results[result.FilePath] = result
	}
	logger.Info("cover search complete",
		logging.Int("searched", resp.Searched),
		logging.Int("found", resp.Found))
	return resp, nil
}

func (s *Service) searchOne(ctx context.Context, item SearchItem) SearchResult {
	result := SearchResult{
		FilePath: item.FilePath,
		Query:    SearchQuery(item),
		Covers:   []coversearch.Cover{},
	}
	if result.Query == "" {
		result.Error = "nothing to search for"
		return result
	}
	covers, err := s.deps.Searcher.Search(ctx, result.Query, s.limits.SearchResults)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if len(covers) == 0 {
		return result
	}
	result.Covers = covers
	best := covers[0]
	result.BestCover = &best
	result.Confidence = min(max(best.Score/100, 0), 1)
	return result
}
