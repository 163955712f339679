package batch

import (
	"context"
	"log/slog"
	"path"
	"sync"

	"tafsync/internal/filename"
	"tafsync/internal/library"
	"tafsync/internal/logging"
	"tafsync/internal/matching"
	"tafsync/internal/services"
)

// AnalyzeItem is the outcome of analysing one file.
type AnalyzeItem struct {
	FilePath     string          `json:"file_path"`
	FileName     string          `json:"file_name"`
	AudioID      uint32          `json:"audio_id,omitempty"`
	Hash         string          `json:"hash,omitempty"`
	TrackSeconds []int           `json:"track_seconds,omitempty"`
	Parsed       filename.Parsed `json:"parsed"`
	Match        matching.Result `json:"match"`
}

// AnalyzeResponse lists one item per distinct input path, in input order.
type AnalyzeResponse struct {
	RunID       string        `json:"run_id"`
	Items       []AnalyzeItem `json:"items"`
	Total       int           `json:"total"`
	AutoMatched int           `json:"auto_matched"`
	NeedsReview int           `json:"needs_review"`
	Unmatched   int           `json:"unmatched"`
	Generation  uint64        `json:"generation"`
}

// Analyze reads headers, parses filenames and ranks catalog candidates for
// paths. A failing directory listing only blanks the headers of its files.
func (s *Service) Analyze(ctx context.Context, paths []string) (AnalyzeResponse, error) {
	if len(paths) == 0 {
		return AnalyzeResponse{}, services.Wrap(services.ErrValidation, "analyze", "validate request", "no paths provided", nil)
	}
	if err := checkLimit("analyze", len(paths), s.limits.Analyze, "files"); err != nil {
		return AnalyzeResponse{}, err
	}
	ctx, runID, logger := s.begin(ctx, "analyze")
	paths = uniquePaths(paths)

	s.ensureCatalog(ctx, logger)
	headers := s.fetchHeaders(ctx, logger, paths)
	if err := ctx.Err(); err != nil {
		return AnalyzeResponse{}, err
	}

	queries := make([]matching.Query, len(paths))
	parsed := make([]filename.Parsed, len(paths))
	for i, p := range paths {
		parsed[i] = filename.Parse(path.Base(p))
		queries[i] = matching.Query{Path: p, Series: parsed[i].Series, Episode: parsed[i].Episode}
	}
	matches := s.deps.Engine.MatchBatch(queries, s.limits.MaxCandidates)

	resp := AnalyzeResponse{
		RunID:      runID,
		Items:      make([]AnalyzeItem, 0, len(paths)),
		Total:      len(paths),
		Generation: s.deps.Engine.Generation(),
	}
	for i, p := range paths {
		item := AnalyzeItem{
			FilePath: p,
			FileName: path.Base(p),
			Parsed:   parsed[i],
			Match:    matches[p],
		}
		if header := headers[p]; header != nil {
			item.AudioID = header.AudioID
			item.Hash = header.Hash
			item.TrackSeconds = header.TrackSeconds
		}
		switch {
		case item.Match.AutoSelected:
			resp.AutoMatched++
		case len(item.Match.Candidates) > 0:
			resp.NeedsReview++
		default:
			resp.Unmatched++
		}
		resp.Items = append(resp.Items, item)
	}

	logger.Info("analysis complete",
		logging.Int("file_count", resp.Total),
		logging.Int("auto_matched", resp.AutoMatched),
		logging.Int("needs_review", resp.NeedsReview),
		logging.Int("unmatched", resp.Unmatched))
	return resp, nil
}

// ensureCatalog reloads the reference catalog when the engine cache has
// expired. A failed reload keeps whatever snapshot is loaded.
func (s *Service) ensureCatalog(ctx context.Context, logger *slog.Logger) {
	if s.deps.Engine.IsCacheValid() || s.deps.Reference == nil {
		return
	}
	entries, err := s.deps.Reference.LoadCatalog(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "reference catalog reload failed", "catalog_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the media server url and that it is reachable"),
			logging.String(logging.FieldImpact, "matching uses the previously loaded catalog, if any"))
		return
	}
	s.deps.Engine.Load(entries)
}

type directoryResult struct {
	dir     string
	listing library.Listing
	err     error
}

// fetchHeaders lists every distinct directory concurrently and returns the
// header of each path whose listing carries one.
func (s *Service) fetchHeaders(ctx context.Context, logger *slog.Logger, paths []string) map[string]*library.HeaderInfo {
	headers := make(map[string]*library.HeaderInfo, len(paths))
	if s.deps.Lister == nil {
		return headers
	}

	byDir := make(map[string][]string)
	var dirs []string
	for _, p := range paths {
		dir := directoryOf(p)
		if _, seen := byDir[dir]; !seen {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], p)
	}

	results := make([]directoryResult, len(dirs))
	var wg sync.WaitGroup
	for i, dir := range dirs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listing, err := s.deps.Lister.ListDirectory(ctx, dir)
			results[i] = directoryResult{dir: dir, listing: listing, err: err}
		}()
	}
	wg.Wait()

	for _, result := range results {
		if result.err != nil {
			logging.WarnWithContext(logger, "directory listing failed", "directory_listing_failed",
				logging.String("directory", result.dir),
				logging.Error(result.err),
				logging.String(logging.FieldErrorHint, "verify the directory exists on the media server"),
				logging.String(logging.FieldImpact, "files in this directory are matched without header data"))
			continue
		}
		for _, p := range byDir[result.dir] {
			if file, ok := result.listing.Lookup(path.Base(p)); ok && file.Header != nil {
				headers[p] = file.Header
			}
		}
	}
	return headers
}

func directoryOf(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
