package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tafsync/internal/catalog"
	"tafsync/internal/journal"
	"tafsync/internal/language"
	"tafsync/internal/logging"
	"tafsync/internal/services"
)

// Source names where a selection's metadata came from.
type Source string

const (
	SourceCatalog     Source = "catalog"
	SourceMusicBrainz Source = "musicbrainz"
	SourceITunes      Source = "itunes"
	SourceManual      Source = "manual"
)

func (s Source) valid() bool {
	switch s {
	case SourceCatalog, SourceMusicBrainz, SourceITunes, SourceManual:
		return true
	}
	return false
}

// Selection is a confirmed assignment of metadata to one file. CatalogIndex
// and Generation identify the reference entry for catalog selections.
type Selection struct {
	FilePath     string `json:"file_path"`
	Source       Source `json:"source"`
	CatalogIndex *int   `json:"catalog_index,omitempty"`
	Generation   uint64 `json:"generation,omitempty"`
	Series       string `json:"series"`
	Episodes     string `json:"episodes,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	AudioID      string `json:"audio_id,omitempty"`
	Hash         string `json:"hash,omitempty"`
	Language     string `json:"language,omitempty"`
}

// ProcessedItem is the outcome for one selection.
type ProcessedItem struct {
	FilePath    string         `json:"file_path"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	ModelNumber string         `json:"model_number,omitempty"`
	CoverPath   string         `json:"cover_path,omitempty"`
	Entry       *catalog.Entry `json:"entry,omitempty"`
}

// ProcessResponse reports per-selection outcomes in input order.
type ProcessResponse struct {
	RunID      string          `json:"run_id,omitempty"`
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Items      []ProcessedItem `json:"items"`
}

// ProcessBatch appends one custom catalog entry per selection and commits the
// document with a single save. Selections are handled strictly in order so
// sequence and model numbers follow the input. When the save fails no entry
// is kept and every item reports the failure.
func (s *Service) ProcessBatch(ctx context.Context, selections []Selection) (ProcessResponse, error) {
	if err := checkLimit("process", len(selections), s.limits.Process, "items"); err != nil {
		return ProcessResponse{}, err
	}
	for i, sel := range selections {
		if sel.Source != "" && !sel.Source.valid() {
			return ProcessResponse{}, services.Wrap(services.ErrValidation, "process", "validate request",
				fmt.Sprintf("selection %d: unknown source %q", i, sel.Source), nil)
		}
	}
	if len(selections) == 0 {
		return ProcessResponse{Items: []ProcessedItem{}}, nil
	}
	if s.deps.Store == nil {
		return ProcessResponse{}, services.Wrap(services.ErrConfiguration, "process", "process batch", "no catalog store configured", nil)
	}

	ctx, runID, logger := s.begin(ctx, "process")
	started := s.now()
	resp := ProcessResponse{RunID: runID, Total: len(selections), Items: make([]ProcessedItem, 0, len(selections))}

	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "custom catalog load failed", "catalog_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the custom catalog is readable and valid JSON"))
		message := "Failed to load current catalog: " + err.Error()
		for _, sel := range selections {
			resp.Items = append(resp.Items, ProcessedItem{FilePath: sel.FilePath, Error: message})
		}
		resp.Failed = len(selections)
		s.record(ctx, logger, resp, started, message)
		return resp, nil
	}

	if needsCatalog(selections) {
		s.ensureCatalog(ctx, logger)
	}

	nextModel := catalog.NextModelNumber(doc.Entries, s.allocation.ModelPrefix, s.allocation.ModelFloor)
	maxNo := catalog.MaxSequence(doc.Entries)

	for _, sel := range selections {
		item := ProcessedItem{FilePath: sel.FilePath}
		if err := ctx.Err(); err != nil {
			item.Error = err.Error()
			resp.Items = append(resp.Items, item)
			continue
		}
		sel, err := s.resolveSelection(sel)
		if err != nil {
			item.Error = err.Error()
			resp.Items = append(resp.Items, item)
			logger.Info("selection rejected",
				logging.String(logging.FieldFilePath, sel.FilePath),
				logging.Error(err))
			continue
		}

		coverPath := s.downloadCover(ctx, logger, sel)
		maxNo++
		model := strconv.Itoa(nextModel)
		nextModel++

		entry := s.buildEntry(sel, maxNo, model, coverPath)
		doc.Entries = append(doc.Entries, entry)

		item.Success = true
		item.ModelNumber = model
		item.CoverPath = coverPath
		item.Entry = &entry
		resp.Items = append(resp.Items, item)
	}

	for _, item := range resp.Items {
		if item.Success {
			resp.Successful++
		}
	}

	var runErr string
	if resp.Successful > 0 {
		err := ctx.Err()
		if err == nil {
			err = s.deps.Store.Save(ctx, doc, s.allocation.DestinationHint)
		}
		if err != nil {
			logging.ErrorWithContext(logger, "custom catalog save failed", "catalog_save_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "re-run the batch; nothing was written"))
			runErr = "Failed to save: " + err.Error()
			for i := range resp.Items {
				if resp.Items[i].Success {
					resp.Items[i].Success = false
					resp.Items[i].Error = runErr
					resp.Items[i].ModelNumber = ""
					resp.Items[i].Entry = nil
				}
			}
			resp.Successful = 0
		} else {
			logger.Info("custom catalog updated", logging.Int("new_entries", resp.Successful))
			s.triggerReload(ctx, logger)
		}
	}
	resp.Failed = resp.Total - resp.Successful

	s.record(ctx, logger, resp, started, runErr)
	return resp, nil
}

// resolveSelection checks catalog selections against the live snapshot and
// fills fields the caller left empty from the referenced entry.
func (s *Service) resolveSelection(sel Selection) (Selection, error) {
	if sel.Source != SourceCatalog || sel.CatalogIndex == nil {
		return sel, nil
	}
	entry, err := s.deps.Engine.ResolveIndex(*sel.CatalogIndex, sel.Generation)
	if err != nil {
		return sel, err
	}
	if sel.Series == "" {
		sel.Series = entry.Series
	}
	if sel.Episodes == "" {
		sel.Episodes = entry.Episodes
	}
	if sel.ImageURL == "" && isRemote(entry.Pic) {
		sel.ImageURL = entry.Pic
	}
	if sel.Language == "" {
		sel.Language = entry.Language
	}
	return sel, nil
}

func (s *Service) downloadCover(ctx context.Context, logger *slog.Logger, sel Selection) string {
	imageURL := strings.TrimSpace(sel.ImageURL)
	if imageURL == "" || s.deps.Downloader == nil || s.deps.Covers == nil {
		return ""
	}
	data, err := s.deps.Downloader.Download(ctx, imageURL)
	if err == nil {
		var coverPath string
		coverPath, err = s.deps.Covers.Save(ctx, imageURL, data)
		if err == nil {
			return coverPath
		}
	}
	logging.WarnWithContext(logger, "cover download failed", "cover_download_failed",
		logging.String(logging.FieldFilePath, sel.FilePath),
		logging.String("image_url", imageURL),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "pick another cover and edit the entry's pic field"),
		logging.String(logging.FieldImpact, "entry is created without a cover"))
	return ""
}

func (s *Service) buildEntry(sel Selection, no int, model, coverPath string) catalog.Entry {
	lang := language.CatalogTag(sel.Language, s.allocation.DefaultLanguage)
	return catalog.Entry{
		No:       strconv.Itoa(no),
		Model:    model,
		AudioID:  singleton(sel.AudioID),
		Hash:     singleton(sel.Hash),
		Title:    sel.Series,
		Series:   sel.Series,
		Episodes: sel.Episodes,
		Tracks:   []string{},
		Release:  "0",
		Language: lang,
		Category: catalog.CategoryCustom,
		Pic:      coverPath,
	}
}

func (s *Service) triggerReload(ctx context.Context, logger *slog.Logger) {
	if s.deps.Reloader == nil {
		return
	}
	if err := s.deps.Reloader.TriggerReload(ctx); err != nil {
		logging.WarnWithContext(logger, "catalog reload trigger failed", "catalog_reload_trigger_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "reload the catalog from the media server web interface"),
			logging.String(logging.FieldImpact, "new entries appear after the server's next reload"))
	}
}

// record writes the run to the journal. Journal failures are logged only.
func (s *Service) record(ctx context.Context, logger *slog.Logger, resp ProcessResponse, started time.Time, runErr string) {
	if s.deps.Journal == nil {
		return
	}
	run := journal.Run{
		ID:          resp.RunID,
		StartedAt:   started,
		FinishedAt:  s.now(),
		Total:       resp.Total,
		Successful:  resp.Successful,
		Failed:      resp.Failed,
		CatalogPath: s.allocation.DestinationHint,
		Error:       runErr,
		Items:       make([]journal.Item, 0, len(resp.Items)),
	}
	for i, item := range resp.Items {
		run.Items = append(run.Items, journal.Item{
			Position:    i,
			FilePath:    item.FilePath,
			Success:     item.Success,
			Error:       item.Error,
			ModelNumber: item.ModelNumber,
			CoverPath:   item.CoverPath,
		})
	}
	if err := s.deps.Journal.Record(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the journal database"),
			logging.String(logging.FieldImpact, "this run is missing from history"))
	}
}

func needsCatalog(selections []Selection) bool {
	for _, sel := range selections {
		if sel.Source == SourceCatalog && sel.CatalogIndex != nil {
			return true
		}
	}
	return false
}

func singleton(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	return []string{value}
}

func isRemote(pic string) bool {
	return strings.HasPrefix(pic, "http://") || strings.HasPrefix(pic, "https://")
}
