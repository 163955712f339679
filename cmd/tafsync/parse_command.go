package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tafsync/internal/coverstore"
	"tafsync/internal/filename"
	"tafsync/internal/logging"
	"tafsync/internal/taf"
)

type parsedFile struct {
	Path        string          `json:"path"`
	AudioID     uint32          `json:"audio_id,omitempty"`
	Hash        string          `json:"hash,omitempty"`
	TrackCount  int             `json:"track_count,omitempty"`
	Quality     int             `json:"quality,omitempty"`
	Size        int64           `json:"size"`
	Heuristic   bool            `json:"heuristic,omitempty"`
	CoverType   string          `json:"cover_type,omitempty"`
	CoverPath   string          `json:"cover_path,omitempty"`
	Parsed      filename.Parsed `json:"parsed"`
	SearchTerms []string        `json:"search_terms"`
	Error       string          `json:"error,omitempty"`
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var coverDir string

	cmd := &cobra.Command{
		Use:         "parse <file.taf>...",
		Short:       "Read TAF headers and parse file names",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger(nil)
			if err != nil {
				return err
			}
			var covers *coverstore.Store
			if dir := strings.TrimSpace(coverDir); dir != "" {
				covers = coverstore.New(dir, dir, logger)
			}

			results := make([]parsedFile, 0, len(args))
			for _, path := range args {
				result := parseOne(path, covers)
				if result.Error != "" {
					logging.WarnWithContext(logger, "taf header unreadable", "taf_header_unreadable",
						logging.String(logging.FieldFilePath, path),
						logging.String("error", result.Error),
						logging.String(logging.FieldErrorHint, "check that the file is a complete TAF container"))
				}
				results = append(results, result)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				audioID := ""
				if r.AudioID != 0 {
					audioID = strconv.FormatUint(uint64(r.AudioID), 10)
				}
				rows = append(rows, []string{
					filepath.Base(r.Path),
					r.Parsed.Series,
					r.Parsed.Episode,
					audioID,
					r.Hash,
					strconv.Itoa(r.TrackCount),
					r.CoverPath,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out,
				[]string{"File", "Series", "Episode", "Audio ID", "Hash", "Tracks", "Cover"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVar(&coverDir, "cover-dir", "", "Extract embedded cover images into this directory")
	return cmd
}

func parseOne(path string, covers *coverstore.Store) parsedFile {
	parsed := filename.Parse(path)
	result := parsedFile{
		Path:        path,
		Parsed:      parsed,
		SearchTerms: filename.ExtractSearchTerms(parsed),
	}
	header, err := taf.ParseFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if header.HasAudioID {
		result.AudioID = header.AudioID
	}
	result.Hash = header.Hash
	result.TrackCount = header.TrackCount
	result.Quality = header.Quality
	result.Size = header.Size
	result.Heuristic = header.Heuristic
	result.CoverType = header.CoverType

	if covers != nil && len(header.Cover) > 0 {
		ext := ".jpg"
		if header.CoverType == "png" {
			ext = ".png"
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ext
		if coverPath, err := covers.SaveNamed(name, header.Cover); err == nil {
			result.CoverPath = coverPath
		} else {
			result.Error = err.Error()
		}
	}
	return result
}
