package main

import (
	"fmt"
	"path"
	"strconv"

	"github.com/spf13/cobra"

	"tafsync/internal/batch"
	"tafsync/internal/matching"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <path>...",
		Short: "Rank catalog candidates for library files",
		Long: "Analyze reads TAF header data from the library listing, parses each file name\n" +
			"and ranks matching reference catalog entries. Paths are relative to the library root.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *runtime) error {
				resp, err := rt.service.Analyze(cmd.Context(), args)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				rows := make([][]string, 0, len(resp.Items))
				for _, item := range resp.Items {
					rows = append(rows, []string{
						path.Base(item.FilePath),
						item.Parsed.Series,
						item.Parsed.Episode,
						describeCandidate(item.Match.BestMatch),
						confidenceLabel(item.Match.BestMatch),
						matchStatus(item),
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"File", "Series", "Episode", "Best match", "Confidence", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
				fmt.Fprintf(out, "%d files: %d auto, %d review, %d unmatched\n",
					resp.Total, resp.AutoMatched, resp.NeedsReview, resp.Unmatched)
				return nil
			})
		},
	}
}

func describeCandidate(c *matching.Candidate) string {
	if c == nil {
		return "-"
	}
	label := c.Series
	if c.Episodes != "" {
		label += " - " + c.Episodes
	}
	if c.Model != "" {
		label += " (" + c.Model + ")"
	}
	return label
}

func confidenceLabel(c *matching.Candidate) string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(c.Confidence*100, 'f', 0, 64) + "%"
}

func matchStatus(item batch.AnalyzeItem) string {
	switch {
	case item.Match.AutoSelected:
		return "auto"
	case len(item.Match.Candidates) > 0:
		return "review"
	default:
		return "unmatched"
	}
}
