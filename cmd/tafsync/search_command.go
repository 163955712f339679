package main

import (
	"fmt"
	"path"
	"strconv"

	"github.com/spf13/cobra"

	"tafsync/internal/batch"
	"tafsync/internal/filename"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var series string
	var episode string

	cmd := &cobra.Command{
		Use:   "search <path>...",
		Short: "Search cover images for library files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]batch.SearchItem, 0, len(args))
			for _, p := range args {
				item := batch.SearchItem{FilePath: p, Series: series, Episode: episode}
				if item.Series == "" {
					parsed := filename.Parse(p)
					item.Series = parsed.Series
					if item.Episode == "" {
						item.Episode = parsed.Episode
					}
				}
				items = append(items, item)
			}

			return ctx.withRuntime(func(rt *runtime) error {
				resp, err := rt.service.SearchMetadata(cmd.Context(), items)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					result := resp.Results[item.FilePath]
					best := "-"
					if result.BestCover != nil {
						best = result.BestCover.URL
					}
					rows = append(rows, []string{
						path.Base(item.FilePath),
						result.Query,
						strconv.Itoa(len(result.Covers)),
						best,
						strconv.FormatFloat(result.Confidence*100, 'f', 0, 64) + "%",
						result.Error,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"File", "Query", "Covers", "Best cover", "Confidence", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft}))
				fmt.Fprintf(out, "%d searched, %d with covers\n", resp.Searched, resp.Found)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&series, "series", "", "Series to search for instead of the parsed file name")
	cmd.Flags().StringVar(&episode, "episode", "", "Episode to search for instead of the parsed file name")
	return cmd
}
