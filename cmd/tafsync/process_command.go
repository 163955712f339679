package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"tafsync/internal/batch"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <selections.json>",
		Short: "Add confirmed selections to the custom catalog",
		Long: "Process reads a JSON array of selections (or stdin when the argument is \"-\")\n" +
			"and appends one custom catalog entry per selection in a single save.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var selections []batch.Selection
			if err := readJSONFile(cmd, args[0], &selections); err != nil {
				return err
			}

			return ctx.withRuntime(func(rt *runtime) error {
				resp, err := rt.service.ProcessBatch(cmd.Context(), selections)
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
						yesNo(item.Success),
						item.ModelNumber,
						item.CoverPath,
						item.Error,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"File", "Added", "Model", "Cover", "Error"},
					rows, nil))
				fmt.Fprintf(out, "%d of %d added to %s\n", resp.Successful, resp.Total, rt.cfg.Paths.CustomCatalogPath)
				return nil
			})
		},
	}
}
