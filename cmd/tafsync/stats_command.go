package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tafsync/internal/catalog"
	"tafsync/internal/matching"
)

type statsOutput struct {
	Reference     matching.Stats `json:"reference"`
	CustomEntries int            `json:"custom_entries"`
	NextModel     int            `json:"next_model"`
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show reference and custom catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *runtime) error {
				if rt.reference == nil {
					return errors.New("no reference catalog configured; set server.url or paths.reference_catalog_path")
				}
				entries, err := rt.reference.LoadCatalog(cmd.Context())
				if err != nil {
					return fmt.Errorf("load reference catalog: %w", err)
				}
				engine := rt.service.Engine()
				engine.Load(entries)

				custom, err := catalog.NewFileStore(rt.cfg.Paths.CustomCatalogPath, rt.logger).Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load custom catalog: %w", err)
				}
				output := statsOutput{
					Reference:     engine.Stats(),
					CustomEntries: len(custom.Entries),
					NextModel:     catalog.NextModelNumber(custom.Entries, rt.cfg.Batch.ModelPrefix, rt.cfg.Batch.ModelFloor),
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, output)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"Metric", "Value"},
					[][]string{
						{"Reference entries", strconv.Itoa(output.Reference.TotalEntries)},
						{"Reference series", strconv.Itoa(output.Reference.UniqueSeries)},
						{"Custom entries", strconv.Itoa(output.CustomEntries)},
						{"Next model number", strconv.Itoa(output.NextModel)},
					},
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
