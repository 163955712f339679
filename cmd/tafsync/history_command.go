package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tafsync/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List committed process runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(ctx, func(store *journal.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if runs == nil {
						runs = []journal.Run{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ID,
						run.StartedAt.Local().Format(time.DateTime),
						strconv.Itoa(run.Successful),
						strconv.Itoa(run.Failed),
						run.Error,
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Run", "Started", "Added", "Failed", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the items of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(ctx, func(store *journal.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, run)
				}
				rows := make([][]string, 0, len(run.Items))
				for _, item := range run.Items {
					rows = append(rows, []string{
						strconv.Itoa(item.Position + 1),
						item.FilePath,
						yesNo(item.Success),
						item.ModelNumber,
						item.Error,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s: %d of %d added\n", run.ID, run.Successful, run.Total)
				fmt.Fprintln(out, renderTable(out,
					[]string{"#", "File", "Added", "Model", "Error"},
					rows,
					[]columnAlignment{alignRight}))
				return nil
			})
		},
	})
	return historyCmd
}

func withJournal(ctx *commandContext, fn func(*journal.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return errors.New("journal is disabled; set journal.enabled = true")
	}
	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
