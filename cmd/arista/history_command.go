package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"arista/internal/history"
	"arista/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently run jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Input,
					r.Device + "/" + r.Preset,
					recordStatus(r),
					fmt.Sprintf("%d/%d", r.CompletedPasses, r.Passes),
					formatElapsed(r.Elapsed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Input", "Preset", "Status", "Passes", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Number of jobs to show")

	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return services.Wrap(services.ErrValidation, "history", "prune", "--older-than must be positive", nil)
			}
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s jobs\n", strconv.FormatInt(removed, 10))
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age of the oldest job to keep")
	historyCmd.AddCommand(pruneCmd)

	return historyCmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "job history is disabled in the configuration", nil)
	}
	return history.Open(cfg.HistoryPath())
}

func recordStatus(r history.Record) string {
	switch {
	case !r.Finished():
		return "running"
	case r.Cancelled && r.Status == "succeeded":
		return "succeeded (cancelled)"
	case r.ErrorMessage != "":
		return r.Status + ": " + shortError(fmt.Errorf("%s", r.ErrorMessage))
	default:
		return r.Status
	}
}
