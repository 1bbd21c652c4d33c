package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"arista/internal/logging"
	"arista/internal/logs"
	"arista/internal/services"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		jobID  string
		level  string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the JSON log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Logging.File {
				return services.Wrap(services.ErrConfiguration, "logs", "show", "logging.file is disabled in the configuration", nil)
			}
			filter := logs.Filter{JobID: strings.TrimSpace(jobID)}
			if strings.TrimSpace(level) != "" {
				filter.MinLevel = logging.ParseLevel(level)
				filter.Levelled = true
			}

			path := logging.FilePath(cfg)
			out := cmd.OutOrStdout()
			emit := func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			}
			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				return nil
			}
			followCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return logs.Follow(followCtx, path, offset, logs.DefaultPoll, emit)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show records for this job id (prefix match)")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show: debug, info, warn or error")
	return cmd
}
