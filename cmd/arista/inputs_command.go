package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"arista/internal/inputs"
)

func newInputsCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "inputs",
		Short: "List optical drives and capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			found, err := inputs.Scan(cmd.Context(), inputs.ScanOptions{Logger: logger})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeInputs(out, found)
			if !watch {
				return nil
			}

			watchCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			monitor := inputs.NewMonitor(logger)
			if err := monitor.Start(watchCtx); err != nil {
				return err
			}
			defer monitor.Stop()
			fmt.Fprintln(out, "Watching for device changes, press Ctrl+C to stop")
			for {
				select {
				case <-watchCtx.Done():
					return nil
				case ev, ok := <-monitor.Events():
					if !ok {
						return nil
					}
					fmt.Fprintf(out, "%-14s %s (%s)\n", ev.Kind, ev.Input.Locator(), ev.Input.Label)
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and report devices as they appear or disappear")
	return cmd
}

func writeInputs(out io.Writer, found []inputs.Input) {
	if len(found) == 0 {
		fmt.Fprintln(out, "No optical drives or capture devices found")
		return
	}
	rows := make([][]string, 0, len(found))
	for _, in := range found {
		media := "yes"
		if !in.HasMedia {
			media = "no"
		}
		rows = append(rows, []string{in.Locator(), in.Kind.String(), in.Label, in.Model, media})
	}
	fmt.Fprintln(out, renderTable([]string{"Input", "Kind", "Label", "Model", "Media"}, rows, nil))
}
