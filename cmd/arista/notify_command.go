package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arista/internal/notifications"
	"arista/internal/services"
)

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				return services.Wrap(services.ErrConfiguration, "notifications", "test", "notifications.ntfy_topic is not set", nil)
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return services.Wrap(services.ErrExternalTool, "notifications", "test", "", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	}
}
