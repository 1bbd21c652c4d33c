package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arista/internal/profile"
	"arista/internal/services"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage installed device presets",
	}

	presetsCmd.AddCommand(&cobra.Command{
		Use:   "install PACKAGE",
		Short: "Install a preset package (.tar.bz2 or .tar.gz)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstallPreset(cmd, ctx, args[0])
		},
	})

	var keepExisting bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Copy the system presets into the user preset directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetPresets(cmd, ctx, !keepExisting)
		},
	}
	resetCmd.Flags().BoolVar(&keepExisting, "keep-existing", false, "Do not replace presets that already exist")
	presetsCmd.AddCommand(resetCmd)

	presetsCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the preset search path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			for _, dir := range presetDirs(cfg) {
				fmt.Fprintln(cmd.OutOrStdout(), dir)
			}
			return nil
		},
	})

	return presetsCmd
}

func runInstallPreset(cmd *cobra.Command, ctx *commandContext, path string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "presets", "install", "", err)
	}
	defer file.Close()

	target := cfg.PresetWriteDir()
	ids, err := profile.Install(cmd.Context(), file, target)
	if err != nil {
		return services.Wrap(services.ErrValidation, "presets", "install", path, err)
	}
	logger.Info("installed preset package", "package", path, "devices", len(ids), "target", target)
	fmt.Fprintf(cmd.OutOrStdout(), "Installed %s into %s\n", strings.Join(ids, ", "), target)
	return nil
}

// runResetPresets copies the system presets again, ignoring the marker left
// by the first automatic copy.
func runResetPresets(cmd *cobra.Command, ctx *commandContext, overwrite bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	target := cfg.PresetWriteDir()
	written, err := profile.Reset(cmd.Context(), profile.ResetOptions{
		Overwrite:     overwrite,
		IgnoreInitial: true,
		Sources:       []string{cfg.Paths.SystemPresetDir},
		Target:        target,
	})
	if err != nil {
		return fmt.Errorf("reset presets: %w", err)
	}
	logger.Info("reset presets", "files", len(written), "target", target)
	if len(written) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No presets copied into %s\n", target)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Copied %s into %s\n", strings.Join(written, ", "), target)
	return nil
}
