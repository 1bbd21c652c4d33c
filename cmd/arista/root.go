package main

import (
	"github.com/spf13/cobra"
)

const defaultDevice = "computer"

// transcodeFlags are the root command's job options.
type transcodeFlags struct {
	device           string
	preset           string
	output           string
	crop             string
	subtitle         string
	subtitleEncoding string
	ssa              bool
	font             string
	deinterlace      bool

	info          bool
	sourceInfo    bool
	installPreset string
	resetPresets  bool
}

func newRootCommand(ov *overrides) *cobra.Command {
	var (
		configFlag string
		quiet      bool
		verbose    bool
		logFormat  string
		flags      transcodeFlags
	)
	ctx := newCommandContext(&configFlag, &quiet, &verbose, &logFormat, ov)

	rootCmd := &cobra.Command{
		Use:           "arista [flags] INPUT...",
		Short:         "Transcode media for devices using preset profiles",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case flags.info:
				device := ""
				if cmd.Flags().Changed("device") {
					device = flags.device
				}
				return runInfo(cmd, ctx, device)
			case flags.sourceInfo:
				return runSourceInfo(cmd, ctx, args)
			case flags.installPreset != "":
				return runInstallPreset(cmd, ctx, flags.installPreset)
			case flags.resetPresets:
				return runResetPresets(cmd, ctx, true)
			case len(args) == 0:
				return cmd.Help()
			default:
				return runTranscode(cmd, ctx, flags, args)
			}
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	persistent.BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	persistent.BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	persistent.StringVar(&logFormat, "log-format", "", "Log format: console or json")
	rootCmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	f := rootCmd.Flags()
	f.StringVarP(&flags.device, "device", "d", defaultDevice, "Device to encode for")
	f.StringVarP(&flags.preset, "preset", "p", "", "Preset to use (default: the device's default preset)")
	f.StringVarP(&flags.output, "output", "o", "", "Output file, or directory when several inputs are given")
	f.StringVar(&flags.crop, "crop", "", "Crop margins as TOP:RIGHT:BOTTOM:LEFT")
	f.StringVarP(&flags.subtitle, "subtitle", "s", "", "Subtitle file to render into the video")
	f.StringVar(&flags.subtitleEncoding, "subtitle-encoding", "", "Character encoding of the subtitle file")
	f.BoolVar(&flags.ssa, "ssa", false, "Render embedded SSA/ASS subtitles")
	f.StringVarP(&flags.font, "font", "f", "", "Font for rendered subtitles")
	f.BoolVar(&flags.deinterlace, "deinterlace", false, "Force deinterlacing")
	f.BoolVarP(&flags.info, "info", "i", false, "Show devices and presets, or a single device with --device")
	f.BoolVar(&flags.sourceInfo, "source-info", false, "Show information about the inputs and exit")
	f.StringVar(&flags.installPreset, "install-preset", "", "Install a preset package (.tar.bz2 or .tar.gz)")
	f.BoolVar(&flags.resetPresets, "reset-presets", false, "Copy the system presets into the user preset directory")
	rootCmd.MarkFlagsMutuallyExclusive("info", "source-info", "install-preset", "reset-presets")

	rootCmd.AddCommand(newInfoCommand(ctx))
	rootCmd.AddCommand(newSourceInfoCommand(ctx))
	rootCmd.AddCommand(newPresetsCommand(ctx))
	rootCmd.AddCommand(newInputsCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newNotifyTestCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))

	return rootCmd
}
