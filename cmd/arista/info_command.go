package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"arista/internal/profile"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var versions bool
	cmd := &cobra.Command{
		Use:   "info [DEVICE]",
		Short: "Show devices and their presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if versions {
				_, catalog, _, err := ctx.loadCatalog(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), catalog.VersionInfo())
				return nil
			}
			device := ""
			if len(args) == 1 {
				device = args[0]
			}
			return runInfo(cmd, ctx, device)
		},
	}
	cmd.Flags().BoolVar(&versions, "versions", false, "Print one \"id, version\" line per device")
	return cmd
}

// runInfo lists every device, or details one device and its presets.
func runInfo(cmd *cobra.Command, ctx *commandContext, deviceID string) error {
	_, catalog, _, err := ctx.loadCatalog(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if strings.TrimSpace(deviceID) == "" {
		rows := make([][]string, 0, catalog.Len())
		for _, d := range catalog.Devices() {
			rows = append(rows, []string{d.ID, d.Name(), d.Default, strings.Join(d.PresetNames(), ", ")})
		}
		fmt.Fprintln(out, renderTable([]string{"Device", "Name", "Default", "Presets"}, rows, nil))
		return nil
	}
	device, _, err := resolveTarget(catalog, deviceID, "")
	if err != nil {
		return err
	}
	writeDevice(out, device)
	return nil
}

func writeDevice(out io.Writer, d *profile.Device) {
	fmt.Fprintln(out, renderPairs(d.Name(), [][2]string{
		{"ID", d.ID},
		{"Description", d.Description},
		{"Author", d.Author.String()},
		{"Version", d.Version},
		{"Default preset", d.Default},
		{"File", d.Filename},
	}))
	for _, name := range d.PresetNames() {
		p := d.Presets[name]
		pairs := [][2]string{
			{"Description", p.Description},
			{"Container", p.Container},
			{"Extension", p.Extension},
			{"Passes", strconv.Itoa(p.PassCount())},
		}
		if v := p.Video; v != nil {
			pairs = append(pairs,
				[2]string{"Video codec", v.Name},
				[2]string{"Width", rangeOrAny(v.Width)},
				[2]string{"Height", rangeOrAny(v.Height)},
			)
			if !v.Rate.IsZero() {
				pairs = append(pairs, [2]string{"Framerate", v.Rate.String()})
			}
		}
		if a := p.Audio; a != nil {
			pairs = append(pairs,
				[2]string{"Audio codec", a.Name},
				[2]string{"Sample rate", rangeOrAny(a.Rate)},
				[2]string{"Channels", rangeOrAny(a.Channels)},
			)
		}
		title := p.Name
		if name == d.Default {
			title += " (default)"
		}
		fmt.Fprintln(out, renderPairs(title, pairs))
	}
}

func rangeOrAny(r profile.IntRange) string {
	if r.IsZero() {
		return "any"
	}
	return r.String()
}
