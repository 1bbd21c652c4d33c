package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"arista/internal/engine"
	"arista/internal/job"
	"arista/internal/media/ffprobe"
	"arista/internal/services"
)

// probeConcurrency bounds parallel ffprobe runs.
const probeConcurrency = 4

func newSourceInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "source-info INPUT...",
		Short: "Show the streams of one or more inputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceInfo(cmd, ctx, args)
		},
	}
}

type probedSource struct {
	source engine.Source
	info   ffprobe.MediaInfo
	err    error
}

func runSourceInfo(cmd *cobra.Command, ctx *commandContext, inputs []string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "source-info", "args", "at least one input is required", nil)
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	inspector := sourceInspector(cfg, ctx.overrides)

	results := make([]probedSource, len(inputs))
	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(probeConcurrency)
	for i, input := range inputs {
		g.Go(func() error {
			src, err := job.ParseSource(input)
			if err != nil {
				results[i] = probedSource{err: err}
				return nil
			}
			src, info, err := inspector.Inspect(gctx, src)
			results[i] = probedSource{source: src, info: info, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", inputs[i], r.err)
			continue
		}
		writeSource(out, inputs[i], r)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs could not be probed", failed, len(inputs))
	}
	return nil
}

func writeSource(out io.Writer, input string, r probedSource) {
	info := r.info
	pairs := [][2]string{
		{"Kind", r.source.Kind.String()},
		{"Format", info.FormatName},
		{"Mimetype", info.Mimetype},
		{"Duration", formatDuration(info.Duration)},
	}
	if r.source.Title > 0 {
		pairs = append(pairs, [2]string{"Title", strconv.Itoa(r.source.Title)})
	}
	if info.Size > 0 {
		pairs = append(pairs, [2]string{"Size", strconv.FormatInt(info.Size, 10) + " bytes"})
	}
	if info.Bitrate > 0 {
		pairs = append(pairs, [2]string{"Bitrate", formatBitrate(info.Bitrate)})
	}
	fmt.Fprintln(out, renderPairs(input, pairs))

	rows := make([][]string, 0, len(info.Video)+len(info.Audio))
	for _, v := range info.Video {
		detail := fmt.Sprintf("%dx%d @ %s fps", v.Width, v.Height, v.Framerate)
		if v.Interlaced {
			detail += ", interlaced"
		}
		if v.DisplayAspect != "" {
			detail += ", DAR " + v.DisplayAspect
		}
		rows = append(rows, []string{strconv.Itoa(v.Index), "video", v.Codec, detail, languageName(v.Language)})
	}
	for _, a := range info.Audio {
		detail := fmt.Sprintf("%d Hz, %d ch", a.SampleRate, a.Channels)
		if a.Bitrate > 0 {
			detail += ", " + formatBitrate(a.Bitrate)
		}
		rows = append(rows, []string{strconv.Itoa(a.Index), "audio", a.Codec, detail, languageName(a.Language)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Type", "Codec", "Details", "Language"},
			rows,
			[]columnAlignment{alignRight},
		))
	}
}

// languageName turns an ISO 639 tag such as "eng" into "English".
func languageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "und") {
		return "-"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func formatBitrate(bps int64) string {
	if bps >= 1_000_000 {
		return fmt.Sprintf("%.1f Mb/s", float64(bps)/1_000_000)
	}
	return fmt.Sprintf("%d kb/s", bps/1000)
}
