package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"arista/internal/engine"
	"arista/internal/workflow"
)

// progressView renders a live bar per pass when writing to a terminal. On
// other writers it prints one line per job and leaves progress to the logs.
type progressView struct {
	out  io.Writer
	live bool
	show bool
	bar  *progressbar.ProgressBar
}

func newProgressView(out io.Writer, show bool) *progressView {
	return &progressView{out: out, live: show && isTerminal(out), show: show}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// attach subscribes the view. Handlers run on the manager's run goroutine so
// the view needs no locking.
func (v *progressView) attach(m *workflow.Manager) {
	if !v.show {
		return
	}
	m.On(workflow.EventJobStarted, func(ev workflow.Event) {
		fmt.Fprintf(v.out, "Transcoding %s -> %s\n", ev.Job.Label(), ev.Job.Request.Output)
	})
	m.On(workflow.EventPassSetup, func(ev workflow.Event) {
		v.finishBar()
		if !v.live {
			return
		}
		v.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(v.out),
			progressbar.OptionSetDescription(passDescription(ev, engine.Status{})),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	})
	m.On(workflow.EventJobProgress, func(ev workflow.Event) {
		if v.bar == nil {
			return
		}
		v.bar.Describe(passDescription(ev, ev.Progress))
		_ = v.bar.Set(int(ev.Progress.Percent * 100))
	})
	m.On(workflow.EventJobCompleted, func(ev workflow.Event) {
		v.finishBar()
		fmt.Fprintf(v.out, "Finished %s\n", ev.Job.Request.Output)
	})
	m.On(workflow.EventJobError, func(ev workflow.Event) {
		v.finishBar()
		fmt.Fprintf(v.out, "Failed: %s\n", ev.Message())
	})
	m.On(workflow.EventQueueComplete, func(workflow.Event) {
		v.finishBar()
	})
}

func (v *progressView) finishBar() {
	if v.bar == nil {
		return
	}
	_ = v.bar.Finish()
	v.bar = nil
}

func passDescription(ev workflow.Event, st engine.Status) string {
	return fmt.Sprintf("Pass %d/%d %s (Remaining %s)",
		ev.Pass+1, ev.PassCount, filepath.Base(ev.Job.Request.Input), engine.FormatRemaining(st.Remaining, st.Known))
}
