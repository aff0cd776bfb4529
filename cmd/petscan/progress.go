package main

import (
	"io"
	"os"

	"petscan/internal/logging"
	"petscan/internal/scan"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// progressRenderer shows scan progress from published states.
type progressRenderer interface {
	Update(state scan.State)
	Finish()
}

// newProgressRenderer draws a bar on terminals and logs batch lines
// otherwise.
func newProgressRenderer(out *os.File) progressRenderer {
	if term.IsTerminal(int(out.Fd())) {
		return newBarRenderer(out)
	}
	return &logRenderer{}
}

type barRenderer struct {
	bar *progressbar.ProgressBar
	max int
}

func newBarRenderer(w io.Writer) *barRenderer {
	return &barRenderer{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (r *barRenderer) Update(state scan.State) {
	if state.TotalCount > 0 && state.TotalCount != r.max {
		r.max = state.TotalCount
		r.bar.ChangeMax(state.TotalCount)
	}
	_ = r.bar.Set(state.ScannedCount)
	r.bar.Describe("Scanning (" + pluralPets(len(state.Results)) + ")")
}

func (r *barRenderer) Finish() {
	_ = r.bar.Finish()
}

// logRenderer logs one line per scanned-count change.
type logRenderer struct {
	lastScanned int
	lastVersion uint64
}

func (r *logRenderer) Update(state scan.State) {
	if state.Version <= r.lastVersion || state.ScannedCount == r.lastScanned {
		return
	}
	r.lastVersion = state.Version
	r.lastScanned = state.ScannedCount
	logging.Info("Scanned %d/%d photos (%.0f%%), %s found",
		state.ScannedCount, state.TotalCount, state.Progress*100, pluralPets(len(state.Results)))
}

func (r *logRenderer) Finish() {}
