// Package progress draws a progress bar while a batch of files is qualified.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for file processing. A nil *Tracker is a
// valid no-op tracker.
type Tracker struct {
	bar   *progressbar.ProgressBar
	out   io.Writer
	label string
}

// NewTracker creates a progress bar on out with the given label and total
// count. It returns nil when total is below two, where a bar is only noise.
// A nil out writes to stderr.
func NewTracker(out io.Writer, label string, total int) *Tracker {
	if out == nil {
		out = os.Stderr
	}
	if total < 2 {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, out: out, label: label}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	if t == nil {
		return
	}
	t.bar.Add(1)
}

// Finish clears the bar.
func (t *Tracker) Finish() {
	if t == nil {
		return
	}
	t.bar.Finish()
	t.bar.Clear()
}

// FinishError clears the bar and reports err.
func (t *Tracker) FinishError(err error) {
	if t == nil {
		return
	}
	t.Finish()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}
