// Package report summarizes a batch run over many files.
package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/panbanda/thisifier/internal/output"
)

// FileResult is the outcome of one file in a batch.
type FileResult struct {
	Path     string        `json:"path" toon:"path"`
	Eligible int           `json:"eligible" toon:"eligible"`
	Applied  int           `json:"applied" toon:"applied"`
	Skipped  int           `json:"skipped" toon:"skipped"`
	Canceled int           `json:"canceled,omitempty" toon:"canceled"`
	Cached   bool          `json:"cached,omitempty" toon:"cached"`
	Error    string        `json:"error,omitempty" toon:"error"`
	Duration time.Duration `json:"duration_ns" toon:"duration_ns"`
}

// Summary aggregates FileResults.
type Summary struct {
	Files        int     `json:"files" toon:"files"`
	Changed      int     `json:"changed" toon:"changed"`
	Cached       int     `json:"cached" toon:"cached"`
	Failed       int     `json:"failed" toon:"failed"`
	Eligible     int     `json:"eligible" toon:"eligible"`
	Applied      int     `json:"applied" toon:"applied"`
	Skipped      int     `json:"skipped" toon:"skipped"`
	MeanPerFile  float64 `json:"mean_per_file" toon:"mean_per_file"`
	StdDev       float64 `json:"stddev_per_file" toon:"stddev_per_file"`
	P90PerFile   float64 `json:"p90_per_file" toon:"p90_per_file"`
	MaxPerFile   int     `json:"max_per_file" toon:"max_per_file"`
	MeanDuration string  `json:"mean_duration" toon:"mean_duration"`
}

// Summarize computes totals and the distribution of eligible sites per file
// among the files that had any.
func Summarize(results []FileResult) Summary {
	var s Summary
	var counts, durations []float64
	for _, r := range results {
		s.Files++
		s.Eligible += r.Eligible
		s.Applied += r.Applied
		s.Skipped += r.Skipped
		if r.Cached {
			s.Cached++
		}
		if r.Error != "" {
			s.Failed++
		}
		if r.Applied > 0 {
			s.Changed++
		}
		if r.Eligible > 0 {
			counts = append(counts, float64(r.Eligible))
			s.MaxPerFile = max(s.MaxPerFile, r.Eligible)
		}
		if !r.Cached {
			durations = append(durations, float64(r.Duration))
		}
	}

	if len(counts) > 0 {
		slices.Sort(counts)
		s.MeanPerFile, s.StdDev = stat.MeanStdDev(counts, nil)
		if len(counts) == 1 {
			s.StdDev = 0
		}
		s.P90PerFile = stat.Quantile(0.9, stat.Empirical, counts, nil)
	}
	if len(durations) > 0 {
		s.MeanDuration = time.Duration(stat.Mean(durations, nil)).Round(time.Microsecond).String()
	}
	return s
}

// Report is a Renderable batch result.
type Report struct {
	Title   string       `json:"-" toon:"-"`
	DryRun  bool         `json:"dry_run" toon:"dry_run"`
	Files   []FileResult `json:"files" toon:"files"`
	Summary Summary      `json:"summary" toon:"summary"`
}

// New builds a report over results, listing only files with activity.
func New(title string, dryRun bool, results []FileResult) *Report {
	var active []FileResult
	for _, r := range results {
		if r.Eligible > 0 || r.Error != "" {
			active = append(active, r)
		}
	}
	return &Report{
		Title:   title,
		DryRun:  dryRun,
		Files:   active,
		Summary: Summarize(results),
	}
}

func (r *Report) table(colored bool) *output.Table {
	rows := make([][]string, 0, len(r.Files))
	for _, f := range r.Files {
		status := "ok"
		if f.Error != "" {
			status = f.Error
		}
		if colored {
			status = output.StatusColor(fileStatus(f), status)
		}
		rows = append(rows, []string{
			f.Path,
			strconv.Itoa(f.Eligible),
			strconv.Itoa(f.Applied),
			strconv.Itoa(f.Skipped),
			status,
		})
	}
	applied := "Applied"
	if r.DryRun {
		applied = "Would apply"
	}
	s := r.Summary
	footer := []string{
		fmt.Sprintf("%d files", s.Files),
		strconv.Itoa(s.Eligible),
		strconv.Itoa(s.Applied),
		strconv.Itoa(s.Skipped),
		fmt.Sprintf("%d failed", s.Failed),
	}
	return output.NewTable(r.Title, []string{"File", "Eligible", applied, "Skipped", "Status"}, rows, footer, nil)
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	if err := r.table(colored).RenderText(w, colored); err != nil {
		return err
	}
	s := r.Summary
	if s.Eligible > 0 {
		fmt.Fprintf(w, "per file: mean %.2f, stddev %.2f, p90 %.0f, max %d\n", s.MeanPerFile, s.StdDev, s.P90PerFile, s.MaxPerFile)
	}
	if s.Cached > 0 {
		fmt.Fprintf(w, "%d unchanged files skipped by cache\n", s.Cached)
	}
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	return r.table(false).RenderMarkdown(w)
}

// fileStatus names the outcome of f for coloring.
func fileStatus(f FileResult) string {
	switch {
	case f.Error != "":
		return "failed"
	case f.Canceled > 0:
		return "canceled"
	case f.Applied > 0:
		return "applied"
	case f.Skipped > 0:
		return "skipped"
	}
	return ""
}

func (r *Report) RenderData() any { return r }
