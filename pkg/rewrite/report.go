package rewrite

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/panbanda/thisifier/pkg/source"
)

// Status is the outcome of one eligible call site.
type Status string

const (
	StatusApplied  Status = "applied"
	StatusSkipped  Status = "skipped"
	StatusCanceled Status = "canceled"
)

// Outcome records what happened to one eligible call site. Position refers to
// the document as it was before the run.
type Outcome struct {
	Ordinal  int             `json:"ordinal" toon:"ordinal"`
	Callee   string          `json:"callee" toon:"callee"`
	Position source.Position `json:"position" toon:"position"`
	Status   Status          `json:"status" toon:"status"`
	Error    string          `json:"error,omitempty" toon:"error,omitempty"`
}

// Report summarizes one Run.
type Report struct {
	Path     string        `json:"path" toon:"path"`
	Scope    string        `json:"scope" toon:"scope"`
	Eligible int           `json:"eligible" toon:"eligible"`
	Outcomes []Outcome     `json:"outcomes" toon:"outcomes"`
	Canceled bool          `json:"canceled,omitempty" toon:"canceled,omitempty"`
	Duration time.Duration `json:"duration_ns" toon:"duration_ns"`

	applied *roaring.Bitmap
	skipped *roaring.Bitmap
}

func newReport(path string, scope Scope) *Report {
	return &Report{
		Path:    path,
		Scope:   scope.String(),
		applied: roaring.New(),
		skipped: roaring.New(),
	}
}

func (r *Report) record(site CallSite, status Status, err error) {
	o := Outcome{
		Ordinal:  site.Ordinal,
		Callee:   site.CalleeName,
		Position: positionOf(site),
		Status:   status,
	}
	if err != nil {
		o.Error = err.Error()
	}
	r.Outcomes = append(r.Outcomes, o)

	switch status {
	case StatusApplied:
		r.applied.Add(uint32(site.Ordinal))
	case StatusSkipped:
		r.skipped.Add(uint32(site.Ordinal))
	}
}

// reset drops every outcome; used when the transaction never ran.
func (r *Report) reset() {
	r.Outcomes = nil
	r.applied.Clear()
	r.skipped.Clear()
}

// Applied returns the number of call sites that were qualified.
func (r *Report) Applied() int { return int(r.applied.GetCardinality()) }

// Skipped returns the number of eligible call sites that failed to apply.
func (r *Report) Skipped() int { return int(r.skipped.GetCardinality()) }

// AppliedOrdinals returns the handles of the qualified call sites in ascending order.
func (r *Report) AppliedOrdinals() []uint32 { return r.applied.ToArray() }

// CanceledSites returns the number of eligible sites cancellation left alone.
func (r *Report) CanceledSites() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusCanceled {
			n++
		}
	}
	return n
}

// Changed reports whether the run modified the document.
func (r *Report) Changed() bool { return !r.applied.IsEmpty() }

func positionOf(site CallSite) source.Position {
	return source.Position{Line: int(site.StartPoint.Row) + 1, Column: int(site.StartPoint.Column) + 1}
}
