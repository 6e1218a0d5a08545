package report

import (
	"fmt"
	"io"

	"github.com/panbanda/thisifier/internal/output"
	"github.com/panbanda/thisifier/pkg/rewrite"
)

// Finding is one call site with its verdict, flattened for output.
type Finding struct {
	Path     string `json:"path" toon:"path"`
	Position string `json:"position" toon:"position"`
	Callee   string `json:"callee" toon:"callee"`
	Target   string `json:"target,omitempty" toon:"target"`
	Eligible bool   `json:"eligible" toon:"eligible"`
	Reason   string `json:"reason" toon:"reason"`
	Detail   string `json:"detail" toon:"detail"`
}

// FindingsOf flattens the diagnoses of one file.
func FindingsOf(path string, diags []rewrite.Diagnosis) []Finding {
	out := make([]Finding, 0, len(diags))
	for _, d := range diags {
		f := Finding{
			Path:     path,
			Position: d.Position.String(),
			Callee:   d.Site.CalleeName,
			Eligible: d.Eligible(),
			Reason:   string(d.Reason),
			Detail:   d.Reason.Describe(),
		}
		if d.Method != nil {
			f.Target = d.Method.Owner.QualifiedName() + "." + d.Method.Name
		}
		out = append(out, f)
	}
	return out
}

// Findings is a Renderable list of verdicts.
type Findings struct {
	Title    string    `json:"-" toon:"-"`
	Findings []Finding `json:"findings" toon:"findings"`
	Eligible int       `json:"eligible" toon:"eligible"`
}

// NewFindings wraps findings and counts the eligible ones.
func NewFindings(title string, findings []Finding) *Findings {
	f := &Findings{Title: title, Findings: findings}
	for _, x := range findings {
		if x.Eligible {
			f.Eligible++
		}
	}
	return f
}

func (f *Findings) table(colored bool) *output.Table {
	rows := make([][]string, 0, len(f.Findings))
	for _, x := range f.Findings {
		target := x.Target
		if target == "" {
			target = "-"
		}
		verdict := x.Reason
		if colored && x.Eligible {
			verdict = output.StatusColor("eligible", verdict)
		}
		rows = append(rows, []string{x.Path + ":" + x.Position, x.Callee, target, verdict})
	}
	footer := []string{
		fmt.Sprintf("%d calls", len(f.Findings)),
		"",
		"",
		fmt.Sprintf("%d eligible", f.Eligible),
	}
	return output.NewTable(f.Title, []string{"Location", "Callee", "Target", "Verdict"}, rows, footer, nil)
}

func (f *Findings) RenderText(w io.Writer, colored bool) error {
	if len(f.Findings) == 0 {
		_, err := fmt.Fprintln(w, "no method calls in scope")
		return err
	}
	return f.table(colored).RenderText(w, colored)
}

func (f *Findings) RenderMarkdown(w io.Writer) error {
	return f.table(false).RenderMarkdown(w)
}

func (f *Findings) RenderData() any { return f }
