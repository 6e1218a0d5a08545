// Package diffview renders the edits of a dry run as unified diffs.
package diffview

import (
	"bytes"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

type op struct {
	kind byte // ' ', '-' or '+'
	text string
}

// Unified computes the line diff between before and after. It returns nil
// when the contents are equal.
func Unified(path string, before, after []byte, context int) *diff.FileDiff {
	if bytes.Equal(before, after) {
		return nil
	}
	if context < 0 {
		context = DefaultContext
	}

	ops := lineOps(string(before), string(after))
	return &diff.FileDiff{
		OrigName: "a/" + path,
		NewName:  "b/" + path,
		Hunks:    hunks(ops, context),
	}
}

func lineOps(before, after string) []op {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []op
	for _, d := range diffs {
		kind := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			ops = append(ops, op{kind: kind, text: line})
		}
	}
	return ops
}

// hunks groups changed lines with their context. Changes closer than twice
// the context share a hunk.
func hunks(ops []op, context int) []*diff.Hunk {
	var out []*diff.Hunk
	origLine, newLine := make([]int32, len(ops)+1), make([]int32, len(ops)+1)
	origLine[0], newLine[0] = 1, 1
	for i, o := range ops {
		origLine[i+1], newLine[i+1] = origLine[i], newLine[i]
		if o.kind != '+' {
			origLine[i+1]++
		}
		if o.kind != '-' {
			newLine[i+1]++
		}
	}

	for i := 0; i < len(ops); {
		if ops[i].kind == ' ' {
			i++
			continue
		}
		start := max(0, i-context)
		end := i
		for j := i; j < len(ops); j++ {
			if ops[j].kind == ' ' {
				continue
			}
			if j-end > 2*context {
				break
			}
			end = j
		}
		end = min(len(ops), end+context+1)

		h := &diff.Hunk{
			OrigStartLine: origLine[start],
			OrigLines:     origLine[end] - origLine[start],
			NewStartLine:  newLine[start],
			NewLines:      newLine[end] - newLine[start],
		}
		if h.OrigLines == 0 {
			h.OrigStartLine--
		}
		if h.NewLines == 0 {
			h.NewStartLine--
		}
		var body bytes.Buffer
		for _, o := range ops[start:end] {
			body.WriteByte(o.kind)
			body.WriteString(o.text)
		}
		h.Body = body.Bytes()
		out = append(out, h)
		i = end
	}
	return out
}

// Render prints diffs in unified format.
func Render(diffs ...*diff.FileDiff) ([]byte, error) {
	var present []*diff.FileDiff
	for _, d := range diffs {
		if d != nil {
			present = append(present, d)
		}
	}
	return diff.PrintMultiFileDiff(present)
}

// Colorize highlights a rendered diff for terminals.
func Colorize(rendered []byte) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(string(rendered), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			b.WriteString(color.New(color.Bold).Sprint(line))
		case strings.HasPrefix(line, "@@"):
			b.WriteString(color.CyanString("%s", line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(color.GreenString("%s", line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(color.RedString("%s", line))
		default:
			b.WriteString(line)
		}
	}
	return b.String()
}

// Changed returns the number of lines d touches; a replaced line counts once.
func Changed(d *diff.FileDiff) int {
	if d == nil {
		return 0
	}
	st := d.Stat()
	return int(st.Added + st.Changed + st.Deleted)
}
