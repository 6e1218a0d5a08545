package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []FileResult {
	return []FileResult{
		{Path: "A.java", Eligible: 2, Applied: 2, Duration: 2 * time.Millisecond},
		{Path: "B.java", Eligible: 4, Applied: 3, Skipped: 1, Duration: 4 * time.Millisecond},
		{Path: "C.java", Cached: true},
		{Path: "D.java", Error: "parse failed"},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())

	assert.Equal(t, 4, s.Files)
	assert.Equal(t, 2, s.Changed)
	assert.Equal(t, 1, s.Cached)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 6, s.Eligible)
	assert.Equal(t, 5, s.Applied)
	assert.Equal(t, 1, s.Skipped)
	assert.InDelta(t, 3.0, s.MeanPerFile, 1e-9)
	assert.InDelta(t, 1.41421356, s.StdDev, 1e-6)
	assert.Equal(t, 4.0, s.P90PerFile)
	assert.Equal(t, 4, s.MaxPerFile)
	assert.Equal(t, "2ms", s.MeanDuration)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Files)
	assert.Zero(t, s.MeanPerFile)
	assert.Empty(t, s.MeanDuration)
}

func TestSummarizeSingleFile(t *testing.T) {
	s := Summarize([]FileResult{{Path: "A.java", Eligible: 3}})
	assert.Equal(t, 3.0, s.MeanPerFile)
	assert.Zero(t, s.StdDev)
}

func TestNewListsActiveFiles(t *testing.T) {
	r := New("Qualified self calls", false, sample())

	var paths []string
	for _, f := range r.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"A.java", "B.java", "D.java"}, paths)
	assert.Equal(t, 4, r.Summary.Files)
}

func TestRenderText(t *testing.T) {
	r := New("Qualified self calls", true, sample())

	var buf bytes.Buffer
	require.NoError(t, r.RenderText(&buf, false))

	out := buf.String()
	for _, want := range []string{"Qualified self calls", "A.java", "parse failed", "4 files", "per file: mean 3.00", "1 unchanged files skipped by cache"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, strings.ToUpper(out), "WOULD APPLY")
}

func TestRenderMarkdown(t *testing.T) {
	r := New("Run", false, sample())

	var buf bytes.Buffer
	require.NoError(t, r.RenderMarkdown(&buf))
	assert.Contains(t, buf.String(), "| File | Eligible | Applied | Skipped | Status |")
	assert.Contains(t, buf.String(), "| B.java | 4 | 3 | 1 | ok |")
}

func TestRenderData(t *testing.T) {
	r := New("Run", false, sample())
	assert.Same(t, r, r.RenderData())
}
