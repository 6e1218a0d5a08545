package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/thisifier/internal/testutil"
	"github.com/panbanda/thisifier/pkg/rewrite"
	"github.com/panbanda/thisifier/pkg/source"
)

func counterFindings(t *testing.T) []Finding {
	t.Helper()
	doc, err := source.New("Counter.java", []byte(testutil.Counter))
	require.NoError(t, err)
	defer doc.Close()

	diags, err := rewrite.New().Explain(doc, rewrite.FileScope())
	require.NoError(t, err)
	return FindingsOf("Counter.java", diags)
}

func TestFindingsOf(t *testing.T) {
	findings := counterFindings(t)
	require.Len(t, findings, 6)

	first := findings[0]
	assert.Equal(t, "Counter.java", first.Path)
	assert.Equal(t, "9:9", first.Position)
	assert.Equal(t, "increment", first.Callee)
	assert.Equal(t, "Counter.increment", first.Target)
	assert.True(t, first.Eligible)
	assert.Equal(t, "eligible", first.Reason)

	assert.Equal(t, "already-qualified", findings[3].Reason)
	assert.False(t, findings[3].Eligible)
	assert.Equal(t, "static-method", findings[5].Reason)
}

func TestFindingsRender(t *testing.T) {
	f := NewFindings("Self calls", counterFindings(t))
	assert.Equal(t, 3, f.Eligible)

	var buf bytes.Buffer
	require.NoError(t, f.RenderText(&buf, false))
	assert.Contains(t, buf.String(), "Counter.java:10:9")
	assert.Contains(t, buf.String(), "3 eligible")

	buf.Reset()
	require.NoError(t, f.RenderMarkdown(&buf))
	assert.Contains(t, buf.String(), "| Location")

	assert.Same(t, f, f.RenderData())
}

func TestFindingsRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFindings("", nil).RenderText(&buf, false))
	assert.Equal(t, "no method calls in scope\n", buf.String())
}
