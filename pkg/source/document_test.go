package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/thisifier/pkg/parser"
)

const sample = `class Counter {
    int value;
    void increment() { value++; }
    void run() {
        increment();
    }
}
`

func newDoc(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := New("Counter.java", []byte(src))
	require.NoError(t, err)
	t.Cleanup(doc.Close)
	return doc
}

func TestNewParsesSource(t *testing.T) {
	doc := newDoc(t, sample)

	assert.Equal(t, parser.JavaProgram, doc.Root().Type())
	assert.Equal(t, sample, string(doc.Source()))
	assert.False(t, doc.Modified())
	assert.Equal(t, uint64(0), doc.Version())
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Counter.java")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	doc, err := Open(path)
	require.NoError(t, err)
	defer doc.Close()
	assert.Equal(t, path, doc.Path())

	_, err = Open(filepath.Join(t.TempDir(), "Missing.java"))
	assert.Error(t, err)
}

func TestReplaceInsertsAndReparses(t *testing.T) {
	doc := newDoc(t, sample)

	offset := uint32(strings.Index(sample, "increment();"))
	require.NoError(t, doc.Replace(context.Background(), offset, offset+uint32(len("increment")), "this.increment"))

	assert.Contains(t, string(doc.Source()), "        this.increment();")
	assert.True(t, doc.Modified())
	assert.Equal(t, uint64(1), doc.Version())
	assert.Equal(t, sample, string(doc.Original()))
	assert.False(t, doc.Root().HasError())

	calls := parser.FindNodesByType(doc.Root(), doc.Source(), parser.JavaMethodInvocation)
	require.Len(t, calls, 1)
	assert.NotNil(t, calls[0].ChildByFieldName("object"))
	assert.Equal(t, "this.increment()", doc.Text(calls[0]))
}

func TestReplaceRollsBackInvalidEdit(t *testing.T) {
	doc := newDoc(t, sample)

	offset := uint32(strings.Index(sample, "increment();"))
	err := doc.Replace(context.Background(), offset, offset, "{{{")
	require.ErrorIs(t, err, ErrInvalidEdit)

	assert.Equal(t, sample, string(doc.Source()))
	assert.False(t, doc.Modified())
	assert.False(t, doc.Root().HasError(), "tree must be restored after rollback")
	assert.Len(t, parser.FindNodesByType(doc.Root(), doc.Source(), parser.JavaMethodInvocation), 1)
}

func TestReplaceOutOfRange(t *testing.T) {
	doc := newDoc(t, sample)

	err := doc.Replace(context.Background(), 5, 3, "x")
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = doc.Replace(context.Background(), 0, uint32(len(sample)+1), "x")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReplaceAfterClose(t *testing.T) {
	doc, err := New("A.java", []byte("class A {}"))
	require.NoError(t, err)
	doc.Close()

	assert.True(t, doc.Closed())
	assert.ErrorIs(t, doc.Replace(context.Background(), 0, 0, ""), ErrClosed)
}

func TestPositionRoundTrip(t *testing.T) {
	doc := newDoc(t, sample)

	offset := uint32(strings.Index(sample, "increment();"))
	pos := doc.PositionOf(offset)
	assert.Equal(t, Position{Line: 5, Column: 9}, pos)
	assert.Equal(t, "5:9", pos.String())

	back, err := doc.OffsetOf(pos)
	require.NoError(t, err)
	assert.Equal(t, offset, back)
}

func TestOffsetOfRejectsInvalidPositions(t *testing.T) {
	doc := newDoc(t, sample)

	for _, pos := range []Position{{Line: 0, Column: 1}, {Line: 99, Column: 1}, {Line: 1, Column: 0}, {Line: 2, Column: 200}} {
		_, err := doc.OffsetOf(pos)
		assert.ErrorIs(t, err, ErrOutOfRange, "position %s", pos)
	}
}

func TestTryAcquireIsExclusive(t *testing.T) {
	doc := newDoc(t, sample)

	require.True(t, doc.TryAcquire())
	assert.False(t, doc.TryAcquire())
	doc.Release()
	assert.True(t, doc.TryAcquire())
	doc.Release()
}
