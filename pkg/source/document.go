// Package source holds the mutable, parsed representation of one Java file.
//
// A Document pairs the file bytes with a tree-sitter tree and keeps the two in
// sync: every Replace splices the bytes, edits the tree and reparses
// incrementally. A Replace that would make the tree less well-formed is
// rolled back, so a Document never degrades from valid to invalid.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/thisifier/pkg/parser"
)

var (
	// ErrInvalidEdit is returned when an edit would introduce syntax errors.
	ErrInvalidEdit = errors.New("edit would corrupt syntax tree")
	// ErrOutOfRange is returned for offsets or positions outside the document.
	ErrOutOfRange = errors.New("position out of range")
	// ErrClosed is returned when a closed document is used.
	ErrClosed = errors.New("document closed")
)

// Position is a 1-based line and byte column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Document is one parsed source file.
// A Document is not safe for concurrent mutation; writers serialize through
// TryAcquire/Release (see package txn).
type Document struct {
	path       string
	lang       parser.Language
	parser     *parser.Parser
	ownsParser bool

	original []byte
	src      []byte
	tree     *sitter.Tree
	lines    []uint32
	version  uint64
	closed   bool

	writeMu sync.Mutex
}

// Open reads and parses the file at path.
func Open(path string) (*Document, error) {
	return OpenFrom(NewFilesystem(), path)
}

// New parses src with a dedicated parser owned by the document.
func New(path string, src []byte) (*Document, error) {
	doc, err := NewWithParser(parser.New(), path, src)
	if err != nil {
		return nil, err
	}
	doc.ownsParser = true
	return doc, nil
}

// NewWithParser parses src with a caller-owned parser. The parser must not be
// used by another goroutine while the document is alive.
func NewWithParser(p *parser.Parser, path string, src []byte) (*Document, error) {
	lang := parser.DetectLanguage(path)
	if lang == parser.LangUnknown {
		lang = parser.LangJava
	}

	buf := append([]byte(nil), src...)
	tree, err := p.Reparse(context.Background(), nil, buf, lang)
	if err != nil {
		return nil, err
	}

	return &Document{
		path:     path,
		lang:     lang,
		parser:   p,
		original: append([]byte(nil), src...),
		src:      buf,
		tree:     tree,
		lines:    lineStarts(buf),
	}, nil
}

// Close releases the tree and, when owned, the parser.
func (d *Document) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if d.tree != nil {
		d.tree.Close()
	}
	if d.ownsParser {
		d.parser.Close()
	}
}

// Path returns the file path the document was created for.
func (d *Document) Path() string { return d.path }

// Source returns the current bytes. Callers must not modify the slice.
func (d *Document) Source() []byte { return d.src }

// Original returns the bytes the document was created with.
func (d *Document) Original() []byte { return d.original }

// Root returns the root node of the current tree.
func (d *Document) Root() *sitter.Node { return d.tree.RootNode() }

// Version increments on every committed edit.
func (d *Document) Version() uint64 { return d.version }

// Modified reports whether any edit has been committed.
func (d *Document) Modified() bool { return d.version > 0 }

// Closed reports whether Close has been called.
func (d *Document) Closed() bool { return d.closed }

// TryAcquire takes the document's exclusive write lock without blocking.
func (d *Document) TryAcquire() bool { return d.writeMu.TryLock() }

// Release gives up the write lock taken by TryAcquire.
func (d *Document) Release() { d.writeMu.Unlock() }

// Text returns the current source text of node.
func (d *Document) Text(node *sitter.Node) string {
	return parser.GetNodeText(node, d.src)
}

// Replace substitutes the bytes in [start, end) with text and reparses.
// If the new tree has more syntax errors than the old one the document is
// restored and ErrInvalidEdit is returned.
func (d *Document) Replace(ctx context.Context, start, end uint32, text string) error {
	if d.closed {
		return ErrClosed
	}
	if start > end || end > uint32(len(d.src)) {
		return fmt.Errorf("%w: [%d,%d) in %d bytes", ErrOutOfRange, start, end, len(d.src))
	}

	oldSrc := d.src
	oldErrors := countErrors(d.tree.RootNode())

	newSrc := make([]byte, 0, len(oldSrc)-int(end-start)+len(text))
	newSrc = append(newSrc, oldSrc[:start]...)
	newSrc = append(newSrc, text...)
	newSrc = append(newSrc, oldSrc[end:]...)

	newEnd := start + uint32(len(text))
	edit := sitter.EditInput{
		StartIndex:  start,
		OldEndIndex: end,
		NewEndIndex: newEnd,
		StartPoint:  d.pointAt(start, oldSrc, d.lines),
		OldEndPoint: d.pointAt(end, oldSrc, d.lines),
	}
	newLines := lineStarts(newSrc)
	edit.NewEndPoint = d.pointAt(newEnd, newSrc, newLines)

	d.tree.Edit(edit)
	newTree, err := d.parser.Reparse(ctx, d.tree, newSrc, d.lang)
	if err != nil {
		return d.restore(oldSrc, err)
	}
	if countErrors(newTree.RootNode()) > oldErrors {
		newTree.Close()
		return d.restore(oldSrc, ErrInvalidEdit)
	}

	d.tree.Close()
	d.tree = newTree
	d.src = newSrc
	d.lines = newLines
	d.version++
	return nil
}

// restore rebuilds the tree for oldSrc after a failed edit. The old tree has
// already been edited in place, so it is reparsed from scratch.
func (d *Document) restore(oldSrc []byte, cause error) error {
	tree, err := d.parser.Reparse(context.Background(), nil, oldSrc, d.lang)
	if err != nil {
		return errors.Join(cause, fmt.Errorf("failed to restore tree: %w", err))
	}
	d.tree.Close()
	d.tree = tree
	return cause
}

// PositionOf converts a byte offset to a 1-based line and column.
func (d *Document) PositionOf(offset uint32) Position {
	p := d.pointAt(offset, d.src, d.lines)
	return Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// OffsetOf converts a 1-based line and column to a byte offset.
func (d *Document) OffsetOf(pos Position) (uint32, error) {
	if pos.Line < 1 || pos.Line > len(d.lines) || pos.Column < 1 {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, pos)
	}
	start := d.lines[pos.Line-1]
	lineEnd := uint32(len(d.src))
	if pos.Line < len(d.lines) {
		lineEnd = d.lines[pos.Line]
	}
	offset := start + uint32(pos.Column-1)
	if offset > lineEnd {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, pos)
	}
	return offset, nil
}

func (d *Document) pointAt(offset uint32, src []byte, lines []uint32) sitter.Point {
	if offset > uint32(len(src)) {
		offset = uint32(len(src))
	}
	row := sort.Search(len(lines), func(i int) bool { return lines[i] > offset }) - 1
	if row < 0 {
		row = 0
	}
	return sitter.Point{Row: uint32(row), Column: offset - lines[row]}
}

func lineStarts(src []byte) []uint32 {
	starts := []uint32{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return starts
}

// countErrors counts ERROR and MISSING nodes, descending only into subtrees
// that report errors.
func countErrors(node *sitter.Node) int {
	if node == nil || !node.HasError() {
		return 0
	}
	n := 0
	if node.Type() == "ERROR" || node.IsMissing() {
		n++
	}
	for i := range int(node.ChildCount()) {
		n += countErrors(node.Child(i))
	}
	return n
}
