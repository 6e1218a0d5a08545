package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/panbanda/thisifier/pkg/source"
)

// ScopeKind selects which call sites a run considers.
type ScopeKind int

const (
	// WholeFile covers every call site in the document.
	WholeFile ScopeKind = iota
	// Region covers call sites lying entirely within [Start, End).
	Region
	// Cursor covers the innermost call site containing Start.
	Cursor
)

func (k ScopeKind) String() string {
	switch k {
	case Region:
		return "region"
	case Cursor:
		return "cursor"
	default:
		return "file"
	}
}

// Scope is the part of a document a run operates on. Offsets are bytes; a
// scope parsed from line:column text keeps positions until it is bound to a
// document.
type Scope struct {
	Kind  ScopeKind
	Start uint32
	End   uint32

	from, to   source.Position
	positional bool
}

// FileScope returns the whole-file scope.
func FileScope() Scope { return Scope{Kind: WholeFile} }

// RegionScope returns a byte-offset region.
func RegionScope(start, end uint32) Scope {
	return Scope{Kind: Region, Start: start, End: end}
}

// CursorScope returns a zero-width scope at offset.
func CursorScope(offset uint32) Scope {
	return Scope{Kind: Cursor, Start: offset, End: offset}
}

// ParseScope parses "" (whole file), "L:C" (cursor) or "L:C-L:C" (region).
// Lines and columns are 1-based.
func ParseScope(text string) (Scope, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "file" {
		return FileScope(), nil
	}

	from, to, isRegion := strings.Cut(text, "-")
	start, err := parsePosition(from)
	if err != nil {
		return Scope{}, err
	}
	if !isRegion {
		return Scope{Kind: Cursor, from: start, to: start, positional: true}, nil
	}

	end, err := parsePosition(to)
	if err != nil {
		return Scope{}, err
	}
	if end.Line < start.Line || (end.Line == start.Line && end.Column < start.Column) {
		return Scope{}, fmt.Errorf("invalid scope %q: end before start", text)
	}
	return Scope{Kind: Region, from: start, to: end, positional: true}, nil
}

func parsePosition(text string) (source.Position, error) {
	lineText, colText, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return source.Position{}, fmt.Errorf("invalid position %q: want line:column", text)
	}
	line, err := strconv.Atoi(lineText)
	if err != nil || line < 1 {
		return source.Position{}, fmt.Errorf("invalid line in %q", text)
	}
	col, err := strconv.Atoi(colText)
	if err != nil || col < 1 {
		return source.Position{}, fmt.Errorf("invalid column in %q", text)
	}
	return source.Position{Line: line, Column: col}, nil
}

// Bind converts a positional scope to byte offsets in doc.
func (s Scope) Bind(doc *source.Document) (Scope, error) {
	if !s.positional {
		if s.Kind != WholeFile && (s.Start > s.End || s.End > uint32(len(doc.Source()))) {
			return Scope{}, fmt.Errorf("%w: scope %s", source.ErrOutOfRange, s)
		}
		return s, nil
	}
	start, err := doc.OffsetOf(s.from)
	if err != nil {
		return Scope{}, err
	}
	end, err := doc.OffsetOf(s.to)
	if err != nil {
		return Scope{}, err
	}
	return Scope{Kind: s.Kind, Start: start, End: end}, nil
}

func (s Scope) String() string {
	switch {
	case s.Kind == WholeFile:
		return "file"
	case s.positional && s.Kind == Cursor:
		return s.from.String()
	case s.positional:
		return s.from.String() + "-" + s.to.String()
	case s.Kind == Cursor:
		return fmt.Sprintf("@%d", s.Start)
	default:
		return fmt.Sprintf("[%d,%d)", s.Start, s.End)
	}
}

// selectSites filters sites, in document order, to those the scope covers.
func (s Scope) selectSites(sites []CallSite) []CallSite {
	switch s.Kind {
	case Region:
		var out []CallSite
		for _, site := range sites {
			if site.Start >= s.Start && site.End <= s.End {
				out = append(out, site)
			}
		}
		return out
	case Cursor:
		var innermost *CallSite
		for i := range sites {
			site := &sites[i]
			if !site.Covers(s.Start) {
				continue
			}
			if innermost == nil || site.End-site.Start < innermost.End-innermost.Start {
				innermost = site
			}
		}
		if innermost == nil {
			return nil
		}
		return []CallSite{*innermost}
	default:
		return sites
	}
}
