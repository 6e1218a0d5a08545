// Package rewrite qualifies unqualified self-calls in a Java document.
//
// A run enumerates the call sites in scope in document order, keeps those the
// resolver reports eligible, and inserts the qualifier before each callee
// inside a single write transaction. Sites are addressed by ordinal handles
// that are re-resolved against the current tree before every edit, so no
// offset computed before an edit is ever reused after it.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/thisifier/pkg/parser"
	"github.com/panbanda/thisifier/pkg/resolve"
	"github.com/panbanda/thisifier/pkg/source"
	"github.com/panbanda/thisifier/pkg/txn"
)

// CallSite is a method invocation in a document.
type CallSite = resolve.CallSite

var (
	// ErrStaleHandle is returned when a handle no longer denotes the call it was taken from.
	ErrStaleHandle = errors.New("stale call site handle")
	// ErrAlreadyQualified is returned when the call gained a receiver since enumeration.
	ErrAlreadyQualified = errors.New("call site already qualified")
	// ErrInvalidEdit is returned when qualifying would corrupt the syntax tree.
	ErrInvalidEdit = source.ErrInvalidEdit
	// ErrSiteFault wraps an unexpected failure while rewriting one site.
	ErrSiteFault = errors.New("call site rewrite fault")
	// ErrCanceled is returned by Run when the context ends before every site was applied.
	ErrCanceled = errors.New("run canceled")
)

// Style selects the receiver inserted before a self-call.
type Style string

const (
	// StyleThis inserts "this.".
	StyleThis Style = "this"
	// StyleType inserts "Enclosing.this." naming the call's own enclosing type.
	// Anonymous bodies, interfaces and names shadowed by a type parameter fall
	// back to "this.".
	StyleType Style = "type"
)

// Diagnosis pairs a call site in scope with its eligibility verdict.
type Diagnosis struct {
	resolve.Verdict
	Position source.Position
}

// Rewriter runs the enumeration, filtering and rewriting steps.
// A Rewriter holds no per-document state and may be shared between goroutines
// working on different documents.
type Rewriter struct {
	logger *slog.Logger
	style  Style

	// replace performs one edit; swapped in tests to inject faults.
	replace func(ctx context.Context, doc *source.Document, start, end uint32, text string) error
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the logger used to report skipped sites.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStyle selects the receiver form. Unknown styles keep StyleThis.
func WithStyle(style Style) Option {
	return func(r *Rewriter) {
		if style == StyleThis || style == StyleType {
			r.style = style
		}
	}
}

// New creates a Rewriter.
func New(opts ...Option) *Rewriter {
	r := &Rewriter{
		logger: slog.Default(),
		style:  StyleThis,
		replace: func(ctx context.Context, doc *source.Document, start, end uint32, text string) error {
			return doc.Replace(ctx, start, end, text)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// candidates returns the call sites the scope covers and a resolver over the
// same tree.
func (r *Rewriter) candidates(doc *source.Document, scope Scope) ([]CallSite, *resolve.Resolver, error) {
	bound, err := scope.Bind(doc)
	if err != nil {
		return nil, nil, err
	}
	ix := resolve.BuildIndex(doc.Root(), doc.Source())
	return bound.selectSites(ix.CallSites()), resolve.New(ix), nil
}

// CollectEligibleCallSites returns, in document order, the call sites in scope
// that can be qualified. The returned sites' nodes are valid until the
// document is next edited; their handles stay valid across qualifying edits.
func (r *Rewriter) CollectEligibleCallSites(doc *source.Document, scope Scope) ([]CallSite, error) {
	sites, res, err := r.candidates(doc, scope)
	if err != nil {
		return nil, err
	}
	var eligible []CallSite
	for _, site := range sites {
		if res.IsEligibleSelfCall(site) {
			eligible = append(eligible, site)
		}
	}
	return eligible, nil
}

// Explain returns every call site in scope with the reason it is or is not
// eligible.
func (r *Rewriter) Explain(doc *source.Document, scope Scope) ([]Diagnosis, error) {
	sites, res, err := r.candidates(doc, scope)
	if err != nil {
		return nil, err
	}
	out := make([]Diagnosis, 0, len(sites))
	for _, site := range sites {
		out = append(out, Diagnosis{Verdict: res.Check(site), Position: positionOf(site)})
	}
	return out, nil
}

// ApplyQualifier qualifies one call site. The handle is looked up in the
// current tree first; a handle that no longer names an unqualified call of
// the same method in the same enclosing type is rejected.
func (r *Rewriter) ApplyQualifier(ctx context.Context, doc *source.Document, site CallSite) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s at %s: %v", ErrSiteFault, site.CalleeName, positionOf(site), rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	current, err := r.relocate(doc, site)
	if err != nil {
		return err
	}
	if current.Qualified() {
		return fmt.Errorf("%w: %s.%s", ErrAlreadyQualified, current.Qualifier, current.CalleeName)
	}

	callee := string(doc.Source()[current.CalleeStart:current.CalleeEnd])
	return r.replace(ctx, doc, current.CalleeStart, current.CalleeEnd, r.receiver(current, doc.Source())+"."+callee)
}

// receiver is the self-reference for site. Only eligible sites are
// rewritten, so the enclosing type is the declaring type and naming it keeps
// the binding.
func (r *Rewriter) receiver(site CallSite, src []byte) string {
	t := site.Enclosing
	if r.style != StyleType || t == nil || t.Name == "" {
		return "this"
	}
	switch t.Kind {
	case resolve.KindClass, resolve.KindEnum, resolve.KindRecord:
	default:
		return "this"
	}
	if shadowedByTypeParameter(site.Node, t.Name, src) {
		return "this"
	}
	return t.Name + ".this"
}

// shadowedByTypeParameter reports whether a type parameter named name is in
// scope at n, where it would hide the type of the same name.
func shadowedByTypeParameter(n *sitter.Node, name string, src []byte) bool {
	for ; n != nil; n = n.Parent() {
		params := n.ChildByFieldName("type_parameters")
		if params == nil {
			continue
		}
		for i := 0; i < int(params.NamedChildCount()); i++ {
			param := params.NamedChild(i)
			for j := 0; j < int(param.NamedChildCount()); j++ {
				id := param.NamedChild(j)
				if id.Type() == "type_identifier" || id.Type() == "identifier" {
					if parser.GetNodeText(id, src) == name {
						return true
					}
					break
				}
			}
		}
	}
	return false
}

// relocate re-resolves a handle against the current tree.
func (r *Rewriter) relocate(doc *source.Document, site CallSite) (CallSite, error) {
	nodes := parser.FindNodesByType(doc.Root(), doc.Source(), parser.JavaMethodInvocation)
	if site.Ordinal < 0 || site.Ordinal >= len(nodes) {
		return CallSite{}, fmt.Errorf("%w: handle %d out of %d invocations", ErrStaleHandle, site.Ordinal, len(nodes))
	}

	ix := resolve.BuildIndex(doc.Root(), doc.Source())
	current := ix.CallSite(nodes[site.Ordinal], site.Ordinal)
	if current.CalleeName != site.CalleeName {
		return CallSite{}, fmt.Errorf("%w: handle %d now names %q, not %q",
			ErrStaleHandle, site.Ordinal, current.CalleeName, site.CalleeName)
	}
	if !sameEnclosing(current.Enclosing, site.Enclosing) {
		return CallSite{}, fmt.Errorf("%w: %s moved to another type", ErrStaleHandle, site.CalleeName)
	}
	return current, nil
}

func sameEnclosing(a, b *resolve.TypeDecl) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Ordinal == b.Ordinal && a.Kind == b.Kind && a.Name == b.Name
}

// Run qualifies every eligible call site in scope inside one write
// transaction. Sites that fail are skipped and recorded; the rest are still
// applied. If ctx ends mid-run the edits made so far are kept and the error
// wraps ErrCanceled. When the transaction is refused nothing is applied and
// the returned report is empty.
func (r *Rewriter) Run(ctx context.Context, doc *source.Document, scope Scope, tx txn.Transactor) (*Report, error) {
	started := time.Now()
	report := newReport(doc.Path(), scope)
	defer func() { report.Duration = time.Since(started) }()

	sites, err := r.CollectEligibleCallSites(doc, scope)
	if err != nil {
		return report, err
	}
	report.Eligible = len(sites)
	if len(sites) == 0 {
		return report, nil
	}
	if tx == nil {
		tx = txn.NewMemory()
	}

	err = tx.RunInWriteTransaction(ctx, doc, func(ctx context.Context) error {
		for i, site := range sites {
			if ctx.Err() != nil {
				for _, rest := range sites[i:] {
					report.record(rest, StatusCanceled, nil)
				}
				report.Canceled = true
				return nil
			}

			if err := r.ApplyQualifier(ctx, doc, site); err != nil {
				report.record(site, StatusSkipped, err)
				r.logger.Warn("skipped call site",
					"path", doc.Path(),
					"position", positionOf(site).String(),
					"callee", site.CalleeName,
					"error", err)
				continue
			}
			report.record(site, StatusApplied, nil)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, txn.ErrTransactionRefused) {
			report.reset()
		}
		return report, err
	}

	r.logger.Debug("qualified call sites",
		"path", doc.Path(),
		"scope", report.Scope,
		"applied", report.Applied(),
		"ordinals", report.AppliedOrdinals(),
		"skipped", report.Skipped())

	if report.Canceled {
		return report, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
	return report, nil
}
