// Package resolve decides whether an unqualified Java method call is a call
// on the current instance's own type.
//
// Resolution is nominal and file-local. The declaring type of a call is found
// the way javac does for simple method names: the innermost lexically
// enclosing type that has a member method of that name is searched, and the
// overload is picked by arity and literal argument types. Whenever the file
// does not hold enough information to be certain (a supertype declared
// elsewhere, an ambiguous overload) the call is reported as not eligible.
package resolve

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/thisifier/pkg/parser"
)

// Reason explains a verdict.
type Reason string

const (
	ReasonEligible        Reason = "eligible"
	ReasonQualified       Reason = "already-qualified"
	ReasonNoEnclosingType Reason = "no-enclosing-type"
	ReasonStaticContext   Reason = "static-context"
	ReasonUnresolved      Reason = "unresolved"
	ReasonAmbiguous       Reason = "ambiguous"
	ReasonStatic          Reason = "static-method"
	ReasonInherited       Reason = "inherited"
	ReasonOuterType       Reason = "outer-type"
)

// Describe returns a human readable sentence for r.
func (r Reason) Describe() string {
	switch r {
	case ReasonEligible:
		return "instance method declared by the enclosing type"
	case ReasonQualified:
		return "call already has a receiver"
	case ReasonNoEnclosingType:
		return "call is not inside a type declaration"
	case ReasonStaticContext:
		return "no current instance in a static context"
	case ReasonUnresolved:
		return "declaration not found in this file"
	case ReasonAmbiguous:
		return "more than one overload may apply"
	case ReasonStatic:
		return "target is a static method"
	case ReasonInherited:
		return "target is declared by a supertype"
	case ReasonOuterType:
		return "target is declared by an enclosing type"
	}
	return string(r)
}

// Verdict is the outcome of checking one call site.
type Verdict struct {
	Site   CallSite
	Reason Reason
	Method *MethodDecl // resolved target, nil when resolution failed
}

// Eligible reports whether the call can be qualified with this.
func (v Verdict) Eligible() bool { return v.Reason == ReasonEligible }

func (v Verdict) String() string {
	target := "?"
	if v.Method != nil {
		target = v.Method.Owner.QualifiedName() + "." + v.Method.Name
	}
	return fmt.Sprintf("%s() -> %s: %s", v.Site.CalleeName, target, v.Reason)
}

// Resolver answers eligibility questions against one Index.
// It is not safe for concurrent use.
type Resolver struct {
	ix *Index
}

// New creates a resolver for ix.
func New(ix *Index) *Resolver {
	return &Resolver{ix: ix}
}

// IsEligibleSelfCall builds an index for root and checks site against it.
// Callers checking many sites should reuse a Resolver instead.
func IsEligibleSelfCall(site CallSite, root *sitter.Node, src []byte) bool {
	if site.Node == nil {
		return false
	}
	ix := BuildIndex(root, src)
	return New(ix).IsEligibleSelfCall(ix.CallSite(site.Node, site.Ordinal))
}

// IsEligibleSelfCall reports whether site is an unqualified call to an
// instance method declared by its own enclosing type.
func (r *Resolver) IsEligibleSelfCall(site CallSite) bool {
	return r.Check(site).Eligible()
}

// Check returns the verdict and its reason for site.
func (r *Resolver) Check(site CallSite) Verdict {
	v := Verdict{Site: site}
	switch {
	case site.Qualified():
		v.Reason = ReasonQualified
		return v
	case site.Enclosing == nil:
		v.Reason = ReasonNoEnclosingType
		return v
	}

	method, reason := r.Resolve(site)
	v.Method = method
	switch {
	case method == nil:
		v.Reason = reason
	case method.Static:
		v.Reason = ReasonStatic
	case r.inStaticContext(site):
		v.Reason = ReasonStaticContext
	case method.Owner != site.Enclosing:
		v.Reason = ReasonInherited
		for t := site.Enclosing.Outer; t != nil; t = t.Outer {
			if t == method.Owner {
				v.Reason = ReasonOuterType
				break
			}
		}
	default:
		v.Reason = ReasonEligible
	}
	return v
}

// Resolve finds the method an unqualified call binds to. The search starts at
// the innermost enclosing type and moves outward until a type with a member
// method of the callee's name is found; only that type's candidates are
// considered. A type whose supertypes are not all known stops the search, and
// a selection among its known candidates only stands when no overload
// declared elsewhere could be more specific.
func (r *Resolver) Resolve(site CallSite) (*MethodDecl, Reason) {
	for t := site.Enclosing; t != nil; t = t.Outer {
		candidates, complete := r.methodsNamed(t, site.CalleeName, make(map[*TypeDecl]bool))
		if len(candidates) == 0 {
			if !complete {
				return nil, ReasonUnresolved
			}
			continue
		}
		m, reason := selectOverload(candidates, site.Arguments, r.ix.src)
		if reason == ReasonEligible && !complete && !exactMatch(m, site.Arguments, r.ix.src) {
			return nil, ReasonAmbiguous
		}
		return m, reason
	}
	return nil, ReasonUnresolved
}

// methodsNamed returns the member methods of t called name, declared or
// inherited. complete is false when some supertype is declared outside the
// file, in which case the list may be missing candidates.
func (r *Resolver) methodsNamed(t *TypeDecl, name string, seen map[*TypeDecl]bool) ([]*MethodDecl, bool) {
	if seen[t] {
		return nil, true
	}
	seen[t] = true

	var out []*MethodDecl
	for _, m := range t.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}

	complete := true
	for _, super := range r.supertypes(t) {
		if super == nil {
			complete = false
			continue
		}
		inherited, ok := r.methodsNamed(super, name, seen)
		if !ok {
			complete = false
		}
		for _, m := range inherited {
			if m.Private || (m.Static && m.Owner.Kind == KindInterface) {
				continue
			}
			if overridden(out, m) {
				continue
			}
			out = append(out, m)
		}
	}
	return out, complete
}

func overridden(declared []*MethodDecl, m *MethodDecl) bool {
	for _, d := range declared {
		if sameSignature(d, m) {
			return true
		}
	}
	return false
}

// supertypes returns the direct supertypes of t. A nil entry stands for a
// supertype that is not declared in the file.
func (r *Resolver) supertypes(t *TypeDecl) []*TypeDecl {
	if t.builtin {
		return builtinSupertypes(t)
	}

	var out []*TypeDecl
	if t.Kind == KindAnonymous {
		if parent := t.Node.Parent(); parent != nil && parent.Type() == parser.JavaEnumConstant {
			return []*TypeDecl{t.Outer}
		}
	}
	for _, name := range t.superNames {
		out = append(out, r.lookupType(name, t.Outer, t.Node))
	}

	switch t.Kind {
	case KindClass:
		if !t.hasSuperclass {
			out = append(out, objectType)
		}
	case KindAnonymous:
		if len(out) == 0 {
			out = append(out, nil)
		}
	default:
		out = append(out, implicitSupertype(t))
	}
	return out
}

// lookupType resolves a type name as written at node, searching the member
// and local types of each enclosing type outward from from, then the file's
// top-level types. It returns nil when the name is declared elsewhere.
func (r *Resolver) lookupType(name string, from *TypeDecl, at *sitter.Node) *TypeDecl {
	segments := strings.Split(name, ".")

	var found *TypeDecl
	for c := from; found == nil; c = c.Outer {
		if c != nil && c.Name == segments[0] {
			found = c
			break
		}
		for _, t := range r.ix.types {
			if t.Outer == c && t.Name == segments[0] && visibleAt(t, at) {
				found = t
				break
			}
		}
		if c == nil {
			break
		}
	}
	if found == nil {
		if name == "Object" || name == "java.lang.Object" {
			return objectType
		}
		return nil
	}

	for _, seg := range segments[1:] {
		var next *TypeDecl
		for _, t := range r.ix.types {
			if t.Outer == found && t.scope == nil && t.Name == seg {
				next = t
				break
			}
		}
		if next == nil {
			return nil
		}
		found = next
	}
	return found
}

// visibleAt reports whether t can be named at node: members always, local
// classes only after their declaration within the declaring block.
func visibleAt(t *TypeDecl, at *sitter.Node) bool {
	if t.Kind == KindAnonymous {
		return false
	}
	if t.scope == nil {
		return true
	}
	return at != nil && parser.Contains(t.scope, at) && t.Node.StartByte() <= at.StartByte()
}

// inStaticContext reports whether the call sits where its enclosing type has
// no current instance: a static method, a static initializer, a static or
// interface field initializer, enum constant arguments, or the arguments of
// this(...) / super(...).
func (r *Resolver) inStaticContext(site CallSite) bool {
	if site.Node == nil || site.Enclosing == nil {
		return false
	}
	stop := site.Enclosing.Node
	for n := site.Node.Parent(); n != nil; n = n.Parent() {
		if parser.SameNode(n, stop) {
			return false
		}
		switch n.Type() {
		case parser.JavaMethodDecl, parser.JavaFieldDecl:
			if parser.HasJavaModifier(n, "static") {
				return true
			}
		case parser.JavaStaticInitializer, parser.JavaExplicitConstructor, parser.JavaEnumConstant, "constant_declaration":
			return true
		}
	}
	return false
}
