package resolve

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/thisifier/pkg/parser"
)

// CallSite is a read-only view of one method invocation.
//
// Ordinal is the stable handle: the invocation's position among all method
// invocations of the file in document order. Qualifying a call never adds or
// removes invocations, so the ordinal survives edits. Node and Arguments point
// into the tree the site was read from and are invalid once the document is
// edited.
type CallSite struct {
	Ordinal     int
	CalleeName  string
	Qualifier   string // receiver expression text; empty when unqualified
	Enclosing   *TypeDecl
	Start       uint32
	End         uint32
	CalleeStart uint32 // first byte of the callee reference (type arguments or name)
	CalleeEnd   uint32
	StartPoint  sitter.Point
	EndPoint    sitter.Point
	Node        *sitter.Node
	Arguments   []*sitter.Node
}

// Qualified reports whether the invocation has an explicit receiver.
func (c CallSite) Qualified() bool { return c.Qualifier != "" }

// Covers reports whether offset falls within the invocation or sits right
// after its closing parenthesis, where an editor caret rests after typing it.
func (c CallSite) Covers(offset uint32) bool {
	return c.Start <= offset && offset <= c.End
}

// CallSites returns every method invocation in document order.
func (ix *Index) CallSites() []CallSite {
	nodes := parser.FindNodesByType(ix.root, ix.src, parser.JavaMethodInvocation)
	sites := make([]CallSite, 0, len(nodes))
	for i, n := range nodes {
		sites = append(sites, ix.CallSite(n, i))
	}
	return sites
}

// CallSite builds the view of a method_invocation node.
func (ix *Index) CallSite(node *sitter.Node, ordinal int) CallSite {
	name := node.ChildByFieldName("name")
	site := CallSite{
		Ordinal:    ordinal,
		CalleeName: parser.GetNodeText(name, ix.src),
		Enclosing:  ix.EnclosingType(node),
		Start:      node.StartByte(),
		End:        node.EndByte(),
		StartPoint: node.StartPoint(),
		EndPoint:   node.EndPoint(),
		Node:       node,
		Arguments:  parser.JavaArguments(node.ChildByFieldName("arguments")),
	}
	if obj := node.ChildByFieldName("object"); obj != nil {
		site.Qualifier = parser.GetNodeText(obj, ix.src)
	}
	if name != nil {
		site.CalleeStart, site.CalleeEnd = name.StartByte(), name.EndByte()
	}
	if targs := node.ChildByFieldName("type_arguments"); targs != nil && targs.StartByte() < site.CalleeStart {
		site.CalleeStart = targs.StartByte()
	}
	return site
}
