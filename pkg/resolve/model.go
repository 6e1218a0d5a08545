package resolve

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/thisifier/pkg/parser"
)

// TypeKind classifies a type declaration.
type TypeKind string

const (
	KindClass      TypeKind = "class"
	KindInterface  TypeKind = "interface"
	KindEnum       TypeKind = "enum"
	KindRecord     TypeKind = "record"
	KindAnnotation TypeKind = "annotation"
	KindAnonymous  TypeKind = "anonymous"
)

// TypeDecl is a type declaration of the file, or one of the implicit
// java.lang supertypes.
type TypeDecl struct {
	Name    string
	Kind    TypeKind
	Ordinal int // pre-order position among the file's type declarations; -1 for builtins
	Node    *sitter.Node
	Body    *sitter.Node
	Outer   *TypeDecl
	Methods []*MethodDecl

	// scope is the block a local class is declared in; nil for members and
	// top-level types.
	scope *sitter.Node
	// superNames are the supertypes as written, generics stripped.
	superNames []string
	// superNode is the anonymous class's instantiated type.
	superNode     *sitter.Node
	hasSuperclass bool
	builtin       bool
}

// Builtin reports whether t is an implicit java.lang supertype.
func (t *TypeDecl) Builtin() bool { return t.builtin }

// QualifiedName joins the names of t and its enclosing types with dots.
// Anonymous bodies render as "$anon".
func (t *TypeDecl) QualifiedName() string {
	if t == nil {
		return ""
	}
	var parts []string
	for c := t; c != nil; c = c.Outer {
		name := c.Name
		if c.Kind == KindAnonymous {
			name = "$anon"
		}
		parts = append(parts, name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// MethodDecl is a method member of a type.
type MethodDecl struct {
	Name     string
	Params   []string // erased parameter type names; the varargs element type is last
	Varargs  bool
	Static   bool
	Private  bool
	Implicit bool // record accessors, enum values/valueOf, java.lang members
	Owner    *TypeDecl
	Node     *sitter.Node
}

// Arity returns the declared parameter count.
func (m *MethodDecl) Arity() int { return len(m.Params) }

// Index is the type model of one parsed file. It is built from a single tree
// and must be discarded once the tree is edited.
type Index struct {
	src    []byte
	root   *sitter.Node
	types  []*TypeDecl
	byNode map[nodeKey]*TypeDecl
}

type nodeKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte(), typ: n.Type()}
}

// BuildIndex collects every type declaration and its methods.
func BuildIndex(root *sitter.Node, src []byte) *Index {
	ix := &Index{
		src:    src,
		root:   root,
		byNode: make(map[nodeKey]*TypeDecl),
	}
	ix.collect(root, nil)
	return ix
}

// Source returns the bytes the index was built from.
func (ix *Index) Source() []byte { return ix.src }

func (ix *Index) collect(node *sitter.Node, outer *TypeDecl) {
	if node == nil {
		return
	}
	nodeType := node.Type()

	switch {
	case parser.IsJavaTypeDeclaration(nodeType):
		t := ix.declareNamed(node, nodeType, outer)
		outer = t
	case parser.IsJavaAnonymousBody(node):
		t := ix.declareAnonymous(node, outer)
		outer = t
	}

	for i := range int(node.ChildCount()) {
		ix.collect(node.Child(i), outer)
	}
}

func (ix *Index) register(t *TypeDecl) {
	t.Ordinal = len(ix.types)
	ix.types = append(ix.types, t)
	ix.byNode[keyOf(t.Node)] = t
}

func (ix *Index) declareNamed(node *sitter.Node, nodeType string, outer *TypeDecl) *TypeDecl {
	t := &TypeDecl{
		Name:  parser.GetNodeText(node.ChildByFieldName("name"), ix.src),
		Node:  node,
		Body:  node.ChildByFieldName("body"),
		Outer: outer,
	}

	switch nodeType {
	case parser.JavaClassDecl:
		t.Kind = KindClass
		if sc := node.ChildByFieldName("superclass"); sc != nil {
			t.hasSuperclass = true
			t.superNames = append(t.superNames, ix.typeNames(sc)...)
		}
		t.superNames = append(t.superNames, ix.typeNames(node.ChildByFieldName("interfaces"))...)
	case parser.JavaInterfaceDecl:
		t.Kind = KindInterface
		for i := range int(node.NamedChildCount()) {
			if child := node.NamedChild(i); child != nil && child.Type() == parser.JavaExtendsInterfaces {
				t.superNames = append(t.superNames, ix.typeNames(child)...)
			}
		}
	case parser.JavaEnumDecl:
		t.Kind = KindEnum
		t.superNames = append(t.superNames, ix.typeNames(node.ChildByFieldName("interfaces"))...)
	case parser.JavaRecordDecl:
		t.Kind = KindRecord
		t.superNames = append(t.superNames, ix.typeNames(node.ChildByFieldName("interfaces"))...)
	case parser.JavaAnnotationDecl:
		t.Kind = KindAnnotation
	}

	if parent := node.Parent(); parent != nil && !isTypeBodyNode(parent) && parent.Type() != parser.JavaProgram {
		t.scope = parent
	}

	ix.register(t)
	ix.collectMethods(t)
	ix.addImplicitMembers(t, node)
	return t
}

func (ix *Index) declareAnonymous(body *sitter.Node, outer *TypeDecl) *TypeDecl {
	t := &TypeDecl{
		Kind:  KindAnonymous,
		Node:  body,
		Body:  body,
		Outer: outer,
	}
	if parent := body.Parent(); parent != nil && parent.Type() == parser.JavaObjectCreation {
		t.superNode = parent.ChildByFieldName("type")
		t.superNames = ix.typeNames(t.superNode)
	}
	ix.register(t)
	ix.collectMethods(t)
	return t
}

func isTypeBodyNode(n *sitter.Node) bool {
	switch n.Type() {
	case parser.JavaClassBody, parser.JavaInterfaceBody, parser.JavaEnumBody,
		parser.JavaEnumBodyDecls, "annotation_type_body":
		return true
	}
	return false
}

func (ix *Index) collectMethods(t *TypeDecl) {
	for _, member := range parser.JavaBodyMembers(t.Body) {
		if member.Type() != parser.JavaMethodDecl {
			continue
		}
		m := &MethodDecl{
			Name:    parser.GetNodeText(member.ChildByFieldName("name"), ix.src),
			Static:  parser.HasJavaModifier(member, "static"),
			Private: parser.HasJavaModifier(member, "private"),
			Owner:   t,
			Node:    member,
		}
		m.Params, m.Varargs = ix.parameters(member.ChildByFieldName("parameters"))
		t.Methods = append(t.Methods, m)
	}
}

// addImplicitMembers declares the methods the compiler generates: record
// accessors and object methods, enum values/valueOf.
func (ix *Index) addImplicitMembers(t *TypeDecl, node *sitter.Node) {
	switch t.Kind {
	case KindRecord:
		params := node.ChildByFieldName("parameters")
		if params != nil {
			for i := range int(params.NamedChildCount()) {
				p := params.NamedChild(i)
				if p == nil || (p.Type() != parser.JavaFormalParameter && p.Type() != parser.JavaSpreadParameter) {
					continue
				}
				name := ix.parameterName(p)
				if name != "" {
					ix.addImplicit(t, &MethodDecl{Name: name})
				}
			}
		}
		ix.addImplicit(t, &MethodDecl{Name: "toString"})
		ix.addImplicit(t, &MethodDecl{Name: "hashCode"})
		ix.addImplicit(t, &MethodDecl{Name: "equals", Params: []string{"Object"}})
	case KindEnum:
		ix.addImplicit(t, &MethodDecl{Name: "values", Static: true})
		ix.addImplicit(t, &MethodDecl{Name: "valueOf", Params: []string{"String"}, Static: true})
	}
}

// addImplicit adds m unless an explicit declaration with the same signature exists.
func (ix *Index) addImplicit(t *TypeDecl, m *MethodDecl) {
	for _, existing := range t.Methods {
		if sameSignature(existing, m) {
			return
		}
	}
	m.Owner = t
	m.Implicit = true
	t.Methods = append(t.Methods, m)
}

func (ix *Index) parameters(params *sitter.Node) ([]string, bool) {
	if params == nil {
		return nil, false
	}
	var types []string
	varargs := false
	for i := range int(params.NamedChildCount()) {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Type() {
		case parser.JavaFormalParameter:
			types = append(types, ix.parameterType(p))
		case parser.JavaSpreadParameter:
			types = append(types, ix.parameterType(p))
			varargs = true
		}
	}
	return types, varargs
}

// parameterType returns the erased declared type of a formal or spread parameter.
func (ix *Index) parameterType(p *sitter.Node) string {
	if typ := p.ChildByFieldName("type"); typ != nil {
		return ix.eraseType(typ) + ix.dimensions(p)
	}
	// spread_parameter has no type field: its first non-modifier named child is the type.
	for i := range int(p.NamedChildCount()) {
		child := p.NamedChild(i)
		if child == nil || child.Type() == parser.JavaModifiers {
			continue
		}
		return ix.eraseType(child)
	}
	return ""
}

func (ix *Index) dimensions(p *sitter.Node) string {
	if dims := p.ChildByFieldName("dimensions"); dims != nil {
		return strings.Repeat("[]", strings.Count(parser.GetNodeText(dims, ix.src), "["))
	}
	return ""
}

func (ix *Index) parameterName(p *sitter.Node) string {
	if name := p.ChildByFieldName("name"); name != nil {
		return parser.GetNodeText(name, ix.src)
	}
	return ""
}

// eraseType renders a type node without type arguments or annotations.
func (ix *Index) eraseType(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case parser.JavaGenericType:
		for i := range int(n.NamedChildCount()) {
			child := n.NamedChild(i)
			if child != nil && child.Type() != parser.JavaTypeArguments {
				return ix.eraseType(child)
			}
		}
		return ""
	case parser.JavaScopedTypeIdentifier:
		var parts []string
		for i := range int(n.NamedChildCount()) {
			child := n.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Type() {
			case parser.JavaTypeIdentifier, parser.JavaGenericType, parser.JavaScopedTypeIdentifier:
				parts = append(parts, ix.eraseType(child))
			}
		}
		return strings.Join(parts, ".")
	case "array_type":
		elem := ix.eraseType(n.ChildByFieldName("element"))
		dims := n.ChildByFieldName("dimensions")
		return elem + strings.Repeat("[]", strings.Count(parser.GetNodeText(dims, ix.src), "["))
	case "annotated_type":
		for i := range int(n.NamedChildCount()) {
			child := n.NamedChild(i)
			if child != nil && child.Type() != "annotation" && child.Type() != "marker_annotation" {
				return ix.eraseType(child)
			}
		}
		return ""
	default:
		return strings.Join(strings.Fields(parser.GetNodeText(n, ix.src)), "")
	}
}

// typeNames returns the erased type names listed under n (a superclass,
// super_interfaces, extends_interfaces, type_list or a single type).
func (ix *Index) typeNames(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case parser.JavaSuperclass, parser.JavaSuperInterfaces, parser.JavaExtendsInterfaces, parser.JavaTypeList:
		var out []string
		for i := range int(n.NamedChildCount()) {
			out = append(out, ix.typeNames(n.NamedChild(i))...)
		}
		return out
	case parser.JavaTypeIdentifier, parser.JavaGenericType, parser.JavaScopedTypeIdentifier, "annotated_type":
		if name := ix.eraseType(n); name != "" {
			return []string{name}
		}
	}
	return nil
}

// TypeOf returns the declaration registered for a type declaration node or
// anonymous class body.
func (ix *Index) TypeOf(node *sitter.Node) *TypeDecl {
	if node == nil {
		return nil
	}
	return ix.byNode[keyOf(node)]
}

// EnclosingType returns the nearest type declaration lexically containing
// node, or nil at top level. Arguments of `new T(...) { }` belong to the
// outer type; only the class body belongs to the anonymous type.
func (ix *Index) EnclosingType(node *sitter.Node) *TypeDecl {
	for n := node.Parent(); n != nil; n = n.Parent() {
		if parser.IsJavaTypeDeclaration(n.Type()) || parser.IsJavaAnonymousBody(n) {
			return ix.TypeOf(n)
		}
	}
	return nil
}

func sameSignature(a, b *MethodDecl) bool {
	if a.Name != b.Name || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if simpleName(a.Params[i]) != simpleName(b.Params[i]) {
			return false
		}
	}
	return true
}

// simpleName drops a package or outer-type qualifier: java.lang.String -> String.
func simpleName(typeName string) string {
	if i := strings.LastIndex(typeName, "."); i >= 0 {
		return typeName[i+1:]
	}
	return typeName
}
