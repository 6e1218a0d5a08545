package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Java node types used by the analysis.
const (
	JavaProgram              = "program"
	JavaClassDecl            = "class_declaration"
	JavaInterfaceDecl        = "interface_declaration"
	JavaEnumDecl             = "enum_declaration"
	JavaRecordDecl           = "record_declaration"
	JavaAnnotationDecl       = "annotation_type_declaration"
	JavaClassBody            = "class_body"
	JavaInterfaceBody        = "interface_body"
	JavaEnumBody             = "enum_body"
	JavaEnumBodyDecls        = "enum_body_declarations"
	JavaEnumConstant         = "enum_constant"
	JavaObjectCreation       = "object_creation_expression"
	JavaMethodDecl           = "method_declaration"
	JavaConstructorDecl      = "constructor_declaration"
	JavaCompactConstructor   = "compact_constructor_declaration"
	JavaFieldDecl            = "field_declaration"
	JavaStaticInitializer    = "static_initializer"
	JavaExplicitConstructor  = "explicit_constructor_invocation"
	JavaMethodInvocation     = "method_invocation"
	JavaModifiers            = "modifiers"
	JavaFormalParameters     = "formal_parameters"
	JavaFormalParameter      = "formal_parameter"
	JavaSpreadParameter      = "spread_parameter"
	JavaReceiverParameter    = "receiver_parameter"
	JavaArgumentList         = "argument_list"
	JavaTypeArguments        = "type_arguments"
	JavaTypeList             = "type_list"
	JavaSuperInterfaces      = "super_interfaces"
	JavaExtendsInterfaces    = "extends_interfaces"
	JavaSuperclass           = "superclass"
	JavaGenericType          = "generic_type"
	JavaScopedTypeIdentifier = "scoped_type_identifier"
	JavaTypeIdentifier       = "type_identifier"
	JavaIdentifier           = "identifier"
	JavaBlock                = "block"
	JavaLineComment          = "line_comment"
	JavaBlockComment         = "block_comment"
)

// IsJavaTypeDeclaration reports whether node is a named Java type declaration.
func IsJavaTypeDeclaration(nodeType string) bool {
	switch nodeType {
	case JavaClassDecl, JavaInterfaceDecl, JavaEnumDecl, JavaRecordDecl, JavaAnnotationDecl:
		return true
	}
	return false
}

// IsJavaAnonymousBody reports whether node is the body of an anonymous class:
// `new T() { ... }` or an enum constant with a body.
func IsJavaAnonymousBody(node *sitter.Node) bool {
	if node == nil || node.Type() != JavaClassBody {
		return false
	}
	parent := node.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case JavaObjectCreation, JavaEnumConstant:
		return true
	}
	return false
}

// IsJavaComment reports whether nodeType is a comment node.
func IsJavaComment(nodeType string) bool {
	return nodeType == JavaLineComment || nodeType == JavaBlockComment || nodeType == "comment"
}

// JavaModifiersOf returns the modifiers child of a declaration, or nil.
func JavaModifiersOf(decl *sitter.Node) *sitter.Node {
	if decl == nil {
		return nil
	}
	for i := range int(decl.ChildCount()) {
		child := decl.Child(i)
		if child != nil && child.Type() == JavaModifiers {
			return child
		}
	}
	return nil
}

// HasJavaModifier reports whether a declaration carries the given keyword
// modifier (static, private, abstract, default, ...).
func HasJavaModifier(decl *sitter.Node, keyword string) bool {
	mods := JavaModifiersOf(decl)
	if mods == nil {
		return false
	}
	for i := range int(mods.ChildCount()) {
		child := mods.Child(i)
		if child != nil && child.Type() == keyword {
			return true
		}
	}
	return false
}

// JavaArguments returns the argument expressions of an argument_list,
// skipping punctuation and comments.
func JavaArguments(args *sitter.Node) []*sitter.Node {
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for i := range int(args.NamedChildCount()) {
		child := args.NamedChild(i)
		if child == nil || IsJavaComment(child.Type()) {
			continue
		}
		out = append(out, child)
	}
	return out
}

// JavaBodyMembers returns the member declarations of a type body, flattening
// enum_body_declarations so enum methods are visible like class methods.
func JavaBodyMembers(body *sitter.Node) []*sitter.Node {
	if body == nil {
		return nil
	}
	var out []*sitter.Node
	for i := range int(body.NamedChildCount()) {
		child := body.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() == JavaEnumBodyDecls {
			out = append(out, JavaBodyMembers(child)...)
			continue
		}
		out = append(out, child)
	}
	return out
}
