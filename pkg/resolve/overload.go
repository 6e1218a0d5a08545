package resolve

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/thisifier/pkg/parser"
)

// selectOverload narrows candidates to the one the call binds to. Fixed-arity
// matches win over variable-arity ones. Arguments whose type is evident from
// the syntax (literals) filter out incompatible parameters; any other argument
// is compatible with everything, so several survivors mean the choice depends
// on types this package does not compute.
func selectOverload(candidates []*MethodDecl, args []*sitter.Node, src []byte) (*MethodDecl, Reason) {
	argTypes := make([]string, len(args))
	for i, arg := range args {
		argTypes[i] = literalType(arg, src)
	}

	var fixed, variable []*MethodDecl
	for _, m := range candidates {
		if !m.Varargs && m.Arity() == len(args) && fixedApplicable(m, argTypes) {
			fixed = append(fixed, m)
		}
		if m.Varargs && len(args) >= m.Arity()-1 && variableApplicable(m, argTypes) {
			variable = append(variable, m)
		}
	}

	for _, phase := range [][]*MethodDecl{fixed, variable} {
		switch len(phase) {
		case 0:
			continue
		case 1:
			return phase[0], ReasonEligible
		default:
			return nil, ReasonAmbiguous
		}
	}
	return nil, ReasonUnresolved
}

// exactMatch reports whether m is maximally specific for args: a fixed-arity
// method whose every parameter has exactly the literal type of its argument.
// No other overload can then be chosen over it, wherever it is declared.
func exactMatch(m *MethodDecl, args []*sitter.Node, src []byte) bool {
	if m.Varargs || m.Arity() != len(args) {
		return false
	}
	for i, arg := range args {
		typ := literalType(arg, src)
		if typ == "" || typ == "null" || typ != simpleName(m.Params[i]) {
			return false
		}
	}
	return true
}

func fixedApplicable(m *MethodDecl, argTypes []string) bool {
	for i, arg := range argTypes {
		if !assignable(arg, m.Params[i]) {
			return false
		}
	}
	return true
}

func variableApplicable(m *MethodDecl, argTypes []string) bool {
	last := m.Arity() - 1
	for i, arg := range argTypes {
		param := m.Params[min(i, last)]
		if !assignable(arg, param) {
			return false
		}
	}
	return true
}

// literalType returns the static type of a literal argument, or "" when the
// type is not evident from the syntax.
func literalType(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if strings.HasSuffix(strings.ToLower(parser.GetNodeText(n, src)), "l") {
			return "long"
		}
		return "int"
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if strings.HasSuffix(strings.ToLower(parser.GetNodeText(n, src)), "f") {
			return "float"
		}
		return "double"
	case "string_literal", "text_block":
		return "String"
	case "character_literal":
		return "char"
	case "true", "false":
		return "boolean"
	case "null_literal":
		return "null"
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return literalType(n.NamedChild(0), src)
		}
	}
	return ""
}

// Types each literal type converts to in an invocation context: identity,
// widening primitive conversion, boxing, and widening reference conversion of
// the boxed type.
var literalTargets = map[string][]string{
	"int":     {"int", "long", "float", "double", "Integer", "Number", "Object", "Comparable", "Serializable", "Constable"},
	"long":    {"long", "float", "double", "Long", "Number", "Object", "Comparable", "Serializable", "Constable"},
	"float":   {"float", "double", "Float", "Number", "Object", "Comparable", "Serializable", "Constable"},
	"double":  {"double", "Double", "Number", "Object", "Comparable", "Serializable", "Constable"},
	"char":    {"char", "int", "long", "float", "double", "Character", "Object", "Comparable", "Serializable", "Constable"},
	"boolean": {"boolean", "Boolean", "Object", "Comparable", "Serializable", "Constable"},
	"String":  {"String", "CharSequence", "Object", "Comparable", "Serializable", "Constable"},
}

// knownTypes are the parameter types literalTargets is exhaustive for.
var knownTypes = map[string]bool{
	"byte": true, "short": true, "int": true, "long": true, "float": true, "double": true,
	"char": true, "boolean": true,
	"Byte": true, "Short": true, "Integer": true, "Long": true, "Float": true, "Double": true,
	"Character": true, "Boolean": true, "Number": true, "String": true, "CharSequence": true,
	"Object": true, "Comparable": true, "Serializable": true, "Constable": true,
}

var primitives = map[string]bool{
	"byte": true, "short": true, "int": true, "long": true, "float": true, "double": true,
	"char": true, "boolean": true,
}

// assignable reports whether an argument of literal type arg may be passed to
// a parameter of type param. Unknown argument or parameter types are assumed
// assignable.
func assignable(arg, param string) bool {
	if arg == "" || param == "" {
		return true
	}
	if strings.HasSuffix(param, "[]") {
		return arg == "null"
	}
	name := simpleName(param)
	if arg == "null" {
		return !primitives[name]
	}
	if !knownTypes[name] {
		return true
	}
	for _, target := range literalTargets[arg] {
		if target == name {
			return true
		}
	}
	return false
}
