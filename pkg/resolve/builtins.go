package resolve

// The java.lang supertypes every file type implicitly extends. Only their
// methods matter, so each is a bare TypeDecl with no syntax.
var (
	objectType = newBuiltin("Object", KindClass,
		builtinMethod{"equals", []string{"Object"}},
		builtinMethod{"hashCode", nil},
		builtinMethod{"toString", nil},
		builtinMethod{"getClass", nil},
		builtinMethod{"notify", nil},
		builtinMethod{"notifyAll", nil},
		builtinMethod{"wait", nil},
		builtinMethod{"wait", []string{"long"}},
		builtinMethod{"wait", []string{"long", "int"}},
		builtinMethod{"clone", nil},
		builtinMethod{"finalize", nil},
	)
	enumType = newBuiltin("Enum", KindClass,
		builtinMethod{"name", nil},
		builtinMethod{"ordinal", nil},
		builtinMethod{"compareTo", []string{"E"}},
		builtinMethod{"getDeclaringClass", nil},
		builtinMethod{"describeConstable", nil},
	)
	recordType = newBuiltin("Record", KindClass)
)

type builtinMethod struct {
	name   string
	params []string
}

func newBuiltin(name string, kind TypeKind, methods ...builtinMethod) *TypeDecl {
	t := &TypeDecl{Name: name, Kind: kind, Ordinal: -1, builtin: true}
	for _, m := range methods {
		t.Methods = append(t.Methods, &MethodDecl{
			Name:     m.name,
			Params:   m.params,
			Implicit: true,
			Owner:    t,
		})
	}
	return t
}

// implicitSupertype returns the java.lang class t extends when its
// declaration names none.
func implicitSupertype(t *TypeDecl) *TypeDecl {
	switch t.Kind {
	case KindEnum:
		return enumType
	case KindRecord:
		return recordType
	case KindAnonymous:
		return nil
	default:
		return objectType
	}
}

// builtinSupertypes links the java.lang hierarchy.
func builtinSupertypes(t *TypeDecl) []*TypeDecl {
	switch t {
	case enumType, recordType:
		return []*TypeDecl{objectType}
	}
	return nil
}
