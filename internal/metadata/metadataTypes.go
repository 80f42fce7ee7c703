package metadata

import "strings"

// Type identifies a type referenced from a method signature or declaring a
// method.
type Type struct {
	Namespace string
	// Metadata name. Generic definitions keep their arity suffix, e.g. "List`1".
	Name string
	// Names of the enclosing types of a nested type, outermost first.
	Enclosing []string
	TypeArgs  []Type
	// Element type of arrays and pointers.
	Elem    *Type
	IsArray bool
	// Array rank, 1 for single-dimensional zero-based arrays.
	Rank      int
	IsPointer bool
	IsVoid    bool
	IsBuiltIn bool
	// Documentation-ID form of an open generic parameter: "`0" for a type
	// parameter, "``0" for a method parameter. Empty for every other type.
	GenericParam string
}

type Parameter struct {
	Name  string
	Type  Type
	IsOut bool
	// By-reference (ref or out) parameter; Type is the referenced type.
	IsByRef bool
}

type Obsolete struct {
	Message string
}

type Method struct {
	DeclaringType Type
	Name          string
	Params        []Parameter
	ReturnType    Type
	IsPublic      bool
	IsStatic      bool
	IsSpecialName bool
	IsGeneric     bool
	Obsolete      *Obsolete
}

// TypeInfo describes a type defined in a loaded library.
type TypeInfo struct {
	Type        Type
	IsPublic    bool
	IsInterface bool
	// Set when the base type is System.MulticastDelegate.
	IsDelegate bool
	// Public instance methods declared on the type itself.
	Methods []Method
	// Resolved base type, nil when the type has none or it could not be found.
	Base *TypeInfo
}

type Library struct {
	Name  string
	Path  string
	Types []*TypeInfo
}

// FullName returns the dotted namespace-qualified name, nested types joined by '.'.
func (t Type) FullName() string {
	var b strings.Builder
	if t.Namespace != "" {
		b.WriteString(t.Namespace)
		b.WriteByte('.')
	}
	for _, outer := range t.Enclosing {
		b.WriteString(outer)
		b.WriteByte('.')
	}
	b.WriteString(t.Name)
	return b.String()
}

// ShortName is the type name without namespace, enclosing types and arity.
func (t Type) ShortName() string {
	return trimArity(t.Name)
}

// Is reports whether t names the given non-generic type.
func (t Type) Is(namespace string, name string) bool {
	return t.Elem == nil && t.GenericParam == "" && len(t.Enclosing) == 0 && t.Namespace == namespace && t.Name == name
}

func (t Type) IsGenericDefinition() bool {
	return strings.Contains(t.Name, "`") && len(t.TypeArgs) == 0
}

// IsOpen reports whether a generic parameter occurs anywhere in t.
func (t Type) IsOpen() bool {
	if t.GenericParam != "" {
		return true
	}
	if t.Elem != nil && t.Elem.IsOpen() {
		return true
	}
	for _, arg := range t.TypeArgs {
		if arg.IsOpen() {
			return true
		}
	}
	return false
}

// DocName renders t in the XML documentation-ID convention, e.g.
// "System.Collections.Generic.List{System.String}" or "System.Byte[]".
func (t Type) DocName() string {
	switch {
	case t.GenericParam != "":
		return t.GenericParam
	case t.IsArray && t.Rank > 1:
		return t.Elem.DocName() + "[" + strings.TrimSuffix(strings.Repeat("0:,", t.Rank), ",") + "]"
	case t.IsArray:
		return t.Elem.DocName() + "[]"
	case t.IsPointer:
		return t.Elem.DocName() + "*"
	}

	name := t.FullName()
	if len(t.TypeArgs) == 0 {
		return name
	}

	args := make([]string, len(t.TypeArgs))
	for i, arg := range t.TypeArgs {
		args[i] = arg.DocName()
	}
	return strings.TrimSuffix(name, t.Name) + trimArity(t.Name) + "{" + strings.Join(args, ",") + "}"
}

// FindMethod looks up a public instance method by name on the type and then
// on its resolved base types. The first declared match wins.
func (info *TypeInfo) FindMethod(name string) (Method, bool) {
	visited := make(map[*TypeInfo]bool)
	for current := info; current != nil && !visited[current]; current = current.Base {
		visited[current] = true
		for _, method := range current.Methods {
			if method.Name == name {
				return method, true
			}
		}
	}

	return Method{}, false
}

func trimArity(name string) string {
	if idx := strings.IndexByte(name, '`'); idx >= 0 {
		return name[:idx]
	}
	return name
}
