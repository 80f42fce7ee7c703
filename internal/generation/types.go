package generation

import (
	"strings"

	"asyncgen/internal/metadata"
)

// The map of CLR types to their C# keywords
var builtInTypeNames = map[string]string{
	"Void":    "void",
	"Boolean": "bool",
	"Char":    "char",
	"String":  "string",
	"Object":  "object",
	"SByte":   "sbyte",
	"Int16":   "short",
	"Int32":   "int",
	"Int64":   "long",
	"Byte":    "byte",
	"UInt16":  "ushort",
	"UInt32":  "uint",
	"UInt64":  "ulong",
	"Single":  "float",
	"Double":  "double",
	"Decimal": "decimal",
}

// typeName renders a type reference as C# source.
func typeName(t metadata.Type) string {
	switch {
	case t.IsVoid:
		return "void"
	case t.IsArray:
		rank := t.Rank
		if rank < 1 {
			rank = 1
		}
		return typeName(*t.Elem) + "[" + strings.Repeat(",", rank-1) + "]"
	case t.IsPointer:
		return typeName(*t.Elem) + "*"
	}

	if t.Namespace == "System" && len(t.Enclosing) == 0 && len(t.TypeArgs) == 0 {
		if keyword, found := builtInTypeNames[t.Name]; found {
			return keyword
		}
	}

	segments := make([]string, 0, len(t.Enclosing)+2)
	if t.Namespace != "" {
		segments = append(segments, t.Namespace)
	}
	for _, outer := range t.Enclosing {
		segments = append(segments, withoutArity(outer))
	}
	segments = append(segments, t.ShortName())
	name := strings.Join(segments, ".")

	if len(t.TypeArgs) == 0 {
		return name
	}

	args := make([]string, len(t.TypeArgs))
	for i, arg := range t.TypeArgs {
		args[i] = typeName(arg)
	}
	return name + "<" + strings.Join(args, ", ") + ">"
}

func taskTypeName(resultType string) string {
	if resultType == "" || resultType == "void" {
		return "Task"
	}
	return "Task<" + resultType + ">"
}

func withoutArity(name string) string {
	if idx := strings.IndexByte(name, '`'); idx >= 0 {
		return name[:idx]
	}
	return name
}
