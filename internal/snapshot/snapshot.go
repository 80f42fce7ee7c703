// Package snapshot dumps the descriptor model of a library as Go source, so a
// library read once can be replayed by tests without the assembly at hand.
package snapshot

import (
	"fmt"
	"io"

	"asyncgen/internal/metadata"

	"github.com/dave/jennifer/jen"
)

const metadataPackage = "asyncgen/internal/metadata"

// Snapshot holds the Go file declaring `var Library = metadata.Library{...}`.
type Snapshot struct {
	file *jen.File
}

func New(packageName string, library metadata.Library) *Snapshot {
	if packageName == "" {
		panic("snapshot: package name is required")
	}

	file := jen.NewFile(packageName)
	file.HeaderComment("Code generated by asyncgen. DO NOT EDIT.")
	file.ImportName(metadataPackage, "metadata")
	file.Var().Id("Library").Op("=").Add(libraryValue(library))

	return &Snapshot{file: file}
}

func (snapshot *Snapshot) Render(w io.Writer) error {
	return snapshot.file.Render(w)
}

func (snapshot *Snapshot) Save(path string) error {
	if err := snapshot.file.Save(path); err != nil {
		return fmt.Errorf("could not save snapshot '%s': %w", path, err)
	}
	return nil
}

func libraryValue(library metadata.Library) *jen.Statement {
	return jen.Qual(metadataPackage, "Library").Values(jen.Dict{
		jen.Id("Name"): jen.Lit(library.Name),
		jen.Id("Path"): jen.Lit(library.Path),
		jen.Id("Types"): jen.Index().Op("*").Qual(metadataPackage, "TypeInfo").ValuesFunc(func(g *jen.Group) {
			for _, info := range library.Types {
				g.Add(typeInfoValue(info, map[*metadata.TypeInfo]bool{}))
			}
		}),
	})
}

// typeInfoValue renders info and its base chain. A base already on the chain
// is left out, which cuts inheritance cycles of malformed metadata.
func typeInfoValue(info *metadata.TypeInfo, chain map[*metadata.TypeInfo]bool) *jen.Statement {
	chain[info] = true
	return jen.Op("&").Qual(metadataPackage, "TypeInfo").Values(jen.DictFunc(func(d jen.Dict) {
		d[jen.Id("Type")] = typeValue(info.Type)
		setBool(d, "IsPublic", info.IsPublic)
		setBool(d, "IsInterface", info.IsInterface)
		setBool(d, "IsDelegate", info.IsDelegate)
		if len(info.Methods) > 0 {
			d[jen.Id("Methods")] = jen.Index().Qual(metadataPackage, "Method").ValuesFunc(func(g *jen.Group) {
				for _, method := range info.Methods {
					g.Add(methodValue(method))
				}
			})
		}
		if info.Base != nil && !chain[info.Base] {
			d[jen.Id("Base")] = typeInfoValue(info.Base, chain)
		}
	}))
}

func methodValue(method metadata.Method) *jen.Statement {
	return jen.Values(jen.DictFunc(func(d jen.Dict) {
		d[jen.Id("DeclaringType")] = typeValue(method.DeclaringType)
		d[jen.Id("Name")] = jen.Lit(method.Name)
		d[jen.Id("ReturnType")] = typeValue(method.ReturnType)
		if len(method.Params) > 0 {
			d[jen.Id("Params")] = jen.Index().Qual(metadataPackage, "Parameter").ValuesFunc(func(g *jen.Group) {
				for _, param := range method.Params {
					g.Add(parameterValue(param))
				}
			})
		}
		setBool(d, "IsPublic", method.IsPublic)
		setBool(d, "IsStatic", method.IsStatic)
		setBool(d, "IsSpecialName", method.IsSpecialName)
		setBool(d, "IsGeneric", method.IsGeneric)
		if method.Obsolete != nil {
			d[jen.Id("Obsolete")] = jen.Op("&").Qual(metadataPackage, "Obsolete").Values(jen.Dict{
				jen.Id("Message"): jen.Lit(method.Obsolete.Message),
			})
		}
	}))
}

func parameterValue(param metadata.Parameter) *jen.Statement {
	return jen.Values(jen.DictFunc(func(d jen.Dict) {
		d[jen.Id("Name")] = jen.Lit(param.Name)
		d[jen.Id("Type")] = typeValue(param.Type)
		setBool(d, "IsOut", param.IsOut)
		setBool(d, "IsByRef", param.IsByRef)
	}))
}

func typeValue(t metadata.Type) *jen.Statement {
	return jen.Qual(metadataPackage, "Type").Values(typeFields(t))
}

func typeFields(t metadata.Type) jen.Dict {
	d := jen.Dict{}
	setString(d, "Namespace", t.Namespace)
	setString(d, "Name", t.Name)
	setString(d, "GenericParam", t.GenericParam)
	if len(t.Enclosing) > 0 {
		d[jen.Id("Enclosing")] = jen.Index().String().ValuesFunc(func(g *jen.Group) {
			for _, outer := range t.Enclosing {
				g.Lit(outer)
			}
		})
	}
	if len(t.TypeArgs) > 0 {
		d[jen.Id("TypeArgs")] = jen.Index().Qual(metadataPackage, "Type").ValuesFunc(func(g *jen.Group) {
			for _, arg := range t.TypeArgs {
				g.Values(typeFields(arg))
			}
		})
	}
	if t.Elem != nil {
		d[jen.Id("Elem")] = jen.Op("&").Add(typeValue(*t.Elem))
	}
	if t.Rank > 0 {
		d[jen.Id("Rank")] = jen.Lit(t.Rank)
	}
	setBool(d, "IsArray", t.IsArray)
	setBool(d, "IsPointer", t.IsPointer)
	setBool(d, "IsVoid", t.IsVoid)
	setBool(d, "IsBuiltIn", t.IsBuiltIn)
	return d
}

func setString(d jen.Dict, field string, value string) {
	if value != "" {
		d[jen.Id(field)] = jen.Lit(value)
	}
}

func setBool(d jen.Dict, field string, value bool) {
	if value {
		d[jen.Id(field)] = jen.True()
	}
}
