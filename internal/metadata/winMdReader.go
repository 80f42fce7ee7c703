// The package used for describing the public surface of a .NET library and
// for reading it from the library's ECMA-335 metadata.
package metadata

import (
	"debug/pe"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/microsoft/go-winmd"
	"github.com/rs/zerolog"
)

// TypeAttributes, MethodAttributes and ParamAttributes bits (II.23.1).
const (
	typeVisibilityMask uint32 = 0x00000007
	typePublic         uint32 = 0x00000001
	typeInterface      uint32 = 0x00000020

	methodAccessMask  uint16 = 0x0007
	methodPublic      uint16 = 0x0006
	methodStatic      uint16 = 0x0010
	methodSpecialName uint16 = 0x0800

	paramOut uint16 = 0x0002
)

// Tags of the coded indexes used below (II.24.2.6).
const (
	typeDefOrRefTypeDef = 0
	typeDefOrRefTypeRef = 1

	resolutionScopeTypeRef = 3

	hasCustomAttributeMethodDef = 0

	customAttributeTypeMethodDef = 2
	customAttributeTypeMemberRef = 3

	memberRefParentTypeDef = 0
	memberRefParentTypeRef = 1
)

// TypeFinder locates type definitions outside of the library being read.
type TypeFinder interface {
	FindType(namespace string, name string) (*TypeInfo, bool)
}

// AssemblyReader reads a library's metadata without loading or running it.
type AssemblyReader struct {
	metadata winmd.Metadata
	path     string
	logger   zerolog.Logger
	finder   TypeFinder

	// Enclosing TypeDef of every nested TypeDef.
	enclosing map[winmd.Index]winmd.Index
	// Top-level TypeDefs keyed by namespace and name.
	topLevel map[string]winmd.Index
	// Declaring TypeDef of every MethodDef.
	methodOwners map[winmd.Index]winmd.Index
	// ObsoleteAttribute data keyed by the MethodDef it is applied to.
	obsolete  map[winmd.Index]*Obsolete
	typeInfos map[winmd.Index]*TypeInfo
}

// Generates a new metadata reader for the library under given path. The
// finder is consulted for base types defined in other assemblies and may be nil.
func NewReader(path string, logger zerolog.Logger, finder TypeFinder) (*AssemblyReader, error) {
	peFile, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open '%s': %w", path, err)
	}
	defer peFile.Close()

	metadata, err := winmd.New(peFile)
	if err != nil {
		return nil, fmt.Errorf("'%s' is not a .NET assembly: %w", path, err)
	}

	reader := &AssemblyReader{
		metadata:     *metadata,
		path:         path,
		logger:       logger.With().Str("assembly", filepath.Base(path)).Logger(),
		finder:       finder,
		enclosing:    make(map[winmd.Index]winmd.Index),
		topLevel:     make(map[string]winmd.Index),
		methodOwners: make(map[winmd.Index]winmd.Index),
		typeInfos:    make(map[winmd.Index]*TypeInfo),
	}

	if err := reader.readNestedClasses(); err != nil {
		return nil, err
	}
	if err := reader.readTypeDefs(); err != nil {
		return nil, err
	}
	if err := reader.readObsoleteAttributes(); err != nil {
		return nil, err
	}

	return reader, nil
}

// ReadLibrary describes every public top-level type of the library.
func (reader *AssemblyReader) ReadLibrary() (Library, error) {
	library := Library{
		Name: strings.TrimSuffix(filepath.Base(reader.path), filepath.Ext(reader.path)),
		Path: reader.path,
	}

	table := reader.metadata.Tables.TypeDef
	for idx := uint32(0); idx < table.Len; idx++ {
		typeDef, err := table.Record(winmd.Index(idx))
		if err != nil {
			return Library{}, fmt.Errorf("could not read type definition %d: %w", idx, err)
		}

		if uint32(typeDef.Flags)&typeVisibilityMask != typePublic {
			continue
		}

		info, err := reader.typeInfo(winmd.Index(idx))
		if err != nil {
			return Library{}, err
		}
		library.Types = append(library.Types, info)
	}

	return library, nil
}

// FindType returns the definition of the named top-level type if this
// assembly defines it.
func (reader *AssemblyReader) FindType(namespace string, name string) (*TypeInfo, bool) {
	idx, found := reader.findTypeDef(namespace, name)
	if !found {
		return nil, false
	}

	info, err := reader.typeInfo(idx)
	if err != nil {
		reader.logger.Debug().Err(err).Str("type", namespace+"."+name).Msg("Could not describe type")
		return nil, false
	}

	return info, true
}

func (reader *AssemblyReader) findTypeDef(namespace string, name string) (winmd.Index, bool) {
	idx, found := reader.topLevel[typeKey(namespace, name)]
	return idx, found
}

func typeKey(namespace string, name string) string {
	return namespace + "." + name
}

func (reader *AssemblyReader) typeInfo(idx winmd.Index) (*TypeInfo, error) {
	if info, found := reader.typeInfos[idx]; found {
		return info, nil
	}

	typeDef, err := reader.metadata.Tables.TypeDef.Record(idx)
	if err != nil {
		return nil, fmt.Errorf("could not read type definition %d: %w", idx, err)
	}

	typ, err := reader.typeDefType(idx)
	if err != nil {
		return nil, err
	}

	flags := uint32(typeDef.Flags)
	info := &TypeInfo{
		Type:        typ,
		IsPublic:    flags&typeVisibilityMask == typePublic,
		IsInterface: flags&typeInterface != 0,
	}
	// Registered before the base is resolved so malformed inheritance cycles terminate.
	reader.typeInfos[idx] = info

	info.Base, info.IsDelegate = reader.baseType(typeDef.Extends)

	for i := typeDef.MethodList.Start; i < typeDef.MethodList.End; i++ {
		methodDef, err := reader.metadata.Tables.MethodDef.Record(i)
		if err != nil {
			return nil, fmt.Errorf("could not read method definition %d: %w", i, err)
		}

		flags := uint16(methodDef.Flags)
		if flags&methodAccessMask != methodPublic || flags&methodStatic != 0 {
			continue
		}

		method, err := reader.getMethod(typ, i, methodDef)
		if err != nil {
			reader.logger.Debug().
				Err(err).
				Str("type", typ.FullName()).
				Str("method", methodDef.Name.String()).
				Msg("Skipping method with unsupported signature")
			continue
		}
		info.Methods = append(info.Methods, method)
	}

	return info, nil
}

// baseType resolves the Extends coded index of a type definition.
func (reader *AssemblyReader) baseType(extends winmd.CodedIndex) (*TypeInfo, bool) {
	switch extends.Tag {
	case typeDefOrRefTypeDef:
		info, err := reader.typeInfo(extends.Index)
		if err != nil {
			return nil, false
		}
		return info, info.Type.Is("System", "MulticastDelegate")

	case typeDefOrRefTypeRef:
		typ, err := reader.typeRefType(extends.Index)
		if err != nil {
			return nil, false
		}
		if typ.Is("System", "MulticastDelegate") {
			return nil, true
		}
		if typ.Is("System", "Object") || len(typ.Enclosing) > 0 {
			return nil, false
		}

		// A reference may point back into this assembly.
		if idx, found := reader.findTypeDef(typ.Namespace, typ.Name); found {
			if info, err := reader.typeInfo(idx); err == nil {
				return info, false
			}
		}

		if reader.finder != nil {
			if info, found := reader.finder.FindType(typ.Namespace, typ.Name); found {
				return info, false
			}
		}
		reader.logger.Debug().Str("type", typ.FullName()).Msg("Base type could not be resolved")
	}

	return nil, false
}

func (reader *AssemblyReader) getMethod(declaringType Type, idx winmd.Index, methodDef *winmd.MethodDef) (Method, error) {
	signature, err := decodeMethodSig([]byte(methodDef.Signature), reader)
	if err != nil {
		return Method{}, err
	}

	flags := uint16(methodDef.Flags)
	method := Method{
		DeclaringType: declaringType,
		Name:          methodDef.Name.String(),
		ReturnType:    signature.Return.Type,
		IsPublic:      flags&methodAccessMask == methodPublic,
		IsStatic:      flags&methodStatic != 0,
		IsSpecialName: flags&methodSpecialName != 0,
		IsGeneric:     signature.Generic,
		Obsolete:      reader.obsolete[idx],
		Params:        make([]Parameter, len(signature.Params)),
	}

	for i, param := range signature.Params {
		method.Params[i] = Parameter{
			Name:    fmt.Sprintf("arg%d", i),
			Type:    param.Type,
			IsByRef: param.ByRef,
		}
	}

	// Param rows are sparse: sequence 0 describes the return value and
	// parameters without names or flags may have no row at all.
	for i := methodDef.ParamList.Start; i < methodDef.ParamList.End; i++ {
		param, err := reader.metadata.Tables.Param.Record(i)
		if err != nil {
			return Method{}, fmt.Errorf("could not read parameter %d: %w", i, err)
		}

		sequence := int(param.Sequence)
		if sequence == 0 || sequence > len(method.Params) {
			continue
		}

		target := &method.Params[sequence-1]
		if name := param.Name.String(); name != "" {
			target.Name = name
		}
		target.IsOut = uint16(param.Flags)&paramOut != 0 && target.IsByRef
	}

	return method, nil
}

func (reader *AssemblyReader) resolveTypeDefOrRef(tag uint32, row uint32) (Type, error) {
	if row == 0 {
		return Type{}, fmt.Errorf("null type reference")
	}

	switch tag {
	case typeDefOrRefTypeDef:
		return reader.typeDefType(winmd.Index(row - 1))
	case typeDefOrRefTypeRef:
		return reader.typeRefType(winmd.Index(row - 1))
	}

	return Type{}, fmt.Errorf("type specification %d is not supported here", row)
}

func (reader *AssemblyReader) typeDefType(idx winmd.Index) (Type, error) {
	typeDef, err := reader.metadata.Tables.TypeDef.Record(idx)
	if err != nil {
		return Type{}, fmt.Errorf("did not found matching type definition: %w", err)
	}

	typ := Type{Namespace: typeDef.Namespace.String(), Name: typeDef.Name.String()}
	if outerIdx, nested := reader.enclosing[idx]; nested {
		outer, err := reader.typeDefType(outerIdx)
		if err != nil {
			return Type{}, err
		}
		typ.Namespace = outer.Namespace
		typ.Enclosing = append(append([]string{}, outer.Enclosing...), outer.Name)
	}

	return typ, nil
}

func (reader *AssemblyReader) typeRefType(idx winmd.Index) (Type, error) {
	typeRef, err := reader.metadata.Tables.TypeRef.Record(idx)
	if err != nil {
		return Type{}, fmt.Errorf("did not found matching type reference: %w", err)
	}

	typ := Type{Namespace: typeRef.Namespace.String(), Name: typeRef.Name.String()}
	if typeRef.ResolutionScope.Tag == resolutionScopeTypeRef {
		outer, err := reader.typeRefType(typeRef.ResolutionScope.Index)
		if err != nil {
			return Type{}, err
		}
		typ.Namespace = outer.Namespace
		typ.Enclosing = append(append([]string{}, outer.Enclosing...), outer.Name)
	}

	return typ, nil
}

func (reader *AssemblyReader) readNestedClasses() error {
	table := reader.metadata.Tables.NestedClass
	for idx := uint32(0); idx < table.Len; idx++ {
		nestedClass, err := table.Record(winmd.Index(idx))
		if err != nil {
			return fmt.Errorf("could not read nested class %d: %w", idx, err)
		}
		reader.enclosing[nestedClass.NestedClass] = nestedClass.EnclosingClass
	}

	return nil
}

// readTypeDefs indexes the top-level TypeDefs by name and every MethodDef by
// its declaring TypeDef. Must run after readNestedClasses.
func (reader *AssemblyReader) readTypeDefs() error {
	table := reader.metadata.Tables.TypeDef
	for idx := uint32(0); idx < table.Len; idx++ {
		typeDef, err := table.Record(winmd.Index(idx))
		if err != nil {
			return fmt.Errorf("could not read type definition %d: %w", idx, err)
		}

		for i := typeDef.MethodList.Start; i < typeDef.MethodList.End; i++ {
			reader.methodOwners[i] = winmd.Index(idx)
		}

		if _, nested := reader.enclosing[winmd.Index(idx)]; nested {
			continue
		}
		key := typeKey(typeDef.Namespace.String(), typeDef.Name.String())
		if _, duplicate := reader.topLevel[key]; !duplicate {
			reader.topLevel[key] = winmd.Index(idx)
		}
	}

	return nil
}

func (reader *AssemblyReader) readObsoleteAttributes() error {
	reader.obsolete = make(map[winmd.Index]*Obsolete)

	table := reader.metadata.Tables.CustomAttribute
	for idx := uint32(0); idx < table.Len; idx++ {
		attribute, err := table.Record(winmd.Index(idx))
		if err != nil {
			return fmt.Errorf("could not read custom attribute %d: %w", idx, err)
		}

		if attribute.Parent.Tag != hasCustomAttributeMethodDef {
			continue
		}

		attributeType, constructor, found := reader.attributeConstructor(attribute.Type)
		if !found || !attributeType.Is("System", "ObsoleteAttribute") {
			continue
		}

		// Only the constructor tells whether the value starts with a message.
		fixedArgs, err := decodeParamCount(constructor)
		if err != nil {
			reader.logger.Debug().Err(err).Msg("Malformed ObsoleteAttribute constructor")
		}
		message, err := decodeObsoleteMessage(attribute.Value, fixedArgs)
		if err != nil {
			reader.logger.Debug().Err(err).Msg("Malformed ObsoleteAttribute value")
		}
		reader.obsolete[attribute.Parent.Index] = &Obsolete{Message: message}
	}

	return nil
}

// attributeConstructor resolves the type declaring a custom attribute's
// constructor and returns the constructor's signature blob.
func (reader *AssemblyReader) attributeConstructor(constructor winmd.CodedIndex) (Type, []byte, bool) {
	switch constructor.Tag {
	case customAttributeTypeMemberRef:
		memberRef, err := reader.metadata.Tables.MemberRef.Record(constructor.Index)
		if err != nil {
			return Type{}, nil, false
		}
		var typ Type
		switch memberRef.Class.Tag {
		case memberRefParentTypeRef:
			typ, err = reader.typeRefType(memberRef.Class.Index)
		case memberRefParentTypeDef:
			typ, err = reader.typeDefType(memberRef.Class.Index)
		default:
			return Type{}, nil, false
		}
		return typ, memberRef.Signature, err == nil

	case customAttributeTypeMethodDef:
		// A library that defines its own System.ObsoleteAttribute, e.g. a core library.
		owner, found := reader.methodOwners[constructor.Index]
		if !found {
			return Type{}, nil, false
		}
		methodDef, err := reader.metadata.Tables.MethodDef.Record(constructor.Index)
		if err != nil {
			return Type{}, nil, false
		}
		typ, err := reader.typeDefType(owner)
		return typ, []byte(methodDef.Signature), err == nil
	}

	return Type{}, nil, false
}
