package metadata

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Element types of ECMA-335 II.23.1.16.
const (
	elementVoid        byte = 0x01
	elementBoolean     byte = 0x02
	elementChar        byte = 0x03
	elementI1          byte = 0x04
	elementU1          byte = 0x05
	elementI2          byte = 0x06
	elementU2          byte = 0x07
	elementI4          byte = 0x08
	elementU4          byte = 0x09
	elementI8          byte = 0x0a
	elementU8          byte = 0x0b
	elementR4          byte = 0x0c
	elementR8          byte = 0x0d
	elementString      byte = 0x0e
	elementPtr         byte = 0x0f
	elementByRef       byte = 0x10
	elementValueType   byte = 0x11
	elementClass       byte = 0x12
	elementVar         byte = 0x13
	elementArray       byte = 0x14
	elementGenericInst byte = 0x15
	elementTypedByRef  byte = 0x16
	elementI           byte = 0x18
	elementU           byte = 0x19
	elementFnPtr       byte = 0x1b
	elementObject      byte = 0x1c
	elementSzArray     byte = 0x1d
	elementMVar        byte = 0x1e
	elementCModReqd    byte = 0x1f
	elementCModOpt     byte = 0x20
	elementSentinel    byte = 0x41
	elementPinned      byte = 0x45
)

// Calling convention bits of a MethodDefSig.
const (
	sigGeneric byte = 0x10
	sigHasThis byte = 0x20
)

// The map of signature element types to the CLR types they stand for.
var builtInElementTypes = map[byte]string{
	elementBoolean:    "Boolean",
	elementChar:       "Char",
	elementString:     "String",
	elementI1:         "SByte",
	elementI2:         "Int16",
	elementI4:         "Int32",
	elementI8:         "Int64",
	elementU1:         "Byte",
	elementU2:         "UInt16",
	elementU4:         "UInt32",
	elementU8:         "UInt64",
	elementR4:         "Single",
	elementR8:         "Double",
	elementI:          "IntPtr",
	elementU:          "UIntPtr",
	elementObject:     "Object",
	elementTypedByRef: "TypedReference",
}

var errTruncated = errors.New("signature blob is truncated")

// typeResolver turns a TypeDefOrRef coded index (II.23.2.8) into a Type.
type typeResolver interface {
	resolveTypeDefOrRef(tag uint32, row uint32) (Type, error)
}

type sigParam struct {
	Type  Type
	ByRef bool
}

type methodSig struct {
	HasThis bool
	Generic bool
	Return  sigParam
	Params  []sigParam
}

type sigReader struct {
	data     []byte
	pos      int
	resolver typeResolver
}

// decodeMethodSig decodes a MethodDefSig blob (II.23.2.1).
func decodeMethodSig(blob []byte, resolver typeResolver) (methodSig, error) {
	reader := &sigReader{data: blob, resolver: resolver}

	callingConvention, err := reader.byte()
	if err != nil {
		return methodSig{}, err
	}

	sig := methodSig{
		HasThis: callingConvention&sigHasThis != 0,
		Generic: callingConvention&sigGeneric != 0,
	}
	if sig.Generic {
		if _, err := reader.compressed(); err != nil {
			return methodSig{}, err
		}
	}

	paramCount, err := reader.compressed()
	if err != nil {
		return methodSig{}, err
	}

	sig.Return, err = reader.param()
	if err != nil {
		return methodSig{}, fmt.Errorf("could not decode return type: %w", err)
	}

	for i := uint32(0); i < paramCount; i++ {
		param, err := reader.param()
		if err != nil {
			return methodSig{}, fmt.Errorf("could not decode parameter %d: %w", i, err)
		}
		sig.Params = append(sig.Params, param)
	}

	return sig, nil
}

func (reader *sigReader) byte() (byte, error) {
	if reader.pos >= len(reader.data) {
		return 0, errTruncated
	}
	b := reader.data[reader.pos]
	reader.pos++
	return b, nil
}

func (reader *sigReader) peek() (byte, error) {
	if reader.pos >= len(reader.data) {
		return 0, errTruncated
	}
	return reader.data[reader.pos], nil
}

// compressed reads a compressed unsigned integer (II.23.2).
func (reader *sigReader) compressed() (uint32, error) {
	value, size, err := decodeCompressed(reader.data[reader.pos:])
	if err != nil {
		return 0, err
	}
	reader.pos += size
	return value, nil
}

func (reader *sigReader) skipCustomMods() error {
	for {
		b, err := reader.peek()
		if err != nil {
			return err
		}
		if b != elementCModOpt && b != elementCModReqd {
			return nil
		}
		reader.pos++
		if _, err := reader.compressed(); err != nil {
			return err
		}
	}
}

func (reader *sigReader) param() (sigParam, error) {
	if err := reader.skipCustomMods(); err != nil {
		return sigParam{}, err
	}

	b, err := reader.peek()
	if err != nil {
		return sigParam{}, err
	}
	if b == elementSentinel {
		reader.pos++
	}

	var param sigParam
	if b, _ = reader.peek(); b == elementByRef {
		reader.pos++
		param.ByRef = true
	}

	param.Type, err = reader.typ()
	return param, err
}

func (reader *sigReader) typeDefOrRef() (Type, error) {
	coded, err := reader.compressed()
	if err != nil {
		return Type{}, err
	}
	if reader.resolver == nil {
		return Type{}, errors.New("no type resolver")
	}
	return reader.resolver.resolveTypeDefOrRef(coded&0x3, coded>>2)
}

func (reader *sigReader) typ() (Type, error) {
	if err := reader.skipCustomMods(); err != nil {
		return Type{}, err
	}

	kind, err := reader.byte()
	if err != nil {
		return Type{}, err
	}

	if name, found := builtInElementTypes[kind]; found {
		return Type{Namespace: "System", Name: name, IsBuiltIn: true}, nil
	}

	switch kind {
	case elementVoid:
		return Type{Namespace: "System", Name: "Void", IsVoid: true, IsBuiltIn: true}, nil

	case elementPinned:
		return reader.typ()

	case elementClass, elementValueType:
		return reader.typeDefOrRef()

	case elementPtr:
		elem, err := reader.typ()
		if err != nil {
			return Type{}, err
		}
		return Type{Elem: &elem, IsPointer: true}, nil

	case elementByRef:
		// Only legal at the top of a parameter, which param() strips.
		return reader.typ()

	case elementSzArray:
		elem, err := reader.typ()
		if err != nil {
			return Type{}, err
		}
		return Type{Elem: &elem, IsArray: true, Rank: 1}, nil

	case elementArray:
		return reader.array()

	case elementVar, elementMVar:
		number, err := reader.compressed()
		if err != nil {
			return Type{}, err
		}
		prefix := "`"
		if kind == elementMVar {
			prefix = "``"
		}
		return Type{GenericParam: fmt.Sprintf("%s%d", prefix, number)}, nil

	case elementGenericInst:
		if _, err := reader.byte(); err != nil {
			return Type{}, err
		}
		definition, err := reader.typeDefOrRef()
		if err != nil {
			return Type{}, err
		}
		count, err := reader.compressed()
		if err != nil {
			return Type{}, err
		}
		for i := uint32(0); i < count; i++ {
			arg, err := reader.typ()
			if err != nil {
				return Type{}, err
			}
			definition.TypeArgs = append(definition.TypeArgs, arg)
		}
		return definition, nil
	}

	return Type{}, fmt.Errorf("unsupported element type 0x%02x", kind)
}

// array reads the remainder of a general ARRAY shape (II.23.2.13).
func (reader *sigReader) array() (Type, error) {
	elem, err := reader.typ()
	if err != nil {
		return Type{}, err
	}

	rank, err := reader.compressed()
	if err != nil {
		return Type{}, err
	}

	// NumSizes Size*, then NumLoBounds LoBound*.
	for pass := 0; pass < 2; pass++ {
		count, err := reader.compressed()
		if err != nil {
			return Type{}, err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := reader.compressed(); err != nil {
				return Type{}, err
			}
		}
	}

	return Type{Elem: &elem, IsArray: true, Rank: int(rank)}, nil
}

// decodeCompressed decodes a compressed unsigned integer and reports how many
// bytes it occupied.
func decodeCompressed(data []byte) (uint32, int, error) {
	if len(data) == 0 {
		return 0, 0, errTruncated
	}

	b0 := data[0]
	switch {
	case b0&0x80 == 0:
		return uint32(b0), 1, nil
	case b0&0xC0 == 0x80:
		if len(data) < 2 {
			return 0, 0, errTruncated
		}
		return uint32(b0&0x3F)<<8 | uint32(data[1]), 2, nil
	case b0&0xE0 == 0xC0:
		if len(data) < 4 {
			return 0, 0, errTruncated
		}
		return uint32(b0&0x1F)<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]), 4, nil
	}

	return 0, 0, fmt.Errorf("invalid compressed integer lead byte 0x%02x", b0)
}

// decodeParamCount reads the parameter count of a MethodDefSig or MethodRefSig.
func decodeParamCount(blob []byte) (int, error) {
	reader := &sigReader{data: blob}

	callingConvention, err := reader.byte()
	if err != nil {
		return 0, err
	}
	if callingConvention&sigGeneric != 0 {
		if _, err := reader.compressed(); err != nil {
			return 0, err
		}
	}

	count, err := reader.compressed()
	return int(count), err
}

// decodeObsoleteMessage reads the message of an ObsoleteAttribute blob
// (II.23.3). fixedArgs is the parameter count of the constructor applied; the
// parameterless one yields an empty message whatever named arguments follow.
func decodeObsoleteMessage(blob []byte, fixedArgs int) (string, error) {
	if len(blob) < 2 || blob[0] != 0x01 || blob[1] != 0x00 {
		return "", errors.New("custom attribute blob has no prolog")
	}
	if fixedArgs == 0 {
		return "", nil
	}

	rest := blob[2:]
	if len(rest) > 0 && rest[0] == 0xFF {
		return "", nil
	}

	length, size, err := decodeCompressed(rest)
	if err != nil {
		return "", err
	}
	rest = rest[size:]
	if uint32(len(rest)) < length {
		return "", errTruncated
	}

	message := rest[:length]
	if !utf8.Valid(message) {
		return "", errors.New("obsolete message is not valid UTF-8")
	}
	return string(message), nil
}
