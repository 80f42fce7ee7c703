package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func systemType(name string) Type {
	return Type{Namespace: "System", Name: name, IsBuiltIn: true}
}

func TestType_DocName(t *testing.T) {
	int32Type := systemType("Int32")
	stringType := systemType("String")

	tests := []struct {
		name     string
		typ      Type
		expected string
	}{
		{name: "simple", typ: stringType, expected: "System.String"},
		{name: "nested", typ: Type{Namespace: "Contoso", Enclosing: []string{"Client"}, Name: "Options"}, expected: "Contoso.Client.Options"},
		{name: "array", typ: Type{Elem: &int32Type, IsArray: true, Rank: 1}, expected: "System.Int32[]"},
		{name: "multi-dimensional array", typ: Type{Elem: &int32Type, IsArray: true, Rank: 3}, expected: "System.Int32[0:,0:,0:]"},
		{name: "pointer", typ: Type{Elem: &int32Type, IsPointer: true}, expected: "System.Int32*"},
		{name: "type parameter", typ: Type{GenericParam: "`0"}, expected: "`0"},
		{
			name: "generic instance",
			typ: Type{
				Namespace: "System.Collections.Generic",
				Name:      "Dictionary`2",
				TypeArgs:  []Type{stringType, int32Type},
			},
			expected: "System.Collections.Generic.Dictionary{System.String,System.Int32}",
		},
		{
			name: "nested in generic",
			typ: Type{
				Namespace: "Contoso",
				Enclosing: []string{"Cache`1"},
				Name:      "Entry`1",
				TypeArgs:  []Type{stringType},
			},
			expected: "Contoso.Cache`1.Entry{System.String}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.typ.DocName())
		})
	}
}

func TestType_Names(t *testing.T) {
	nested := Type{Namespace: "Contoso", Enclosing: []string{"Outer"}, Name: "Inner`1"}

	assert.Equal(t, "Contoso.Outer.Inner`1", nested.FullName())
	assert.Equal(t, "Inner", nested.ShortName())
	assert.True(t, nested.IsGenericDefinition())
	assert.False(t, nested.Is("Contoso", "Inner`1"))

	assert.Equal(t, "Client", Type{Name: "Client"}.FullName())
	assert.True(t, systemType("IAsyncResult").Is("System", "IAsyncResult"))
}

func TestType_IsOpen(t *testing.T) {
	param := Type{GenericParam: "`0"}
	closed := Type{Namespace: "System.Collections.Generic", Name: "List`1", TypeArgs: []Type{systemType("String")}}
	open := Type{Namespace: "System.Collections.Generic", Name: "List`1", TypeArgs: []Type{param}}

	assert.True(t, param.IsOpen())
	assert.False(t, closed.IsOpen())
	assert.True(t, open.IsOpen())
	assert.True(t, Type{Elem: &open, IsArray: true, Rank: 1}.IsOpen())
}

func TestTypeInfo_FindMethod(t *testing.T) {
	base := &TypeInfo{
		Type: Type{Namespace: "Contoso", Name: "ClientBase"},
		Methods: []Method{
			{Name: "EndSend", ReturnType: systemType("Int32")},
			{Name: "EndClose"},
		},
	}
	derived := &TypeInfo{
		Type: Type{Namespace: "Contoso", Name: "Client"},
		Methods: []Method{
			{Name: "EndClose", ReturnType: systemType("Boolean")},
		},
		Base: base,
	}

	method, found := derived.FindMethod("EndSend")
	assert.True(t, found)
	assert.Equal(t, "Int32", method.ReturnType.Name)

	method, found = derived.FindMethod("EndClose")
	assert.True(t, found)
	assert.Equal(t, "Boolean", method.ReturnType.Name)

	_, found = derived.FindMethod("EndReceive")
	assert.False(t, found)
}

func TestTypeInfo_FindMethodInheritanceCycle(t *testing.T) {
	first := &TypeInfo{Type: Type{Namespace: "Contoso", Name: "First"}}
	second := &TypeInfo{
		Type:    Type{Namespace: "Contoso", Name: "Second"},
		Methods: []Method{{Name: "EndClose"}},
		Base:    first,
	}
	first.Base = second

	_, found := first.FindMethod("EndClose")
	assert.True(t, found)

	_, found = first.FindMethod("EndReceive")
	assert.False(t, found)
}
