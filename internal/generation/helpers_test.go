package generation

import (
	"asyncgen/internal/metadata"
)

var (
	iAsyncResultType  = metadata.Type{Namespace: "System", Name: "IAsyncResult"}
	asyncCallbackType = metadata.Type{Namespace: "System", Name: "AsyncCallback"}
	objectType        = builtIn("Object")
	voidType          = metadata.Type{Namespace: "System", Name: "Void", IsVoid: true, IsBuiltIn: true}
	intType           = builtIn("Int32")
	stringType        = builtIn("String")
)

func builtIn(name string) metadata.Type {
	return metadata.Type{Namespace: "System", Name: name, IsBuiltIn: true}
}

func param(name string, typ metadata.Type) metadata.Parameter {
	return metadata.Parameter{Name: name, Type: typ}
}

func outParam(name string, typ metadata.Type) metadata.Parameter {
	return metadata.Parameter{Name: name, Type: typ, IsOut: true, IsByRef: true}
}

// beginMethod declares "IAsyncResult name(params..., AsyncCallback callback, object state)".
// The declaring type is set by publicType.
func beginMethod(name string, params ...metadata.Parameter) metadata.Method {
	params = append(params, param("callback", asyncCallbackType), param("state", objectType))
	return metadata.Method{
		Name:       name,
		Params:     params,
		ReturnType: iAsyncResultType,
		IsPublic:   true,
	}
}

// endMethod declares "returnType name(IAsyncResult asyncResult, params...)".
func endMethod(name string, returnType metadata.Type, params ...metadata.Parameter) metadata.Method {
	return metadata.Method{
		Name:       name,
		Params:     append([]metadata.Parameter{param("asyncResult", iAsyncResultType)}, params...),
		ReturnType: returnType,
		IsPublic:   true,
	}
}

func publicType(namespace string, name string, methods ...metadata.Method) *metadata.TypeInfo {
	typ := metadata.Type{Namespace: namespace, Name: name}
	for i := range methods {
		methods[i].DeclaringType = typ
	}
	return &metadata.TypeInfo{Type: typ, IsPublic: true, Methods: methods}
}

func library(types ...*metadata.TypeInfo) metadata.Library {
	return metadata.Library{Name: "Contoso", Path: "Contoso.dll", Types: types}
}
