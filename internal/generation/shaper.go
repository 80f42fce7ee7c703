package generation

import (
	"strconv"

	"asyncgen/internal/csharp"
)

const (
	sourceParameterName = "source"

	// Begin methods with more parameters than this are invoked explicitly:
	// FromAsync has no overload forwarding that many arguments.
	maxFactoryParamCount = 5
)

// shape holds the names chosen for one wrapper. Locals and the receiver are
// renamed when they would collide with a forwarded parameter.
type shape struct {
	pairing        Pairing
	receiver       string
	callbackParam  string
	resultVariable string
	resultTypeName string
	temporaries    map[string]string
}

func newShape(pairing Pairing) *shape {
	taken := make(map[string]bool)
	for _, param := range pairing.ForwardedParams() {
		taken[param.Name] = true
	}

	s := &shape{
		pairing:     pairing,
		receiver:    uniqueName(sourceParameterName, taken),
		temporaries: make(map[string]string),
	}

	if outParams := pairing.OutParams(); len(outParams) > 0 {
		s.resultTypeName = pairing.Begin.DeclaringType.ShortName() + pairing.BaseName + "Result"
		s.callbackParam = uniqueName("ar", taken)
		s.resultVariable = uniqueName("result", taken)
		for _, param := range outParams {
			s.temporaries[param.Name] = uniqueName(param.Name+"Tmp", taken)
		}
	}

	return s
}

func (s *shape) hasResultType() bool {
	return s.resultTypeName != ""
}

// wrapper builds the extension method declaration and body.
func (s *shape) wrapper() *csharp.Method {
	begin := s.pairing.Begin

	var method *csharp.Method
	if s.hasResultType() {
		method = csharp.NewMethod(s.pairing.BaseName+"Async", taskTypeName(s.resultTypeName), "public", "static", "async")
	} else {
		method = csharp.NewMethod(s.pairing.BaseName+"Async", s.factoryType(), "public", "static")
	}

	method.ThisParam(typeName(begin.DeclaringType), s.receiver)
	for _, param := range s.pairing.ForwardedParams() {
		method.Param(typeName(param.Type), csharp.Identifier(param.Name))
	}

	method.Add(s.nullCheck())
	if s.hasResultType() {
		s.addResultBody(method)
	} else {
		s.addTaskBody(method)
	}

	return method
}

// factoryType is the task type whose Factory creates the wrapped task.
func (s *shape) factoryType() string {
	if s.hasResultType() {
		return taskTypeName("")
	}
	return taskTypeName(typeName(s.pairing.End.ReturnType))
}

func (s *shape) nullCheck() *csharp.Statement {
	return csharp.If(
		csharp.Id(s.receiver).Op("==").Null(),
		csharp.Throw().New().Id("ArgumentNullException").Call(csharp.Lit(s.receiver)),
	)
}

func (s *shape) fromAsync() *csharp.Statement {
	return csharp.Id(s.factoryType()).Dot("Factory").Dot("FromAsync")
}

func (s *shape) forwardedArgs() []csharp.Code {
	args := make([]csharp.Code, 0)
	for _, param := range s.pairing.ForwardedParams() {
		args = append(args, csharp.Id(csharp.Identifier(param.Name)))
	}
	return args
}

// beginInvocation calls the Begin method with null callback and state.
func (s *shape) beginInvocation() *csharp.Statement {
	args := append(s.forwardedArgs(), csharp.Null(), csharp.Null())
	return csharp.Id(s.receiver).Dot(s.pairing.Begin.Name).Call(args...)
}

func (s *shape) addTaskBody(method *csharp.Method) {
	endReference := csharp.Id(s.receiver).Dot(s.pairing.End.Name)

	var args []csharp.Code
	if len(s.pairing.Begin.Params) > maxFactoryParamCount {
		args = []csharp.Code{s.beginInvocation(), endReference}
	} else {
		args = []csharp.Code{csharp.Id(s.receiver).Dot(s.pairing.Begin.Name), endReference}
		args = append(args, s.forwardedArgs()...)
		args = append(args, csharp.Null())
	}

	method.Add(csharp.Return().Add(s.fromAsync().Call(args...)))
}

func (s *shape) addResultBody(method *csharp.Method) {
	outParams := s.pairing.OutParams()

	for _, param := range outParams {
		paramType := typeName(param.Type)
		method.Add(csharp.Id(paramType).Id(s.temporaries[param.Name]).Op("=").Add(csharp.DefaultOf(paramType)))
	}

	endArgs := make([]csharp.Code, 0, len(s.pairing.End.Params))
	for _, param := range s.pairing.End.Params {
		if param.IsOut {
			endArgs = append(endArgs, csharp.Out().Id(s.temporaries[param.Name]))
		} else {
			endArgs = append(endArgs, csharp.Id(s.callbackParam))
		}
	}
	endCall := csharp.Lambda(s.callbackParam, csharp.Id(s.receiver).Dot(s.pairing.End.Name).Call(endArgs...))

	method.Add(csharp.Await().
		Add(s.fromAsync().Call(s.beginInvocation(), endCall)).
		Dot("ConfigureAwait").Call(csharp.Lit(false)))

	method.Add(csharp.Id(s.resultTypeName).Id(s.resultVariable).Op("=").New().Id(s.resultTypeName).Call())
	for _, param := range outParams {
		method.Add(csharp.Id(s.resultVariable).Dot(csharp.Identifier(param.Name)).Op("=").Id(s.temporaries[param.Name]))
	}
	method.Add(csharp.Return().Id(s.resultVariable))
}

// uniqueName returns name, or name with a numeric suffix when it is taken,
// and marks the result as taken.
func uniqueName(name string, taken map[string]bool) string {
	candidate := name
	for i := 1; taken[candidate]; i++ {
		candidate = name + strconv.Itoa(i)
	}
	taken[candidate] = true
	return candidate
}
