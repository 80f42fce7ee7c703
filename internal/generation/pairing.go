package generation

import (
	"sort"
	"strings"

	"asyncgen/internal/metadata"

	"github.com/rs/zerolog"
)

const (
	beginPrefix = "Begin"
	endPrefix   = "End"

	// The callback and state parameters closing every Begin method.
	trailingParamCount = 2
)

// Pairing associates a Begin method with the End method completing it.
type Pairing struct {
	BaseName string
	Begin    metadata.Method
	End      metadata.Method
}

type candidate struct {
	declaringType *metadata.TypeInfo
	begin         metadata.Method
}

// ForwardedParams are the Begin parameters a wrapper exposes: all of them but
// the trailing callback and state.
func (pairing Pairing) ForwardedParams() []metadata.Parameter {
	return pairing.Begin.Params[:len(pairing.Begin.Params)-trailingParamCount]
}

// OutParams are the End parameters that make up the wrapper's result type.
func (pairing Pairing) OutParams() []metadata.Parameter {
	outParams := make([]metadata.Parameter, 0)
	for _, param := range pairing.End.Params {
		if param.IsOut {
			outParams = append(outParams, param)
		}
	}
	return outParams
}

// DiscoverPairings finds every Begin/End pair of the library's public types,
// ordered by type name and then Begin method name.
func DiscoverPairings(library metadata.Library, logger zerolog.Logger) []Pairing {
	candidates := make([]candidate, 0)
	for _, info := range library.Types {
		if !info.IsPublic || info.IsDelegate {
			continue
		}
		if info.Type.IsGenericDefinition() {
			logger.Debug().Str("type", info.Type.FullName()).Msg("Skipping generic type")
			continue
		}

		for _, method := range info.Methods {
			if isBeginMethod(method) {
				candidates = append(candidates, candidate{declaringType: info, begin: method})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		left, right := candidates[i], candidates[j]
		if l, r := left.declaringType.Type.ShortName(), right.declaringType.Type.ShortName(); l != r {
			return l < r
		}
		if left.begin.Name != right.begin.Name {
			return left.begin.Name < right.begin.Name
		}
		return left.declaringType.Type.FullName() < right.declaringType.Type.FullName()
	})

	pairings := make([]Pairing, 0, len(candidates))
	for _, entry := range candidates {
		baseName := strings.TrimPrefix(entry.begin.Name, beginPrefix)
		end, found := entry.declaringType.FindMethod(endPrefix + baseName)
		if !found {
			logger.Debug().
				Str("type", entry.declaringType.Type.FullName()).
				Str("method", entry.begin.Name).
				Msg("No matching End method")
			continue
		}

		pairing := Pairing{BaseName: baseName, Begin: entry.begin, End: end}
		if reason := unsupportedReason(pairing); reason != "" {
			logger.Debug().
				Str("type", entry.declaringType.Type.FullName()).
				Str("method", entry.begin.Name).
				Str("reason", reason).
				Msg("Skipping pair")
			continue
		}

		pairings = append(pairings, pairing)
	}

	return pairings
}

func isBeginMethod(method metadata.Method) bool {
	return method.IsPublic &&
		!method.IsStatic &&
		!method.IsSpecialName &&
		len(method.Name) > len(beginPrefix) &&
		strings.HasPrefix(method.Name, beginPrefix) &&
		method.ReturnType.Is("System", "IAsyncResult") &&
		len(method.Params) >= trailingParamCount
}

// unsupportedReason explains why a pair cannot be expressed as a task
// wrapper, or returns an empty string.
func unsupportedReason(pairing Pairing) string {
	if pairing.Begin.IsGeneric || pairing.End.IsGeneric {
		return "generic method"
	}

	for _, param := range pairing.ForwardedParams() {
		if param.IsByRef {
			return "by-reference parameter " + param.Name
		}
		if !isExpressible(param.Type) {
			return "parameter type of " + param.Name
		}
	}

	if !isExpressible(pairing.End.ReturnType) {
		return "return type"
	}
	for _, param := range pairing.End.Params {
		if !isExpressible(param.Type) {
			return "parameter type of " + param.Name
		}
	}

	return ""
}

// isExpressible reports whether a type can appear in an async method signature.
func isExpressible(t metadata.Type) bool {
	if t.IsOpen() || t.IsPointer {
		return false
	}
	if t.Elem != nil {
		return isExpressible(*t.Elem)
	}
	return true
}
