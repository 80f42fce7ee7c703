package generation

import (
	"fmt"

	"asyncgen/internal/csharp"
	"asyncgen/internal/metadata"

	"github.com/rs/zerolog"
)

// Documenter attaches documentation comments of a Begin/End pair to the
// wrapper generated for it.
type Documenter interface {
	WriteDocs(wrapper *csharp.Method, receiver string, begin metadata.Method, end metadata.Method)
}

// Generator collects task wrappers into a single C# file holding one static
// extension class and the result classes the wrappers return.
type Generator struct {
	File        *csharp.File
	Class       *csharp.Class
	Documenter  Documenter
	Methods     int
	resultTypes map[string]bool
	logger      zerolog.Logger
}

// NewGenerator creates the output model. The documenter may be nil, in which
// case wrappers carry no documentation.
func NewGenerator(namespaceName string, className string, toolVersion string, documenter Documenter, logger zerolog.Logger) *Generator {
	if namespaceName == "" || className == "" {
		panic("generation: namespace and class names are required")
	}

	file := csharp.NewFile(namespaceName).
		Comment("The file was created by asyncgen.").
		Comment("Version " + toolVersion).
		Using("System").
		Using("System.Diagnostics").
		Using("System.Threading.Tasks")

	class := file.Class(className, "public", "static").
		Attribute(csharp.Id("DebuggerStepThrough"))

	return &Generator{
		File:        file,
		Class:       class,
		Documenter:  documenter,
		resultTypes: make(map[string]bool),
		logger:      logger,
	}
}

// RegisterLibrary adds a wrapper for every Begin/End pair of the library and
// returns how many were added.
func (generator *Generator) RegisterLibrary(library metadata.Library) int {
	pairings := DiscoverPairings(library, generator.logger)
	for _, pairing := range pairings {
		generator.RegisterPairing(pairing)
	}
	return len(pairings)
}

// RegisterPairing shapes the wrapper of one pair and appends it to the class.
func (generator *Generator) RegisterPairing(pairing Pairing) {
	shape := newShape(pairing)
	wrapper := shape.wrapper()

	if generator.Documenter != nil {
		generator.Documenter.WriteDocs(wrapper, shape.receiver, pairing.Begin, pairing.End)
	}
	if obsolete := pairing.Begin.Obsolete; obsolete != nil {
		wrapper.Attribute(obsoleteAttribute(obsolete.Message))
	}

	if shape.hasResultType() {
		generator.registerResultType(shape)
	}

	generator.Class.Method(wrapper)
	generator.Methods++

	generator.logger.Debug().
		Str("type", pairing.Begin.DeclaringType.FullName()).
		Str("method", wrapper.Name).
		Msg("Generated wrapper")
}

// Generate writes the collected code to the file under given path.
func (generator *Generator) Generate(path string) error {
	if err := generator.File.Save(path); err != nil {
		return fmt.Errorf("could not generate '%s': %w", path, err)
	}
	return nil
}

// registerResultType declares the result class once per name; later pairs
// asking for the same name reuse the first declaration.
func (generator *Generator) registerResultType(shape *shape) {
	if generator.resultTypes[shape.resultTypeName] {
		return
	}
	generator.resultTypes[shape.resultTypeName] = true

	resultType := generator.File.Class(shape.resultTypeName, "public")
	for _, param := range shape.pairing.OutParams() {
		resultType.Property(typeName(param.Type), csharp.Identifier(param.Name))
	}
}

func obsoleteAttribute(message string) *csharp.Statement {
	if message == "" {
		return csharp.Id("Obsolete")
	}
	return csharp.Id("Obsolete").Call(csharp.Lit(message))
}
