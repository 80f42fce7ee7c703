package generation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"asyncgen/internal/csharp"
	"asyncgen/internal/metadata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(documenter Documenter) *Generator {
	return NewGenerator("Contoso.Extensions", "AsyncExtensions", "1.0", documenter, zerolog.Nop())
}

func TestGenerator_PingRoundTrip(t *testing.T) {
	generator := newTestGenerator(nil)
	count := generator.RegisterLibrary(library(
		publicType("", "Svc",
			beginMethod("BeginPing"),
			endMethod("EndPing", voidType),
		),
	))
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, generator.Methods)

	expected := `// The file was created by asyncgen.
// Version 1.0
using System;
using System.Diagnostics;
using System.Threading.Tasks;

namespace Contoso.Extensions
{
    [DebuggerStepThrough]
    public static class AsyncExtensions
    {
        public static Task PingAsync(this Svc source)
        {
            if (source == null)
            {
                throw new ArgumentNullException("source");
            }
            return Task.Factory.FromAsync(source.BeginPing, source.EndPing, null);
        }
    }
}
`
	assert.Equal(t, expected, generator.File.GoString())

	path := filepath.Join(t.TempDir(), "Svc.AsyncExtensions.cs")
	require.NoError(t, generator.Generate(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, expected, string(content))
}

func TestGenerator_ReturnValueAndArguments(t *testing.T) {
	generator := newTestGenerator(nil)
	generator.RegisterLibrary(library(
		publicType("Contoso", "Client",
			beginMethod("BeginSend", param("buffer", metadata.Type{Elem: &intType, IsArray: true, Rank: 1}), param("event", stringType)),
			endMethod("EndSend", intType),
		),
	))

	code := generator.File.GoString()
	assert.Contains(t, code, "public static Task<int> SendAsync(this Contoso.Client source, int[] buffer, string @event)")
	assert.Contains(t, code, "return Task<int>.Factory.FromAsync(source.BeginSend, source.EndSend, buffer, @event, null);")
}

func TestGenerator_ManyArgumentsInvokeBeginExplicitly(t *testing.T) {
	generator := newTestGenerator(nil)
	generator.RegisterLibrary(library(
		publicType("Contoso", "Client",
			beginMethod("BeginSend", param("a", intType), param("b", intType), param("c", intType), param("d", intType)),
			endMethod("EndSend", stringType),
			beginMethod("BeginWrite", param("a", intType), param("b", intType), param("c", intType)),
			endMethod("EndWrite", voidType),
		),
	))

	code := generator.File.GoString()
	assert.Contains(t, code, "return Task<string>.Factory.FromAsync(source.BeginSend(a, b, c, d, null, null), source.EndSend);")
	assert.Contains(t, code, "return Task.Factory.FromAsync(source.BeginWrite, source.EndWrite, a, b, c, null);")
}

func TestGenerator_OutParameters(t *testing.T) {
	generator := newTestGenerator(nil)
	generator.RegisterLibrary(library(
		publicType("Contoso", "Stream",
			beginMethod("BeginRead", param("buffer", stringType)),
			endMethod("EndRead", intType, outParam("count", intType), outParam("tag", stringType)),
		),
	))

	expectedWrapper := `        public static async Task<StreamReadResult> ReadAsync(this Contoso.Stream source, string buffer)
        {
            if (source == null)
            {
                throw new ArgumentNullException("source");
            }
            int countTmp = default(int);
            string tagTmp = default(string);
            await Task.Factory.FromAsync(source.BeginRead(buffer, null, null), ar => source.EndRead(ar, out countTmp, out tagTmp)).ConfigureAwait(false);
            StreamReadResult result = new StreamReadResult();
            result.count = countTmp;
            result.tag = tagTmp;
            return result;
        }
`
	expectedResult := `    public class StreamReadResult
    {
        public int count { get; set; }
        public string tag { get; set; }
    }
`
	code := generator.File.GoString()
	assert.Contains(t, code, expectedWrapper)
	assert.Contains(t, code, expectedResult)
}

func TestGenerator_ResultTypeDeclaredOnce(t *testing.T) {
	first := publicType("Contoso.Files", "Stream",
		beginMethod("BeginRead"),
		endMethod("EndRead", voidType, outParam("count", intType)),
	)
	second := publicType("Contoso.Sockets", "Stream",
		beginMethod("BeginRead"),
		endMethod("EndRead", voidType, outParam("length", intType)),
	)

	generator := newTestGenerator(nil)
	generator.RegisterLibrary(library(first, second))

	code := generator.File.GoString()
	assert.Equal(t, 2, generator.Methods)
	assert.Equal(t, 1, strings.Count(code, "public class StreamReadResult"))
	assert.Contains(t, code, "public int count { get; set; }")
	assert.NotContains(t, code, "public int length { get; set; }")
	assert.Len(t, generator.File.Types, 2)
}

func TestGenerator_Obsolete(t *testing.T) {
	withMessage := beginMethod("BeginSend")
	withMessage.Obsolete = &metadata.Obsolete{Message: "Use \"SendAsync\" instead"}
	withoutMessage := beginMethod("BeginClose")
	withoutMessage.Obsolete = &metadata.Obsolete{}

	generator := newTestGenerator(nil)
	generator.RegisterLibrary(library(
		publicType("Contoso", "Client",
			withMessage, endMethod("EndSend", voidType),
			withoutMessage, endMethod("EndClose", voidType),
			beginMethod("BeginOpen"), endMethod("EndOpen", voidType),
		),
	))

	methods := wrappers(generator)
	require.Len(t, methods, 3)

	require.Len(t, methods["CloseAsync"].Attributes, 1)
	assert.Equal(t, "Obsolete", methods["CloseAsync"].Attributes[0].GoString())
	assert.Empty(t, methods["OpenAsync"].Attributes)
	require.Len(t, methods["SendAsync"].Attributes, 1)
	assert.Equal(t, `Obsolete("Use \"SendAsync\" instead")`, methods["SendAsync"].Attributes[0].GoString())
}

func TestGenerator_NullCheckComesFirst(t *testing.T) {
	generator := newTestGenerator(nil)
	generator.RegisterLibrary(library(
		publicType("Contoso", "Client",
			beginMethod("BeginSend", param("source", stringType)),
			endMethod("EndSend", voidType),
			beginMethod("BeginRead"),
			endMethod("EndRead", voidType, outParam("count", intType)),
		),
	))

	methods := wrappers(generator)
	require.Len(t, methods, 2)
	for name, method := range methods {
		require.NotEmpty(t, method.Body, name)
		receiver := method.Params[0].Name
		assert.Equal(t, "if ("+receiver+" == null)", method.Body[0].GoString(), name)
	}

	send := methods["SendAsync"]
	assert.Equal(t, "source1", send.Params[0].Name)
	assert.Equal(t, "source", send.Params[1].Name)
}

type recordingDocumenter struct {
	receivers []string
	begins    []string
}

func (documenter *recordingDocumenter) WriteDocs(wrapper *csharp.Method, receiver string, begin metadata.Method, end metadata.Method) {
	documenter.receivers = append(documenter.receivers, receiver)
	documenter.begins = append(documenter.begins, begin.Name)
	wrapper.Doc("<summary>", begin.Name+" and "+end.Name, "</summary>")
}

func TestGenerator_Documenter(t *testing.T) {
	documenter := &recordingDocumenter{}
	generator := newTestGenerator(documenter)
	generator.RegisterLibrary(library(
		publicType("Contoso", "Client",
			beginMethod("BeginSend"),
			endMethod("EndSend", voidType),
		),
	))

	assert.Equal(t, []string{"source"}, documenter.receivers)
	assert.Equal(t, []string{"BeginSend"}, documenter.begins)
	assert.Contains(t, generator.File.GoString(), "        /// <summary>\n        /// BeginSend and EndSend\n        /// </summary>\n        public static Task SendAsync(")
}

func TestGenerator_WithoutDocumenterHasNoDocComments(t *testing.T) {
	generator := newTestGenerator(nil)
	generator.RegisterLibrary(library(
		publicType("Contoso", "Client",
			beginMethod("BeginSend"),
			endMethod("EndSend", voidType),
		),
	))

	assert.NotContains(t, generator.File.GoString(), "///")
}

func TestNewGenerator_RequiresNames(t *testing.T) {
	assert.Panics(t, func() { NewGenerator("", "AsyncExtensions", "1.0", nil, zerolog.Nop()) })
	assert.Panics(t, func() { NewGenerator("Contoso", "", "1.0", nil, zerolog.Nop()) })
}

func wrappers(generator *Generator) map[string]*csharp.Method {
	methods := make(map[string]*csharp.Method)
	for _, member := range generator.Class.Members {
		if method, ok := member.(*csharp.Method); ok {
			methods[method.Name] = method
		}
	}
	return methods
}
