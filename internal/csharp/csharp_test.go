package csharp

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatement_Render(t *testing.T) {
	tests := []struct {
		name      string
		statement *Statement
		expected  string
	}{
		{
			name:      "member access and call",
			statement: Id("source").Dot("BeginSend").Call(Id("buffer"), Null(), Null()),
			expected:  "source.BeginSend(buffer, null, null)",
		},
		{
			name:      "throw",
			statement: Throw().New().Id("ArgumentNullException").Call(Lit("source")),
			expected:  `throw new ArgumentNullException("source")`,
		},
		{
			name:      "lambda",
			statement: Lambda("ar", Id("source").Dot("EndRead").Call(Id("ar"), Out().Id("countTmp"))),
			expected:  "ar => source.EndRead(ar, out countTmp)",
		},
		{
			name:      "declaration with default",
			statement: Id("int").Id("countTmp").Op("=").Add(DefaultOf("int")),
			expected:  "int countTmp = default(int)",
		},
		{
			name:      "await",
			statement: Await().Add(Id("Task").Dot("Delay").Call(Lit(10))).Dot("ConfigureAwait").Call(Lit(false)),
			expected:  "await Task.Delay(10).ConfigureAwait(false)",
		},
		{
			name:      "return",
			statement: Return().Id("result"),
			expected:  "return result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.statement.GoString())
		})
	}
}

func TestLit_Quoting(t *testing.T) {
	assert.Equal(t, `"plain"`, Lit("plain").GoString())
	assert.Equal(t, `"say \"hi\"\n"`, Lit("say \"hi\"\n").GoString())
	assert.Equal(t, `"C:\\temp\t"`, Lit("C:\\temp\t").GoString())
	assert.Equal(t, `"\u0001"`, Lit("\x01").GoString())
	assert.Equal(t, `"zażółć"`, Lit("zażółć").GoString())
	assert.Equal(t, "true", Lit(true).GoString())
	assert.Equal(t, "null", Lit(nil).GoString())
	assert.Panics(t, func() { Lit(1.5) })
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "@class", Identifier("class"))
	assert.Equal(t, "@params", Identifier("params"))
	assert.Equal(t, "buffer", Identifier("buffer"))
	assert.Equal(t, "value", Identifier("value"))
}

func TestFile_Render(t *testing.T) {
	file := NewFile("Contoso.Extensions").
		Comment("Generated").
		Using("System")

	class := file.Class("Extensions", "public", "static").Attribute(Id("DebuggerStepThrough"))
	method := NewMethod("CloseAsync", "Task", "public", "static").
		ThisParam("Contoso.Client", "source").
		Param("int", "@timeout").
		Attribute(Id("Obsolete").Call(Lit("Use Dispose"))).
		Doc("<summary>", "  Closes the\n  connection.  ", "</summary>", "").
		Add(If(Id("source").Op("==").Null(), Throw().New().Id("ArgumentNullException").Call(Lit("source")))).
		Add(Return().Id("Task").Dot("CompletedTask"))
	class.Method(method)

	file.Class("CloseResult", "public").
		Property("int", "code").
		Property("string", "reason")

	expected := `// Generated
using System;

namespace Contoso.Extensions
{
    [DebuggerStepThrough]
    public static class Extensions
    {
        /// <summary>
        /// Closes the
        /// connection.
        /// </summary>
        ///
        [Obsolete("Use Dispose")]
        public static Task CloseAsync(this Contoso.Client source, int @timeout)
        {
            if (source == null)
            {
                throw new ArgumentNullException("source");
            }
            return Task.CompletedTask;
        }
    }

    public class CloseResult
    {
        public int code { get; set; }
        public string reason { get; set; }
    }
}
`

	buffer := &bytes.Buffer{}
	require.NoError(t, file.Render(buffer))
	assert.Equal(t, expected, buffer.String())
	assert.Equal(t, expected, file.GoString())

	found, ok := file.FindClass("CloseResult")
	require.True(t, ok)
	assert.Len(t, found.Members, 2)

	_, ok = file.FindClass("Missing")
	assert.False(t, ok)
}

func TestFile_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Out.cs")
	file := NewFile("Empty")

	require.NoError(t, file.Save(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "namespace Empty\n{\n}\n", string(content))

	assert.Error(t, file.Save(filepath.Join(t.TempDir(), "missing", "Out.cs")))
}
