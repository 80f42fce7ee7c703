package csharp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// File is a compilation unit holding a single namespace.
type File struct {
	Comments  []string
	Usings    []string
	Namespace string
	Types     []*Class
}

// Class is a type declaration with auto-properties and methods.
type Class struct {
	Name       string
	Modifiers  []string
	Attributes []*Statement
	Members    []Member
}

// Member is a property or method of a class.
type Member interface {
	renderMember(w *writer)
}

// Property renders as an auto-property: "public T Name { get; set; }".
type Property struct {
	Type string
	Name string
}

type Param struct {
	Type string
	Name string
	// Marks the receiver of an extension method.
	This bool
}

type Method struct {
	Name       string
	Modifiers  []string
	ReturnType string
	Params     []Param
	Body       []*Statement
	Attributes []*Statement
	// Documentation comment lines without the leading "///".
	Docs []string
}

func NewFile(namespace string) *File {
	return &File{Namespace: namespace}
}

// Comment adds a line comment above the usings.
func (f *File) Comment(text string) *File {
	f.Comments = append(f.Comments, text)
	return f
}

func (f *File) Using(namespace string) *File {
	f.Usings = append(f.Usings, namespace)
	return f
}

// Class declares a new type in the namespace and returns it.
func (f *File) Class(name string, modifiers ...string) *Class {
	class := &Class{Name: name, Modifiers: modifiers}
	f.Types = append(f.Types, class)
	return class
}

// FindClass returns the first declared type with the given name.
func (f *File) FindClass(name string) (*Class, bool) {
	for _, class := range f.Types {
		if class.Name == name {
			return class, true
		}
	}
	return nil, false
}

func (c *Class) Attribute(attribute *Statement) *Class {
	c.Attributes = append(c.Attributes, attribute)
	return c
}

func (c *Class) Property(typeName string, name string) *Class {
	c.Members = append(c.Members, &Property{Type: typeName, Name: name})
	return c
}

func (c *Class) Method(method *Method) *Class {
	c.Members = append(c.Members, method)
	return c
}

func NewMethod(name string, returnType string, modifiers ...string) *Method {
	return &Method{Name: name, ReturnType: returnType, Modifiers: modifiers}
}

func (m *Method) Param(typeName string, name string) *Method {
	m.Params = append(m.Params, Param{Type: typeName, Name: name})
	return m
}

// ThisParam adds the receiver parameter of an extension method.
func (m *Method) ThisParam(typeName string, name string) *Method {
	m.Params = append(m.Params, Param{Type: typeName, Name: name, This: true})
	return m
}

func (m *Method) Attribute(attribute *Statement) *Method {
	m.Attributes = append(m.Attributes, attribute)
	return m
}

// Add appends statements to the method body.
func (m *Method) Add(statements ...*Statement) *Method {
	m.Body = append(m.Body, statements...)
	return m
}

// Doc appends documentation comment lines. Multi-line text is split so every
// line gets its own "///" prefix.
func (m *Method) Doc(lines ...string) *Method {
	for _, line := range lines {
		for _, part := range strings.Split(strings.ReplaceAll(line, "\r\n", "\n"), "\n") {
			m.Docs = append(m.Docs, strings.TrimSpace(part))
		}
	}
	return m
}

// Render writes the file's source to w.
func (f *File) Render(w io.Writer) error {
	out := &writer{}
	f.render(out)
	_, err := io.WriteString(w, out.String())
	return err
}

// Save renders the file and writes it to the given path.
func (f *File) Save(path string) error {
	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("could not write '%s': %w", path, err)
	}
	return nil
}

// GoString renders the file, so it can be printed with %#v.
func (f *File) GoString() string {
	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		panic(err)
	}
	return buf.String()
}

func (f *File) render(w *writer) {
	for _, comment := range f.Comments {
		w.line("// " + comment)
	}
	for _, using := range f.Usings {
		w.line("using " + using + ";")
	}
	if len(f.Comments) > 0 || len(f.Usings) > 0 {
		w.blank()
	}

	w.line("namespace " + f.Namespace)
	w.line("{")
	w.indent++
	for i, class := range f.Types {
		if i > 0 {
			w.blank()
		}
		class.render(w)
	}
	w.indent--
	w.line("}")
}

func (c *Class) render(w *writer) {
	renderAttributes(w, c.Attributes)
	w.line(joinWords(append(append([]string{}, c.Modifiers...), "class", c.Name)...))
	w.line("{")
	w.indent++
	for i, member := range c.Members {
		if i > 0 {
			if _, isProperty := member.(*Property); !isProperty {
				w.blank()
			}
		}
		member.renderMember(w)
	}
	w.indent--
	w.line("}")
}

func (p *Property) renderMember(w *writer) {
	w.line(fmt.Sprintf("public %s %s { get; set; }", p.Type, p.Name))
}

func (m *Method) renderMember(w *writer) {
	for _, doc := range m.Docs {
		if doc == "" {
			w.line("///")
			continue
		}
		w.line("/// " + doc)
	}
	renderAttributes(w, m.Attributes)

	params := make([]string, len(m.Params))
	for i, param := range m.Params {
		params[i] = joinWords(param.Type, param.Name)
		if param.This {
			params[i] = "this " + params[i]
		}
	}

	signature := joinWords(append(append([]string{}, m.Modifiers...), m.ReturnType, m.Name)...)
	w.line(signature + "(" + strings.Join(params, ", ") + ")")
	renderBlock(w, m.Body)
}

func renderAttributes(w *writer, attributes []*Statement) {
	for _, attribute := range attributes {
		w.startLine()
		w.write("[")
		attribute.render(w)
		w.write("]")
		w.endLine()
	}
}

func joinWords(words ...string) string {
	nonEmpty := make([]string, 0, len(words))
	for _, word := range words {
		if word != "" {
			nonEmpty = append(nonEmpty, word)
		}
	}
	return strings.Join(nonEmpty, " ")
}

const indentation = "    "

type writer struct {
	buf    strings.Builder
	indent int
}

func (w *writer) write(s string) {
	w.buf.WriteString(s)
}

func (w *writer) startLine() {
	w.buf.WriteString(strings.Repeat(indentation, w.indent))
}

func (w *writer) endLine() {
	w.buf.WriteString("\n")
}

func (w *writer) line(s string) {
	w.startLine()
	w.write(s)
	w.endLine()
}

func (w *writer) blank() {
	w.endLine()
}

func (w *writer) String() string {
	return w.buf.String()
}
