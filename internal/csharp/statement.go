// Package csharp builds C# source code. Expressions and statements are
// chains of tokens in the style of jennifer; declarations (namespace, class,
// method, property) are plain structs rendered by File.
package csharp

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Code is an element of a statement.
type Code interface {
	render(w *writer)
}

// Statement is a chain of tokens rendered on one line, separated by spaces
// unless a token attaches to its predecessor (member access, argument lists).
type Statement []Code

type tokenType int

const (
	identifierToken tokenType = iota
	keywordToken
	operatorToken
	literalToken
	dotToken
)

type token struct {
	typ     tokenType
	content string
}

func (t token) render(w *writer) {
	if t.typ == dotToken {
		w.write(".")
	}
	w.write(t.content)
}

type group struct {
	open      string
	close     string
	separator string
	items     []Code
}

func (g group) render(w *writer) {
	w.write(g.open)
	for i, item := range g.items {
		if i > 0 {
			w.write(g.separator)
		}
		item.render(w)
	}
	w.write(g.close)
}

func attaches(code Code) bool {
	switch c := code.(type) {
	case token:
		return c.typ == dotToken
	case group:
		return c.open == "(" || c.open == "<"
	}
	return false
}

func (s *Statement) render(w *writer) {
	for i, code := range *s {
		if i > 0 && !attaches(code) {
			w.write(" ")
		}
		code.render(w)
	}
}

// GoString renders the statement, so it can be printed with %#v.
func (s *Statement) GoString() string {
	w := &writer{}
	s.render(w)
	return w.String()
}

func newStatement() *Statement {
	return &Statement{}
}

func (s *Statement) add(code Code) *Statement {
	*s = append(*s, code)
	return s
}

// Add appends the provided items to the statement.
func Add(code ...Code) *Statement {
	return newStatement().Add(code...)
}

// Add appends the provided items to the statement.
func (s *Statement) Add(code ...Code) *Statement {
	for _, c := range code {
		if c != nil {
			s.add(c)
		}
	}
	return s
}

// Id renders an identifier or a dotted type name.
func Id(name string) *Statement {
	return newStatement().Id(name)
}

// Id renders an identifier or a dotted type name.
func (s *Statement) Id(name string) *Statement {
	return s.add(token{typ: identifierToken, content: name})
}

// Dot renders a period followed by a member name.
func (s *Statement) Dot(name string) *Statement {
	return s.add(token{typ: dotToken, content: name})
}

// Call renders a comma separated argument list enclosed by parenthesis.
func Call(args ...Code) *Statement {
	return newStatement().Call(args...)
}

// Call renders a comma separated argument list enclosed by parenthesis.
func (s *Statement) Call(args ...Code) *Statement {
	return s.add(group{open: "(", close: ")", separator: ", ", items: args})
}

// Op renders an operator.
func Op(op string) *Statement {
	return newStatement().Op(op)
}

// Op renders an operator.
func (s *Statement) Op(op string) *Statement {
	return s.add(token{typ: operatorToken, content: op})
}

// Lit renders a string, boolean, integer or null literal.
func Lit(value interface{}) *Statement {
	return newStatement().Lit(value)
}

// Lit renders a string, boolean, integer or null literal.
func (s *Statement) Lit(value interface{}) *Statement {
	return s.add(token{typ: literalToken, content: literal(value)})
}

// Null renders the null literal.
func Null() *Statement {
	return newStatement().Null()
}

// Null renders the null literal.
func (s *Statement) Null() *Statement {
	return s.add(token{typ: keywordToken, content: "null"})
}

func keyword(word string) func() *Statement {
	return func() *Statement {
		return newStatement().add(token{typ: keywordToken, content: word})
	}
}

var (
	// Return renders the keyword "return".
	Return = keyword("return")
	// Throw renders the keyword "throw".
	Throw = keyword("throw")
	// New renders the keyword "new".
	New = keyword("new")
	// Await renders the keyword "await".
	Await = keyword("await")
	// Out renders the keyword "out".
	Out = keyword("out")
	// Default renders the keyword "default".
	Default = keyword("default")
)

func (s *Statement) Return() *Statement { return s.add(token{typ: keywordToken, content: "return"}) }
func (s *Statement) Throw() *Statement  { return s.add(token{typ: keywordToken, content: "throw"}) }
func (s *Statement) New() *Statement    { return s.add(token{typ: keywordToken, content: "new"}) }
func (s *Statement) Await() *Statement  { return s.add(token{typ: keywordToken, content: "await"}) }
func (s *Statement) Out() *Statement    { return s.add(token{typ: keywordToken, content: "out"}) }

// Lambda renders "param => body".
func Lambda(param string, body Code) *Statement {
	return Id(param).Op("=>").Add(body)
}

// DefaultOf renders "default(typeName)".
func DefaultOf(typeName string) *Statement {
	return Default().Call(Id(typeName))
}

// If renders an if statement with a block body.
func If(condition Code, body ...*Statement) *Statement {
	return newStatement().add(ifBlock{condition: condition, body: body})
}

type ifBlock struct {
	condition Code
	body      []*Statement
}

func (b ifBlock) render(w *writer) {
	w.write("if (")
	b.condition.render(w)
	w.write(")")
}

func (b ifBlock) renderBlock(w *writer) {
	w.startLine()
	b.render(w)
	w.endLine()
	renderBlock(w, b.body)
}

type blockCode interface {
	renderBlock(w *writer)
}

// renderStatement writes one statement on its own line(s).
func renderStatement(w *writer, s *Statement) {
	if len(*s) == 1 {
		if block, ok := (*s)[0].(blockCode); ok {
			block.renderBlock(w)
			return
		}
	}

	w.startLine()
	s.render(w)
	w.write(";")
	w.endLine()
}

func renderBlock(w *writer, body []*Statement) {
	w.line("{")
	w.indent++
	for _, s := range body {
		renderStatement(w, s)
	}
	w.indent--
	w.line("}")
}

func literal(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	panic(fmt.Sprintf("unsupported literal type %T", value))
}

// quote renders a regular C# string literal.
func quote(value string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case 0:
			b.WriteString(`\0`)
		default:
			if r < 0x20 || r == 0x85 || r == 0x2028 || r == 0x2029 || !unicode.IsPrint(r) && r < 0x10000 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
