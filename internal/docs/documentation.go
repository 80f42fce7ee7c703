// Package docs migrates XML documentation comments of Begin/End method pairs
// onto the task wrappers generated for them.
package docs

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"asyncgen/internal/csharp"
	"asyncgen/internal/metadata"
)

const sourceObjectDescription = "The source object"

// Documentation is a parsed XML documentation file, its members keyed by
// documentation ID.
type Documentation struct {
	members map[string]*Member
}

// Member is the documentation of one member. Content keeps its inner markup.
type Member struct {
	Name       string      `xml:"name,attr"`
	Summary    *content    `xml:"summary"`
	Remarks    *content    `xml:"remarks"`
	Returns    *content    `xml:"returns"`
	Params     []param     `xml:"param"`
	Exceptions []exception `xml:"exception"`
}

type content struct {
	Inner string `xml:",innerxml"`
}

type param struct {
	Name  string `xml:"name,attr"`
	Inner string `xml:",innerxml"`
}

type exception struct {
	Cref  string `xml:"cref,attr"`
	Inner string `xml:",innerxml"`
}

type docFile struct {
	Members []*Member `xml:"members>member"`
}

// Load reads the documentation file under given path. A missing file is not
// an error: both results are nil and no documentation is available.
func Load(path string) (*Documentation, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open documentation file: %w", err)
	}
	defer file.Close()

	documentation, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("could not parse documentation file '%s': %w", path, err)
	}
	return documentation, nil
}

// Parse reads an XML documentation file. When a member is documented twice
// the first node wins.
func Parse(r io.Reader) (*Documentation, error) {
	var parsed docFile
	if err := xml.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, err
	}

	documentation := &Documentation{members: make(map[string]*Member, len(parsed.Members))}
	for _, member := range parsed.Members {
		if _, exists := documentation.members[member.Name]; !exists {
			documentation.members[member.Name] = member
		}
	}
	return documentation, nil
}

// Member looks up a member by its documentation ID.
func (documentation *Documentation) Member(name string) (*Member, bool) {
	if documentation == nil {
		return nil, false
	}
	member, found := documentation.members[name]
	return member, found
}

// WriteDocs attaches the Begin method's summary, remarks, parameters and
// exceptions and the End method's returns and exceptions to the wrapper.
func (documentation *Documentation) WriteDocs(wrapper *csharp.Method, receiver string, begin metadata.Method, end metadata.Method) {
	if wrapper == nil {
		panic("docs: wrapper method is required")
	}
	if begin.Name == "" || end.Name == "" {
		panic("docs: begin and end methods are required")
	}
	if documentation == nil {
		return
	}

	beginNode, _ := documentation.Member(MemberName(begin))
	endNode, _ := documentation.Member(MemberName(end))

	if beginNode != nil {
		writeNode(wrapper, "summary", beginNode.Summary)
		writeNode(wrapper, "remarks", beginNode.Remarks)
	}

	writeParam(wrapper, receiver, sourceObjectDescription)
	if beginNode != nil && len(begin.Params) > 2 {
		for _, parameter := range begin.Params[:len(begin.Params)-2] {
			if text, found := beginNode.param(parameter.Name); found {
				writeParam(wrapper, parameter.Name, text)
			}
		}
	}

	if endNode != nil {
		writeNode(wrapper, "returns", endNode.Returns)
	}

	writeExceptions(wrapper, beginNode)
	writeExceptions(wrapper, endNode)
}

func (member *Member) param(name string) (string, bool) {
	for _, p := range member.Params {
		if p.Name == name {
			return strings.TrimSpace(p.Inner), true
		}
	}
	return "", false
}

func writeNode(wrapper *csharp.Method, elementName string, node *content) {
	if node == nil {
		return
	}
	wrapper.Doc(fmt.Sprintf("<%s>", elementName), strings.TrimSpace(node.Inner), fmt.Sprintf("</%s>", elementName))
}

func writeParam(wrapper *csharp.Method, name string, text string) {
	wrapper.Doc(fmt.Sprintf("<param name=\"%s\">", name), text, "</param>")
}

func writeExceptions(wrapper *csharp.Method, member *Member) {
	if member == nil {
		return
	}

	for _, ex := range member.Exceptions {
		if ex.Cref == "" {
			continue
		}
		wrapper.Doc(fmt.Sprintf("<exception cref=\"%s\">", ex.Cref), strings.TrimSpace(ex.Inner), "</exception>")
	}
}

// MemberName builds the documentation ID of a method, e.g.
// "M:Contoso.Client.BeginSend(System.Byte[],System.AsyncCallback,System.Object)".
func MemberName(method metadata.Method) string {
	var result strings.Builder
	result.WriteString("M:")
	result.WriteString(method.DeclaringType.DocName())
	result.WriteByte('.')
	result.WriteString(method.Name)

	if len(method.Params) == 0 {
		return result.String()
	}

	result.WriteByte('(')
	for i, parameter := range method.Params {
		if i > 0 {
			result.WriteByte(',')
		}
		result.WriteString(parameter.Type.DocName())
		if parameter.IsByRef {
			result.WriteByte('@')
		}
	}
	result.WriteByte(')')

	return result.String()
}
