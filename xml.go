package youtrack

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/beevik/etree"
)

var errNoRoot = errors.New("document has no root element")

// Node is a read-only view of one element of a parsed XML document.
// Queries never modify the document and return fresh Node values, so a Node
// may be shared between goroutines.
type Node struct {
	elem *etree.Element
}

// ParseDocument parses an XML payload and returns its root element.
func ParseDocument(data []byte) (*Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, newParseError(err, data)
	}
	root := doc.Root()
	if root == nil {
		return nil, newParseError(errNoRoot, data)
	}
	return &Node{elem: root}, nil
}

// ParseDocumentReader parses an XML payload read from r.
func ParseDocumentReader(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &TransportError{APIError: APIError{Message: "reading document"}, Err: err}
	}
	return ParseDocument(data)
}

// DecodeXML unmarshals a payload into a typed value.
func DecodeXML[T any](data []byte) (T, error) {
	var v T
	if err := xml.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, newParseError(err, data)
	}
	return v, nil
}

// Name returns the element tag including any namespace prefix.
func (n *Node) Name() string {
	return n.elem.FullTag()
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	a := n.elem.SelectAttr(name)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// Text returns the concatenated character data of the element and its descendants.
func (n *Node) Text() string {
	return textContent(n.elem)
}

// TextOf evaluates path and returns the text of the first match.
// An attribute step (@name) yields the attribute value. It panics with a
// *PathError if path is not a valid expression.
func (n *Node) TextOf(path string) (string, bool) {
	p := MustCompilePath(path)
	for _, e := range p.selectFrom(n.elem) {
		if p.attr == "" {
			return textContent(e), true
		}
		if a := e.SelectAttr(p.attr); a != nil {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first element matching path.
func (n *Node) Child(path string) (*Node, bool) {
	p := mustCompileElementPath(path)
	found := p.selectFrom(n.elem)
	if len(found) == 0 {
		return nil, false
	}
	return &Node{elem: found[0]}, true
}

// Children returns every element matching path, in document order.
// The result is empty, never nil, when nothing matches.
func (n *Node) Children(path string) []*Node {
	p := mustCompileElementPath(path)
	found := p.selectFrom(n.elem)
	out := make([]*Node, 0, len(found))
	for _, e := range found {
		out = append(out, &Node{elem: e})
	}
	return out
}

// String serializes the element and its subtree.
func (n *Node) String() string {
	if n == nil || n.elem == nil {
		return ""
	}
	doc := etree.NewDocument()
	doc.SetRoot(n.elem.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// Equal reports whether both nodes serialize to the same content.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.String() == other.String()
}

func textContent(e *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, tok := range el.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(e)
	return b.String()
}

// PathError reports an invalid path expression.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("youtrack: invalid path %q: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Path is a compiled query. It is an element path optionally followed by a
// final @attr or text() step.
type Path struct {
	expr    string
	elem    etree.Path
	hasElem bool
	attr    string
}

var pathCache sync.Map // string -> Path

// CompilePath parses expr.
func CompilePath(expr string) (Path, error) {
	if cached, ok := pathCache.Load(expr); ok {
		return cached.(Path), nil
	}

	p := Path{expr: expr}
	rest := strings.TrimSpace(expr)
	if rest == "" {
		return Path{}, &PathError{Path: expr, Err: errors.New("empty expression")}
	}

	head, last := splitLastStep(rest)
	switch {
	case last == "text()":
		rest = head
	case strings.HasPrefix(last, "@"):
		name := last[1:]
		if !validAttrName(name) {
			return Path{}, &PathError{Path: expr, Err: fmt.Errorf("invalid attribute step %q", last)}
		}
		p.attr = name
		rest = head
	}

	if rest != "" && rest != "." {
		compiled, err := etree.CompilePath(rest)
		if err != nil {
			return Path{}, &PathError{Path: expr, Err: err}
		}
		p.elem = compiled
		p.hasElem = true
	}

	pathCache.Store(expr, p)
	return p, nil
}

// MustCompilePath is like CompilePath but panics on error.
func MustCompilePath(expr string) Path {
	p, err := CompilePath(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func mustCompileElementPath(expr string) Path {
	p := MustCompilePath(expr)
	if p.attr != "" {
		panic(&PathError{Path: expr, Err: errors.New("attribute step does not select an element")})
	}
	return p
}

// String returns the source expression.
func (p Path) String() string {
	return p.expr
}

func (p Path) selectFrom(e *etree.Element) []*etree.Element {
	if !p.hasElem {
		return []*etree.Element{e}
	}
	return e.FindElementsPath(p.elem)
}

// splitLastStep splits expr at its last '/' outside predicates and quotes.
// head is empty when expr has a single step.
func splitLastStep(expr string) (head, last string) {
	depth := 0
	var quote rune
	cut := -1
	for i, r := range expr {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[':
			depth++
		case r == ']':
			depth--
		case r == '/' && depth == 0:
			cut = i
		}
	}
	if cut < 0 {
		return "", expr
	}
	head = expr[:cut]
	if head == "" {
		// A leading slash belongs to the element path.
		head = "/"
	}
	return head, expr[cut+1:]
}

func validAttrName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return true
}
