// Package syntax parses Ruby source for a given grammar version into an abstract syntax tree.
//
// The tree follows the node vocabulary of the whitequark parser gem
// (send, lvasgn, dstr, ...) so backends can render it either directly or
// converted to other shapes.
package syntax

import (
	"fmt"
	"strings"

	"github.com/kpumuk/parsebot/internal/text"
)

// Value is a child of an AST node: *Node, Symbol, Str, Literal or nil for an absent child.
type Value interface {
	astValue()
}

// Symbol is a Ruby symbol child such as a method or variable name.
type Symbol string

// Str is a decoded string child.
type Str string

// Literal is a numeric child rendered the way Ruby inspects it (1, 1.5, (3/1), (0+2i)).
type Literal string

func (Symbol) astValue()  {}
func (Str) astValue()     {}
func (Literal) astValue() {}
func (*Node) astValue()   {}

// Node is an AST node.
type Node struct {
	Type     string
	Children []Value
	// Span covers the whole expression.
	Span text.Span
	// Name covers the selector or name token when the node has one.
	Name text.Span
}

// NewNode returns a node of typ covering sp. Nil *Node children become untyped nil.
func NewNode(typ string, sp text.Span, children ...Value) *Node {
	for i, c := range children {
		if n, ok := c.(*Node); ok && n == nil {
			children[i] = nil
		}
	}
	return &Node{Type: typ, Children: children, Span: sp}
}

// Child returns the i-th child as a node or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	c, _ := n.Children[i].(*Node)
	return c
}

// Walk calls fn for n and every descendant node in depth-first order.
// Returning false from fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		if cn, ok := c.(*Node); ok && cn != nil {
			Walk(cn, fn)
		}
	}
}

// String renders n as a compact s-expression: (send (int 1) :+ (int 1)).
func (n *Node) String() string {
	var b strings.Builder
	writeValue(&b, n)
	return b.String()
}

func writeValue(b *strings.Builder, v Value) {
	switch v := v.(type) {
	case nil:
		b.WriteString("nil")
	case *Node:
		if v == nil {
			b.WriteString("nil")
			return
		}
		b.WriteByte('(')
		b.WriteString(v.Type)
		for _, c := range v.Children {
			b.WriteByte(' ')
			writeValue(b, c)
		}
		b.WriteByte(')')
	case Symbol:
		b.WriteString(InspectSymbol(string(v)))
	case Str:
		b.WriteString(InspectString(string(v)))
	case Literal:
		b.WriteString(string(v))
	}
}

// InspectString quotes s the way Ruby's String#inspect does for printable UTF-8 text.
func InspectString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\f':
			b.WriteString(`\f`)
		case '\v':
			b.WriteString(`\v`)
		case '\a':
			b.WriteString(`\a`)
		case '\b':
			b.WriteString(`\b`)
		case 0x1b:
			b.WriteString(`\e`)
		case '#':
			if i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '$' || s[i+1] == '@') {
				b.WriteByte('\\')
			}
			b.WriteByte('#')
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// InspectSymbol renders name as a symbol literal, quoting it when needed.
func InspectSymbol(name string) string {
	if isPlainSymbol(name) {
		return ":" + name
	}
	return ":" + InspectString(name)
}

var operatorSymbols = map[string]bool{
	"[]": true, "[]=": true, "<=>": true, "===": true, "==": true, "=~": true, "!=": true, "!~": true,
	"**": true, "+@": true, "-@": true, ">=": true, "<=": true, "<<": true, ">>": true, "+": true,
	"-": true, "*": true, "/": true, "%": true, "<": true, ">": true, "!": true, "&": true, "|": true,
	"^": true, "~": true,
}

func isPlainSymbol(name string) bool {
	if name == "" {
		return false
	}
	if operatorSymbols[name] {
		return true
	}
	s := strings.TrimPrefix(strings.TrimPrefix(name, "@"), "@")
	if s == name {
		s = strings.TrimPrefix(name, "$")
	}
	if s == "" {
		return false
	}
	last := len(s) - 1
	if s[last] == '?' || s[last] == '!' || s[last] == '=' {
		if s != name {
			return false
		}
		s = s[:last]
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80 || (i > 0 && c >= '0' && c <= '9')
		if !ok {
			return false
		}
	}
	return s != ""
}
