package treesitter

import (
	"errors"
	"strings"

	"github.com/kpumuk/parsebot/internal/text"
)

// ErrUnavailable is returned by NewParser when the binary was built without cgo.
var ErrUnavailable = errors.New("tree-sitter runtime unavailable: built without cgo")

// MaxDepth bounds the depth of trees copied out of tree-sitter.
const MaxDepth = 10000

// ErrTooDeep is returned by Parse when the tree is deeper than MaxDepth.
var ErrTooDeep = errors.New("tree nesting exceeds limit")

// RawNode is a tree-sitter node copied out of the C tree, so it outlives the parser.
type RawNode struct {
	Kind      string
	Span      text.Span
	Start     text.Point
	End       text.Point
	IsNamed   bool
	IsError   bool
	IsMissing bool
	HasError  bool
	Children  []*RawNode
}

// Node wraps a parsed node.
type Node struct {
	inner *RawNode
}

func wrapNode(n *RawNode) Node {
	return Node{inner: n}
}

// IsZero reports whether the node wrapper is empty.
func (n Node) IsZero() bool {
	return n.inner == nil
}

// Inner returns the wrapped raw node pointer.
func (n Node) Inner() *RawNode {
	return n.inner
}

// Kind returns the node kind name.
func (n Node) Kind() string {
	if n.inner == nil {
		return ""
	}
	return n.inner.Kind
}

// Span returns the node byte span.
func (n Node) Span() text.Span {
	if n.inner == nil {
		return text.Span{}
	}
	return n.inner.Span
}

// Start returns the position of the first byte of the node.
func (n Node) Start() text.Point {
	if n.inner == nil {
		return text.Point{}
	}
	return n.inner.Start
}

// End returns the position just past the node.
func (n Node) End() text.Point {
	if n.inner == nil {
		return text.Point{}
	}
	return n.inner.End
}

// HasError reports whether the node subtree contains parse errors.
func (n Node) HasError() bool {
	return n.inner != nil && n.inner.HasError
}

// IsError reports whether the node itself is an error node.
func (n Node) IsError() bool {
	return n.inner != nil && n.inner.IsError
}

// IsMissing reports whether the node is a missing/recovered node.
func (n Node) IsMissing() bool {
	return n.inner != nil && n.inner.IsMissing
}

// IsNamed reports whether the node is named.
func (n Node) IsNamed() bool {
	return n.inner != nil && n.inner.IsNamed
}

// ChildCount returns the number of children.
func (n Node) ChildCount() int {
	if n.inner == nil {
		return 0
	}
	return len(n.inner.Children)
}

// Children returns the node's children in source order.
func (n Node) Children() []Node {
	if n.inner == nil {
		return nil
	}
	out := make([]Node, 0, len(n.inner.Children))
	for _, child := range n.inner.Children {
		out = append(out, wrapNode(child))
	}
	return out
}

// NamedChildren returns the named children in source order.
func (n Node) NamedChildren() []Node {
	if n.inner == nil {
		return nil
	}
	var out []Node
	for _, child := range n.inner.Children {
		if child.IsNamed {
			out = append(out, wrapNode(child))
		}
	}
	return out
}

// Text returns the source bytes covered by the node.
func (n Node) Text(src []byte) string {
	sp := n.Span()
	if n.inner == nil || sp.Validate() != nil || int(sp.End) > len(src) {
		return ""
	}
	return string(src[sp.Start:sp.End])
}

// FirstProblem returns the first error or missing node in document order.
func (n Node) FirstProblem() (Node, bool) {
	if n.inner == nil || (!n.inner.HasError && !n.inner.IsMissing) {
		return Node{}, false
	}
	if n.inner.IsError || n.inner.IsMissing {
		return n, true
	}
	for _, child := range n.Children() {
		if found, ok := child.FirstProblem(); ok {
			return found, true
		}
	}
	return Node{}, false
}

// Sexp returns the named-node s-expression used by tree-sitter's own debug output.
func (n Node) Sexp() string {
	if n.inner == nil {
		return ""
	}
	var b strings.Builder
	writeSexp(&b, n.inner)
	return b.String()
}

func writeSexp(b *strings.Builder, n *RawNode) {
	b.WriteByte('(')
	if n.IsMissing {
		b.WriteString("MISSING ")
	}
	b.WriteString(n.Kind)
	for _, child := range n.Children {
		if !child.IsNamed && !child.IsMissing {
			continue
		}
		b.WriteByte(' ')
		writeSexp(b, child)
	}
	b.WriteByte(')')
}
