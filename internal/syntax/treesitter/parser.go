//go:build cgo

package treesitter

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/kpumuk/parsebot/internal/text"
)

// Parser wraps a tree-sitter parser configured for Ruby.
type Parser struct {
	inner *sitter.Parser
}

// NewParser creates a Ruby parser with the grammar language preloaded.
func NewParser() (*Parser, error) {
	p := sitter.NewParser()
	if err := p.SetLanguage(Language()); err != nil {
		p.Close()
		return nil, err
	}
	return &Parser{inner: p}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	if p == nil || p.inner == nil {
		return
	}
	p.inner.Close()
	p.inner = nil
}

// Tree wraps a parsed tree-sitter tree.
type Tree struct {
	inner *sitter.Tree
	root  *RawNode
}

// Close releases tree resources. The detached root stays usable.
func (t *Tree) Close() {
	if t == nil || t.inner == nil {
		return
	}
	t.inner.Close()
	t.inner = nil
}

// Root returns the root node, copied out of the C tree by Parse.
func (t *Tree) Root() Node {
	if t == nil {
		return Node{}
	}
	return wrapNode(t.root)
}

// Parse parses src and returns a tree wrapper.
func (p *Parser) Parse(ctx context.Context, src []byte) (*Tree, error) {
	if p == nil || p.inner == nil {
		return nil, errors.New("nil parser")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := p.inner.ParseWithOptions(func(i int, _ sitter.Point) []byte {
		if i >= len(src) {
			return nil
		}
		return src[i:]
	}, nil, &sitter.ParseOptions{
		ProgressCallback: func(_ sitter.ParseState) bool {
			return ctx.Err() != nil
		},
	})
	if err := ctx.Err(); err != nil {
		if raw != nil {
			raw.Close()
		}
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("tree-sitter parse returned nil tree")
	}
	root, err := detach(raw.RootNode(), 0)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return &Tree{inner: raw, root: root}, nil
}

func detach(n *sitter.Node, depth int) (*RawNode, error) {
	if n == nil {
		return nil, nil
	}
	if depth > MaxDepth {
		start := n.StartPosition()
		return nil, fmt.Errorf("%w at %d:%d", ErrTooDeep, start.Row+1, start.Column)
	}
	start, end := n.StartPosition(), n.EndPosition()
	out := &RawNode{
		Kind:      n.Kind(),
		Span:      text.Span{Start: text.ByteOffset(n.StartByte()), End: text.ByteOffset(n.EndByte())},
		Start:     text.Point{Line: int(start.Row) + 1, Column: int(start.Column)},
		End:       text.Point{Line: int(end.Row) + 1, Column: int(end.Column)},
		IsNamed:   n.IsNamed(),
		IsError:   n.IsError(),
		IsMissing: n.IsMissing(),
		HasError:  n.HasError(),
	}

	cursor := n.Walk()
	defer cursor.Close()
	children := n.Children(cursor)
	for i := range children {
		if children[i].IsExtra() && !children[i].IsError() {
			continue
		}
		child, err := detach(&children[i], depth+1)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}
