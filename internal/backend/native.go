package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kpumuk/parsebot/internal/syntax"
	ts "github.com/kpumuk/parsebot/internal/syntax/treesitter"
	"github.com/kpumuk/parsebot/internal/text"
)

type nativeParser interface {
	Parse(ctx context.Context, src []byte) (*ts.Tree, error)
	Close()
}

func newNativeParser() (nativeParser, error) {
	p, err := ts.NewParser()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// nativeBackend is the rubyvm backend: the tree-sitter Ruby grammar with node locations.
// A parser is created per call since tree-sitter parsers are not safe for concurrent use.
type nativeBackend struct {
	newParser func() (nativeParser, error)
}

func (nativeBackend) ID() ID         { return IDRubyVM }
func (nativeBackend) Family() Family { return FamilyAST }

func (b nativeBackend) Parse(ctx context.Context, code string) (Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.newParser()
	if err != nil {
		return nil, fmt.Errorf("init tree-sitter parser: %w", err)
	}
	defer p.Close()

	src := []byte(code)
	tree, err := p.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.Root()
	if root.IsZero() {
		return nil, errors.New("tree-sitter returned an empty tree")
	}
	if bad, ok := root.FirstProblem(); ok {
		return nil, nativeSyntaxError(bad, src)
	}
	return &Tree{Style: StyleNative, Root: nativeValue(root, src)}, nil
}

func nativeValue(n ts.Node, src []byte) *Node {
	loc := text.Range{Start: n.Start(), End: n.End()}
	out := &Node{Type: n.Kind(), Loc: &loc}
	named := n.NamedChildren()
	if len(named) == 0 {
		out.Children = []Value{String(n.Text(src))}
		return out
	}
	for _, c := range named {
		out.Children = append(out.Children, nativeValue(c, src))
	}
	return out
}

func nativeSyntaxError(n ts.Node, src []byte) *syntax.SyntaxError {
	msg := "syntax error, missing " + n.Kind()
	if !n.IsMissing() {
		snippet, _, _ := strings.Cut(strings.TrimSpace(n.Text(src)), "\n")
		if r := []rune(snippet); len(r) > 20 {
			snippet = string(r[:20])
		}
		if snippet == "" {
			msg = "syntax error, unexpected end-of-input"
		} else {
			msg = "syntax error, unexpected '" + snippet + "'"
		}
	}
	return &syntax.SyntaxError{Pos: n.Start(), Span: n.Span(), Message: msg}
}
