package backend

import (
	"context"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/syntax"
)

// astBackend is the parserNN backend: the grammar of one Ruby version printed as parser-gem nodes.
type astBackend struct {
	version grammar.Version
}

func (b astBackend) ID() ID       { return ParserID(b.version) }
func (astBackend) Family() Family { return FamilyAST }

func (b astBackend) Parse(ctx context.Context, code string) (Representation, error) {
	root, err := syntax.Parse(ctx, []byte(code), syntax.Options{
		Version:    b.version,
		ErrorStyle: syntax.ErrorStyleParser,
		Backend:    string(b.ID()),
	})
	if err != nil {
		return nil, err
	}
	return &Tree{Style: StyleAST, Root: astValue(root)}, nil
}

func astValue(v syntax.Value) Value {
	switch v := v.(type) {
	case nil:
		return Nil{}
	case *syntax.Node:
		if v == nil {
			return Nil{}
		}
		n := &Node{Type: v.Type, Children: make([]Value, 0, len(v.Children))}
		for _, c := range v.Children {
			n.Children = append(n.Children, astValue(c))
		}
		return n
	case syntax.Symbol:
		return Symbol(v)
	case syntax.Str:
		return String(v)
	case syntax.Literal:
		return Raw(v)
	}
	return Nil{}
}
