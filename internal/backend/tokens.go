package backend

import (
	"context"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/syntax"
	"github.com/kpumuk/parsebot/internal/text"
)

type tokenizeBackend struct {
	version grammar.Version
}

func (tokenizeBackend) ID() ID         { return IDTokenize }
func (tokenizeBackend) Family() Family { return FamilyTokenize }

func (b tokenizeBackend) Parse(ctx context.Context, code string) (Representation, error) {
	src := []byte(code)
	lines, toks, err := lex(ctx, src, b.version)
	if err != nil {
		return nil, err
	}
	out := &TokenStream{Tokens: make([]Token, 0, len(toks))}
	for _, tok := range toks {
		for _, tr := range tok.Leading {
			if !tr.Kind.IsHeredoc() {
				continue
			}
			out.Tokens = append(out.Tokens, Token{
				Pos:  lines.Point(tr.Span.Start),
				Kind: tr.Kind.String(),
				Text: string(tr.Bytes(src)),
			})
		}
		if tok.Kind == lexer.TokenEOF {
			continue
		}
		out.Tokens = append(out.Tokens, Token{
			Pos:  lines.Point(tok.Span.Start),
			Kind: tok.Kind.String(),
			Text: tok.Text,
		})
	}
	return out, nil
}

type lexBackend struct {
	version grammar.Version
}

func (lexBackend) ID() ID         { return IDLex }
func (lexBackend) Family() Family { return FamilyLex }

func (b lexBackend) Parse(ctx context.Context, code string) (Representation, error) {
	src := []byte(code)
	lines, toks, err := lex(ctx, src, b.version)
	if err != nil {
		return nil, err
	}
	out := &LexStream{}
	for _, tok := range toks {
		for _, tr := range tok.Leading {
			out.Records = append(out.Records, LexRecord{
				Pos:   lines.Point(tr.Span.Start),
				Kind:  tr.Kind.String(),
				Text:  string(tr.Bytes(src)),
				State: tr.State.String(),
			})
		}
		if tok.Kind == lexer.TokenEOF {
			continue
		}
		out.Records = append(out.Records, LexRecord{
			Pos:   lines.Point(tok.Span.Start),
			Kind:  tok.Kind.String(),
			Text:  tok.Text,
			State: tok.State.String(),
		})
	}
	return out, nil
}

// lex scans src and turns the first lexer diagnostic into a syntax error.
func lex(ctx context.Context, src []byte, v grammar.Version) (*text.LineIndex, []lexer.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	res := lexer.Lex(src, lexer.Options{Version: v})
	lines := text.NewLineIndex(src)
	if len(res.Diagnostics) > 0 {
		d := res.Diagnostics[0]
		return nil, nil, &syntax.SyntaxError{
			Pos:     lines.Point(d.Span.Start),
			Span:    d.Span,
			Message: d.Message,
		}
	}
	return lines, res.Tokens, nil
}
