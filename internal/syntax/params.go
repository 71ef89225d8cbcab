package syntax

import (
	"strings"

	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/text"
)

func (p *parser) emptyArgs() *Node {
	end := p.prevEnd()
	return NewNode("args", text.Span{Start: end, End: end})
}

func (p *parser) parseDefParams() *Node {
	switch {
	case p.at(lexer.TokenLParen):
		return p.parseParamList(lexer.TokenRParen, true)
	case p.atTerm() || p.at(lexer.TokenEOF):
		return p.emptyArgs()
	}
	return p.parseParams(func() bool { return p.atTerm() || p.at(lexer.TokenEOF) }, false)
}

// parseParamList parses a parenthesised parameter list. The current token is the opening paren.
func (p *parser) parseParamList(closer lexer.TokenKind, allowForward bool) *Node {
	open := p.next()
	p.skipNewlines()
	if allowForward && p.features.ArgForwarding && p.atOp("...") {
		p.next()
		p.skipNewlines()
		p.expect(closer)
		return NewNode("forward_args", p.spanFrom(open.Span.Start))
	}
	n := p.parseParams(func() bool {
		p.skipNewlines()
		return p.at(closer)
	}, false)
	p.skipNewlines()
	p.expect(closer)
	n.Span = p.spanFrom(open.Span.Start)
	return n
}

func (p *parser) parseBlockParams() *Node {
	switch {
	case p.atOp("||"):
		t := p.next()
		return NewNode("args", t.Span)
	case p.atOp("|"):
		open := p.next()
		n := p.parseParams(func() bool { return p.atOp("|") }, true)
		p.expectOp("|")
		n.Span = p.spanFrom(open.Span.Start)
		return n
	}
	return p.emptyArgs()
}

// parseParams parses parameters until done reports the closing token.
// Block parameters take defaults without `|` and may declare block locals after `;`.
func (p *parser) parseParams(done func() bool, block bool) *Node {
	start := p.tok().Span.Start
	var params []Value
	for !done() {
		params = append(params, p.parseParam(done, block))
		if block && p.at(lexer.TokenSemicolon) {
			p.next()
			for p.at(lexer.TokenIdent) {
				t := p.next()
				p.scope.declare(t.Text)
				params = append(params, &Node{Type: "shadowarg", Children: []Value{Symbol(t.Text)}, Span: t.Span, Name: t.Span})
				if !p.accept(lexer.TokenComma) {
					break
				}
			}
			break
		}
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	return NewNode("args", p.spanFrom(start), params...)
}

func (p *parser) paramDefault(block bool) *Node {
	if block {
		return p.parseBinary(precAmp)
	}
	return p.parseArg()
}

func (p *parser) namedParam(typ string, t lexer.Token, children ...Value) *Node {
	p.scope.declare(t.Text)
	all := append([]Value{Symbol(t.Text)}, children...)
	n := NewNode(typ, p.spanFrom(t.Span.Start), all...)
	n.Name = t.Span
	return n
}

func (p *parser) parseParam(done func() bool, block bool) *Node {
	t := p.tok()
	switch {
	case t.IsOp("*"):
		p.next()
		if p.at(lexer.TokenIdent) {
			name := p.next()
			n := p.namedParam("restarg", name)
			n.Span = p.spanFrom(t.Span.Start)
			return n
		}
		return NewNode("restarg", t.Span)
	case t.IsOp("**"):
		if !p.features.KeywordParams {
			p.unexpected()
		}
		p.next()
		if p.at(lexer.TokenIdent) {
			name := p.next()
			n := p.namedParam("kwrestarg", name)
			n.Span = p.spanFrom(t.Span.Start)
			return n
		}
		return NewNode("kwrestarg", t.Span)
	case t.IsOp("&"):
		p.next()
		name := p.expect(lexer.TokenIdent)
		n := p.namedParam("blockarg", name)
		n.Span = p.spanFrom(t.Span.Start)
		return n
	case t.Kind == lexer.TokenLabel:
		if !p.features.KeywordParams {
			p.unexpected()
		}
		p.next()
		name := t
		name.Text = strings.TrimSuffix(t.Text, ":")
		name.Span = text.Span{Start: t.Span.Start, End: t.Span.End - 1}
		if p.at(lexer.TokenComma) || done() || p.at(lexer.TokenNewline) {
			if !p.features.RequiredKwargs {
				p.unexpected()
			}
			n := p.namedParam("kwarg", name)
			n.Span = t.Span
			return n
		}
		def := p.paramDefault(block)
		n := p.namedParam("kwoptarg", name, def)
		n.Span = p.spanFrom(t.Span.Start)
		return n
	case t.Kind == lexer.TokenLParen:
		return p.parseParamGroup()
	case t.Kind == lexer.TokenIdent:
		p.next()
		if p.atOp("=") {
			p.next()
			p.scope.declare(t.Text)
			def := p.paramDefault(block)
			return p.namedParam("optarg", t, def)
		}
		return p.namedParam("arg", t)
	}
	p.unexpected()
	return nil
}

// parseParamGroup parses a destructuring parameter such as (a, (b, *c)).
func (p *parser) parseParamGroup() *Node {
	open := p.next()
	var items []Value
	for !p.at(lexer.TokenRParen) {
		t := p.tok()
		switch {
		case t.IsOp("*"):
			p.next()
			if p.at(lexer.TokenIdent) {
				name := p.next()
				n := p.namedParam("restarg", name)
				n.Span = p.spanFrom(t.Span.Start)
				items = append(items, n)
			} else {
				items = append(items, NewNode("restarg", t.Span))
			}
		case t.Kind == lexer.TokenLParen:
			items = append(items, p.parseParamGroup())
		case t.Kind == lexer.TokenIdent:
			p.next()
			items = append(items, p.namedParam("arg", t))
		default:
			p.unexpected()
		}
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRParen)
	return NewNode("mlhs", p.spanFrom(open.Span.Start), items...)
}
