package syntax

import (
	"strings"

	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/text"
)

func (p *parser) parseCaseMatch(start text.ByteOffset, subject *Node) *Node {
	children := []Value{subject}
	for p.atKw("in") {
		in := p.next()
		pat := p.parseTopPattern()

		var guard *Node
		if p.atKw("if") || p.atKw("unless") {
			kw := p.next()
			cond := p.parseExpressionStatement()
			typ := "if_guard"
			if kw.Text == "unless" {
				typ = "unless_guard"
			}
			guard = NewNode(typ, p.spanFrom(kw.Span.Start), cond)
		}
		p.parseThen()
		body := p.body(p.parseStatements("in", "else", "end"))
		children = append(children, NewNode("in_pattern", p.spanFrom(in.Span.Start), pat, guard, body))
	}
	var els *Node
	if p.atKw("else") {
		kw := p.next()
		els = p.body(p.parseStatements("end"))
		if els == nil {
			els = NewNode("empty_else", kw.Span)
		}
	}
	p.expectKw("end")
	children = append(children, els)
	return NewNode("case_match", p.spanFrom(start), children...)
}

// parseTopPattern parses the pattern after `in`, where brackets and braces may be omitted.
func (p *parser) parseTopPattern() *Node {
	start := p.tok().Span.Start
	if p.at(lexer.TokenLabel) || p.atOp("**") {
		return p.parseHashPatternBody(start, func() bool { return p.atPatternEnd() })
	}

	first := p.parsePattern()
	if !p.at(lexer.TokenComma) && first.Type != "match_rest" {
		return first
	}
	elems := []Value{first}
	typ := "array_pattern"
	for p.accept(lexer.TokenComma) {
		if p.atPatternEnd() {
			typ = "array_pattern_with_tail"
			break
		}
		elems = append(elems, p.parsePattern())
	}
	return NewNode(typ, p.spanFrom(start), elems...)
}

func (p *parser) atPatternEnd() bool {
	return p.atTerm() || p.atKw("then") || p.atKw("if") || p.atKw("unless") || p.at(lexer.TokenEOF)
}

// parsePattern parses alternatives and `=>` bindings.
func (p *parser) parsePattern() *Node {
	p.enter()
	defer p.leave()
	n := p.parsePrimaryPattern()
	for p.atOp("|") {
		p.next()
		p.skipNewlines()
		rhs := p.parsePrimaryPattern()
		n = NewNode("match_alt", n.Span.Cover(rhs.Span), n, rhs)
	}
	for p.atOp("=>") {
		p.next()
		name := p.expect(lexer.TokenIdent)
		v := p.matchVar(name)
		n = NewNode("match_as", n.Span.Cover(v.Span), n, v)
	}
	return n
}

func (p *parser) matchVar(t lexer.Token) *Node {
	p.scope.declare(t.Text)
	return &Node{Type: "match_var", Children: []Value{Symbol(t.Text)}, Span: t.Span, Name: t.Span}
}

func (p *parser) parsePrimaryPattern() *Node {
	p.enter()
	defer p.leave()
	t := p.tok()
	switch {
	case t.Kind == lexer.TokenIdent && !isPatternCall(p.peek(1)):
		p.next()
		return p.matchVar(t)
	case t.IsOp("^"):
		p.next()
		name := p.expect(lexer.TokenIdent)
		v := &Node{Type: "lvar", Children: []Value{Symbol(name.Text)}, Span: name.Span, Name: name.Span}
		if !p.scope.isLocal(name.Text) {
			p.failAt(name.Span, name.Text+": no such local variable")
		}
		return NewNode("pin", p.spanFrom(t.Span.Start), v)
	case t.IsOp("*"):
		p.next()
		if p.at(lexer.TokenIdent) {
			v := p.matchVar(p.next())
			return NewNode("match_rest", p.spanFrom(t.Span.Start), v)
		}
		return NewNode("match_rest", t.Span)
	case t.Kind == lexer.TokenLBracket:
		p.next()
		n := p.parseArrayPatternBody(t.Span.Start, lexer.TokenRBracket)
		return n
	case t.Kind == lexer.TokenLBrace:
		p.next()
		n := p.parseHashPatternBody(t.Span.Start, func() bool {
			p.skipNewlines()
			return p.at(lexer.TokenRBrace)
		})
		p.skipNewlines()
		p.expect(lexer.TokenRBrace)
		n.Span = p.spanFrom(t.Span.Start)
		return n
	case t.Kind == lexer.TokenConst || t.IsOp("::"):
		c := p.parseCpath()
		switch {
		case p.at(lexer.TokenLParen) && !p.tok().SpaceBefore():
			open := p.next()
			inner := p.parseConstPatternArgs(open.Span.Start, lexer.TokenRParen)
			return NewNode("const_pattern", p.spanFrom(c.Span.Start), c, inner)
		case p.at(lexer.TokenLBracket) && !p.tok().SpaceBefore():
			open := p.next()
			inner := p.parseConstPatternArgs(open.Span.Start, lexer.TokenRBracket)
			return NewNode("const_pattern", p.spanFrom(c.Span.Start), c, inner)
		}
		return p.parsePatternRange(c)
	}
	return p.parsePatternRange(p.parsePatternValue())
}

func isPatternCall(next lexer.Token) bool {
	return next.Kind == lexer.TokenPeriod || next.IsOp("&.") || (next.Kind == lexer.TokenLParen && !next.SpaceBefore())
}

// parsePatternValue parses a literal or expression value that the pattern compares with ===.
func (p *parser) parsePatternValue() *Node {
	if p.atOp("..") || p.atOp("...") {
		op := p.next()
		rhs := p.parseBinary(precShift)
		return NewNode(rangeType(op.Text), p.spanFrom(op.Span.Start), nil, rhs)
	}
	return p.parseBinary(precShift)
}

func (p *parser) parsePatternRange(lhs *Node) *Node {
	if !p.atOp("..") && !p.atOp("...") {
		return lhs
	}
	op := p.next()
	if p.atPatternEnd() || p.at(lexer.TokenComma) || p.at(lexer.TokenRBracket) || p.at(lexer.TokenRParen) || p.at(lexer.TokenRBrace) || p.atOp("|") || p.atOp("=>") {
		return NewNode(rangeType(op.Text), p.spanFrom(lhs.Span.Start), lhs, nil)
	}
	rhs := p.parseBinary(precShift)
	return NewNode(rangeType(op.Text), lhs.Span.Cover(rhs.Span), lhs, rhs)
}

func (p *parser) parseConstPatternArgs(start text.ByteOffset, closer lexer.TokenKind) *Node {
	p.skipNewlines()
	if p.at(lexer.TokenLabel) || p.atOp("**") {
		n := p.parseHashPatternBody(start, func() bool {
			p.skipNewlines()
			return p.at(closer)
		})
		p.skipNewlines()
		p.expect(closer)
		n.Span = p.spanFrom(start)
		return n
	}
	return p.parseArrayPatternBody(start, closer)
}

// parseArrayPatternBody parses elements up to and including closer.
func (p *parser) parseArrayPatternBody(start text.ByteOffset, closer lexer.TokenKind) *Node {
	var elems []Value
	for {
		p.skipNewlines()
		if p.at(closer) {
			break
		}
		elems = append(elems, p.parsePattern())
		p.skipNewlines()
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	p.skipNewlines()
	p.expect(closer)
	return NewNode("array_pattern", p.spanFrom(start), elems...)
}

func (p *parser) parseHashPatternBody(start text.ByteOffset, done func() bool) *Node {
	var pairs []Value
	for !done() {
		t := p.tok()
		switch {
		case t.IsOp("**"):
			p.next()
			switch {
			case p.atKw("nil"):
				p.next()
				pairs = append(pairs, NewNode("match_nil_pattern", p.spanFrom(t.Span.Start)))
			case p.at(lexer.TokenIdent):
				v := p.matchVar(p.next())
				pairs = append(pairs, NewNode("match_rest", p.spanFrom(t.Span.Start), v))
			default:
				pairs = append(pairs, NewNode("match_rest", t.Span))
			}
		case t.Kind == lexer.TokenLabel:
			p.next()
			key := p.labelKey(t)
			name := strings.TrimSuffix(t.Text, ":")
			if p.at(lexer.TokenComma) || done() || p.atPatternEnd() {
				keySpan := text.Span{Start: t.Span.Start, End: t.Span.End - 1}
				p.scope.declare(name)
				pairs = append(pairs, &Node{Type: "match_var", Children: []Value{Symbol(name)}, Span: keySpan, Name: keySpan})
				break
			}
			val := p.parsePattern()
			pairs = append(pairs, NewNode("pair", t.Span.Cover(val.Span), key, val))
		default:
			p.unexpected()
		}
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	return NewNode("hash_pattern", p.spanFrom(start), pairs...)
}
