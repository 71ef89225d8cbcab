package syntax

import (
	"strings"

	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/text"
)

const (
	precOrOr  = 1
	precAndOp = 2
	precEq    = 4
	precCmp   = 5
	precPipe  = 6
	precAmp   = 7
	precShift = 8
	precAdd   = 9
	precMul   = 10
	precPow   = 12
)

var binaryPrec = map[string]int{
	"||":  precOrOr,
	"&&":  precAndOp,
	"<=>": precEq,
	"==":  precEq,
	"===": precEq,
	"!=":  precEq,
	"=~":  precEq,
	"!~":  precEq,
	"<":   precCmp,
	"<=":  precCmp,
	">":   precCmp,
	">=":  precCmp,
	"|":   precPipe,
	"^":   precPipe,
	"&":   precAmp,
	"<<":  precShift,
	">>":  precShift,
	"+":   precAdd,
	"-":   precAdd,
	"*":   precMul,
	"/":   precMul,
	"%":   precMul,
	"**":  precPow,
}

var opAssign = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%", "**=": "**",
	"|=": "|", "&=": "&", "^=": "^", "<<=": "<<", ">>=": ">>",
}

// parseArg parses an argument-level expression: everything below `not`, `and` and `or`.
func (p *parser) parseArg() *Node {
	return p.parseTernary()
}

func (p *parser) parseTernary() *Node {
	p.enter()
	defer p.leave()
	cond := p.parseRange()
	if !p.atOp("?") {
		return cond
	}
	p.next()
	p.skipNewlines()
	then := p.parseTernary()
	p.skipNewlines()
	if p.at(lexer.TokenLabel) {
		p.unexpected()
	}
	p.expectOp(":")
	p.skipNewlines()
	els := p.parseTernary()
	return NewNode("if", cond.Span.Cover(els.Span), cond, then, els)
}

func rangeType(op string) string {
	if op == "..." {
		return "erange"
	}
	return "irange"
}

func (p *parser) parseRange() *Node {
	if p.atOp("..") || p.atOp("...") {
		if !p.features.BeginlessRange {
			p.unexpected()
		}
		op := p.next()
		rhs := p.parseBinary(precOrOr)
		return NewNode(rangeType(op.Text), p.spanFrom(op.Span.Start), nil, rhs)
	}

	lhs := p.parseBinary(precOrOr)
	if !p.atOp("..") && !p.atOp("...") {
		return lhs
	}
	op := p.next()
	if p.rangeEndMissing() {
		if !p.features.EndlessRange {
			p.unexpected()
		}
		return NewNode(rangeType(op.Text), p.spanFrom(lhs.Span.Start), lhs, nil)
	}
	rhs := p.parseBinary(precOrOr)
	return NewNode(rangeType(op.Text), lhs.Span.Cover(rhs.Span), lhs, rhs)
}

func (p *parser) rangeEndMissing() bool {
	t := p.tok()
	switch t.Kind {
	case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace, lexer.TokenNewline,
		lexer.TokenSemicolon, lexer.TokenEOF, lexer.TokenComma:
		return true
	case lexer.TokenKeyword:
		switch t.Text {
		case "then", "do", "end", "if", "unless", "while", "until", "and", "or", "rescue":
			return true
		}
	}
	return false
}

func (p *parser) parseBinary(minPrec int) *Node {
	p.enter()
	defer p.leave()
	lhs := p.parseUnary()
	for {
		t := p.tok()
		if t.Kind != lexer.TokenOp {
			return lhs
		}
		prec, ok := binaryPrec[t.Text]
		if !ok || prec < minPrec {
			return lhs
		}
		p.next()
		p.skipNewlines()
		next := prec + 1
		if t.Text == "**" {
			next = prec
		}
		rhs := p.parseBinary(next)
		lhs = binaryNode(t.Text, lhs, rhs)
	}
}

func binaryNode(op string, lhs, rhs *Node) *Node {
	sp := lhs.Span.Cover(rhs.Span)
	switch op {
	case "&&":
		return NewNode("and", sp, lhs, rhs)
	case "||":
		return NewNode("or", sp, lhs, rhs)
	}
	return NewNode("send", sp, lhs, Symbol(op), rhs)
}

func (p *parser) parseUnary() *Node {
	p.enter()
	defer p.leave()
	t := p.tok()
	start := t.Span.Start
	switch {
	case t.IsOp("!"):
		p.next()
		operand := p.parseUnary()
		return NewNode("send", p.spanFrom(start), operand, Symbol("!"))
	case t.IsOp("~"):
		p.next()
		operand := p.parseUnary()
		return NewNode("send", p.spanFrom(start), operand, Symbol("~"))
	case t.IsOp("+"):
		p.next()
		if p.numericFollows() {
			return p.parseNumber(false, start)
		}
		operand := p.parseUnary()
		return NewNode("send", p.spanFrom(start), operand, Symbol("+@"))
	case t.IsOp("-"):
		p.next()
		if p.numericFollows() {
			if p.peek(1).IsOp("**") {
				operand := p.parseBinary(precPow)
				return NewNode("send", p.spanFrom(start), operand, Symbol("-@"))
			}
			return p.parseOperandFrom(p.parseNumber(true, start))
		}
		operand := p.parseBinary(precPow)
		return NewNode("send", p.spanFrom(start), operand, Symbol("-@"))
	case t.IsOp("&"), t.IsOp("*"), t.IsOp("**"):
		p.unexpected()
	case t.IsKeyword("not"):
		p.next()
		operand := p.parseUnary()
		return NewNode("send", p.spanFrom(start), operand, Symbol("!"))
	case t.IsKeyword("defined?"):
		p.next()
		var operand *Node
		if p.at(lexer.TokenLParen) {
			p.next()
			p.skipNewlines()
			operand = p.parseExpressionStatement()
			p.skipNewlines()
			p.expect(lexer.TokenRParen)
		} else {
			operand = p.parseArg()
		}
		return NewNode("defined?", p.spanFrom(start), operand)
	}
	return p.parseOperand()
}

func (p *parser) numericFollows() bool {
	t := p.tok()
	if t.SpaceBefore() {
		return false
	}
	switch t.Kind {
	case lexer.TokenInt, lexer.TokenFloat, lexer.TokenRational, lexer.TokenImaginary:
		return true
	}
	return false
}

// parseOperand parses a primary expression with its postfix chain and an optional assignment.
func (p *parser) parseOperand() *Node {
	return p.parseOperandFrom(p.parsePrimary())
}

func (p *parser) parseOperandFrom(primary *Node) *Node {
	return p.parseAssignment(p.parsePostfix(primary))
}

func (p *parser) parseAssignment(n *Node) *Node {
	t := p.tok()
	if t.Kind != lexer.TokenOp {
		return n
	}

	switch {
	case t.Text == "=":
		target := p.assignTarget(n, false)
		p.next()
		p.skipNewlines()
		rhs := p.parseAssignmentValue()
		return withValue(target, rhs)
	case t.Text == "||=" || t.Text == "&&=":
		target := p.assignTarget(n, true)
		p.next()
		p.skipNewlines()
		rhs := p.parseAssignmentValue()
		typ := "or_asgn"
		if t.Text == "&&=" {
			typ = "and_asgn"
		}
		return NewNode(typ, target.Span.Cover(rhs.Span), target, rhs)
	}
	if op, ok := opAssign[t.Text]; ok {
		target := p.assignTarget(n, true)
		p.next()
		p.skipNewlines()
		rhs := p.parseAssignmentValue()
		return NewNode("op_asgn", target.Span.Cover(rhs.Span), target, Symbol(op), rhs)
	}
	return n
}

func (p *parser) parseAssignmentValue() *Node {
	if p.atOp("*") {
		splat := p.parseSplatOrArg()
		return NewNode("array", splat.Span, splat)
	}
	v := p.parseArg()
	if p.atKw("rescue") && p.peek(1).Kind != lexer.TokenNewline {
		p.next()
		rhs := p.parseArg()
		v = NewNode("rescue", v.Span.Cover(rhs.Span), v, NewNode("resbody", rhs.Span, nil, nil, rhs), nil)
	}
	return v
}

func isAssignable(n *Node) bool {
	switch n.Type {
	case "lvar", "ivar", "gvar", "cvar", "const":
		return true
	case "send", "csend":
		name, _ := n.Children[1].(Symbol)
		if strings.HasSuffix(string(name), "?") || strings.HasSuffix(string(name), "!") {
			return false
		}
		if name == "[]" {
			return true
		}
		if len(n.Children) != 2 || !isIdentifierName(string(name)) {
			return false
		}
		return true
	}
	return false
}

func isIdentifierName(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// assignTarget converts an expression into an assignment target.
// For operator assignments attribute and index targets keep their reader form.
func (p *parser) assignTarget(n *Node, opAssign bool) *Node {
	if !isAssignable(n) {
		p.unexpected()
	}
	switch n.Type {
	case "lvar":
		return &Node{Type: "lvasgn", Children: []Value{n.Children[0]}, Span: n.Span, Name: n.Name}
	case "ivar", "gvar", "cvar":
		return &Node{Type: n.Type[:2] + "asgn", Children: []Value{n.Children[0]}, Span: n.Span, Name: n.Name}
	case "const":
		return &Node{Type: "casgn", Children: []Value{n.Children[0], n.Children[1]}, Span: n.Span, Name: n.Name}
	}

	// send or csend
	if n.Children[0] == nil {
		name := string(n.Children[1].(Symbol))
		if name == "[]" {
			p.unexpected()
		}
		p.scope.declare(name)
		return &Node{Type: "lvasgn", Children: []Value{Symbol(name)}, Span: n.Span, Name: n.Name}
	}
	if opAssign {
		return n
	}
	children := append([]Value{}, n.Children...)
	children[1] = Symbol(string(n.Children[1].(Symbol)) + "=")
	return &Node{Type: n.Type, Children: children, Span: n.Span, Name: n.Name}
}

func withValue(target, value *Node) *Node {
	target.Children = append(target.Children, value)
	target.Span = target.Span.Cover(value.Span)
	return target
}

// primary expressions

func (p *parser) parsePrimary() *Node {
	p.enter()
	defer p.leave()
	t := p.tok()
	start := t.Span.Start

	switch t.Kind {
	case lexer.TokenInt, lexer.TokenFloat, lexer.TokenRational, lexer.TokenImaginary:
		return p.parseNumber(false, start)
	case lexer.TokenString:
		return p.parseStringLiteral()
	case lexer.TokenHeredoc:
		return p.parseHeredoc()
	case lexer.TokenChar:
		return p.parseChar()
	case lexer.TokenSymbol:
		return p.parseSymbol()
	case lexer.TokenRegexp:
		return p.parseRegexp()
	case lexer.TokenWords, lexer.TokenSymbols:
		return p.parseWords()
	case lexer.TokenIdent:
		return p.parseIdentifier()
	case lexer.TokenConst:
		return p.parseConstant()
	case lexer.TokenIVar:
		p.next()
		return &Node{Type: "ivar", Children: []Value{Symbol(t.Text)}, Span: t.Span, Name: t.Span}
	case lexer.TokenCVar:
		p.next()
		return &Node{Type: "cvar", Children: []Value{Symbol(t.Text)}, Span: t.Span, Name: t.Span}
	case lexer.TokenGVar:
		p.next()
		return globalVariable(t)
	case lexer.TokenLParen:
		return p.parseParenthesized()
	case lexer.TokenLBracket:
		return p.parseArray()
	case lexer.TokenLBrace:
		return p.parseHash()
	case lexer.TokenLambda:
		return p.parseLambda()
	case lexer.TokenKeyword:
		return p.parseKeyword()
	case lexer.TokenOp:
		if t.Text == "::" {
			p.next()
			nameTok := p.expect(lexer.TokenConst)
			cbase := NewNode("cbase", t.Span)
			return &Node{Type: "const", Children: []Value{cbase, Symbol(nameTok.Text)}, Span: p.spanFrom(start), Name: nameTok.Span}
		}
	}
	p.unexpected()
	return nil
}

func globalVariable(t lexer.Token) *Node {
	name := t.Text
	if len(name) > 1 && name[1] >= '1' && name[1] <= '9' {
		return &Node{Type: "nth_ref", Children: []Value{Literal(name[1:])}, Span: t.Span, Name: t.Span}
	}
	switch name {
	case "$&", "$`", "$'", "$+":
		return &Node{Type: "back_ref", Children: []Value{Symbol(name)}, Span: t.Span, Name: t.Span}
	}
	return &Node{Type: "gvar", Children: []Value{Symbol(name)}, Span: t.Span, Name: t.Span}
}

func isNumberedParam(name string) bool {
	return len(name) == 2 && name[0] == '_' && name[1] >= '1' && name[1] <= '9'
}

func (p *parser) parseIdentifier() *Node {
	t := p.tok()
	name := t.Text
	adjacentParen := p.peek(1).Kind == lexer.TokenLParen && !p.peek(1).SpaceBefore()

	if !adjacentParen && p.scope.isLocal(name) {
		p.next()
		return &Node{Type: "lvar", Children: []Value{Symbol(name)}, Span: t.Span, Name: t.Span}
	}
	if !adjacentParen && p.features.NumberedParams && isNumberedParam(name) {
		if sc := p.nearestBlock(); sc != nil && !sc.explicit {
			p.next()
			sc.numparams = max(sc.numparams, int(name[1]-'0'))
			return &Node{Type: "lvar", Children: []Value{Symbol(name)}, Span: t.Span, Name: t.Span}
		}
	}
	p.next()
	return p.parseCallRest(nil, t, "send")
}

func (p *parser) nearestBlock() *scope {
	for sc := p.scope; sc != nil; sc = sc.parent {
		if sc.block {
			return sc
		}
		if sc.hard {
			return nil
		}
	}
	return nil
}

func (p *parser) parseConstant() *Node {
	t := p.next()
	next := p.tok()
	if (next.Kind == lexer.TokenLParen && !next.SpaceBefore()) || p.commandArgsFollow(t) {
		return p.parseCallRest(nil, t, "send")
	}
	return &Node{Type: "const", Children: []Value{nil, Symbol(t.Text)}, Span: t.Span, Name: t.Span}
}

// parseCallRest parses the arguments and block of a method call whose name token was just consumed.
func (p *parser) parseCallRest(recv *Node, nameTok lexer.Token, typ string) *Node {
	start := nameTok.Span.Start
	if recv != nil {
		start = recv.Span.Start
	}
	n := NewNode(typ, text.Span{}, recv, Symbol(nameTok.Text))
	n.Name = nameTok.Span

	switch {
	case p.at(lexer.TokenLParen) && !p.tok().SpaceBefore():
		n.Children = append(n.Children, p.parseParenArgs()...)
	case p.commandArgsFollow(nameTok):
		p.noDo++
		args := p.parseCallArgs(nil)
		p.noDo--
		n.Children = append(n.Children, args...)
		n.Span = p.spanFrom(start)
		if p.atKw("do") && p.noDo == 0 {
			return p.parseBlock(n)
		}
		return n
	}
	n.Span = p.spanFrom(start)

	if p.at(lexer.TokenLBrace) || (p.atKw("do") && p.noDo == 0) {
		return p.parseBlock(n)
	}
	return n
}

// commandArgsFollow reports whether the method name tok is followed by arguments without parentheses.
func (p *parser) commandArgsFollow(nameTok lexer.Token) bool {
	if !nameTok.State.IsArg() {
		return false
	}
	t := p.tok()
	if !t.SpaceBefore() {
		return false
	}
	next := p.peek(1)
	switch t.Kind {
	case lexer.TokenIdent, lexer.TokenConst, lexer.TokenIVar, lexer.TokenCVar, lexer.TokenGVar,
		lexer.TokenInt, lexer.TokenFloat, lexer.TokenRational, lexer.TokenImaginary,
		lexer.TokenString, lexer.TokenSymbol, lexer.TokenRegexp, lexer.TokenWords, lexer.TokenSymbols,
		lexer.TokenLabel, lexer.TokenLambda, lexer.TokenLBracket, lexer.TokenLParen,
		lexer.TokenHeredoc, lexer.TokenChar:
		return true
	case lexer.TokenKeyword:
		switch t.Text {
		case "nil", "true", "false", "self", "not", "defined?", "def", "begin", "case", "super",
			"yield", "__FILE__", "__LINE__", "__ENCODING__", "lambda", "proc":
			return true
		}
	case lexer.TokenOp:
		switch t.Text {
		case "!", "~":
			return true
		case "-", "+", "*", "**", "&", "::":
			return !next.SpaceBefore()
		case "..", "...":
			return p.features.BeginlessRange && !next.SpaceBefore()
		}
	}
	return false
}

func (p *parser) parseParenArgs() []Value {
	p.next() // (
	saved := p.noDo
	p.noDo = 0
	defer func() { p.noDo = saved }()

	p.skipNewlines()
	if p.atOp("...") && p.features.ArgForwarding && p.inDefForward {
		t := p.next()
		p.skipNewlines()
		p.expect(lexer.TokenRParen)
		return []Value{NewNode("forwarded_args", t.Span)}
	}
	args := p.parseCallArgs(func() bool { return p.at(lexer.TokenRParen) })
	p.skipNewlines()
	p.expect(lexer.TokenRParen)
	return args
}

// parseCallArgs parses comma separated call arguments. Trailing labels and
// `=>` pairs are gathered into a hash and a block pass goes last.
// done reports a closing token; nil means the list ends at the first missing comma.
func (p *parser) parseCallArgs(done func() bool) []Value {
	var args []Value
	var pairs []Value
	var blockPass *Node
	pairsStart := text.ByteOffset(0)

	for {
		if done != nil {
			p.skipNewlines()
			if done() {
				break
			}
		}
		t := p.tok()
		switch {
		case t.IsOp("&") && blockPass == nil:
			p.next()
			v := p.parseArg()
			blockPass = NewNode("block_pass", p.spanFrom(t.Span.Start), v)
		case blockPass != nil:
			p.unexpected()
		case t.IsOp("**"):
			if len(pairs) == 0 {
				pairsStart = t.Span.Start
			}
			p.next()
			v := p.parseArg()
			pairs = append(pairs, NewNode("kwsplat", p.spanFrom(t.Span.Start), v))
		case t.Kind == lexer.TokenLabel:
			if len(pairs) == 0 {
				pairsStart = t.Span.Start
			}
			pairs = append(pairs, p.parseLabelPair())
		default:
			v := p.parseSplatOrArg()
			if p.atOp("=>") {
				if len(pairs) == 0 {
					pairsStart = v.Span.Start
				}
				p.next()
				p.skipNewlines()
				val := p.parseArg()
				pairs = append(pairs, NewNode("pair", v.Span.Cover(val.Span), v, val))
				break
			}
			if len(pairs) > 0 {
				p.failAt(v.Span, unexpectedMessage(p.opts.ErrorStyle, t))
			}
			args = append(args, v)
		}
		if !p.accept(lexer.TokenComma) {
			break
		}
		p.skipNewlines()
	}

	if len(pairs) > 0 {
		args = append(args, NewNode("hash", p.spanFromTo(pairsStart, pairs), pairs...))
	}
	if blockPass != nil {
		args = append(args, blockPass)
	}
	return args
}

func (p *parser) spanFromTo(start text.ByteOffset, vals []Value) text.Span {
	last, _ := vals[len(vals)-1].(*Node)
	if last == nil {
		return text.Span{Start: start, End: start}
	}
	return text.Span{Start: start, End: last.Span.End}
}

func (p *parser) parseSplatOrArg() *Node {
	if p.atOp("*") {
		t := p.next()
		v := p.parseArg()
		return NewNode("splat", p.spanFrom(t.Span.Start), v)
	}
	return p.parseArg()
}

func (p *parser) parseLabelPair() *Node {
	t := p.next()
	key := p.labelKey(t)
	p.skipNewlines()
	val := p.parseArg()
	return NewNode("pair", t.Span.Cover(val.Span), key, val)
}

// labelKey converts a label token (`a:` or `"a b":`) into its symbol node.
func (p *parser) labelKey(t lexer.Token) *Node {
	body := strings.TrimSuffix(t.Text, ":")
	keySpan := text.Span{Start: t.Span.Start, End: t.Span.End - 1}
	if body == "" || (body[0] != '"' && body[0] != '\'') {
		return &Node{Type: "sym", Children: []Value{Symbol(body)}, Span: keySpan, Name: keySpan}
	}
	str := p.stringNode(body, t.Span.Start)
	return symbolFromString(str, keySpan)
}

// postfix

func (p *parser) parsePostfix(n *Node) *Node {
	for {
		t := p.tok()
		switch {
		case t.Kind == lexer.TokenPeriod || t.IsOp("&."):
			typ := "send"
			if t.IsOp("&.") {
				typ = "csend"
			}
			p.next()
			p.skipNewlines()
			nameTok := p.tok()
			switch nameTok.Kind {
			case lexer.TokenIdent, lexer.TokenConst, lexer.TokenKeyword:
				p.next()
				n = p.parseCallRest(n, nameTok, typ)
			case lexer.TokenLParen:
				nameTok.Text = "call"
				nameTok.Span = text.Span{Start: nameTok.Span.Start, End: nameTok.Span.Start}
				n = p.parseCallRest(n, nameTok, typ)
			case lexer.TokenOp:
				if !operatorSymbols[nameTok.Text] {
					p.unexpected()
				}
				p.next()
				n = p.parseCallRest(n, nameTok, typ)
			default:
				p.unexpected()
			}
		case t.IsOp("::"):
			p.next()
			nameTok := p.tok()
			switch nameTok.Kind {
			case lexer.TokenConst:
				p.next()
				next := p.tok()
				if next.Kind == lexer.TokenLParen && !next.SpaceBefore() {
					n = p.parseCallRest(n, nameTok, "send")
					continue
				}
				n = &Node{Type: "const", Children: []Value{n, Symbol(nameTok.Text)}, Span: n.Span.Cover(nameTok.Span), Name: nameTok.Span}
			case lexer.TokenIdent:
				p.next()
				n = p.parseCallRest(n, nameTok, "send")
			default:
				p.unexpected()
			}
		case t.Kind == lexer.TokenLBracket:
			if t.SpaceBefore() && !isIndexable(n) {
				return n
			}
			p.next()
			saved := p.noDo
			p.noDo = 0
			args := p.parseCallArgs(func() bool { return p.at(lexer.TokenRBracket) })
			p.skipNewlines()
			end := p.expect(lexer.TokenRBracket)
			p.noDo = saved
			children := append([]Value{n, Symbol("[]")}, args...)
			n = &Node{Type: "send", Children: children, Span: n.Span.Cover(end.Span), Name: text.Span{Start: t.Span.Start, End: end.Span.End}}
		default:
			return n
		}
	}
}

func isIndexable(n *Node) bool {
	switch n.Type {
	case "lvar", "ivar", "gvar", "cvar", "const", "array", "hash", "str", "dstr", "begin":
		return true
	case "send", "csend":
		return len(n.Children) > 2
	}
	return false
}
