package syntax

import (
	"strconv"

	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/text"
)

func (p *parser) parseKeyword() *Node {
	t := p.tok()
	switch t.Text {
	case "nil", "true", "false", "self":
		p.next()
		return NewNode(t.Text, t.Span)
	case "__FILE__":
		p.next()
		return NewNode("str", t.Span, Str("(string)"))
	case "__LINE__":
		p.next()
		return NewNode("int", t.Span, Literal(strconv.Itoa(p.lines.Point(t.Span.Start).Line)))
	case "__ENCODING__":
		p.next()
		enc := NewNode("const", t.Span, nil, Symbol("Encoding"))
		return NewNode("const", t.Span, enc, Symbol("UTF_8"))
	case "if", "unless":
		return p.parseIf()
	case "while", "until":
		return p.parseLoop()
	case "for":
		return p.parseFor()
	case "case":
		return p.parseCase()
	case "def":
		return p.parseDef()
	case "class":
		return p.parseClass()
	case "module":
		return p.parseModule()
	case "begin":
		return p.parseBegin()
	case "return", "break", "next":
		return p.parseJump()
	case "redo", "retry":
		p.next()
		return NewNode(t.Text, t.Span)
	case "yield":
		return p.parseYield()
	case "super":
		return p.parseSuper()
	case "alias":
		return p.parseAlias()
	case "undef":
		return p.parseUndef()
	case "BEGIN", "END":
		return p.parsePrePostExe()
	case "not", "defined?":
		return p.parseUnary()
	}
	p.unexpected()
	return nil
}

// atValueEnd reports whether the current token cannot start an argument of return, break or next.
func (p *parser) atValueEnd() bool {
	t := p.tok()
	switch t.Kind {
	case lexer.TokenNewline, lexer.TokenSemicolon, lexer.TokenEOF,
		lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
		return true
	case lexer.TokenKeyword:
		switch t.Text {
		case "if", "unless", "while", "until", "and", "or", "end", "then", "do", "rescue",
			"else", "elsif", "ensure", "when", "in":
			return true
		}
	case lexer.TokenOp:
		switch t.Text {
		case "*", "**", "&", "-", "!", "::", "..", "...", "~", "+":
			return false
		}
		return true
	}
	return false
}

func (p *parser) parseIf() *Node {
	kw := p.next()
	cond := p.parseExpressionStatement()
	p.parseThen()

	if kw.Text == "unless" {
		body := p.body(p.parseStatements("else", "end"))
		var els *Node
		if p.atKw("else") {
			p.next()
			els = p.body(p.parseStatements("end"))
		}
		p.expectKw("end")
		return NewNode("if", p.spanFrom(kw.Span.Start), cond, els, body)
	}

	n := p.parseIfRest(kw.Span.Start, cond)
	p.expectKw("end")
	n.Span = p.spanFrom(kw.Span.Start)
	return n
}

func (p *parser) parseIfRest(start text.ByteOffset, cond *Node) *Node {
	body := p.body(p.parseStatements("elsif", "else", "end"))
	var els *Node
	switch {
	case p.atKw("elsif"):
		kw := p.next()
		c := p.parseExpressionStatement()
		p.parseThen()
		els = p.parseIfRest(kw.Span.Start, c)
	case p.atKw("else"):
		p.next()
		els = p.body(p.parseStatements("end"))
	}
	return NewNode("if", p.spanFrom(start), cond, body, els)
}

// parseDo consumes the separator after a loop header.
func (p *parser) parseDo() {
	if p.atKw("do") {
		p.next()
		return
	}
	if !p.skipTerms() {
		p.unexpected()
	}
}

func (p *parser) parseLoop() *Node {
	kw := p.next()
	p.noDo++
	cond := p.parseExpressionStatement()
	p.noDo--
	p.parseDo()
	body := p.body(p.parseStatements("end"))
	p.expectKw("end")
	return NewNode(kw.Text, p.spanFrom(kw.Span.Start), cond, body)
}

func (p *parser) parseFor() *Node {
	kw := p.next()
	start := p.tok().Span.Start
	var targets []Value
	for {
		targets = append(targets, p.parseMlhsItem())
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	var target *Node
	if len(targets) == 1 {
		target = targets[0].(*Node)
	} else {
		target = NewNode("mlhs", p.spanFrom(start), targets...)
	}
	p.expectKw("in")
	p.noDo++
	iter := p.parseExpressionStatement()
	p.noDo--
	p.parseDo()
	body := p.body(p.parseStatements("end"))
	p.expectKw("end")
	return NewNode("for", p.spanFrom(kw.Span.Start), target, iter, body)
}

func (p *parser) parseCase() *Node {
	kw := p.next()
	var subject *Node
	if !p.atTerm() && !p.atKw("when") {
		subject = p.parseExpressionStatement()
	}
	p.skipTerms()

	if p.atKw("in") {
		if !p.features.PatternMatching || subject == nil {
			p.unexpected()
		}
		return p.parseCaseMatch(kw.Span.Start, subject)
	}

	children := []Value{subject}
	if !p.atKw("when") {
		p.unexpected()
	}
	for p.atKw("when") {
		w := p.next()
		var conds []Value
		for {
			p.skipNewlines()
			conds = append(conds, p.parseSplatOrArg())
			if !p.accept(lexer.TokenComma) {
				break
			}
		}
		p.parseThen()
		body := p.body(p.parseStatements("when", "else", "end"))
		conds = append(conds, body)
		children = append(children, NewNode("when", p.spanFrom(w.Span.Start), conds...))
	}
	var els *Node
	if p.atKw("else") {
		p.next()
		els = p.body(p.parseStatements("end"))
	}
	p.expectKw("end")
	children = append(children, els)
	return NewNode("case", p.spanFrom(kw.Span.Start), children...)
}

func (p *parser) parseJump() *Node {
	kw := p.next()
	var args []Value
	if !p.atValueEnd() {
		args = p.parseCallArgs(nil)
	}
	return NewNode(kw.Text, p.spanFrom(kw.Span.Start), args...)
}

func (p *parser) parseYield() *Node {
	kw := p.next()
	var args []Value
	switch {
	case p.at(lexer.TokenLParen) && !p.tok().SpaceBefore():
		args = p.parseParenArgs()
	case p.commandArgsFollow(kw):
		args = p.parseCallArgs(nil)
	}
	return NewNode("yield", p.spanFrom(kw.Span.Start), args...)
}

func (p *parser) parseSuper() *Node {
	kw := p.next()
	var n *Node
	switch {
	case p.at(lexer.TokenLParen) && !p.tok().SpaceBefore():
		n = NewNode("super", text.Span{}, p.parseParenArgs()...)
	case p.commandArgsFollow(kw):
		p.noDo++
		n = NewNode("super", text.Span{}, p.parseCallArgs(nil)...)
		p.noDo--
	default:
		n = NewNode("zsuper", text.Span{})
	}
	n.Span = p.spanFrom(kw.Span.Start)
	if p.at(lexer.TokenLBrace) || (p.atKw("do") && p.noDo == 0) {
		return p.parseBlock(n)
	}
	return n
}

// parseMethodName parses a method name operand of alias and undef.
func (p *parser) parseMethodName() *Node {
	t := p.tok()
	switch t.Kind {
	case lexer.TokenIdent, lexer.TokenConst, lexer.TokenKeyword, lexer.TokenOp:
		if t.Kind == lexer.TokenOp && !operatorSymbols[t.Text] {
			p.unexpected()
		}
		p.next()
		return &Node{Type: "sym", Children: []Value{Symbol(t.Text)}, Span: t.Span, Name: t.Span}
	case lexer.TokenSymbol:
		return p.parseSymbol()
	}
	p.unexpected()
	return nil
}

func (p *parser) parseAlias() *Node {
	kw := p.next()
	if p.at(lexer.TokenGVar) {
		to := p.next()
		from := p.expect(lexer.TokenGVar)
		return NewNode("alias", p.spanFrom(kw.Span.Start), globalVariable(to), globalVariable(from))
	}
	to := p.parseMethodName()
	from := p.parseMethodName()
	return NewNode("alias", p.spanFrom(kw.Span.Start), to, from)
}

func (p *parser) parseUndef() *Node {
	kw := p.next()
	var names []Value
	for {
		names = append(names, p.parseMethodName())
		if !p.accept(lexer.TokenComma) {
			break
		}
		p.skipNewlines()
	}
	return NewNode("undef", p.spanFrom(kw.Span.Start), names...)
}

func (p *parser) parsePrePostExe() *Node {
	kw := p.next()
	typ := "preexe"
	if kw.Text == "END" {
		typ = "postexe"
	}
	p.expect(lexer.TokenLBrace)
	body := p.body(p.parseStatements())
	p.expect(lexer.TokenRBrace)
	return NewNode(typ, p.spanFrom(kw.Span.Start), body)
}

// definitions

func (p *parser) parseDef() *Node {
	kw := p.next()

	var singleton *Node
	nameTok := p.tok()
	if p.peek(1).Kind == lexer.TokenPeriod {
		switch nameTok.Kind {
		case lexer.TokenKeyword:
			if nameTok.Text != "self" {
				p.unexpected()
			}
			singleton = NewNode("self", nameTok.Span)
		case lexer.TokenIdent:
			if p.scope.isLocal(nameTok.Text) {
				singleton = &Node{Type: "lvar", Children: []Value{Symbol(nameTok.Text)}, Span: nameTok.Span, Name: nameTok.Span}
			} else {
				singleton = &Node{Type: "send", Children: []Value{nil, Symbol(nameTok.Text)}, Span: nameTok.Span, Name: nameTok.Span}
			}
		case lexer.TokenConst:
			singleton = &Node{Type: "const", Children: []Value{nil, Symbol(nameTok.Text)}, Span: nameTok.Span, Name: nameTok.Span}
		case lexer.TokenIVar:
			singleton = &Node{Type: "ivar", Children: []Value{Symbol(nameTok.Text)}, Span: nameTok.Span, Name: nameTok.Span}
		case lexer.TokenCVar:
			singleton = &Node{Type: "cvar", Children: []Value{Symbol(nameTok.Text)}, Span: nameTok.Span, Name: nameTok.Span}
		case lexer.TokenGVar:
			singleton = globalVariable(nameTok)
		default:
			p.unexpected()
		}
		p.next()
		p.next() // .
		nameTok = p.tok()
	}

	switch nameTok.Kind {
	case lexer.TokenIdent, lexer.TokenConst, lexer.TokenKeyword:
	case lexer.TokenOp:
		if !operatorSymbols[nameTok.Text] && nameTok.Text != "[]=" {
			p.unexpected()
		}
	default:
		p.unexpected()
	}
	p.next()

	p.pushScope(true)
	savedForward := p.inDefForward
	params := p.parseDefParams()
	p.inDefForward = params.Type == "forward_args"
	body := p.parseBody(true)
	p.expectKw("end")
	p.inDefForward = savedForward
	p.popScope()

	var n *Node
	if singleton != nil {
		n = NewNode("defs", p.spanFrom(kw.Span.Start), singleton, Symbol(nameTok.Text), params, body)
	} else {
		n = NewNode("def", p.spanFrom(kw.Span.Start), Symbol(nameTok.Text), params, body)
	}
	n.Name = nameTok.Span
	return n
}

// parseCpath parses a class or module name: Foo, Foo::Bar or ::Foo.
func (p *parser) parseCpath() *Node {
	var n *Node
	if p.atOp("::") {
		n = p.parsePrimary()
	} else {
		t := p.expect(lexer.TokenConst)
		n = &Node{Type: "const", Children: []Value{nil, Symbol(t.Text)}, Span: t.Span, Name: t.Span}
	}
	for p.atOp("::") {
		p.next()
		t := p.expect(lexer.TokenConst)
		n = &Node{Type: "const", Children: []Value{n, Symbol(t.Text)}, Span: n.Span.Cover(t.Span), Name: t.Span}
	}
	return n
}

func (p *parser) parseClass() *Node {
	kw := p.next()
	if p.atOp("<<") {
		p.next()
		expr := p.parseExpressionStatement()
		p.skipTerms()
		p.pushScope(true)
		body := p.parseBody(true)
		p.popScope()
		p.expectKw("end")
		return NewNode("sclass", p.spanFrom(kw.Span.Start), expr, body)
	}

	name := p.parseCpath()
	var super *Node
	if p.atOp("<") {
		p.next()
		super = p.parseArg()
	}
	if !p.skipTerms() {
		p.unexpected()
	}
	p.pushScope(true)
	body := p.parseBody(true)
	p.popScope()
	p.expectKw("end")
	return NewNode("class", p.spanFrom(kw.Span.Start), name, super, body)
}

func (p *parser) parseModule() *Node {
	kw := p.next()
	name := p.parseCpath()
	if !p.skipTerms() {
		p.unexpected()
	}
	p.pushScope(true)
	body := p.parseBody(true)
	p.popScope()
	p.expectKw("end")
	return NewNode("module", p.spanFrom(kw.Span.Start), name, body)
}

func (p *parser) parseBegin() *Node {
	kw := p.next()
	body := p.parseBody(true)
	p.expectKw("end")
	return NewNode("kwbegin", p.spanFrom(kw.Span.Start), flatten(body)...)
}

// flatten returns the statements of a begin node, or the node itself.
func flatten(n *Node) []Value {
	switch {
	case n == nil:
		return nil
	case n.Type == "begin":
		return n.Children
	}
	return []Value{n}
}

func (p *parser) parseParenthesized() *Node {
	open := p.next()
	saved := p.noDo
	p.noDo = 0
	stmts := p.parseStatements()
	p.noDo = saved
	p.skipTerms()
	p.expect(lexer.TokenRParen)
	return NewNode("begin", p.spanFrom(open.Span.Start), flatten(p.body(stmts))...)
}

// blocks

func (p *parser) parseBlock(call *Node) *Node {
	open := p.next()
	saved := p.noDo
	p.noDo = 0
	defer func() { p.noDo = saved }()

	p.pushScope(false)
	params := p.parseBlockParams()
	p.scope.explicit = len(params.Children) > 0

	var body *Node
	if open.Kind == lexer.TokenLBrace {
		body = p.body(p.parseStatements())
		p.expect(lexer.TokenRBrace)
	} else {
		if p.features.BlockRescue {
			body = p.parseBody(true)
		} else {
			body = p.parseBody(false)
		}
		p.expectKw("end")
	}
	sc := p.popScope()

	sp := call.Span.Cover(p.spanFrom(open.Span.Start))
	if sc.numparams > 0 && !sc.explicit {
		return NewNode("numblock", sp, call, Literal(strconv.Itoa(sc.numparams)), body)
	}
	return NewNode("block", sp, call, params, body)
}

func (p *parser) parseLambda() *Node {
	arrow := p.next()
	lambda := NewNode("lambda", arrow.Span)

	p.pushScope(false)
	var params *Node
	switch {
	case p.at(lexer.TokenLParen):
		params = p.parseParamList(lexer.TokenRParen, true)
	case p.at(lexer.TokenIdent) || p.atOp("*") || p.atOp("&") || p.atOp("**") || p.at(lexer.TokenLabel):
		params = p.parseParams(func() bool { return p.at(lexer.TokenLBrace) || p.atKw("do") }, false)
	default:
		params = NewNode("args", text.Span{Start: arrow.Span.End, End: arrow.Span.End})
	}
	p.scope.explicit = len(params.Children) > 0

	saved := p.noDo
	p.noDo = 0
	var body *Node
	switch {
	case p.at(lexer.TokenLBrace):
		p.next()
		body = p.body(p.parseStatements())
		p.expect(lexer.TokenRBrace)
	case p.atKw("do"):
		p.next()
		body = p.parseBody(p.features.BlockRescue)
		p.expectKw("end")
	default:
		p.unexpected()
	}
	p.noDo = saved
	sc := p.popScope()

	sp := p.spanFrom(arrow.Span.Start)
	if sc.numparams > 0 && !sc.explicit {
		return NewNode("numblock", sp, lambda, Literal(strconv.Itoa(sc.numparams)), body)
	}
	return NewNode("block", sp, lambda, params, body)
}
