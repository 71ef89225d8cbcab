package syntax

import (
	"context"
	"fmt"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/text"
)

// Options control parsing.
type Options struct {
	// Version selects the grammar. Zero means the newest supported version.
	Version    grammar.Version
	ErrorStyle ErrorStyle
	// Backend is the name prefixed to parser-style error messages.
	Backend string
}

// Parse parses src with the grammar of opts.Version.
//
// An empty program yields a nil node and a nil error. Source the grammar
// rejects yields a *SyntaxError; any other error comes from ctx.
func Parse(ctx context.Context, src []byte, opts Options) (*Node, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := opts.Version
	if v == 0 {
		v = grammar.MaxSupported
	}
	lexRes := lexer.Lex(src, lexer.Options{Version: v})

	p := &parser{
		ctx:      ctx,
		src:      src,
		toks:     lexRes.Tokens,
		diags:    lexRes.Diagnostics,
		features: grammar.FeaturesFor(v),
		version:  v,
		opts:     opts,
		lines:    text.NewLineIndex(src),
		scope:    &scope{vars: map[string]bool{}, hard: true},
	}
	return p.parseProgram()
}

// MaxDepth bounds how deeply expressions may nest before parsing gives up.
const MaxDepth = 10000

// bailout unwinds the recursive descent after the first error.
type bailout struct{}

type parser struct {
	ctx      context.Context
	src      []byte
	toks     []lexer.Token
	diags    []lexer.Diagnostic
	pos      int
	features grammar.Features
	version  grammar.Version
	opts     Options
	lines    *text.LineIndex
	scope    *scope

	// noDo is positive while a `do` keyword belongs to an enclosing
	// construct (while conditions, command arguments).
	noDo int
	// inDefForward is set inside a method declared with (...).
	inDefForward bool
	depth        int

	err error
}

type scope struct {
	vars   map[string]bool
	parent *scope
	// hard scopes (program, def, class, module) hide outer locals.
	hard bool
	// block scopes may use numbered parameters.
	block     bool
	numparams int
	explicit  bool // the block declared parameters
}

func (s *scope) declare(name string) {
	s.vars[name] = true
}

func (s *scope) isLocal(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.vars[name] {
			return true
		}
		if sc.hard {
			return false
		}
	}
	return false
}

func (p *parser) pushScope(hard bool) {
	p.scope = &scope{vars: map[string]bool{}, parent: p.scope, hard: hard, block: !hard}
}

func (p *parser) popScope() *scope {
	sc := p.scope
	p.scope = sc.parent
	return sc
}

func (p *parser) parseProgram() (root *Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			root, err = nil, p.err
		}
	}()

	stmts := p.parseStatements()
	p.skipTerms()
	if !p.at(lexer.TokenEOF) {
		p.unexpected()
	}
	return p.body(stmts), nil
}

// token access

func (p *parser) tok() lexer.Token {
	return p.toks[p.pos]
}

func (p *parser) peek(n int) lexer.Token {
	i := min(p.pos+n, len(p.toks)-1)
	return p.toks[i]
}

func (p *parser) next() lexer.Token {
	t := p.toks[p.pos]
	if t.Kind != lexer.TokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) at(kind lexer.TokenKind) bool {
	return p.tok().Kind == kind
}

func (p *parser) atOp(op string) bool {
	return p.tok().IsOp(op)
}

func (p *parser) atKw(kw string) bool {
	return p.tok().IsKeyword(kw)
}

func (p *parser) accept(kind lexer.TokenKind) bool {
	if p.at(kind) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind lexer.TokenKind) lexer.Token {
	if !p.at(kind) {
		p.unexpected()
	}
	return p.next()
}

func (p *parser) expectOp(op string) lexer.Token {
	if !p.atOp(op) {
		p.unexpected()
	}
	return p.next()
}

func (p *parser) expectKw(kw string) lexer.Token {
	if !p.atKw(kw) {
		p.unexpected()
	}
	return p.next()
}

func (p *parser) atTerm() bool {
	return p.at(lexer.TokenNewline) || p.at(lexer.TokenSemicolon)
}

// skipTerms skips newlines and semicolons and reports whether any were present.
func (p *parser) skipTerms() bool {
	skipped := false
	for p.atTerm() {
		p.next()
		skipped = true
	}
	return skipped
}

func (p *parser) skipNewlines() {
	for p.at(lexer.TokenNewline) {
		p.next()
	}
}

func (p *parser) prevEnd() text.ByteOffset {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].Span.End
}

func (p *parser) spanFrom(start text.ByteOffset) text.Span {
	end := p.prevEnd()
	if end < start {
		end = start
	}
	return text.Span{Start: start, End: end}
}

// errors

func (p *parser) unexpected() {
	t := p.tok()
	if t.Kind == lexer.TokenError {
		for _, d := range p.diags {
			if d.Span == t.Span {
				p.failAt(t.Span, d.Message)
			}
		}
	}
	p.failAt(t.Span, unexpectedMessage(p.opts.ErrorStyle, t))
}

func (p *parser) failAt(sp text.Span, msg string) {
	p.err = &SyntaxError{
		Backend: p.opts.Backend,
		Pos:     p.lines.Point(sp.Start),
		Span:    sp,
		Message: msg,
	}
	panic(bailout{})
}

// enter guards one level of recursive descent; pair it with a deferred leave.
func (p *parser) enter() {
	p.depth++
	if p.depth > MaxDepth {
		p.err = fmt.Errorf("%w at %s", ErrTooDeep, p.lines.Point(p.tok().Span.Start))
		panic(bailout{})
	}
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) checkContext() {
	if err := p.ctx.Err(); err != nil {
		p.err = err
		panic(bailout{})
	}
}

// statements

// body folds statements into a single node: nil, the statement itself, or a begin node.
func (p *parser) body(stmts []*Node) *Node {
	switch len(stmts) {
	case 0:
		return nil
	case 1:
		return stmts[0]
	}
	children := make([]Value, len(stmts))
	for i, s := range stmts {
		children[i] = s
	}
	return NewNode("begin", stmts[0].Span.Cover(stmts[len(stmts)-1].Span), children...)
}

func (p *parser) atStatementsEnd(terms []string) bool {
	t := p.tok()
	switch t.Kind {
	case lexer.TokenEOF, lexer.TokenRBrace, lexer.TokenRParen:
		return true
	case lexer.TokenKeyword:
		for _, kw := range terms {
			if t.Text == kw {
				return true
			}
		}
	}
	return false
}

// parseStatements parses statements until EOF, a closing brace or paren, or one of the keywords in terms.
func (p *parser) parseStatements(terms ...string) []*Node {
	var out []*Node
	for {
		p.skipTerms()
		if p.atStatementsEnd(terms) {
			return out
		}
		out = append(out, p.parseStatement())
		if !p.atTerm() && !p.atStatementsEnd(terms) {
			p.unexpected()
		}
	}
}

func (p *parser) parseStatement() *Node {
	p.checkContext()

	n := p.parseExpressionStatement()
	for {
		t := p.tok()
		if t.Kind != lexer.TokenKeyword {
			return n
		}
		switch t.Text {
		case "if", "unless", "while", "until":
			p.next()
			cond := p.parseExpressionStatement()
			sp := n.Span.Cover(cond.Span)
			switch t.Text {
			case "if":
				n = NewNode("if", sp, cond, n, nil)
			case "unless":
				n = NewNode("if", sp, cond, nil, n)
			case "while":
				n = NewNode(loopType("while", n), sp, cond, n)
			case "until":
				n = NewNode(loopType("until", n), sp, cond, n)
			}
		case "rescue":
			p.next()
			rhs := p.parseExpressionStatement()
			sp := n.Span.Cover(rhs.Span)
			n = NewNode("rescue", sp, n, NewNode("resbody", rhs.Span, nil, nil, rhs), nil)
		default:
			return n
		}
	}
}

func loopType(kw string, body *Node) string {
	if body.Type == "kwbegin" {
		return kw + "_post"
	}
	return kw
}

// parseExpressionStatement parses `not`, `and` and `or` expressions.
func (p *parser) parseExpressionStatement() *Node {
	n := p.parseNotExpression()
	for p.atKw("and") || p.atKw("or") {
		op := p.next().Text
		p.skipNewlines()
		rhs := p.parseNotExpression()
		n = NewNode(op, n.Span.Cover(rhs.Span), n, rhs)
	}
	return n
}

func (p *parser) parseNotExpression() *Node {
	p.enter()
	defer p.leave()
	if p.atKw("not") {
		start := p.next().Span.Start
		operand := p.parseNotExpression()
		return NewNode("send", p.spanFrom(start), operand, Symbol("!"))
	}
	if p.atOp("*") || (p.at(lexer.TokenLParen) && p.mlhsGroupAhead()) {
		return p.parseMultipleAssignment(nil)
	}

	n := p.parseArg()
	if p.at(lexer.TokenComma) {
		switch {
		case isAssignable(n):
			return p.parseMultipleAssignment(n)
		case isSingleAssignment(n):
			return p.extendAssignmentValue(n)
		}
	}
	return n
}

// mlhsGroupAhead reports whether a parenthesised group at statement start is a
// nested assignment target, as in `(a, b), c = ...`.
func (p *parser) mlhsGroupAhead() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		switch t := p.toks[i]; t.Kind {
		case lexer.TokenLParen:
			depth++
			if depth > MaxDepth {
				return false
			}
		case lexer.TokenRParen:
			depth--
			if depth == 0 {
				next := p.toks[min(i+1, len(p.toks)-1)]
				return next.Kind == lexer.TokenComma || next.IsOp("=")
			}
		case lexer.TokenNewline, lexer.TokenEOF:
			return false
		}
	}
	return false
}

func isSingleAssignment(n *Node) bool {
	switch n.Type {
	case "lvasgn", "ivasgn", "gvasgn", "cvasgn", "casgn":
		return true
	}
	return false
}

// extendAssignmentValue turns `a = 1, 2` into an assignment of an array.
func (p *parser) extendAssignmentValue(n *Node) *Node {
	last := len(n.Children) - 1
	first, _ := n.Children[last].(*Node)
	elems := []Value{first}
	for p.accept(lexer.TokenComma) {
		p.skipNewlines()
		elems = append(elems, p.parseSplatOrArg())
	}
	arr := NewNode("array", p.spanFrom(first.Span.Start), elems...)
	n.Children[last] = arr
	n.Span = n.Span.Cover(arr.Span)
	return n
}

func (p *parser) parseMultipleAssignment(first *Node) *Node {
	start := p.tok().Span.Start
	if first != nil {
		start = first.Span.Start
	}
	lhs := p.parseMlhs(first, start)
	p.expectOp("=")
	p.skipNewlines()

	rhs := p.parseSplatOrArg()
	if p.at(lexer.TokenComma) || rhs.Type == "splat" {
		elems := []Value{rhs}
		for p.accept(lexer.TokenComma) {
			p.skipNewlines()
			elems = append(elems, p.parseSplatOrArg())
		}
		rhs = NewNode("array", p.spanFrom(rhs.Span.Start), elems...)
	}
	return NewNode("masgn", p.spanFrom(start), lhs, rhs)
}

func (p *parser) parseMlhs(first *Node, start text.ByteOffset) *Node {
	var items []Value
	if first != nil {
		items = append(items, p.assignTarget(first, false))
		if !p.accept(lexer.TokenComma) {
			return NewNode("mlhs", p.spanFrom(start), items...)
		}
	}
	for !p.atOp("=") && !p.at(lexer.TokenRParen) {
		items = append(items, p.parseMlhsItem())
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	return NewNode("mlhs", p.spanFrom(start), items...)
}

func (p *parser) parseMlhsItem() *Node {
	start := p.tok().Span.Start
	switch {
	case p.atOp("*"):
		p.next()
		if p.atOp("=") || p.at(lexer.TokenComma) || p.at(lexer.TokenRParen) {
			return NewNode("splat", p.spanFrom(start))
		}
		target := p.assignTarget(p.parsePostfix(p.parsePrimary()), false)
		return NewNode("splat", p.spanFrom(start), target)
	case p.at(lexer.TokenLParen):
		p.next()
		inner := p.parseMlhs(nil, start)
		p.expect(lexer.TokenRParen)
		inner.Span = p.spanFrom(start)
		return inner
	default:
		return p.assignTarget(p.parsePostfix(p.parsePrimary()), false)
	}
}

// parseThen consumes the separator between a condition and its body.
func (p *parser) parseThen() {
	seen := p.skipTerms()
	if p.atKw("then") {
		p.next()
		seen = true
	}
	if !seen {
		p.unexpected()
	}
}

var bodyTerms = []string{"rescue", "else", "ensure", "end"}

// parseBody parses a def/class/begin body including rescue, else and ensure clauses.
func (p *parser) parseBody(clauses bool) *Node {
	if !clauses {
		return p.body(p.parseStatements("end"))
	}
	return p.parseBodyClauses(p.body(p.parseStatements(bodyTerms...)))
}

func (p *parser) parseBodyClauses(body *Node) *Node {
	start := p.tok().Span.Start
	if body != nil {
		start = body.Span.Start
	}

	var rescues []Value
	for p.atKw("rescue") {
		rescues = append(rescues, p.parseRescueClause())
	}
	var elseBody *Node
	if p.atKw("else") {
		if len(rescues) == 0 {
			p.unexpected()
		}
		p.next()
		elseBody = p.body(p.parseStatements("ensure", "end"))
	}
	if len(rescues) > 0 {
		children := append([]Value{body}, rescues...)
		children = append(children, elseBody)
		body = NewNode("rescue", p.spanFrom(start), children...)
	}
	if p.atKw("ensure") {
		p.next()
		ensureBody := p.body(p.parseStatements("end"))
		body = NewNode("ensure", p.spanFrom(start), body, ensureBody)
	}
	return body
}

func (p *parser) parseRescueClause() *Node {
	start := p.next().Span.Start // rescue

	var classes []Value
	for !p.atTerm() && !p.atKw("then") && !p.atOp("=>") {
		classes = append(classes, p.parseSplatOrArg())
		if !p.accept(lexer.TokenComma) {
			break
		}
		p.skipNewlines()
	}
	var list *Node
	if len(classes) > 0 {
		list = NewNode("array", p.spanFrom(classes[0].(*Node).Span.Start), classes...)
	}

	var target *Node
	if p.atOp("=>") {
		p.next()
		target = p.assignTarget(p.parsePostfix(p.parsePrimary()), false)
	}
	p.parseThen()
	body := p.body(p.parseStatements(bodyTerms...))
	return NewNode("resbody", p.spanFrom(start), list, target, body)
}
