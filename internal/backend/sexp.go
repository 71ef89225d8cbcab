package backend

import (
	"context"
	"strings"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/syntax"
	"github.com/kpumuk/parsebot/internal/text"
)

// sexpBackend is the default structural parser. It prints the newest grammar's tree
// as the nested arrays of Ruby's Ripper.sexp.
type sexpBackend struct {
	id      ID
	version grammar.Version
}

func (b sexpBackend) ID() ID       { return b.id }
func (sexpBackend) Family() Family { return FamilySexp }

func (b sexpBackend) Parse(ctx context.Context, code string) (Representation, error) {
	src := []byte(code)
	root, err := syntax.Parse(ctx, src, syntax.Options{Version: b.version})
	if err != nil {
		return nil, err
	}
	rb := &ripperBuilder{src: src, lines: text.NewLineIndex(src)}
	return &Tree{Style: StyleSexp, Root: List{Symbol("program"), rb.stmts(root)}}, nil
}

var binaryOperators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "**": true,
	"==": true, "===": true, "!=": true, "=~": true, "!~": true,
	"<": true, ">": true, "<=": true, ">=": true, "<=>": true,
	"&": true, "|": true, "^": true, "<<": true, ">>": true,
}

var unaryOperators = map[string]bool{"-@": true, "+@": true, "!": true, "~": true}

var pseudoKeywords = map[string]bool{"__FILE__": true, "__LINE__": true, "__ENCODING__": true}

type ripperBuilder struct {
	src   []byte
	lines *text.LineIndex
}

func (b *ripperBuilder) text(sp text.Span) string {
	if !sp.IsValid() || int(sp.End) > len(b.src) {
		return ""
	}
	return string(b.src[sp.Start:sp.End])
}

func (b *ripperBuilder) at(off text.ByteOffset) byte {
	if off < 0 || int(off) >= len(b.src) {
		return 0
	}
	return b.src[off]
}

// startsWithWord reports whether the source at sp begins with keyword w.
func (b *ripperBuilder) startsWithWord(sp text.Span, w string) bool {
	s := b.text(sp)
	if !strings.HasPrefix(s, w) {
		return false
	}
	return len(s) == len(w) || !isWordByte(s[len(w)])
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

func (b *ripperBuilder) pos(off text.ByteOffset) Pos {
	return Pos(b.lines.Point(off))
}

// scan builds a scanner event such as [:@int, "1", [1, 0]].
func (b *ripperBuilder) scan(kind string, sp text.Span) List {
	return List{Symbol("@" + kind), String(b.text(sp)), b.pos(sp.Start)}
}

// between returns the non-blank source between two offsets and where it starts.
func (b *ripperBuilder) between(from, to text.ByteOffset) (string, text.ByteOffset) {
	raw := b.text(text.Span{Start: from, End: to})
	trimmed := strings.TrimLeft(raw, " \t\r\n\\")
	start := from + text.ByteOffset(len(raw)-len(trimmed))
	return strings.TrimRight(trimmed, " \t\r\n\\"), start
}

func nameKind(name string) string {
	switch {
	case name == "":
		return "ident"
	case strings.HasPrefix(name, "@@"):
		return "cvar"
	case name[0] == '@':
		return "ivar"
	case name[0] == '$':
		return "gvar"
	case name[0] >= 'A' && name[0] <= 'Z':
		return "const"
	case lexer.IsKeyword(name):
		return "kw"
	case isWordByte(name[0]):
		return "ident"
	}
	return "op"
}

// name builds the scanner event for the name token of n.
func (b *ripperBuilder) name(n *syntax.Node) List {
	s := b.text(n.Name)
	return b.scan(nameKind(s), n.Name)
}

func (b *ripperBuilder) orNil(n *syntax.Node) Value {
	if n == nil {
		return Nil{}
	}
	return b.expr(n)
}

func listOrNil(l List) Value {
	if len(l) == 0 {
		return Nil{}
	}
	return l
}

// statements

func (b *ripperBuilder) stmts(n *syntax.Node) List {
	switch {
	case n == nil:
		return List{List{Symbol("void_stmt")}}
	case n.Type == "begin" && b.at(n.Span.Start) != '(':
		return b.stmtList(n.Children)
	}
	return List{b.expr(n)}
}

func (b *ripperBuilder) stmtList(vals []syntax.Value) List {
	if len(vals) == 0 {
		return List{List{Symbol("void_stmt")}}
	}
	out := make(List, 0, len(vals))
	for _, v := range vals {
		out = append(out, b.value(v))
	}
	return out
}

func (b *ripperBuilder) bodystmt(n *syntax.Node) List {
	var rescue, els, ensure Value = Nil{}, Nil{}, Nil{}
	if n != nil && n.Type == "ensure" {
		ensure = List{Symbol("ensure"), b.stmts(n.Child(1))}
		n = n.Child(0)
	}
	if n != nil && n.Type == "rescue" {
		last := len(n.Children) - 1
		rescue = b.rescueChain(n.Children[1:last])
		if e := n.Child(last); e != nil {
			els = List{Symbol("else"), b.stmts(e)}
		}
		n = n.Child(0)
	}
	return List{Symbol("bodystmt"), b.stmts(n), rescue, els, ensure}
}

func (b *ripperBuilder) rescueChain(resbodies []syntax.Value) Value {
	if len(resbodies) == 0 {
		return Nil{}
	}
	rb, _ := resbodies[0].(*syntax.Node)
	if rb == nil {
		return b.rescueChain(resbodies[1:])
	}
	var classes Value = Nil{}
	if excs := rb.Child(0); excs != nil {
		l := List{}
		for _, c := range excs.Children {
			l = append(l, b.value(c))
		}
		classes = l
	}
	var binding Value = Nil{}
	if v := rb.Child(1); v != nil {
		binding = b.field(v)
	}
	return List{Symbol("rescue"), classes, binding, b.stmts(rb.Child(2)), b.rescueChain(resbodies[1:])}
}

// expressions

func (b *ripperBuilder) value(v syntax.Value) Value {
	switch v := v.(type) {
	case *syntax.Node:
		if v == nil {
			return Nil{}
		}
		return b.expr(v)
	case syntax.Symbol:
		return Symbol(v)
	case syntax.Str:
		return String(v)
	case syntax.Literal:
		return Raw(v)
	}
	return Nil{}
}

func (b *ripperBuilder) expr(n *syntax.Node) Value {
	if n == nil {
		return Nil{}
	}
	if src := b.text(n.Span); pseudoKeywords[src] {
		return List{Symbol("var_ref"), b.scan("kw", n.Span)}
	}

	switch n.Type {
	case "int":
		return b.scan("int", n.Span)
	case "float":
		return b.scan("float", n.Span)
	case "rational":
		return b.scan("rational", n.Span)
	case "complex":
		return b.scan("imaginary", n.Span)
	case "str", "dstr":
		return b.stringLiteral(n)
	case "sym":
		return b.symbol(n)
	case "dsym":
		return List{Symbol("dyna_symbol"), b.stringContent(n)}
	case "regexp":
		return b.regexp(n)
	case "array":
		return b.array(n)
	case "hash":
		if b.at(n.Span.Start) != '{' {
			return List{Symbol("bare_assoc_hash"), b.assocs(n)}
		}
		if len(n.Children) == 0 {
			return List{Symbol("hash"), Nil{}}
		}
		return List{Symbol("hash"), List{Symbol("assoclist_from_args"), b.assocs(n)}}
	case "lvar", "ivar", "gvar", "cvar", "nth_ref", "back_ref":
		kind := nameKind(b.text(n.Name))
		if n.Type == "nth_ref" || n.Type == "back_ref" {
			kind = "backref"
		}
		return List{Symbol("var_ref"), b.scan(kind, n.Name)}
	case "self", "nil", "true", "false":
		return List{Symbol("var_ref"), b.scan("kw", n.Span)}
	case "const":
		return b.constRef(n, "const_path_ref", "var_ref", "top_const_ref")
	case "lvasgn", "ivasgn", "gvasgn", "cvasgn", "casgn":
		valueIdx := 1
		if n.Type == "casgn" {
			valueIdx = 2
		}
		if len(n.Children) <= valueIdx {
			return b.field(n)
		}
		return List{Symbol("assign"), b.field(n), b.value(n.Children[valueIdx])}
	case "op_asgn", "or_asgn", "and_asgn":
		return b.opAssign(n)
	case "masgn":
		return List{Symbol("massign"), b.mlhs(n.Child(0)), b.mrhs(n.Child(1))}
	case "send", "csend":
		return b.send(n)
	case "and", "or":
		lhs, rhs := n.Child(0), n.Child(1)
		op, _ := b.between(lhs.Span.End, rhs.Span.Start)
		return List{Symbol("binary"), b.expr(lhs), Symbol(op), b.expr(rhs)}
	case "irange", "erange":
		typ := "dot2"
		if n.Type == "erange" {
			typ = "dot3"
		}
		return List{Symbol(typ), b.orNil(n.Child(0)), b.orNil(n.Child(1))}
	case "defined?":
		return List{Symbol("defined"), b.expr(n.Child(0))}
	case "begin":
		return List{Symbol("paren"), b.stmtList(n.Children)}
	case "kwbegin":
		return List{Symbol("begin"), b.bodystmtOf(n.Children)}
	case "rescue":
		if rb := n.Child(1); rb != nil {
			return List{Symbol("rescue_mod"), b.expr(n.Child(0)), b.expr(rb.Child(2))}
		}
	case "if":
		return b.conditional(n)
	case "while", "until":
		if b.startsWithWord(n.Span, n.Type) {
			return List{Symbol(n.Type), b.expr(n.Child(0)), b.stmts(n.Child(1))}
		}
		return List{Symbol(n.Type + "_mod"), b.expr(n.Child(0)), b.expr(n.Child(1))}
	case "for":
		return List{Symbol("for"), b.forVar(n.Child(0)), b.expr(n.Child(1)), b.stmts(n.Child(2))}
	case "case":
		return b.caseWhen(n)
	case "return", "break", "next":
		if len(n.Children) == 0 {
			if n.Type == "return" {
				return List{Symbol("return0")}
			}
			return List{Symbol(n.Type), List{}}
		}
		return List{Symbol(n.Type), b.argsAddBlock(n.Children)}
	case "redo", "retry":
		return List{Symbol(n.Type)}
	case "yield":
		if len(n.Children) == 0 {
			return List{Symbol("yield0")}
		}
		args := b.argsAddBlock(n.Children)
		if b.at(n.Span.Start+5) == '(' {
			return List{Symbol("yield"), List{Symbol("paren"), args}}
		}
		return List{Symbol("yield"), args}
	case "zsuper":
		return List{Symbol("zsuper")}
	case "super":
		if b.at(n.Span.Start+5) == '(' {
			return List{Symbol("super"), b.argParen(n.Children)}
		}
		return List{Symbol("super"), b.argsAddBlock(n.Children)}
	case "def":
		return List{Symbol("def"), b.name(n), b.paramsOrParen(n.Child(1)), b.bodystmt(n.Child(2))}
	case "defs":
		recv := n.Child(0)
		period, start := b.between(recv.Span.End, n.Name.Start)
		return List{
			Symbol("defs"), b.expr(recv), b.scan("period", text.Span{Start: start, End: start + text.ByteOffset(len(period))}),
			b.name(n), b.paramsOrParen(n.Child(2)), b.bodystmt(n.Child(3)),
		}
	case "class":
		return List{Symbol("class"), b.cpath(n.Child(0)), b.orNil(n.Child(1)), b.bodystmt(n.Child(2))}
	case "sclass":
		return List{Symbol("sclass"), b.expr(n.Child(0)), b.bodystmt(n.Child(1))}
	case "module":
		return List{Symbol("module"), b.cpath(n.Child(0)), b.bodystmt(n.Child(1))}
	case "block", "numblock":
		return b.block(n)
	case "alias":
		lhs, rhs := n.Child(0), n.Child(1)
		if lhs.Type == "gvar" {
			return List{Symbol("var_alias"), b.scan("gvar", lhs.Span), b.scan("gvar", rhs.Span)}
		}
		return List{Symbol("alias"), b.symbolLiteral(lhs), b.symbolLiteral(rhs)}
	case "undef":
		l := List{}
		for _, c := range n.Children {
			if cn, ok := c.(*syntax.Node); ok && cn != nil {
				l = append(l, b.symbolLiteral(cn))
			}
		}
		return List{Symbol("undef"), l}
	case "splat":
		return List{Symbol("splat"), b.expr(n.Child(0))}
	}

	out := List{Symbol(n.Type)}
	for _, c := range n.Children {
		out = append(out, b.value(c))
	}
	return out
}

func (b *ripperBuilder) bodystmtOf(vals []syntax.Value) List {
	if len(vals) == 1 {
		if n, ok := vals[0].(*syntax.Node); ok {
			return b.bodystmt(n)
		}
	}
	return List{Symbol("bodystmt"), b.stmtList(vals), Nil{}, Nil{}, Nil{}}
}

// literals

// contentSpan strips the delimiters of a quoted literal.
func (b *ripperBuilder) contentSpan(sp text.Span) text.Span {
	if sp.Len() < 2 {
		return text.Span{Start: sp.Start, End: sp.Start}
	}
	start := sp.Start + 1
	if b.at(sp.Start) == '%' {
		start++
		if isWordByte(b.at(sp.Start + 1)) {
			start++
		}
	}
	return text.Span{Start: min(start, sp.End-1), End: sp.End - 1}
}

func (b *ripperBuilder) stringLiteral(n *syntax.Node) Value {
	switch c := b.at(n.Span.Start); {
	case n.Type == "dstr" && isQuote(c) && len(n.Children) > 1 && b.isConcat(n):
		var out Value
		for i, part := range n.Children {
			pn, _ := part.(*syntax.Node)
			if i == 0 {
				out = b.stringLiteral(pn)
				continue
			}
			out = List{Symbol("string_concat"), out, b.stringLiteral(pn)}
		}
		return out
	case c == '<' && strings.HasPrefix(b.text(n.Span), "<<"):
		return List{Symbol("string_literal"), b.heredocContent(n)}
	case c == '?' && n.Span.Len() > 1:
		return b.scan("CHAR", n.Span)
	case !isQuote(c):
		return b.scan("tstring_content", n.Span)
	}
	return List{Symbol("string_literal"), b.stringContent(n)}
}

// heredocContent renders a heredoc body. Plain bodies are a single content
// event; squiggly and interpolated bodies keep one event per part.
func (b *ripperBuilder) heredocContent(n *syntax.Node) List {
	out := List{Symbol("string_content")}
	squiggly := strings.HasPrefix(b.text(n.Span), "<<~")
	plain := true
	for _, part := range n.Children {
		if pn, ok := part.(*syntax.Node); ok && pn.Type != "str" {
			plain = false
		}
	}
	switch {
	case n.Type == "str" || plain && !squiggly:
		body := n.Name
		for squiggly && body.Start < body.End && (b.at(body.Start) == ' ' || b.at(body.Start) == '\t') {
			body.Start++
		}
		if !body.IsEmpty() {
			out = append(out, b.scan("tstring_content", body))
		}
		return out
	}
	for _, part := range n.Children {
		out = append(out, b.stringPart(part))
	}
	return out
}

func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '%'
}

// isConcat reports whether a dstr is built from adjacent string literals.
func (b *ripperBuilder) isConcat(n *syntax.Node) bool {
	first, _ := n.Children[0].(*syntax.Node)
	return first != nil && first.Span.Start == n.Span.Start && isQuote(b.at(first.Span.Start))
}

func (b *ripperBuilder) stringContent(n *syntax.Node) List {
	out := List{Symbol("string_content")}
	if n.Type == "str" || n.Type == "sym" {
		inner := b.contentSpan(n.Span)
		if n.Type == "sym" && b.at(n.Span.Start) == ':' {
			inner = b.contentSpan(text.Span{Start: n.Span.Start + 1, End: n.Span.End})
		}
		if !inner.IsEmpty() {
			out = append(out, b.scan("tstring_content", inner))
		}
		return out
	}
	for _, part := range n.Children {
		out = append(out, b.stringPart(part))
	}
	return out
}

func (b *ripperBuilder) stringPart(v syntax.Value) Value {
	pn, _ := v.(*syntax.Node)
	if pn == nil {
		return b.value(v)
	}
	switch pn.Type {
	case "str":
		return b.scan("tstring_content", pn.Span)
	case "begin":
		return List{Symbol("string_embexpr"), b.stmtList(pn.Children)}
	case "ivar", "gvar", "cvar":
		return List{Symbol("string_dvar"), b.expr(pn)}
	}
	return b.expr(pn)
}

func (b *ripperBuilder) symbol(n *syntax.Node) Value {
	switch {
	case b.at(n.Span.Start) != ':':
		if b.at(n.Span.End) == ':' {
			return b.scan("label", text.Span{Start: n.Span.Start, End: n.Span.End + 1})
		}
		return b.scan("tstring_content", n.Span)
	case b.at(n.Span.Start+1) == '"' || b.at(n.Span.Start+1) == '\'':
		return List{Symbol("dyna_symbol"), b.stringContent(n)}
	}
	return b.symbolLiteral(n)
}

// symbolLiteral builds [:symbol_literal, [:symbol, name]] for :name or a bare method name.
func (b *ripperBuilder) symbolLiteral(n *syntax.Node) List {
	sp := n.Span
	if b.at(sp.Start) == ':' {
		tok := text.Span{Start: sp.Start + 1, End: sp.End}
		return List{Symbol("symbol_literal"), List{Symbol("symbol"), b.scan(nameKind(b.text(tok)), tok)}}
	}
	return List{Symbol("symbol_literal"), b.scan(nameKind(b.text(sp)), sp)}
}

func (b *ripperBuilder) regexp(n *syntax.Node) Value {
	parts := List{}
	var opts string
	for _, c := range n.Children {
		cn, _ := c.(*syntax.Node)
		if cn != nil && cn.Type == "regopt" {
			for _, o := range cn.Children {
				if s, ok := o.(syntax.Symbol); ok {
					opts += string(s)
				}
			}
			continue
		}
		parts = append(parts, b.stringPart(c))
	}
	endStart := max(n.Span.Start, n.Span.End-1-text.ByteOffset(len(opts)))
	return List{Symbol("regexp_literal"), parts, b.scan("regexp_end", text.Span{Start: endStart, End: n.Span.End})}
}

func (b *ripperBuilder) array(n *syntax.Node) Value {
	if len(n.Children) == 0 {
		return List{Symbol("array"), Nil{}}
	}
	if b.at(n.Span.Start) == '%' {
		words := List{}
		for _, c := range n.Children {
			cn, _ := c.(*syntax.Node)
			if cn != nil && (cn.Type == "dstr" || cn.Type == "dsym") {
				word := List{Symbol("word")}
				for _, part := range cn.Children {
					word = append(word, b.stringPart(part))
				}
				words = append(words, word)
				continue
			}
			if cn != nil {
				words = append(words, b.scan("tstring_content", cn.Span))
			}
		}
		return List{Symbol("array"), words}
	}
	return List{Symbol("array"), b.argList(n.Children)}
}

func (b *ripperBuilder) assocs(n *syntax.Node) List {
	out := List{}
	for _, c := range n.Children {
		cn, _ := c.(*syntax.Node)
		if cn == nil {
			continue
		}
		switch cn.Type {
		case "pair":
			out = append(out, List{Symbol("assoc_new"), b.expr(cn.Child(0)), b.expr(cn.Child(1))})
		case "kwsplat":
			out = append(out, List{Symbol("assoc_splat"), b.expr(cn.Child(0))})
		default:
			out = append(out, b.expr(cn))
		}
	}
	return out
}

// variables and assignment

func (b *ripperBuilder) constRef(n *syntax.Node, scoped, bare, top string) Value {
	scope := n.Child(0)
	switch {
	case scope == nil:
		return List{Symbol(bare), b.scan("const", n.Name)}
	case scope.Type == "cbase":
		return List{Symbol(top), b.scan("const", n.Name)}
	}
	return List{Symbol(scoped), b.expr(scope), b.scan("const", n.Name)}
}

// field builds an assignment target: [:var_field, ...], [:field, ...] or [:aref_field, ...].
func (b *ripperBuilder) field(n *syntax.Node) Value {
	switch n.Type {
	case "lvasgn", "ivasgn", "gvasgn", "cvasgn", "lvar", "ivar", "gvar", "cvar":
		return List{Symbol("var_field"), b.scan(nameKind(b.text(n.Name)), n.Name)}
	case "casgn", "const":
		scope := n.Child(0)
		switch {
		case scope == nil:
			return List{Symbol("var_field"), b.scan("const", n.Name)}
		case scope.Type == "cbase":
			return List{Symbol("top_const_field"), b.scan("const", n.Name)}
		}
		return List{Symbol("const_path_field"), b.expr(scope), b.scan("const", n.Name)}
	case "send", "csend":
		recv := n.Child(0)
		name, _ := n.Children[1].(syntax.Symbol)
		if name == "[]" || name == "[]=" {
			args := n.Children[2:]
			if name == "[]=" && len(args) > 0 {
				args = args[:len(args)-1]
			}
			return List{Symbol("aref_field"), b.expr(recv), b.argsAddBlockOrNil(args)}
		}
		if recv == nil {
			return List{Symbol("var_field"), b.name(n)}
		}
		return List{Symbol("field"), b.expr(recv), b.period(recv.Span.End, n.Name.Start), b.name(n)}
	case "splat":
		return List{Symbol("rest_param"), b.orField(n.Child(0))}
	case "mlhs":
		return b.mlhs(n)
	}
	return b.expr(n)
}

func (b *ripperBuilder) orField(n *syntax.Node) Value {
	if n == nil {
		return Nil{}
	}
	return b.field(n)
}

func (b *ripperBuilder) opAssign(n *syntax.Node) Value {
	target := n.Child(0)
	value := n.Child(len(n.Children) - 1)
	op, start := b.between(target.Span.End, value.Span.Start)
	return List{
		Symbol("opassign"), b.field(target),
		b.scan("op", text.Span{Start: start, End: start + text.ByteOffset(len(op))}),
		b.expr(value),
	}
}

func (b *ripperBuilder) mlhs(n *syntax.Node) List {
	out := List{}
	if n == nil {
		return out
	}
	for _, c := range n.Children {
		if cn, ok := c.(*syntax.Node); ok && cn != nil {
			out = append(out, b.field(cn))
		}
	}
	return out
}

func (b *ripperBuilder) mrhs(n *syntax.Node) Value {
	if n == nil || n.Type != "array" || b.at(n.Span.Start) == '[' || len(n.Children) < 2 {
		return b.orNil(n)
	}
	last := len(n.Children) - 1
	return List{Symbol("mrhs_new_from_args"), b.argList(n.Children[:last]), b.value(n.Children[last])}
}

func (b *ripperBuilder) forVar(n *syntax.Node) Value {
	if n != nil && n.Type == "mlhs" {
		return b.mlhs(n)
	}
	return b.orField(n)
}

// calls

func (b *ripperBuilder) period(from, to text.ByteOffset) Value {
	op, start := b.between(from, to)
	sp := text.Span{Start: start, End: start + text.ByteOffset(len(op))}
	switch op {
	case "::":
		return Symbol("::")
	case "&.":
		return b.scan("op", sp)
	}
	return b.scan("period", sp)
}

func (b *ripperBuilder) send(n *syntax.Node) Value {
	recv := n.Child(0)
	name := string(n.Children[1].(syntax.Symbol))
	args := n.Children[2:]
	nameText := b.text(n.Name)

	switch {
	case recv != nil && n.Name.IsEmpty() && len(args) == 1 && binaryOperators[name] && n.Name.Start == 0:
		return List{Symbol("binary"), b.expr(recv), Symbol(name), b.value(args[0])}
	case recv != nil && n.Name.IsEmpty() && len(args) == 0 && unaryOperators[name] && n.Name.Start == 0:
		op := Symbol(name)
		if b.startsWithWord(n.Span, "not") {
			op = "not"
		}
		return List{Symbol("unary"), op, b.expr(recv)}
	case name == "[]" && b.at(n.Name.Start) == '[':
		return List{Symbol("aref"), b.expr(recv), b.argsAddBlockOrNil(args)}
	case name == "[]=" && b.at(n.Name.Start) == '[' && len(args) > 0:
		return List{Symbol("assign"), b.field(n), b.value(args[len(args)-1])}
	case strings.HasSuffix(name, "=") && len(args) > 0 && nameText == strings.TrimSuffix(name, "=") && recv != nil:
		return List{Symbol("assign"), b.field(n), b.value(args[len(args)-1])}
	}

	var ident Value = b.name(n)
	if n.Name.IsEmpty() {
		ident = Symbol("call")
	}
	parens := b.at(n.Name.End) == '('
	if recv == nil {
		switch {
		case parens:
			return List{Symbol("method_add_arg"), List{Symbol("fcall"), ident}, b.argParen(args)}
		case len(args) == 0:
			return List{Symbol("vcall"), ident}
		}
		return List{Symbol("command"), ident, b.argsAddBlock(args)}
	}

	call := List{Symbol("call"), b.expr(recv), b.period(recv.Span.End, n.Name.Start), ident}
	switch {
	case parens:
		return List{Symbol("method_add_arg"), call, b.argParen(args)}
	case len(args) == 0:
		return call
	}
	return List{Symbol("command_call"), call[1], call[2], call[3], b.argsAddBlock(args)}
}

func (b *ripperBuilder) argParen(args []syntax.Value) List {
	return List{Symbol("arg_paren"), b.argsAddBlockOrNil(args)}
}

func (b *ripperBuilder) argsAddBlockOrNil(args []syntax.Value) Value {
	if len(args) == 0 {
		return Nil{}
	}
	return b.argsAddBlock(args)
}

func (b *ripperBuilder) argsAddBlock(args []syntax.Value) List {
	var blockArg Value = Raw("false")
	if len(args) > 0 {
		if last, ok := args[len(args)-1].(*syntax.Node); ok && last != nil && last.Type == "block_pass" {
			blockArg = b.orNil(last.Child(0))
			args = args[:len(args)-1]
		}
	}
	if len(args) == 1 {
		if fwd, ok := args[0].(*syntax.Node); ok && fwd != nil && fwd.Type == "forwarded_args" {
			return List{Symbol("args_forward")}
		}
	}
	return List{Symbol("args_add_block"), b.argList(args), blockArg}
}

// argList builds an argument list, nesting splats as [:args_add_star, before, value, after...].
func (b *ripperBuilder) argList(args []syntax.Value) Value {
	out := List{}
	for _, a := range args {
		if an, ok := a.(*syntax.Node); ok && an != nil && an.Type == "splat" {
			out = List{Symbol("args_add_star"), out, b.orNil(an.Child(0))}
			continue
		}
		out = append(out, b.value(a))
	}
	return out
}

// blocks and definitions

func (b *ripperBuilder) block(n *syntax.Node) Value {
	call := n.Child(0)
	body := n.Child(len(n.Children) - 1)
	var params Value = Nil{}
	if args := n.Child(1); n.Type == "block" && args != nil && len(args.Children) > 0 {
		params = List{Symbol("block_var"), b.params(args), Raw("false")}
	}

	if call != nil && call.Type == "lambda" {
		var lparams Value = List{Symbol("params"), Nil{}, Nil{}, Nil{}, Nil{}, Nil{}, Nil{}, Nil{}}
		if args := n.Child(1); n.Type == "block" && args != nil {
			lparams = b.paramsOrParen(args)
		}
		return List{Symbol("lambda"), lparams, b.stmts(body)}
	}

	var blk List
	if b.at(n.Span.End-1) == '}' {
		blk = List{Symbol("brace_block"), params, b.stmts(body)}
	} else {
		blk = List{Symbol("do_block"), params, b.bodystmt(body)}
	}
	return List{Symbol("method_add_block"), b.expr(call), blk}
}

func (b *ripperBuilder) paramsOrParen(args *syntax.Node) Value {
	if args == nil {
		return Nil{}
	}
	p := b.params(args)
	if b.at(args.Span.Start) == '(' {
		return List{Symbol("paren"), p}
	}
	return p
}

// params builds [:params, required, optional, rest, post, keywords, keyword_rest, block].
func (b *ripperBuilder) params(args *syntax.Node) List {
	if args.Type == "forward_args" {
		return List{Symbol("params"), Nil{}, Nil{}, Nil{}, Nil{}, Nil{}, List{Symbol("args_forward")}, Nil{}}
	}
	var req, opt, kw List
	var rest, kwrest, blk Value = Nil{}, Nil{}, Nil{}
	for _, c := range args.Children {
		cn, _ := c.(*syntax.Node)
		if cn == nil {
			continue
		}
		switch cn.Type {
		case "arg":
			req = append(req, b.scan("ident", cn.Name))
		case "mlhs":
			req = append(req, List{Symbol("mlhs"), b.paramGroup(cn)})
		case "optarg":
			opt = append(opt, List{b.scan("ident", cn.Name), b.expr(cn.Child(1))})
		case "restarg":
			rest = List{Symbol("rest_param"), b.optionalIdent(cn)}
		case "kwarg":
			kw = append(kw, List{b.scan("label", text.Span{Start: cn.Name.Start, End: cn.Name.End + 1}), Raw("false")})
		case "kwoptarg":
			kw = append(kw, List{b.scan("label", text.Span{Start: cn.Name.Start, End: cn.Name.End + 1}), b.expr(cn.Child(1))})
		case "kwrestarg":
			kwrest = List{Symbol("kwrest_param"), b.optionalIdent(cn)}
		case "blockarg":
			blk = List{Symbol("blockarg"), b.scan("ident", cn.Name)}
		}
	}
	return List{Symbol("params"), listOrNil(req), listOrNil(opt), rest, Nil{}, listOrNil(kw), kwrest, blk}
}

func (b *ripperBuilder) optionalIdent(n *syntax.Node) Value {
	if len(n.Children) == 0 {
		return Nil{}
	}
	return b.scan("ident", n.Name)
}

func (b *ripperBuilder) paramGroup(n *syntax.Node) List {
	out := List{}
	for _, c := range n.Children {
		cn, _ := c.(*syntax.Node)
		if cn == nil {
			continue
		}
		switch cn.Type {
		case "mlhs":
			out = append(out, List{Symbol("mlhs"), b.paramGroup(cn)})
		case "restarg":
			out = append(out, List{Symbol("rest_param"), b.optionalIdent(cn)})
		default:
			out = append(out, b.scan("ident", cn.Name))
		}
	}
	return out
}

func (b *ripperBuilder) cpath(n *syntax.Node) Value {
	if n == nil {
		return Nil{}
	}
	if n.Type == "const" && n.Child(0) == nil {
		return List{Symbol("const_ref"), b.scan("const", n.Name)}
	}
	return b.constRef(n, "const_path_ref", "const_ref", "top_const_ref")
}

// control flow

func (b *ripperBuilder) conditional(n *syntax.Node) Value {
	cond, then, els := n.Child(0), n.Child(1), n.Child(2)
	switch {
	case b.startsWithWord(n.Span, "if"), b.startsWithWord(n.Span, "elsif"):
		typ := "if"
		if b.startsWithWord(n.Span, "elsif") {
			typ = "elsif"
		}
		return List{Symbol(typ), b.expr(cond), b.stmts(then), b.elseClause(els)}
	case b.startsWithWord(n.Span, "unless"):
		return List{Symbol("unless"), b.expr(cond), b.stmts(els), b.elseClause(then)}
	}

	body := then
	typ := "if_mod"
	if body == nil {
		body, typ = els, "unless_mod"
	}
	if body != nil && body.Span.Start == n.Span.Start && cond.Span.Start > body.Span.Start {
		return List{Symbol(typ), b.expr(cond), b.expr(body)}
	}
	return List{Symbol("ifop"), b.expr(cond), b.orNil(then), b.orNil(els)}
}

func (b *ripperBuilder) elseClause(n *syntax.Node) Value {
	switch {
	case n == nil:
		return Nil{}
	case n.Type == "if" && b.startsWithWord(n.Span, "elsif"):
		return b.expr(n)
	}
	return List{Symbol("else"), b.stmts(n)}
}

func (b *ripperBuilder) caseWhen(n *syntax.Node) Value {
	clauses := n.Children[1:]
	var chain Value = Nil{}
	if last := len(clauses) - 1; last >= 0 {
		if els, ok := clauses[last].(*syntax.Node); ok && els != nil {
			chain = List{Symbol("else"), b.stmts(els)}
		}
		clauses = clauses[:last]
	}
	for i := len(clauses) - 1; i >= 0; i-- {
		w, _ := clauses[i].(*syntax.Node)
		if w == nil {
			continue
		}
		bodyIdx := len(w.Children) - 1
		conds := List{}
		for _, c := range w.Children[:bodyIdx] {
			conds = append(conds, b.value(c))
		}
		chain = List{Symbol("when"), conds, b.stmts(w.Child(bodyIdx)), chain}
	}
	return List{Symbol("case"), b.orNil(n.Child(0)), chain}
}
