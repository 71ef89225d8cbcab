package syntax

import (
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/text"
)

// numbers

func (p *parser) parseNumber(neg bool, start text.ByteOffset) *Node {
	t := p.next()
	sp := text.Span{Start: start, End: t.Span.End}
	raw := strings.ReplaceAll(t.Text, "_", "")

	switch t.Kind {
	case lexer.TokenInt:
		v, ok := intValue(raw)
		if !ok {
			p.failAt(t.Span, "invalid numeric literal")
		}
		if neg {
			v.Neg(v)
		}
		return NewNode("int", sp, Literal(v.String()))
	case lexer.TokenFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil && !math.IsInf(f, 0) {
			p.failAt(t.Span, "invalid numeric literal")
		}
		if neg {
			f = -f
		}
		return NewNode("float", sp, Literal(formatFloat(f)))
	case lexer.TokenRational:
		r, ok := ratValue(strings.TrimSuffix(raw, "r"))
		if !ok {
			p.failAt(t.Span, "invalid numeric literal")
		}
		if neg {
			r.Neg(r)
		}
		return NewNode("rational", sp, Literal(formatRat(r)))
	case lexer.TokenImaginary:
		lit, ok := imaginaryValue(strings.TrimSuffix(raw, "i"), neg)
		if !ok {
			p.failAt(t.Span, "invalid numeric literal")
		}
		return NewNode("complex", sp, Literal(lit))
	}
	p.unexpected()
	return nil
}

func intValue(raw string) (*big.Int, bool) {
	base := 10
	digits := raw
	if len(raw) > 1 && raw[0] == '0' {
		switch raw[1] {
		case 'x', 'X':
			base, digits = 16, raw[2:]
		case 'b', 'B':
			base, digits = 2, raw[2:]
		case 'o', 'O':
			base, digits = 8, raw[2:]
		case 'd', 'D':
			base, digits = 10, raw[2:]
		default:
			base, digits = 8, raw[1:]
		}
	}
	return new(big.Int).SetString(digits, base)
}

func ratValue(raw string) (*big.Rat, bool) {
	if strings.ContainsAny(raw, "xXbBoO") || (len(raw) > 1 && raw[0] == '0' && !strings.Contains(raw, ".")) {
		v, ok := intValue(raw)
		if !ok {
			return nil, false
		}
		return new(big.Rat).SetInt(v), true
	}
	return new(big.Rat).SetString(raw)
}

func formatRat(r *big.Rat) string {
	return "(" + r.Num().String() + "/" + r.Denom().String() + ")"
}

// imaginaryValue renders the complex literal 0+raw*i the way Complex#inspect does.
func imaginaryValue(raw string, neg bool) (string, bool) {
	sign := "+"
	if neg {
		sign = "-"
	}
	switch {
	case strings.HasSuffix(raw, "r"):
		r, ok := ratValue(strings.TrimSuffix(raw, "r"))
		if !ok {
			return "", false
		}
		return "(0" + sign + formatRat(r) + "*i)", true
	case strings.ContainsAny(raw, ".eE") && !strings.ContainsAny(raw, "xX"):
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", false
		}
		return "(0" + sign + formatFloat(f) + "i)", true
	}
	v, ok := intValue(raw)
	if !ok {
		return "", false
	}
	return "(0" + sign + v.String() + "i)", true
}

// formatFloat renders f the way Float#inspect does: fixed notation for
// decimal exponents in -4..16, scientific notation ("1.0e+20") outside.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, _ := strings.Cut(e, "e")
	digits := strings.Replace(mantissa, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	decpt := exp + 1

	switch {
	case decpt > 0 && decpt <= 16:
		if len(digits) <= decpt {
			return sign + digits + strings.Repeat("0", decpt-len(digits)) + ".0"
		}
		return sign + digits[:decpt] + "." + digits[decpt:]
	case decpt <= 0 && decpt > -4:
		return sign + "0." + strings.Repeat("0", -decpt) + digits
	}
	frac := digits[1:]
	if frac == "" {
		frac = "0"
	}
	return fmt.Sprintf("%s%s.%se%+03d", sign, digits[:1], frac, decpt-1)
}

// strings

type quoteMode uint8

const (
	quoteSingle quoteMode = iota
	quoteDouble
	quoteRegexp
)

func (p *parser) parseStringLiteral() *Node {
	t := p.next()
	n := p.stringNode(t.Text, t.Span.Start)
	if !p.at(lexer.TokenString) {
		return n
	}
	parts := []Value{n}
	for p.at(lexer.TokenString) {
		t := p.next()
		parts = append(parts, p.stringNode(t.Text, t.Span.Start))
	}
	return NewNode("dstr", p.spanFrom(n.Span.Start), parts...)
}

// stringNode decodes a quoted string literal ('..', "..", %q(..), %Q(..), %(..)) that starts at start.
func (p *parser) stringNode(raw string, start text.ByteOffset) *Node {
	sp := text.Span{Start: start, End: start + text.ByteOffset(len(raw))}
	mode := quoteDouble
	bodyStart := 1
	switch raw[0] {
	case '\'':
		mode = quoteSingle
	case '%':
		bodyStart = 2
		switch raw[1] {
		case 'q':
			mode = quoteSingle
			bodyStart = 3
		case 'Q':
			bodyStart = 3
		}
	}
	if len(raw) < bodyStart+1 {
		return NewNode("str", sp, Str(""))
	}
	opener := raw[bodyStart-1]
	body := raw[bodyStart : len(raw)-1]
	parts := p.stringParts(body, start+text.ByteOffset(bodyStart), mode, opener, closingDelimiter(opener))
	return stringFromParts(parts, sp)
}

// parseChar decodes ?a. Before 1.9 it is the integer code of the character.
func (p *parser) parseChar() *Node {
	t := p.next()
	body := t.Text[1:]
	var b strings.Builder
	if len(body) > 1 && body[0] == '\\' {
		p.unescape(&b, body, t.Span.Start+1, quoteDouble, 0, 0)
	} else {
		b.WriteString(body)
	}
	if b.Len() == 0 {
		p.failAt(t.Span, "invalid character syntax")
	}
	if !p.features.CharStrings {
		return NewNode("int", t.Span, Literal(strconv.Itoa(int(b.String()[0]))))
	}
	return NewNode("str", t.Span, Str(b.String()))
}

// parseHeredoc builds the literal for a heredoc opener. The node spans the
// opener and Name holds the body. Bodies are split into one part per line.
func (p *parser) parseHeredoc() *Node {
	t := p.next()
	id := strings.TrimPrefix(t.Text, "<<")
	squiggly := strings.HasPrefix(id, "~")
	raw := strings.HasPrefix(strings.TrimLeft(id, "-~"), "'")
	body := string(p.src[t.Body.Start:t.Body.End])

	indent := 0
	if squiggly {
		indent = heredocIndent(body)
	}
	var parts []Value
	lineStart := t.Body.Start
	for _, line := range strings.SplitAfter(body, "\n") {
		if line == "" {
			continue
		}
		skip := dedentBytes(line, indent)
		at := lineStart + text.ByteOffset(skip)
		lineStart += text.ByteOffset(len(line))
		line = line[skip:]
		switch {
		case line == "":
		case raw:
			parts = append(parts, NewNode("str", text.Span{Start: at, End: at + text.ByteOffset(len(line))}, Str(line)))
		default:
			parts = append(parts, p.stringParts(line, at, quoteDouble, 0, 0)...)
		}
	}

	if len(parts) == 1 {
		if n := parts[0].(*Node); n.Type == "str" {
			return &Node{Type: "str", Children: n.Children, Span: t.Span, Name: t.Body}
		}
	}
	return &Node{Type: "dstr", Children: parts, Span: t.Span, Name: t.Body}
}

// heredocIndent returns the smallest indentation, in columns, of the non-blank lines of body.
func heredocIndent(body string) int {
	indent := -1
	for _, line := range strings.Split(body, "\n") {
		w, rest := leadingWidth(line)
		if strings.TrimSpace(rest) == "" {
			continue
		}
		if indent < 0 || w < indent {
			indent = w
		}
	}
	return max(indent, 0)
}

func leadingWidth(line string) (int, string) {
	w := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			w++
		case '\t':
			w = (w/8 + 1) * 8
		default:
			return w, line[i:]
		}
	}
	return w, ""
}

// dedentBytes returns how many leading bytes of line fit within width columns.
func dedentBytes(line string, width int) int {
	w := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			w++
		case '\t':
			w = (w/8 + 1) * 8
		default:
			return i
		}
		if w > width {
			return i
		}
		if w == width {
			return i + 1
		}
	}
	return len(line)
}

func closingDelimiter(opener byte) byte {
	switch opener {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	case '<':
		return '>'
	}
	return opener
}

func stringFromParts(parts []Value, sp text.Span) *Node {
	switch len(parts) {
	case 0:
		return NewNode("str", sp, Str(""))
	case 1:
		if n := parts[0].(*Node); n.Type == "str" {
			n.Span = sp
			return n
		}
	}
	return NewNode("dstr", sp, parts...)
}

func symbolFromString(str *Node, sp text.Span) *Node {
	if str.Type == "str" {
		return &Node{Type: "sym", Children: []Value{Symbol(str.Children[0].(Str))}, Span: sp, Name: sp}
	}
	return NewNode("dsym", sp, str.Children...)
}

// stringParts splits a literal body into str nodes and interpolated expressions.
func (p *parser) stringParts(body string, base text.ByteOffset, mode quoteMode, opener, closer byte) []Value {
	var parts []Value
	var lit strings.Builder
	litStart := 0

	flush := func(end int) {
		if lit.Len() == 0 {
			return
		}
		sp := text.Span{Start: base + text.ByteOffset(litStart), End: base + text.ByteOffset(end)}
		parts = append(parts, NewNode("str", sp, Str(lit.String())))
		lit.Reset()
	}

	interpolate := mode != quoteSingle
	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			if lit.Len() == 0 {
				litStart = i
			}
			i += p.unescape(&lit, body[i:], base+text.ByteOffset(i), mode, opener, closer)
		case interpolate && c == '#' && i+1 < len(body) && body[i+1] == '{':
			flush(i)
			end := interpolationEnd(body, i+2)
			code := body[i+2 : end]
			stmts := p.parseInterpolation(code, base+text.ByteOffset(i+2))
			sp := text.Span{Start: base + text.ByteOffset(i), End: base + text.ByteOffset(min(end+1, len(body)))}
			inner := p.body(stmts)
			parts = append(parts, NewNode("begin", sp, flatten(inner)...))
			i = end + 1
			litStart = i
		case interpolate && c == '#' && i+1 < len(body) && (body[i+1] == '@' || body[i+1] == '$'):
			j := i + 2
			if j < len(body) && body[j] == '@' {
				j++
			}
			k := j
			for k < len(body) && (body[k] == '_' || isAlnum(body[k]) || body[k] >= 0x80) {
				k++
			}
			if k == j || isDigit(body[j]) {
				if lit.Len() == 0 {
					litStart = i
				}
				lit.WriteByte(c)
				i++
				continue
			}
			flush(i)
			name := body[i+1 : k]
			tok := lexer.Token{Text: name, Span: text.Span{Start: base + text.ByteOffset(i+1), End: base + text.ByteOffset(k)}}
			switch {
			case strings.HasPrefix(name, "@@"):
				parts = append(parts, &Node{Type: "cvar", Children: []Value{Symbol(name)}, Span: tok.Span, Name: tok.Span})
			case name[0] == '@':
				parts = append(parts, &Node{Type: "ivar", Children: []Value{Symbol(name)}, Span: tok.Span, Name: tok.Span})
			default:
				parts = append(parts, globalVariable(tok))
			}
			i = k
			litStart = i
		default:
			if lit.Len() == 0 {
				litStart = i
			}
			lit.WriteByte(c)
			i++
		}
	}
	flush(len(body))
	return parts
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// interpolationEnd returns the index of the brace closing an interpolation whose body starts at i.
func interpolationEnd(body string, i int) int {
	depth := 1
	for ; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'':
			q := body[i]
			for i++; i < len(body) && body[i] != q; i++ {
				if body[i] == '\\' {
					i++
				}
			}
		}
	}
	return len(body)
}

// unescape decodes the escape sequence at the start of s into b and returns its length.
func (p *parser) unescape(b *strings.Builder, s string, at text.ByteOffset, mode quoteMode, opener, closer byte) int {
	c := s[1]
	switch mode {
	case quoteSingle:
		if c == '\\' || c == opener || c == closer {
			b.WriteByte(c)
		} else {
			b.WriteByte('\\')
			b.WriteByte(c)
		}
		return 2
	case quoteRegexp:
		if c == '/' && closer == '/' {
			b.WriteByte('/')
		} else {
			b.WriteByte('\\')
			b.WriteByte(c)
		}
		return 2
	}

	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 's':
		b.WriteByte(' ')
	case 'r':
		b.WriteByte('\r')
	case 'e':
		b.WriteByte(0x1b)
	case 'a':
		b.WriteByte('\a')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '\n':
		// line continuation
	case 'x':
		n := 2
		for n < 4 && n < len(s) && isHexDigitByte(s[n]) {
			n++
		}
		if n == 2 {
			p.failAt(text.Span{Start: at, End: at + 2}, "invalid hex escape")
		}
		v, _ := strconv.ParseUint(s[2:n], 16, 8)
		b.WriteByte(byte(v))
		return n
	case 'u':
		return 2 + writeUnicodeEscape(b, s[2:])
	case '0', '1', '2', '3', '4', '5', '6', '7':
		n := 1
		for n < 4 && n < len(s) && s[n] >= '0' && s[n] <= '7' {
			n++
		}
		v, _ := strconv.ParseUint(s[1:n], 8, 16)
		b.WriteByte(byte(v))
		return n
	default:
		r, size := utf8.DecodeRuneInString(s[1:])
		b.WriteRune(r)
		return 1 + size
	}
	return 2
}

func isHexDigitByte(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// writeUnicodeEscape decodes the body of \uXXXX or \u{X Y} and returns how many bytes it consumed.
func writeUnicodeEscape(b *strings.Builder, s string) int {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return 0
		}
		for _, cp := range strings.Fields(s[1:end]) {
			v, err := strconv.ParseUint(cp, 16, 32)
			if err == nil {
				b.WriteRune(rune(v))
			}
		}
		return end + 1
	}
	n := 0
	for n < 4 && n < len(s) && isHexDigitByte(s[n]) {
		n++
	}
	v, _ := strconv.ParseUint(s[:n], 16, 32)
	b.WriteRune(rune(v))
	return n
}

// parseInterpolation parses the statements of #{code}; code starts at base in the source.
func (p *parser) parseInterpolation(code string, base text.ByteOffset) []*Node {
	res := lexer.Lex([]byte(code), lexer.Options{Version: p.version})
	for i := range res.Tokens {
		res.Tokens[i].Span = res.Tokens[i].Span.Shift(base)
		if res.Tokens[i].Kind == lexer.TokenHeredoc {
			res.Tokens[i].Body = res.Tokens[i].Body.Shift(base)
		}
	}
	for i := range res.Diagnostics {
		res.Diagnostics[i].Span = res.Diagnostics[i].Span.Shift(base)
	}

	sub := &parser{
		ctx:          p.ctx,
		src:          p.src,
		toks:         res.Tokens,
		diags:        res.Diagnostics,
		features:     p.features,
		version:      p.version,
		opts:         p.opts,
		lines:        p.lines,
		scope:        p.scope,
		inDefForward: p.inDefForward,
		depth:        p.depth,
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); ok {
				p.err = sub.err
			}
			panic(r)
		}
	}()

	stmts := sub.parseStatements()
	sub.skipTerms()
	if !sub.at(lexer.TokenEOF) {
		sub.unexpected()
	}
	return stmts
}

func (p *parser) parseSymbol() *Node {
	t := p.next()
	if len(t.Text) > 1 && (t.Text[1] == '"' || t.Text[1] == '\'') {
		str := p.stringNode(t.Text[1:], t.Span.Start+1)
		return symbolFromString(str, t.Span)
	}
	return &Node{Type: "sym", Children: []Value{Symbol(t.Text[1:])}, Span: t.Span, Name: t.Span}
}

func (p *parser) parseRegexp() *Node {
	t := p.next()
	last := strings.LastIndexByte(t.Text, '/')
	body := t.Text[1:last]
	parts := p.stringParts(body, t.Span.Start+1, quoteRegexp, '/', '/')

	var opts []Value
	flags := []byte(t.Text[last+1:])
	slices.Sort(flags)
	for i, f := range flags {
		if i > 0 && flags[i-1] == f {
			continue
		}
		opts = append(opts, Symbol(string(f)))
	}
	optSpan := text.Span{Start: t.Span.Start + text.ByteOffset(last+1), End: t.Span.End}
	parts = append(parts, NewNode("regopt", optSpan, opts...))
	return NewNode("regexp", t.Span, parts...)
}

// parseWords parses %w, %W, %i and %I arrays.
func (p *parser) parseWords() *Node {
	t := p.next()
	typ := t.Text[1]
	opener := t.Text[2]
	closer := closingDelimiter(opener)
	body := t.Text[3 : len(t.Text)-1]
	base := t.Span.Start + 3

	mode := quoteSingle
	if typ == 'W' || typ == 'I' {
		mode = quoteDouble
	}
	symbols := typ == 'i' || typ == 'I'

	var elems []Value
	for _, w := range splitWords(body, mode == quoteDouble) {
		sp := text.Span{Start: base + text.ByteOffset(w.start), End: base + text.ByteOffset(w.end)}
		parts := p.stringParts(body[w.start:w.end], sp.Start, mode, opener, closer)
		str := stringFromParts(parts, sp)
		if symbols {
			str = symbolFromString(str, sp)
		}
		elems = append(elems, str)
	}
	return NewNode("array", t.Span, elems...)
}

type word struct{ start, end int }

func splitWords(body string, interpolate bool) []word {
	var out []word
	start := -1
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if start >= 0 {
				out = append(out, word{start, i})
				start = -1
			}
			continue
		case start < 0:
			start = i
		}
		switch {
		case c == '\\':
			i++
		case interpolate && c == '#' && i+1 < len(body) && body[i+1] == '{':
			i = interpolationEnd(body, i+2)
		}
	}
	if start >= 0 {
		out = append(out, word{start, len(body)})
	}
	return out
}

// collections

func (p *parser) parseArray() *Node {
	open := p.next()
	saved := p.noDo
	p.noDo = 0
	elems := p.parseCallArgs(func() bool { return p.at(lexer.TokenRBracket) })
	p.skipNewlines()
	p.expect(lexer.TokenRBracket)
	p.noDo = saved
	return NewNode("array", p.spanFrom(open.Span.Start), elems...)
}

func (p *parser) parseHash() *Node {
	open := p.next()
	saved := p.noDo
	p.noDo = 0
	defer func() { p.noDo = saved }()

	var pairs []Value
	for {
		p.skipNewlines()
		if p.at(lexer.TokenRBrace) {
			break
		}
		t := p.tok()
		switch {
		case t.Kind == lexer.TokenLabel:
			pairs = append(pairs, p.parseLabelPair())
		case t.IsOp("**"):
			if !p.features.KeywordParams {
				p.unexpected()
			}
			p.next()
			v := p.parseArg()
			pairs = append(pairs, NewNode("kwsplat", p.spanFrom(t.Span.Start), v))
		default:
			key := p.parseArg()
			p.skipNewlines()
			p.expectOp("=>")
			p.skipNewlines()
			val := p.parseArg()
			pairs = append(pairs, NewNode("pair", key.Span.Cover(val.Span), key, val))
		}
		p.skipNewlines()
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	p.skipNewlines()
	p.expect(lexer.TokenRBrace)
	return NewNode("hash", p.spanFrom(open.Span.Start), pairs...)
}
