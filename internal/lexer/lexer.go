package lexer

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/text"
)

// DiagnosticCode identifies lexer diagnostic categories.
type DiagnosticCode string

// DiagnosticCode values emitted by the lexer.
const (
	DiagnosticInvalidByte           DiagnosticCode = "LEX_INVALID_BYTE"
	DiagnosticUnknownCharacter      DiagnosticCode = "LEX_UNKNOWN_CHARACTER"
	DiagnosticUnterminatedString    DiagnosticCode = "LEX_UNTERMINATED_STRING"
	DiagnosticUnterminatedRegexp    DiagnosticCode = "LEX_UNTERMINATED_REGEXP"
	DiagnosticUnterminatedList      DiagnosticCode = "LEX_UNTERMINATED_LIST"
	DiagnosticUnterminatedEmbdoc    DiagnosticCode = "LEX_UNTERMINATED_EMBDOC"
	DiagnosticInvalidNumber         DiagnosticCode = "LEX_INVALID_NUMBER"
	DiagnosticUnknownPercentLiteral DiagnosticCode = "LEX_UNKNOWN_PERCENT_LITERAL"
	DiagnosticInvalidVariable       DiagnosticCode = "LEX_INVALID_VARIABLE"
	DiagnosticUnterminatedHeredoc   DiagnosticCode = "LEX_UNTERMINATED_HEREDOC"
)

// Diagnostic is a lexer-level issue with source location.
type Diagnostic struct {
	Code    DiagnosticCode
	Message string
	Span    text.Span
}

// Options control version-dependent lexing.
type Options struct {
	Version grammar.Version
}

// Result is the output of lexing source bytes.
type Result struct {
	Tokens      []Token
	Diagnostics []Diagnostic
}

// Lex tokenizes src into a lossless token stream with leading trivia.
// The stream always ends with a TokenEOF token.
func Lex(src []byte, opts Options) Result {
	v := opts.Version
	if v == 0 {
		v = grammar.MaxSupported
	}
	s := scanner{
		src:      src,
		features: grammar.FeaturesFor(v),
		state:    StateBeg,
		cmdStart: true,
		locals:   map[string]bool{},
	}
	s.run()
	return Result{
		Tokens:      s.tokens,
		Diagnostics: s.diagnostics,
	}
}

type defPhase uint8

const (
	defNone defPhase = iota
	defName
	defAfterName
	defParamsParen
	defParamsBare
)

type scanner struct {
	src         []byte
	i           int
	features    grammar.Features
	tokens      []Token
	diagnostics []Diagnostic

	state    State
	cmdStart bool
	locals   map[string]bool

	parenDepth     int
	def            defPhase
	defParenDepth  int
	blockParamsPos int // token index that may open block params, -1 when none
	inBlockParams  bool

	// heredocs opened on the current line, read when the line ends.
	heredocs []pendingHeredoc
}

type pendingHeredoc struct {
	tok    int // index of the opener in tokens
	id     string
	indent bool // the terminator may be indented (<<- and <<~)
}

func (s *scanner) run() {
	s.blockParamsPos = -1
	for {
		leading, nl := s.scanLeadingTrivia()
		if nl != nil {
			nl.Leading = leading
			s.emit(*nl)
			continue
		}

		if s.eof() {
			for _, h := range s.heredocs {
				s.failHeredoc(h)
			}
			s.heredocs = nil
			s.emit(Token{
				Kind:    TokenEOF,
				Span:    span(len(s.src), len(s.src)),
				Leading: leading,
				State:   s.state,
			})
			return
		}

		prev := s.state
		tok := s.scanToken(prev, hasSpace(leading))
		tok.Leading = leading
		s.emit(tok)
	}
}

func (s *scanner) emit(tok Token) {
	if tok.Text == "" && tok.Kind != TokenEOF {
		tok.Text = string(s.src[tok.Span.Start:tok.Span.End])
	}
	if hasSpace(tok.Leading) {
		tok.Flags |= TokenFlagSpaceBefore
	}
	if len(s.tokens) == 0 || s.tokens[len(s.tokens)-1].Kind == TokenNewline || hasNewline(tok.Leading) {
		tok.Flags |= TokenFlagLineStart
	}
	tok.State = s.state
	s.tokens = append(s.tokens, tok)
}

func hasSpace(trivia []Trivia) bool {
	for _, t := range trivia {
		if t.Kind != TriviaIgnoredNewline {
			return true
		}
	}
	return false
}

func hasNewline(trivia []Trivia) bool {
	for _, t := range trivia {
		if t.Kind == TriviaIgnoredNewline || t.Kind == TriviaEmbeddedDoc {
			return true
		}
	}
	return false
}

func (s *scanner) scanLeadingTrivia() ([]Trivia, *Token) {
	var out []Trivia
	add := func(kind TriviaKind, start int) {
		out = append(out, Trivia{Kind: kind, Span: span(start, s.i), State: s.state})
	}

	for !s.eof() {
		if len(s.heredocs) > 0 && s.atLineStart() {
			s.readHeredocBodies(add)
			continue
		}
		start := s.i
		switch b := s.src[s.i]; b {
		case ' ', '\t', '\v', '\f', '\r':
			for !s.eof() && isHorizontalSpace(s.src[s.i]) {
				s.i++
			}
			add(TriviaWhitespace, start)
		case '\\':
			if s.peekByte(1) == '\n' {
				s.i += 2
				add(TriviaContinuation, start)
				continue
			}
			if s.peekByte(1) == '\r' && s.peekByte(2) == '\n' {
				s.i += 3
				add(TriviaContinuation, start)
				continue
			}
			return out, nil
		case '#':
			for !s.eof() && s.src[s.i] != '\n' {
				s.i++
			}
			add(TriviaComment, start)
		case '=':
			if !s.atLineStart() || !bytes.HasPrefix(s.src[s.i:], []byte("=begin")) || !isSpaceOrEOF(s.peekByte(6)) {
				return out, nil
			}
			if !s.scanEmbeddedDoc() {
				return out, s.makeErrorToken(start, s.i, DiagnosticUnterminatedEmbdoc, "embedded document meets end of file")
			}
			add(TriviaEmbeddedDoc, start)
		case '\n':
			s.i++
			if s.newlineIgnored() {
				add(TriviaIgnoredNewline, start)
				continue
			}
			nl := Token{Kind: TokenNewline, Span: span(start, s.i)}
			s.state = StateBeg
			s.cmdStart = true
			if s.def == defParamsBare || s.def == defAfterName {
				s.def = defNone
			}
			return out, &nl
		case '_':
			if s.atLineStart() && s.atEndMarker() {
				s.i = len(s.src)
				add(TriviaEndMarker, start)
				continue
			}
			return out, nil
		default:
			if b >= utf8.RuneSelf {
				if r, size := utf8.DecodeRune(s.src[s.i:]); r == utf8.RuneError && size == 1 {
					s.i++
					return out, s.makeErrorToken(start, s.i, DiagnosticInvalidByte, "invalid multibyte char (UTF-8)")
				}
			}
			return out, nil
		}
	}

	return out, nil
}

func (s *scanner) newlineIgnored() bool {
	if s.state.Has(StateBeg|StateClass|StateFName|StateDot) || s.state == StateArg|StateLabeled {
		return true
	}
	if len(s.heredocs) > 0 {
		return false
	}
	// A line starting with ".foo" or "&.foo" continues the previous call chain.
	j := s.i
scan:
	for j < len(s.src) {
		switch s.src[j] {
		case ' ', '\t', '\r', '\n':
			j++
		case '#':
			for j < len(s.src) && s.src[j] != '\n' {
				j++
			}
		default:
			break scan
		}
	}
	if j < len(s.src) && s.src[j] == '.' && (j+1 >= len(s.src) || s.src[j+1] != '.') {
		return true
	}
	return s.features.SafeNavigation && j+1 < len(s.src) && s.src[j] == '&' && s.src[j+1] == '.'
}

func (s *scanner) scanEmbeddedDoc() bool {
	for !s.eof() {
		for !s.eof() && s.src[s.i] != '\n' {
			s.i++
		}
		if s.eof() {
			return false
		}
		s.i++ // '\n'
		if bytes.HasPrefix(s.src[s.i:], []byte("=end")) && isSpaceOrEOF(s.peekByte(4)) {
			for !s.eof() && s.src[s.i] != '\n' {
				s.i++
			}
			return true
		}
	}
	return false
}

func (s *scanner) scanToken(prev State, spaceBefore bool) Token {
	start := s.i
	b := s.src[s.i]
	blockParamsOpen := s.blockParamsPos == len(s.tokens)
	s.blockParamsPos = -1

	switch {
	case isIdentStart(b):
		return s.scanIdentifier(prev)
	case isDigit(b):
		s.afterOperand()
		return s.scanNumber()
	case b == '"' || b == '\'':
		tok := s.scanString(b)
		if tok.Kind == TokenString && s.labelPossible(prev) && s.features.QuotedLabels && s.peekByte(0) == ':' && s.peekByte(1) != ':' {
			s.i++
			tok.Kind = TokenLabel
			tok.Span = span(start, s.i)
			s.state = StateArg | StateLabeled
			return tok
		}
		s.afterOperand()
		return tok
	case b == '@':
		return s.scanInstanceVariable()
	case b == '$':
		return s.scanGlobalVariable()
	case b == ':':
		return s.scanColon(prev, spaceBefore)
	case b == '%' && s.percentLiteralPossible(prev, spaceBefore):
		return s.scanPercentLiteral()
	case b == '/' && s.regexpPossible(prev, spaceBefore):
		return s.scanRegexp()
	case b == '<' && s.peekByte(1) == '<' && s.heredocPossible(prev, spaceBefore):
		if tok, ok := s.scanHeredocStart(); ok {
			return tok
		}
	case b == '?' && s.charLiteralPossible(prev):
		return s.scanCharLiteral()
	}

	if s.def == defName {
		if op := s.matchOperatorMethod(); op != "" {
			s.i += len(op)
			s.def = defAfterName
			s.state = StateEndFn
			return Token{Kind: TokenOp, Span: span(start, s.i)}
		}
	}

	switch b {
	case '(':
		s.i++
		s.parenDepth++
		if s.def == defAfterName && !spaceBefore {
			s.def = defParamsParen
			s.defParenDepth = s.parenDepth
		} else if s.def == defAfterName {
			s.def = defNone
		}
		s.state = StateBeg | StateLabel
		s.cmdStart = false
		return Token{Kind: TokenLParen, Span: span(start, s.i)}
	case ')':
		s.i++
		if s.def == defParamsParen && s.parenDepth == s.defParenDepth {
			s.def = defNone
		}
		s.parenDepth--
		s.state = StateEndFn
		return Token{Kind: TokenRParen, Span: span(start, s.i)}
	case '[':
		s.i++
		s.state = StateBeg | StateLabel
		s.cmdStart = false
		return Token{Kind: TokenLBracket, Span: span(start, s.i)}
	case ']':
		s.i++
		s.state = StateEnd
		return Token{Kind: TokenRBracket, Span: span(start, s.i)}
	case '{':
		s.i++
		block := (prev.IsArg() || prev.IsEnd()) && prev != StateArg|StateLabeled
		if block {
			s.state = StateBeg
			s.cmdStart = true
			s.blockParamsPos = len(s.tokens) + 1
		} else {
			s.state = StateBeg | StateLabel
			s.cmdStart = false
		}
		return Token{Kind: TokenLBrace, Span: span(start, s.i)}
	case '}':
		s.i++
		s.state = StateEnd
		return Token{Kind: TokenRBrace, Span: span(start, s.i)}
	case ',':
		s.i++
		s.state = StateBeg | StateLabel
		s.cmdStart = false
		return Token{Kind: TokenComma, Span: span(start, s.i)}
	case ';':
		s.i++
		s.state = StateBeg
		s.cmdStart = true
		if s.def == defParamsBare || s.def == defAfterName {
			s.def = defNone
		}
		return Token{Kind: TokenSemicolon, Span: span(start, s.i)}
	case '.':
		if s.peekByte(1) == '.' {
			return s.op(start, rangeOp(s.src[s.i:]), StateBeg)
		}
		s.i++
		if s.def == defAfterName {
			s.def = defName
			s.state = StateFName
		} else {
			s.state = StateDot
		}
		s.cmdStart = false
		return Token{Kind: TokenPeriod, Span: span(start, s.i)}
	case '-':
		if s.peekByte(1) == '>' && s.features.Lambda {
			s.i += 2
			s.state = StateEndFn
			s.cmdStart = false
			return Token{Kind: TokenLambda, Span: span(start, s.i)}
		}
	case '&':
		if s.peekByte(1) == '.' && s.features.SafeNavigation && !isDigit(s.peekByte(2)) {
			return s.op(start, "&.", StateDot)
		}
	case '|':
		if blockParamsOpen && s.peekByte(1) != '|' {
			s.i++
			s.inBlockParams = true
			s.state = StateBeg | StateLabel
			s.cmdStart = false
			return Token{Kind: TokenOp, Span: span(start, s.i)}
		}
		if s.inBlockParams {
			s.i++
			s.inBlockParams = false
			s.state = StateBeg | StateLabel
			s.cmdStart = true
			return Token{Kind: TokenOp, Span: span(start, s.i)}
		}
	}

	if op := matchOperator(s.src[s.i:]); op != "" {
		next := StateBeg
		if prev.Has(StateFName | StateDot) {
			next = StateArg
		}
		return s.op(start, op, next)
	}

	s.i++
	return *s.makeErrorToken(start, s.i, DiagnosticUnknownCharacter, fmt.Sprintf("invalid character %q", b))
}

func (s *scanner) op(start int, op string, next State) Token {
	s.i = start + len(op)
	s.state = next
	s.cmdStart = false
	if s.def == defAfterName {
		s.def = defNone
	}
	return Token{Kind: TokenOp, Span: span(start, s.i)}
}

// afterOperand records the lexer state after a literal or variable.
func (s *scanner) afterOperand() {
	s.state = StateEnd
	s.cmdStart = false
	if s.def == defName {
		s.def = defAfterName
	}
}

func (s *scanner) labelPossible(prev State) bool {
	if !s.features.Labels {
		return false
	}
	return (prev.Has(StateLabel|StateEndFn) && !s.cmdStart) || prev.IsArg()
}

func (s *scanner) scanIdentifier(prev State) Token {
	start := s.i
	s.i++
	for !s.eof() && isIdentPart(s.src[s.i]) {
		s.i++
	}
	if c := s.peekByte(0); (c == '?' || c == '!') && (s.peekByte(1) != '=' || s.peekByte(2) == '=' || s.peekByte(2) == '~') {
		s.i++
	}
	if s.def == defName && s.peekByte(0) == '=' && !bytes.ContainsAny([]byte{s.peekByte(1)}, "=~>") {
		s.i++ // setter name, e.g. def foo=(v)
	}
	word := string(s.src[start:s.i])

	if s.labelPossible(prev) && s.peekByte(0) == ':' && s.peekByte(1) != ':' && word[len(word)-1] != '=' {
		s.i++
		s.state = StateArg | StateLabeled
		s.cmdStart = false
		if s.def == defParamsParen || s.def == defParamsBare || s.inBlockParams {
			s.locals[word] = true
		}
		return Token{Kind: TokenLabel, Span: span(start, s.i)}
	}

	tok := Token{Kind: TokenIdent, Span: span(start, s.i)}
	isConst := s.src[start] >= 'A' && s.src[start] <= 'Z'
	if isConst {
		tok.Kind = TokenConst
	}

	switch {
	case s.def == defName:
		if IsKeyword(word) {
			tok.Kind = TokenKeyword
		}
		s.def = defAfterName
		s.state = StateEndFn
		s.cmdStart = false
		return tok
	case prev.Has(StateDot):
		s.state = StateArg
		s.cmdStart = false
		return tok
	}

	if kwState, ok := keywords[word]; ok {
		tok.Kind = TokenKeyword
		s.state = kwState
		if word == "def" {
			s.def = defName
		}
		s.cmdStart = kwState.Has(StateBeg) && word != "and" && word != "or" && word != "case" && word != "when" && word != "in"
		if word == "do" {
			s.blockParamsPos = len(s.tokens) + 1
			s.cmdStart = true
		}
		return tok
	}

	switch {
	case s.def == defAfterName:
		s.def = defParamsBare
		s.locals[word] = true
		s.state = StateArg
	case s.def == defParamsParen || s.def == defParamsBare || s.inBlockParams:
		if !isConst {
			s.locals[word] = true
		}
		s.state = StateArg
	case !isConst && s.locals[word]:
		s.state = StateEnd | StateLabel
	case s.cmdStart:
		s.state = StateCmdArg
	default:
		s.state = StateArg
	}
	if !isConst && s.assignmentFollows() {
		s.locals[word] = true
	}
	s.cmdStart = false
	return tok
}

// assignmentFollows reports whether a plain "=" (not ==, =~, =>) follows on the same line.
func (s *scanner) assignmentFollows() bool {
	j := s.i
	for j < len(s.src) && isHorizontalSpace(s.src[j]) {
		j++
	}
	if j >= len(s.src) || s.src[j] != '=' {
		return false
	}
	if j+1 < len(s.src) {
		switch s.src[j+1] {
		case '=', '~', '>':
			return false
		}
	}
	return true
}

func (s *scanner) scanNumber() Token {
	start := s.i
	kind := TokenInt
	digit := isDigit

	if s.src[s.i] == '0' {
		switch s.peekByte(1) {
		case 'x', 'X':
			digit = isHexDigit
			s.i += 2
		case 'b', 'B':
			digit = isBinaryDigit
			s.i += 2
		case 'o', 'O':
			digit = isOctalDigit
			s.i += 2
		case 'd', 'D':
			s.i += 2
		case '_', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			digit = isOctalDigit
			s.i++
		}
		if s.i > start+1 && !digit(s.peekByte(0)) && s.peekByte(0) != '_' {
			return *s.makeErrorToken(start, s.i, DiagnosticInvalidNumber, "numeric literal without digits")
		}
	}

	if msg := s.scanDigits(digit); msg != "" {
		return *s.makeErrorToken(start, s.i, DiagnosticInvalidNumber, msg)
	}

	// fractions and exponents only apply to base-10 literals
	if isDecimalLiteral(s.src[start:s.i]) {
		if s.peekByte(0) == '.' && isDigit(s.peekByte(1)) {
			kind = TokenFloat
			s.i++
			if msg := s.scanDigits(isDigit); msg != "" {
				return *s.makeErrorToken(start, s.i, DiagnosticInvalidNumber, msg)
			}
		}
		if s.tryScanExponent() {
			kind = TokenFloat
			if s.features.NumericSuffixes && s.peekByte(0) == 'r' && !isIdentPart(s.peekByte(1)) {
				// 1e3r is not a valid rational literal; leave the suffix to the parser.
				return Token{Kind: kind, Span: span(start, s.i)}
			}
		}
	}

	if s.features.NumericSuffixes {
		switch {
		case s.peekByte(0) == 'r' && s.peekByte(1) == 'i' && !isIdentPart(s.peekByte(2)):
			s.i += 2
			kind = TokenImaginary
		case s.peekByte(0) == 'r' && !isIdentPart(s.peekByte(1)):
			s.i++
			kind = TokenRational
		case s.peekByte(0) == 'i' && !isIdentPart(s.peekByte(1)):
			s.i++
			kind = TokenImaginary
		}
	}

	return Token{Kind: kind, Span: span(start, s.i)}
}

func isDecimalLiteral(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if len(b) > 1 && b[0] == '0' {
		return false
	}
	for _, c := range b {
		if !isDigit(c) && c != '_' {
			return false
		}
	}
	return true
}

// scanDigits consumes digits accepted by digit with single underscores between them.
func (s *scanner) scanDigits(digit func(byte) bool) string {
	prevUnderscore := false
	for !s.eof() {
		c := s.src[s.i]
		switch {
		case digit(c):
			prevUnderscore = false
		case c == '_':
			if prevUnderscore {
				s.i++
				return "trailing '_' in number"
			}
			prevUnderscore = true
		default:
			if prevUnderscore {
				return "trailing '_' in number"
			}
			return ""
		}
		s.i++
	}
	if prevUnderscore {
		return "trailing '_' in number"
	}
	return ""
}

func (s *scanner) tryScanExponent() bool {
	if s.eof() {
		return false
	}
	if s.src[s.i] != 'e' && s.src[s.i] != 'E' {
		return false
	}

	j := s.i + 1
	if j < len(s.src) && (s.src[j] == '+' || s.src[j] == '-') {
		j++
	}
	if j >= len(s.src) || !isDigit(s.src[j]) {
		return false
	}

	s.i = j + 1
	for !s.eof() && (isDigit(s.src[s.i]) || s.src[s.i] == '_' && isDigit(s.peekByte(1))) {
		s.i++
	}
	return true
}

func (s *scanner) scanString(quote byte) Token {
	start := s.i
	s.i++
	if s.scanQuoted(quote, quote, quote == '"') {
		return Token{Kind: TokenString, Span: span(start, s.i)}
	}
	return *s.makeErrorToken(start, s.i, DiagnosticUnterminatedString, "unterminated string meets end of file")
}

// scanQuoted consumes a delimited body after the opening delimiter.
// opener == closer for non-paired delimiters; paired delimiters nest.
func (s *scanner) scanQuoted(opener, closer byte, interpolate bool) bool {
	depth := 0
	for !s.eof() {
		c := s.src[s.i]
		switch {
		case c == '\\':
			s.i += 2
			continue
		case interpolate && c == '#' && s.peekByte(1) == '{':
			s.i += 2
			if !s.skipInterpolation() {
				return false
			}
			continue
		case c == closer && depth == 0:
			s.i++
			return true
		case c == closer:
			depth--
		case c == opener && opener != closer:
			depth++
		}
		s.i++
	}
	s.i = len(s.src)
	return false
}

// skipInterpolation consumes the body of #{...} including nested braces and strings.
func (s *scanner) skipInterpolation() bool {
	depth := 1
	for !s.eof() {
		c := s.src[s.i]
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				s.i++
				return true
			}
		case '"', '\'':
			s.i++
			if !s.scanQuoted(c, c, c == '"') {
				return false
			}
			continue
		case '\\':
			s.i++
		}
		s.i++
	}
	s.i = len(s.src)
	return false
}

func (s *scanner) scanInstanceVariable() Token {
	start := s.i
	kind := TokenIVar
	s.i++
	if s.peekByte(0) == '@' {
		kind = TokenCVar
		s.i++
	}
	if !isIdentStart(s.peekByte(0)) {
		for !s.eof() && isIdentPart(s.src[s.i]) {
			s.i++
		}
		name := string(s.src[start:s.i])
		return *s.makeErrorToken(start, s.i, DiagnosticInvalidVariable, fmt.Sprintf("'%s' is not allowed as a variable name", name))
	}
	for !s.eof() && isIdentPart(s.src[s.i]) {
		s.i++
	}
	s.afterOperand()
	return Token{Kind: kind, Span: span(start, s.i)}
}

func (s *scanner) scanGlobalVariable() Token {
	start := s.i
	s.i++
	switch c := s.peekByte(0); {
	case isIdentStart(c):
		for !s.eof() && isIdentPart(s.src[s.i]) {
			s.i++
		}
	case isDigit(c):
		for !s.eof() && isDigit(s.src[s.i]) {
			s.i++
		}
	case c != 0 && bytes.IndexByte([]byte("~*$?!@/\\;,.=:<>\"&`'+0"), c) >= 0:
		s.i++
	case c == '-' && isIdentPart(s.peekByte(1)):
		s.i += 2
	default:
		return *s.makeErrorToken(start, s.i, DiagnosticInvalidVariable, "'$' without identifiers is not allowed as a global variable name")
	}
	s.afterOperand()
	return Token{Kind: TokenGVar, Span: span(start, s.i)}
}

var symbolOperators = []string{
	"[]=", "[]", "<=>", "===", "==", "=~", "!=", "!~", "**", "+@", "-@",
	">=", "<=", "<<", ">>", "+", "-", "*", "/", "%", "<", ">", "!", "&", "|", "^", "~",
}

func (s *scanner) matchOperatorMethod() string {
	rest := s.src[s.i:]
	for _, op := range symbolOperators {
		if bytes.HasPrefix(rest, []byte(op)) {
			return op
		}
	}
	return ""
}

func (s *scanner) scanColon(prev State, spaceBefore bool) Token {
	start := s.i
	if s.peekByte(1) == ':' {
		return s.op(start, "::", StateDot)
	}
	if prev.IsEnd() && !spaceBefore || isSpaceOrEOF(s.peekByte(1)) {
		return s.op(start, ":", StateBeg)
	}

	s.i++
	c := s.peekByte(0)
	switch {
	case c == '"' || c == '\'':
		s.i++
		if !s.scanQuoted(c, c, c == '"') {
			return *s.makeErrorToken(start, s.i, DiagnosticUnterminatedString, "unterminated quoted string meets end of file")
		}
	case c == '@' || c == '$':
		inner := s.scanVariableName()
		if !inner {
			s.i = start
			return s.op(start, ":", StateBeg)
		}
	case isIdentStart(c):
		for !s.eof() && isIdentPart(s.src[s.i]) {
			s.i++
		}
		if n := s.peekByte(0); n == '?' || n == '!' || (n == '=' && !bytes.ContainsAny([]byte{s.peekByte(1)}, "=~>")) {
			s.i++
		}
	default:
		op := s.matchOperatorMethod()
		if op == "" {
			s.i = start
			return s.op(start, ":", StateBeg)
		}
		s.i += len(op)
	}
	s.afterOperand()
	return Token{Kind: TokenSymbol, Span: span(start, s.i)}
}

func (s *scanner) scanVariableName() bool {
	j := s.i + 1
	if s.src[s.i] == '@' && j < len(s.src) && s.src[j] == '@' {
		j++
	}
	if j >= len(s.src) || !isIdentStart(s.src[j]) {
		return false
	}
	for j < len(s.src) && isIdentPart(s.src[j]) {
		j++
	}
	s.i = j
	return true
}

func (s *scanner) percentLiteralPossible(prev State, spaceBefore bool) bool {
	next := s.peekByte(1)
	if prev.IsBeg() {
		return next != 0
	}
	return prev.IsArg() && spaceBefore && !isSpaceOrEOF(next) && next != '='
}

func (s *scanner) scanPercentLiteral() Token {
	start := s.i
	s.i++
	kind := TokenString
	typ := s.peekByte(0)
	switch typ {
	case 'w', 'W':
		kind = TokenWords
		s.i++
	case 'i', 'I':
		if !s.features.SymbolArrays {
			s.i++
			return *s.makeErrorToken(start, s.i, DiagnosticUnknownPercentLiteral, "unknown type of %string")
		}
		kind = TokenSymbols
		s.i++
	case 'q', 'Q':
		s.i++
	default:
		if isIdentPart(typ) {
			s.i++
			return *s.makeErrorToken(start, s.i, DiagnosticUnknownPercentLiteral, "unknown type of %string")
		}
	}

	opener := s.peekByte(0)
	if opener == 0 || isIdentPart(opener) || isSpaceOrEOF(opener) {
		return *s.makeErrorToken(start, s.i, DiagnosticUnknownPercentLiteral, "unknown type of %string")
	}
	s.i++
	closer := closingDelimiter(opener)
	if !s.scanQuoted(opener, closer, typ == 'Q' || typ == 'W' || typ == 'I' || !isIdentPart(typ)) {
		if kind == TokenString {
			return *s.makeErrorToken(start, s.i, DiagnosticUnterminatedString, "unterminated string meets end of file")
		}
		return *s.makeErrorToken(start, s.i, DiagnosticUnterminatedList, "unterminated list meets end of file")
	}
	s.afterOperand()
	return Token{Kind: kind, Span: span(start, s.i)}
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
	default:
		return opener
	}
}

func (s *scanner) regexpPossible(prev State, spaceBefore bool) bool {
	if prev.IsBeg() {
		return true
	}
	next := s.peekByte(1)
	return prev.IsArg() && spaceBefore && !isSpaceOrEOF(next) && next != '='
}

func (s *scanner) scanRegexp() Token {
	start := s.i
	s.i++
	if !s.scanQuoted('/', '/', true) {
		return *s.makeErrorToken(start, s.i, DiagnosticUnterminatedRegexp, "unterminated regexp meets end of file")
	}
	for !s.eof() && bytes.IndexByte([]byte("imxounse"), s.src[s.i]) >= 0 {
		s.i++
	}
	s.afterOperand()
	return Token{Kind: TokenRegexp, Span: span(start, s.i)}
}

var operators = []string{
	"**=", "<=>", "===", "...", "<<=", ">>=", "&&=", "||=",
	"**", "==", "!=", "=~", "!~", ">=", "<=", "&&", "||", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "|=", "&=", "^=", "..", "::", "=>",
	"+", "-", "*", "/", "%", "=", "<", ">", "!", "&", "|", "^", "~", "?", ":",
}

func matchOperator(rest []byte) string {
	for _, op := range operators {
		if bytes.HasPrefix(rest, []byte(op)) {
			return op
		}
	}
	return ""
}

func rangeOp(rest []byte) string {
	if bytes.HasPrefix(rest, []byte("...")) {
		return "..."
	}
	return ".."
}

// atEndMarker reports whether a line consisting of __END__ starts at the cursor.
func (s *scanner) atEndMarker() bool {
	rest := s.src[s.i:]
	if !bytes.HasPrefix(rest, []byte("__END__")) {
		return false
	}
	rest = rest[len("__END__"):]
	return len(rest) == 0 || rest[0] == '\n' || bytes.HasPrefix(rest, []byte("\r\n"))
}

func (s *scanner) heredocPossible(prev State, spaceBefore bool) bool {
	if prev.Has(StateDot|StateClass|StateFName) || prev.IsEnd() {
		return false
	}
	return !prev.IsArg() || prev.Has(StateLabeled) || spaceBefore
}

// scanHeredocStart scans <<ID, <<-ID, <<~ID and their quoted forms.
// The body is read once the current line ends.
func (s *scanner) scanHeredocStart() (Token, bool) {
	start := s.i
	j := s.i + 2
	indent := false
	switch s.peekByte(2) {
	case '-':
		indent = true
		j++
	case '~':
		if !s.features.SquigglyHeredoc {
			return Token{}, false
		}
		indent = true
		j++
	}

	var id string
	if j < len(s.src) && (s.src[j] == '\'' || s.src[j] == '"') {
		quote := s.src[j]
		end := j + 1
		for end < len(s.src) && s.src[end] != quote && s.src[end] != '\n' {
			end++
		}
		if end >= len(s.src) || s.src[end] != quote || end == j+1 {
			return Token{}, false
		}
		id = string(s.src[j+1 : end])
		j = end + 1
	} else {
		end := j
		for end < len(s.src) && isIdentPart(s.src[end]) {
			end++
		}
		if end == j {
			return Token{}, false
		}
		id = string(s.src[j:end])
		j = end
	}

	s.i = j
	s.heredocs = append(s.heredocs, pendingHeredoc{tok: len(s.tokens), id: id, indent: indent})
	s.afterOperand()
	return Token{Kind: TokenHeredoc, Span: span(start, s.i)}, true
}

// readHeredocBodies consumes the bodies and terminators of the heredocs opened on the previous line.
func (s *scanner) readHeredocBodies(add func(TriviaKind, int)) {
	pending := s.heredocs
	s.heredocs = nil
	for _, h := range pending {
		bodyStart := s.i
		for {
			if s.eof() {
				if s.i > bodyStart {
					add(TriviaHeredocBody, bodyStart)
				}
				s.failHeredoc(h)
				break
			}
			lineEnd := s.i
			for lineEnd < len(s.src) && s.src[lineEnd] != '\n' {
				lineEnd++
			}
			if isHeredocEnd(s.src[s.i:lineEnd], h) {
				s.tokens[h.tok].Body = span(bodyStart, s.i)
				if s.i > bodyStart {
					add(TriviaHeredocBody, bodyStart)
				}
				termStart := s.i
				s.i = min(lineEnd+1, len(s.src))
				add(TriviaHeredocEnd, termStart)
				break
			}
			s.i = min(lineEnd+1, len(s.src))
		}
	}
}

func isHeredocEnd(line []byte, h pendingHeredoc) bool {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if h.indent {
		line = bytes.TrimLeft(line, " \t")
	}
	return string(line) == h.id
}

func (s *scanner) failHeredoc(h pendingHeredoc) {
	tok := &s.tokens[h.tok]
	tok.Kind = TokenError
	tok.Flags |= TokenFlagMalformed
	s.diagnostics = append(s.diagnostics, Diagnostic{
		Code:    DiagnosticUnterminatedHeredoc,
		Message: fmt.Sprintf("can't find string \"%s\" anywhere before EOF", h.id),
		Span:    tok.Span,
	})
}

// charLiteralPossible reports whether '?' starts a character literal such as ?a rather than a ternary.
func (s *scanner) charLiteralPossible(prev State) bool {
	if prev.IsEnd() {
		return false
	}
	c := s.peekByte(1)
	if isSpaceOrEOF(c) {
		return false
	}
	return !isIdentPart(c) || !isIdentPart(s.peekByte(2))
}

func (s *scanner) scanCharLiteral() Token {
	start := s.i
	s.i++
	if s.src[s.i] == '\\' {
		s.i = min(s.i+2, len(s.src))
		if s.src[s.i-1] == 'u' {
			s.skipUnicodeEscape()
		}
	} else {
		_, size := utf8.DecodeRune(s.src[s.i:])
		s.i += size
	}
	s.afterOperand()
	return Token{Kind: TokenChar, Span: span(start, s.i)}
}

func (s *scanner) skipUnicodeEscape() {
	if s.peekByte(0) == '{' {
		for !s.eof() && s.src[s.i] != '}' && s.src[s.i] != '\n' {
			s.i++
		}
		if s.peekByte(0) == '}' {
			s.i++
		}
		return
	}
	for n := 0; n < 4 && isHexDigit(s.peekByte(0)); n++ {
		s.i++
	}
}

func (s *scanner) makeErrorToken(start, end int, code DiagnosticCode, msg string) *Token {
	sp := span(start, end)
	s.diagnostics = append(s.diagnostics, Diagnostic{
		Code:    code,
		Message: msg,
		Span:    sp,
	})
	return &Token{
		Kind:  TokenError,
		Span:  sp,
		Flags: TokenFlagMalformed,
	}
}

func (s *scanner) atLineStart() bool {
	return s.i == 0 || s.src[s.i-1] == '\n'
}

func (s *scanner) eof() bool {
	return s.i >= len(s.src)
}

func (s *scanner) peekByte(delta int) byte {
	j := s.i + delta
	if j < 0 || j >= len(s.src) {
		return 0
	}
	return s.src[j]
}

func span(start, end int) text.Span {
	return text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(end)}
}

func isHorizontalSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}

func isSpaceOrEOF(b byte) bool {
	return b == 0 || b == '\n' || isHorizontalSpace(b)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }

func isBinaryDigit(b byte) bool { return b == '0' || b == '1' }

func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b >= utf8.RuneSelf
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}
