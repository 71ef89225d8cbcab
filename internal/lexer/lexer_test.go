package lexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/text"
)

func TestTokenAndTriviaBytesUseRawSpans(t *testing.T) {
	t.Parallel()

	src := []byte("  abc")
	tr := Trivia{Kind: TriviaWhitespace, Span: text.Span{Start: 0, End: 2}}
	tok := Token{Kind: TokenIdent, Span: text.Span{Start: 2, End: 5}}

	if got := string(tr.Bytes(src)); got != "  " {
		t.Fatalf("Trivia.Bytes() = %q, want %q", got, "  ")
	}
	if got := string(tok.Bytes(src)); got != "abc" {
		t.Fatalf("Token.Bytes() = %q, want %q", got, "abc")
	}
}

func TestLexGoldenAssignment(t *testing.T) {
	t.Parallel()

	src := []byte("x = 1 # note\nx\n")
	res := Lex(src, Options{})
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
	}

	got := renderTokens(src, res.Tokens)
	want := strings.TrimSpace(`
on_ident("x") CMDARG lead=[]
on_op("=") BEG lead=[on_sp(" ")]
on_int("1") END lead=[on_sp(" ")]
on_nl("\n") BEG lead=[on_sp(" "),on_comment("# note")]
on_ident("x") END|LABEL lead=[]
on_nl("\n") BEG lead=[]
on_eof("") BEG lead=[]
`)
	if got != want {
		t.Fatalf("golden mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestLexTokenPositions(t *testing.T) {
	t.Parallel()

	src := []byte("x = 1")
	res := Lex(src, Options{})
	li := text.NewLineIndex(src)

	want := []string{"1:0", "1:2", "1:4", "1:5"}
	if len(res.Tokens) != len(want) {
		t.Fatalf("len(Tokens) = %d, want %d", len(res.Tokens), len(want))
	}
	for i, tok := range res.Tokens {
		if got := li.Point(tok.Span.Start).String(); got != want[i] {
			t.Fatalf("token[%d] %s start = %s, want %s", i, tok.Kind, got, want[i])
		}
	}
}

func TestLexVersionGatedSyntax(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		version grammar.Version
		want    string
	}{
		{name: "rational before 2.1", src: "x = 3r", version: 20, want: "on_ident on_op on_int on_ident"},
		{name: "rational from 2.1", src: "x = 3r", version: 21, want: "on_ident on_op on_rational"},
		{name: "imaginary from 2.1", src: "x = 2i", version: 21, want: "on_ident on_op on_imaginary"},
		{name: "safe navigation before 2.3", src: "a&.b", version: 22, want: "on_ident on_op on_period on_ident"},
		{name: "safe navigation from 2.3", src: "a&.b", version: 23, want: "on_ident on_op on_ident"},
		{name: "lambda before 1.9", src: "->(x) { x }", version: 18, want: "on_op on_op on_lparen on_ident on_rparen on_lbrace on_ident on_rbrace"},
		{name: "lambda from 1.9", src: "->(x) { x }", version: 19, want: "on_tlambda on_lparen on_ident on_rparen on_lbrace on_ident on_rbrace"},
		{name: "label before 1.9", src: "foo(a: 1)", version: 18, want: "on_ident on_lparen on_ident on_op on_int on_rparen"},
		{name: "label from 1.9", src: "foo(a: 1)", version: 19, want: "on_ident on_lparen on_label on_int on_rparen"},
		{name: "quoted label before 2.2", src: `{"a": 1}`, version: 21, want: "on_lbrace on_tstring on_op on_int on_rbrace"},
		{name: "quoted label from 2.2", src: `{"a": 1}`, version: 22, want: "on_lbrace on_label on_int on_rbrace"},
		{name: "symbol array from 2.0", src: "%i[a b]", version: 20, want: "on_qsymbols"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := Lex([]byte(tc.src), Options{Version: tc.version})
			if got := renderKinds(res.Tokens); got != tc.want {
				t.Fatalf("Lex(%q, %d) kinds = %q, want %q", tc.src, tc.version, got, tc.want)
			}
		})
	}
}

func TestLexLiterals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		kind TokenKind
		text string
	}{
		{src: "1_000", kind: TokenInt, text: "1_000"},
		{src: "0x1F", kind: TokenInt, text: "0x1F"},
		{src: "0b101", kind: TokenInt, text: "0b101"},
		{src: "017", kind: TokenInt, text: "017"},
		{src: "1.5e3", kind: TokenFloat, text: "1.5e3"},
		{src: "1.5r", kind: TokenRational, text: "1.5r"},
		{src: `"a#{"}"}b"`, kind: TokenString, text: `"a#{"}"}b"`},
		{src: `'it\'s'`, kind: TokenString, text: `'it\'s'`},
		{src: "%w(a (b) c)", kind: TokenWords, text: "%w(a (b) c)"},
		{src: "%q{x}", kind: TokenString, text: "%q{x}"},
		{src: ":foo?", kind: TokenSymbol, text: ":foo?"},
		{src: ":<=>", kind: TokenSymbol, text: ":<=>"},
		{src: `:"a b"`, kind: TokenSymbol, text: `:"a b"`},
		{src: "/ab+/i", kind: TokenRegexp, text: "/ab+/i"},
		{src: "@name", kind: TokenIVar, text: "@name"},
		{src: "@@count", kind: TokenCVar, text: "@@count"},
		{src: "$stdout", kind: TokenGVar, text: "$stdout"},
		{src: "$1", kind: TokenGVar, text: "$1"},
		{src: "Foo", kind: TokenConst, text: "Foo"},
		{src: "empty?", kind: TokenIdent, text: "empty?"},
		{src: "?a", kind: TokenChar, text: "?a"},
		{src: `?\n`, kind: TokenChar, text: `?\n`},
		{src: `?\u{1F600}`, kind: TokenChar, text: `?\u{1F600}`},
	}

	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			t.Parallel()

			res := Lex([]byte(tc.src), Options{})
			if len(res.Diagnostics) != 0 {
				t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
			}
			if len(res.Tokens) != 2 {
				t.Fatalf("Lex(%q) = %s, want one token and EOF", tc.src, renderKinds(res.Tokens))
			}
			tok := res.Tokens[0]
			if tok.Kind != tc.kind || tok.Text != tc.text {
				t.Fatalf("Lex(%q) = %s(%q), want %s(%q)", tc.src, tok.Kind, tok.Text, tc.kind, tc.text)
			}
		})
	}
}

func TestLexMalformedInputsEmitErrorTokensAndDiagnostics(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		src          []byte
		version      grammar.Version
		wantDiagCode DiagnosticCode
		wantMessage  string
	}{
		"unterminated string": {
			src:          []byte(`"abc`),
			wantDiagCode: DiagnosticUnterminatedString,
			wantMessage:  "unterminated string meets end of file",
		},
		"unterminated regexp": {
			src:          []byte("/abc"),
			wantDiagCode: DiagnosticUnterminatedRegexp,
			wantMessage:  "unterminated regexp meets end of file",
		},
		"unterminated embedded document": {
			src:          []byte("=begin\nno end"),
			wantDiagCode: DiagnosticUnterminatedEmbdoc,
			wantMessage:  "embedded document meets end of file",
		},
		"symbol array before 2.0": {
			src:          []byte("%i[a b]"),
			version:      19,
			wantDiagCode: DiagnosticUnknownPercentLiteral,
			wantMessage:  "unknown type of %string",
		},
		"double underscore": {
			src:          []byte("1__0"),
			wantDiagCode: DiagnosticInvalidNumber,
			wantMessage:  "trailing '_' in number",
		},
		"trailing underscore": {
			src:          []byte("1_"),
			wantDiagCode: DiagnosticInvalidNumber,
			wantMessage:  "trailing '_' in number",
		},
		"hex without digits": {
			src:          []byte("0x"),
			wantDiagCode: DiagnosticInvalidNumber,
			wantMessage:  "numeric literal without digits",
		},
		"numeric instance variable": {
			src:          []byte("@1"),
			wantDiagCode: DiagnosticInvalidVariable,
			wantMessage:  "'@1' is not allowed as a variable name",
		},
		"invalid byte": {
			src:          []byte{0xff},
			wantDiagCode: DiagnosticInvalidByte,
			wantMessage:  "invalid multibyte char (UTF-8)",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res := Lex(tc.src, Options{Version: tc.version})
			if len(res.Diagnostics) == 0 {
				t.Fatalf("expected diagnostics for %q", tc.src)
			}
			if res.Diagnostics[0].Code != tc.wantDiagCode {
				t.Fatalf("diagnostic code = %s, want %s", res.Diagnostics[0].Code, tc.wantDiagCode)
			}
			if res.Diagnostics[0].Message != tc.wantMessage {
				t.Fatalf("diagnostic message = %q, want %q", res.Diagnostics[0].Message, tc.wantMessage)
			}
			if len(res.Tokens) == 0 || res.Tokens[0].Kind != TokenError {
				t.Fatalf("expected first token to be TokenError, got %+v", res.Tokens)
			}
			if !res.Tokens[0].Flags.Has(TokenFlagMalformed) {
				t.Fatalf("expected malformed flag on error token, got %v", res.Tokens[0].Flags)
			}
			if got := res.Tokens[len(res.Tokens)-1].Kind; got != TokenEOF {
				t.Fatalf("expected EOF token at end, got %s", got)
			}
		})
	}
}

func TestLexNewlineHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "operator continues line", src: "a = 1 +\n2", want: "on_ident on_op on_int on_op on_int"},
		{name: "leading dot continues chain", src: "foo\n  .bar", want: "on_ident on_period on_ident"},
		{name: "statement ends line", src: "foo\nbar", want: "on_ident on_nl on_ident"},
		{name: "blank lines collapse", src: "foo\n\n\nbar", want: "on_ident on_nl on_ident"},
		{name: "embedded document", src: "=begin\nnotes\n=end\nfoo", want: "on_ident"},
		{name: "line continuation", src: "foo \\\n  bar", want: "on_ident on_ident"},
		{name: "end marker stops scanning", src: "foo\n__END__\nbar baz", want: "on_ident on_nl"},
		{name: "end marker must start the line", src: "x __END__", want: "on_ident on_ident"},
		{name: "ternary is not a character", src: "a = 1\na ? b : c", want: "on_ident on_op on_int on_nl on_ident on_op on_ident on_op on_ident"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := Lex([]byte(tc.src), Options{})
			if got := renderKinds(res.Tokens); got != tc.want {
				t.Fatalf("Lex(%q) kinds = %q, want %q", tc.src, got, tc.want)
			}
		})
	}
}

func TestLexTracksLocalVariables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   string
		index int
		want  State
	}{
		{name: "unknown identifier at statement start", src: "foo", index: 0, want: StateCmdArg},
		{name: "assigned local", src: "a = 1\na", index: 4, want: StateEnd | StateLabel},
		{name: "block parameter", src: "[1].each { |y| y }", index: 9, want: StateEnd | StateLabel},
		{name: "method parameter", src: "def m(v) v end", index: 5, want: StateEnd | StateLabel},
		{name: "method name", src: "def m(v) v end", index: 1, want: StateEndFn},
		{name: "after dot", src: "a.b", index: 2, want: StateArg},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := Lex([]byte(tc.src), Options{})
			if tc.index >= len(res.Tokens) {
				t.Fatalf("Lex(%q) produced %d tokens", tc.src, len(res.Tokens))
			}
			tok := res.Tokens[tc.index]
			if tok.State != tc.want {
				t.Fatalf("Lex(%q) token[%d] %s(%q) state = %s, want %s", tc.src, tc.index, tok.Kind, tok.Text, tok.State, tc.want)
			}
		})
	}
}

func TestLexIsLossless(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"x = 1",
		"def foo(a, b = 2, *rest, k: 1, **opts, &blk)\n  a + b # sum\nend\n",
		"class Foo < Bar\n  attr_reader :name\nend",
		"=begin\ndoc\n=end\nputs 'hi' \\\n  if true\n",
		"\"unterminated",
		"case x\nin [1, *rest] then :ok\nend",
		"foo(<<-A, <<B)\n  a\n  A\nb\nB\nbar\n",
		"x = <<~EOS\n  #{y}\nEOS",
		"puts ?a\n__END__\ndata",
		"puts <<EOS\nnever closed",
	}

	for _, src := range inputs {
		t.Run(fmt.Sprintf("%q", src), func(t *testing.T) {
			t.Parallel()

			res := Lex([]byte(src), Options{})
			if got := reassemble([]byte(src), res.Tokens); got != src {
				t.Fatalf("reassembled source = %q, want %q", got, src)
			}
		})
	}
}

func TestLexHeredocs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		version  grammar.Version
		wantBody string
	}{
		{name: "plain", src: "puts <<EOS\nhi\nEOS\n", wantBody: "hi\n"},
		{name: "dash allows indented terminator", src: "puts <<-EOS\n  hi\n  EOS", wantBody: "  hi\n"},
		{name: "squiggly", src: "x = <<~EOS\n  hi\nEOS\n", version: 23, wantBody: "  hi\n"},
		{name: "quoted identifier", src: "x = <<'EOS'\n#{raw}\nEOS", wantBody: "#{raw}\n"},
		{name: "empty body", src: "x = <<EOS\nEOS", wantBody: ""},
		{name: "terminator needs exact match", src: "x = <<EOS\nEOSX\nEOS", wantBody: "EOSX\n"},
		{name: "rest of line follows opener", src: "foo(<<EOS, 1)\nbody\nEOS", wantBody: "body\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			src := []byte(tc.src)
			res := Lex(src, Options{Version: tc.version})
			if len(res.Diagnostics) != 0 {
				t.Fatalf("Lex(%q) diagnostics = %+v", tc.src, res.Diagnostics)
			}
			var opener *Token
			for i := range res.Tokens {
				if res.Tokens[i].Kind == TokenHeredoc {
					opener = &res.Tokens[i]
					break
				}
			}
			if opener == nil {
				t.Fatalf("Lex(%q) = %s, want a heredoc opener", tc.src, renderKinds(res.Tokens))
			}
			if got := string(src[opener.Body.Start:opener.Body.End]); got != tc.wantBody {
				t.Fatalf("Lex(%q) heredoc body = %q, want %q", tc.src, got, tc.wantBody)
			}
		})
	}
}

func TestLexHeredocVersionGateAndErrors(t *testing.T) {
	t.Parallel()

	res := Lex([]byte("x = <<~EOS\nEOS"), Options{Version: 22})
	for _, tok := range res.Tokens {
		if tok.Kind == TokenHeredoc {
			t.Fatalf("2.2 lexed %q as a heredoc opener", tok.Text)
		}
	}

	res = Lex([]byte("a = 1\na << 2"), Options{})
	if got, want := renderKinds(res.Tokens), "on_ident on_op on_int on_nl on_ident on_op on_int"; got != want {
		t.Fatalf("shift after a local = %q, want %q", got, want)
	}

	res = Lex([]byte("class << self; end"), Options{})
	for _, tok := range res.Tokens {
		if tok.Kind == TokenHeredoc {
			t.Fatalf("singleton class lexed %q as a heredoc opener", tok.Text)
		}
	}

	res = Lex([]byte("puts <<EOS\nbody"), Options{})
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != DiagnosticUnterminatedHeredoc {
		t.Fatalf("unterminated heredoc diagnostics = %+v", res.Diagnostics)
	}
	if want := `can't find string "EOS" anywhere before EOF`; res.Diagnostics[0].Message != want {
		t.Fatalf("diagnostic message = %q, want %q", res.Diagnostics[0].Message, want)
	}
	if res.Tokens[1].Kind != TokenError || !res.Tokens[1].Flags.Has(TokenFlagMalformed) {
		t.Fatalf("opener = %s %v, want a malformed error token", res.Tokens[1].Kind, res.Tokens[1].Flags)
	}
}

func renderTokens(src []byte, tokens []Token) string {
	lines := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		lines = append(lines, fmt.Sprintf("%s(%q) %s lead=%s", tok.Kind, tok.Bytes(src), tok.State, renderLeading(src, tok.Leading)))
	}
	return strings.Join(lines, "\n")
}

func renderLeading(src []byte, trivia []Trivia) string {
	if len(trivia) == 0 {
		return "[]"
	}

	parts := make([]string, 0, len(trivia))
	for _, tr := range trivia {
		parts = append(parts, fmt.Sprintf("%s(%q)", tr.Kind, tr.Bytes(src)))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func renderKinds(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Kind == TokenEOF {
			continue
		}
		parts = append(parts, tok.Kind.String())
	}
	return strings.Join(parts, " ")
}

func reassemble(src []byte, tokens []Token) string {
	var b strings.Builder
	for _, tok := range tokens {
		for _, tr := range tok.Leading {
			b.Write(tr.Bytes(src))
		}
		b.Write(tok.Bytes(src))
	}
	return b.String()
}
