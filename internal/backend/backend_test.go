package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/syntax"
	"github.com/kpumuk/parsebot/internal/text"
)

func parseWith(t *testing.T, id ID, code string) Representation {
	t.Helper()
	b, err := newTestRegistry(t).Resolve(id)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", id, err)
	}
	rep, err := b.Parse(context.Background(), code)
	if err != nil {
		t.Fatalf("%s.Parse(%q) error = %v", id, code, err)
	}
	return rep
}

func at(line, col int) Pos {
	return Pos{Line: line, Column: col}
}

func TestTokenizeReportsSignificantTokens(t *testing.T) {
	t.Parallel()

	got := parseWith(t, IDTokenize, "x = 1")
	want := &TokenStream{Tokens: []Token{
		{Pos: text.Point{Line: 1, Column: 0}, Kind: "on_ident", Text: "x"},
		{Pos: text.Point{Line: 1, Column: 2}, Kind: "on_op", Text: "="},
		{Pos: text.Point{Line: 1, Column: 4}, Kind: "on_int", Text: "1"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeSkipsCommentsAndIgnoredNewlines(t *testing.T) {
	t.Parallel()

	got := parseWith(t, IDTokenize, "foo(1, # one\n  2)\n").(*TokenStream)
	var kinds []string
	for _, tok := range got.Tokens {
		kinds = append(kinds, tok.Kind)
	}
	want := []string{"on_ident", "on_lparen", "on_int", "on_comma", "on_int", "on_rparen", "on_nl"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("token kinds mismatch (-want +got):\n%s", diff)
	}
	if got.Tokens[4].Pos != (text.Point{Line: 2, Column: 2}) {
		t.Fatalf("second argument at %s, want 2:2", got.Tokens[4].Pos)
	}
}

func TestTokenizeKeepsHeredocBodies(t *testing.T) {
	t.Parallel()

	got := parseWith(t, IDTokenize, "puts <<-EOS\n  hi\n  EOS\n").(*TokenStream)
	want := []Token{
		{Pos: text.Point{Line: 1, Column: 0}, Kind: "on_ident", Text: "puts"},
		{Pos: text.Point{Line: 1, Column: 5}, Kind: "on_heredoc_beg", Text: "<<-EOS"},
		{Pos: text.Point{Line: 1, Column: 11}, Kind: "on_nl", Text: "\n"},
		{Pos: text.Point{Line: 2, Column: 0}, Kind: "on_tstring_content", Text: "  hi\n"},
		{Pos: text.Point{Line: 3, Column: 0}, Kind: "on_heredoc_end", Text: "  EOS\n"},
	}
	if diff := cmp.Diff(want, got.Tokens); diff != "" {
		t.Fatalf("tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestLexIncludesTriviaAndStates(t *testing.T) {
	t.Parallel()

	got := parseWith(t, IDLex, "x = 1")
	want := &LexStream{Records: []LexRecord{
		{Pos: text.Point{Line: 1, Column: 0}, Kind: "on_ident", Text: "x", State: "CMDARG"},
		{Pos: text.Point{Line: 1, Column: 1}, Kind: "on_sp", Text: " ", State: "CMDARG"},
		{Pos: text.Point{Line: 1, Column: 2}, Kind: "on_op", Text: "=", State: "BEG"},
		{Pos: text.Point{Line: 1, Column: 3}, Kind: "on_sp", Text: " ", State: "BEG"},
		{Pos: text.Point{Line: 1, Column: 4}, Kind: "on_int", Text: "1", State: "END"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lex mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenBackendsReportLexerErrors(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	for _, id := range []ID{IDTokenize, IDLex} {
		b, _ := reg.Resolve(id)
		_, err := b.Parse(context.Background(), `"abc`)
		var synErr *syntax.SyntaxError
		if !errors.As(err, &synErr) {
			t.Fatalf("%s.Parse() error = %v, want *syntax.SyntaxError", id, err)
		}
	}
}

func TestSexpBuildsRipperTree(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code string
		want Value
	}{
		{
			name: "binary",
			code: "1 + 1",
			want: List{Symbol("program"), List{
				List{Symbol("binary"), List{Symbol("@int"), String("1"), at(1, 0)}, Symbol("+"), List{Symbol("@int"), String("1"), at(1, 4)}},
			}},
		},
		{
			name: "empty",
			code: "",
			want: List{Symbol("program"), List{List{Symbol("void_stmt")}}},
		},
		{
			name: "assignment",
			code: "x = 1",
			want: List{Symbol("program"), List{
				List{
					Symbol("assign"),
					List{Symbol("var_field"), List{Symbol("@ident"), String("x"), at(1, 0)}},
					List{Symbol("@int"), String("1"), at(1, 4)},
				},
			}},
		},
		{
			name: "call with parens",
			code: "foo.bar(1)",
			want: List{Symbol("program"), List{
				List{
					Symbol("method_add_arg"),
					List{
						Symbol("call"),
						List{Symbol("vcall"), List{Symbol("@ident"), String("foo"), at(1, 0)}},
						List{Symbol("@period"), String("."), at(1, 3)},
						List{Symbol("@ident"), String("bar"), at(1, 4)},
					},
					List{Symbol("arg_paren"), List{
						Symbol("args_add_block"),
						List{List{Symbol("@int"), String("1"), at(1, 8)}},
						Raw("false"),
					}},
				},
			}},
		},
		{
			name: "command",
			code: "puts 'hi'",
			want: List{Symbol("program"), List{
				List{
					Symbol("command"),
					List{Symbol("@ident"), String("puts"), at(1, 0)},
					List{
						Symbol("args_add_block"),
						List{List{Symbol("string_literal"), List{
							Symbol("string_content"),
							List{Symbol("@tstring_content"), String("hi"), at(1, 6)},
						}}},
						Raw("false"),
					},
				},
			}},
		},
		{
			name: "two statements",
			code: "a = 1\n:a",
			want: List{Symbol("program"), List{
				List{
					Symbol("assign"),
					List{Symbol("var_field"), List{Symbol("@ident"), String("a"), at(1, 0)}},
					List{Symbol("@int"), String("1"), at(1, 4)},
				},
				List{Symbol("symbol_literal"), List{Symbol("symbol"), List{Symbol("@ident"), String("a"), at(2, 1)}}},
			}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := parseWith(t, IDSexp, tc.code)
			want := &Tree{Style: StyleSexp, Root: tc.want}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("sexp(%q) mismatch (-want +got):\n%s", tc.code, diff)
			}
		})
	}
}

func TestSexpCoversCommonConstructs(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	b, _ := reg.Resolve(IDRipper)
	for _, code := range []string{
		"def foo(a, b = 1, *c, d:, e: 2, **f, &g)\n  a\nrescue => e\n  nil\nensure\n  g\nend",
		"class Foo < Bar; def self.x; end; end",
		"module A::B; end",
		"[1, *a, 2].each { |x| x }",
		"foo do |a, (b, c)| end",
		"->(x) { x }",
		"if a then b elsif c then d else e end",
		"x unless y",
		"a ? b : c",
		"while x do y end",
		"case x when 1, 2 then :a else :b end",
		"a, b = 1, 2",
		"a.b += 1",
		"a[1] ||= 2",
		`"a#{b}c" 'd'`,
		"%w[a b] + %i[c]",
		"/a#{b}/im",
		"{a: 1, **h, 'b' => 2}",
		"foo(*a, k: 1, &blk)",
		"return 1, 2",
		"alias $a $b",
		"x = a rescue b",
		"not a and b",
		"defined?(@a)",
		"case 1\nin Integer => n then n\nend",
	} {
		if _, err := b.Parse(context.Background(), code); err != nil {
			t.Fatalf("ripper.Parse(%q) error = %v", code, err)
		}
	}
}

func TestParserBackendBuildsAST(t *testing.T) {
	t.Parallel()

	got := parseWith(t, ParserID(27), "1 + 1")
	want := &Tree{Style: StyleAST, Root: &Node{Type: "send", Children: []Value{
		&Node{Type: "int", Children: []Value{Raw("1")}},
		Symbol("+"),
		&Node{Type: "int", Children: []Value{Raw("1")}},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parser27 mismatch (-want +got):\n%s", diff)
	}

	empty := parseWith(t, ParserID(18), "# nothing")
	if diff := cmp.Diff(&Tree{Style: StyleAST, Root: Nil{}}, empty); diff != "" {
		t.Fatalf("parser18 on a comment mismatch (-want +got):\n%s", diff)
	}
}

func TestParserBackendsRejectIncompleteDefinition(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	for _, v := range reg.Versions() {
		b, _ := reg.Resolve(ParserID(v))
		_, err := b.Parse(context.Background(), "def foo(")
		var synErr *syntax.SyntaxError
		if !errors.As(err, &synErr) {
			t.Fatalf("parser%s.Parse() error = %v, want *syntax.SyntaxError", v, err)
		}
		want := "(parser" + v.String() + ") 1:8: unexpected token $end"
		if got := synErr.Error(); got != want {
			t.Fatalf("parser%s error = %q, want %q", v, got, want)
		}
	}
}

func TestParserBackendsFollowGrammarVersion(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	for _, v := range reg.Versions() {
		b, _ := reg.Resolve(ParserID(v))
		_, err := b.Parse(context.Background(), "a&.b")
		if ok := err == nil; ok != (v >= grammar.Version(23)) {
			t.Fatalf("parser%s on safe navigation error = %v", v, err)
		}
	}
}

func TestBackendsHonorCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reg := newTestRegistry(t)
	for _, id := range []ID{IDSexp, IDTokenize, IDLex, ParserID(27), IDRubyVM} {
		b, _ := reg.Resolve(id)
		if _, err := b.Parse(ctx, "1"); !errors.Is(err, context.Canceled) {
			t.Fatalf("%s.Parse() error = %v, want context.Canceled", id, err)
		}
	}
}

func TestNativeBackendInitFailureIsNotSyntaxError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no runtime")
	b := nativeBackend{newParser: func() (nativeParser, error) { return nil, boom }}
	_, err := b.Parse(context.Background(), "1")
	if !errors.Is(err, boom) {
		t.Fatalf("Parse() error = %v, want boom", err)
	}
	var synErr *syntax.SyntaxError
	if errors.As(err, &synErr) {
		t.Fatalf("Parse() error = %v, must not be a syntax error", err)
	}
}
