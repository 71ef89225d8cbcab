package syntax

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/text"
)

func mustParse(t *testing.T, src string, v grammar.Version) *Node {
	t.Helper()
	root, err := Parse(context.Background(), []byte(src), Options{Version: v})
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", src, err)
	}
	return root
}

func TestParseBuildsTree(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		{src: "1 + 1", want: "(send (int 1) :+ (int 1))"},
		{src: "x = 1\nx", want: "(begin (lvasgn :x (int 1)) (lvar :x))"},
		{src: "x = 1 if y", want: "(if (send nil :y) (lvasgn :x (int 1)) nil)"},
		{src: "a ? b : c", want: "(if (send nil :a) (send nil :b) (send nil :c))"},
		{src: "foo.bar(1, 2)", want: "(send (send nil :foo) :bar (int 1) (int 2))"},
		{src: "puts 'hi'", want: `(send nil :puts (str "hi"))`},
		{src: "[1, *b]", want: "(array (int 1) (splat (send nil :b)))"},
		{src: "{a: 1, 'b' => 2}", want: `(hash (pair (sym :a) (int 1)) (pair (str "b") (int 2)))`},
		{src: `"a#{b}c"`, want: `(dstr (str "a") (begin (send nil :b)) (str "c"))`},
		{src: "-1", want: "(int -1)"},
		{src: "-2 ** 2", want: "(send (send (int 2) :** (int 2)) :-@)"},
		{src: "1e20", want: "(float 1.0e+20)"},
		{src: "0.1", want: "(float 0.1)"},
		{src: "0x1f", want: "(int 31)"},
		{src: `:"foo bar"`, want: `(sym :"foo bar")`},
		{src: "%w[a b]", want: `(array (str "a") (str "b"))`},
		{src: "/ab+c/i", want: `(regexp (str "ab+c") (regopt :i))`},
		{src: "a, b = 1, 2", want: "(masgn (mlhs (lvasgn :a) (lvasgn :b)) (array (int 1) (int 2)))"},
		{src: "a = 1, 2", want: "(lvasgn :a (array (int 1) (int 2)))"},
		{src: "x ||= 1", want: "(or_asgn (lvasgn :x) (int 1))"},
		{src: "a.b += 1", want: "(op_asgn (send (send nil :a) :b) :+ (int 1))"},
		{src: "a[1] = 2", want: "(send (send nil :a) :[]= (int 1) (int 2))"},
		{src: "Foo::Bar", want: "(const (const nil :Foo) :Bar)"},
		{src: "not x", want: "(send (send nil :x) :!)"},
		{src: "a && b || c", want: "(or (and (send nil :a) (send nil :b)) (send nil :c))"},
		{
			src:  "foo(*args, **opts, &blk)",
			want: "(send nil :foo (splat (send nil :args)) (hash (kwsplat (send nil :opts))) (block_pass (send nil :blk)))",
		},
		{
			src:  "def foo(a, b = 1, *c, d:, e: 2, **f, &g)\nend",
			want: "(def :foo (args (arg :a) (optarg :b (int 1)) (restarg :c) (kwarg :d) (kwoptarg :e (int 2)) (kwrestarg :f) (blockarg :g)) nil)",
		},
		{src: "def self.foo; end", want: "(defs (self) :foo (args) nil)"},
		{src: "foo do |x| x end", want: "(block (send nil :foo) (args (arg :x)) (lvar :x))"},
		{src: "->(x) { x }", want: "(block (lambda) (args (arg :x)) (lvar :x))"},
		{
			src:  "[1, 2].map { _1 * 2 }",
			want: "(numblock (send (array (int 1) (int 2)) :map) 1 (send (lvar :_1) :* (int 2)))",
		},
		{
			src:  "class Foo < Bar\n  def baz; end\nend",
			want: "(class (const nil :Foo) (const nil :Bar) (def :baz (args) nil))",
		},
		{src: "module Foo; end", want: "(module (const nil :Foo) nil)"},
		{
			src:  "begin\n  foo\nrescue StandardError => e\n  bar\nend",
			want: "(kwbegin (rescue (send nil :foo) (resbody (array (const nil :StandardError)) (lvasgn :e) (send nil :bar)) nil))",
		},
		{
			src:  "if a\n  1\nelsif b\n  2\nelse\n  3\nend",
			want: "(if (send nil :a) (int 1) (if (send nil :b) (int 2) (int 3)))",
		},
		{src: "unless a then 1 end", want: "(if (send nil :a) nil (int 1))"},
		{src: "while x do y end", want: "(while (send nil :x) (send nil :y))"},
		{
			src:  "case x\nwhen 1, 2 then :a\nelse :b\nend",
			want: "(case (send nil :x) (when (int 1) (int 2) (sym :a)) (sym :b))",
		},
		{
			src:  "case x\nin [a, b] then a\nend",
			want: "(case_match (send nil :x) (in_pattern (array_pattern (match_var :a) (match_var :b)) nil (lvar :a)) nil)",
		},
		{src: "return 1", want: "(return (int 1))"},
		{src: "yield", want: "(yield)"},
		{src: "3r", want: "(rational (3/1))"},
		{src: "2i", want: "(complex (0+2i))"},
		{src: "(1..)", want: "(begin (irange (int 1) nil))"},
		{src: "(..1)", want: "(begin (irange nil (int 1)))"},
		{src: "$1", want: "(nth_ref 1)"},
		{src: "@a = nil", want: "(ivasgn :@a (nil))"},
		{src: "alias foo bar", want: "(alias (sym :foo) (sym :bar))"},
		{src: "puts <<EOS\nhi\nEOS", want: `(send nil :puts (str "hi\n"))`},
		{src: "x = <<~EOS\n  hi\nEOS\n", want: `(lvasgn :x (str "hi\n"))`},
		{src: "x = <<~EOS\n  hi\n    there\nEOS\n", want: `(lvasgn :x (dstr (str "hi\n") (str "  there\n")))`},
		{src: "<<-EOS\n  a #{b}\n  EOS", want: `(dstr (str "  a ") (begin (send nil :b)) (str "\n"))`},
		{src: "x = <<'EOS'\n#{a}\nEOS", want: `(lvasgn :x (str "\#{a}\n"))`},
		{src: "foo(<<A, <<B)\na\nA\nb\nB", want: `(send nil :foo (str "a\n") (str "b\n"))`},
		{src: "<<EOS.strip\n x\nEOS", want: `(send (str " x\n") :strip)`},
		{src: "x = <<EOS\nEOS", want: "(lvasgn :x (dstr))"},
		{src: "?a", want: `(str "a")`},
		{src: `?\t`, want: `(str "\t")`},
		{src: "puts ?a\n__END__\nnot ruby (", want: `(send nil :puts (str "a"))`},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			t.Parallel()
			root := mustParse(t, tc.src, 27)
			if got := root.String(); got != tc.want {
				t.Fatalf("Parse(%q) = %s, want %s", tc.src, got, tc.want)
			}
		})
	}
}

func TestParseEmptyProgram(t *testing.T) {
	t.Parallel()

	for _, src := range []string{"", "  \n# comment\n", ";;"} {
		root, err := Parse(context.Background(), []byte(src), Options{})
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", src, err)
		}
		if root != nil {
			t.Fatalf("Parse(%q) = %s, want nil", src, root)
		}
	}
}

func TestParseIncompleteDefinitionFailsForEveryVersion(t *testing.T) {
	t.Parallel()

	for _, v := range grammar.DefaultRange().Versions() {
		_, err := Parse(context.Background(), []byte("def foo("), Options{Version: v})
		var synErr *SyntaxError
		if !errors.As(err, &synErr) {
			t.Fatalf("version %s: Parse() error = %v, want *SyntaxError", v, err)
		}
		if synErr.Pos != (text.Point{Line: 1, Column: 8}) {
			t.Fatalf("version %s: error position = %s, want 1:8", v, synErr.Pos)
		}
	}
}

func TestParseErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		opts Options
		want string
	}{
		{
			name: "ripper end of input",
			src:  "def foo(",
			opts: Options{Version: 27},
			want: "1:8: syntax error, unexpected end-of-input",
		},
		{
			name: "parser end of input",
			src:  "def foo(",
			opts: Options{Version: 25, ErrorStyle: ErrorStyleParser, Backend: "parser25"},
			want: "(parser25) 1:8: unexpected token $end",
		},
		{
			name: "dangling operator",
			src:  "1 +",
			opts: Options{},
			want: "1:3: syntax error, unexpected end-of-input",
		},
		{
			name: "rational before 2.1",
			src:  "3r",
			opts: Options{Version: 20, ErrorStyle: ErrorStyleParser, Backend: "parser20"},
			want: "(parser20) 1:1: unexpected token tIDENTIFIER",
		},
		{
			name: "lexer diagnostic",
			src:  `"abc`,
			opts: Options{},
			want: "1:0: unterminated string meets end of file",
		},
		{
			name: "unterminated heredoc",
			src:  "puts <<EOS\nbody",
			opts: Options{},
			want: `1:5: can't find string "EOS" anywhere before EOF`,
		},
		{
			name: "second line",
			src:  "x = 1\n)",
			opts: Options{},
			want: "2:0: syntax error, unexpected ')'",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(context.Background(), []byte(tc.src), tc.opts)
			if err == nil {
				t.Fatalf("Parse(%q) error = nil, want %q", tc.src, tc.want)
			}
			if got := err.Error(); got != tc.want {
				t.Fatalf("Parse(%q) error = %q, want %q", tc.src, got, tc.want)
			}
		})
	}
}

func TestParseVersionGates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src   string
		since grammar.Version
	}{
		{src: "->(x) { x }", since: 19},
		{src: "{a: 1}", since: 19},
		{src: "def f(a: 1); end", since: 20},
		{src: "%i[a b]", since: 20},
		{src: "def f(a:); end", since: 21},
		{src: "3r", since: 21},
		{src: `{"a": 1}`, since: 22},
		{src: "a&.b", since: 23},
		{src: "x = <<~EOS\n  hi\nEOS\n", since: 23},
		{src: "foo do\n  bar\nrescue\n  baz\nend", since: 25},
		{src: "(1..)", since: 26},
		{src: "(..1)", since: 27},
		{src: "def f(...)\n  g(...)\nend", since: 27},
		{src: "case 1\nin Integer => n then n\nend", since: 27},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			t.Parallel()
			for _, v := range grammar.DefaultRange().Versions() {
				_, err := Parse(context.Background(), []byte(tc.src), Options{Version: v})
				if ok := err == nil; ok != (v >= tc.since) {
					t.Fatalf("version %s: Parse(%q) error = %v, want success=%v", v, tc.src, err, v >= tc.since)
				}
			}
		})
	}
}

func TestParseCharacterLiteralBefore19IsInteger(t *testing.T) {
	t.Parallel()

	if got := mustParse(t, "?a", 18).String(); got != "(int 97)" {
		t.Fatalf("Parse(?a) at 1.8 = %s, want (int 97)", got)
	}
	if got := mustParse(t, "?a", 19).String(); got != `(str "a")` {
		t.Fatalf("Parse(?a) at 1.9 = %s, want (str \"a\")", got)
	}
}

func TestParseHeredocSpans(t *testing.T) {
	t.Parallel()

	src := "x = <<EOS\nhi\nEOS"
	root := mustParse(t, src, 27)
	str := root.Child(1)
	if str.Span != (text.Span{Start: 4, End: 9}) {
		t.Fatalf("heredoc span = %s, want [4,9)", str.Span)
	}
	if got := src[str.Name.Start:str.Name.End]; got != "hi\n" {
		t.Fatalf("heredoc body = %q, want %q", got, "hi\n")
	}
}

func TestParseRejectsDeepNesting(t *testing.T) {
	t.Parallel()

	const depth = 1_000_000
	tests := []string{
		strings.Repeat("[", depth) + strings.Repeat("]", depth),
		strings.Repeat("(", depth) + "1" + strings.Repeat(")", depth),
		strings.Repeat("!", depth) + "x",
		"case x\nin " + strings.Repeat("[", depth) + strings.Repeat("]", depth) + "\nend",
	}
	for _, src := range tests {
		_, err := Parse(context.Background(), []byte(src), Options{})
		if !errors.Is(err, ErrTooDeep) {
			t.Fatalf("Parse(%.20q...) error = %v, want ErrTooDeep", src, err)
		}
		var synErr *SyntaxError
		if errors.As(err, &synErr) {
			t.Fatalf("Parse(%.20q...) error is a *SyntaxError, want a fault", src)
		}
	}

	shallow := strings.Repeat("[", 100) + strings.Repeat("]", 100)
	if _, err := Parse(context.Background(), []byte(shallow), Options{}); err != nil {
		t.Fatalf("Parse(100 nested arrays) error = %v", err)
	}
}

func TestParseCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, []byte("1 + 1"), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Parse() error = %v, want context.Canceled", err)
	}
}

func TestParseSpans(t *testing.T) {
	t.Parallel()

	root := mustParse(t, "foo.bar(1)", 27)
	if root.Span != (text.Span{Start: 0, End: 10}) {
		t.Fatalf("root span = %s, want [0,10)", root.Span)
	}
	if root.Name != (text.Span{Start: 4, End: 7}) {
		t.Fatalf("selector span = %s, want [4,7)", root.Name)
	}
	recv := root.Child(0)
	if recv.Span != (text.Span{Start: 0, End: 3}) {
		t.Fatalf("receiver span = %s, want [0,3)", recv.Span)
	}
}

func TestInspectString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: `"plain"`},
		{in: `a"b`, want: `"a\"b"`},
		{in: "tab\there", want: `"tab\there"`},
		{in: "#{x}", want: `"\#{x}"`},
		{in: "line\n", want: `"line\n"`},
		{in: "caf\u00e9", want: "\"caf\u00e9\""},
		{in: "bell\x07", want: `"bell\a"`},
		{in: "nul\x00end", want: `"nul\u0000end"`},
	}
	for _, tc := range tests {
		if got := InspectString(tc.in); got != tc.want {
			t.Fatalf("InspectString(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
