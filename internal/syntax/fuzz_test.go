package syntax

import (
	"context"
	"errors"
	"testing"

	"github.com/kpumuk/parsebot/internal/grammar"
)

func FuzzParse(f *testing.F) {
	addSyntaxSeeds(f)

	f.Fuzz(func(t *testing.T, src []byte, version uint8) {
		t.Helper()
		if len(src) > 64*1024 {
			t.Skip()
		}

		v := grammar.MinSupported + grammar.Version(version)%(grammar.MaxSupported-grammar.MinSupported+1)
		root, err := Parse(context.Background(), src, Options{Version: v})
		if err != nil {
			var synErr *SyntaxError
			if !errors.As(err, &synErr) {
				t.Fatalf("Parse() error = %T %v, want *SyntaxError", err, err)
			}
			if synErr.Pos.Line < 1 || synErr.Pos.Column < 0 {
				t.Fatalf("error position = %s, want 1-based line and 0-based column", synErr.Pos)
			}
			return
		}
		Walk(root, func(n *Node) bool {
			if err := n.Span.Validate(); err != nil {
				t.Fatalf("%s: invalid span %s: %v", n.Type, n.Span, err)
			}
			if int(n.Span.End) > len(src) {
				t.Fatalf("%s: span %s out of bounds (len=%d)", n.Type, n.Span, len(src))
			}
			return true
		})
	})
}

func addSyntaxSeeds(f *testing.F) {
	f.Helper()

	for _, s := range []string{
		"",
		"1 + 1",
		"def foo(",
		"x = 1\nx\n",
		"def foo(a, b = 1, *c, &d)\n  a&.b(->(x) { x })\nend\n",
		"class Foo < Bar; attr_reader :name; end",
		`"unterminated #{`,
		"=begin\nno end",
		"%i[a b] %w(c d) /re+/i 3r 2i 1_000",
		"case [1, 2]\nin [a, *rest] then a\nend\n",
		"\xff\xfe\xfd",
	} {
		f.Add([]byte(s), uint8(9))
		f.Add([]byte(s), uint8(0))
	}
}
