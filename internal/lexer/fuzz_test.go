package lexer

import (
	"testing"

	"github.com/kpumuk/parsebot/internal/grammar"
)

func FuzzLex(f *testing.F) {
	addCommonSeeds(f)

	f.Fuzz(func(t *testing.T, src []byte, version uint8) {
		t.Helper()

		// Keep the target responsive; fuzzing should explore shape, not spend cycles on huge blobs.
		if len(src) > 512*1024 {
			t.Skip()
		}

		v := grammar.MinSupported + grammar.Version(version)%(grammar.MaxSupported-grammar.MinSupported+1)
		res := Lex(src, Options{Version: v})
		if len(res.Tokens) == 0 {
			t.Fatal("lexer returned no tokens")
		}
		last := res.Tokens[len(res.Tokens)-1]
		if last.Kind != TokenEOF {
			t.Fatalf("last token kind = %v, want EOF", last.Kind)
		}

		prevEnd := 0
		for i, tok := range res.Tokens {
			for j, tr := range tok.Leading {
				if err := tr.Span.Validate(); err != nil {
					t.Fatalf("token[%d].leading[%d] invalid span %s: %v", i, j, tr.Span, err)
				}
				if int(tr.Span.Start) != prevEnd {
					t.Fatalf("token[%d].leading[%d] starts at %d, want %d", i, j, tr.Span.Start, prevEnd)
				}
				prevEnd = int(tr.Span.End)
			}
			if err := tok.Span.Validate(); err != nil {
				t.Fatalf("token[%d] invalid span %s: %v", i, tok.Span, err)
			}
			if int(tok.Span.Start) != prevEnd {
				t.Fatalf("token[%d] starts at %d, want %d", i, tok.Span.Start, prevEnd)
			}
			if int(tok.Span.End) > len(src) {
				t.Fatalf("token[%d] span %s out of bounds (len=%d)", i, tok.Span, len(src))
			}
			prevEnd = int(tok.Span.End)
		}
		if prevEnd != len(src) {
			t.Fatalf("tokens cover %d bytes, want %d", prevEnd, len(src))
		}
	})
}

func addCommonSeeds(f *testing.F) {
	f.Helper()

	for _, s := range []string{
		"",
		"x = 1",
		"def foo(a, *b, k: 1, &blk)\n  a&.b(->(x) { x })\nend\n",
		"class Foo < Bar; attr_reader :name; end",
		`"unterminated #{`,
		"=begin\nno end",
		"%i[a b] %w(c d) /re+/i 3r 2i 1_000",
		"\xff\xfe\xfd",
	} {
		f.Add([]byte(s), uint8(9))
		f.Add([]byte(s), uint8(0))
	}
}
