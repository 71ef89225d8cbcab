package syntax

import (
	"context"
	"errors"
	"testing"

	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/testutil"
)

func TestCorpusValidParsesWithNewestGrammar(t *testing.T) {
	t.Parallel()

	files, err := testutil.CorpusFiles("valid")
	if err != nil {
		t.Fatalf("CorpusFiles: %v", err)
	}
	for _, path := range files {
		src := testutil.ReadFile(t, path)
		if _, err := Parse(context.Background(), src, Options{Version: grammar.MaxSupported}); err != nil {
			t.Fatalf("%s: Parse() error = %v", path, err)
		}
	}
}

func TestCorpusInvalidFailsForEveryVersion(t *testing.T) {
	t.Parallel()

	files, err := testutil.CorpusFiles("invalid")
	if err != nil {
		t.Fatalf("CorpusFiles: %v", err)
	}
	for _, path := range files {
		src := testutil.ReadFile(t, path)
		for _, v := range grammar.DefaultRange().Versions() {
			_, err := Parse(context.Background(), src, Options{Version: v})
			var synErr *SyntaxError
			if !errors.As(err, &synErr) {
				t.Fatalf("%s version %s: Parse() error = %v, want *SyntaxError", path, v, err)
			}
		}
	}
}
