package bot

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kpumuk/parsebot/internal/backend"
	"github.com/kpumuk/parsebot/internal/grammar"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	reg, err := backend.NewRegistry(grammar.DefaultRange())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return NewRouter("parsebot", reg.Lookup)
}

func TestRoute(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	tests := []struct {
		msg  string
		want Request
	}{
		{msg: "parse 1 + 1", want: Request{Command: CommandParse, Code: "1 + 1"}},
		{msg: "parse parser27 1 + 1", want: Request{Command: CommandParse, Backend: "parser27", Code: "1 + 1"}},
		{msg: "PARSE Sexp foo", want: Request{Command: CommandParse, Backend: "sexp", Code: "foo"}},
		{msg: "parse sexp", want: Request{Command: CommandParse, Code: "sexp"}},
		{msg: "parse nope 1", want: Request{Command: CommandParse, Code: "nope 1"}},
		{msg: "parse parser99 1", want: Request{Command: CommandParse, Code: "parser99 1"}},
		{msg: "parse tokenize\tx = 1", want: Request{Command: CommandParse, Backend: "tokenize", Code: "x = 1"}},
		{msg: "@parsebot parse 1", want: Request{Command: CommandParse, Code: "1"}},
		{msg: "ParseBot: check-syntax 3r", want: Request{Command: CommandCheckSyntax, Code: "3r"}},
		{msg: "  run-lint x = 1  ", want: Request{Command: CommandRunLint, Code: "x = 1"}},
		{msg: "backends", want: Request{Command: CommandBackends}},
		{msg: "parse ```ruby\nx = 1\ny\n```", want: Request{Command: CommandParse, Code: "x = 1\ny"}},
		{msg: "parse ```Ruby\nx\n```", want: Request{Command: CommandParse, Code: "x"}},
		{msg: "parse ```\nx\n```", want: Request{Command: CommandParse, Code: "x"}},
		{msg: "parse ```puts(1)\nputs(2)```", want: Request{Command: CommandParse, Code: "puts(1)\nputs(2)"}},
		{msg: "parse ```puts\n1```", want: Request{Command: CommandParse, Code: "puts\n1"}},
		{msg: "parse ```foo\nbar\n```", want: Request{Command: CommandParse, Code: "foo\nbar"}},
		{msg: "parse rubyvm `a&.b`", want: Request{Command: CommandParse, Backend: "rubyvm", Code: "a&.b"}},
		{msg: "parse def foo(\n  1\nend", want: Request{Command: CommandParse, Code: "def foo(\n  1\nend"}},
	}
	for _, tc := range tests {
		t.Run(tc.msg, func(t *testing.T) {
			t.Parallel()
			got, ok := r.Route(tc.msg)
			if !ok {
				t.Fatalf("Route(%q) ignored the message", tc.msg)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Route(%q) mismatch (-want +got):\n%s", tc.msg, diff)
			}
		})
	}
}

func TestRouteIgnoresOtherMessages(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	for _, msg := range []string{
		"",
		"hello",
		"parse",
		"parse   ",
		"please parse 1 + 1",
		"parsebotx parse 1",
		"check-syntax",
		"backends please",
		"reparse 1",
	} {
		if got, ok := r.Route(msg); ok {
			t.Fatalf("Route(%q) = %+v, want ignored", msg, got)
		}
	}
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	if got := CommandCheckSyntax.String(); got != "check-syntax" {
		t.Fatalf("CommandCheckSyntax.String() = %q, want check-syntax", got)
	}
	if got := Command(0).String(); got != "unknown" {
		t.Fatalf("Command(0).String() = %q, want unknown", got)
	}
}
