package bot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kpumuk/parsebot/internal/backend"
	"github.com/kpumuk/parsebot/internal/dispatch"
	"github.com/kpumuk/parsebot/internal/grammar"
	"github.com/kpumuk/parsebot/internal/lint"
)

type brokenBackend struct{}

func (brokenBackend) ID() backend.ID         { return backend.IDRubyVM }
func (brokenBackend) Family() backend.Family { return backend.FamilyAST }
func (brokenBackend) Parse(context.Context, string) (backend.Representation, error) {
	return nil, errors.New("broken")
}

type fakeLinter struct {
	res     lint.Result
	err     error
	explode bool
	code    string
}

func (l *fakeLinter) Run(_ context.Context, code string) (lint.Result, error) {
	if l.explode {
		panic("linter exploded")
	}
	l.code = code
	return l.res, l.err
}

func newTestBot(t *testing.T, opts ...Option) (*Bot, *Metrics) {
	t.Helper()
	reg, err := backend.NewRegistry(grammar.DefaultRange(), backend.WithOverride(brokenBackend{}))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	m := NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	opts = append([]Option{WithMetrics(m), WithLogger(logger)}, opts...)
	return New(dispatch.New(reg), opts...), m
}

func handle(t *testing.T, b *Bot, msg string) Response {
	t.Helper()
	resp, ok := b.Handle(context.Background(), msg)
	if !ok {
		t.Fatalf("Handle(%q) ignored the message", msg)
	}
	if resp.RequestID == "" {
		t.Fatalf("Handle(%q) reply has no request id", msg)
	}
	return resp
}

func wantText(t *testing.T, resp Response, want string) {
	t.Helper()
	if resp.Text != want {
		t.Fatalf("reply = %q, want %q", resp.Text, want)
	}
}

func wantCount(t *testing.T, m *Metrics, command, result string, want float64) {
	t.Helper()
	if got := testutil.ToFloat64(m.commands.WithLabelValues(command, result)); got != want {
		t.Fatalf("commands{%s,%s} = %v, want %v", command, result, got, want)
	}
}

func TestHandleParse(t *testing.T) {
	t.Parallel()

	b, m := newTestBot(t)
	resp := handle(t, b, "parse 1 + 1")
	if resp.Command != "parse" {
		t.Fatalf("Command = %q, want parse", resp.Command)
	}
	wantText(t, resp, "```\n[:program, [[:binary, [:@int, \"1\", [1, 0]], :+, [:@int, \"1\", [1, 4]]]]]\n```")

	resp = handle(t, b, "parse parser20 def foo(")
	wantText(t, resp, "```\n(parser20) 1:8: unexpected token $end\n```")

	wantCount(t, m, "parse", resultOK, 1)
	wantCount(t, m, "parse", resultRejected, 1)
}

func TestHandleParseHeredoc(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t)
	resp := handle(t, b, "parse ```ruby\nx = <<~EOS\n  hi\nEOS\n```")
	if !strings.Contains(resp.Text, `[:@tstring_content, "hi\n", [2, 2]]`) {
		t.Fatalf("reply = %q, want heredoc content at 2:2", resp.Text)
	}

	resp = handle(t, b, "parse parser22 ```ruby\nx = <<~EOS\n  hi\nEOS\n```")
	wantText(t, resp, "```\n(parser22) 1:4: unexpected token tLSHFT\n```")
}

func TestHandleParseFault(t *testing.T) {
	t.Parallel()

	b, m := newTestBot(t)
	resp := handle(t, b, "parse rubyvm 1 + 1")
	wantText(t, resp, "```\ninternal error: backend rubyvm: broken\n```")
	wantCount(t, m, "parse", resultInternalError, 1)
}

func TestHandleParseDeepNestingIsInternalError(t *testing.T) {
	t.Parallel()

	b, m := newTestBot(t)
	code := strings.Repeat("[", 100_000) + strings.Repeat("]", 100_000)
	resp := handle(t, b, "parse "+code)
	if !strings.HasPrefix(resp.Text, "```\ninternal error: backend sexp: nesting exceeds parser limit") {
		t.Fatalf("reply = %.120q, want an internal error", resp.Text)
	}
	wantCount(t, m, "parse", resultInternalError, 1)
}

func TestHandleCheckSyntax(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t)
	resp := handle(t, b, "check-syntax a&.b")
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(resp.Text, "```\n"), "\n```"), "\n")
	if len(lines) != 10 {
		t.Fatalf("len(lines) = %d, want 10: %q", len(lines), resp.Text)
	}
	if !strings.HasPrefix(lines[0], "18: (parser18) ") {
		t.Fatalf("lines[0] = %q, want a parser18 error", lines[0])
	}
	if lines[5] != "23: ok" || lines[9] != "27: ok" {
		t.Fatalf("lines[5], lines[9] = %q, %q, want 23: ok, 27: ok", lines[5], lines[9])
	}
}

func TestHandleCheckSyntaxSquigglyHeredoc(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t)
	resp := handle(t, b, "check-syntax ```ruby\nx = <<~EOS\n  hi\nEOS\n```")
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(resp.Text, "```\n"), "\n```"), "\n")
	if len(lines) != 10 {
		t.Fatalf("len(lines) = %d, want 10: %q", len(lines), resp.Text)
	}
	for i, line := range lines {
		v := 18 + i
		ok := strings.HasSuffix(line, ": ok")
		if ok != (v >= 23) {
			t.Fatalf("lines[%d] = %q, want ok=%v", i, line, v >= 23)
		}
	}
	if !strings.Contains(lines[4], "tLSHFT") {
		t.Fatalf("lines[4] = %q, want unexpected tLSHFT", lines[4])
	}
}

func TestHandleRunLint(t *testing.T) {
	t.Parallel()

	l := &fakeLinter{res: lint.Result{Output: "-:1: warning: possibly useless use of + in void context\nSyntax OK\n"}}
	b, _ := newTestBot(t, WithLinter(l))
	resp := handle(t, b, "run-lint 1 + 1")
	if l.code != "1 + 1" {
		t.Fatalf("linter code = %q, want %q", l.code, "1 + 1")
	}
	wantText(t, resp, "```\n-:1: warning: possibly useless use of + in void context\nSyntax OK\n```")
}

func TestHandleRunLintNotInstalled(t *testing.T) {
	t.Parallel()

	l := &fakeLinter{err: lint.ErrLinterNotInstalled}
	b, _ := newTestBot(t, WithLinter(l))
	resp := handle(t, b, "run-lint x")
	wantText(t, resp, "```\ninternal error: linter not installed\n```")
}

func TestHandleRecoversPanics(t *testing.T) {
	t.Parallel()

	b, m := newTestBot(t, WithLinter(&fakeLinter{explode: true}))
	resp := handle(t, b, "run-lint x")
	wantText(t, resp, "```\ninternal error: panic: linter exploded\n```")
	wantCount(t, m, "run-lint", resultPanic, 1)

	// The bot keeps serving after a panic.
	resp = handle(t, b, "parse 1")
	if !strings.Contains(resp.Text, ":@int") {
		t.Fatalf("reply after panic = %q, want a parse tree", resp.Text)
	}
}

func TestHandleBackends(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t)
	resp := handle(t, b, "@parsebot backends")
	if !strings.HasPrefix(resp.Text, "```\nsexp (default)\nripper\ntokenize\nlex\nparser18\n") {
		t.Fatalf("reply = %q, want backends starting with sexp", resp.Text)
	}
	if !strings.HasSuffix(resp.Text, "parser27\nrubyvm\n```") {
		t.Fatalf("reply = %q, want backends ending with rubyvm", resp.Text)
	}
}

func TestHandleIgnoresChatter(t *testing.T) {
	t.Parallel()

	b, m := newTestBot(t)
	if _, ok := b.Handle(context.Background(), "what does parse do?"); ok {
		t.Fatal("Handle() answered chatter")
	}
	if n := testutil.CollectAndCount(m.commands); n != 0 {
		t.Fatalf("commands series = %d, want 0", n)
	}
}

func TestHandleUsesBotName(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t, WithName("rubybot"))
	if _, ok := b.Handle(context.Background(), "rubybot: parse 1"); !ok {
		t.Fatal("Handle() ignored a message addressed to rubybot")
	}
	if _, ok := b.Handle(context.Background(), "parsebot parse 1"); ok {
		t.Fatal("Handle() answered a message addressed to parsebot")
	}
}
