// Package bot answers chat commands with parse results, compatibility reports and linter output.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kpumuk/parsebot/internal/compat"
	"github.com/kpumuk/parsebot/internal/ctxlog"
	"github.com/kpumuk/parsebot/internal/dispatch"
	"github.com/kpumuk/parsebot/internal/format"
	"github.com/kpumuk/parsebot/internal/lint"
)

// Linter runs the external linter.
type Linter interface {
	Run(ctx context.Context, code string) (lint.Result, error)
}

// Response is the reply to one routed message.
type Response struct {
	RequestID string `json:"request_id"`
	Command   string `json:"command"`
	Text      string `json:"text"`
}

// Bot routes messages to the dispatcher, the compatibility reporter and the linter.
type Bot struct {
	name       string
	dispatcher *dispatch.Dispatcher
	reporter   *compat.Reporter
	linter     Linter
	format     format.Options
	metrics    *Metrics
	logger     *slog.Logger
	router     *Router
}

// Option customizes a Bot.
type Option func(*Bot)

// WithName sets the name users may prefix commands with.
func WithName(name string) Option {
	return func(b *Bot) { b.name = name }
}

// WithLinter replaces the run-lint implementation.
func WithLinter(l Linter) Option {
	return func(b *Bot) { b.linter = l }
}

// WithFormat sets rendering options for parse results.
func WithFormat(opts format.Options) Option {
	return func(b *Bot) { b.format = opts }
}

// WithMetrics records command counters in m.
func WithMetrics(m *Metrics) Option {
	return func(b *Bot) { b.metrics = m }
}

// WithLogger sets the base logger. Each request logs with a request_id attribute.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// New creates a bot over d. check-syntax covers every version in d's registry.
func New(d *dispatch.Dispatcher, opts ...Option) *Bot {
	b := &Bot{
		name:       "parsebot",
		dispatcher: d,
		reporter:   compat.New(d, d.Registry().Versions()),
		linter:     lint.NewRunner(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.router = NewRouter(b.name, d.Registry().Lookup)
	return b
}

// Handle answers msg. It reports false when msg is not addressed to the bot.
func (b *Bot) Handle(ctx context.Context, msg string) (Response, bool) {
	req, ok := b.router.Route(msg)
	if !ok {
		return Response{}, false
	}
	resp := Response{RequestID: uuid.NewString(), Command: req.Command.String()}
	logger := b.logger.With(
		slog.String("request_id", resp.RequestID),
		slog.String("command", resp.Command),
	)
	ctx = ctxlog.WithLogger(ctx, logger)
	start := time.Now()

	text, result := b.execute(ctx, req)
	resp.Text = format.Fence(text)

	b.metrics.observe(req.Command, result, time.Since(start))
	logger.Info("Command handled",
		slog.String("backend", string(req.Backend)),
		slog.String("result", result),
		slog.Duration("duration", time.Since(start)),
	)
	return resp, true
}

const (
	resultOK            = "ok"
	resultRejected      = "rejected"
	resultInternalError = "internal_error"
	resultPanic         = "panic"
)

func (b *Bot) execute(ctx context.Context, req Request) (text, result string) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Command panicked", slog.Any("panic", r))
			text, result = format.InternalError(fmt.Errorf("panic: %v", r)), resultPanic
		}
	}()

	switch req.Command {
	case CommandParse:
		return b.parse(ctx, req)
	case CommandCheckSyntax:
		return b.checkSyntax(ctx, req.Code)
	case CommandRunLint:
		return b.runLint(ctx, req.Code)
	case CommandBackends:
		return b.backends(), resultOK
	}
	return format.InternalError(fmt.Errorf("unhandled command %s", req.Command)), resultInternalError
}

func (b *Bot) parse(ctx context.Context, req Request) (string, string) {
	out, err := b.dispatcher.Parse(ctx, req.Backend, req.Code)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Parse failed", slog.Any("error", err))
		return format.InternalError(err), resultInternalError
	}
	text, err := format.Outcome(out, b.format)
	if err != nil {
		return format.InternalError(err), resultInternalError
	}
	if _, failed := out.(dispatch.Failure); failed {
		return text, resultRejected
	}
	return text, resultOK
}

func (b *Bot) checkSyntax(ctx context.Context, code string) (string, string) {
	report, err := b.reporter.Check(ctx, code)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Compatibility check failed", slog.Any("error", err))
		return format.InternalError(err), resultInternalError
	}
	if !report.Compatible() {
		return format.Report(report), resultRejected
	}
	return format.Report(report), resultOK
}

func (b *Bot) runLint(ctx context.Context, code string) (string, string) {
	res, err := b.linter.Run(ctx, code)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Linter failed", slog.Any("error", err))
		return format.InternalError(err), resultInternalError
	}
	if res.ExitCode != 0 {
		return res.Output, resultRejected
	}
	return res.Output, resultOK
}

func (b *Bot) backends() string {
	reg := b.dispatcher.Registry()
	ids := reg.IDs()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name := string(id)
		if id == b.dispatcher.Default() {
			name += " (default)"
		}
		names = append(names, name)
	}
	return strings.Join(names, "\n")
}
