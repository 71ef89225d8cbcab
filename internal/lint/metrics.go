package lint

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("parsebot.lint")
	meter  = otel.Meter("parsebot.lint")
)

const (
	resultOK           = "ok"
	resultNotInstalled = "not_installed"
	resultTimeout      = "timeout"
	resultFailed       = "failed"
)

var (
	lintLatency metric.Float64Histogram
	lintTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		lintLatency, err = meter.Float64Histogram(
			"lint_duration_seconds",
			metric.WithDescription("Duration of linter runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lintTotal, err = meter.Int64Counter(
			"lint_total",
			metric.WithDescription("Total number of linter runs by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startLintSpan(ctx context.Context, command string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(attribute.String("lint.command", command)),
	)
}

func recordLint(ctx context.Context, span trace.Span, command, result string, d time.Duration) {
	span.SetAttributes(attribute.String("lint.result", result))
	if result != resultOK {
		span.SetStatus(codes.Error, result)
	}

	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("result", result),
	)
	lintLatency.Record(ctx, d.Seconds(), attrs)
	lintTotal.Add(ctx, 1, attrs)
}
