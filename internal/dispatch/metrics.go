package dispatch

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kpumuk/parsebot/internal/backend"
)

var (
	tracer = otel.Tracer("parsebot.dispatch")
	meter  = otel.Meter("parsebot.dispatch")
)

const (
	resultOK          = "ok"
	resultSyntaxError = "syntax_error"
	resultFault       = "fault"
	resultUnknown     = "unknown_backend"
)

var (
	parseLatency metric.Float64Histogram
	parseTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"parse_duration_seconds",
			metric.WithDescription("Duration of backend parse calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"parse_total",
			metric.WithDescription("Total number of parse requests by backend and result"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startParseSpan(ctx context.Context, id backend.ID, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Dispatcher.Parse",
		trace.WithAttributes(
			attribute.String("parse.backend", string(id)),
			attribute.Int("parse.code_bytes", size),
		),
	)
}

func recordParse(ctx context.Context, span trace.Span, id backend.ID, result string, d time.Duration) {
	span.SetAttributes(attribute.String("parse.result", result))
	if result == resultFault || result == resultUnknown {
		span.SetStatus(codes.Error, result)
	}

	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", string(id)),
		attribute.String("result", result),
	)
	parseLatency.Record(ctx, d.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)
}
