// Package telemetry installs the OpenTelemetry meter provider that backs the
// dispatch and lint instruments.
package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ServiceName identifies parsebot in exported metrics.
const ServiceName = "parsebot"

// Setup installs a global meter provider whose instruments are collected by reg.
// Call the returned function to flush and release the provider.
func Setup(reg prometheus.Registerer) (func(context.Context) error, error) {
	exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := NewMeterProvider(exporter)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// NewMeterProvider builds a provider tagged with the parsebot resource that reports to reader.
func NewMeterProvider(reader metric.Reader) *metric.MeterProvider {
	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
	)
}
