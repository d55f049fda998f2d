// Package telemetry sets up the OpenTelemetry meter provider and its Prometheus endpoint.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/darmiel/sessionbridge/internal/buildinfo"
)

type Metrics struct {
	provider metric.MeterProvider
	shutdown func(context.Context) error
	handler  http.Handler
}

// NewPrometheus creates a meter provider exported on its own Prometheus registry.
// The registry also carries the Go runtime and process collectors.
func NewPrometheus() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))

	return &Metrics{
		provider: mp,
		shutdown: mp.Shutdown,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, nil
}

// NewNoop returns metrics that record nothing and serve no endpoint.
func NewNoop() *Metrics {
	return &Metrics{
		provider: noop.NewMeterProvider(),
		shutdown: func(context.Context) error { return nil },
	}
}

// Meter returns the meter of this service.
func (m *Metrics) Meter() metric.Meter {
	return m.provider.Meter(buildinfo.ServiceName)
}

// Handler serves the Prometheus exposition format, or is nil for noop metrics.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.shutdown(ctx)
}
