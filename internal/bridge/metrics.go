package bridge

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/darmiel/sessionbridge/internal/bridge"

// Metrics holds the instruments of the authenticator.
type Metrics struct {
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter. A nil meter uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	outcomes, err := meter.Int64Counter(
		"bridge.outcomes",
		metric.WithDescription("Authentication outcomes by result and failure reason"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"bridge.exchange.duration",
		metric.WithDescription("Duration of external token exchanges"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{outcomes: outcomes, duration: duration}, nil
}

func (m *Metrics) record(ctx context.Context, o Outcome) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(o.Result)),
		attribute.String("reason", o.reasonLabel()),
	))
}

func (m *Metrics) recordExchange(ctx context.Context, ms float64, success bool) {
	m.duration.Record(ctx, ms, metric.WithAttributes(attribute.Bool("success", success)))
}
