package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics records auth counters on an OTel meter.
type AuthMetrics struct {
	codesIssued      metric.Int64Counter
	deliveryFailures metric.Int64Counter
	verifications    metric.Int64Counter
	sessions         metric.Int64Counter
}

// NewAuthMetrics creates the auth instruments on provider.
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	meter := provider.Meter(instrumentationName)
	codesIssued, err := meter.Int64Counter("auth.codes_issued",
		metric.WithDescription("One-time codes committed to the store"))
	if err != nil {
		return nil, err
	}
	deliveryFailures, err := meter.Int64Counter("auth.delivery_failures",
		metric.WithDescription("Code emails the relay did not accept"))
	if err != nil {
		return nil, err
	}
	verifications, err := meter.Int64Counter("auth.verifications",
		metric.WithDescription("Code verification attempts by result"))
	if err != nil {
		return nil, err
	}
	sessions, err := meter.Int64Counter("auth.sessions_established",
		metric.WithDescription("Sessions created after a successful verification"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{
		codesIssued:      codesIssued,
		deliveryFailures: deliveryFailures,
		verifications:    verifications,
		sessions:         sessions,
	}, nil
}

func (m *AuthMetrics) CodeIssued(ctx context.Context, purpose string) {
	m.codesIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

func (m *AuthMetrics) DeliveryFailed(ctx context.Context, purpose string) {
	m.deliveryFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

// Verification counts one attempt; result is "success" or a failure reason.
func (m *AuthMetrics) Verification(ctx context.Context, result string) {
	m.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *AuthMetrics) SessionEstablished(ctx context.Context) {
	m.sessions.Add(ctx, 1)
}
