package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "boardling"

// Instruments are the service's metric instruments.
type Instruments struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	accessDecisions metric.Int64Counter
	modeChanges     metric.Int64Counter
}

// NewInstruments registers the instruments on provider's meter.
func NewInstruments(provider metric.MeterProvider) (*Instruments, error) {
	m := provider.Meter(meterName)
	requests, err := m.Int64Counter("http.server.requests", metric.WithDescription("HTTP requests by route and status"))
	if err != nil {
		return nil, err
	}
	duration, err := m.Float64Histogram("http.server.duration", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	decisions, err := m.Int64Counter("boardling.access.decisions", metric.WithDescription("Wallet access decisions by data level"))
	if err != nil {
		return nil, err
	}
	changes, err := m.Int64Counter("boardling.privacy.mode_changes", metric.WithDescription("Committed privacy mode changes"))
	if err != nil {
		return nil, err
	}
	return &Instruments{requests: requests, requestDuration: duration, accessDecisions: decisions, modeChanges: changes}, nil
}

// RecordRequest counts one HTTP request. Nil receivers are ignored.
func (i *Instruments) RecordRequest(ctx context.Context, method, route string, status int, ms float64) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	i.requests.Add(ctx, 1, attrs)
	i.requestDuration.Record(ctx, ms, attrs)
}

// RecordAccessDecision counts one wallet access decision.
func (i *Instruments) RecordAccessDecision(ctx context.Context, dataLevel string, requiresPayment bool) {
	if i == nil {
		return
	}
	i.accessDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("data_level", dataLevel),
		attribute.Bool("requires_payment", requiresPayment),
	))
}

// RecordModeChanges counts committed privacy mode changes to newMode.
func (i *Instruments) RecordModeChanges(ctx context.Context, newMode string, n int) {
	if i == nil || n <= 0 {
		return
	}
	i.modeChanges.Add(ctx, int64(n), metric.WithAttributes(attribute.String("privacy_mode", newMode)))
}
