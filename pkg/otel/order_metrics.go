package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	engineMetrics     *EngineMetrics
	engineMetricsOnce sync.Once
)

// EngineMetrics holds counters for matching engine operations
type EngineMetrics struct {
	submittedOrders metric.Int64Counter
	rejectedOrders  metric.Int64Counter
	trades          metric.Int64Counter
	tradedVolume    metric.Int64Counter
}

// NewEngineMetrics creates the engine instruments on the given meter
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	submitted, err := meter.Int64Counter(
		"engine.orders.submitted",
		metric.WithDescription("Total number of orders accepted into the book"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter(
		"engine.orders.rejected",
		metric.WithDescription("Total number of orders rejected at submission"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	trades, err := meter.Int64Counter(
		"engine.trades.total",
		metric.WithDescription("Total number of executed trades"),
		metric.WithUnit("{trade}"),
	)
	if err != nil {
		return nil, err
	}

	volume, err := meter.Int64Counter(
		"engine.trades.volume",
		metric.WithDescription("Total number of shares traded"),
		metric.WithUnit("{share}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		submittedOrders: submitted,
		rejectedOrders:  rejected,
		trades:          trades,
		tradedVolume:    volume,
	}, nil
}

// GetEngineMetrics returns the EngineMetrics singleton. If the instruments
// cannot be created an empty (no-op) value is returned.
func GetEngineMetrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		m, err := NewEngineMetrics(GetMeterProvider().Meter(instrumentationName))
		if err != nil {
			engineMetrics = &EngineMetrics{}
			return
		}
		engineMetrics = m
	})
	return engineMetrics
}

// RecordSubmitted increments the accepted orders counter
func (m *EngineMetrics) RecordSubmitted(ctx context.Context, side string) {
	if m == nil || m.submittedOrders == nil {
		return
	}
	m.submittedOrders.Add(ctx, 1, metric.WithAttributes(attribute.String(AttributeOrderSide, side)))
}

// RecordRejected increments the rejected orders counter
func (m *EngineMetrics) RecordRejected(ctx context.Context, side string) {
	if m == nil || m.rejectedOrders == nil {
		return
	}
	m.rejectedOrders.Add(ctx, 1, metric.WithAttributes(attribute.String(AttributeOrderSide, side)))
}

// RecordTrade counts one execution and its share volume
func (m *EngineMetrics) RecordTrade(ctx context.Context, symbol string, quantity int64) {
	if m == nil || m.trades == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttributeOrderSymbol, symbol))
	m.trades.Add(ctx, 1, attrs)
	m.tradedVolume.Add(ctx, quantity, attrs)
}
