package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanSubmitOrder   = "submit_order"
	SpanMatchOrders   = "match_orders"
	SpanSaveSnapshot  = "save_snapshot"
	SpanPublishTrades = "publish_trades"

	// Attribute keys
	AttributeOrderID       = "order.id"
	AttributeOrderSide     = "order.side"
	AttributeOrderSymbol   = "order.symbol"
	AttributeOrderQuantity = "order.quantity"
	AttributeOrderPrice    = "order.price"
	AttributeOrderStatus   = "order.status"
	AttributeTradeCount    = "trade.count"
	AttributeBackend       = "backend.driver"
)

// StartOrderSpan starts a new span for order processing. When no tracer
// has been initialized a detached no-op span is returned and ctx is left
// as is, so callers can always defer span.End() without touching a span
// that belongs to their caller.
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetMatchingEngineTracer()
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
