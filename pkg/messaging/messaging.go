package messaging

import (
	"context"
	"time"
)

// MessageSender publishes executed trades to a downstream consumer.
// It decouples the core package from specific transports like Kafka.
type MessageSender interface {
	SendTradeMessage(ctx context.Context, msg *TradeMessage) error
	Close() error
}

// TradeMessage is the wire form of one executed trade
type TradeMessage struct {
	TradeID     string    `json:"trade_id"`
	Seq         uint64    `json:"seq"`
	Symbol      string    `json:"symbol"`
	Quantity    int64     `json:"quantity"`
	Price       string    `json:"price"`
	BuyOrderID  string    `json:"buy_order_id"`
	SellOrderID string    `json:"sell_order_id"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// NoopSender drops every message
type NoopSender struct{}

// SendTradeMessage does nothing.
func (NoopSender) SendTradeMessage(context.Context, *TradeMessage) error { return nil }

// Close does nothing.
func (NoopSender) Close() error { return nil }

var _ MessageSender = NoopSender{}
