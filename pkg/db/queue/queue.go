package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/erain9/stocksim/pkg/messaging"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultBrokerList = "localhost:9092"
	defaultTopic      = "stocksim-trades"
	maxRetry          = 5
)

// newSyncProducer is swapped out in tests
var newSyncProducer = sarama.NewSyncProducer

// QueueMessageSender implements the MessageSender interface for sending
// protobuf encoded trade messages to Kafka through sarama.
type QueueMessageSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender connects a synchronous producer to the brokers.
// Empty arguments fall back to a local broker and the default topic.
func NewQueueMessageSender(brokers []string, topic string) (*QueueMessageSender, error) {
	if len(brokers) == 0 {
		brokers = []string{defaultBrokerList}
	}
	if topic == "" {
		topic = defaultTopic
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true

	producer, err := newSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueMessageSender{
		producer: producer,
		topic:    topic,
	}, nil
}

// SendTradeMessage sends the trade to the Kafka queue
func (q *QueueMessageSender) SendTradeMessage(ctx context.Context, trade *messaging.TradeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageBytes, err := EncodeTradeMessage(trade)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(trade.Symbol),
		Value: sarama.ByteEncoder(messageBytes),
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the underlying producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

// EncodeTradeMessage serializes a trade as a protobuf Struct
func EncodeTradeMessage(trade *messaging.TradeMessage) ([]byte, error) {
	protoMsg, err := structpb.NewStruct(map[string]any{
		"trade_id":      trade.TradeID,
		"seq":           trade.Seq,
		"symbol":        trade.Symbol,
		"quantity":      trade.Quantity,
		"price":         trade.Price,
		"buy_order_id":  trade.BuyOrderID,
		"sell_order_id": trade.SellOrderID,
		"executed_at":   trade.ExecutedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build trade message: %w", err)
	}

	messageBytes, err := proto.Marshal(protoMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trade message: %w", err)
	}
	return messageBytes, nil
}

// DecodeTradeMessage parses a payload produced by EncodeTradeMessage
func DecodeTradeMessage(data []byte) (*messaging.TradeMessage, error) {
	var protoMsg structpb.Struct
	if err := proto.Unmarshal(data, &protoMsg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trade message: %w", err)
	}

	fields := protoMsg.GetFields()
	str := func(key string) string { return fields[key].GetStringValue() }
	num := func(key string) float64 { return fields[key].GetNumberValue() }

	trade := &messaging.TradeMessage{
		TradeID:     str("trade_id"),
		Seq:         uint64(num("seq")),
		Symbol:      str("symbol"),
		Quantity:    int64(num("quantity")),
		Price:       str("price"),
		BuyOrderID:  str("buy_order_id"),
		SellOrderID: str("sell_order_id"),
	}

	if ts := str("executed_at"); ts != "" {
		executedAt, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid executed_at %q: %w", ts, err)
		}
		trade.ExecutedAt = executedAt
	}

	return trade, nil
}

var _ messaging.MessageSender = (*QueueMessageSender)(nil)
