package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erain9/stocksim/pkg/messaging"
	"github.com/nikolaydubina/fpdecimal"
)

// Trade is an execution record produced by the matching loop
type Trade struct {
	ID          string
	Seq         uint64
	Symbol      string
	Quantity    int64
	Price       fpdecimal.Decimal
	BuyOrderID  string
	SellOrderID string
	// Limit prices of both orders at the time of the match
	BuyPrice   fpdecimal.Decimal
	SellPrice  fpdecimal.Decimal
	ExecutedAt time.Time
}

// Value returns quantity times execution price
func (t Trade) Value() fpdecimal.Decimal {
	return t.Price.Mul(fpdecimal.FromInt(t.Quantity))
}

// MarshalJSON implements Marshaler interface
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string    `json:"id"`
		Seq         uint64    `json:"seq"`
		Symbol      string    `json:"symbol"`
		Quantity    int64     `json:"quantity"`
		Price       string    `json:"price"`
		BuyOrderID  string    `json:"buyOrderID"`
		SellOrderID string    `json:"sellOrderID"`
		BuyPrice    string    `json:"buyPrice"`
		SellPrice   string    `json:"sellPrice"`
		ExecutedAt  time.Time `json:"executedAt"`
	}{
		ID:          t.ID,
		Seq:         t.Seq,
		Symbol:      t.Symbol,
		Quantity:    t.Quantity,
		Price:       t.Price.String(),
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyPrice:    t.BuyPrice.String(),
		SellPrice:   t.SellPrice.String(),
		ExecutedAt:  t.ExecutedAt,
	})
}

// ToMessage converts the trade to a messaging.TradeMessage
func (t Trade) ToMessage() *messaging.TradeMessage {
	return &messaging.TradeMessage{
		TradeID:     t.ID,
		Seq:         t.Seq,
		Symbol:      t.Symbol,
		Quantity:    t.Quantity,
		Price:       t.Price.String(),
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		ExecutedAt:  t.ExecutedAt,
	}
}

// OrderRecord is the persisted form of a resident order
type OrderRecord struct {
	ID          string `json:"id" msgpack:"id"`
	Side        Side   `json:"side" msgpack:"side"`
	Symbol      string `json:"symbol" msgpack:"symbol"`
	Quantity    int64  `json:"quantity" msgpack:"quantity"`
	OriginalQty int64  `json:"original_quantity,omitempty" msgpack:"original_quantity"`
	Price       string `json:"price" msgpack:"price"`
	Seq         uint64 `json:"seq,omitempty" msgpack:"seq"`
}

// UnmarshalJSON accepts both the record object and the legacy
// [price, symbol, quantity] triple, where sell prices are stored negated.
func (r *OrderRecord) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		type alias OrderRecord
		var a alias
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		*r = OrderRecord(a)
		return nil
	}

	var triple []json.RawMessage
	if err := json.Unmarshal(trimmed, &triple); err != nil {
		return err
	}
	if len(triple) != 3 {
		return fmt.Errorf("%w: order triple has %d elements", ErrInvalidSnapshot, len(triple))
	}

	price, err := fpdecimal.FromString(string(bytes.TrimSpace(triple[0])))
	if err != nil {
		return fmt.Errorf("%w: order price: %v", ErrInvalidSnapshot, err)
	}
	if price.LessThan(fpdecimal.Zero) {
		price = fpdecimal.Zero.Sub(price)
	}

	var symbol string
	if err := json.Unmarshal(triple[1], &symbol); err != nil {
		return fmt.Errorf("%w: order symbol: %v", ErrInvalidSnapshot, err)
	}

	var quantity int64
	if err := json.Unmarshal(triple[2], &quantity); err != nil {
		return fmt.Errorf("%w: order quantity: %v", ErrInvalidSnapshot, err)
	}

	*r = OrderRecord{
		Symbol:      symbol,
		Quantity:    quantity,
		OriginalQty: quantity,
		Price:       price.String(),
	}
	return nil
}

// Snapshot is the persisted state of an engine: ledger and both book sides.
// Decimal amounts are kept as strings so every codec round-trips them.
type Snapshot struct {
	Balance    string           `json:"balance" msgpack:"balance"`
	Portfolio  map[string]int64 `json:"portfolio" msgpack:"portfolio"`
	BuyOrders  []OrderRecord    `json:"buy_orders" msgpack:"buy_orders"`
	SellOrders []OrderRecord    `json:"sell_orders" msgpack:"sell_orders"`
	NextSeq    uint64           `json:"next_seq" msgpack:"next_seq"`
}

// UnmarshalJSON accepts the balance either as a string or as a JSON number
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type alias Snapshot
	aux := struct {
		Balance json.RawMessage `json:"balance"`
		*alias
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := bytes.TrimSpace(aux.Balance)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		s.Balance = ""
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &s.Balance); err != nil {
			return err
		}
	default:
		s.Balance = string(raw)
	}
	return nil
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Balance: s.Balance,
		NextSeq: s.NextSeq,
	}
	if s.Portfolio != nil {
		out.Portfolio = make(map[string]int64, len(s.Portfolio))
		for symbol, qty := range s.Portfolio {
			out.Portfolio[symbol] = qty
		}
	}
	out.BuyOrders = append([]OrderRecord(nil), s.BuyOrders...)
	out.SellOrders = append([]OrderRecord(nil), s.SellOrders...)
	return out
}
