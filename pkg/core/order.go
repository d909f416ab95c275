package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/nikolaydubina/fpdecimal"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Status is the lifecycle state of an order
type Status string

// Order statuses
const (
	StatusOpen            Status = "OPEN"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
)

// Order stores information about a limit order. Only the remaining
// quantity changes once the order has been accepted.
type Order struct {
	id          string
	side        Side
	symbol      string
	quantity    int64
	originalQty int64
	price       fpdecimal.Decimal
	seq         uint64
}

// NewOrder creates a limit order with a fresh ID. The sequence number is
// assigned by the engine when the order is accepted.
func NewOrder(side Side, symbol string, quantity int64, price fpdecimal.Decimal) (*Order, error) {
	symbol = NormalizeSymbol(symbol)
	if err := validateOrder(side, symbol, quantity, price); err != nil {
		return nil, err
	}

	return &Order{
		id:          uuid.NewString(),
		side:        side,
		symbol:      symbol,
		quantity:    quantity,
		originalQty: quantity,
		price:       price,
	}, nil
}

// NormalizeSymbol trims and upper-cases a ticker symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func validateOrder(side Side, symbol string, quantity int64, price fpdecimal.Decimal) error {
	if side != Buy && side != Sell {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, side)
	}
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity %d must be positive", ErrInvalidOrder, quantity)
	}
	if price.LessThan(fpdecimal.Zero) {
		return fmt.Errorf("%w: price %s must not be negative", ErrInvalidOrder, price)
	}
	if _, ok := notional(price, quantity); !ok {
		return fmt.Errorf("%w: %d x %s is out of range", ErrInvalidOrder, quantity, price)
	}
	return nil
}

var unit = fpdecimal.FromInt(1).Scaled()

// notional returns price*quantity, or false when the product does not fit
// the decimal's int64 representation. quantity must be positive.
func notional(price fpdecimal.Decimal, quantity int64) (fpdecimal.Decimal, bool) {
	if quantity > math.MaxInt64/unit {
		return fpdecimal.Zero, false
	}
	if p := price.Scaled(); p > 0 && p > math.MaxInt64/(quantity*unit) {
		return fpdecimal.Zero, false
	}
	return price.Mul(fpdecimal.FromInt(quantity)), true
}

// ID returns the order ID
func (o *Order) ID() string {
	return o.id
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// Symbol returns the ticker symbol
func (o *Order) Symbol() string {
	return o.symbol
}

// Quantity returns the remaining quantity
func (o *Order) Quantity() int64 {
	return o.quantity
}

// OriginalQty returns the quantity the order was submitted with
func (o *Order) OriginalQty() int64 {
	return o.originalQty
}

// Price returns the limit price
func (o *Order) Price() fpdecimal.Decimal {
	return o.price
}

// Seq returns the submission sequence number
func (o *Order) Seq() uint64 {
	return o.seq
}

// Status derives the lifecycle state from remaining and original quantity
func (o *Order) Status() Status {
	switch {
	case o.quantity == 0:
		return StatusFilled
	case o.quantity < o.originalQty:
		return StatusPartiallyFilled
	default:
		return StatusOpen
	}
}

// decreaseQuantity reduces the remaining quantity after a fill
func (o *Order) decreaseQuantity(quantity int64) {
	if quantity > o.quantity {
		panic(fmt.Sprintf("fill of %d exceeds remaining %d on order %s", quantity, o.quantity, o.id))
	}
	o.quantity -= quantity
}

// Record converts the order to its persisted form
func (o *Order) Record() OrderRecord {
	return OrderRecord{
		ID:          o.id,
		Side:        o.side,
		Symbol:      o.symbol,
		Quantity:    o.quantity,
		OriginalQty: o.originalQty,
		Price:       o.price.String(),
		Seq:         o.seq,
	}
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Record())
}

// String implements Stringer interface
func (o *Order) String() string {
	return fmt.Sprintf("%s %d/%d %s @ %s (seq %d)", o.side, o.quantity, o.originalQty, o.symbol, o.price, o.seq)
}
