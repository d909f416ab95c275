package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erain9/stocksim/pkg/logging"
	"github.com/erain9/stocksim/pkg/otel"
	"github.com/google/uuid"
	"github.com/nikolaydubina/fpdecimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var half = fpdecimal.FromFloat(0.5)

// Engine matches buy and sell limit orders for a single participant under
// price-time priority. Funds and shares are escrowed when an order is
// accepted, so matching never has to re-check solvency.
//
// All mutations for one submission run under a single lock; callers never
// observe an order that has been escrowed but not yet matched.
type Engine struct {
	mu       sync.Mutex
	bids     *OrderSide
	asks     *OrderSide
	ledger   *Ledger
	trades   []Trade
	seq      uint64
	tradeSeq uint64
	now      func() time.Time
	metrics  *otel.EngineMetrics
}

// Option configures an Engine
type Option func(*Engine)

// WithHoldings seeds the ledger with share holdings
func WithHoldings(holdings map[string]int64) Option {
	return func(e *Engine) {
		for symbol, qty := range holdings {
			if qty > 0 {
				e.ledger.Deposit(NormalizeSymbol(symbol), qty)
			}
		}
	}
}

// WithClock overrides the clock used to stamp trades
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine with an empty book and the given cash balance
func NewEngine(cash fpdecimal.Decimal, opts ...Option) *Engine {
	e := &Engine{
		bids:    NewOrderSide(Buy),
		asks:    NewOrderSide(Sell),
		ledger:  NewLedger(cash),
		trades:  make([]Trade, 0),
		now:     time.Now,
		metrics: otel.GetEngineMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitBuy escrows quantity*price of cash, books a buy order and runs the
// matching loop. It returns the trades executed as a result.
func (e *Engine) SubmitBuy(ctx context.Context, symbol string, quantity int64, price fpdecimal.Decimal) ([]Trade, error) {
	return e.submit(ctx, Buy, symbol, quantity, price)
}

// SubmitSell escrows quantity shares of symbol, books a sell order and runs
// the matching loop. It returns the trades executed as a result.
func (e *Engine) SubmitSell(ctx context.Context, symbol string, quantity int64, price fpdecimal.Decimal) ([]Trade, error) {
	return e.submit(ctx, Sell, symbol, quantity, price)
}

func (e *Engine) submit(ctx context.Context, side Side, symbol string, quantity int64, price fpdecimal.Decimal) ([]Trade, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanSubmitOrder,
		attribute.String(otel.AttributeOrderSide, side.String()),
		attribute.String(otel.AttributeOrderSymbol, NormalizeSymbol(symbol)),
		attribute.Int64(otel.AttributeOrderQuantity, quantity),
		attribute.String(otel.AttributeOrderPrice, price.String()),
	)
	defer span.End()

	order, err := NewOrder(side, symbol, quantity, price)
	if err != nil {
		e.reject(ctx, span, side, err)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.escrow(order); err != nil {
		e.reject(ctx, span, side, err)
		return nil, err
	}

	e.seq++
	order.seq = e.seq
	e.sideOf(side).Insert(order)
	e.metrics.RecordSubmitted(ctx, side.String())

	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("order_id", order.id).
		Str("side", side.String()).
		Str("symbol", order.symbol).
		Int64("quantity", order.quantity).
		Str("price", order.price.String()).
		Uint64("seq", order.seq).
		Msg("Order placed")

	trades := e.match(ctx)

	otel.AddAttributes(span,
		attribute.String(otel.AttributeOrderID, order.id),
		attribute.Int(otel.AttributeTradeCount, len(trades)),
		attribute.String(otel.AttributeOrderStatus, string(order.Status())),
	)
	span.SetStatus(codes.Ok, "order submitted")

	return trades, nil
}

func (e *Engine) reject(ctx context.Context, span trace.Span, side Side, err error) {
	span.SetStatus(codes.Error, err.Error())
	e.metrics.RecordRejected(ctx, side.String())
	logger := logging.FromContext(ctx)
	logger.Debug().Err(err).Str("side", side.String()).Msg("Order rejected")
}

// escrow commits cash for buys and shares for sells at submission time
func (e *Engine) escrow(order *Order) error {
	switch order.side {
	case Buy:
		cost, ok := notional(order.price, order.quantity)
		if !ok {
			return fmt.Errorf("%w: %d x %s is out of range", ErrInvalidOrder, order.quantity, order.price)
		}
		if err := e.ledger.Debit(cost); err != nil {
			return fmt.Errorf("buy %d %s @ %s: %w", order.quantity, order.symbol, order.price, err)
		}
	case Sell:
		if err := e.ledger.Withdraw(order.symbol, order.quantity); err != nil {
			return fmt.Errorf("sell %d %s @ %s: %w", order.quantity, order.symbol, order.price, err)
		}
	}
	return nil
}

// match pairs the best bid with the best ask until the book no longer
// crosses. A failed crossing test leaves both sides untouched.
func (e *Engine) match(ctx context.Context) []Trade {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanMatchOrders)
	defer span.End()

	logger := logging.FromContext(ctx)
	trades := make([]Trade, 0)
	for e.bids.Len() > 0 && e.asks.Len() > 0 {
		buy := e.bids.Best()
		sell := e.asks.Best()

		if !crosses(buy, sell) {
			break
		}

		quantity := min(buy.quantity, sell.quantity)
		price := midpoint(buy.price, sell.price)

		trade := e.settle(buy, sell, quantity, price)
		trades = append(trades, trade)

		buy.decreaseQuantity(quantity)
		sell.decreaseQuantity(quantity)

		if buy.quantity == 0 {
			e.bids.PopBest()
		} else {
			e.bids.FixBest()
		}
		if sell.quantity == 0 {
			e.asks.PopBest()
		} else {
			e.asks.FixBest()
		}

		logger.Debug().
			Str("trade_id", trade.ID).
			Str("symbol", trade.Symbol).
			Int64("quantity", trade.Quantity).
			Str("price", trade.Price.String()).
			Str("buy_order_id", trade.BuyOrderID).
			Str("sell_order_id", trade.SellOrderID).
			Msg("Order matched")

		e.metrics.RecordTrade(ctx, trade.Symbol, trade.Quantity)
	}

	otel.AddAttributes(span, attribute.Int(otel.AttributeTradeCount, len(trades)))
	return trades
}

// settle moves shares to the buyer, refunds the buyer's escrow above the
// execution price and credits the seller's proceeds.
func (e *Engine) settle(buy, sell *Order, quantity int64, price fpdecimal.Decimal) Trade {
	qty := fpdecimal.FromInt(quantity)

	e.ledger.Deposit(buy.symbol, quantity)
	if refund := buy.price.Sub(price).Mul(qty); refund.GreaterThan(fpdecimal.Zero) {
		e.ledger.Credit(refund)
	}
	e.ledger.Credit(price.Mul(qty))

	e.tradeSeq++
	trade := Trade{
		ID:          uuid.NewString(),
		Seq:         e.tradeSeq,
		Symbol:      buy.symbol,
		Quantity:    quantity,
		Price:       price,
		BuyOrderID:  buy.id,
		SellOrderID: sell.id,
		BuyPrice:    buy.price,
		SellPrice:   sell.price,
		ExecutedAt:  e.now(),
	}
	e.trades = append(e.trades, trade)
	return trade
}

// crosses reports whether the two orders can trade
func crosses(buy, sell *Order) bool {
	return buy.symbol == sell.symbol && buy.price.GreaterThanOrEqual(sell.price)
}

// midpoint returns the execution price of a match, halfway between the limits
func midpoint(a, b fpdecimal.Decimal) fpdecimal.Decimal {
	return a.Add(b).Mul(half)
}

func (e *Engine) sideOf(side Side) *OrderSide {
	if side == Buy {
		return e.bids
	}
	return e.asks
}

// Cash returns the available (unescrowed) cash balance
func (e *Engine) Cash() fpdecimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Cash()
}

// Holding returns the available (unescrowed) shares of a symbol
func (e *Engine) Holding(symbol string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Holding(NormalizeSymbol(symbol))
}

// Holdings returns a copy of all available holdings
func (e *Engine) Holdings() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Holdings()
}

// BuyOrders returns the resident bids in priority order
func (e *Engine) BuyOrders() []OrderRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return records(e.bids)
}

// SellOrders returns the resident asks in priority order
func (e *Engine) SellOrders() []OrderRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return records(e.asks)
}

// Trades returns a copy of the trade log
func (e *Engine) Trades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// EscrowedCash returns the cash committed to resident buy orders
func (e *Engine) EscrowedCash() fpdecimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := fpdecimal.Zero
	for _, o := range e.bids.orders.items {
		total = total.Add(o.price.Mul(fpdecimal.FromInt(o.quantity)))
	}
	return total
}

func records(side *OrderSide) []OrderRecord {
	orders := side.Orders()
	out := make([]OrderRecord, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Record())
	}
	return out
}

// String implements fmt.Stringer interface
func (e *Engine) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return "Ask:" + e.asks.String() + "\nBid:" + e.bids.String() + "\n"
}
