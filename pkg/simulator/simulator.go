package simulator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/erain9/stocksim/pkg/core"
	"github.com/erain9/stocksim/pkg/logging"
	"github.com/erain9/stocksim/pkg/messaging"
	"github.com/erain9/stocksim/pkg/otel"
	"github.com/nikolaydubina/fpdecimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultInitialBalance is the cash a fresh session starts with
var DefaultInitialBalance = fpdecimal.FromInt(10000)

// Options configures a fresh session. They are ignored when the backend
// already holds a snapshot.
type Options struct {
	InitialBalance  fpdecimal.Decimal
	InitialHoldings map[string]int64
}

// DefaultOptions starts a session with DefaultInitialBalance and no holdings
func DefaultOptions() Options {
	return Options{InitialBalance: DefaultInitialBalance}
}

// Simulator is a persistent trading session: every accepted submission is
// matched, saved to the backend and its trades published.
type Simulator struct {
	mu      sync.Mutex
	engine  *core.Engine
	backend core.Backend
	sender  messaging.MessageSender
	closed  bool
}

// New restores the session from backend, or starts a fresh one from opts
// when nothing has been saved yet. A nil sender drops trade messages.
func New(ctx context.Context, backend core.Backend, sender messaging.MessageSender, opts Options) (*Simulator, error) {
	if backend == nil {
		return nil, errors.New("simulator: backend is required")
	}
	if sender == nil {
		sender = messaging.NoopSender{}
	}

	logger := logging.FromContext(ctx)

	snapshot, err := backend.Load(ctx)
	switch {
	case errors.Is(err, core.ErrNoSnapshot):
		balance := opts.InitialBalance
		logger.Info().Str("balance", balance.String()).Msg("Starting new session")
		return &Simulator{
			engine:  core.NewEngine(balance, core.WithHoldings(opts.InitialHoldings)),
			backend: backend,
			sender:  sender,
		}, nil
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}

	engine := core.NewEngine(fpdecimal.Zero)
	if err := engine.Restore(snapshot); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	logger.Info().
		Str("balance", engine.Cash().String()).
		Int("buy_orders", len(snapshot.BuyOrders)).
		Int("sell_orders", len(snapshot.SellOrders)).
		Msg("Session restored")

	return &Simulator{
		engine:  engine,
		backend: backend,
		sender:  sender,
	}, nil
}

// Engine exposes the underlying matching engine
func (s *Simulator) Engine() *core.Engine {
	return s.engine
}

// Buy places a buy limit order
func (s *Simulator) Buy(ctx context.Context, symbol string, quantity int64, price fpdecimal.Decimal) ([]core.Trade, error) {
	return s.place(ctx, core.Buy, symbol, quantity, price)
}

// Sell places a sell limit order
func (s *Simulator) Sell(ctx context.Context, symbol string, quantity int64, price fpdecimal.Decimal) ([]core.Trade, error) {
	return s.place(ctx, core.Sell, symbol, quantity, price)
}

func (s *Simulator) place(ctx context.Context, side core.Side, symbol string, quantity int64, price fpdecimal.Decimal) ([]core.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("simulator: session is closed")
	}

	var (
		trades []core.Trade
		err    error
	)
	if side == core.Buy {
		trades, err = s.engine.SubmitBuy(ctx, symbol, quantity, price)
	} else {
		trades, err = s.engine.SubmitSell(ctx, symbol, quantity, price)
	}
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx); err != nil {
		return trades, err
	}
	s.publish(ctx, trades)
	return trades, nil
}

func (s *Simulator) save(ctx context.Context) error {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanSaveSnapshot,
		attribute.String(otel.AttributeBackend, backendName(s.backend)))
	defer span.End()

	if err := s.backend.Save(ctx, s.engine.Snapshot()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger := logging.FromContext(ctx)
		logger.Error().Err(err).Msg("Failed to save session")
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// backendName returns the backend's Name when it has one, else its Go type
func backendName(b core.Backend) string {
	if named, ok := b.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", b)
}

// publish sends trades downstream. Failures are logged and never undo a
// trade that has already been settled and saved.
func (s *Simulator) publish(ctx context.Context, trades []core.Trade) {
	if len(trades) == 0 {
		return
	}

	ctx, span := otel.StartOrderSpan(ctx, otel.SpanPublishTrades,
		attribute.Int(otel.AttributeTradeCount, len(trades)))
	defer span.End()

	logger := logging.FromContext(ctx)
	for _, trade := range trades {
		if err := s.sender.SendTradeMessage(ctx, trade.ToMessage()); err != nil {
			span.SetStatus(codes.Error, err.Error())
			logger.Warn().Err(err).Str("trade_id", trade.ID).Msg("Failed to publish trade")
		}
	}
}

// Holding is one line of the portfolio view
type Holding struct {
	Symbol   string
	Quantity int64
}

// Portfolio is a point-in-time view of the session
type Portfolio struct {
	Balance    fpdecimal.Decimal
	Escrowed   fpdecimal.Decimal
	Holdings   []Holding
	BuyOrders  []core.OrderRecord
	SellOrders []core.OrderRecord
}

// Portfolio returns holdings sorted by symbol, the available balance and
// the open orders of both sides.
func (s *Simulator) Portfolio() Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.engine.Snapshot()
	symbols := make([]string, 0, len(snapshot.Portfolio))
	for symbol := range snapshot.Portfolio {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	holdings := make([]Holding, 0, len(symbols))
	for _, symbol := range symbols {
		holdings = append(holdings, Holding{Symbol: symbol, Quantity: snapshot.Portfolio[symbol]})
	}

	return Portfolio{
		Balance:    s.engine.Cash(),
		Escrowed:   s.engine.EscrowedCash(),
		Holdings:   holdings,
		BuyOrders:  snapshot.BuyOrders,
		SellOrders: snapshot.SellOrders,
	}
}

// String renders the portfolio for the terminal
func (p Portfolio) String() string {
	sb := strings.Builder{}
	sb.WriteString("Your Portfolio:\n")
	if len(p.Holdings) == 0 {
		sb.WriteString("  (no shares)\n")
	}
	for _, h := range p.Holdings {
		sb.WriteString(fmt.Sprintf("- %s: %d shares\n", h.Symbol, h.Quantity))
	}
	sb.WriteString(fmt.Sprintf("Available Balance: $%s\n", p.Balance))
	if len(p.BuyOrders) > 0 || len(p.SellOrders) > 0 {
		sb.WriteString("Open Orders:\n")
		for _, o := range p.BuyOrders {
			sb.WriteString(fmt.Sprintf("  BUY  %d %s @ $%s\n", o.Quantity, o.Symbol, o.Price))
		}
		for _, o := range p.SellOrders {
			sb.WriteString(fmt.Sprintf("  SELL %d %s @ $%s\n", o.Quantity, o.Symbol, o.Price))
		}
		sb.WriteString(fmt.Sprintf("Escrowed Balance: $%s\n", p.Escrowed))
	}
	return sb.String()
}

// Close saves the session and releases the sender and backend
func (s *Simulator) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	saveErr := s.save(ctx)
	senderErr := s.sender.Close()
	backendErr := s.backend.Close()
	return errors.Join(saveErr, senderErr, backendErr)
}
