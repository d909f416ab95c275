package core

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nikolaydubina/fpdecimal"
)

// Snapshot captures the ledger and both book sides for persistence
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return &Snapshot{
		Balance:    e.ledger.Cash().String(),
		Portfolio:  e.ledger.Holdings(),
		BuyOrders:  records(e.bids),
		SellOrders: records(e.asks),
		NextSeq:    e.seq + 1,
	}
}

// Restore replaces the engine state with a previously persisted snapshot.
// Both sides are re-heapified; the stored order of the lists is not trusted.
// Orders without a sequence number are numbered in stored order, bids first.
// The trade log is cleared.
func (e *Engine) Restore(snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}

	if snapshot.Balance == "" {
		return fmt.Errorf("%w: missing balance", ErrInvalidSnapshot)
	}
	cash, err := fpdecimal.FromString(snapshot.Balance)
	if err != nil {
		return fmt.Errorf("%w: balance %q: %v", ErrInvalidSnapshot, snapshot.Balance, err)
	}
	if cash.LessThan(fpdecimal.Zero) {
		return fmt.Errorf("%w: negative balance %s", ErrInvalidSnapshot, cash)
	}

	ledger := NewLedger(cash)
	for symbol, qty := range snapshot.Portfolio {
		if qty < 0 {
			return fmt.Errorf("%w: negative holding %d %s", ErrInvalidSnapshot, qty, symbol)
		}
		ledger.Deposit(NormalizeSymbol(symbol), qty)
	}

	var lastSeq uint64
	if snapshot.NextSeq > 0 {
		lastSeq = snapshot.NextSeq - 1
	}
	for _, r := range snapshot.BuyOrders {
		lastSeq = max(lastSeq, r.Seq)
	}
	for _, r := range snapshot.SellOrders {
		lastSeq = max(lastSeq, r.Seq)
	}

	seen := make(map[uint64]struct{})
	bids, err := restoreOrders(Buy, snapshot.BuyOrders, &lastSeq, seen)
	if err != nil {
		return err
	}
	asks, err := restoreOrders(Sell, snapshot.SellOrders, &lastSeq, seen)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger = ledger
	e.bids.reset(bids)
	e.asks.reset(asks)
	e.seq = lastSeq
	e.trades = make([]Trade, 0)
	return nil
}

// restoreOrders rebuilds one side. Stored sequence numbers must be unique
// across both sides; seen collects them.
func restoreOrders(side Side, recs []OrderRecord, lastSeq *uint64, seen map[uint64]struct{}) ([]*Order, error) {
	orders := make([]*Order, 0, len(recs))
	for i, r := range recs {
		price, err := fpdecimal.FromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %s order %d price %q: %v", ErrInvalidSnapshot, side, i, r.Price, err)
		}

		symbol := NormalizeSymbol(r.Symbol)
		if err := validateOrder(side, symbol, r.Quantity, price); err != nil {
			return nil, fmt.Errorf("%w: %s order %d: %v", ErrInvalidSnapshot, side, i, err)
		}

		o := &Order{
			id:          r.ID,
			side:        side,
			symbol:      symbol,
			quantity:    r.Quantity,
			originalQty: max(r.OriginalQty, r.Quantity),
			price:       price,
			seq:         r.Seq,
		}
		if o.id == "" {
			o.id = uuid.NewString()
		}
		if o.seq == 0 {
			*lastSeq++
			o.seq = *lastSeq
		} else if _, dup := seen[o.seq]; dup {
			return nil, fmt.Errorf("%w: %s order %d reuses seq %d", ErrInvalidSnapshot, side, i, o.seq)
		}
		seen[o.seq] = struct{}{}
		orders = append(orders, o)
	}
	return orders, nil
}
