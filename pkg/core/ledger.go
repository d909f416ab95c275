package core

import (
	"fmt"
	"sort"

	"github.com/nikolaydubina/fpdecimal"
)

// Ledger tracks the participant's cash and share holdings. Neither can go
// negative, and a holding that drops to zero is removed.
type Ledger struct {
	cash     fpdecimal.Decimal
	holdings map[string]int64
}

// NewLedger creates a ledger with the given cash balance and no holdings
func NewLedger(cash fpdecimal.Decimal) *Ledger {
	if cash.LessThan(fpdecimal.Zero) {
		cash = fpdecimal.Zero
	}
	return &Ledger{
		cash:     cash,
		holdings: make(map[string]int64),
	}
}

// Cash returns the available cash balance
func (l *Ledger) Cash() fpdecimal.Decimal {
	return l.cash
}

// Holding returns the number of shares held for a symbol
func (l *Ledger) Holding(symbol string) int64 {
	return l.holdings[symbol]
}

// Holdings returns a copy of all non-zero holdings
func (l *Ledger) Holdings() map[string]int64 {
	out := make(map[string]int64, len(l.holdings))
	for symbol, qty := range l.holdings {
		out[symbol] = qty
	}
	return out
}

// Symbols returns the held symbols in lexical order
func (l *Ledger) Symbols() []string {
	symbols := make([]string, 0, len(l.holdings))
	for symbol := range l.holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Debit removes cash, failing if the balance would go negative or the
// amount itself is negative
func (l *Ledger) Debit(amount fpdecimal.Decimal) error {
	if amount.LessThan(fpdecimal.Zero) {
		return fmt.Errorf("%w: negative debit %s", ErrInvalidOrder, amount)
	}
	if amount.GreaterThan(l.cash) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, amount, l.cash)
	}
	l.cash = l.cash.Sub(amount)
	return nil
}

// Credit adds cash
func (l *Ledger) Credit(amount fpdecimal.Decimal) {
	if amount.LessThan(fpdecimal.Zero) {
		panic(fmt.Sprintf("negative credit %s", amount))
	}
	l.cash = l.cash.Add(amount)
}

// Withdraw removes shares, failing if fewer than quantity are held
func (l *Ledger) Withdraw(symbol string, quantity int64) error {
	held := l.holdings[symbol]
	if held < quantity {
		return fmt.Errorf("%w: need %d %s, have %d", ErrInsufficientHoldings, quantity, symbol, held)
	}
	if held == quantity {
		delete(l.holdings, symbol)
		return nil
	}
	l.holdings[symbol] = held - quantity
	return nil
}

// Deposit adds shares
func (l *Ledger) Deposit(symbol string, quantity int64) {
	if quantity < 0 {
		panic(fmt.Sprintf("negative deposit %d %s", quantity, symbol))
	}
	if quantity == 0 {
		return
	}
	l.holdings[symbol] += quantity
}
