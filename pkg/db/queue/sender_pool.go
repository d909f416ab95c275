package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/erain9/stocksim/pkg/messaging"
	"github.com/rs/zerolog/log"
)

// SenderFactory creates a new sender for the pool
type SenderFactory func() (messaging.MessageSender, error)

// SenderPool hands out pooled senders so concurrent publishers never share
// a producer. A sender that fails is closed and replaced on the next call.
type SenderPool struct {
	senders chan messaging.MessageSender
	factory SenderFactory
	closed  bool
	mu      sync.Mutex
}

// NewSenderPool pre-populates a pool with size senders
func NewSenderPool(size int, factory SenderFactory) (*SenderPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	pool := &SenderPool{
		senders: make(chan messaging.MessageSender, size),
		factory: factory,
	}

	for i := 0; i < size; i++ {
		sender, err := factory()
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("failed to create sender %d: %w", i, err)
		}
		pool.senders <- sender
	}

	return pool, nil
}

// get takes a sender from the pool, creating a fresh one if it is empty
func (p *SenderPool) get() (messaging.MessageSender, error) {
	select {
	case sender := <-p.senders:
		return sender, nil
	default:
		return p.factory()
	}
}

// put returns a sender to the pool, closing it when the pool is full
func (p *SenderPool) put(sender messaging.MessageSender) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = sender.Close()
		return
	}

	select {
	case p.senders <- sender:
	default:
		_ = sender.Close()
	}
}

// SendTradeMessage sends a message using a pooled sender
func (p *SenderPool) SendTradeMessage(ctx context.Context, msg *messaging.TradeMessage) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("sender pool is closed")
	}

	sender, err := p.get()
	if err != nil {
		return fmt.Errorf("failed to get message sender from pool: %w", err)
	}

	if err := sender.SendTradeMessage(ctx, msg); err != nil {
		log.Warn().Err(err).Str("trade_id", msg.TradeID).Msg("Dropping failed sender")
		_ = sender.Close()
		return err
	}

	p.put(sender)
	return nil
}

// Close closes every idle sender
func (p *SenderPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	close(p.senders)
	var firstErr error
	for sender := range p.senders {
		if err := sender.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ messaging.MessageSender = (*SenderPool)(nil)
