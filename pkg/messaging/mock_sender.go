package messaging

import (
	"context"
	"sync"
)

// MockMessageSender records every message it is asked to send.
// Err, when set, is returned from SendTradeMessage instead.
type MockMessageSender struct {
	mu       sync.Mutex
	messages []*TradeMessage
	closed   bool
	Err      error
}

// NewMockMessageSender creates a new MockMessageSender.
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// SendTradeMessage stores the message.
func (m *MockMessageSender) SendTradeMessage(_ context.Context, msg *TradeMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages
func (m *MockMessageSender) Messages() []*TradeMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*TradeMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Closed reports whether Close was called
func (m *MockMessageSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the sender closed.
func (m *MockMessageSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Ensure MockMessageSender implements MessageSender
var _ MessageSender = (*MockMessageSender)(nil)
