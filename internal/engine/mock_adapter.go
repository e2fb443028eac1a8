package engine

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter implements Adapter for testing. It records sent messages
// and allows simulating inbound events via SimulateInbound.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan InboundEvent
	sent      []OutboundMessage
	failFor   map[int64]bool // recipients whose sends fail
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		inbound: make(chan InboundEvent, 100),
		failFor: make(map[int64]bool),
	}
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound event channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan InboundEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.inbound, nil
}

// Send records the outbound message, or fails if the recipient was
// marked unreachable with FailSendsTo.
func (m *MockAdapter) Send(ctx context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[msg.Recipient] {
		return fmt.Errorf("mock adapter: recipient %d unreachable", msg.Recipient)
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Close marks the adapter closed and closes the inbound channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.inbound)
	return nil
}

// SimulateInbound queues an inbound event as if it came from the
// platform.
func (m *MockAdapter) SimulateInbound(ev InboundEvent) {
	m.inbound <- ev
}

// FailSendsTo makes subsequent sends to recipient return an error.
func (m *MockAdapter) FailSendsTo(recipient int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[recipient] = true
}

// SentMessages returns a copy of all recorded outbound messages.
func (m *MockAdapter) SentMessages() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the messages recorded for one recipient.
func (m *MockAdapter) SentTo(recipient int64) []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutboundMessage
	for _, msg := range m.sent {
		if msg.Recipient == recipient {
			out = append(out, msg)
		}
	}
	return out
}

// Reset clears recorded messages.
func (m *MockAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
