package push

import (
	"context"
	"sync"
)

// Delivery records one Send call made against a MockSender.
type Delivery struct {
	Address  string
	Title    string
	Body     string
	Metadata map[string]string
}

// MockSender records deliveries and can be told to fail specific addresses.
// Used by fan-out and server tests.
type MockSender struct {
	mu         sync.Mutex
	deliveries []Delivery
	failWith   map[string]error
}

// NewMockSender creates a MockSender.
func NewMockSender() *MockSender {
	return &MockSender{failWith: make(map[string]error)}
}

// FailAddress makes Send return err for the given address.
func (m *MockSender) FailAddress(address string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith[address] = err
}

// Send implements Sender.
func (m *MockSender) Send(_ context.Context, address, title, body string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if address == "" {
		return ErrNoAddress
	}
	if err, ok := m.failWith[address]; ok {
		return err
	}
	m.deliveries = append(m.deliveries, Delivery{
		Address:  address,
		Title:    title,
		Body:     body,
		Metadata: metadata,
	})
	return nil
}

// Deliveries returns a snapshot of recorded deliveries.
func (m *MockSender) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Delivery(nil), m.deliveries...)
}
