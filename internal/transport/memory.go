package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/ignite/impression/internal/domain"
)

// Memory keeps sent envelopes in an outbox. Used in tests and local runs.
type Memory struct {
	mu     sync.Mutex
	outbox []domain.Envelope
	fail   error
	calls  int
}

// NewMemory creates an empty memory transport.
func NewMemory() *Memory { return &Memory{} }

// FailWith makes subsequent sends fail with err. nil restores success.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *Memory) Send(_ context.Context, env *domain.Envelope) (*domain.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return failed(BackendMemory, m.fail), nil
	}
	if env == nil {
		return nil, errors.New("nil envelope")
	}
	m.outbox = append(m.outbox, *env)
	return succeeded(BackendMemory, env.MessageID), nil
}

// Outbox returns a copy of every delivered envelope.
func (m *Memory) Outbox() []domain.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Envelope(nil), m.outbox...)
}

// Calls counts Send invocations, failed ones included.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
