package repo

import (
	"context"
	"sync"

	"github.com/radieske/vrf-casino-platform-poc/internal/randomness"
)

// Memory é a implementação em memória do store de pedidos (testes).
type Memory struct {
	mu       sync.Mutex
	requests map[string]randomness.RequestContext
}

func NewMemory() *Memory {
	return &Memory{requests: make(map[string]randomness.RequestContext)}
}

func (m *Memory) GetRequest(_ context.Context, requestID string) (randomness.RequestContext, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.requests[requestID]
	return rc, ok, nil
}

func (m *Memory) SaveRequest(_ context.Context, rc randomness.RequestContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[rc.RequestID] = rc
	return nil
}
