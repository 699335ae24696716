package repo

import (
	"context"
	"sync"

	"github.com/radieske/vrf-casino-platform-poc/internal/ledger"
)

// Memory é a implementação em memória do store de custódia (testes e
// execução local sem Postgres).
type Memory struct {
	mu       sync.Mutex
	accounts map[string]ledger.Account
	limits   map[string]ledger.Limits
	entries  []ledger.Entry
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]ledger.Account),
		limits:   make(map[string]ledger.Limits),
	}
}

func (m *Memory) GetAccount(_ context.Context, asset string) (ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[asset]; ok {
		return acc, nil
	}
	return ledger.Account{Asset: asset}, nil
}

func (m *Memory) SaveAccountWithEntry(_ context.Context, acc ledger.Account, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acc.Asset] = acc
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) GetLimits(_ context.Context, asset string) (ledger.Limits, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limits[asset]
	return l, ok, nil
}

func (m *Memory) SetLimits(_ context.Context, l ledger.Limits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[l.Asset] = l
	return nil
}

// Entries devolve uma cópia do journal acumulado (inspeção em testes).
func (m *Memory) Entries() []ledger.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
