package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/radieske/vrf-casino-platform-poc/internal/lottery"
)

type ticketRange struct {
	buyer string
	first int64
	count int
}

// Memory guarda sorteios e bilhetes em mapas; usado em testes e modo dev.
type Memory struct {
	mu       sync.RWMutex
	draws    map[string]lottery.Draw
	tickets  map[string][]ticketRange   // drawID -> faixas vendidas em ordem
	holders  map[string]map[string]int  // drawID -> holder -> bilhetes
	claimed  map[string]map[string]bool // drawID -> holder -> resgatado
	rollover map[string]int64           // asset -> pot carregado
}

func NewMemory() *Memory {
	return &Memory{
		draws:    make(map[string]lottery.Draw),
		tickets:  make(map[string][]ticketRange),
		holders:  make(map[string]map[string]int),
		claimed:  make(map[string]map[string]bool),
		rollover: make(map[string]int64),
	}
}

func (m *Memory) GetDraw(_ context.Context, drawID string) (lottery.Draw, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.draws[drawID]
	return d, ok, nil
}

func (m *Memory) SaveDraw(_ context.Context, d lottery.Draw) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draws[d.ID] = d
	return nil
}

func (m *Memory) AppendTickets(_ context.Context, drawID, buyer string, firstIndex int64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[drawID] = append(m.tickets[drawID], ticketRange{buyer: buyer, first: firstIndex, count: count})
	if m.holders[drawID] == nil {
		m.holders[drawID] = make(map[string]int)
	}
	m.holders[drawID][buyer] += count
	return nil
}

func (m *Memory) BuyerAtIndex(_ context.Context, drawID string, index int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.tickets[drawID] {
		if index >= r.first && index < r.first+int64(r.count) {
			return r.buyer, nil
		}
	}
	return "", fmt.Errorf("ticket index %d not sold in draw %s", index, drawID)
}

func (m *Memory) HolderTickets(_ context.Context, drawID, holder string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.holders[drawID][holder], nil
}

func (m *Memory) RefundClaimed(_ context.Context, drawID, holder string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claimed[drawID][holder], nil
}

func (m *Memory) MarkRefundClaimed(_ context.Context, drawID, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[drawID] == nil {
		m.claimed[drawID] = make(map[string]bool)
	}
	m.claimed[drawID][holder] = true
	return nil
}

func (m *Memory) ClearRefundClaim(_ context.Context, drawID, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed[drawID], holder)
	return nil
}

func (m *Memory) GetRolloverPot(_ context.Context, asset string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rollover[asset], nil
}

func (m *Memory) SetRolloverPot(_ context.Context, asset string, cents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover[asset] = cents
	return nil
}
