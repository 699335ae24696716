package repo

import (
	"context"
	"sync"

	"github.com/radieske/vrf-casino-platform-poc/internal/dicegame"
)

// Memory guarda as apostas em mapa; usado em testes e modo dev.
type Memory struct {
	mu   sync.RWMutex
	bets map[string]dicegame.Bet
}

func NewMemory() *Memory {
	return &Memory{bets: make(map[string]dicegame.Bet)}
}

func (m *Memory) GetBet(_ context.Context, betID string) (dicegame.Bet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bets[betID]
	return b, ok, nil
}

func (m *Memory) SaveBet(_ context.Context, b dicegame.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bets[b.ID] = b
	return nil
}
