package clock

import (
	"sync"
	"time"
)

// Clock abstrai a noção de tempo corrente dos componentes.
// Deadlines (reveal, espera pelo oráculo, janela de venda) só podem usar
// esta capability, nunca time.Now direto.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System retorna o relógio real (UTC).
func System() Clock { return systemClock{} }

// Manual é um relógio controlado manualmente, usado em testes.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance avança o relógio em d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set posiciona o relógio em t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}
