package dicegame

import "time"

// RequesterID é a identidade deste round junto ao ledger e ao router.
const RequesterID = "dice-service"

// State é o estágio do ciclo de vida de uma aposta.
type State string

const (
	StateCommitted       State = "COMMITTED"
	StateRandomRequested State = "RANDOM_REQUESTED"
	StateRandomFulfilled State = "RANDOM_FULFILLED"
	StateSettled         State = "SETTLED"
	StateSlashed         State = "SLASHED"
	StateCancelled       State = "CANCELLED"
)

// Terminal indica se o estado encerra a aposta.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateSlashed || s == StateCancelled
}

// Bet é uma aposta de dados commit-reveal. Nunca é apagada: encerrada, vira
// registro de auditoria.
type Bet struct {
	ID             string
	Player         string
	Asset          string
	StakeCents     int64
	MaxPayoutCents int64  // passivo reservado no ledger, sempre >= stake
	WinThreshold   int    // 1..99; vence se roll <= threshold
	Commitment     string // sha256 hex de player|asset|stake|threshold|salt
	RequestID      string
	RandomValue    uint64
	State          State
	CreatedAt      time.Time
	RequestedAt    time.Time
	RevealDeadline time.Time

	// resultado (preenchido no settle)
	Roll        int
	Won         bool
	PayoutCents int64
}
