package lottery

import "time"

// RequesterID é a identidade deste round junto ao ledger e ao router.
const RequesterID = "lottery-service"

// Status é o estágio do ciclo de vida de um sorteio.
type Status string

const (
	StatusOpen            Status = "OPEN"
	StatusRandomRequested Status = "RANDOM_REQUESTED"
	StatusRandomFulfilled Status = "RANDOM_FULFILLED"
	StatusFinalized       Status = "FINALIZED"
	StatusRolledOver      Status = "ROLLED_OVER"
	StatusTimedOut        Status = "TIMED_OUT"
)

// Terminal indica se o status encerra o sorteio.
func (s Status) Terminal() bool {
	return s == StatusFinalized || s == StatusRolledOver
}

// Draw é um sorteio de bilhete único vencedor. O pot nunca sai da custódia
// reservada: ou paga o vencedor, ou vira rollover do ativo, ou reembolsa.
type Draw struct {
	ID               string
	Asset            string
	TicketPriceCents int64
	HouseEdgeBps     int64
	StartTime        time.Time
	EndTime          time.Time
	Status           Status
	RequestID        string
	RandomValue      uint64
	Winner           string
	WinnerIndex      int64
	TotalTickets     int64
	PotCents         int64
	RefundableCents  int64 // preenchido no timeout
	CreatedAt        time.Time
	RequestedAt      time.Time
}
