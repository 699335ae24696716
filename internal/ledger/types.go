package ledger

import "time"

// AssetNative é o sentinela do ativo de liquidação nativo. Demais ativos são
// códigos não vazios (ex: "ETH", "USDT") movidos no padrão pull-then-transfer.
const AssetNative = "NATIVE"

// Account é a posição de custódia por ativo: total sob guarda e a fatia
// reservada contra obrigações em aberto. Invariante: 0 <= reserved <= total.
type Account struct {
	Asset         string `json:"asset"`
	TotalCents    int64  `json:"total_cents"`
	ReservedCents int64  `json:"reserved_cents"`
}

// FreeCents é o saldo líquido disponível (total - reservado).
func (a Account) FreeCents() int64 { return a.TotalCents - a.ReservedCents }

// Limits define a faixa de stake aceita por ativo.
type Limits struct {
	Asset         string `json:"asset"`
	MinStakeCents int64  `json:"min_stake_cents"`
	MaxStakeCents int64  `json:"max_stake_cents"`
}

// Entry é o registro de journal de uma mutação de custódia (trilha de auditoria).
type Entry struct {
	ID             string
	Operation      string
	Asset          string
	AmountCents    int64
	Counterparty   string
	Caller         string
	TotalBefore    int64
	TotalAfter     int64
	ReservedBefore int64
	ReservedAfter  int64
	CreatedAt      time.Time
}

// Operações registradas no journal.
const (
	OpFund       = "FUND"
	OpWithdraw   = "WITHDRAW"
	OpCollect    = "COLLECT"
	OpReturn     = "RETURN"
	OpReserveInc = "RESERVE_INC"
	OpReserveDec = "RESERVE_DEC"
	OpPayout     = "PAYOUT"
)
