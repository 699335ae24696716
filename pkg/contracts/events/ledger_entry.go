package events

// LedgerEntry é o evento auditável emitido a cada mutação de custódia.
// Sempre carrega os totais reservados antes/depois da operação.
type LedgerEntry struct {
	EntryID        string `json:"entry_id"`
	Operation      string `json:"operation"` // FUND | WITHDRAW | COLLECT | RETURN | RESERVE_INC | RESERVE_DEC | PAYOUT
	Asset          string `json:"asset"`
	AmountCents    int64  `json:"amount_cents"`
	Counterparty   string `json:"counterparty,omitempty"` // origem/destino externo, quando houver
	Caller         string `json:"caller"`
	TotalBefore    int64  `json:"total_before"`
	TotalAfter     int64  `json:"total_after"`
	ReservedBefore int64  `json:"reserved_before"`
	ReservedAfter  int64  `json:"reserved_after"`
	TsUnixMs       int64  `json:"ts_unix_ms"`
}
