package events

// DrawCreated é emitido na criação de um sorteio (pot inicial pode incluir rollover).
type DrawCreated struct {
	DrawID           string `json:"draw_id"`
	Asset            string `json:"asset"`
	TicketPriceCents int64  `json:"ticket_price_cents"`
	HouseEdgeBps     int64  `json:"house_edge_bps"`
	StartTsUnixMs    int64  `json:"start_ts_unix_ms"`
	EndTsUnixMs      int64  `json:"end_ts_unix_ms"`
	StartingPotCents int64  `json:"starting_pot_cents"`
	TsUnixMs         int64  `json:"ts_unix_ms"`
}

// TicketsSold é emitido a cada compra de bilhetes.
type TicketsSold struct {
	DrawID       string `json:"draw_id"`
	Buyer        string `json:"buyer"`
	Count        int    `json:"count"`
	FirstIndex   int64  `json:"first_index"`
	AmountCents  int64  `json:"amount_cents"`
	PotCents     int64  `json:"pot_cents"`
	TotalTickets int64  `json:"total_tickets"`
	TsUnixMs     int64  `json:"ts_unix_ms"`
}

// DrawRolledOver é emitido quando o pot é carregado para o próximo sorteio do ativo.
type DrawRolledOver struct {
	DrawID        string `json:"draw_id"`
	Asset         string `json:"asset"`
	CarriedCents  int64  `json:"carried_cents"`
	RolloverCents int64  `json:"rollover_cents"` // pot acumulado do ativo após o carry
	TsUnixMs      int64  `json:"ts_unix_ms"`
}

// DrawFinalized é emitido quando um vencedor é pago. Também é o ponto de
// integração best-effort para bônus/achievements externos.
type DrawFinalized struct {
	DrawID       string `json:"draw_id"`
	Asset        string `json:"asset"`
	Winner       string `json:"winner"`
	WinnerIndex  int64  `json:"winner_index"`
	PayoutCents  int64  `json:"payout_cents"`
	HouseCents   int64  `json:"house_cents"`
	TotalTickets int64  `json:"total_tickets"`
	TsUnixMs     int64  `json:"ts_unix_ms"`
}

// DrawTimedOut é emitido quando o oráculo não respondeu no prazo e o sorteio
// entrou em modo de reembolso.
type DrawTimedOut struct {
	DrawID          string `json:"draw_id"`
	Asset           string `json:"asset"`
	RefundableCents int64  `json:"refundable_cents"`
	CarriedCents    int64  `json:"carried_cents"`
	TsUnixMs        int64  `json:"ts_unix_ms"`
}

// RefundClaimed é emitido quando um comprador resgata o reembolso dos bilhetes.
type RefundClaimed struct {
	DrawID      string `json:"draw_id"`
	Holder      string `json:"holder"`
	Tickets     int    `json:"tickets"`
	AmountCents int64  `json:"amount_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
