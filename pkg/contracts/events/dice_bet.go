package events

// BetCommitted é emitido no commit de uma aposta de dados.
type BetCommitted struct {
	BetID          string `json:"bet_id"`
	Player         string `json:"player"`
	Asset          string `json:"asset"`
	StakeCents     int64  `json:"stake_cents"`
	MaxPayoutCents int64  `json:"max_payout_cents"`
	WinThreshold   int    `json:"win_threshold"`
	RequestID      string `json:"request_id"`
	CommitmentHex  string `json:"commitment_hex"`
	TsUnixMs       int64  `json:"ts_unix_ms"`
}

// BetSettled é emitido no reveal, com o resultado final da rolagem.
type BetSettled struct {
	BetID       string `json:"bet_id"`
	Player      string `json:"player"`
	Asset       string `json:"asset"`
	Roll        int    `json:"roll"`
	Won         bool   `json:"won"`
	PayoutCents int64  `json:"payout_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

// BetSlashed é emitido quando o prazo de reveal expira e a aposta é confiscada.
type BetSlashed struct {
	BetID    string `json:"bet_id"`
	Player   string `json:"player"`
	Asset    string `json:"asset"`
	Forfeit  int64  `json:"forfeit_cents"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// BetCancelled é emitido quando o oráculo nunca respondeu e a aposta foi
// cancelada com reembolso integral do stake.
type BetCancelled struct {
	BetID       string `json:"bet_id"`
	Player      string `json:"player"`
	Asset       string `json:"asset"`
	RefundCents int64  `json:"refund_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
