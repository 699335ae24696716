package dto

// Ledger

type FundRequest struct {
	Asset       string `json:"asset"`
	AmountCents int64  `json:"amount_cents"`
	From        string `json:"from"`
}

type WithdrawRequest struct {
	Asset       string `json:"asset"`
	AmountCents int64  `json:"amount_cents"`
	To          string `json:"to"`
}

type SetLimitsRequest struct {
	Asset         string `json:"asset"`
	MinStakeCents int64  `json:"min_stake_cents"`
	MaxStakeCents int64  `json:"max_stake_cents"`
}

type SetCallerRequest struct {
	Caller  string `json:"caller"`
	Allowed bool   `json:"allowed"`
}

// Dice

type CommitBetRequest struct {
	Asset        string `json:"asset"`
	StakeCents   int64  `json:"stake_cents"`
	WinThreshold int    `json:"win_threshold"`
	Commitment   string `json:"commitment"` // sha256 hex de player|asset|stake|threshold|salt
}

type RevealBetRequest struct {
	StakeCents   int64  `json:"stake_cents"`
	WinThreshold int    `json:"win_threshold"`
	Salt         string `json:"salt"`
}

// Lottery

type CreateDrawRequest struct {
	Asset            string `json:"asset"`
	TicketPriceCents int64  `json:"ticket_price_cents"`
	HouseEdgeBps     int64  `json:"house_edge_bps"`
	StartTsUnixMs    int64  `json:"start_ts_unix_ms"`
	EndTsUnixMs      int64  `json:"end_ts_unix_ms"`
}

type BuyTicketsRequest struct {
	Count int `json:"count"`
}

// Randomness (callback do oráculo)

type FulfillRequest struct {
	RequestID string   `json:"request_id"`
	Words     []uint64 `json:"words"`
}

// Admin

type PauseRequest struct {
	Paused bool `json:"paused"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}
