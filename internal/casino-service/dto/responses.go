package dto

import (
	"time"

	"github.com/radieske/vrf-casino-platform-poc/internal/dicegame"
	"github.com/radieske/vrf-casino-platform-poc/internal/ledger"
	"github.com/radieske/vrf-casino-platform-poc/internal/lottery"
	"github.com/radieske/vrf-casino-platform-poc/internal/randomness"
)

type StatusResponse struct {
	Status string `json:"status"`
}

type BalancesResponse struct {
	Asset         string `json:"asset"`
	TotalCents    int64  `json:"total_cents"`
	ReservedCents int64  `json:"reserved_cents"`
	FreeCents     int64  `json:"free_cents"`
}

func FromAccount(acc ledger.Account) BalancesResponse {
	return BalancesResponse{
		Asset:         acc.Asset,
		TotalCents:    acc.TotalCents,
		ReservedCents: acc.ReservedCents,
		FreeCents:     acc.FreeCents(),
	}
}

type LimitsResponse struct {
	Asset         string `json:"asset"`
	Configured    bool   `json:"configured"`
	MinStakeCents int64  `json:"min_stake_cents"`
	MaxStakeCents int64  `json:"max_stake_cents"`
}

type BetResponse struct {
	BetID          string `json:"bet_id"`
	Player         string `json:"player"`
	Asset          string `json:"asset"`
	StakeCents     int64  `json:"stake_cents"`
	MaxPayoutCents int64  `json:"max_payout_cents"`
	WinThreshold   int    `json:"win_threshold"`
	RequestID      string `json:"request_id,omitempty"`
	State          string `json:"state"`
	RevealDeadline string `json:"reveal_deadline,omitempty"`
	Roll           int    `json:"roll,omitempty"`
	Won            bool   `json:"won"`
	PayoutCents    int64  `json:"payout_cents"`
}

func FromBet(b dicegame.Bet) BetResponse {
	resp := BetResponse{
		BetID:          b.ID,
		Player:         b.Player,
		Asset:          b.Asset,
		StakeCents:     b.StakeCents,
		MaxPayoutCents: b.MaxPayoutCents,
		WinThreshold:   b.WinThreshold,
		RequestID:      b.RequestID,
		State:          string(b.State),
		Roll:           b.Roll,
		Won:            b.Won,
		PayoutCents:    b.PayoutCents,
	}
	if !b.RevealDeadline.IsZero() {
		resp.RevealDeadline = b.RevealDeadline.Format(time.RFC3339)
	}
	return resp
}

type DrawResponse struct {
	DrawID           string `json:"draw_id"`
	Asset            string `json:"asset"`
	TicketPriceCents int64  `json:"ticket_price_cents"`
	HouseEdgeBps     int64  `json:"house_edge_bps"`
	StartTsUnixMs    int64  `json:"start_ts_unix_ms"`
	EndTsUnixMs      int64  `json:"end_ts_unix_ms"`
	Status           string `json:"status"`
	RequestID        string `json:"request_id,omitempty"`
	Winner           string `json:"winner,omitempty"`
	WinnerIndex      int64  `json:"winner_index"`
	TotalTickets     int64  `json:"total_tickets"`
	PotCents         int64  `json:"pot_cents"`
	RefundableCents  int64  `json:"refundable_cents"`
}

func FromDraw(d lottery.Draw) DrawResponse {
	return DrawResponse{
		DrawID:           d.ID,
		Asset:            d.Asset,
		TicketPriceCents: d.TicketPriceCents,
		HouseEdgeBps:     d.HouseEdgeBps,
		StartTsUnixMs:    d.StartTime.UnixMilli(),
		EndTsUnixMs:      d.EndTime.UnixMilli(),
		Status:           string(d.Status),
		RequestID:        d.RequestID,
		Winner:           d.Winner,
		WinnerIndex:      d.WinnerIndex,
		TotalTickets:     d.TotalTickets,
		PotCents:         d.PotCents,
		RefundableCents:  d.RefundableCents,
	}
}

type RequestResponse struct {
	RequestID   string `json:"request_id"`
	Requester   string `json:"requester"`
	RoundID     string `json:"round_id"`
	Fulfilled   bool   `json:"fulfilled"`
	Delivered   bool   `json:"delivered"`
	RandomValue uint64 `json:"random_value"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error,omitempty"`
}

func FromRequestContext(rc randomness.RequestContext) RequestResponse {
	return RequestResponse{
		RequestID:   rc.RequestID,
		Requester:   rc.Requester,
		RoundID:     rc.RoundID,
		Fulfilled:   rc.Fulfilled,
		Delivered:   rc.Delivered,
		RandomValue: rc.RandomValue,
		Attempts:    rc.Attempts,
		LastError:   rc.LastError,
	}
}

type RetryResponse struct {
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}

type RefundResponse struct {
	AmountCents int64 `json:"amount_cents"`
}
