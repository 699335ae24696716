package repo

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/radieske/vrf-casino-platform-poc/internal/dicegame"
)

// Postgres implementa a persistência das apostas em banco.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// GetBet carrega a aposta pelo id.
func (p *Postgres) GetBet(ctx context.Context, betID string) (dicegame.Bet, bool, error) {
	var (
		b           dicegame.Bet
		randomValue string
		state       string
		requestedAt sql.NullTime
		revealBy    sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, player, asset, stake_cents, max_payout_cents, win_threshold,
			commitment, request_id, random_value, state, created_at,
			requested_at, reveal_deadline, roll, won, payout_cents
		FROM dice_bets WHERE id=$1`, betID).Scan(
		&b.ID, &b.Player, &b.Asset, &b.StakeCents, &b.MaxPayoutCents, &b.WinThreshold,
		&b.Commitment, &b.RequestID, &randomValue, &state, &b.CreatedAt,
		&requestedAt, &revealBy, &b.Roll, &b.Won, &b.PayoutCents)
	if err == sql.ErrNoRows {
		return dicegame.Bet{}, false, nil
	}
	if err != nil {
		return dicegame.Bet{}, false, err
	}

	// uint64 não cabe em bigint; vai como NUMERIC(20,0) e volta como string
	b.RandomValue, err = strconv.ParseUint(randomValue, 10, 64)
	if err != nil {
		return dicegame.Bet{}, false, err
	}
	b.State = dicegame.State(state)
	if requestedAt.Valid {
		b.RequestedAt = requestedAt.Time
	}
	if revealBy.Valid {
		b.RevealDeadline = revealBy.Time
	}
	return b, true, nil
}

// SaveBet grava/atualiza a aposta inteira.
func (p *Postgres) SaveBet(ctx context.Context, b dicegame.Bet) error {
	requestedAt := sql.NullTime{Time: b.RequestedAt, Valid: !b.RequestedAt.IsZero()}
	revealBy := sql.NullTime{Time: b.RevealDeadline, Valid: !b.RevealDeadline.IsZero()}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO dice_bets(id, player, asset, stake_cents, max_payout_cents, win_threshold,
			commitment, request_id, random_value, state, created_at,
			requested_at, reveal_deadline, roll, won, payout_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			request_id=$8, random_value=$9, state=$10,
			requested_at=$12, reveal_deadline=$13, roll=$14, won=$15, payout_cents=$16`,
		b.ID, b.Player, b.Asset, b.StakeCents, b.MaxPayoutCents, b.WinThreshold,
		b.Commitment, b.RequestID, strconv.FormatUint(b.RandomValue, 10), string(b.State), b.CreatedAt,
		requestedAt, revealBy, b.Roll, b.Won, b.PayoutCents)
	return err
}
