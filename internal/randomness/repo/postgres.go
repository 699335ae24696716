package repo

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/radieske/vrf-casino-platform-poc/internal/randomness"
)

// Postgres persiste os contextos de pedido VRF.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) GetRequest(ctx context.Context, requestID string) (randomness.RequestContext, bool, error) {
	var rc randomness.RequestContext
	var randomStr string
	var fulfilledAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT request_id, requester, round_id, word_count, fulfilled, delivered,
		       random_value, attempts, last_error, created_at, fulfilled_at
		FROM vrf_requests WHERE request_id=$1`, requestID).
		Scan(&rc.RequestID, &rc.Requester, &rc.RoundID, &rc.WordCount, &rc.Fulfilled,
			&rc.Delivered, &randomStr, &rc.Attempts, &rc.LastError, &rc.CreatedAt, &fulfilledAt)
	if err == sql.ErrNoRows {
		return randomness.RequestContext{}, false, nil
	}
	if err != nil {
		return randomness.RequestContext{}, false, err
	}

	// palavra do oráculo é uint64; gravada como NUMERIC pra não perder sinal
	rc.RandomValue, err = strconv.ParseUint(randomStr, 10, 64)
	if err != nil {
		return randomness.RequestContext{}, false, err
	}
	if fulfilledAt.Valid {
		rc.FulfilledAt = fulfilledAt.Time
	}
	return rc, true, nil
}

func (p *Postgres) SaveRequest(ctx context.Context, rc randomness.RequestContext) error {
	var fulfilledAt sql.NullTime
	if !rc.FulfilledAt.IsZero() {
		fulfilledAt = sql.NullTime{Time: rc.FulfilledAt, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO vrf_requests(request_id, requester, round_id, word_count, fulfilled,
			delivered, random_value, attempts, last_error, created_at, fulfilled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (request_id) DO UPDATE SET
			fulfilled=$5, delivered=$6, random_value=$7, attempts=$8, last_error=$9, fulfilled_at=$11`,
		rc.RequestID, rc.Requester, rc.RoundID, rc.WordCount, rc.Fulfilled,
		rc.Delivered, strconv.FormatUint(rc.RandomValue, 10), rc.Attempts, rc.LastError,
		rc.CreatedAt, fulfilledAt)
	return err
}
