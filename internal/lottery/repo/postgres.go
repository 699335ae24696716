package repo

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/radieske/vrf-casino-platform-poc/internal/lottery"
)

// Postgres implementa a persistência dos sorteios em banco.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) GetDraw(ctx context.Context, drawID string) (lottery.Draw, bool, error) {
	var (
		d           lottery.Draw
		randomValue string
		status      string
		requestedAt sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, asset, ticket_price_cents, house_edge_bps, start_time, end_time,
			status, request_id, random_value, winner, winner_index,
			total_tickets, pot_cents, refundable_cents, created_at, requested_at
		FROM lottery_draws WHERE id=$1`, drawID).Scan(
		&d.ID, &d.Asset, &d.TicketPriceCents, &d.HouseEdgeBps, &d.StartTime, &d.EndTime,
		&status, &d.RequestID, &randomValue, &d.Winner, &d.WinnerIndex,
		&d.TotalTickets, &d.PotCents, &d.RefundableCents, &d.CreatedAt, &requestedAt)
	if err == sql.ErrNoRows {
		return lottery.Draw{}, false, nil
	}
	if err != nil {
		return lottery.Draw{}, false, err
	}

	d.RandomValue, err = strconv.ParseUint(randomValue, 10, 64)
	if err != nil {
		return lottery.Draw{}, false, err
	}
	d.Status = lottery.Status(status)
	if requestedAt.Valid {
		d.RequestedAt = requestedAt.Time
	}
	return d, true, nil
}

func (p *Postgres) SaveDraw(ctx context.Context, d lottery.Draw) error {
	requestedAt := sql.NullTime{Time: d.RequestedAt, Valid: !d.RequestedAt.IsZero()}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO lottery_draws(id, asset, ticket_price_cents, house_edge_bps, start_time, end_time,
			status, request_id, random_value, winner, winner_index,
			total_tickets, pot_cents, refundable_cents, created_at, requested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			status=$7, request_id=$8, random_value=$9, winner=$10, winner_index=$11,
			total_tickets=$12, pot_cents=$13, refundable_cents=$14, requested_at=$16`,
		d.ID, d.Asset, d.TicketPriceCents, d.HouseEdgeBps, d.StartTime, d.EndTime,
		string(d.Status), d.RequestID, strconv.FormatUint(d.RandomValue, 10), d.Winner, d.WinnerIndex,
		d.TotalTickets, d.PotCents, d.RefundableCents, d.CreatedAt, requestedAt)
	return err
}

// AppendTickets grava a faixa vendida e incrementa o contador do comprador na
// mesma transação.
func (p *Postgres) AppendTickets(ctx context.Context, drawID, buyer string, firstIndex int64, count int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO lottery_tickets(draw_id, first_index, ticket_count, buyer)
		VALUES ($1,$2,$3,$4)`,
		drawID, firstIndex, count, buyer); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO lottery_holdings(draw_id, holder, ticket_count, refund_claimed)
		VALUES ($1,$2,$3,false)
		ON CONFLICT (draw_id, holder) DO UPDATE
		SET ticket_count = lottery_holdings.ticket_count + $3`,
		drawID, buyer, count); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) BuyerAtIndex(ctx context.Context, drawID string, index int64) (string, error) {
	var buyer string
	err := p.db.QueryRowContext(ctx, `
		SELECT buyer FROM lottery_tickets
		WHERE draw_id=$1 AND first_index <= $2 AND $2 < first_index + ticket_count`,
		drawID, index).Scan(&buyer)
	if err != nil {
		return "", err
	}
	return buyer, nil
}

func (p *Postgres) HolderTickets(ctx context.Context, drawID, holder string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT ticket_count FROM lottery_holdings WHERE draw_id=$1 AND holder=$2`,
		drawID, holder).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Postgres) RefundClaimed(ctx context.Context, drawID, holder string) (bool, error) {
	var claimed bool
	err := p.db.QueryRowContext(ctx,
		`SELECT refund_claimed FROM lottery_holdings WHERE draw_id=$1 AND holder=$2`,
		drawID, holder).Scan(&claimed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (p *Postgres) MarkRefundClaimed(ctx context.Context, drawID, holder string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE lottery_holdings SET refund_claimed=true WHERE draw_id=$1 AND holder=$2`,
		drawID, holder)
	return err
}

func (p *Postgres) ClearRefundClaim(ctx context.Context, drawID, holder string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE lottery_holdings SET refund_claimed=false WHERE draw_id=$1 AND holder=$2`,
		drawID, holder)
	return err
}

func (p *Postgres) GetRolloverPot(ctx context.Context, asset string) (int64, error) {
	var cents int64
	err := p.db.QueryRowContext(ctx,
		`SELECT pot_cents FROM rollover_pots WHERE asset=$1`, asset).Scan(&cents)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cents, nil
}

func (p *Postgres) SetRolloverPot(ctx context.Context, asset string, cents int64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rollover_pots(asset, pot_cents) VALUES ($1,$2)
		ON CONFLICT (asset) DO UPDATE SET pot_cents=$2`,
		asset, cents)
	return err
}
