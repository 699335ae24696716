package repo

import (
	"context"
	"database/sql"

	"github.com/radieske/vrf-casino-platform-poc/internal/ledger"
)

// Postgres implementa a persistência de custódia em banco.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// GetAccount retorna a posição do ativo; conta zerada se nunca vista.
func (p *Postgres) GetAccount(ctx context.Context, asset string) (ledger.Account, error) {
	acc := ledger.Account{Asset: asset}
	err := p.db.QueryRowContext(ctx,
		`SELECT total_cents, reserved_cents FROM ledger_accounts WHERE asset=$1`,
		asset).Scan(&acc.TotalCents, &acc.ReservedCents)
	if err == sql.ErrNoRows {
		return acc, nil
	}
	if err != nil {
		return ledger.Account{}, err
	}
	return acc, nil
}

// SaveAccountWithEntry grava saldo e journal na mesma transação.
func (p *Postgres) SaveAccountWithEntry(ctx context.Context, acc ledger.Account, e ledger.Entry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_accounts(asset, total_cents, reserved_cents)
		VALUES ($1,$2,$3)
		ON CONFLICT (asset) DO UPDATE SET total_cents=$2, reserved_cents=$3`,
		acc.Asset, acc.TotalCents, acc.ReservedCents); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries(id, operation, asset, amount_cents, counterparty, caller,
			total_before, total_after, reserved_before, reserved_after, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.Operation, e.Asset, e.AmountCents, e.Counterparty, e.Caller,
		e.TotalBefore, e.TotalAfter, e.ReservedBefore, e.ReservedAfter, e.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// GetLimits retorna a faixa de stake do ativo, se configurada.
func (p *Postgres) GetLimits(ctx context.Context, asset string) (ledger.Limits, bool, error) {
	l := ledger.Limits{Asset: asset}
	err := p.db.QueryRowContext(ctx,
		`SELECT min_stake_cents, max_stake_cents FROM ledger_limits WHERE asset=$1`,
		asset).Scan(&l.MinStakeCents, &l.MaxStakeCents)
	if err == sql.ErrNoRows {
		return ledger.Limits{}, false, nil
	}
	if err != nil {
		return ledger.Limits{}, false, err
	}
	return l, true, nil
}

// SetLimits grava/atualiza a faixa de stake do ativo.
func (p *Postgres) SetLimits(ctx context.Context, l ledger.Limits) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO ledger_limits(asset, min_stake_cents, max_stake_cents)
		VALUES ($1,$2,$3)
		ON CONFLICT (asset) DO UPDATE SET min_stake_cents=$2, max_stake_cents=$3`,
		l.Asset, l.MinStakeCents, l.MaxStakeCents)
	return err
}
