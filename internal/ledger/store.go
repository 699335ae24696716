package ledger

import "context"

// Store persiste contas, limites e o journal. A conta de um ativo nunca
// consultado é devolvida zerada. SaveAccountWithEntry grava saldo novo e
// entrada de journal atomicamente.
type Store interface {
	GetAccount(ctx context.Context, asset string) (Account, error)
	SaveAccountWithEntry(ctx context.Context, acc Account, entry Entry) error
	GetLimits(ctx context.Context, asset string) (Limits, bool, error)
	SetLimits(ctx context.Context, l Limits) error
}
