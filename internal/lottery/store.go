package lottery

import "context"

// Store persiste sorteios, bilhetes e o pot de rollover por ativo.
type Store interface {
	GetDraw(ctx context.Context, drawID string) (Draw, bool, error)
	SaveDraw(ctx context.Context, d Draw) error

	// AppendTickets registra count bilhetes sequenciais a partir de firstIndex
	// para o comprador.
	AppendTickets(ctx context.Context, drawID, buyer string, firstIndex int64, count int) error
	BuyerAtIndex(ctx context.Context, drawID string, index int64) (string, error)
	HolderTickets(ctx context.Context, drawID, holder string) (int, error)

	RefundClaimed(ctx context.Context, drawID, holder string) (bool, error)
	MarkRefundClaimed(ctx context.Context, drawID, holder string) error
	ClearRefundClaim(ctx context.Context, drawID, holder string) error

	GetRolloverPot(ctx context.Context, asset string) (int64, error)
	SetRolloverPot(ctx context.Context, asset string, cents int64) error
}
