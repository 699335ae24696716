package dicegame

import "context"

// Store persiste as apostas.
type Store interface {
	GetBet(ctx context.Context, betID string) (Bet, bool, error)
	SaveBet(ctx context.Context, b Bet) error
}
