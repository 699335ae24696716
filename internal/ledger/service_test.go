package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/admin"
	"github.com/radieske/vrf-casino-platform-poc/internal/ledger"
	"github.com/radieske/vrf-casino-platform-poc/internal/ledger/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/clock"
)

func newLedger(t *testing.T) (*ledger.Service, *repo.Memory) {
	t.Helper()
	store := repo.NewMemory()
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := ledger.New(zap.NewNop(), store, clk, admin.NewRegistry("admin"), nil)
	require.NoError(t, svc.SetAuthorizedCaller(context.Background(), "admin", "dice-service", true))
	return svc, store
}

func TestReservedNeverExceedsTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)

	require.NoError(t, svc.Fund(ctx, "anyone", "ETH", 1000, "treasury"))

	// reserva dentro da liquidez passa
	require.NoError(t, svc.IncreaseReserved(ctx, "dice-service", "ETH", 600))
	// reserva além da liquidez é rejeitada
	err := svc.IncreaseReserved(ctx, "dice-service", "ETH", 500)
	assert.ErrorIs(t, err, apperr.ErrInsufficientLiquidity)

	acc, err := svc.Balances(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acc.TotalCents)
	assert.Equal(t, int64(600), acc.ReservedCents)
	assert.LessOrEqual(t, acc.ReservedCents, acc.TotalCents)
}

func TestReservationUnderflowRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)

	require.NoError(t, svc.Fund(ctx, "anyone", "ETH", 1000, "treasury"))
	require.NoError(t, svc.IncreaseReserved(ctx, "dice-service", "ETH", 100))

	assert.ErrorIs(t, svc.DecreaseReserved(ctx, "dice-service", "ETH", 200), apperr.ErrReservationUnderflow)
	assert.ErrorIs(t, svc.Payout(ctx, "dice-service", "ETH", "player-1", 200), apperr.ErrReservationUnderflow)
}

func TestPayoutReducesReservationAndTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)

	require.NoError(t, svc.Fund(ctx, "anyone", "ETH", 1000, "treasury"))
	require.NoError(t, svc.IncreaseReserved(ctx, "dice-service", "ETH", 400))
	require.NoError(t, svc.Payout(ctx, "dice-service", "ETH", "player-1", 300))

	acc, err := svc.Balances(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(700), acc.TotalCents)
	assert.Equal(t, int64(100), acc.ReservedCents)
}

func TestWithdrawCannotInvadeReservation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)

	require.NoError(t, svc.Fund(ctx, "anyone", "ETH", 1000, "treasury"))
	require.NoError(t, svc.IncreaseReserved(ctx, "dice-service", "ETH", 900))

	assert.ErrorIs(t, svc.Withdraw(ctx, "admin", "ETH", 200, "treasury"), apperr.ErrInsufficientLiquidity)
	require.NoError(t, svc.Withdraw(ctx, "admin", "ETH", 100, "treasury"))

	// só o administrador saca
	assert.ErrorIs(t, svc.Withdraw(ctx, "intruder", "ETH", 1, "x"), apperr.ErrUnauthorized)
}

func TestUnauthorizedCallersRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)

	require.NoError(t, svc.Fund(ctx, "anyone", "ETH", 1000, "treasury"))

	assert.ErrorIs(t, svc.IncreaseReserved(ctx, "rogue", "ETH", 10), apperr.ErrUnauthorized)
	assert.ErrorIs(t, svc.Collect(ctx, "rogue", "ETH", "p", 10), apperr.ErrUnauthorized)
	assert.ErrorIs(t, svc.Payout(ctx, "rogue", "ETH", "p", 10), apperr.ErrUnauthorized)

	// allow-list é administrável; remoção revoga
	require.NoError(t, svc.SetAuthorizedCaller(ctx, "admin", "dice-service", false))
	assert.ErrorIs(t, svc.IncreaseReserved(ctx, "dice-service", "ETH", 10), apperr.ErrUnauthorized)
}

func TestJournalCarriesBeforeAfterTotals(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedger(t)

	require.NoError(t, svc.Fund(ctx, "anyone", "ETH", 1000, "treasury"))
	require.NoError(t, svc.IncreaseReserved(ctx, "dice-service", "ETH", 250))

	entries := store.Entries()
	require.Len(t, entries, 2)

	inc := entries[1]
	assert.Equal(t, ledger.OpReserveInc, inc.Operation)
	assert.Equal(t, int64(0), inc.ReservedBefore)
	assert.Equal(t, int64(250), inc.ReservedAfter)
	assert.Equal(t, int64(1000), inc.TotalBefore)
	assert.Equal(t, int64(1000), inc.TotalAfter)
}

func TestInvalidInputRejectedWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedger(t)

	assert.ErrorIs(t, svc.Fund(ctx, "anyone", "", 10, "x"), apperr.ErrInvalidInput)
	assert.ErrorIs(t, svc.Fund(ctx, "anyone", "ETH", 0, "x"), apperr.ErrInvalidInput)
	assert.ErrorIs(t, svc.Fund(ctx, "anyone", "ETH", -5, "x"), apperr.ErrInvalidInput)

	assert.Empty(t, store.Entries())
}

func TestStakeLimits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)

	// sem limites configurados, qualquer stake positivo vale
	require.NoError(t, svc.CheckStakeWithinLimits(ctx, "ETH", 5))

	require.NoError(t, svc.SetAssetLimits(ctx, "admin", ledger.Limits{Asset: "ETH", MinStakeCents: 100, MaxStakeCents: 10_000}))
	assert.ErrorIs(t, svc.CheckStakeWithinLimits(ctx, "ETH", 50), apperr.ErrInvalidInput)
	assert.ErrorIs(t, svc.CheckStakeWithinLimits(ctx, "ETH", 20_000), apperr.ErrInvalidInput)
	assert.NoError(t, svc.CheckStakeWithinLimits(ctx, "ETH", 100))

	// faixa inválida é rejeitada
	assert.ErrorIs(t, svc.SetAssetLimits(ctx, "admin", ledger.Limits{Asset: "ETH", MinStakeCents: 10, MaxStakeCents: 5}), apperr.ErrInvalidInput)
	assert.ErrorIs(t, svc.SetAssetLimits(ctx, "intruder", ledger.Limits{Asset: "ETH", MinStakeCents: 1, MaxStakeCents: 2}), apperr.ErrUnauthorized)
}

func TestReturnCannotLeaveReservedAboveTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)

	require.NoError(t, svc.Collect(ctx, "dice-service", "ETH", "player-1", 500))
	require.NoError(t, svc.IncreaseReserved(ctx, "dice-service", "ETH", 400))

	assert.ErrorIs(t, svc.Return(ctx, "dice-service", "ETH", "player-1", 200), apperr.ErrInsufficientLiquidity)
	require.NoError(t, svc.Return(ctx, "dice-service", "ETH", "player-1", 100))
}
