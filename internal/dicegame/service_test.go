package dicegame_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/admin"
	"github.com/radieske/vrf-casino-platform-poc/internal/dicegame"
	dicerepo "github.com/radieske/vrf-casino-platform-poc/internal/dicegame/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/ledger"
	ledgerrepo "github.com/radieske/vrf-casino-platform-poc/internal/ledger/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/clock"
)

const (
	asset      = "NATIVE"
	player     = "alice"
	salt       = "s3gr3do"
	instanceID = "casino-1"
)

// fakeRequester devolve ids sequenciais; pode falhar para exercitar o rollback.
type fakeRequester struct {
	n    int
	fail bool
}

func (f *fakeRequester) RequestRandom(_ context.Context, roundID string, wordCount int) (string, error) {
	if f.fail {
		return "", errors.New("oracle offline")
	}
	f.n++
	return fmt.Sprintf("req-%d", f.n), nil
}

// flakyStore injeta falha de persistência para exercitar a compensação.
type flakyStore struct {
	*dicerepo.Memory
	failSave bool
}

func (f *flakyStore) SaveBet(ctx context.Context, b dicegame.Bet) error {
	if f.failSave {
		return errors.New("storage offline")
	}
	return f.Memory.SaveBet(ctx, b)
}

type game struct {
	svc    *dicegame.Service
	ledger *ledger.Service
	store  *flakyStore
	rnd    *fakeRequester
	clk    *clock.Manual
}

func newGame(t *testing.T) *game {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	adm := admin.NewRegistry("admin")

	led := ledger.New(zap.NewNop(), ledgerrepo.NewMemory(), clk, adm, nil)
	require.NoError(t, led.SetAuthorizedCaller(ctx, "admin", dicegame.RequesterID, true))
	// liquidez da casa para cobrir o passivo das apostas
	require.NoError(t, led.Fund(ctx, "house", asset, 10_000, "house"))

	rnd := &fakeRequester{}
	store := &flakyStore{Memory: dicerepo.NewMemory()}
	svc := dicegame.New(zap.NewNop(), store, led, rnd, clk, nil, dicegame.Params{
		HouseEdgeBps:      100,
		RevealWindow:      10 * time.Minute,
		MaxWaitForFulfill: 30 * time.Minute,
		InstanceID:        instanceID,
	})
	return &game{svc: svc, ledger: led, store: store, rnd: rnd, clk: clk}
}

func commit(t *testing.T, g *game, stake int64, threshold int) dicegame.Bet {
	t.Helper()
	c := dicegame.Commitment(player, asset, stake, threshold, salt)
	bet, err := g.svc.Commit(context.Background(), player, asset, stake, threshold, c)
	require.NoError(t, err)
	return bet
}

func TestCommitCollectsStakeAndReservesLiability(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)

	assert.Equal(t, dicegame.StateRandomRequested, bet.State)
	assert.Equal(t, "req-1", bet.RequestID)
	assert.Equal(t, int64(198), bet.MaxPayoutCents)

	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10_100), acc.TotalCents)
	assert.Equal(t, int64(198), acc.ReservedCents)
}

func TestCommitReservesAtLeastTheStake(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	// threshold 99 paga igual ao stake; o passivo reservado não fica abaixo
	// do valor reembolsável num cancelamento
	bet := commit(t, g, 100, 99)
	assert.Equal(t, int64(100), bet.MaxPayoutCents)

	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(100), acc.ReservedCents)
}

func TestCommitRollsBackWhenRandomnessRequestFails(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()
	g.rnd.fail = true

	c := dicegame.Commitment(player, asset, 100, 50, salt)
	_, err := g.svc.Commit(ctx, player, asset, 100, 50, c)
	require.Error(t, err)

	// coleta e reserva desfeitas
	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), acc.TotalCents)
	assert.Equal(t, int64(0), acc.ReservedCents)
}

func TestCommitRejectsMalformedCommitment(t *testing.T) {
	g := newGame(t)

	_, err := g.svc.Commit(context.Background(), player, asset, 100, 50, "not-hex")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRevealSettlesDeterministically(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)
	require.NoError(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42))

	g.clk.Advance(time.Minute)
	settled, err := g.svc.Reveal(ctx, player, bet.ID, 100, 50, salt)
	require.NoError(t, err)

	wantRoll := dicegame.Roll(dicegame.FinalRandom(42, player, salt, instanceID, bet.ID))
	assert.Equal(t, dicegame.StateSettled, settled.State)
	assert.Equal(t, wantRoll, settled.Roll)
	assert.Equal(t, wantRoll <= 50, settled.Won)

	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.ReservedCents)
	if settled.Won {
		assert.Equal(t, int64(198), settled.PayoutCents)
		assert.Equal(t, int64(10_100-198), acc.TotalCents)
	} else {
		assert.Equal(t, int64(0), settled.PayoutCents)
		assert.Equal(t, int64(10_100), acc.TotalCents)
	}
}

func TestRevealRejectsWrongSaltWithoutMovingFunds(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)
	require.NoError(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42))

	_, err := g.svc.Reveal(ctx, player, bet.ID, 100, 50, "errado")
	assert.ErrorIs(t, err, apperr.ErrCommitMismatch)

	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(198), acc.ReservedCents)

	got, err := g.svc.Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, dicegame.StateRandomFulfilled, got.State)
}

func TestRevealRejectsParametersDivergingFromCommittedBet(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	// commitment amarrado a um stake muito maior do que o coletado: a reserva
	// cobre 100, mas o hash abriria caminho para um payout de 9000
	c := dicegame.Commitment(player, asset, 9_000, 99, salt)
	bet, err := g.svc.Commit(ctx, player, asset, 100, 99, c)
	require.NoError(t, err)
	require.NoError(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42))

	_, err = g.svc.Reveal(ctx, player, bet.ID, 9_000, 99, salt)
	assert.ErrorIs(t, err, apperr.ErrCommitMismatch)

	// threshold divergente também não passa
	_, err = g.svc.Reveal(ctx, player, bet.ID, 100, 50, salt)
	assert.ErrorIs(t, err, apperr.ErrCommitMismatch)

	// nenhum fundo se moveu; o passivo reservado segue o do commit
	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10_100), acc.TotalCents)
	assert.Equal(t, int64(100), acc.ReservedCents)

	got, err := g.svc.Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, dicegame.StateRandomFulfilled, got.State)
}

func TestRevealDoesNotPayWhenPersistFails(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)
	require.NoError(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42))

	g.store.failSave = true
	_, err := g.svc.Reveal(ctx, player, bet.ID, 100, 50, salt)
	require.Error(t, err)

	// nada pago, reserva de pé, aposta segue aberta para um novo reveal
	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10_100), acc.TotalCents)
	assert.Equal(t, int64(198), acc.ReservedCents)

	g.store.failSave = false
	settled, err := g.svc.Reveal(ctx, player, bet.ID, 100, 50, salt)
	require.NoError(t, err)
	assert.Equal(t, dicegame.StateSettled, settled.State)

	// encerrada, não liquida duas vezes
	_, err = g.svc.Reveal(ctx, player, bet.ID, 100, 50, salt)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCancelDoesNotRefundWhenPersistFails(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)
	g.clk.Advance(31 * time.Minute)

	g.store.failSave = true
	_, err := g.svc.CancelIfUnfulfilled(ctx, bet.ID)
	require.Error(t, err)

	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10_100), acc.TotalCents)
	assert.Equal(t, int64(198), acc.ReservedCents)

	g.store.failSave = false
	cancelled, err := g.svc.CancelIfUnfulfilled(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, dicegame.StateCancelled, cancelled.State)

	acc, err = g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), acc.TotalCents)
	assert.Equal(t, int64(0), acc.ReservedCents)
}

func TestRevealOnlyByCommittingPlayer(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)
	require.NoError(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42))

	_, err := g.svc.Reveal(ctx, "mallory", bet.ID, 100, 50, salt)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRevealAndSlashAreMutuallyExclusive(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)
	require.NoError(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42))

	// antes do prazo, slash não vale
	_, err := g.svc.SlashExpired(ctx, bet.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	g.clk.Advance(11 * time.Minute)

	// depois do prazo, reveal não vale mais
	_, err = g.svc.Reveal(ctx, player, bet.ID, 100, 50, salt)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	slashed, err := g.svc.SlashExpired(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, dicegame.StateSlashed, slashed.State)

	// stake fica com a casa, reserva liberada
	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10_100), acc.TotalCents)
	assert.Equal(t, int64(0), acc.ReservedCents)

	// transições sobre aposta encerrada falham fechado
	_, err = g.svc.SlashExpired(ctx, bet.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = g.svc.Reveal(ctx, player, bet.ID, 100, 50, salt)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCancelIfUnfulfilledRefundsStake(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)

	// espera máxima ainda não venceu
	_, err := g.svc.CancelIfUnfulfilled(ctx, bet.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	g.clk.Advance(31 * time.Minute)

	cancelled, err := g.svc.CancelIfUnfulfilled(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, dicegame.StateCancelled, cancelled.State)

	acc, err := g.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), acc.TotalCents)
	assert.Equal(t, int64(0), acc.ReservedCents)

	// fulfillment atrasado não ressuscita aposta cancelada
	err = g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestOnRandomnessGuards(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	bet := commit(t, g, 100, 50)

	assert.ErrorIs(t, g.svc.OnRandomness(ctx, "nope", bet.RequestID, 42), apperr.ErrUnknownRequest)
	assert.ErrorIs(t, g.svc.OnRandomness(ctx, bet.ID, "req-errado", 42), apperr.ErrIdentityMismatch)

	require.NoError(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42))

	// reentrega do mesmo resultado é aceita sem efeito
	require.NoError(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 42))

	// valor divergente não sobrescreve
	assert.ErrorIs(t, g.svc.OnRandomness(ctx, bet.ID, bet.RequestID, 43), apperr.ErrInvalidState)

	got, err := g.svc.Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.RandomValue)
}

func TestCommitEnforcesStakeLimits(t *testing.T) {
	g := newGame(t)
	ctx := context.Background()

	require.NoError(t, g.ledger.SetAssetLimits(ctx, "admin", ledger.Limits{
		Asset: asset, MinStakeCents: 50, MaxStakeCents: 500,
	}))

	c := dicegame.Commitment(player, asset, 10, 50, salt)
	_, err := g.svc.Commit(ctx, player, asset, 10, 50, c)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	c = dicegame.Commitment(player, asset, 1_000, 50, salt)
	_, err = g.svc.Commit(ctx, player, asset, 1_000, 50, c)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
