package lottery_test

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
	"github.com/radieske/vrf-casino-platform-poc/internal/ledger"
	ledgerrepo "github.com/radieske/vrf-casino-platform-poc/internal/ledger/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/lottery"
	lotteryrepo "github.com/radieske/vrf-casino-platform-poc/internal/lottery/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/clock"
)

const asset = "NATIVE"

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
	*lotteryrepo.Memory
	failSave bool
}

func (f *flakyStore) SaveDraw(ctx context.Context, d lottery.Draw) error {
	if f.failSave {
		return errors.New("storage offline")
	}
	return f.Memory.SaveDraw(ctx, d)
}

type fixture struct {
	svc    *lottery.Service
	ledger *ledger.Service
	store  *flakyStore
	rnd    *fakeRequester
	clk    *clock.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	adm := admin.NewRegistry("admin")

	led := ledger.New(zap.NewNop(), ledgerrepo.NewMemory(), clk, adm, nil)
	require.NoError(t, led.SetAuthorizedCaller(ctx, "admin", lottery.RequesterID, true))

	store := &flakyStore{Memory: lotteryrepo.NewMemory()}
	rnd := &fakeRequester{}
	svc := lottery.New(zap.NewNop(), store, led, rnd, clk, adm, nil, lottery.Params{
		MaxTicketsPerBuy:  100,
		MaxTicketsPerDraw: 100_000,
		MaxWaitForFulfill: 30 * time.Minute,
	})
	return &fixture{svc: svc, ledger: led, store: store, rnd: rnd, clk: clk}
}

// createDraw abre um sorteio com janela de venda de uma hora a partir de agora.
func createDraw(t *testing.T, f *fixture, price, edgeBps int64) lottery.Draw {
	t.Helper()
	now := f.clk.Now()
	d, err := f.svc.Create(context.Background(), "admin", asset, price, edgeBps, now, now.Add(time.Hour))
	require.NoError(t, err)
	return d
}

func TestCreateValidatesInputAndCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clk.Now()

	_, err := f.svc.Create(ctx, "rogue", asset, 10, 500, now, now.Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Create(ctx, "admin", asset, 0, 500, now, now.Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.Create(ctx, "admin", asset, 10, 10_000, now, now.Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.Create(ctx, "admin", asset, 10, 500, now.Add(time.Hour), now)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.Create(ctx, "admin", asset, 10, 500, now.Add(-2*time.Hour), now.Add(-time.Hour))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestBuyTicketsCollectsAndReserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := createDraw(t, f, 10, 500)

	got, err := f.svc.BuyTickets(ctx, "alice", d.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalTickets)
	assert.Equal(t, int64(30), got.PotCents)

	got, err = f.svc.BuyTickets(ctx, "bob", got.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.TotalTickets)
	assert.Equal(t, int64(70), got.PotCents)

	acc, err := f.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(70), acc.TotalCents)
	assert.Equal(t, int64(70), acc.ReservedCents)
}

func TestBuyTicketsWindowAndCaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := createDraw(t, f, 10, 500)

	_, err := f.svc.BuyTickets(ctx, "alice", d.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.svc.BuyTickets(ctx, "alice", d.ID, 101)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	f.clk.Advance(2 * time.Hour)
	_, err = f.svc.BuyTickets(ctx, "alice", d.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestStartDrawWithZeroTicketsRollsOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// pot de rollover pendente do ativo (fundos já reservados na custódia)
	require.NoError(t, f.store.SetRolloverPot(ctx, asset, 50))

	// sorteio herda o rollover como pot inicial e zera o acumulado
	first := createDraw(t, f, 10, 500)
	assert.Equal(t, int64(50), first.PotCents)
	carried, err := f.store.GetRolloverPot(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(0), carried)

	// sem venda: pot volta ao rollover, sem pedido de randomness
	f.clk.Advance(2 * time.Hour)
	rolled, err := f.svc.StartDraw(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, lottery.StatusRolledOver, rolled.Status)
	assert.Equal(t, 0, f.rnd.n)

	// próximo sorteio do ativo herda o pot de novo
	second := createDraw(t, f, 10, 500)
	assert.Equal(t, int64(50), second.PotCents)
}

func TestFinalizeSelectsWinnerByModulo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := createDraw(t, f, 10, 500)

	// bilhetes 0..2 da alice, 3..5 do bob, 6 da carol
	_, err := f.svc.BuyTickets(ctx, "alice", d.ID, 3)
	require.NoError(t, err)
	_, err = f.svc.BuyTickets(ctx, "bob", d.ID, 3)
	require.NoError(t, err)
	got, err := f.svc.BuyTickets(ctx, "carol", d.ID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.TotalTickets)

	f.clk.Advance(2 * time.Hour)
	started, err := f.svc.StartDraw(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, lottery.StatusRandomRequested, started.Status)

	require.NoError(t, f.svc.OnRandomness(ctx, d.ID, started.RequestID, 23))

	final, err := f.svc.Finalize(ctx, d.ID)
	require.NoError(t, err)
	// 23 mod 7 = 2, bilhete 2 pertence à alice
	assert.Equal(t, int64(2), final.WinnerIndex)
	assert.Equal(t, "alice", final.Winner)
	assert.Equal(t, lottery.StatusFinalized, final.Status)

	// pot 70, edge 5%: casa fica com 3, vencedor leva 67
	acc, err := f.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(3), acc.TotalCents)
	assert.Equal(t, int64(0), acc.ReservedCents)

	// refinalizar falha fechado
	_, err = f.svc.Finalize(ctx, d.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestFinalizeDoesNotPayWhenPersistFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := createDraw(t, f, 10, 500)

	_, err := f.svc.BuyTickets(ctx, "alice", d.ID, 7)
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)
	started, err := f.svc.StartDraw(ctx, d.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.OnRandomness(ctx, d.ID, started.RequestID, 23))

	f.store.failSave = true
	_, err = f.svc.Finalize(ctx, d.ID)
	require.Error(t, err)

	// ninguém foi pago e a casa não tomou nada; o sorteio segue finalizável
	acc, err := f.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(70), acc.TotalCents)
	assert.Equal(t, int64(70), acc.ReservedCents)

	f.store.failSave = false
	final, err := f.svc.Finalize(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, lottery.StatusFinalized, final.Status)

	// finalizado uma única vez
	_, err = f.svc.Finalize(ctx, d.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestOnRandomnessGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := createDraw(t, f, 10, 500)

	_, err := f.svc.BuyTickets(ctx, "alice", d.ID, 2)
	require.NoError(t, err)
	f.clk.Advance(2 * time.Hour)
	started, err := f.svc.StartDraw(ctx, d.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.OnRandomness(ctx, "nope", started.RequestID, 9), apperr.ErrUnknownRequest)
	assert.ErrorIs(t, f.svc.OnRandomness(ctx, d.ID, "req-errado", 9), apperr.ErrIdentityMismatch)

	require.NoError(t, f.svc.OnRandomness(ctx, d.ID, started.RequestID, 9))
	// reentrega do mesmo resultado é aceita sem efeito
	require.NoError(t, f.svc.OnRandomness(ctx, d.ID, started.RequestID, 9))
	// valor divergente não sobrescreve
	assert.ErrorIs(t, f.svc.OnRandomness(ctx, d.ID, started.RequestID, 10), apperr.ErrInvalidState)
}

func TestTimeoutRefundOncePerHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := createDraw(t, f, 10, 500)

	_, err := f.svc.BuyTickets(ctx, "alice", d.ID, 3)
	require.NoError(t, err)
	_, err = f.svc.BuyTickets(ctx, "bob", d.ID, 2)
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)
	started, err := f.svc.StartDraw(ctx, d.ID)
	require.NoError(t, err)

	// antes do prazo o timeout não vale
	_, err = f.svc.Timeout(ctx, started.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	f.clk.Advance(31 * time.Minute)
	timed, err := f.svc.Timeout(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), timed.RefundableCents)

	// fulfillment atrasado não ressuscita o sorteio
	assert.ErrorIs(t, f.svc.OnRandomness(ctx, d.ID, started.RequestID, 9), apperr.ErrInvalidState)

	// alice resgata exatamente 30, uma única vez
	amount, err := f.svc.ClaimRefund(ctx, "alice", d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), amount)

	_, err = f.svc.ClaimRefund(ctx, "alice", d.ID)
	assert.ErrorIs(t, err, apperr.ErrRefundAlreadyClaimed)

	// quem não tem bilhete não resgata
	_, err = f.svc.ClaimRefund(ctx, "mallory", d.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	amount, err = f.svc.ClaimRefund(ctx, "bob", d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), amount)

	acc, err := f.ledger.Balances(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.TotalCents)
	assert.Equal(t, int64(0), acc.ReservedCents)
}

func TestTimeoutCarriesInheritedPotToRollover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// sorteio que herdou pot 50 e vendeu 2 bilhetes: pot 70, mas só o que
	// foi pago nesta rodada é reembolsável
	require.NoError(t, f.store.SetRolloverPot(ctx, asset, 50))
	d := createDraw(t, f, 10, 0)
	_, err := f.svc.BuyTickets(ctx, "alice", d.ID, 2)
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)
	_, err = f.svc.StartDraw(ctx, d.ID)
	require.NoError(t, err)
	f.clk.Advance(31 * time.Minute)

	timed, err := f.svc.Timeout(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), timed.RefundableCents)

	// os 50 herdados voltam ao rollover do ativo
	carried, err := f.store.GetRolloverPot(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(50), carried)
}

func TestStartDrawRollsBackNothingWhenOracleFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := createDraw(t, f, 10, 500)

	_, err := f.svc.BuyTickets(ctx, "alice", d.ID, 2)
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)
	f.rnd.fail = true
	_, err = f.svc.StartDraw(ctx, d.ID)
	require.Error(t, err)

	// sorteio segue Open; um retry com o oráculo de volta funciona
	f.rnd.fail = false
	started, err := f.svc.StartDraw(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, lottery.StatusRandomRequested, started.Status)
}
