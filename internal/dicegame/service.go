package dicegame

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/clock"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/uow"
	"github.com/radieske/vrf-casino-platform-poc/pkg/contracts/events"
)

// Ledger é a fronteira de custódia usada pelo round.
type Ledger interface {
	Collect(ctx context.Context, caller, asset, from string, amount int64) error
	Return(ctx context.Context, caller, asset, to string, amount int64) error
	IncreaseReserved(ctx context.Context, caller, asset string, amount int64) error
	DecreaseReserved(ctx context.Context, caller, asset string, amount int64) error
	Payout(ctx context.Context, caller, asset, to string, amount int64) error
	CheckStakeWithinLimits(ctx context.Context, asset string, amount int64) error
}

// RandomRequester pede randomness ao router em nome deste round.
type RandomRequester interface {
	RequestRandom(ctx context.Context, roundID string, wordCount int) (string, error)
}

// EventPublisher publica o ciclo de vida das apostas (best-effort).
type EventPublisher interface {
	PublishBetCommitted(ctx context.Context, e events.BetCommitted) error
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
	PublishBetSlashed(ctx context.Context, e events.BetSlashed) error
	PublishBetCancelled(ctx context.Context, e events.BetCancelled) error
}

// Params são os parâmetros fixos do jogo.
type Params struct {
	HouseEdgeBps      int64
	RevealWindow      time.Duration
	MaxWaitForFulfill time.Duration
	InstanceID        string // entra na derivação do random final
}

// Service é a máquina de estados por aposta. Transições serializadas pelo
// mutex; toda entrada checa o estado gravado primeiro e falha fechado se um
// chamador concorrente já avançou a aposta.
type Service struct {
	log    *zap.Logger
	store  Store
	ledger Ledger
	rnd    RandomRequester
	clock  clock.Clock
	publ   EventPublisher
	params Params

	mu sync.Mutex
}

func New(log *zap.Logger, store Store, l Ledger, rnd RandomRequester, clk clock.Clock,
	publ EventPublisher, params Params) *Service {
	return &Service{
		log:    log,
		store:  store,
		ledger: l,
		rnd:    rnd,
		clock:  clk,
		publ:   publ,
		params: params,
	}
}

// Commit abre a aposta: valida, coleta o stake, reserva o passivo máximo,
// grava o commitment e já dispara o pedido de randomness. Qualquer perna que
// falhe desfaz as anteriores.
func (s *Service) Commit(ctx context.Context, player, asset string, stakeCents int64, winThreshold int, commitment string) (Bet, error) {
	if player == "" {
		return Bet{}, fmt.Errorf("%w: player must not be empty", apperr.ErrInvalidInput)
	}
	if asset == "" {
		return Bet{}, fmt.Errorf("%w: asset must not be empty", apperr.ErrInvalidInput)
	}
	if _, err := hex.DecodeString(commitment); err != nil || len(commitment) != 64 {
		return Bet{}, fmt.Errorf("%w: commitment must be a sha256 hex digest", apperr.ErrInvalidInput)
	}

	preview, err := PreviewPayout(stakeCents, winThreshold, s.params.HouseEdgeBps)
	if err != nil {
		return Bet{}, err
	}
	maxPayout := preview
	if stakeCents > maxPayout {
		maxPayout = stakeCents
	}

	if err := s.ledger.CheckStakeWithinLimits(ctx, asset, stakeCents); err != nil {
		return Bet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	bet := Bet{
		ID:             uuid.NewString(),
		Player:         player,
		Asset:          asset,
		StakeCents:     stakeCents,
		MaxPayoutCents: maxPayout,
		WinThreshold:   winThreshold,
		Commitment:     commitment,
		State:          StateCommitted,
		CreatedAt:      now,
	}

	u := uow.New(s.log)

	if err := u.Step(ctx, "collect stake", func() error {
		return s.ledger.Collect(ctx, RequesterID, asset, player, stakeCents)
	}, func(ctx context.Context) error {
		return s.ledger.Return(ctx, RequesterID, asset, player, stakeCents)
	}); err != nil {
		return Bet{}, err
	}

	if err := u.Step(ctx, "reserve liability", func() error {
		return s.ledger.IncreaseReserved(ctx, RequesterID, asset, maxPayout)
	}, func(ctx context.Context) error {
		return s.ledger.DecreaseReserved(ctx, RequesterID, asset, maxPayout)
	}); err != nil {
		return Bet{}, err
	}

	if err := u.Step(ctx, "request randomness", func() error {
		requestID, rerr := s.rnd.RequestRandom(ctx, bet.ID, 1)
		if rerr != nil {
			return rerr
		}
		bet.RequestID = requestID
		bet.RequestedAt = s.clock.Now()
		bet.State = StateRandomRequested
		return nil
	}, nil); err != nil {
		return Bet{}, err
	}

	if err := u.Step(ctx, "persist bet", func() error {
		return s.store.SaveBet(ctx, bet)
	}, nil); err != nil {
		return Bet{}, err
	}

	s.log.Info("bet committed",
		zap.String("bet_id", bet.ID),
		zap.String("player", player),
		zap.String("asset", asset),
		zap.Int64("stake_cents", stakeCents),
		zap.Int64("max_payout_cents", maxPayout),
		zap.String("request_id", bet.RequestID),
	)
	if s.publ != nil {
		_ = s.publ.PublishBetCommitted(ctx, events.BetCommitted{
			BetID:          bet.ID,
			Player:         player,
			Asset:          asset,
			StakeCents:     stakeCents,
			MaxPayoutCents: maxPayout,
			WinThreshold:   winThreshold,
			RequestID:      bet.RequestID,
			CommitmentHex:  commitment,
			TsUnixMs:       now.UnixMilli(),
		})
	}
	return bet, nil
}

// OnRandomness é a entrada de notificação chamada pelo router (só ele é
// registrado como consumer). Idempotente: reentrega do mesmo resultado em
// RANDOM_FULFILLED é aceita sem efeito.
func (s *Service) OnRandomness(ctx context.Context, roundID, requestID string, randomValue uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, found, err := s.store.GetBet(ctx, roundID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: bet %s", apperr.ErrUnknownRequest, roundID)
	}
	if bet.RequestID != requestID {
		return fmt.Errorf("%w: bet %s expects request %s, got %s",
			apperr.ErrIdentityMismatch, roundID, bet.RequestID, requestID)
	}
	if bet.State == StateRandomFulfilled && bet.RandomValue == randomValue {
		return nil // reentrega do mesmo resultado
	}
	if bet.State != StateRandomRequested {
		// aposta cancelada/encerrada não ressuscita; o router guarda o
		// resultado por conta própria
		return fmt.Errorf("%w: bet %s is %s, fulfillment requires %s",
			apperr.ErrInvalidState, roundID, bet.State, StateRandomRequested)
	}

	bet.RandomValue = randomValue
	bet.RevealDeadline = s.clock.Now().Add(s.params.RevealWindow)
	bet.State = StateRandomFulfilled
	if err := s.store.SaveBet(ctx, bet); err != nil {
		return err
	}

	s.log.Info("bet randomness fulfilled",
		zap.String("bet_id", bet.ID),
		zap.Time("reveal_deadline", bet.RevealDeadline),
	)
	return nil
}

// Reveal fecha a aposta a favor ou contra o jogador. Só o próprio jogador,
// só em RANDOM_FULFILLED, só antes do prazo, e só com os parâmetros que
// reproduzem a aposta gravada e o commitment.
func (s *Service) Reveal(ctx context.Context, caller, betID string, stakeCents int64, winThreshold int, salt string) (Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, found, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return Bet{}, err
	}
	if !found {
		return Bet{}, fmt.Errorf("%w: bet %s", apperr.ErrUnknownRequest, betID)
	}
	if caller != bet.Player {
		return Bet{}, fmt.Errorf("%w: caller %q is not the committing player", apperr.ErrUnauthorized, caller)
	}
	if bet.State != StateRandomFulfilled {
		return Bet{}, fmt.Errorf("%w: bet %s is %s, reveal requires %s",
			apperr.ErrInvalidState, betID, bet.State, StateRandomFulfilled)
	}
	now := s.clock.Now()
	if !now.Before(bet.RevealDeadline) {
		return Bet{}, fmt.Errorf("%w: bet %s reveal deadline %s passed (now %s)",
			apperr.ErrInvalidState, betID, bet.RevealDeadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	// o payout sai sempre dos campos gravados no commit; parâmetros
	// divergentes não passam, mesmo que reproduzam o hash
	if stakeCents != bet.StakeCents || winThreshold != bet.WinThreshold {
		return Bet{}, fmt.Errorf("%w: revealed stake=%d threshold=%d differ from committed stake=%d threshold=%d",
			apperr.ErrCommitMismatch, stakeCents, winThreshold, bet.StakeCents, bet.WinThreshold)
	}
	if Commitment(caller, bet.Asset, bet.StakeCents, bet.WinThreshold, salt) != bet.Commitment {
		return Bet{}, fmt.Errorf("%w: supplied parameters do not reproduce the stored commitment", apperr.ErrCommitMismatch)
	}

	final := FinalRandom(bet.RandomValue, bet.Player, salt, s.params.InstanceID, bet.ID)
	roll := Roll(final)
	won := roll <= bet.WinThreshold

	var payout int64
	if won {
		payout, err = PreviewPayout(bet.StakeCents, bet.WinThreshold, s.params.HouseEdgeBps)
		if err != nil {
			return Bet{}, err
		}
	}

	prev := bet
	bet.State = StateSettled
	bet.Roll = roll
	bet.Won = won
	bet.PayoutCents = payout

	// o estado terminal persiste antes do pagamento; se o pagamento falhar,
	// o undo devolve a aposta ao estado anterior
	u := uow.New(s.log)
	if won {
		if release := bet.MaxPayoutCents - payout; release > 0 {
			if err := u.Step(ctx, "release excess reservation", func() error {
				return s.ledger.DecreaseReserved(ctx, RequesterID, bet.Asset, release)
			}, func(ctx context.Context) error {
				return s.ledger.IncreaseReserved(ctx, RequesterID, bet.Asset, release)
			}); err != nil {
				return Bet{}, err
			}
		}
		if err := u.Step(ctx, "persist settled bet", func() error {
			return s.store.SaveBet(ctx, bet)
		}, func(ctx context.Context) error {
			return s.store.SaveBet(ctx, prev)
		}); err != nil {
			return Bet{}, err
		}
		if err := u.Step(ctx, "pay winner", func() error {
			return s.ledger.Payout(ctx, RequesterID, bet.Asset, bet.Player, payout)
		}, nil); err != nil {
			return Bet{}, err
		}
	} else {
		if err := u.Step(ctx, "release reservation", func() error {
			return s.ledger.DecreaseReserved(ctx, RequesterID, bet.Asset, bet.MaxPayoutCents)
		}, func(ctx context.Context) error {
			return s.ledger.IncreaseReserved(ctx, RequesterID, bet.Asset, bet.MaxPayoutCents)
		}); err != nil {
			return Bet{}, err
		}
		if err := u.Step(ctx, "persist settled bet", func() error {
			return s.store.SaveBet(ctx, bet)
		}, nil); err != nil {
			return Bet{}, err
		}
	}

	s.log.Info("bet settled",
		zap.String("bet_id", bet.ID),
		zap.Int("roll", roll),
		zap.Bool("won", won),
		zap.Int64("payout_cents", payout),
	)
	if s.publ != nil {
		_ = s.publ.PublishBetSettled(ctx, events.BetSettled{
			BetID:       bet.ID,
			Player:      bet.Player,
			Asset:       bet.Asset,
			Roll:        roll,
			Won:         won,
			PayoutCents: payout,
			TsUnixMs:    now.UnixMilli(),
		})
	}
	return bet, nil
}

// SlashExpired confisca a aposta cujo prazo de reveal passou. Qualquer um
// pode chamar; mutuamente exclusivo com Reveal pelo guard de estado.
func (s *Service) SlashExpired(ctx context.Context, betID string) (Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, found, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return Bet{}, err
	}
	if !found {
		return Bet{}, fmt.Errorf("%w: bet %s", apperr.ErrUnknownRequest, betID)
	}
	if bet.State != StateRandomFulfilled {
		return Bet{}, fmt.Errorf("%w: bet %s is %s, slash requires %s",
			apperr.ErrInvalidState, betID, bet.State, StateRandomFulfilled)
	}
	now := s.clock.Now()
	if now.Before(bet.RevealDeadline) {
		return Bet{}, fmt.Errorf("%w: bet %s reveal deadline %s not reached (now %s)",
			apperr.ErrInvalidState, betID, bet.RevealDeadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	bet.State = StateSlashed

	// reserva inteira liberada como confisco; o stake fica com a casa
	u := uow.New(s.log)
	if err := u.Step(ctx, "release reservation", func() error {
		return s.ledger.DecreaseReserved(ctx, RequesterID, bet.Asset, bet.MaxPayoutCents)
	}, func(ctx context.Context) error {
		return s.ledger.IncreaseReserved(ctx, RequesterID, bet.Asset, bet.MaxPayoutCents)
	}); err != nil {
		return Bet{}, err
	}
	if err := u.Step(ctx, "persist slashed bet", func() error {
		return s.store.SaveBet(ctx, bet)
	}, nil); err != nil {
		return Bet{}, err
	}

	s.log.Info("bet slashed", zap.String("bet_id", bet.ID))
	if s.publ != nil {
		_ = s.publ.PublishBetSlashed(ctx, events.BetSlashed{
			BetID:    bet.ID,
			Player:   bet.Player,
			Asset:    bet.Asset,
			Forfeit:  bet.StakeCents,
			TsUnixMs: now.UnixMilli(),
		})
	}
	return bet, nil
}

// CancelIfUnfulfilled reembolsa a aposta cujo oráculo nunca respondeu.
// Qualquer um pode chamar após a espera máxima; nunca re-pede randomness.
func (s *Service) CancelIfUnfulfilled(ctx context.Context, betID string) (Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, found, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return Bet{}, err
	}
	if !found {
		return Bet{}, fmt.Errorf("%w: bet %s", apperr.ErrUnknownRequest, betID)
	}
	if bet.State != StateRandomRequested {
		return Bet{}, fmt.Errorf("%w: bet %s is %s, cancel requires %s",
			apperr.ErrInvalidState, betID, bet.State, StateRandomRequested)
	}
	now := s.clock.Now()
	waitDeadline := bet.RequestedAt.Add(s.params.MaxWaitForFulfill)
	if now.Before(waitDeadline) {
		return Bet{}, fmt.Errorf("%w: bet %s fulfillment wait until %s (now %s)",
			apperr.ErrInvalidState, betID, waitDeadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	prev := bet
	bet.State = StateCancelled

	// o cancelamento persiste antes do reembolso; se o reembolso falhar,
	// o undo devolve a aposta ao estado anterior
	u := uow.New(s.log)
	if release := bet.MaxPayoutCents - bet.StakeCents; release > 0 {
		if err := u.Step(ctx, "release excess reservation", func() error {
			return s.ledger.DecreaseReserved(ctx, RequesterID, bet.Asset, release)
		}, func(ctx context.Context) error {
			return s.ledger.IncreaseReserved(ctx, RequesterID, bet.Asset, release)
		}); err != nil {
			return Bet{}, err
		}
	}
	if err := u.Step(ctx, "persist cancelled bet", func() error {
		return s.store.SaveBet(ctx, bet)
	}, func(ctx context.Context) error {
		return s.store.SaveBet(ctx, prev)
	}); err != nil {
		return Bet{}, err
	}
	if err := u.Step(ctx, "refund stake", func() error {
		return s.ledger.Payout(ctx, RequesterID, bet.Asset, bet.Player, bet.StakeCents)
	}, nil); err != nil {
		return Bet{}, err
	}

	s.log.Info("bet cancelled", zap.String("bet_id", bet.ID))
	if s.publ != nil {
		_ = s.publ.PublishBetCancelled(ctx, events.BetCancelled{
			BetID:       bet.ID,
			Player:      bet.Player,
			Asset:       bet.Asset,
			RefundCents: bet.StakeCents,
			TsUnixMs:    now.UnixMilli(),
		})
	}
	return bet, nil
}

// Get devolve a aposta.
func (s *Service) Get(ctx context.Context, betID string) (Bet, error) {
	bet, found, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return Bet{}, err
	}
	if !found {
		return Bet{}, fmt.Errorf("%w: bet %s", apperr.ErrUnknownRequest, betID)
	}
	return bet, nil
}
