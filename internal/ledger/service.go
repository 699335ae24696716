package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/admin"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/clock"
	"github.com/radieske/vrf-casino-platform-poc/pkg/contracts/events"
)

// EntryPublisher publica o evento auditável de cada mutação (best-effort).
type EntryPublisher interface {
	PublishLedgerEntry(ctx context.Context, e events.LedgerEntry) error
}

// Service é o dono da custódia por ativo. Todas as mutações passam por aqui,
// serializadas pelo mutex (ordem total, aplicação tudo-ou-nada: validações
// primeiro, persistência depois, evento por último).
type Service struct {
	log   *zap.Logger
	store Store
	clock clock.Clock
	adm   *admin.Registry
	publ  EntryPublisher

	mu         sync.Mutex
	authorized map[string]bool // rounds autorizados a mover fundos
}

func New(log *zap.Logger, store Store, clk clock.Clock, adm *admin.Registry, publ EntryPublisher) *Service {
	return &Service{
		log:        log,
		store:      store,
		clock:      clk,
		adm:        adm,
		publ:       publ,
		authorized: make(map[string]bool),
	}
}

// Fund credita custódia (qualquer chamador pode aportar liquidez).
func (s *Service) Fund(ctx context.Context, caller, asset string, amount int64, from string) error {
	if err := validAssetAmount(asset, amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, asset, OpFund, amount, from, caller, func(acc *Account) error {
		acc.TotalCents += amount
		return nil
	})
}

// Withdraw saca liquidez livre. Só o administrador; nunca pode invadir a
// fatia reservada.
func (s *Service) Withdraw(ctx context.Context, caller, asset string, amount int64, to string) error {
	if err := s.adm.RequireOwner(caller); err != nil {
		return err
	}
	if err := validAssetAmount(asset, amount); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("%w: withdraw destination must not be empty", apperr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, asset, OpWithdraw, amount, to, caller, func(acc *Account) error {
		if acc.FreeCents() < amount {
			return fmt.Errorf("%w: free=%d requested=%d asset=%s",
				apperr.ErrInsufficientLiquidity, acc.FreeCents(), amount, asset)
		}
		acc.TotalCents -= amount
		return nil
	})
}

// Collect é a perna de entrada do pull-then-transfer: um round autorizado
// puxa fundos de um participante para a custódia.
func (s *Service) Collect(ctx context.Context, caller, asset, from string, amount int64) error {
	if err := s.requireAuthorized(caller); err != nil {
		return err
	}
	if err := validAssetAmount(asset, amount); err != nil {
		return err
	}
	if from == "" {
		return fmt.Errorf("%w: collect source must not be empty", apperr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, asset, OpCollect, amount, from, caller, func(acc *Account) error {
		acc.TotalCents += amount
		return nil
	})
}

// Return devolve fundos coletados que ainda não viraram reserva (perna de
// compensação do unit-of-work). Não pode deixar reserved > total.
func (s *Service) Return(ctx context.Context, caller, asset, to string, amount int64) error {
	if err := s.requireAuthorized(caller); err != nil {
		return err
	}
	if err := validAssetAmount(asset, amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, asset, OpReturn, amount, to, caller, func(acc *Account) error {
		if acc.TotalCents-amount < acc.ReservedCents {
			return fmt.Errorf("%w: total=%d reserved=%d return=%d asset=%s",
				apperr.ErrInsufficientLiquidity, acc.TotalCents, acc.ReservedCents, amount, asset)
		}
		acc.TotalCents -= amount
		return nil
	})
}

// IncreaseReserved earmarca liquidez contra uma obrigação futura.
// Rejeita se empurrar reserved acima de total.
func (s *Service) IncreaseReserved(ctx context.Context, caller, asset string, amount int64) error {
	if err := s.requireAuthorized(caller); err != nil {
		return err
	}
	if err := validAssetAmount(asset, amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, asset, OpReserveInc, amount, "", caller, func(acc *Account) error {
		if acc.ReservedCents+amount > acc.TotalCents {
			return fmt.Errorf("%w: reserved=%d increase=%d total=%d asset=%s",
				apperr.ErrInsufficientLiquidity, acc.ReservedCents, amount, acc.TotalCents, asset)
		}
		acc.ReservedCents += amount
		return nil
	})
}

// DecreaseReserved libera uma obrigação. Rejeita underflow.
func (s *Service) DecreaseReserved(ctx context.Context, caller, asset string, amount int64) error {
	if err := s.requireAuthorized(caller); err != nil {
		return err
	}
	if err := validAssetAmount(asset, amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, asset, OpReserveDec, amount, "", caller, func(acc *Account) error {
		if acc.ReservedCents-amount < 0 {
			return fmt.Errorf("%w: reserved=%d decrease=%d asset=%s",
				apperr.ErrReservationUnderflow, acc.ReservedCents, amount, asset)
		}
		acc.ReservedCents -= amount
		return nil
	})
}

// Payout paga uma obrigação: reduz reserva e custódia atomicamente.
// amount nunca pode exceder a reserva corrente.
func (s *Service) Payout(ctx context.Context, caller, asset, to string, amount int64) error {
	if err := s.requireAuthorized(caller); err != nil {
		return err
	}
	if err := validAssetAmount(asset, amount); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("%w: payout destination must not be empty", apperr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, asset, OpPayout, amount, to, caller, func(acc *Account) error {
		if amount > acc.ReservedCents {
			return fmt.Errorf("%w: reserved=%d payout=%d asset=%s",
				apperr.ErrReservationUnderflow, acc.ReservedCents, amount, asset)
		}
		acc.ReservedCents -= amount
		acc.TotalCents -= amount
		return nil
	})
}

// SetAuthorizedCaller gerencia a allow-list de rounds. Só o administrador.
func (s *Service) SetAuthorizedCaller(ctx context.Context, caller, target string, allowed bool) error {
	if err := s.adm.RequireOwner(caller); err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("%w: target caller must not be empty", apperr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if allowed {
		s.authorized[target] = true
	} else {
		delete(s.authorized, target)
	}
	s.log.Info("ledger caller allow-list updated",
		zap.String("target", target), zap.Bool("allowed", allowed))
	return nil
}

// SetAssetLimits define a faixa de stake do ativo. Só o administrador.
func (s *Service) SetAssetLimits(ctx context.Context, caller string, l Limits) error {
	if err := s.adm.RequireOwner(caller); err != nil {
		return err
	}
	if l.Asset == "" || l.MinStakeCents < 0 || l.MaxStakeCents < l.MinStakeCents {
		return fmt.Errorf("%w: limits asset=%q min=%d max=%d",
			apperr.ErrInvalidInput, l.Asset, l.MinStakeCents, l.MaxStakeCents)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetLimits(ctx, l)
}

// GetAssetLimits devolve a faixa configurada (found=false se não houver).
func (s *Service) GetAssetLimits(ctx context.Context, asset string) (Limits, bool, error) {
	return s.store.GetLimits(ctx, asset)
}

// Balances devolve a posição corrente do ativo.
func (s *Service) Balances(ctx context.Context, asset string) (Account, error) {
	if asset == "" {
		return Account{}, fmt.Errorf("%w: asset must not be empty", apperr.ErrInvalidInput)
	}
	return s.store.GetAccount(ctx, asset)
}

// CheckStakeWithinLimits valida um valor de aposta contra os limites do ativo.
func (s *Service) CheckStakeWithinLimits(ctx context.Context, asset string, amount int64) error {
	l, ok, err := s.store.GetLimits(ctx, asset)
	if err != nil {
		return err
	}
	if !ok {
		return nil // sem limites configurados, qualquer stake positivo vale
	}
	if amount < l.MinStakeCents || amount > l.MaxStakeCents {
		return fmt.Errorf("%w: stake=%d outside [%d,%d] asset=%s",
			apperr.ErrInvalidInput, amount, l.MinStakeCents, l.MaxStakeCents, asset)
	}
	return nil
}

// apply executa uma mutação sob o lock: carrega a conta, roda a regra,
// persiste saldo+journal atomicamente e emite o evento com before/after.
// Chamar apenas com s.mu tomado.
func (s *Service) apply(ctx context.Context, asset, op string, amount int64, counterparty, caller string, mutate func(*Account) error) error {
	acc, err := s.store.GetAccount(ctx, asset)
	if err != nil {
		return err
	}
	before := acc

	if err := mutate(&acc); err != nil {
		return err
	}

	entry := Entry{
		ID:             uuid.NewString(),
		Operation:      op,
		Asset:          asset,
		AmountCents:    amount,
		Counterparty:   counterparty,
		Caller:         caller,
		TotalBefore:    before.TotalCents,
		TotalAfter:     acc.TotalCents,
		ReservedBefore: before.ReservedCents,
		ReservedAfter:  acc.ReservedCents,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.store.SaveAccountWithEntry(ctx, acc, entry); err != nil {
		return fmt.Errorf("%w: persist %s: %v", apperr.ErrTransferFailure, op, err)
	}

	s.log.Info("ledger entry",
		zap.String("op", op),
		zap.String("asset", asset),
		zap.Int64("amount_cents", amount),
		zap.Int64("reserved_before", before.ReservedCents),
		zap.Int64("reserved_after", acc.ReservedCents),
		zap.String("caller", caller),
	)

	if s.publ != nil {
		ev := events.LedgerEntry{
			EntryID:        entry.ID,
			Operation:      op,
			Asset:          asset,
			AmountCents:    amount,
			Counterparty:   counterparty,
			Caller:         caller,
			TotalBefore:    before.TotalCents,
			TotalAfter:     acc.TotalCents,
			ReservedBefore: before.ReservedCents,
			ReservedAfter:  acc.ReservedCents,
			TsUnixMs:       entry.CreatedAt.UnixMilli(),
		}
		if perr := s.publ.PublishLedgerEntry(ctx, ev); perr != nil {
			s.log.Warn("ledger entry publish failed", zap.Error(perr))
		}
	}
	return nil
}

func (s *Service) requireAuthorized(caller string) error {
	s.mu.Lock()
	ok := s.authorized[caller]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: caller %q is not an authorized round", apperr.ErrUnauthorized, caller)
	}
	return nil
}

func validAssetAmount(asset string, amount int64) error {
	if asset == "" {
		return fmt.Errorf("%w: asset must not be empty", apperr.ErrInvalidInput)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount=%d must be positive", apperr.ErrInvalidInput, amount)
	}
	return nil
}
