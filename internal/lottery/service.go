package lottery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/admin"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/clock"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/uow"
	"github.com/radieske/vrf-casino-platform-poc/pkg/contracts/events"
)

// Ledger é a fronteira de custódia usada pelo sorteio.
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

// EventPublisher publica o ciclo de vida dos sorteios (best-effort).
type EventPublisher interface {
	PublishDrawCreated(ctx context.Context, e events.DrawCreated) error
	PublishTicketsSold(ctx context.Context, e events.TicketsSold) error
	PublishDrawRolledOver(ctx context.Context, e events.DrawRolledOver) error
	PublishDrawFinalized(ctx context.Context, e events.DrawFinalized) error
	PublishDrawTimedOut(ctx context.Context, e events.DrawTimedOut) error
	PublishRefundClaimed(ctx context.Context, e events.RefundClaimed) error
}

// Params são os parâmetros fixos do sorteio.
type Params struct {
	MaxTicketsPerBuy  int
	MaxTicketsPerDraw int64
	MaxWaitForFulfill time.Duration
}

// Service é a máquina de estados por sorteio. Mesmo regime do jogo de dados:
// mutex serializa, toda transição checa o status gravado e falha fechado.
// O pot nunca deixa a reserva do ledger entre sorteios; o rollover é só
// contabilidade interna de qual sorteio é dono daquela fatia.
type Service struct {
	log    *zap.Logger
	store  Store
	ledger Ledger
	rnd    RandomRequester
	clock  clock.Clock
	adm    *admin.Registry
	publ   EventPublisher
	params Params

	mu sync.Mutex
}

func New(log *zap.Logger, store Store, l Ledger, rnd RandomRequester, clk clock.Clock,
	adm *admin.Registry, publ EventPublisher, params Params) *Service {
	return &Service{
		log:    log,
		store:  store,
		ledger: l,
		rnd:    rnd,
		clock:  clk,
		adm:    adm,
		publ:   publ,
		params: params,
	}
}

// Create abre um sorteio. Só o administrador. Qualquer rollover pendente do
// ativo entra como pot inicial (os fundos já estão reservados na custódia).
func (s *Service) Create(ctx context.Context, caller, asset string, ticketPriceCents, houseEdgeBps int64, startTime, endTime time.Time) (Draw, error) {
	if err := s.adm.RequireOwner(caller); err != nil {
		return Draw{}, err
	}
	if asset == "" {
		return Draw{}, fmt.Errorf("%w: asset must not be empty", apperr.ErrInvalidInput)
	}
	if ticketPriceCents <= 0 {
		return Draw{}, fmt.Errorf("%w: ticket price=%d must be positive", apperr.ErrInvalidInput, ticketPriceCents)
	}
	if houseEdgeBps < 0 || houseEdgeBps >= 10000 {
		return Draw{}, fmt.Errorf("%w: house edge bps=%d outside [0,10000)", apperr.ErrInvalidInput, houseEdgeBps)
	}
	if !startTime.Before(endTime) {
		return Draw{}, fmt.Errorf("%w: start %s must precede end %s",
			apperr.ErrInvalidInput, startTime.Format(time.RFC3339), endTime.Format(time.RFC3339))
	}
	now := s.clock.Now()
	if !endTime.After(now) {
		return Draw{}, fmt.Errorf("%w: end %s already passed", apperr.ErrInvalidInput, endTime.Format(time.RFC3339))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	carried, err := s.store.GetRolloverPot(ctx, asset)
	if err != nil {
		return Draw{}, err
	}

	d := Draw{
		ID:               uuid.NewString(),
		Asset:            asset,
		TicketPriceCents: ticketPriceCents,
		HouseEdgeBps:     houseEdgeBps,
		StartTime:        startTime,
		EndTime:          endTime,
		Status:           StatusOpen,
		PotCents:         carried,
		CreatedAt:        now,
	}
	if err := s.store.SaveDraw(ctx, d); err != nil {
		return Draw{}, err
	}
	if carried > 0 {
		if err := s.store.SetRolloverPot(ctx, asset, 0); err != nil {
			return Draw{}, err
		}
	}

	s.log.Info("draw created",
		zap.String("draw_id", d.ID),
		zap.String("asset", asset),
		zap.Int64("ticket_price_cents", ticketPriceCents),
		zap.Int64("starting_pot_cents", carried),
	)
	if s.publ != nil {
		_ = s.publ.PublishDrawCreated(ctx, events.DrawCreated{
			DrawID:           d.ID,
			Asset:            asset,
			TicketPriceCents: ticketPriceCents,
			HouseEdgeBps:     houseEdgeBps,
			StartTsUnixMs:    startTime.UnixMilli(),
			EndTsUnixMs:      endTime.UnixMilli(),
			StartingPotCents: carried,
			TsUnixMs:         now.UnixMilli(),
		})
	}
	return d, nil
}

// BuyTickets vende count bilhetes sequenciais dentro da janela de venda.
// Coleta e reserva o pagamento; qualquer perna que falhe desfaz as anteriores.
func (s *Service) BuyTickets(ctx context.Context, buyer, drawID string, count int) (Draw, error) {
	if buyer == "" {
		return Draw{}, fmt.Errorf("%w: buyer must not be empty", apperr.ErrInvalidInput)
	}
	if count < 1 || count > s.params.MaxTicketsPerBuy {
		return Draw{}, fmt.Errorf("%w: count=%d outside [1,%d]", apperr.ErrInvalidInput, count, s.params.MaxTicketsPerBuy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, found, err := s.store.GetDraw(ctx, drawID)
	if err != nil {
		return Draw{}, err
	}
	if !found {
		return Draw{}, fmt.Errorf("%w: draw %s", apperr.ErrUnknownRequest, drawID)
	}
	if d.Status != StatusOpen {
		return Draw{}, fmt.Errorf("%w: draw %s is %s, sale requires %s",
			apperr.ErrInvalidState, drawID, d.Status, StatusOpen)
	}
	now := s.clock.Now()
	if now.Before(d.StartTime) || !now.Before(d.EndTime) {
		return Draw{}, fmt.Errorf("%w: draw %s sale window [%s,%s) closed (now %s)",
			apperr.ErrInvalidState, drawID,
			d.StartTime.Format(time.RFC3339), d.EndTime.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if d.TotalTickets+int64(count) > s.params.MaxTicketsPerDraw {
		return Draw{}, fmt.Errorf("%w: draw %s would exceed %d tickets",
			apperr.ErrInvalidInput, drawID, s.params.MaxTicketsPerDraw)
	}

	amount := d.TicketPriceCents * int64(count)
	if err := s.ledger.CheckStakeWithinLimits(ctx, d.Asset, amount); err != nil {
		return Draw{}, err
	}

	u := uow.New(s.log)

	if err := u.Step(ctx, "collect ticket payment", func() error {
		return s.ledger.Collect(ctx, RequesterID, d.Asset, buyer, amount)
	}, func(ctx context.Context) error {
		return s.ledger.Return(ctx, RequesterID, d.Asset, buyer, amount)
	}); err != nil {
		return Draw{}, err
	}

	if err := u.Step(ctx, "reserve pot", func() error {
		return s.ledger.IncreaseReserved(ctx, RequesterID, d.Asset, amount)
	}, func(ctx context.Context) error {
		return s.ledger.DecreaseReserved(ctx, RequesterID, d.Asset, amount)
	}); err != nil {
		return Draw{}, err
	}

	firstIndex := d.TotalTickets
	if err := u.Step(ctx, "record tickets", func() error {
		return s.store.AppendTickets(ctx, drawID, buyer, firstIndex, count)
	}, nil); err != nil {
		return Draw{}, err
	}

	d.TotalTickets += int64(count)
	d.PotCents += amount
	if err := u.Step(ctx, "persist draw", func() error {
		return s.store.SaveDraw(ctx, d)
	}, nil); err != nil {
		return Draw{}, err
	}

	s.log.Info("tickets sold",
		zap.String("draw_id", drawID),
		zap.String("buyer", buyer),
		zap.Int("count", count),
		zap.Int64("pot_cents", d.PotCents),
	)
	if s.publ != nil {
		_ = s.publ.PublishTicketsSold(ctx, events.TicketsSold{
			DrawID:       drawID,
			Buyer:        buyer,
			Count:        count,
			FirstIndex:   firstIndex,
			AmountCents:  amount,
			PotCents:     d.PotCents,
			TotalTickets: d.TotalTickets,
			TsUnixMs:     now.UnixMilli(),
		})
	}
	return d, nil
}

// StartDraw fecha a venda. Sem bilhete vendido o pot vira rollover do ativo
// sem pedir randomness; com bilhetes, pede randomness com a chave do sorteio.
// Qualquer um pode chamar após o fim da janela.
func (s *Service) StartDraw(ctx context.Context, drawID string) (Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, found, err := s.store.GetDraw(ctx, drawID)
	if err != nil {
		return Draw{}, err
	}
	if !found {
		return Draw{}, fmt.Errorf("%w: draw %s", apperr.ErrUnknownRequest, drawID)
	}
	if d.Status != StatusOpen {
		return Draw{}, fmt.Errorf("%w: draw %s is %s, start requires %s",
			apperr.ErrInvalidState, drawID, d.Status, StatusOpen)
	}
	now := s.clock.Now()
	if now.Before(d.EndTime) {
		return Draw{}, fmt.Errorf("%w: draw %s sale window open until %s (now %s)",
			apperr.ErrInvalidState, drawID, d.EndTime.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	if d.TotalTickets == 0 {
		return s.rollOver(ctx, d, d.PotCents, now)
	}

	requestID, err := s.rnd.RequestRandom(ctx, d.ID, 1)
	if err != nil {
		return Draw{}, err
	}
	d.RequestID = requestID
	d.RequestedAt = now
	d.Status = StatusRandomRequested
	if err := s.store.SaveDraw(ctx, d); err != nil {
		return Draw{}, err
	}

	s.log.Info("draw started",
		zap.String("draw_id", drawID),
		zap.String("request_id", requestID),
		zap.Int64("total_tickets", d.TotalTickets),
	)
	return d, nil
}

// OnRandomness é a entrada de notificação chamada pelo router. Idempotente
// para reentrega do mesmo resultado.
func (s *Service) OnRandomness(ctx context.Context, roundID, requestID string, randomValue uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, found, err := s.store.GetDraw(ctx, roundID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: draw %s", apperr.ErrUnknownRequest, roundID)
	}
	if d.RequestID != requestID {
		return fmt.Errorf("%w: draw %s expects request %s, got %s",
			apperr.ErrIdentityMismatch, roundID, d.RequestID, requestID)
	}
	if d.Status == StatusRandomFulfilled && d.RandomValue == randomValue {
		return nil
	}
	if d.Status != StatusRandomRequested {
		return fmt.Errorf("%w: draw %s is %s, fulfillment requires %s",
			apperr.ErrInvalidState, roundID, d.Status, StatusRandomRequested)
	}

	d.RandomValue = randomValue
	d.Status = StatusRandomFulfilled
	if err := s.store.SaveDraw(ctx, d); err != nil {
		return err
	}

	s.log.Info("draw randomness fulfilled", zap.String("draw_id", d.ID))
	return nil
}

// Finalize paga o vencedor: winnerIndex = randomValue mod totalTickets, a casa
// fica com pot × edge / 10000. Qualquer um pode chamar após o fulfillment.
func (s *Service) Finalize(ctx context.Context, drawID string) (Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, found, err := s.store.GetDraw(ctx, drawID)
	if err != nil {
		return Draw{}, err
	}
	if !found {
		return Draw{}, fmt.Errorf("%w: draw %s", apperr.ErrUnknownRequest, drawID)
	}
	if d.Status != StatusRandomFulfilled {
		return Draw{}, fmt.Errorf("%w: draw %s is %s, finalize requires %s",
			apperr.ErrInvalidState, drawID, d.Status, StatusRandomFulfilled)
	}
	now := s.clock.Now()

	if d.TotalTickets == 0 {
		return s.rollOver(ctx, d, d.PotCents, now)
	}

	winnerIndex := int64(d.RandomValue % uint64(d.TotalTickets))
	winner, err := s.store.BuyerAtIndex(ctx, drawID, winnerIndex)
	if err != nil {
		return Draw{}, err
	}

	houseTake := d.PotCents * d.HouseEdgeBps / 10000
	winnerPayout := d.PotCents - houseTake

	prev := d
	d.Status = StatusFinalized
	d.Winner = winner
	d.WinnerIndex = winnerIndex

	// o estado terminal persiste antes do pagamento; se o pagamento falhar,
	// o undo devolve o sorteio ao estado anterior
	u := uow.New(s.log)
	if houseTake > 0 {
		if err := u.Step(ctx, "release house take", func() error {
			return s.ledger.DecreaseReserved(ctx, RequesterID, d.Asset, houseTake)
		}, func(ctx context.Context) error {
			return s.ledger.IncreaseReserved(ctx, RequesterID, d.Asset, houseTake)
		}); err != nil {
			return Draw{}, err
		}
	}
	if err := u.Step(ctx, "persist finalized draw", func() error {
		return s.store.SaveDraw(ctx, d)
	}, func(ctx context.Context) error {
		return s.store.SaveDraw(ctx, prev)
	}); err != nil {
		return Draw{}, err
	}
	if err := u.Step(ctx, "pay winner", func() error {
		return s.ledger.Payout(ctx, RequesterID, d.Asset, winner, winnerPayout)
	}, nil); err != nil {
		return Draw{}, err
	}

	s.log.Info("draw finalized",
		zap.String("draw_id", drawID),
		zap.String("winner", winner),
		zap.Int64("winner_index", winnerIndex),
		zap.Int64("payout_cents", winnerPayout),
		zap.Int64("house_cents", houseTake),
	)
	if s.publ != nil {
		_ = s.publ.PublishDrawFinalized(ctx, events.DrawFinalized{
			DrawID:       drawID,
			Asset:        d.Asset,
			Winner:       winner,
			WinnerIndex:  winnerIndex,
			PayoutCents:  winnerPayout,
			HouseCents:   houseTake,
			TotalTickets: d.TotalTickets,
			TsUnixMs:     now.UnixMilli(),
		})
	}
	return d, nil
}

// Timeout entra em modo de reembolso quando o oráculo não respondeu no prazo.
// O que exceder o reembolsável (pot carregado de sorteios anteriores) vira
// rollover do ativo. Qualquer um pode chamar.
func (s *Service) Timeout(ctx context.Context, drawID string) (Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, found, err := s.store.GetDraw(ctx, drawID)
	if err != nil {
		return Draw{}, err
	}
	if !found {
		return Draw{}, fmt.Errorf("%w: draw %s", apperr.ErrUnknownRequest, drawID)
	}
	if d.Status != StatusRandomRequested {
		return Draw{}, fmt.Errorf("%w: draw %s is %s, timeout requires %s",
			apperr.ErrInvalidState, drawID, d.Status, StatusRandomRequested)
	}
	now := s.clock.Now()
	waitDeadline := d.RequestedAt.Add(s.params.MaxWaitForFulfill)
	if now.Before(waitDeadline) {
		return Draw{}, fmt.Errorf("%w: draw %s fulfillment wait until %s (now %s)",
			apperr.ErrInvalidState, drawID, waitDeadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	refundable := d.TicketPriceCents * d.TotalTickets
	if refundable > d.PotCents {
		refundable = d.PotCents
	}
	remainder := d.PotCents - refundable

	if remainder > 0 {
		pot, err := s.store.GetRolloverPot(ctx, d.Asset)
		if err != nil {
			return Draw{}, err
		}
		if err := s.store.SetRolloverPot(ctx, d.Asset, pot+remainder); err != nil {
			return Draw{}, err
		}
	}

	d.Status = StatusTimedOut
	d.RefundableCents = refundable
	if err := s.store.SaveDraw(ctx, d); err != nil {
		return Draw{}, err
	}

	s.log.Warn("draw timed out",
		zap.String("draw_id", drawID),
		zap.Int64("refundable_cents", refundable),
		zap.Int64("carried_cents", remainder),
	)
	if s.publ != nil {
		_ = s.publ.PublishDrawTimedOut(ctx, events.DrawTimedOut{
			DrawID:          drawID,
			Asset:           d.Asset,
			RefundableCents: refundable,
			CarriedCents:    remainder,
			TsUnixMs:        now.UnixMilli(),
		})
	}
	return d, nil
}

// ClaimRefund paga ticketPrice × bilhetes do portador, uma única vez por
// portador. A marcação de resgate acontece antes do pagamento e é desfeita
// se o pagamento falhar.
func (s *Service) ClaimRefund(ctx context.Context, caller, drawID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, found, err := s.store.GetDraw(ctx, drawID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: draw %s", apperr.ErrUnknownRequest, drawID)
	}
	if d.Status != StatusTimedOut {
		return 0, fmt.Errorf("%w: draw %s is %s, refund requires %s",
			apperr.ErrInvalidState, drawID, d.Status, StatusTimedOut)
	}

	tickets, err := s.store.HolderTickets(ctx, drawID, caller)
	if err != nil {
		return 0, err
	}
	if tickets == 0 {
		return 0, fmt.Errorf("%w: caller %q holds no tickets in draw %s", apperr.ErrUnauthorized, caller, drawID)
	}
	claimed, err := s.store.RefundClaimed(ctx, drawID, caller)
	if err != nil {
		return 0, err
	}
	if claimed {
		return 0, fmt.Errorf("%w: holder %q in draw %s", apperr.ErrRefundAlreadyClaimed, caller, drawID)
	}

	amount := d.TicketPriceCents * int64(tickets)

	u := uow.New(s.log)
	if err := u.Step(ctx, "mark refund claimed", func() error {
		return s.store.MarkRefundClaimed(ctx, drawID, caller)
	}, func(ctx context.Context) error {
		return s.store.ClearRefundClaim(ctx, drawID, caller)
	}); err != nil {
		return 0, err
	}
	if err := u.Step(ctx, "pay refund", func() error {
		return s.ledger.Payout(ctx, RequesterID, d.Asset, caller, amount)
	}, nil); err != nil {
		return 0, err
	}

	s.log.Info("refund claimed",
		zap.String("draw_id", drawID),
		zap.String("holder", caller),
		zap.Int("tickets", tickets),
		zap.Int64("amount_cents", amount),
	)
	if s.publ != nil {
		_ = s.publ.PublishRefundClaimed(ctx, events.RefundClaimed{
			DrawID:      drawID,
			Holder:      caller,
			Tickets:     tickets,
			AmountCents: amount,
			TsUnixMs:    s.clock.Now().UnixMilli(),
		})
	}
	return amount, nil
}

// Get devolve o sorteio.
func (s *Service) Get(ctx context.Context, drawID string) (Draw, error) {
	d, found, err := s.store.GetDraw(ctx, drawID)
	if err != nil {
		return Draw{}, err
	}
	if !found {
		return Draw{}, fmt.Errorf("%w: draw %s", apperr.ErrUnknownRequest, drawID)
	}
	return d, nil
}

// rollOver carrega o pot para o próximo sorteio do ativo. Os fundos continuam
// reservados na custódia; só a contabilidade de dono muda. Chamar com s.mu
// tomado.
func (s *Service) rollOver(ctx context.Context, d Draw, carried int64, now time.Time) (Draw, error) {
	pot, err := s.store.GetRolloverPot(ctx, d.Asset)
	if err != nil {
		return Draw{}, err
	}
	if err := s.store.SetRolloverPot(ctx, d.Asset, pot+carried); err != nil {
		return Draw{}, err
	}

	d.Status = StatusRolledOver
	if err := s.store.SaveDraw(ctx, d); err != nil {
		return Draw{}, err
	}

	s.log.Info("draw rolled over",
		zap.String("draw_id", d.ID),
		zap.Int64("carried_cents", carried),
		zap.Int64("rollover_cents", pot+carried),
	)
	if s.publ != nil {
		_ = s.publ.PublishDrawRolledOver(ctx, events.DrawRolledOver{
			DrawID:        d.ID,
			Asset:         d.Asset,
			CarriedCents:  carried,
			RolloverCents: pot + carried,
			TsUnixMs:      now.UnixMilli(),
		})
	}
	return d, nil
}
