package randomness

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/admin"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/clock"
	"github.com/radieske/vrf-casino-platform-poc/pkg/contracts/events"
)

// Consumer é o ponto de entrada de notificação de um round. Precisa ser
// idempotente e barato; o router não assume que será chamado com sucesso
// mais de uma vez.
type Consumer interface {
	OnRandomness(ctx context.Context, roundID, requestID string, randomValue uint64) error
}

// OracleClient encaminha pedidos ao oráculo externo.
type OracleClient interface {
	RequestRandomness(ctx context.Context, cfg RequestConfig) (requestID string, err error)
}

// EventPublisher publica o ciclo de vida dos pedidos (best-effort).
type EventPublisher interface {
	PublishRandomRequested(ctx context.Context, e events.RandomRequested) error
	PublishRandomFulfilled(ctx context.Context, e events.RandomFulfilled) error
	PublishDeliveryFailed(ctx context.Context, e events.DeliveryFailed) error
}

// Router é o único chamador do oráculo. Regra central: o caminho do callback
// até o resultado persistido nunca é bloqueado nem revertido pela lógica do
// requester — persiste primeiro, notifica depois, e falha de notificação é
// dado retryável.
//
// O mutex protege os registries e a seção carregar-checar-persistir de cada
// transição; ele é solto antes de invocar o consumer, para não prender o
// router dentro da lógica do requester (que tem os próprios locks).
type Router struct {
	log    *zap.Logger
	store  Store
	oracle OracleClient
	clock  clock.Clock
	adm    *admin.Registry
	publ   EventPublisher

	oracleIdentity string        // identidade aceita no callback
	baseCfg        RequestConfig // configuração fixa por pedido

	mu        sync.Mutex
	allowed   map[string]bool     // requesters autorizados
	consumers map[string]Consumer // requester -> entrada de notificação
}

func NewRouter(log *zap.Logger, store Store, oracle OracleClient, clk clock.Clock,
	adm *admin.Registry, publ EventPublisher, oracleIdentity string, baseCfg RequestConfig) *Router {
	return &Router{
		log:            log,
		store:          store,
		oracle:         oracle,
		clock:          clk,
		adm:            adm,
		publ:           publ,
		oracleIdentity: oracleIdentity,
		baseCfg:        baseCfg,
		allowed:        make(map[string]bool),
		consumers:      make(map[string]Consumer),
	}
}

// SetAuthorizedRequester gerencia a allow-list de requesters. Só o administrador.
func (r *Router) SetAuthorizedRequester(ctx context.Context, caller, target string, allowed bool) error {
	if err := r.adm.RequireOwner(caller); err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("%w: target requester must not be empty", apperr.ErrInvalidInput)
	}
	r.mu.Lock()
	if allowed {
		r.allowed[target] = true
	} else {
		delete(r.allowed, target)
	}
	r.mu.Unlock()
	r.log.Info("router requester allow-list updated",
		zap.String("target", target), zap.Bool("allowed", allowed))
	return nil
}

// RegisterConsumer registra a entrada de notificação do requester.
func (r *Router) RegisterConsumer(requester string, c Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers[requester] = c
}

// Request encaminha um pedido ao oráculo em nome de um requester autorizado
// e registra o contexto antes de retornar o id.
func (r *Router) Request(ctx context.Context, requester, roundID string, wordCount int) (string, error) {
	r.mu.Lock()
	ok := r.allowed[requester]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: requester %q is not allow-listed", apperr.ErrUnauthorized, requester)
	}
	if roundID == "" {
		return "", fmt.Errorf("%w: round id must not be empty", apperr.ErrInvalidInput)
	}
	if wordCount < 1 {
		return "", fmt.Errorf("%w: word count=%d must be >= 1", apperr.ErrInvalidInput, wordCount)
	}

	cfg := r.baseCfg
	cfg.WordCount = wordCount

	requestID, err := r.oracle.RequestRandomness(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}

	rc := RequestContext{
		RequestID: requestID,
		Requester: requester,
		RoundID:   roundID,
		WordCount: wordCount,
		CreatedAt: r.clock.Now(),
	}
	if err := r.store.SaveRequest(ctx, rc); err != nil {
		return "", fmt.Errorf("persist request context: %w", err)
	}

	r.log.Info("randomness requested",
		zap.String("request_id", requestID),
		zap.String("requester", requester),
		zap.String("round_id", roundID),
	)
	if r.publ != nil {
		_ = r.publ.PublishRandomRequested(ctx, events.RandomRequested{
			RequestID: requestID,
			Requester: requester,
			RoundID:   roundID,
			WordCount: wordCount,
			TsUnixMs:  rc.CreatedAt.UnixMilli(),
		})
	}
	return requestID, nil
}

// HandleFulfillment recebe o callback do oráculo. Rejeita pedidos
// desconhecidos ou já atendidos; persiste a primeira palavra e só então
// tenta a entrega. Falha de entrega não falha o fulfillment.
func (r *Router) HandleFulfillment(ctx context.Context, caller, requestID string, words []uint64) error {
	if caller != r.oracleIdentity {
		return fmt.Errorf("%w: caller %q is not the configured oracle", apperr.ErrUnauthorized, caller)
	}
	if len(words) == 0 {
		return fmt.Errorf("%w: fulfillment carries no words", apperr.ErrInvalidInput)
	}

	r.mu.Lock()
	rc, found, err := r.store.GetRequest(ctx, requestID)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if !found || rc.Requester == "" {
		r.mu.Unlock()
		return fmt.Errorf("%w: request %s", apperr.ErrUnknownRequest, requestID)
	}
	if rc.Fulfilled {
		r.mu.Unlock()
		return fmt.Errorf("%w: request %s", apperr.ErrAlreadyFulfilled, requestID)
	}

	// persistência do resultado vem antes de qualquer notificação
	rc.Fulfilled = true
	rc.RandomValue = words[0]
	rc.FulfilledAt = r.clock.Now()
	if err := r.store.SaveRequest(ctx, rc); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("persist fulfillment: %w", err)
	}
	r.mu.Unlock()

	res := r.attemptDelivery(ctx, &rc)
	r.persistDeliveryState(ctx, rc)

	if r.publ != nil {
		_ = r.publ.PublishRandomFulfilled(ctx, events.RandomFulfilled{
			RequestID:   rc.RequestID,
			Requester:   rc.Requester,
			RoundID:     rc.RoundID,
			RandomValue: rc.RandomValue,
			Delivered:   res.Delivered,
			TsUnixMs:    rc.FulfilledAt.UnixMilli(),
		})
	}
	return nil
}

// RetryDelivery repete a tentativa de notificação. Qualquer um pode chamar;
// só vale para pedidos atendidos e ainda não entregues.
func (r *Router) RetryDelivery(ctx context.Context, requestID string) (NotifyResult, error) {
	r.mu.Lock()
	rc, found, err := r.store.GetRequest(ctx, requestID)
	r.mu.Unlock()
	if err != nil {
		return NotifyResult{}, err
	}
	if !found || rc.Requester == "" {
		return NotifyResult{}, fmt.Errorf("%w: request %s", apperr.ErrUnknownRequest, requestID)
	}
	if !rc.Fulfilled || rc.Delivered {
		return NotifyResult{}, fmt.Errorf("%w: request %s fulfilled=%v delivered=%v",
			apperr.ErrInvalidState, requestID, rc.Fulfilled, rc.Delivered)
	}

	res := r.attemptDelivery(ctx, &rc)
	r.persistDeliveryState(ctx, rc)
	return res, nil
}

// Get devolve o contexto de um pedido.
func (r *Router) Get(ctx context.Context, requestID string) (RequestContext, error) {
	rc, found, err := r.store.GetRequest(ctx, requestID)
	if err != nil {
		return RequestContext{}, err
	}
	if !found {
		return RequestContext{}, fmt.Errorf("%w: request %s", apperr.ErrUnknownRequest, requestID)
	}
	return rc, nil
}

// attemptDelivery invoca o consumer do requester e converte qualquer falha
// (erro ou panic) em NotifyResult; nunca propaga. Atualiza rc in place.
func (r *Router) attemptDelivery(ctx context.Context, rc *RequestContext) (res NotifyResult) {
	defer func() {
		if p := recover(); p != nil {
			res = NotifyResult{Delivered: false, Reason: fmt.Sprintf("consumer panic: %v", p)}
			r.recordDeliveryOutcome(ctx, rc, res)
		}
	}()

	r.mu.Lock()
	c := r.consumers[rc.Requester]
	r.mu.Unlock()
	if c == nil {
		res = NotifyResult{Delivered: false, Reason: fmt.Sprintf("no consumer registered for %q", rc.Requester)}
		r.recordDeliveryOutcome(ctx, rc, res)
		return res
	}

	rc.Attempts++
	if err := c.OnRandomness(ctx, rc.RoundID, rc.RequestID, rc.RandomValue); err != nil {
		res = NotifyResult{Delivered: false, Reason: err.Error()}
		r.recordDeliveryOutcome(ctx, rc, res)
		return res
	}

	res = NotifyResult{Delivered: true}
	r.recordDeliveryOutcome(ctx, rc, res)
	return res
}

func (r *Router) recordDeliveryOutcome(ctx context.Context, rc *RequestContext, res NotifyResult) {
	if res.Delivered {
		rc.Delivered = true
		rc.LastError = ""
		r.log.Info("randomness delivered",
			zap.String("request_id", rc.RequestID),
			zap.String("round_id", rc.RoundID),
			zap.Int("attempt", rc.Attempts),
		)
		return
	}

	rc.LastError = res.Reason
	r.log.Warn("randomness delivery failed",
		zap.String("request_id", rc.RequestID),
		zap.String("round_id", rc.RoundID),
		zap.Int("attempt", rc.Attempts),
		zap.String("reason", res.Reason),
	)
	if r.publ != nil {
		_ = r.publ.PublishDeliveryFailed(ctx, events.DeliveryFailed{
			RequestID: rc.RequestID,
			Requester: rc.Requester,
			RoundID:   rc.RoundID,
			Reason:    res.Reason,
			Attempt:   rc.Attempts,
			TsUnixMs:  r.clock.Now().UnixMilli(),
		})
	}
}

func (r *Router) persistDeliveryState(ctx context.Context, rc RequestContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.SaveRequest(ctx, rc); err != nil {
		// o resultado do oráculo já está salvo; só o estado da entrega ficou para trás
		r.log.Error("persist delivery state failed",
			zap.String("request_id", rc.RequestID), zap.Error(err))
	}
}

// For devolve um handle de requester já vinculado, para injetar nos rounds.
func (r *Router) For(requester string) *BoundRequester {
	return &BoundRequester{router: r, requester: requester}
}

// BoundRequester amarra o id do requester às chamadas de Request.
type BoundRequester struct {
	router    *Router
	requester string
}

func (b *BoundRequester) RequestRandom(ctx context.Context, roundID string, wordCount int) (string, error) {
	return b.router.Request(ctx, b.requester, roundID, wordCount)
}
