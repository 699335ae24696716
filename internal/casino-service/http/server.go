package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/admin"
	"github.com/radieske/vrf-casino-platform-poc/internal/casino-service/cache"
	"github.com/radieske/vrf-casino-platform-poc/internal/casino-service/dto"
	"github.com/radieske/vrf-casino-platform-poc/internal/casino-service/ws"
	"github.com/radieske/vrf-casino-platform-poc/internal/dicegame"
	"github.com/radieske/vrf-casino-platform-poc/internal/ledger"
	"github.com/radieske/vrf-casino-platform-poc/internal/lottery"
	"github.com/radieske/vrf-casino-platform-poc/internal/randomness"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
)

// headerCaller identifica o chamador autenticado. Num deployment real viria
// de um gateway de autenticação; aqui o header é a identidade.
const headerCaller = "X-Caller-ID"

// headerOracleKey autentica o callback do oráculo no endpoint interno.
const headerOracleKey = "X-Oracle-Key"

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "casino_http_requests_total",
	Help: "Requisições HTTP por rota e status.",
}, []string{"route", "code"})

// Broadcaster repassa transições de round para o canal Pub/Sub do hub WS.
type Broadcaster interface {
	BroadcastRound(ctx context.Context, upd ws.RoundUpdate) error
}

// Server expõe a API REST do casino: custódia, dados, loteria, VRF e admin.
type Server struct {
	log       *zap.Logger
	ledger    *ledger.Service
	dice      *dicegame.Service
	lotto     *lottery.Service
	vrf       *randomness.Router
	adm       *admin.Registry
	balCache  *cache.BalanceCache // opcional
	bcast     Broadcaster         // opcional
	hub       *ws.Hub             // opcional
	oracleKey string
	oracleID  string
}

func NewServer(log *zap.Logger, led *ledger.Service, dice *dicegame.Service, lotto *lottery.Service,
	vrf *randomness.Router, adm *admin.Registry, balCache *cache.BalanceCache, bcast Broadcaster,
	hub *ws.Hub, oracleKey, oracleID string) *Server {
	return &Server{
		log:       log,
		ledger:    led,
		dice:      dice,
		lotto:     lotto,
		vrf:       vrf,
		adm:       adm,
		balCache:  balCache,
		bcast:     bcast,
		hub:       hub,
		oracleKey: oracleKey,
		oracleID:  oracleID,
	}
}

// Router monta as rotas. Mutações de jogo passam pelo gate de pausa; a
// superfície administrativa fica fora do gate (senão não há como despausar).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/balances", s.getBalances)
			r.Get("/limits", s.getLimits)
			r.Group(func(r chi.Router) {
				r.Use(s.pauseGuard)
				r.Post("/fund", s.fund)
				r.Post("/withdraw", s.withdraw)
				r.Post("/limits", s.setLimits)
				r.Post("/callers", s.setCaller)
			})
		})

		r.Route("/dice/bets", func(r chi.Router) {
			r.Get("/{id}", s.getBet)
			r.Group(func(r chi.Router) {
				r.Use(s.pauseGuard)
				r.Post("/", s.commitBet)
				r.Post("/{id}/reveal", s.revealBet)
				r.Post("/{id}/slash", s.slashBet)
				r.Post("/{id}/cancel", s.cancelBet)
			})
		})

		r.Route("/lottery/draws", func(r chi.Router) {
			r.Get("/{id}", s.getDraw)
			r.Group(func(r chi.Router) {
				r.Use(s.pauseGuard)
				r.Post("/", s.createDraw)
				r.Post("/{id}/tickets", s.buyTickets)
				r.Post("/{id}/start", s.startDraw)
				r.Post("/{id}/finalize", s.finalizeDraw)
				r.Post("/{id}/timeout", s.timeoutDraw)
				r.Post("/{id}/refund", s.claimRefund)
			})
		})

		r.Route("/vrf/requests", func(r chi.Router) {
			r.Get("/{id}", s.getRequest)
			r.With(s.pauseGuard).Post("/{id}/retry", s.retryDelivery)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/pause", s.setPaused)
			r.Post("/ownership/transfer", s.transferOwnership)
			r.Post("/ownership/accept", s.acceptOwnership)
		})
	})

	// callback do oráculo: persist-first, fora do gate de pausa
	r.Post("/internal/vrf/fulfill", s.fulfill)

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	return r
}

// countRequests contabiliza requisições por rota e status no Prometheus.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
	})
}

// pauseGuard bloqueia mutações enquanto o registro estiver pausado.
func (s *Server) pauseGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.adm.RequireActive(); err != nil {
			s.writeErr(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func caller(r *http.Request) string { return r.Header.Get(headerCaller) }

// Ledger

func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	var req dto.FundRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.Fund(r.Context(), caller(r), req.Asset, req.AmountCents, req.From); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.StatusResponse{Status: "FUNDED"})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.Withdraw(r.Context(), caller(r), req.Asset, req.AmountCents, req.To); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.StatusResponse{Status: "WITHDRAWN"})
}

func (s *Server) getBalances(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		http.Error(w, "asset required", http.StatusBadRequest)
		return
	}

	if s.balCache != nil {
		var cached dto.BalancesResponse
		if ok, err := s.balCache.Get(r.Context(), asset, &cached); err == nil && ok {
			writeJSON(w, cached)
			return
		}
	}

	acc, err := s.ledger.Balances(r.Context(), asset)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	resp := dto.FromAccount(acc)
	if s.balCache != nil {
		_ = s.balCache.Set(r.Context(), asset, resp, 2*time.Second)
	}
	writeJSON(w, resp)
}

func (s *Server) getLimits(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		http.Error(w, "asset required", http.StatusBadRequest)
		return
	}
	l, ok, err := s.ledger.GetAssetLimits(r.Context(), asset)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.LimitsResponse{
		Asset:         asset,
		Configured:    ok,
		MinStakeCents: l.MinStakeCents,
		MaxStakeCents: l.MaxStakeCents,
	})
}

func (s *Server) setLimits(w http.ResponseWriter, r *http.Request) {
	var req dto.SetLimitsRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.ledger.SetAssetLimits(r.Context(), caller(r), ledger.Limits{
		Asset:         req.Asset,
		MinStakeCents: req.MinStakeCents,
		MaxStakeCents: req.MaxStakeCents,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.StatusResponse{Status: "LIMITS_SET"})
}

// setCaller administra o allow-list dos dois componentes de uma vez: quem
// pode movimentar custódia também pode pedir randomness.
func (s *Server) setCaller(w http.ResponseWriter, r *http.Request) {
	var req dto.SetCallerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.SetAuthorizedCaller(r.Context(), caller(r), req.Caller, req.Allowed); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.vrf.SetAuthorizedRequester(r.Context(), caller(r), req.Caller, req.Allowed); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.StatusResponse{Status: "CALLER_SET"})
}

// Dice

func (s *Server) commitBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CommitBetRequest
	if !s.decode(w, r, &req) {
		return
	}
	bet, err := s.dice.Commit(r.Context(), caller(r), req.Asset, req.StakeCents, req.WinThreshold, req.Commitment)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastBet(r.Context(), bet)
	writeJSON(w, dto.FromBet(bet))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.dice.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.FromBet(bet))
}

func (s *Server) revealBet(w http.ResponseWriter, r *http.Request) {
	var req dto.RevealBetRequest
	if !s.decode(w, r, &req) {
		return
	}
	bet, err := s.dice.Reveal(r.Context(), caller(r), chi.URLParam(r, "id"), req.StakeCents, req.WinThreshold, req.Salt)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastBet(r.Context(), bet)
	writeJSON(w, dto.FromBet(bet))
}

func (s *Server) slashBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.dice.SlashExpired(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastBet(r.Context(), bet)
	writeJSON(w, dto.FromBet(bet))
}

func (s *Server) cancelBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.dice.CancelIfUnfulfilled(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastBet(r.Context(), bet)
	writeJSON(w, dto.FromBet(bet))
}

// Lottery

func (s *Server) createDraw(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.lotto.Create(r.Context(), caller(r), req.Asset, req.TicketPriceCents, req.HouseEdgeBps,
		time.UnixMilli(req.StartTsUnixMs), time.UnixMilli(req.EndTsUnixMs))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastDraw(r.Context(), d)
	writeJSON(w, dto.FromDraw(d))
}

func (s *Server) getDraw(w http.ResponseWriter, r *http.Request) {
	d, err := s.lotto.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.FromDraw(d))
}

func (s *Server) buyTickets(w http.ResponseWriter, r *http.Request) {
	var req dto.BuyTicketsRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.lotto.BuyTickets(r.Context(), caller(r), chi.URLParam(r, "id"), req.Count)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastDraw(r.Context(), d)
	writeJSON(w, dto.FromDraw(d))
}

func (s *Server) startDraw(w http.ResponseWriter, r *http.Request) {
	d, err := s.lotto.StartDraw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastDraw(r.Context(), d)
	writeJSON(w, dto.FromDraw(d))
}

func (s *Server) finalizeDraw(w http.ResponseWriter, r *http.Request) {
	d, err := s.lotto.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastDraw(r.Context(), d)
	writeJSON(w, dto.FromDraw(d))
}

func (s *Server) timeoutDraw(w http.ResponseWriter, r *http.Request) {
	d, err := s.lotto.Timeout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.broadcastDraw(r.Context(), d)
	writeJSON(w, dto.FromDraw(d))
}

func (s *Server) claimRefund(w http.ResponseWriter, r *http.Request) {
	amount, err := s.lotto.ClaimRefund(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.RefundResponse{AmountCents: amount})
}

// VRF

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	rc, err := s.vrf.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.FromRequestContext(rc))
}

func (s *Server) retryDelivery(w http.ResponseWriter, r *http.Request) {
	res, err := s.vrf.RetryDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.RetryResponse{Delivered: res.Delivered, Reason: res.Reason})
}

// fulfill recebe o callback do oráculo. A chave compartilhada no header é a
// autenticação; com ela válida, o caller lógico passa a ser o oráculo.
func (s *Server) fulfill(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerOracleKey) != s.oracleKey {
		http.Error(w, "invalid oracle key", http.StatusForbidden)
		return
	}
	var req dto.FulfillRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.vrf.HandleFulfillment(r.Context(), s.oracleID, req.RequestID, req.Words); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.StatusResponse{Status: "FULFILLED"})
}

// Admin

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request) {
	var req dto.PauseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.adm.SetPaused(caller(r), req.Paused); err != nil {
		s.writeErr(w, err)
		return
	}
	status := "RESUMED"
	if req.Paused {
		status = "PAUSED"
	}
	writeJSON(w, dto.StatusResponse{Status: status})
}

func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferOwnershipRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.adm.TransferOwnership(caller(r), req.NewOwner); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.StatusResponse{Status: "TRANSFER_PENDING"})
}

func (s *Server) acceptOwnership(w http.ResponseWriter, r *http.Request) {
	if err := s.adm.AcceptOwnership(caller(r)); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.StatusResponse{Status: "OWNERSHIP_ACCEPTED"})
}

// helpers

func (s *Server) broadcastBet(ctx context.Context, b dicegame.Bet) {
	if s.bcast == nil {
		return
	}
	_ = s.bcast.BroadcastRound(ctx, ws.RoundUpdate{
		RoundID: b.ID,
		Kind:    "bet",
		Status:  string(b.State),
		Payload: dto.FromBet(b),
	})
}

func (s *Server) broadcastDraw(ctx context.Context, d lottery.Draw) {
	if s.bcast == nil {
		return
	}
	_ = s.bcast.BroadcastRound(ctx, ws.RoundUpdate{
		RoundID: d.ID,
		Kind:    "draw",
		Status:  string(d.Status),
		Payload: dto.FromDraw(d),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeErr traduz a taxonomia de erros para status HTTP e devolve a mensagem
// com os valores ofensores (estado atual vs exigido etc).
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrIdentityMismatch),
		errors.Is(err, apperr.ErrAlreadyFulfilled),
		errors.Is(err, apperr.ErrCommitMismatch),
		errors.Is(err, apperr.ErrRefundAlreadyClaimed),
		errors.Is(err, apperr.ErrInsufficientLiquidity),
		errors.Is(err, apperr.ErrReservationUnderflow),
		errors.Is(err, apperr.ErrTransferFailure):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
