package main

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/shared/config"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/logger"

	odto "github.com/radieske/vrf-casino-platform-poc/internal/oracle-simulator/dto"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus do simulador de oráculo
	vrfRequestsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_vrf_requests_total",
		Help: "Pedidos VRF recebidos",
	})
	vrfRequestsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_vrf_dropped_total",
		Help: "Pedidos VRF descartados de propósito (nunca atendidos)",
	})
	vrfCallbacksSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_vrf_callbacks_total",
		Help: "Callbacks de fulfillment enviados com sucesso",
	})
	vrfCallbacksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_vrf_callback_failures_total",
		Help: "Callbacks de fulfillment que falharam",
	})
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
)

// Representa uma conexão de cliente WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes conectados e o broadcast de status dos pedidos
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

// server atende os pedidos VRF e agenda os callbacks com delay simulado
type server struct {
	log *zap.Logger
	cfg config.Config
	hub *hub
	cli *http.Client
}

func newServer(log *zap.Logger, cfg config.Config, h *hub) *server {
	return &server{
		log: log,
		cfg: cfg,
		hub: h,
		cli: &http.Client{Timeout: 5 * time.Second},
	}
}

// requestHandler recebe o pedido, sorteia o destino (drop ou fulfill com
// delay) e responde imediatamente com o request id.
func (s *server) requestHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req odto.VRFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.WordCount < 1 || req.CallbackURL == "" {
		http.Error(w, "word_count and callback_url required", http.StatusBadRequest)
		return
	}

	vrfRequestsReceived.Inc()
	requestID := uuid.NewString()
	s.pushStatus(requestID, "RECEIVED")

	// fração configurável dos pedidos nunca é atendida, para exercitar os
	// caminhos de cancel/timeout do casino
	if mrand.Intn(100) < s.cfg.OracleDropPct {
		vrfRequestsDropped.Inc()
		s.pushStatus(requestID, "DROPPED")
		s.log.Warn("request dropped on purpose", zap.String("request_id", requestID))
	} else {
		delay := s.cfg.OracleMinDelay +
			time.Duration(mrand.Int63n(int64(s.cfg.OracleMaxDelay-s.cfg.OracleMinDelay)+1))
		go s.fulfillLater(requestID, req, delay)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(odto.VRFRequestResp{RequestID: requestID})
}

// fulfillLater espera o delay simulado e devolve palavras de crypto/rand no
// callback do casino.
func (s *server) fulfillLater(requestID string, req odto.VRFRequest, delay time.Duration) {
	s.pushStatus(requestID, "FULFILLING")
	time.Sleep(delay)

	words := make([]uint64, req.WordCount)
	for i := range words {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			s.log.Error("crypto rand failed", zap.Error(err))
			return
		}
		words[i] = binary.BigEndian.Uint64(buf[:])
	}

	body, _ := json.Marshal(odto.VRFCallback{RequestID: requestID, Words: words})
	cb, _ := http.NewRequest(http.MethodPost, req.CallbackURL, bytes.NewReader(body))
	cb.Header.Set("Content-Type", "application/json")
	cb.Header.Set("X-Oracle-Key", s.cfg.OracleAPIKey)

	res, err := s.cli.Do(cb)
	if err != nil {
		vrfCallbacksFailed.Inc()
		s.pushStatus(requestID, "CALLBACK_FAILED")
		s.log.Warn("callback failed", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		vrfCallbacksFailed.Inc()
		s.pushStatus(requestID, "CALLBACK_FAILED")
		s.log.Warn("callback rejected",
			zap.String("request_id", requestID),
			zap.Int("status", res.StatusCode),
		)
		return
	}

	vrfCallbacksSent.Inc()
	s.pushStatus(requestID, "DELIVERED")
	s.log.Info("request fulfilled",
		zap.String("request_id", requestID),
		zap.Duration("delay", delay),
	)
}

func (s *server) pushStatus(requestID, status string) {
	s.hub.broadcast(odto.VRFStatusUpdate{
		RequestID: requestID,
		Status:    status,
		TsUnixMs:  time.Now().UnixMilli(),
	})
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(vrfRequestsReceived, vrfRequestsDropped, vrfCallbacksSent, vrfCallbacksFailed, wsConnections)

	h := newHub(log)
	s := newServer(log, cfg, h)

	// ==== MUX PÚBLICO (HTTP principal): /vrf/request e /ws
	appMux := http.NewServeMux()
	appMux.HandleFunc("/vrf/request", s.requestHandler)

	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		// Goroutine para manter a conexão viva e remover cliente ao desconectar
		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			_ = conn.SetReadDeadline(time.Time{})
			for {
				// Lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("oracle simulator (metrics) running",
			zap.String("addr", metricsAddr),
			zap.String("paths", "/healthz,/metrics"),
		)
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("oracle simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/vrf/request,/ws"),
		zap.Int("drop_pct", cfg.OracleDropPct),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
