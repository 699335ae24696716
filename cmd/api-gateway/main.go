package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/shared/config"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	casino := rp(cfg.CasinoURL)
	oracle := rp(cfg.OracleURL)

	mux := http.NewServeMux()

	// API pública do casino (ex.: /api/casino/v1/dice/bets -> casino-service)
	mux.Handle("/api/casino/", http.StripPrefix("/api/casino", casino))

	// WS de transições de round, proxied direto
	mux.Handle("/ws", casino)

	// Observabilidade do simulador de oráculo (somente /ws; o endpoint de
	// pedido não é exposto para fora)
	mux.Handle("/api/oracle/ws", http.StripPrefix("/api/oracle", oracle))

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Caller-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
