package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/shared/config"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/db"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/kafka"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/logger"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/metrics"
	ev "github.com/radieske/vrf-casino-platform-poc/pkg/contracts/events"
)

// O settlement-worker é o "crank" permissionless do casino: ele dispara as
// operações que qualquer um poderia chamar (retry de entrega, slash, cancel,
// start/finalize/timeout de sorteio) quando os prazos vencem. Toda mutação
// passa pela API do casino-service; o worker só lê o banco para descobrir
// quem está vencido.

var (
	retriesAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_delivery_retries_total",
		Help: "Retries de entrega de randomness disparados",
	})
	retriesDLQ = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_delivery_dlq_total",
		Help: "Pedidos enviados para a DLQ após esgotar retries",
	})
	crankCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_crank_calls_total",
		Help: "Chamadas de crank por operação e desfecho",
	}, []string{"operation", "outcome"})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(retriesAttempted, retriesDLQ, crankCalls)

	// Postgres: leitura dos prazos vencidos (apostas e sorteios)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: eventos random_fulfilled com delivered=false pedem retry
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomFulfilled, "settlement-worker")
	defer reader.Close()

	// DLQ para pedidos cuja entrega não destrava
	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRetryDLQ)
	defer dlqWriter.Close()

	// Servidor HTTP para métricas Prometheus e healthcheck
	metrics.StartMetricsServer(cfg.MetricsPort, pg.PingContext)
	log.Info("metrics/health", zap.String("port", cfg.MetricsPort))

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicRandomFulfilled),
		zap.String("dlq", cfg.TopicRetryDLQ),
		zap.Duration("crank_interval", cfg.CrankInterval),
	)

	ctx := context.Background()

	// Crank de prazos em goroutine própria
	go runCrank(ctx, log, pg, cfg)

	// Loop principal: retries de entrega dirigidos pelos eventos
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var fulfilled ev.RandomFulfilled
		if jerr := json.Unmarshal(msg.Value, &fulfilled); jerr != nil {
			log.Error("unmarshal random_fulfilled", zap.Error(jerr))
			continue
		}
		if fulfilled.Delivered {
			continue
		}

		if err := retryDelivery(ctx, cfg, fulfilled.RequestID); err != nil {
			log.Error("retry delivery exhausted",
				zap.String("request_id", fulfilled.RequestID),
				zap.Error(err),
			)
			retriesDLQ.Inc()
			_ = kafka.WriteJSON(ctx, dlqWriter, fulfilled.RequestID, msg.Value)
		}
	}
}

// retryDelivery chama o endpoint de retry com backoff simples. Um 409 é
// desfecho terminal (o round já saiu do estado esperado ou alguém entregou
// antes), não erro.
func retryDelivery(ctx context.Context, cfg config.Config, requestID string) error {
	const retries = 3
	var err error
	for i := 0; i < retries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
		}
		retriesAttempted.Inc()
		var code int
		code, err = postCrank(ctx, cfg, "/v1/vrf/requests/"+requestID+"/retry")
		if err == nil || code == http.StatusConflict {
			return nil
		}
	}
	return err
}

// runCrank varre periodicamente os prazos vencidos no banco e dispara as
// transições permissionless correspondentes.
func runCrank(ctx context.Context, log *zap.Logger, pg *sql.DB, cfg config.Config) {
	ticker := time.NewTicker(cfg.CrankInterval)
	defer ticker.Stop()

	for range ticker.C {
		crankBets(ctx, log, pg, cfg)
		crankDraws(ctx, log, pg, cfg)
	}
}

func crankBets(ctx context.Context, log *zap.Logger, pg *sql.DB, cfg config.Config) {
	// apostas reveladas fora do prazo: slash
	for _, id := range queryIDs(ctx, log, pg, `
		SELECT id FROM dice_bets
		WHERE state='RANDOM_FULFILLED' AND reveal_deadline < NOW()
		LIMIT 100`) {
		crank(ctx, log, cfg, "slash", "/v1/dice/bets/"+id+"/slash")
	}

	// apostas cujo oráculo nunca respondeu: cancel
	for _, id := range queryIDs(ctx, log, pg, fmt.Sprintf(`
		SELECT id FROM dice_bets
		WHERE state='RANDOM_REQUESTED' AND requested_at < NOW() - INTERVAL '%d seconds'
		LIMIT 100`, int(cfg.MaxWaitForFulfill.Seconds()))) {
		crank(ctx, log, cfg, "cancel", "/v1/dice/bets/"+id+"/cancel")
	}
}

func crankDraws(ctx context.Context, log *zap.Logger, pg *sql.DB, cfg config.Config) {
	// sorteios com venda encerrada: start
	for _, id := range queryIDs(ctx, log, pg, `
		SELECT id FROM lottery_draws
		WHERE status='OPEN' AND end_time < NOW()
		LIMIT 100`) {
		crank(ctx, log, cfg, "start", "/v1/lottery/draws/"+id+"/start")
	}

	// sorteios com randomness em mãos: finalize
	for _, id := range queryIDs(ctx, log, pg, `
		SELECT id FROM lottery_draws
		WHERE status='RANDOM_FULFILLED'
		LIMIT 100`) {
		crank(ctx, log, cfg, "finalize", "/v1/lottery/draws/"+id+"/finalize")
	}

	// sorteios cujo oráculo nunca respondeu: timeout
	for _, id := range queryIDs(ctx, log, pg, fmt.Sprintf(`
		SELECT id FROM lottery_draws
		WHERE status='RANDOM_REQUESTED' AND requested_at < NOW() - INTERVAL '%d seconds'
		LIMIT 100`, int(cfg.MaxWaitForFulfill.Seconds()))) {
		crank(ctx, log, cfg, "timeout", "/v1/lottery/draws/"+id+"/timeout")
	}
}

func queryIDs(ctx context.Context, log *zap.Logger, pg *sql.DB, query string) []string {
	rows, err := pg.QueryContext(ctx, query)
	if err != nil {
		log.Warn("crank query", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Warn("crank scan", zap.Error(err))
			return ids
		}
		ids = append(ids, id)
	}
	return ids
}

// crank dispara uma transição permissionless. 409 significa que outro caller
// (ou o jogador) chegou antes; é corrida esperada, não erro.
func crank(ctx context.Context, log *zap.Logger, cfg config.Config, operation, path string) {
	code, err := postCrank(ctx, cfg, path)
	switch {
	case err != nil:
		crankCalls.WithLabelValues(operation, "error").Inc()
		log.Warn("crank call failed", zap.String("operation", operation), zap.String("path", path), zap.Error(err))
	case code == http.StatusConflict:
		crankCalls.WithLabelValues(operation, "lost_race").Inc()
	default:
		crankCalls.WithLabelValues(operation, "ok").Inc()
		log.Info("crank applied", zap.String("operation", operation), zap.String("path", path))
	}
}

func postCrank(ctx context.Context, cfg config.Config, path string) (int, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, cfg.CasinoURL+path, nil)
	req.Header.Set("X-Caller-ID", "settlement-worker")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return resp.StatusCode, errors.New("casino http " + resp.Status)
	}
	return resp.StatusCode, nil
}
