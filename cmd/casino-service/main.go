package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/vrf-casino-platform-poc/internal/admin"
	ccache "github.com/radieske/vrf-casino-platform-poc/internal/casino-service/cache"
	chttp "github.com/radieske/vrf-casino-platform-poc/internal/casino-service/http"
	"github.com/radieske/vrf-casino-platform-poc/internal/casino-service/producer"
	"github.com/radieske/vrf-casino-platform-poc/internal/casino-service/pubsub"
	"github.com/radieske/vrf-casino-platform-poc/internal/casino-service/ws"
	"github.com/radieske/vrf-casino-platform-poc/internal/dicegame"
	dicerepo "github.com/radieske/vrf-casino-platform-poc/internal/dicegame/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/ledger"
	ledgerrepo "github.com/radieske/vrf-casino-platform-poc/internal/ledger/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/lottery"
	lotteryrepo "github.com/radieske/vrf-casino-platform-poc/internal/lottery/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/randomness"
	"github.com/radieske/vrf-casino-platform-poc/internal/randomness/oracle"
	randomnessrepo "github.com/radieske/vrf-casino-platform-poc/internal/randomness/repo"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/cache"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/clock"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/config"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/db"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/logger"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/metrics"
)

// oracleIdentity é o caller lógico atribuído ao callback autenticado do oráculo.
const oracleIdentity = "vrf-oracle"

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache de saldos + pub/sub do hub WS)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka (eventos de ciclo de vida dos três componentes)
	publ := producer.NewKafkaPublisher(log, cfg.KafkaBrokers)
	defer publ.Close()

	// deps
	adm := admin.NewRegistry(cfg.AdminCallerID)
	clk := clock.System()

	ledgerSvc := ledger.New(log, ledgerrepo.NewPostgres(pg), clk, adm, publ)

	vrfRouter := randomness.NewRouter(log, randomnessrepo.NewPostgres(pg), oracle.New(cfg.OracleURL),
		clk, adm, publ, oracleIdentity, randomness.RequestConfig{
			ConfirmationDepth: cfg.OracleConfDepth,
			CallbackGasLimit:  cfg.OracleCallbackGas,
			PaymentMode:       cfg.OraclePaymentMode,
			CallbackURL:       cfg.CasinoCallbackURL,
			APIKey:            cfg.OracleAPIKey,
		})

	diceSvc := dicegame.New(log, dicerepo.NewPostgres(pg), ledgerSvc,
		vrfRouter.For(dicegame.RequesterID), clk, publ, dicegame.Params{
			HouseEdgeBps:      cfg.DiceHouseEdgeBps,
			RevealWindow:      cfg.RevealWindow,
			MaxWaitForFulfill: cfg.MaxWaitForFulfill,
			InstanceID:        cfg.InstanceID,
		})

	lottoSvc := lottery.New(log, lotteryrepo.NewPostgres(pg), ledgerSvc,
		vrfRouter.For(lottery.RequesterID), clk, adm, publ, lottery.Params{
			MaxTicketsPerBuy:  cfg.MaxTicketsPerBuy,
			MaxTicketsPerDraw: cfg.MaxTicketsPerDraw,
			MaxWaitForFulfill: cfg.MaxWaitForFulfill,
		})

	// allow-lists iniciais: os dois rounds internos podem movimentar custódia
	// e pedir randomness
	for _, requester := range []string{dicegame.RequesterID, lottery.RequesterID} {
		if err := ledgerSvc.SetAuthorizedCaller(ctx, cfg.AdminCallerID, requester, true); err != nil {
			log.Fatal("ledger allow-list", zap.Error(err))
		}
		if err := vrfRouter.SetAuthorizedRequester(ctx, cfg.AdminCallerID, requester, true); err != nil {
			log.Fatal("router allow-list", zap.Error(err))
		}
	}
	vrfRouter.RegisterConsumer(dicegame.RequesterID, diceSvc)
	vrfRouter.RegisterConsumer(lottery.RequesterID, lottoSvc)

	// hub WS alimentado pelo canal Redis
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub)
	bcast := pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)

	api := chttp.NewServer(log, ledgerSvc, diceSvc, lottoSvc, vrfRouter, adm,
		ccache.New(rdb), bcast, hub, cfg.OracleAPIKey, oracleIdentity)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health", zap.String("port", cfg.MetricsPort))

	log.Info("casino-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
