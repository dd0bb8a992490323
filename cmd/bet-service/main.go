package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/cache"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/engine"
	bhttp "github.com/radieske/p2p-bet-engine/internal/bet-service/http"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/identity"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/payment"
	kpub "github.com/radieske/p2p-bet-engine/internal/bet-service/producer"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/repo"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/ws"
	sharedcache "github.com/radieske/p2p-bet-engine/internal/shared/cache"
	"github.com/radieske/p2p-bet-engine/internal/shared/config"
	"github.com/radieske/p2p-bet-engine/internal/shared/db"
	"github.com/radieske/p2p-bet-engine/internal/shared/kafka"
	"github.com/radieske/p2p-bet-engine/internal/shared/logger"
	"github.com/radieske/p2p-bet-engine/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()
	if cfg.Env == "local" {
		if err := repo.EnsureSchema(ctx, pg); err != nil {
			log.Fatal("schema", zap.Error(err))
		}
	}

	// Redis
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer (topic bet_lifecycle)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetLifecycle)
	defer writer.Close()

	// Métricas Prometheus por operação e resultado
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bet_transitions_total",
		Help: "transições da aposta por operação e resultado",
	}, []string{"op", "result"})
	prometheus.MustRegister(transitions)

	// deps
	eng := engine.New(log, repo.NewPostgres(pg), identity.ContextProvider{})
	eng.Events = kpub.NewKafkaPublisher(writer, cfg.TopicBetLifecycle)
	eng.Views = cache.New(rdb, cfg.BetCacheTTL)
	eng.Links = payment.NewLinker(cfg.PaymentLinkBase)
	eng.OnTransition = func(op, result string) { transitions.WithLabelValues(op, result).Inc() }

	// WebSocket: assinatura por aposta, autorizada com as mesmas regras do GET
	hub := ws.NewHub(log, allowOrigin(cfg.WSAllowedOrigin), func(ctx context.Context, betID string) error {
		_, err := eng.Get(ctx, betID)
		return err
	})
	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)

	// HTTP público
	api := bhttp.NewServer(log, eng, http.HandlerFunc(hub.HandleWS))
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health", zap.String("addr", msrv.Addr))

	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		_ = apiSrv.Shutdown(sctx)
		_ = msrv.Shutdown(sctx)
	}()

	log.Info("bet-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("bet-service stopped")
}

func allowOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}
