package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-reconciler/sweeper"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/repo"
	"github.com/radieske/p2p-bet-engine/internal/shared/config"
	"github.com/radieske/p2p-bet-engine/internal/shared/db"
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

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	scanned := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_reconciler_scanned_total", Help: "apostas verificadas"})
	repaired := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_reconciler_repaired_total", Help: "status corrigidos"}, []string{"from", "to"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_reconciler_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(scanned, repaired, errorsBy)

	sw := &sweeper.Sweeper{
		Log:        log,
		Store:      repo.NewPostgres(pg),
		BatchSize:  cfg.ReconcileBatch,
		OnScanned:  func(n int) { scanned.Add(float64(n)) },
		OnRepaired: func(from, to domain.BetStatus) { repaired.WithLabelValues(string(from), string(to)).Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// SkipIfStillRunning evita varreduras sobrepostas
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(cfg.ReconcileSchedule, func() {
		res, err := sw.Sweep(ctx)
		if err != nil {
			log.Warn("sweep failed", zap.Error(err))
			return
		}
		log.Info("sweep done",
			zap.Int("scanned", res.Scanned), zap.Int("repaired", res.Repaired), zap.Int("skipped", res.Skipped))
	}); err != nil {
		log.Fatal("invalid schedule", zap.String("schedule", cfg.ReconcileSchedule), zap.Error(err))
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		return nil
	})
	defer msrv.Close()

	c.Start()
	log.Info("bet-reconciler started", zap.String("schedule", cfg.ReconcileSchedule))
	<-ctx.Done()
	<-c.Stop().Done() // espera a varredura em andamento terminar
	log.Info("bet-reconciler stopped")
}
