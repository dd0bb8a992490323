package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-notifier/consumer"
	"github.com/radieske/p2p-bet-engine/internal/bet-notifier/pubsub"
	sharedcache "github.com/radieske/p2p-bet-engine/internal/shared/cache"
	"github.com/radieske/p2p-bet-engine/internal/shared/config"
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

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Consumer Kafka (consumer group bet-notifier) e DLQ para mensagens inválidas
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetLifecycle, "bet-notifier")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetLifecycleDLQ)
	defer dlq.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_notifier_messages_consumed_total", Help: "mensagens consumidas"})
	notified := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_notifier_notifications_total", Help: "notificações registradas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_notifier_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, notified, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient),
		Channel:     cfg.RedisPubSubChannel,
		DLQ:         dlq,
		OnConsumed:  func() { consumed.Inc() },
		OnNotified:  func(n int) { notified.Add(float64(n)) },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	defer msrv.Close()
	log.Info("metrics/health listening", zap.String("addr", msrv.Addr))

	log.Info("bet-notifier started")
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("bet-notifier stopped")
}
