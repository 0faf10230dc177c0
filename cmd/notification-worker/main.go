package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/notification-worker/consumer"
	"github.com/radieske/round-settlement-platform/internal/notification-worker/pubsub"
	sharedcache "github.com/radieske/round-settlement-platform/internal/shared/cache"
	"github.com/radieske/round-settlement-platform/internal/shared/config"
	"github.com/radieske/round-settlement-platform/internal/shared/kafka"
	"github.com/radieske/round-settlement-platform/internal/shared/logger"
	sharedmetrics "github.com/radieske/round-settlement-platform/internal/shared/metrics"
	"github.com/radieske/round-settlement-platform/internal/shared/telegram"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Kafka consumer: um group para os dois tópicos do round-service
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "notification-worker", cfg.TopicRoundStatus, cfg.TopicRoundOutcomes)
	defer reader.Close()

	var dlq *kafka.Writer
	if cfg.TopicRoundOutcomesDLQ != "" {
		dlq = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundOutcomesDLQ)
		defer dlq.Close()
	}

	var tg *telegram.Notifier
	if cfg.TelegramBotToken != "" {
		if tg, err = telegram.New(log, cfg.TelegramBotToken, cfg.TelegramChatID); err != nil {
			log.Warn("telegram disabled", zap.Error(err))
			tg = nil
		}
	}
	defer tg.Stop()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "notify_messages_consumed_total", Help: "mensagens consumidas por tópico"}, []string{"topic"})
	broadcast := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "notify_feed_broadcasts_total", Help: "updates publicados no feed"}, []string{"type"})
	deadLetters := prometheus.NewCounter(prometheus.CounterOpts{Name: "notify_dlq_total", Help: "mensagens enviadas para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "notify_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, broadcast, deadLetters, errorsBy)

	proc := &consumer.Processor{
		Log:          log,
		Reader:       reader,
		Feed:         pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel),
		StatusTopic:  cfg.TopicRoundStatus,
		OutcomeTopic: cfg.TopicRoundOutcomes,
		Retries:      3,
		Backoff:      300 * time.Millisecond,
		OnConsumed:   func(topic string) { consumed.WithLabelValues(topic).Inc() },
		OnBroadcast:  func(kind string) { broadcast.WithLabelValues(kind).Inc() },
		OnDLQ:        func() { deadLetters.Inc() },
		OnError:      func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}
	if dlq != nil {
		proc.DLQ = dlq
	}
	if tg != nil {
		proc.Alert = tg
	}

	metricsSrv := sharedmetrics.StartMetricsServer(cfg.MetricsPort, map[string]sharedmetrics.HealthFunc{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("notification-worker started",
		zap.String("status_topic", cfg.TopicRoundStatus),
		zap.String("outcome_topic", cfg.TopicRoundOutcomes),
		zap.String("channel", cfg.RedisPubSubChannel),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	_ = metricsSrv.Close()
	log.Info("notification-worker stopped")
}
