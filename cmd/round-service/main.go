package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-service/cache"
	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
	"github.com/radieske/round-settlement-platform/internal/round-service/engine"
	httpapi "github.com/radieske/round-settlement-platform/internal/round-service/http"
	"github.com/radieske/round-settlement-platform/internal/round-service/metrics"
	"github.com/radieske/round-settlement-platform/internal/round-service/notify"
	"github.com/radieske/round-settlement-platform/internal/round-service/overdue"
	"github.com/radieske/round-settlement-platform/internal/round-service/producer"
	"github.com/radieske/round-settlement-platform/internal/round-service/repo"
	sharedcache "github.com/radieske/round-settlement-platform/internal/shared/cache"
	"github.com/radieske/round-settlement-platform/internal/shared/config"
	"github.com/radieske/round-settlement-platform/internal/shared/db"
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

	if cfg.AdminJWTSecret == "" {
		log.Fatal("ADMIN_JWT_SECRET is required")
	}
	multiplier, err := domain.ParseMultiplier(cfg.DefaultPayoutMultiplier)
	if err != nil {
		log.Fatal("invalid DEFAULT_PAYOUT_MULTIPLIER", zap.String("value", cfg.DefaultPayoutMultiplier), zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres: rodadas, apostas e ledger da carteira no mesmo banco
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Kafka: eventos pós-commit (status por rodada, resultado por usuário)
	outcomes := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundOutcomes)
	defer outcomes.Close()
	status := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundStatus)
	defer status.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	dispatcher := notify.NewDispatcher(log, producer.NewKafkaPublisher(outcomes, status), notify.Options{
		QueueSize: cfg.NotifyQueueSize,
		Workers:   cfg.NotifyWorkers,
	})
	dispatcher.OnSent = func() { m.Notification("sent") }
	dispatcher.OnFailed = func() { m.Notification("failed") }
	dispatcher.OnDropped = func() { m.Notification("dropped") }
	dispatcher.Start()

	eng := engine.New(repo.NewPostgres(pg), engine.Options{
		Notifier:          dispatcher,
		Log:               log,
		DefaultMultiplier: multiplier,
		TxTimeout:         cfg.EngineTxTimeout,
	})
	eng.OnTransition = m.Transition
	eng.OnSettled = m.Settled
	eng.OnRefunded = m.Refunded

	// Canal de operador opcional
	var tg *telegram.Notifier
	if cfg.TelegramBotToken != "" {
		if tg, err = telegram.New(log, cfg.TelegramBotToken, cfg.TelegramChatID); err != nil {
			log.Warn("telegram disabled", zap.Error(err))
			tg = nil
		}
	}

	scanner := overdue.NewScanner(log, eng, tg)
	scanner.OnScan = m.OverdueRounds
	sched, err := scanner.Schedule(cfg.OverdueScanSpec)
	if err != nil {
		log.Fatal("invalid OVERDUE_SCAN_SPEC", zap.String("spec", cfg.OverdueScanSpec), zap.Error(err))
	}

	api := &httpapi.API{
		Log:         log,
		Engine:      eng,
		Cache:       cache.New(redisClient, cfg.RoundCacheTTL),
		AdminSecret: []byte(cfg.AdminJWTSecret),
	}

	metricsSrv := sharedmetrics.StartMetricsServer(cfg.MetricsPort, map[string]sharedmetrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = apiSrv.Shutdown(shutdownCtx)
	<-sched.Stop().Done()
	// avisos já enfileirados ainda são publicados antes de fechar os writers
	dispatcher.Close()
	tg.Stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("round-service stopped")
}
