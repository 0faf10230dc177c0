package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-feed/ws"
	sharedcache "github.com/radieske/round-settlement-platform/internal/shared/cache"
	"github.com/radieske/round-settlement-platform/internal/shared/config"
	"github.com/radieske/round-settlement-platform/internal/shared/logger"
	sharedmetrics "github.com/radieske/round-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	delivered := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_messages_delivered_total", Help: "mensagens entregues a clientes"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_messages_dropped_total", Help: "mensagens descartadas (cliente lento)"})
	conns := prometheus.NewGauge(prometheus.GaugeOpts{Name: "feed_connections", Help: "conexões websocket abertas"})
	prometheus.MustRegister(delivered, dropped, conns)

	// TODO: restringir origens quando o front tiver domínio fixo
	hub := ws.NewHub(log, func(*http.Request) bool { return true })
	hub.OnDelivered = delivered.Inc
	hub.OnDropped = dropped.Inc
	hub.OnConns = func(n int) { conns.Set(float64(n)) }

	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	r := chi.NewRouter()
	r.Get("/ws", hub.HandleWS)

	metricsSrv := sharedmetrics.StartMetricsServer(cfg.MetricsPort, map[string]sharedmetrics.HealthFunc{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("feed listening", zap.String("addr", srv.Addr), zap.String("channel", cfg.RedisPubSubChannel))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("feed srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("round-feed-service stopped")
}
