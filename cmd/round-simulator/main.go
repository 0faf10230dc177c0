package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/radieske/round-settlement-platform/internal/round-service/http"
	"github.com/radieske/round-settlement-platform/internal/shared/config"
	"github.com/radieske/round-settlement-platform/internal/shared/logger"
	"github.com/radieske/round-settlement-platform/internal/simulator"
	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

func main() {
	rounds := flag.Int("rounds", 5, "number of rounds to run (0 = until interrupted)")
	players := flag.Int("players", 10, "players per round")
	values := flag.String("values", "red,black,green", "comma separated bettable values")
	window := flag.Duration("window", 10*time.Second, "betting window")
	cancelRate := flag.Float64("cancel-rate", 0.1, "fraction of rounds cancelled instead of settled")
	flag.Parse()

	cfg := config.Load()
	log, err := logger.New("round-simulator", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.AdminJWTSecret == "" {
		log.Fatal("ADMIN_JWT_SECRET is required")
	}
	tok, err := httpapi.SignAdminToken([]byte(cfg.AdminJWTSecret), "round-simulator", time.Hour)
	if err != nil {
		log.Fatal("sign admin token", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Acompanha o feed para ver os eventos chegando do outro lado do Kafka
	feedURL := strings.Replace(cfg.FeedURL, "http", "ws", 1) + "/ws"
	feed := &simulator.FeedClient{
		URL:     feedURL,
		Log:     log,
		Topics:  []string{events.AllRoundsTopic},
		Backoff: 3 * time.Second,
		OnUpdate: func(u events.FeedUpdate) {
			log.Info("feed update", zap.String("topic", u.Topic), zap.String("type", u.Type), zap.ByteString("payload", u.Payload))
		},
	}
	go feed.Start(ctx)

	names := make([]string, *players)
	for i := range names {
		names[i] = fmt.Sprintf("sim-player-%03d", i+1)
	}
	sim := simulator.NewSimulator(simulator.New(cfg.RoundURL, cfg.WalletURL, tok), log, simulator.Options{
		Players:    names,
		Values:     strings.Split(*values, ","),
		Window:     *window,
		CancelRate: *cancelRate,
	})

	for i := 0; *rounds == 0 || i < *rounds; i++ {
		rep, err := sim.RunRound(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			log.Error("round failed", zap.String("round_id", rep.RoundID), zap.Error(err))
			continue
		}
		log.Info("round done",
			zap.String("round_id", rep.RoundID),
			zap.Int("bets", rep.BetsPlaced),
			zap.Int("rejected", rep.Rejected),
			zap.Bool("cancelled", rep.Cancelled))
	}
}
