package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	rdto "github.com/radieske/round-settlement-platform/internal/round-service/dto"
)

type Options struct {
	Players  []string
	Values   []string // valores apostáveis; o resultado sai deste conjunto
	Window   time.Duration
	MaxStake int64 // centavos
	Seed     int64 // 0 usa o relógio
	// CancelRate é a fração de rodadas canceladas em vez de liquidadas
	CancelRate float64
}

// Simulator executa rodadas completas: cria, ativa, financia jogadores,
// aposta, espera a janela e liquida (ou cancela).
type Simulator struct {
	Client *Client
	Log    *zap.Logger
	Opts   Options
	rnd    *rand.Rand
}

func NewSimulator(c *Client, log *zap.Logger, opts Options) *Simulator {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxStake <= 0 {
		opts.MaxStake = 500
	}
	return &Simulator{Client: c, Log: log, Opts: opts, rnd: rand.New(rand.NewSource(seed))}
}

// RoundReport resume uma rodada simulada
type RoundReport struct {
	RoundID    string
	BetsPlaced int
	Rejected   int
	Cancelled  bool
	Settlement *rdto.SettlementResponse
}

func (s *Simulator) RunRound(ctx context.Context) (RoundReport, error) {
	var rep RoundReport
	if len(s.Opts.Values) == 0 || len(s.Opts.Players) == 0 {
		return rep, fmt.Errorf("simulator needs players and values")
	}

	start := time.Now().UTC()
	round, err := s.Client.CreateRound(ctx, start, start.Add(s.Opts.Window))
	if err != nil {
		return rep, fmt.Errorf("create round: %w", err)
	}
	rep.RoundID = round.ID
	if _, err := s.Client.Activate(ctx, round.ID); err != nil {
		return rep, fmt.Errorf("activate: %w", err)
	}
	s.Log.Info("round opened", zap.String("round_id", round.ID), zap.Duration("window", s.Opts.Window))

	for _, p := range s.Opts.Players {
		stake := 1 + s.rnd.Int63n(s.Opts.MaxStake)
		if _, err := s.Client.Deposit(ctx, p, stake, "sim:"+round.ID+":"+p); err != nil {
			return rep, fmt.Errorf("deposit %s: %w", p, err)
		}
		value := s.Opts.Values[s.rnd.Intn(len(s.Opts.Values))]
		if err := s.Client.PlaceBet(ctx, round.ID, p, value, stake); err != nil {
			// janela curta pode fechar no meio; segue com as demais
			s.Log.Warn("bet rejected", zap.String("user_id", p), zap.Error(err))
			rep.Rejected++
			continue
		}
		rep.BetsPlaced++
	}

	if s.rnd.Float64() < s.Opts.CancelRate {
		if _, err := s.Client.Cancel(ctx, round.ID); err != nil {
			return rep, fmt.Errorf("cancel: %w", err)
		}
		rep.Cancelled = true
		s.Log.Info("round cancelled", zap.String("round_id", round.ID), zap.Int("bets", rep.BetsPlaced))
		return rep, nil
	}

	wait := time.Until(start.Add(s.Opts.Window)) + 10*time.Millisecond
	select {
	case <-ctx.Done():
		return rep, ctx.Err()
	case <-time.After(wait):
	}

	result := s.Opts.Values[s.rnd.Intn(len(s.Opts.Values))]
	res, err := s.Client.SubmitResult(ctx, round.ID, result)
	if err != nil {
		return rep, fmt.Errorf("submit result: %w", err)
	}
	rep.Settlement = &res
	s.Log.Info("round settled",
		zap.String("round_id", round.ID),
		zap.String("result", result),
		zap.Int("winning_bets", res.Summary.WinningBets),
		zap.Int64("payout_cents", res.Summary.TotalPayoutAmount))
	return rep, nil
}
