package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

// Notifier recebe os avisos pós-commit. Implementações não bloqueiam e não
// devolvem erro: falha de notificação nunca desfaz uma liquidação.
type Notifier interface {
	NotifyOutcome(ctx context.Context, n domain.OutcomeNotice)
	NotifyStatus(ctx context.Context, r domain.Round)
}

type nopNotifier struct{}

func (nopNotifier) NotifyOutcome(context.Context, domain.OutcomeNotice) {}
func (nopNotifier) NotifyStatus(context.Context, domain.Round)          {}

// Engine é o dono do ciclo de vida das rodadas: máquina de estados,
// liquidação, estorno e a guarda de idempotência.
type Engine struct {
	store    Store
	clock    Clock
	notifier Notifier
	log      *zap.Logger

	defaultMultiplier decimal.Decimal
	txTimeout         time.Duration

	OnTransition func(op, result string)    // métricas (op: activate|settle|cancel|bet)
	OnSettled    func(domain.Summary)        // métricas
	OnRefunded   func(bets int, cents int64) // métricas
}

type Options struct {
	Clock             Clock
	Notifier          Notifier
	Log               *zap.Logger
	DefaultMultiplier decimal.Decimal
	TxTimeout         time.Duration
}

func New(store Store, opts Options) *Engine {
	e := &Engine{
		store:             store,
		clock:             opts.Clock,
		notifier:          opts.Notifier,
		log:               opts.Log,
		defaultMultiplier: opts.DefaultMultiplier,
		txTimeout:         opts.TxTimeout,
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.defaultMultiplier.IsZero() {
		e.defaultMultiplier = decimal.NewFromInt(2)
	}
	return e
}

// Now expõe o relógio do motor para projeções (countdown, overdue)
func (e *Engine) Now() time.Time { return e.clock.Now() }

// CreateRound cria uma rodada scheduled. multiplier nil usa o default configurado.
func (e *Engine) CreateRound(ctx context.Context, start, end time.Time, multiplier *decimal.Decimal) (domain.Round, error) {
	if !end.After(start) {
		return domain.Round{}, domain.ErrInvalidWindow
	}
	m := e.defaultMultiplier
	if multiplier != nil {
		m = *multiplier
	}
	if err := domain.ValidateMultiplier(m); err != nil {
		return domain.Round{}, err
	}

	now := e.clock.Now()
	r := domain.Round{
		ID:               uuid.NewString(),
		StartTime:        start.UTC(),
		EndTime:          end.UTC(),
		Status:           domain.StatusScheduled,
		PayoutMultiplier: m,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.store.CreateRound(ctx, r); err != nil {
		return domain.Round{}, e.fail("create", r.ID, err)
	}

	e.log.Info("round created",
		zap.String("round_id", r.ID),
		zap.Time("start_time", r.StartTime),
		zap.Time("end_time", r.EndTime),
		zap.String("multiplier", m.String()),
	)
	e.notifier.NotifyStatus(ctx, r)
	return r, nil
}

// Activate abre a janela de apostas; só permitido com now >= start_time
func (e *Engine) Activate(ctx context.Context, roundID string) (domain.Round, error) {
	now := e.clock.Now()
	var round domain.Round

	err := e.inTx(ctx, "activate", roundID, func(tx Tx) error {
		r, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(r.Status, domain.StatusActive) {
			return &domain.TransitionError{RoundID: r.ID, From: r.Status, To: domain.StatusActive}
		}
		if now.Before(r.StartTime) {
			return &domain.TransitionError{
				RoundID: r.ID, From: r.Status, To: domain.StatusActive,
				Reason: "start_time not reached",
			}
		}

		ok, err := tx.SetStatus(ctx, StatusUpdate{
			RoundID: r.ID,
			From:    []domain.Status{domain.StatusScheduled},
			To:      domain.StatusActive,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return &domain.TransitionError{RoundID: r.ID, From: r.Status, To: domain.StatusActive, Reason: "status changed concurrently"}
		}

		r.Status = domain.StatusActive
		r.UpdatedAt = now
		round = r
		return nil
	})
	e.observe("activate", err)
	if err != nil {
		return domain.Round{}, err
	}

	e.log.Info("round activated", zap.String("round_id", roundID))
	e.notifier.NotifyStatus(ctx, round)
	return round, nil
}

func (e *Engine) GetRound(ctx context.Context, roundID string) (domain.Round, error) {
	r, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		return domain.Round{}, e.fail("get_round", roundID, err)
	}
	return r, nil
}

func (e *Engine) ListRounds(ctx context.Context, f RoundFilter) ([]domain.Round, error) {
	rs, err := e.store.ListRounds(ctx, f)
	if err != nil {
		return nil, e.fail("list_rounds", "", err)
	}
	return rs, nil
}

// Overdue lista rodadas ativas com janela encerrada e sem resultado.
// O motor só reporta; a transição continua sendo decisão do operador.
func (e *Engine) Overdue(ctx context.Context) ([]domain.Round, error) {
	now := e.clock.Now()
	return e.ListRounds(ctx, RoundFilter{OverdueAt: &now})
}

func (e *Engine) RoundBets(ctx context.Context, roundID string) ([]domain.Bet, error) {
	if _, err := e.GetRound(ctx, roundID); err != nil {
		return nil, err
	}
	bets, err := e.store.ListBets(ctx, roundID)
	if err != nil {
		return nil, e.fail("list_bets", roundID, err)
	}
	return bets, nil
}

func (e *Engine) OwnerBets(ctx context.Context, ownerID string, limit int) ([]domain.Bet, error) {
	bets, err := e.store.ListBetsByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, e.fail("list_owner_bets", "", err)
	}
	return bets, nil
}

// inTx aplica o timeout da transação e classifica o erro: recusas de negócio
// passam intactas, o resto vira PersistenceError.
func (e *Engine) inTx(ctx context.Context, op, roundID string, fn func(tx Tx) error) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := e.store.WithinTx(ctx, fn); err != nil {
		return e.fail(op, roundID, err)
	}
	return nil
}

func (e *Engine) fail(op, roundID string, err error) error {
	if domain.IsRejection(err) {
		return err
	}
	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	e.log.Error("store failure", zap.String("op", op), zap.String("round_id", roundID), zap.Error(err))
	return &domain.PersistenceError{Op: op, Err: err}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.txTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.txTimeout)
}

func (e *Engine) observe(op string, err error) {
	if e.OnTransition == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case domain.IsNoop(err):
		result = "noop"
	case domain.IsRejection(err):
		result = "rejected"
	default:
		result = "error"
	}
	e.OnTransition(op, result)
}
