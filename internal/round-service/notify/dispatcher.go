// Package notify entrega os avisos pós-commit do motor de rodadas.
// O motor só enfileira; workers publicam em segundo plano e falhas
// ficam no log e nas métricas.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

// Publisher é o destino dos eventos (Kafka em produção)
type Publisher interface {
	PublishOutcome(ctx context.Context, e events.BetOutcome) error
	PublishStatus(ctx context.Context, e events.RoundStatusChanged) error
}

type job struct {
	outcome *events.BetOutcome
	status  *events.RoundStatusChanged
}

// Dispatcher implementa engine.Notifier com fila limitada. Fila cheia
// descarta o aviso em vez de segurar a requisição do operador.
type Dispatcher struct {
	log     *zap.Logger
	pub     Publisher
	timeout time.Duration
	workers int

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup

	OnSent    func() // métricas
	OnFailed  func() // métricas
	OnDropped func() // métricas
}

type Options struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration // por publicação
}

func NewDispatcher(log *zap.Logger, pub Publisher, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Dispatcher{
		log:     log,
		pub:     pub,
		timeout: opts.Timeout,
		workers: opts.Workers,
		queue:   make(chan job, opts.QueueSize),
	}
}

// Start sobe os workers. Eles drenam a fila até Close.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Close para de aceitar avisos e espera a fila esvaziar
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// NotifyOutcome ignora ctx de propósito: o aviso sobrevive ao fim da requisição
func (d *Dispatcher) NotifyOutcome(_ context.Context, n domain.OutcomeNotice) {
	d.enqueue(job{outcome: &events.BetOutcome{
		BetID:       n.BetID,
		RoundID:     n.RoundID,
		UserID:      n.OwnerID,
		Outcome:     n.Outcome.String(),
		AmountCents: n.AmountCents,
		TsUnixMs:    time.Now().UnixMilli(),
	}})
}

func (d *Dispatcher) NotifyStatus(_ context.Context, r domain.Round) {
	d.enqueue(job{status: &events.RoundStatusChanged{
		RoundID:   r.ID,
		Status:    r.Status.String(),
		Result:    r.Result,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		UpdatedAt: r.UpdatedAt,
	}})
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(j, "dispatcher closed")
		return
	}
	select {
	case d.queue <- j:
	default:
		d.drop(j, "queue full")
	}
}

func (d *Dispatcher) drop(j job, reason string) {
	fields := []zap.Field{zap.String("reason", reason)}
	if j.outcome != nil {
		fields = append(fields, zap.String("bet_id", j.outcome.BetID), zap.String("round_id", j.outcome.RoundID))
	} else if j.status != nil {
		fields = append(fields, zap.String("round_id", j.status.RoundID), zap.String("status", j.status.Status))
	}
	d.log.Warn("notification dropped", fields...)
	if d.OnDropped != nil {
		d.OnDropped()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.send(j)
	}
}

func (d *Dispatcher) send(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	switch {
	case j.outcome != nil:
		err = d.pub.PublishOutcome(ctx, *j.outcome)
		if err != nil {
			d.log.Warn("outcome notification failed",
				zap.String("bet_id", j.outcome.BetID),
				zap.String("round_id", j.outcome.RoundID),
				zap.String("user_id", j.outcome.UserID),
				zap.Error(err))
		}
	case j.status != nil:
		err = d.pub.PublishStatus(ctx, *j.status)
		if err != nil {
			d.log.Warn("status notification failed",
				zap.String("round_id", j.status.RoundID),
				zap.String("status", j.status.Status),
				zap.Error(err))
		}
	}

	if err != nil {
		if d.OnFailed != nil {
			d.OnFailed()
		}
		return
	}
	if d.OnSent != nil {
		d.OnSent()
	}
}
