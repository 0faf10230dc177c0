// Package metrics registra os contadores Prometheus do round-service e
// liga-os aos callbacks do motor, do dispatcher e do scanner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

type Metrics struct {
	Transitions   *prometheus.CounterVec
	SettledBets   *prometheus.CounterVec
	PaidCents     prometheus.Counter
	RefundedBets  prometheus.Counter
	RefundedCents prometheus.Counter
	Notifications *prometheus.CounterVec
	Overdue       prometheus.Gauge
}

// New registra as métricas em reg (use prometheus.DefaultRegisterer em produção)
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "round_transitions_total",
			Help: "Round operations by kind and result (ok, noop, rejected, error)",
		}, []string{"op", "result"}),
		SettledBets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "round_settled_bets_total",
			Help: "Bets resolved by settlement, by outcome",
		}, []string{"outcome"}),
		PaidCents: f.NewCounter(prometheus.CounterOpts{
			Name: "round_payout_cents_total",
			Help: "Total amount credited to winners",
		}),
		RefundedBets: f.NewCounter(prometheus.CounterOpts{
			Name: "round_refunded_bets_total",
			Help: "Bets refunded by cancellation",
		}),
		RefundedCents: f.NewCounter(prometheus.CounterOpts{
			Name: "round_refunded_cents_total",
			Help: "Total stake returned by cancellation",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "round_notifications_total",
			Help: "Post-commit notifications by result (sent, failed, dropped)",
		}, []string{"result"}),
		Overdue: f.NewGauge(prometheus.GaugeOpts{
			Name: "round_overdue",
			Help: "Active rounds past end_time still waiting for a result",
		}),
	}
}

func (m *Metrics) Transition(op, result string) { m.Transitions.WithLabelValues(op, result).Inc() }

func (m *Metrics) Settled(s domain.Summary) {
	m.SettledBets.WithLabelValues(domain.OutcomeWon.String()).Add(float64(s.WinningBets))
	m.SettledBets.WithLabelValues(domain.OutcomeLost.String()).Add(float64(s.TotalBets - s.WinningBets))
	m.PaidCents.Add(float64(s.TotalPayoutAmount))
}

func (m *Metrics) Refunded(bets int, cents int64) {
	m.RefundedBets.Add(float64(bets))
	m.RefundedCents.Add(float64(cents))
}

func (m *Metrics) Notification(result string) { m.Notifications.WithLabelValues(result).Inc() }

func (m *Metrics) OverdueRounds(n int) { m.Overdue.Set(float64(n)) }
