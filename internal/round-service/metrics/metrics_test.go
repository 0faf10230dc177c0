package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

// value soma as séries da família name cujos labels contenham todos os pares de want
func value(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metric
				}
			}
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return sum
}

func TestSettledAndRefunded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Settled(domain.Summary{TotalBets: 3, WinningBets: 2, TotalBetAmount: 600, TotalPayoutAmount: 800})
	m.Refunded(2, 650)
	m.Transition("settle", "ok")
	m.Transition("settle", "noop")
	m.Notification("dropped")
	m.OverdueRounds(4)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"round_settled_bets_total", map[string]string{"outcome": "won"}, 2},
		{"round_settled_bets_total", map[string]string{"outcome": "lost"}, 1},
		{"round_payout_cents_total", nil, 800},
		{"round_refunded_bets_total", nil, 2},
		{"round_refunded_cents_total", nil, 650},
		{"round_transitions_total", map[string]string{"op": "settle", "result": "noop"}, 1},
		{"round_notifications_total", map[string]string{"result": "dropped"}, 1},
		{"round_overdue", nil, 4},
	}
	for _, tt := range tests {
		if got := value(t, reg, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}
