// Package overdue detecta rodadas ativas com a janela encerrada e sem
// resultado. Só reporta (log, métrica, alerta); quem encerra é o operador.
package overdue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
	"github.com/radieske/round-settlement-platform/internal/shared/telegram"
)

type Source interface {
	Overdue(ctx context.Context) ([]domain.Round, error)
	Now() time.Time
}

type Alerter interface {
	Send(ctx context.Context, text string) error
}

type Scanner struct {
	log   *zap.Logger
	src   Source
	alert Alerter // opcional

	mu      sync.Mutex
	alerted map[string]bool // rodadas já avisadas; alerta sai uma vez por rodada

	OnScan func(overdue int) // métricas (gauge)
}

func NewScanner(log *zap.Logger, src Source, alert Alerter) *Scanner {
	return &Scanner{log: log, src: src, alert: alert, alerted: map[string]bool{}}
}

// Scan lista as rodadas atrasadas e avisa as que ainda não foram avisadas
func (s *Scanner) Scan(ctx context.Context) ([]domain.Round, error) {
	rounds, err := s.src.Overdue(ctx)
	if err != nil {
		s.log.Warn("overdue scan failed", zap.Error(err))
		return nil, err
	}
	if s.OnScan != nil {
		s.OnScan(len(rounds))
	}

	now := s.src.Now()
	var fresh []domain.Round

	s.mu.Lock()
	current := make(map[string]bool, len(rounds))
	for _, r := range rounds {
		current[r.ID] = true
		if !s.alerted[r.ID] {
			fresh = append(fresh, r)
			s.alerted[r.ID] = true
		}
	}
	// rodadas que saíram da lista (liquidadas/canceladas) podem ser esquecidas
	for id := range s.alerted {
		if !current[id] {
			delete(s.alerted, id)
		}
	}
	s.mu.Unlock()

	for _, r := range fresh {
		s.log.Warn("round overdue",
			zap.String("round_id", r.ID),
			zap.Time("end_time", r.EndTime),
			zap.Duration("late_by", now.Sub(r.EndTime)),
		)
	}
	if len(fresh) > 0 && s.alert != nil {
		if err := s.alert.Send(ctx, FormatAlert(fresh, now)); err != nil {
			s.log.Warn("overdue alert not sent", zap.Error(err))
		}
	}
	return rounds, nil
}

// Schedule roda Scan na expressão cron (com segundos). Chame Stop no cron devolvido.
func (s *Scanner) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = s.Scan(ctx)
	}); err != nil {
		return nil, fmt.Errorf("overdue schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

func FormatAlert(rounds []domain.Round, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d round(s) waiting for a result*\n", len(rounds))
	for _, r := range rounds {
		fmt.Fprintf(&b, "• `%s` ended %s ago\n",
			telegram.EscapeMarkdown(r.ID), now.Sub(r.EndTime).Truncate(time.Second))
	}
	return b.String()
}
