package engine

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

// Resolve é a parte pura da liquidação: marca cada aposta pending como won
// (chosen_value == result) ou lost e calcula o resumo. Vários vencedores
// são todos pagos (pool); resultado sem aposta correspondente não é erro.
func Resolve(bets []domain.Bet, result string, multiplier decimal.Decimal) ([]domain.Bet, domain.Summary) {
	out := make([]domain.Bet, 0, len(bets))
	var s domain.Summary

	for _, b := range bets {
		if b.Outcome != domain.OutcomePending {
			continue
		}
		s.TotalBets++
		s.TotalBetAmount = domain.AddCents(s.TotalBetAmount, b.StakeCents)

		if b.ChosenValue == result {
			b.Outcome = domain.OutcomeWon
			b.PotentialPayout = domain.Payout(b.StakeCents, multiplier)
			s.WinningBets++
			s.TotalPayoutAmount = domain.AddCents(s.TotalPayoutAmount, b.PotentialPayout)
		} else {
			b.Outcome = domain.OutcomeLost
		}
		out = append(out, b)
	}
	return out, s
}

// SubmitResult encerra uma rodada ativa com o resultado informado e liquida
// as apostas numa única transação. Chamadas repetidas ou concorrentes
// recebem ErrAlreadySettled sem pagar de novo.
func (e *Engine) SubmitResult(ctx context.Context, roundID, result string) (domain.Round, domain.Summary, error) {
	result = strings.TrimSpace(result)
	if result == "" {
		e.observe("settle", domain.ErrMissingResult)
		return domain.Round{}, domain.Summary{}, domain.ErrMissingResult
	}

	now := e.clock.Now()
	var (
		round   domain.Round
		summary domain.Summary
		winners []domain.Bet
	)

	err := e.inTx(ctx, "settle", roundID, func(tx Tx) error {
		r, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		switch r.Status {
		case domain.StatusActive:
		case domain.StatusCompleted:
			return domain.ErrAlreadySettled
		default:
			return &domain.TransitionError{RoundID: r.ID, From: r.Status, To: domain.StatusCompleted}
		}
		if now.Before(r.EndTime) {
			return &domain.TransitionError{
				RoundID: r.ID, From: r.Status, To: domain.StatusCompleted,
				Reason: "betting window still open",
			}
		}

		pending, err := tx.PendingBets(ctx, r.ID)
		if err != nil {
			return err
		}
		resolved, s := Resolve(pending, result, r.PayoutMultiplier)

		ws := make([]domain.Bet, 0, s.WinningBets)
		for _, b := range resolved {
			ok, err := tx.SetBetOutcome(ctx, OutcomeUpdate{
				BetID:           b.ID,
				Outcome:         b.Outcome,
				PotentialPayout: b.PotentialPayout,
				At:              now,
			})
			if err != nil {
				return err
			}
			if !ok {
				// outra liquidação já tocou esta aposta; aborta tudo
				return domain.ErrAlreadySettled
			}
			if b.Outcome == domain.OutcomeWon {
				if err := tx.Ledger().Credit(ctx, b.OwnerID, b.PotentialPayout, "payout:"+b.ID); err != nil {
					return err
				}
				ws = append(ws, b)
			}
		}

		// status por último: se não bater, a transação inteira é desfeita
		ok, err := tx.SetStatus(ctx, StatusUpdate{
			RoundID: r.ID,
			From:    []domain.Status{domain.StatusActive},
			To:      domain.StatusCompleted,
			Result:  &result,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadySettled
		}

		r.Status = domain.StatusCompleted
		r.Result = &result
		r.UpdatedAt = now
		r.SettledAt = &now
		round, summary, winners = r, s, ws
		return nil
	})
	e.observe("settle", err)
	if err != nil {
		if domain.IsNoop(err) {
			e.log.Info("duplicate settlement ignored", zap.String("round_id", roundID))
		}
		return domain.Round{}, domain.Summary{}, err
	}

	e.log.Info("round settled",
		zap.String("round_id", roundID),
		zap.String("result", result),
		zap.Int("total_bets", summary.TotalBets),
		zap.Int("winning_bets", summary.WinningBets),
		zap.Int64("total_bet_amount", summary.TotalBetAmount),
		zap.Int64("total_payout_amount", summary.TotalPayoutAmount),
	)
	if e.OnSettled != nil {
		e.OnSettled(summary)
	}

	e.notifier.NotifyStatus(ctx, round)
	for _, b := range winners {
		e.notifier.NotifyOutcome(ctx, domain.OutcomeNotice{
			BetID:       b.ID,
			RoundID:     b.RoundID,
			OwnerID:     b.OwnerID,
			Outcome:     domain.OutcomeWon,
			AmountCents: b.PotentialPayout,
		})
	}
	return round, summary, nil
}
