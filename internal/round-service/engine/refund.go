package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

// Cancel cancela uma rodada scheduled ou active e devolve o stake de cada
// aposta pending, tudo numa transação. Rodada já cancelada devolve
// ErrAlreadyCancelled; rodada liquidada é transição inválida.
func (e *Engine) Cancel(ctx context.Context, roundID string) (domain.Round, error) {
	now := e.clock.Now()
	var (
		round    domain.Round
		refunded []domain.Bet
		total    int64
	)

	err := e.inTx(ctx, "cancel", roundID, func(tx Tx) error {
		r, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		switch r.Status {
		case domain.StatusScheduled, domain.StatusActive:
		case domain.StatusCancelled:
			return domain.ErrAlreadyCancelled
		default:
			return &domain.TransitionError{RoundID: r.ID, From: r.Status, To: domain.StatusCancelled}
		}

		pending, err := tx.PendingBets(ctx, r.ID)
		if err != nil {
			return err
		}

		rs := make([]domain.Bet, 0, len(pending))
		var sum int64
		for _, b := range pending {
			ok, err := tx.SetBetOutcome(ctx, OutcomeUpdate{
				BetID:           b.ID,
				Outcome:         domain.OutcomeRefunded,
				PotentialPayout: b.PotentialPayout,
				At:              now,
			})
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrAlreadyCancelled
			}
			if err := tx.Ledger().Credit(ctx, b.OwnerID, b.StakeCents, "refund:"+b.ID); err != nil {
				return err
			}
			b.Outcome = domain.OutcomeRefunded
			rs = append(rs, b)
			sum += b.StakeCents
		}

		ok, err := tx.SetStatus(ctx, StatusUpdate{
			RoundID: r.ID,
			From:    []domain.Status{domain.StatusScheduled, domain.StatusActive},
			To:      domain.StatusCancelled,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyCancelled
		}

		r.Status = domain.StatusCancelled
		r.UpdatedAt = now
		r.CancelledAt = &now
		round, refunded, total = r, rs, sum
		return nil
	})
	e.observe("cancel", err)
	if err != nil {
		if domain.IsNoop(err) {
			e.log.Info("duplicate cancellation ignored", zap.String("round_id", roundID))
		}
		return domain.Round{}, err
	}

	e.log.Info("round cancelled",
		zap.String("round_id", roundID),
		zap.Int("refunded_bets", len(refunded)),
		zap.Int64("refunded_amount", total),
	)
	if e.OnRefunded != nil {
		e.OnRefunded(len(refunded), total)
	}

	e.notifier.NotifyStatus(ctx, round)
	for _, b := range refunded {
		e.notifier.NotifyOutcome(ctx, domain.OutcomeNotice{
			BetID:       b.ID,
			RoundID:     b.RoundID,
			OwnerID:     b.OwnerID,
			Outcome:     domain.OutcomeRefunded,
			AmountCents: b.StakeCents,
		})
	}
	return round, nil
}
