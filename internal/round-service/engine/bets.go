package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

type PlaceBetRequest struct {
	RoundID     string
	OwnerID     string
	ChosenValue string
	StakeCents  int64
}

// PlaceBet registra uma aposta e debita o stake na mesma transação.
// Só aceita com a rodada ativa e now dentro de [start_time, end_time).
func (e *Engine) PlaceBet(ctx context.Context, req PlaceBetRequest) (domain.Bet, error) {
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.ChosenValue = strings.TrimSpace(req.ChosenValue)
	if req.StakeCents <= 0 {
		e.observe("bet", domain.ErrInvalidStake)
		return domain.Bet{}, domain.ErrInvalidStake
	}
	if req.OwnerID == "" || req.ChosenValue == "" {
		e.observe("bet", domain.ErrInvalidBet)
		return domain.Bet{}, fmt.Errorf("%w: owner and chosen value are required", domain.ErrInvalidBet)
	}

	now := e.clock.Now()
	var bet domain.Bet

	err := e.inTx(ctx, "bet", req.RoundID, func(tx Tx) error {
		r, err := tx.ShareRound(ctx, req.RoundID)
		if err != nil {
			return err
		}
		if !r.AcceptsBets(now) {
			return fmt.Errorf("%w: round %s %s", domain.ErrBettingClosed, r.ID, bettingState(r, now))
		}
		if err := domain.ValidateStake(req.StakeCents, r.PayoutMultiplier); err != nil {
			return err
		}

		b := domain.Bet{
			ID:              uuid.NewString(),
			RoundID:         r.ID,
			OwnerID:         req.OwnerID,
			ChosenValue:     req.ChosenValue,
			StakeCents:      req.StakeCents,
			PotentialPayout: domain.Payout(req.StakeCents, r.PayoutMultiplier),
			Outcome:         domain.OutcomePending,
			PlacedAt:        now,
		}
		if err := tx.Ledger().Debit(ctx, b.OwnerID, b.StakeCents, "stake:"+b.ID); err != nil {
			return err
		}
		if err := tx.InsertBet(ctx, b); err != nil {
			return err
		}
		bet = b
		return nil
	})
	e.observe("bet", err)
	if err != nil {
		return domain.Bet{}, err
	}

	e.log.Debug("bet placed",
		zap.String("bet_id", bet.ID),
		zap.String("round_id", bet.RoundID),
		zap.String("owner_id", bet.OwnerID),
		zap.Int64("stake_cents", bet.StakeCents),
	)
	return bet, nil
}

func bettingState(r domain.Round, now time.Time) string {
	switch {
	case r.Status != domain.StatusActive:
		return "is " + r.Status.String()
	case now.Before(r.StartTime):
		return "has not started"
	default:
		return "window closed"
	}
}
