package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateRoundRequest struct {
	StartTime        time.Time        `json:"start_time"`
	EndTime          time.Time        `json:"end_time"`
	PayoutMultiplier *decimal.Decimal `json:"payout_multiplier,omitempty"` // opcional; default da config
}

type SubmitResultRequest struct {
	Result string `json:"result"`
}

type PlaceBetRequest struct {
	UserID      string `json:"user_id"`
	ChosenValue string `json:"chosen_value"`
	StakeCents  int64  `json:"stake_cents"`
}
