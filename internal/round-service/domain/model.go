package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Round é uma rodada de apostas com janela [StartTime, EndTime).
// Result só é preenchido junto com StatusCompleted.
type Round struct {
	ID               string          `json:"id"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          time.Time       `json:"end_time"`
	Status           Status          `json:"status"`
	Result           *string         `json:"result,omitempty"`
	PayoutMultiplier decimal.Decimal `json:"payout_multiplier"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	SettledAt        *time.Time      `json:"settled_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
}

// AcceptsBets: rodada ativa e now dentro de [StartTime, EndTime)
func (r Round) AcceptsBets(now time.Time) bool {
	return r.Status == StatusActive && !now.Before(r.StartTime) && now.Before(r.EndTime)
}

// Overdue: janela encerrada e rodada ainda ativa, aguardando resultado
func (r Round) Overdue(now time.Time) bool {
	return r.Status == StatusActive && !now.Before(r.EndTime)
}

// Remaining é o tempo até o fim da janela, nunca negativo
func (r Round) Remaining(now time.Time) time.Duration {
	if r.Status.Terminal() || !now.Before(r.EndTime) {
		return 0
	}
	return r.EndTime.Sub(now)
}

// Bet é uma aposta. Valores monetários em centavos.
type Bet struct {
	ID              string     `json:"id"`
	RoundID         string     `json:"round_id"`
	OwnerID         string     `json:"owner_id"`
	ChosenValue     string     `json:"chosen_value"`
	StakeCents      int64      `json:"stake_cents"`
	PotentialPayout int64      `json:"potential_payout_cents"`
	Outcome         Outcome    `json:"outcome"`
	PlacedAt        time.Time  `json:"placed_at"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
}

// Summary é o resumo financeiro de uma liquidação
type Summary struct {
	TotalBets         int   `json:"total_bets"`
	WinningBets       int   `json:"winning_bets"`
	TotalBetAmount    int64 `json:"total_bet_amount"`
	TotalPayoutAmount int64 `json:"total_payout_amount"`
}

// OutcomeNotice é o aviso enviado ao dono de uma aposta após o commit
type OutcomeNotice struct {
	BetID       string
	RoundID     string
	OwnerID     string
	Outcome     Outcome
	AmountCents int64
}
