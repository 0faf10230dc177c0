package dto

import (
	"time"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

// RoundView é a rodada como o cliente vê. Overdue e SecondsRemaining são
// calculados com o relógio do servidor e servem só para exibição.
type RoundView struct {
	domain.Round
	BettingOpen      bool  `json:"betting_open"`
	Overdue          bool  `json:"overdue"`
	SecondsRemaining int64 `json:"seconds_remaining"`
}

func NewRoundView(r domain.Round, now time.Time) RoundView {
	return RoundView{
		Round:            r,
		BettingOpen:      r.AcceptsBets(now),
		Overdue:          r.Overdue(now),
		SecondsRemaining: int64(r.Remaining(now) / time.Second),
	}
}

func NewRoundViews(rs []domain.Round, now time.Time) []RoundView {
	out := make([]RoundView, 0, len(rs))
	for _, r := range rs {
		out = append(out, NewRoundView(r, now))
	}
	return out
}

type SettlementResponse struct {
	Round   RoundView       `json:"round"`
	Summary *domain.Summary `json:"summary,omitempty"`
	Noop    bool            `json:"noop"`
}

type CancelResponse struct {
	Round RoundView `json:"round"`
	Noop  bool      `json:"noop"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
