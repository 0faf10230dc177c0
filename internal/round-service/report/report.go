// Package report monta projeções somente leitura sobre rodadas e apostas
// (estatísticas por valor escolhido, lista de vencedores).
package report

import (
	"sort"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

// ValueStats agrega as apostas de um valor escolhido
type ValueStats struct {
	ChosenValue string `json:"chosen_value"`
	Bets        int    `json:"bets"`
	StakeCents  int64  `json:"stake_cents"`
	Owners      int    `json:"owners"`
}

type RoundStats struct {
	RoundID    string         `json:"round_id"`
	Status     domain.Status  `json:"status"`
	Result     *string        `json:"result,omitempty"`
	TotalBets  int            `json:"total_bets"`
	TotalStake int64          `json:"total_stake_cents"`
	ByValue    []ValueStats   `json:"by_value"`
	ByOutcome  map[string]int `json:"by_outcome"`
}

type Winner struct {
	BetID       string `json:"bet_id"`
	OwnerID     string `json:"owner_id"`
	ChosenValue string `json:"chosen_value"`
	StakeCents  int64  `json:"stake_cents"`
	PayoutCents int64  `json:"payout_cents"`
}

// Stats agrupa as apostas por valor escolhido, do mais apostado para o menos
func Stats(r domain.Round, bets []domain.Bet) RoundStats {
	out := RoundStats{
		RoundID:   r.ID,
		Status:    r.Status,
		Result:    r.Result,
		ByOutcome: map[string]int{},
	}

	idx := map[string]int{}
	owners := map[string]map[string]struct{}{}
	for _, b := range bets {
		out.TotalBets++
		out.TotalStake += b.StakeCents
		out.ByOutcome[b.Outcome.String()]++

		i, ok := idx[b.ChosenValue]
		if !ok {
			i = len(out.ByValue)
			idx[b.ChosenValue] = i
			out.ByValue = append(out.ByValue, ValueStats{ChosenValue: b.ChosenValue})
			owners[b.ChosenValue] = map[string]struct{}{}
		}
		out.ByValue[i].Bets++
		out.ByValue[i].StakeCents += b.StakeCents
		owners[b.ChosenValue][b.OwnerID] = struct{}{}
	}
	for i := range out.ByValue {
		out.ByValue[i].Owners = len(owners[out.ByValue[i].ChosenValue])
	}

	sort.SliceStable(out.ByValue, func(i, j int) bool {
		if out.ByValue[i].StakeCents != out.ByValue[j].StakeCents {
			return out.ByValue[i].StakeCents > out.ByValue[j].StakeCents
		}
		return out.ByValue[i].ChosenValue < out.ByValue[j].ChosenValue
	})
	return out
}

// Winners lista as apostas vencedoras, maior prêmio primeiro
func Winners(bets []domain.Bet) []Winner {
	out := make([]Winner, 0)
	for _, b := range bets {
		if b.Outcome != domain.OutcomeWon {
			continue
		}
		out = append(out, Winner{
			BetID:       b.ID,
			OwnerID:     b.OwnerID,
			ChosenValue: b.ChosenValue,
			StakeCents:  b.StakeCents,
			PayoutCents: b.PotentialPayout,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PayoutCents > out[j].PayoutCents })
	return out
}
