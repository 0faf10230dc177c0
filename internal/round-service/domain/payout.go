package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxStakeCents é o maior stake aceito numa aposta. Com o multiplicador
// máximo (NUMERIC(10,4)) o retorno ainda cabe em int64.
const MaxStakeCents int64 = 1_000_000_000_000

var (
	minMultiplier = decimal.NewFromInt(1)
	maxMultiplier = decimal.RequireFromString("999999.9999")
	maxCents      = decimal.NewFromInt(math.MaxInt64)
)

// Payout calcula o retorno bruto de uma aposta vencedora (stake incluído).
// Arredonda para baixo no centavo; a fração nunca é paga.
func Payout(stakeCents int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(stakeCents).Mul(multiplier).Floor().IntPart()
}

// ValidateStake exige 0 < stake <= MaxStakeCents e retorno representável em centavos
func ValidateStake(stakeCents int64, multiplier decimal.Decimal) error {
	if stakeCents <= 0 {
		return ErrInvalidStake
	}
	if stakeCents > MaxStakeCents {
		return fmt.Errorf("%w: stake above %d cents", ErrInvalidStake, MaxStakeCents)
	}
	if decimal.NewFromInt(stakeCents).Mul(multiplier).Floor().GreaterThan(maxCents) {
		return fmt.Errorf("%w: payout overflows", ErrInvalidStake)
	}
	return nil
}

// ValidateMultiplier exige 1 <= multiplicador <= 999999.9999 com no máximo 4 casas (NUMERIC(10,4))
func ValidateMultiplier(m decimal.Decimal) error {
	if m.LessThan(minMultiplier) || m.GreaterThan(maxMultiplier) {
		return ErrInvalidMultiplier
	}
	if !m.Equal(m.Truncate(4)) {
		return ErrInvalidMultiplier
	}
	return nil
}

// ParseMultiplier lê um multiplicador textual (ex.: config) e o valida
func ParseMultiplier(s string) (decimal.Decimal, error) {
	m, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidMultiplier, err)
	}
	if err := ValidateMultiplier(m); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", err, s)
	}
	return m, nil
}

// AddCents soma valores em centavos saturando em math.MaxInt64
func AddCents(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
