package events

// BetOutcome é emitido pelo round-service após o commit de uma liquidação
// (vencedores) ou de um cancelamento (apostas estornadas).
type BetOutcome struct {
	BetID       string `json:"bet_id"`
	RoundID     string `json:"round_id"`
	UserID      string `json:"user_id"`
	Outcome     string `json:"outcome"` // "won" | "refunded"
	AmountCents int64  `json:"amount_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
