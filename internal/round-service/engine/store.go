package engine

import (
	"context"
	"time"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

// Store é o armazenamento durável de rodadas e apostas.
// Leituras fora de transação servem apenas para projeções; toda mutação
// passa por WithinTx.
type Store interface {
	CreateRound(ctx context.Context, r domain.Round) error
	GetRound(ctx context.Context, id string) (domain.Round, error)
	ListRounds(ctx context.Context, f RoundFilter) ([]domain.Round, error)
	ListBets(ctx context.Context, roundID string) ([]domain.Bet, error)
	ListBetsByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Bet, error)

	// WithinTx executa fn numa unidade atômica: ou tudo é efetivado ou nada.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx expõe as operações permitidas dentro da unidade atômica
type Tx interface {
	// LockRound trava a linha da rodada de forma exclusiva (liquidação, cancelamento, ativação)
	LockRound(ctx context.Context, id string) (domain.Round, error)
	// ShareRound trava de forma compartilhada; apostas concorrem entre si mas não com liquidação
	ShareRound(ctx context.Context, id string) (domain.Round, error)

	PendingBets(ctx context.Context, roundID string) ([]domain.Bet, error)
	InsertBet(ctx context.Context, b domain.Bet) error
	// SetBetOutcome só altera apostas ainda pending; false se outra operação chegou antes
	SetBetOutcome(ctx context.Context, u OutcomeUpdate) (bool, error)
	// SetStatus é o compare-and-set da rodada; false se o status atual não está em u.From
	SetStatus(ctx context.Context, u StatusUpdate) (bool, error)

	Ledger() Ledger
}

// Ledger é o saldo dos usuários, compartilhado com o fluxo de depósitos/saques.
// Referências repetidas são ignoradas (crédito/débito no máximo uma vez por ref).
type Ledger interface {
	Credit(ctx context.Context, ownerID string, amountCents int64, ref string) error
	Debit(ctx context.Context, ownerID string, amountCents int64, ref string) error
}

type RoundFilter struct {
	Status    *domain.Status
	OverdueAt *time.Time // só rodadas ativas com end_time <= OverdueAt
	Limit     int
}

type StatusUpdate struct {
	RoundID string
	From    []domain.Status
	To      domain.Status
	Result  *string
	At      time.Time
}

type OutcomeUpdate struct {
	BetID           string
	Outcome         domain.Outcome
	PotentialPayout int64
	At              time.Time
}
