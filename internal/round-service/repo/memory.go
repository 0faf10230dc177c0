package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
	"github.com/radieske/round-settlement-platform/internal/round-service/engine"
)

// Memory é um Store em memória para testes e execução local sem Postgres.
// Transações são serializadas por um único mutex e desfeitas por snapshot.
type Memory struct {
	mu       sync.Mutex
	rounds   map[string]domain.Round
	bets     map[string]domain.Bet
	order    []string // ids de apostas em ordem de inserção
	balances map[string]int64
	refs     map[string]bool // op+ref já aplicados no ledger

	// Fail, se definido, é consultado antes de cada escrita; erro aborta a transação
	Fail func(op string) error
}

func NewMemory() *Memory {
	return &Memory{
		rounds:   map[string]domain.Round{},
		bets:     map[string]domain.Bet{},
		balances: map[string]int64{},
		refs:     map[string]bool{},
	}
}

// Deposit credita saldo fora de transação (fundos de teste)
func (m *Memory) Deposit(ownerID string, cents int64) {
	m.mu.Lock()
	m.balances[ownerID] += cents
	m.mu.Unlock()
}

func (m *Memory) Balance(ownerID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[ownerID]
}

// Applied diz se a referência já foi lançada no ledger (ex.: "CREDIT", "payout:<bet>")
func (m *Memory) Applied(op, ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[op+"|"+ref]
}

func (m *Memory) CreateRound(ctx context.Context, r domain.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("create_round"); err != nil {
		return err
	}
	m.rounds[r.ID] = r
	return nil
}

func (m *Memory) GetRound(ctx context.Context, id string) (domain.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	return r, nil
}

func (m *Memory) ListRounds(ctx context.Context, f engine.RoundFilter) ([]domain.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Round
	for _, r := range m.rounds {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.OverdueAt != nil && !r.Overdue(*f.OverdueAt) {
			continue
		}
		out = append(out, r)
	}

	if f.OverdueAt != nil {
		sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ListBets(ctx context.Context, roundID string) ([]domain.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.betsOf(roundID, false), nil
}

func (m *Memory) ListBetsByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Bet
	for i := len(m.order) - 1; i >= 0; i-- {
		b := m.bets[m.order[i]]
		if b.OwnerID != ownerID {
			continue
		}
		out = append(out, b)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) WithinTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	tx := &memTx{m: m}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) betsOf(roundID string, pendingOnly bool) []domain.Bet {
	var out []domain.Bet
	for _, id := range m.order {
		b := m.bets[id]
		if b.RoundID != roundID {
			continue
		}
		if pendingOnly && b.Outcome != domain.OutcomePending {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (m *Memory) check(op string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op)
}

type memSnapshot struct {
	rounds   map[string]domain.Round
	bets     map[string]domain.Bet
	order    []string
	balances map[string]int64
	refs     map[string]bool
}

func (m *Memory) snapshot() memSnapshot {
	s := memSnapshot{
		rounds:   make(map[string]domain.Round, len(m.rounds)),
		bets:     make(map[string]domain.Bet, len(m.bets)),
		order:    append([]string(nil), m.order...),
		balances: make(map[string]int64, len(m.balances)),
		refs:     make(map[string]bool, len(m.refs)),
	}
	for k, v := range m.rounds {
		s.rounds[k] = v
	}
	for k, v := range m.bets {
		s.bets[k] = v
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	for k, v := range m.refs {
		s.refs[k] = v
	}
	return s
}

func (m *Memory) restore(s memSnapshot) {
	m.rounds, m.bets, m.order, m.balances, m.refs = s.rounds, s.bets, s.order, s.balances, s.refs
}

// memTx opera direto nos mapas; o mutex do Memory já está com o WithinTx
type memTx struct{ m *Memory }

func (t *memTx) LockRound(ctx context.Context, id string) (domain.Round, error) {
	r, ok := t.m.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	return r, nil
}

func (t *memTx) ShareRound(ctx context.Context, id string) (domain.Round, error) {
	return t.LockRound(ctx, id)
}

func (t *memTx) PendingBets(ctx context.Context, roundID string) ([]domain.Bet, error) {
	return t.m.betsOf(roundID, true), nil
}

func (t *memTx) InsertBet(ctx context.Context, b domain.Bet) error {
	if err := t.m.check("insert_bet"); err != nil {
		return err
	}
	t.m.bets[b.ID] = b
	t.m.order = append(t.m.order, b.ID)
	return nil
}

func (t *memTx) SetBetOutcome(ctx context.Context, u engine.OutcomeUpdate) (bool, error) {
	if err := t.m.check("set_bet_outcome"); err != nil {
		return false, err
	}
	b, ok := t.m.bets[u.BetID]
	if !ok || b.Outcome != domain.OutcomePending {
		return false, nil
	}
	at := u.At
	b.Outcome = u.Outcome
	b.PotentialPayout = u.PotentialPayout
	b.SettledAt = &at
	t.m.bets[b.ID] = b
	return true, nil
}

func (t *memTx) SetStatus(ctx context.Context, u engine.StatusUpdate) (bool, error) {
	if err := t.m.check("set_status"); err != nil {
		return false, err
	}
	r, ok := t.m.rounds[u.RoundID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range u.From {
		if r.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	at := u.At
	r.Status = u.To
	r.UpdatedAt = at
	switch u.To {
	case domain.StatusCompleted:
		if u.Result == nil {
			return false, domain.ErrMissingResult
		}
		res := *u.Result
		r.Result = &res
		r.SettledAt = &at
	case domain.StatusCancelled:
		r.CancelledAt = &at
	}
	t.m.rounds[r.ID] = r
	return true, nil
}

func (t *memTx) Ledger() engine.Ledger { return memLedger{m: t.m} }

type memLedger struct{ m *Memory }

func (l memLedger) Credit(ctx context.Context, ownerID string, amountCents int64, ref string) error {
	return l.apply("CREDIT", ownerID, amountCents, ref)
}

func (l memLedger) Debit(ctx context.Context, ownerID string, amountCents int64, ref string) error {
	if l.m.balances[ownerID] < amountCents {
		return domain.ErrInsufficientFunds
	}
	return l.apply("DEBIT", ownerID, -amountCents, ref)
}

func (l memLedger) apply(op, ownerID string, delta int64, ref string) error {
	if err := l.m.check("ledger_" + op); err != nil {
		return err
	}
	key := op + "|" + ref
	if l.m.refs[key] {
		return nil
	}
	l.m.refs[key] = true
	l.m.balances[ownerID] += delta
	return nil
}

var _ engine.Store = (*Memory)(nil)
