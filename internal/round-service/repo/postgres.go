package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
	"github.com/radieske/round-settlement-platform/internal/round-service/engine"
	wrepo "github.com/radieske/round-settlement-platform/internal/wallet-service/repo"
)

// Postgres persiste rodadas e apostas. O saldo é movimentado na mesma
// transação através do ledger da wallet.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const roundColumns = `id, start_time, end_time, status, result, payout_multiplier,
	created_at, updated_at, settled_at, cancelled_at`

const betColumns = `id, round_id, owner_id, chosen_value, stake_cents,
	potential_payout_cents, outcome, placed_at, settled_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(s scanner) (domain.Round, error) {
	var (
		r         domain.Round
		status    string
		result    sql.NullString
		settled   sql.NullTime
		cancelled sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.StartTime, &r.EndTime, &status, &result, &r.PayoutMultiplier,
		&r.CreatedAt, &r.UpdatedAt, &settled, &cancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Round{}, domain.ErrRoundNotFound
		}
		return domain.Round{}, err
	}

	st, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Round{}, fmt.Errorf("round %s: %w", r.ID, err)
	}
	r.Status = st
	if result.Valid {
		v := result.String
		r.Result = &v
	}
	r.SettledAt = nullTime(settled)
	r.CancelledAt = nullTime(cancelled)
	r.StartTime, r.EndTime = r.StartTime.UTC(), r.EndTime.UTC()
	return r, nil
}

func scanBet(s scanner) (domain.Bet, error) {
	var (
		b       domain.Bet
		outcome string
		settled sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.RoundID, &b.OwnerID, &b.ChosenValue, &b.StakeCents,
		&b.PotentialPayout, &outcome, &b.PlacedAt, &settled); err != nil {
		return domain.Bet{}, err
	}
	o, err := domain.ParseOutcome(outcome)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet %s: %w", b.ID, err)
	}
	b.Outcome = o
	b.SettledAt = nullTime(settled)
	return b, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func (p *Postgres) CreateRound(ctx context.Context, r domain.Round) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rounds(id, start_time, end_time, status, payout_multiplier, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.StartTime, r.EndTime, r.Status.String(), r.PayoutMultiplier, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *Postgres) GetRound(ctx context.Context, id string) (domain.Round, error) {
	return scanRound(p.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id=$1`, id))
}

func (p *Postgres) ListRounds(ctx context.Context, f engine.RoundFilter) ([]domain.Round, error) {
	q := `SELECT ` + roundColumns + ` FROM rounds`
	var args []any
	order := ` ORDER BY start_time DESC`

	switch {
	case f.OverdueAt != nil:
		args = append(args, domain.StatusActive.String(), *f.OverdueAt)
		q += ` WHERE status=$1 AND end_time <= $2`
		order = ` ORDER BY end_time ASC`
	case f.Status != nil:
		args = append(args, f.Status.String())
		q += ` WHERE status=$1`
	}
	q += order
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) ListBets(ctx context.Context, roundID string) ([]domain.Bet, error) {
	return queryBets(ctx, p.db, `SELECT `+betColumns+` FROM bets WHERE round_id=$1 ORDER BY placed_at, id`, roundID)
}

func (p *Postgres) ListBetsByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Bet, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return queryBets(ctx, p.db,
		`SELECT `+betColumns+` FROM bets WHERE owner_id=$1 ORDER BY placed_at DESC LIMIT $2`, ownerID, limit)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryBets(ctx context.Context, q querier, query string, args ...any) ([]domain.Bet, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// WithinTx abre a transação, entrega um Tx ao motor e faz commit só se fn
// não devolver erro. Timeout do ctx desfaz tudo.
func (p *Postgres) WithinTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) LockRound(ctx context.Context, id string) (domain.Round, error) {
	return scanRound(t.tx.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) ShareRound(ctx context.Context, id string) (domain.Round, error) {
	return scanRound(t.tx.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id=$1 FOR SHARE`, id))
}

func (t *pgTx) PendingBets(ctx context.Context, roundID string) ([]domain.Bet, error) {
	return queryBets(ctx, t.tx,
		`SELECT `+betColumns+` FROM bets WHERE round_id=$1 AND outcome=$2 ORDER BY placed_at, id FOR UPDATE`,
		roundID, domain.OutcomePending.String())
}

func (t *pgTx) InsertBet(ctx context.Context, b domain.Bet) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bets(id, round_id, owner_id, chosen_value, stake_cents, potential_payout_cents, outcome, placed_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.RoundID, b.OwnerID, b.ChosenValue, b.StakeCents, b.PotentialPayout, b.Outcome.String(), b.PlacedAt)
	return err
}

func (t *pgTx) SetBetOutcome(ctx context.Context, u engine.OutcomeUpdate) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE bets SET outcome=$1, potential_payout_cents=$2, settled_at=$3
		WHERE id=$4 AND outcome=$5`,
		u.Outcome.String(), u.PotentialPayout, u.At, u.BetID, domain.OutcomePending.String())
	if err != nil {
		return false, err
	}
	return affected(res)
}

// SetStatus é o compare-and-set: só escreve se o status atual estiver em u.From
func (t *pgTx) SetStatus(ctx context.Context, u engine.StatusUpdate) (bool, error) {
	from := make([]string, len(u.From))
	for i, s := range u.From {
		from[i] = s.String()
	}

	var res sql.Result
	var err error
	switch u.To {
	case domain.StatusCompleted:
		res, err = t.tx.ExecContext(ctx, `
			UPDATE rounds SET status=$1, result=$2, updated_at=$3, settled_at=$3
			WHERE id=$4 AND status = ANY($5)`,
			u.To.String(), u.Result, u.At, u.RoundID, pq.Array(from))
	case domain.StatusCancelled:
		res, err = t.tx.ExecContext(ctx, `
			UPDATE rounds SET status=$1, updated_at=$2, cancelled_at=$2
			WHERE id=$3 AND status = ANY($4)`,
			u.To.String(), u.At, u.RoundID, pq.Array(from))
	default:
		res, err = t.tx.ExecContext(ctx, `
			UPDATE rounds SET status=$1, updated_at=$2
			WHERE id=$3 AND status = ANY($4)`,
			u.To.String(), u.At, u.RoundID, pq.Array(from))
	}
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (t *pgTx) Ledger() engine.Ledger { return walletLedger{l: wrepo.NewTxLedger(t.tx)} }

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// walletLedger traduz os erros da wallet para o vocabulário do motor
type walletLedger struct{ l *wrepo.TxLedger }

func (w walletLedger) Credit(ctx context.Context, ownerID string, amountCents int64, ref string) error {
	return ledgerErr(w.l.Credit(ctx, ownerID, amountCents, ref))
}

func (w walletLedger) Debit(ctx context.Context, ownerID string, amountCents int64, ref string) error {
	return ledgerErr(w.l.Debit(ctx, ownerID, amountCents, ref))
}

func ledgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, wrepo.ErrInsufficientFunds):
		return domain.ErrInsufficientFunds
	case errors.Is(err, wrepo.ErrInvalidAmount):
		return fmt.Errorf("%w: %v", domain.ErrInvalidStake, err)
	default:
		return err
	}
}

var _ engine.Store = (*Postgres)(nil)
