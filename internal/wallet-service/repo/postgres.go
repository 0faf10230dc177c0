package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Postgres implementa operações de carteira em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

const (
	OpCredit  = "CREDIT"
	OpDebit   = "DEBIT"
	OpDeposit = "DEPOSIT"
)

// Entry é uma linha do ledger da carteira
type Entry struct {
	ID            int64
	OperationType string
	AmountCents   int64
	ExternalRef   string
	CreatedAt     time.Time
}

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	id, bal, err := lockWallet(ctx, tx, userID, true)
	if err != nil {
		return "", 0, err
	}
	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return id, bal, nil
}

// Deposit credita saldo de fora do jogo (fluxo de pagamentos).
// Repetir o mesmo externalRef não credita de novo.
func (p *Postgres) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	if amount <= 0 {
		return "", 0, ErrInvalidAmount
	}
	if externalRef == "" {
		externalRef = uuid.NewString()
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	id, bal, err := lockWallet(ctx, tx, userID, true)
	if err != nil {
		return "", 0, err
	}
	newBalance, err = apply(ctx, tx, id, bal, OpDeposit, amount, externalRef)
	if err != nil {
		return "", 0, err
	}
	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return id, newBalance, nil
}

// Ledger lista os lançamentos mais recentes da carteira do usuário
func (p *Postgres) Ledger(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT l.id, l.operation_type, l.amount_cents, l.external_ref, l.created_at
		FROM wallet_ledger l
		JOIN wallets w ON w.id = l.wallet_id
		WHERE w.user_id=$1
		ORDER BY l.id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OperationType, &e.AmountCents, &e.ExternalRef, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TxLedger movimenta saldo dentro de uma transação aberta por outro serviço
// (liquidação, estorno, aposta), para que saldo e estado da rodada sejam
// efetivados juntos.
type TxLedger struct{ tx *sql.Tx }

func NewTxLedger(tx *sql.Tx) *TxLedger { return &TxLedger{tx: tx} }

func (l *TxLedger) Credit(ctx context.Context, userID string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	id, bal, err := lockWallet(ctx, l.tx, userID, true)
	if err != nil {
		return err
	}
	_, err = apply(ctx, l.tx, id, bal, OpCredit, amount, ref)
	return err
}

func (l *TxLedger) Debit(ctx context.Context, userID string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	id, bal, err := lockWallet(ctx, l.tx, userID, false)
	if errors.Is(err, ErrNotFound) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	_, err = apply(ctx, l.tx, id, bal, OpDebit, -amount, ref)
	return err
}

// lockWallet trava a carteira (FOR UPDATE), criando-a se create=true
func lockWallet(ctx context.Context, tx *sql.Tx, userID string, create bool) (string, int64, error) {
	var id string
	var bal int64
	err := tx.QueryRowContext(ctx, `SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&id, &bal)
	if err == nil {
		return id, bal, nil
	}
	if err != sql.ErrNoRows {
		return "", 0, fmt.Errorf("lock wallet: %w", err)
	}
	if !create {
		return "", 0, ErrNotFound
	}

	id = uuid.New().String()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1)`,
		id, userID); err != nil {
		return "", 0, fmt.Errorf("create wallet: %w", err)
	}
	return id, 0, nil
}

// apply grava o lançamento e ajusta o saldo. O lançamento vem primeiro:
// se (wallet, operação, ref) já existe nada muda e o saldo atual é devolvido.
func apply(ctx context.Context, tx *sql.Tx, walletID string, balance int64, op string, delta int64, ref string) (int64, error) {
	if balance+delta < 0 {
		return balance, ErrInsufficientFunds
	}
	amount := delta
	if amount < 0 {
		amount = -amount
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, external_ref, description)
		VALUES($1,$2,$3,$4,$5)
		ON CONFLICT (wallet_id, operation_type, external_ref) DO NOTHING`,
		walletID, op, amount, ref, op+":"+ref)
	if err != nil {
		return balance, fmt.Errorf("insert ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return balance, err
	}
	if n == 0 {
		return balance, nil // já aplicado
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2`,
		delta, walletID); err != nil {
		return balance, fmt.Errorf("update balance: %w", err)
	}
	return balance + delta, nil
}
