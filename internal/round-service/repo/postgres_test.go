package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
	"github.com/radieske/round-settlement-platform/internal/round-service/engine"
)

var (
	t0       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	roundCol = []string{"id", "start_time", "end_time", "status", "result", "payout_multiplier",
		"created_at", "updated_at", "settled_at", "cancelled_at"}
)

func TestGetRound(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr error
		check   func(t *testing.T, r domain.Round)
	}{
		{
			name: "completed round with result",
			rows: sqlmock.NewRows(roundCol).AddRow("r1", t0, t0.Add(time.Minute), "completed", "A", "1.95",
				t0, t0, t0.Add(2*time.Minute), nil),
			check: func(t *testing.T, r domain.Round) {
				if r.Status != domain.StatusCompleted || r.Result == nil || *r.Result != "A" {
					t.Errorf("unexpected round %+v", r)
				}
				if !r.PayoutMultiplier.Equal(decimal.RequireFromString("1.95")) {
					t.Errorf("multiplier = %s", r.PayoutMultiplier)
				}
				if r.SettledAt == nil || r.CancelledAt != nil {
					t.Errorf("timestamps: settled=%v cancelled=%v", r.SettledAt, r.CancelledAt)
				}
			},
		},
		{
			name:    "missing round",
			rows:    sqlmock.NewRows(roundCol),
			wantErr: domain.ErrRoundNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery(`FROM rounds WHERE id=\$1`).WithArgs("r1").WillReturnRows(tt.rows)

			r, err := NewPostgres(db).GetRound(context.Background(), "r1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetRound: %v", err)
			}
			tt.check(t, r)
		})
	}
}

func TestSetStatusCompareAndSet(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"status matched", 1, true},
		{"status changed by someone else", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock: %v", err)
			}
			defer db.Close()

			result := "A"
			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE rounds SET status=\$1, result=\$2`).
				WithArgs("completed", "A", t0, "r1", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectCommit()

			var got bool
			err = NewPostgres(db).WithinTx(context.Background(), func(tx engine.Tx) error {
				var err error
				got, err = tx.SetStatus(context.Background(), engine.StatusUpdate{
					RoundID: "r1",
					From:    []domain.Status{domain.StatusActive},
					To:      domain.StatusCompleted,
					Result:  &result,
					At:      t0,
				})
				return err
			})
			if err != nil {
				t.Fatalf("WithinTx: %v", err)
			}
			if got != tt.want {
				t.Errorf("SetStatus = %v, want %v", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expectations: %v", err)
			}
		})
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM rounds WHERE id=\$1 FOR UPDATE`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(roundCol).AddRow("r1", t0, t0.Add(time.Minute), "active", nil, "2",
			t0, t0, nil, nil))
	mock.ExpectExec(`UPDATE bets SET outcome`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = NewPostgres(db).WithinTx(context.Background(), func(tx engine.Tx) error {
		if _, err := tx.LockRound(context.Background(), "r1"); err != nil {
			return err
		}
		_, err := tx.SetBetOutcome(context.Background(), engine.OutcomeUpdate{
			BetID: "b1", Outcome: domain.OutcomeWon, PotentialPayout: 200, At: t0,
		})
		return err
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPendingBetsAndLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	betCol := []string{"id", "round_id", "owner_id", "chosen_value", "stake_cents",
		"potential_payout_cents", "outcome", "placed_at", "settled_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bets WHERE round_id=\$1 AND outcome=\$2`).
		WithArgs("r1", "pending").
		WillReturnRows(sqlmock.NewRows(betCol).
			AddRow("b1", "r1", "u1", "A", int64(100), int64(200), "pending", t0, nil))
	mock.ExpectQuery(`SELECT id, balance_cents FROM wallets`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance_cents"}).AddRow("w1", int64(10)))
	mock.ExpectRollback()

	err = NewPostgres(db).WithinTx(context.Background(), func(tx engine.Tx) error {
		bets, err := tx.PendingBets(context.Background(), "r1")
		if err != nil {
			return err
		}
		if len(bets) != 1 || bets[0].Outcome != domain.OutcomePending {
			t.Errorf("unexpected bets %+v", bets)
		}
		return tx.Ledger().Debit(context.Background(), "u1", 100, "stake:b9")
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected domain.ErrInsufficientFunds, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestListRoundsOverdue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := t0.Add(time.Hour)
	mock.ExpectQuery(`WHERE status=\$1 AND end_time <= \$2 ORDER BY end_time ASC LIMIT \$3`).
		WithArgs("active", now, 10).
		WillReturnRows(sqlmock.NewRows(roundCol).
			AddRow("r1", t0, t0.Add(time.Minute), "active", nil, "2", t0, t0, nil, nil))

	rs, err := NewPostgres(db).ListRounds(context.Background(), engine.RoundFilter{OverdueAt: &now, Limit: 10})
	if err != nil {
		t.Fatalf("ListRounds: %v", err)
	}
	if len(rs) != 1 || !rs[0].Overdue(now) {
		t.Errorf("unexpected rounds %+v", rs)
	}
}
