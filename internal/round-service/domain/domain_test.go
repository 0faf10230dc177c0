package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusScheduled, StatusActive, StatusCompleted, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusScheduled, StatusActive}:    true,
		{StatusScheduled, StatusCancelled}: true,
		{StatusActive, StatusCompleted}:    true,
		{StatusActive, StatusCancelled}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		S Status `json:"s"`
	}{StatusCancelled})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"s":"cancelled"}` {
		t.Errorf("got %s", b)
	}

	var out struct {
		S Status `json:"s"`
	}
	if err := json.Unmarshal([]byte(`{"s":"active"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.S != StatusActive {
		t.Errorf("got %s", out.S)
	}
	if err := json.Unmarshal([]byte(`{"s":"paused"}`), &out); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := json.Marshal(struct{ S Status }{}); err == nil {
		t.Error("zero status must not marshal")
	}
}

func TestPayout(t *testing.T) {
	tests := []struct {
		stake int64
		mult  string
		want  int64
	}{
		{100, "2", 200},
		{300, "1.95", 585},
		{333, "1.5", 499}, // 499.5 arredonda para baixo
		{1, "1.9999", 1},
		{250, "1", 250},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d x %s", tt.stake, tt.mult), func(t *testing.T) {
			got := Payout(tt.stake, decimal.RequireFromString(tt.mult))
			if got != tt.want {
				t.Errorf("Payout = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateMultiplier(t *testing.T) {
	for _, v := range []string{"1", "1.95", "10.1234", "999999.9999"} {
		if err := ValidateMultiplier(decimal.RequireFromString(v)); err != nil {
			t.Errorf("%s: unexpected error %v", v, err)
		}
	}
	for _, v := range []string{"0", "0.99", "-2", "1.00001", "1000000"} {
		if err := ValidateMultiplier(decimal.RequireFromString(v)); !errors.Is(err, ErrInvalidMultiplier) {
			t.Errorf("%s: expected ErrInvalidMultiplier, got %v", v, err)
		}
	}
}

func TestParseMultiplier(t *testing.T) {
	m, err := ParseMultiplier(" 1.95 ")
	if err != nil || !m.Equal(decimal.RequireFromString("1.95")) {
		t.Fatalf("ParseMultiplier = %s, %v", m, err)
	}
	for _, v := range []string{"", "abc", "0.5", "2.00001"} {
		if _, err := ParseMultiplier(v); !errors.Is(err, ErrInvalidMultiplier) {
			t.Errorf("%q: expected ErrInvalidMultiplier, got %v", v, err)
		}
	}
}

func TestValidateStake(t *testing.T) {
	tests := []struct {
		name  string
		stake int64
		mult  string
		ok    bool
	}{
		{"min", 1, "2", true},
		{"zero", 0, "2", false},
		{"negative", -5, "2", false},
		{"at max with max multiplier", MaxStakeCents, "999999.9999", true},
		{"above max", MaxStakeCents + 1, "1", false},
		{"half of int64 doubled", math.MaxInt64/2 + 10, "2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStake(tt.stake, decimal.RequireFromString(tt.mult))
			if tt.ok && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidStake) {
				t.Fatalf("expected ErrInvalidStake, got %v", err)
			}
		})
	}

	if p := Payout(MaxStakeCents, decimal.RequireFromString("999999.9999")); p <= 0 {
		t.Errorf("max payout wrapped: %d", p)
	}
}

func TestAddCents(t *testing.T) {
	if got := AddCents(100, 250); got != 350 {
		t.Errorf("AddCents = %d", got)
	}
	if got := AddCents(math.MaxInt64-1, 10); got != math.MaxInt64 {
		t.Errorf("AddCents saturation = %d", got)
	}
}

func TestRoundWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Round{StartTime: start, EndTime: start.Add(time.Minute), Status: StatusActive}

	if r.AcceptsBets(start.Add(-time.Second)) {
		t.Error("bets before start must be refused")
	}
	if !r.AcceptsBets(start) {
		t.Error("bets at start must be accepted")
	}
	if r.AcceptsBets(start.Add(time.Minute)) {
		t.Error("bets at end_time must be refused")
	}
	if r.Overdue(start.Add(59 * time.Second)) {
		t.Error("not overdue inside the window")
	}
	if !r.Overdue(start.Add(time.Minute)) {
		t.Error("overdue at end_time")
	}
	if got := r.Remaining(start.Add(45 * time.Second)); got != 15*time.Second {
		t.Errorf("Remaining = %v", got)
	}

	r.Status = StatusScheduled
	if r.AcceptsBets(start) || r.Overdue(start.Add(time.Hour)) {
		t.Error("scheduled round neither accepts bets nor is overdue")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	te := &TransitionError{RoundID: "r1", From: StatusCompleted, To: StatusCancelled}
	if !errors.Is(te, ErrInvalidTransition) {
		t.Error("TransitionError must match ErrInvalidTransition")
	}
	if !IsRejection(fmt.Errorf("wrapped: %w", te)) {
		t.Error("wrapped transition error is a rejection")
	}

	cause := errors.New("connection reset")
	pe := &PersistenceError{Op: "settle", Err: cause}
	if !errors.Is(pe, ErrPersistence) || !errors.Is(pe, cause) {
		t.Error("PersistenceError must match ErrPersistence and unwrap its cause")
	}
	if IsRejection(pe) {
		t.Error("persistence failure is not a rejection")
	}

	if !IsNoop(ErrAlreadySettled) || !IsNoop(ErrAlreadyCancelled) || IsNoop(te) {
		t.Error("IsNoop mismatch")
	}
}
