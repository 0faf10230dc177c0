package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

func TestRoundViewJSON(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := domain.Round{
		ID:               "r1",
		StartTime:        start,
		EndTime:          start.Add(time.Minute),
		Status:           domain.StatusActive,
		PayoutMultiplier: decimal.RequireFromString("1.95"),
	}

	b, err := json.Marshal(NewRoundView(r, start.Add(20*time.Second)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"id":"r1"`, `"status":"active"`, `"betting_open":true`, `"overdue":false`, `"seconds_remaining":40`, `"payout_multiplier":"1.95"`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in %s", want, s)
		}
	}
	if strings.Contains(s, `"result"`) {
		t.Errorf("active round must not carry a result: %s", s)
	}
}
