package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-feed/ws"
	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
	"github.com/radieske/round-settlement-platform/internal/round-service/engine"
	httpapi "github.com/radieske/round-settlement-platform/internal/round-service/http"
	"github.com/radieske/round-settlement-platform/internal/round-service/repo"
	wdto "github.com/radieske/round-settlement-platform/internal/wallet-service/dto"
	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

var secret = []byte("sim-secret")

// stack sobe round-service (motor + memória) e uma wallet fake que credita no mesmo store
func stack(t *testing.T) (*Client, *repo.Memory) {
	t.Helper()
	store := repo.NewMemory()
	api := &httpapi.API{Log: zap.NewNop(), Engine: engine.New(store, engine.Options{}), AdminSecret: secret}
	round := httptest.NewServer(api.Router())
	t.Cleanup(round.Close)

	var mu sync.Mutex
	seen := map[string]bool{}
	wallet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wdto.DepositRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		if !seen[req.ExternalRef] {
			seen[req.ExternalRef] = true
			store.Deposit(req.UserID, req.AmountCents)
		}
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(wdto.WalletResponse{UserID: req.UserID, BalanceCents: store.Balance(req.UserID)})
	}))
	t.Cleanup(wallet.Close)

	tok, err := httpapi.SignAdminToken(secret, "simulator", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return New(round.URL, wallet.URL, tok), store
}

func TestRunRoundSettles(t *testing.T) {
	c, store := stack(t)
	sim := NewSimulator(c, zap.NewNop(), Options{
		Players: []string{"p1", "p2", "p3"},
		Values:  []string{"red", "black"},
		Window:  300 * time.Millisecond,
		Seed:    42,
	})

	rep, err := sim.RunRound(context.Background())
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if rep.BetsPlaced != 3 || rep.Settlement == nil {
		t.Fatalf("report = %+v", rep)
	}
	s := rep.Settlement.Summary
	if s.TotalBets != 3 || rep.Settlement.Round.Status != domain.StatusCompleted {
		t.Fatalf("settlement = %+v", rep.Settlement)
	}
	// cada jogador depositou exatamente a stake: ganhador fica com o prêmio, perdedor com zero
	var total int64
	for _, p := range []string{"p1", "p2", "p3"} {
		total += store.Balance(p)
	}
	if total != s.TotalPayoutAmount {
		t.Errorf("balances sum = %d, want payout %d", total, s.TotalPayoutAmount)
	}
}

func TestRunRoundCancels(t *testing.T) {
	c, store := stack(t)
	sim := NewSimulator(c, zap.NewNop(), Options{
		Players:    []string{"p1"},
		Values:     []string{"x"},
		Window:     time.Minute,
		MaxStake:   100,
		CancelRate: 1,
		Seed:       7,
	})
	rep, err := sim.RunRound(context.Background())
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if !rep.Cancelled || rep.Settlement != nil {
		t.Fatalf("report = %+v", rep)
	}
	if store.Balance("p1") == 0 {
		t.Error("stake was not refunded")
	}
}

func TestClientSurfacesErrors(t *testing.T) {
	c, _ := stack(t)
	c.Token = "bad"
	_, err := c.CreateRound(context.Background(), time.Now(), time.Now().Add(time.Minute))
	se, ok := err.(*StatusError)
	if !ok || se.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
}

func TestFeedClientReceivesUpdates(t *testing.T) {
	hub := ws.NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	got := make(chan events.FeedUpdate, 1)
	fc := &FeedClient{
		URL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		Log:      zap.NewNop(),
		Topics:   []string{events.AllRoundsTopic},
		Backoff:  10 * time.Millisecond,
		OnUpdate: func(u events.FeedUpdate) { got <- u },
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { fc.Start(ctx); close(done) }()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(events.AllRoundsTopic) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("feed client never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	hub.Broadcast(events.FeedUpdate{Topic: events.AllRoundsTopic, Type: events.FeedRoundStatus, Payload: json.RawMessage(`{"status":"active"}`)})

	select {
	case u := <-got:
		if u.Type != events.FeedRoundStatus {
			t.Errorf("update = %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed client did not stop")
	}
}
