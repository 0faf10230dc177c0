package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readMsg(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := c.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func subscribe(t *testing.T, c *websocket.Conn, topic string) {
	t.Helper()
	if err := c.WriteJSON(ClientMsg{Type: "subscribe", Topic: topic}); err != nil {
		t.Fatal(err)
	}
	var ack ServerMsg
	readMsg(t, c, &ack)
	if ack.Type != "subscribed" || ack.Topic != topic {
		t.Fatalf("ack = %+v", ack)
	}
}

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHubRoutesByTopic(t *testing.T) {
	hub, srv := newHubServer(t)
	a, b := dial(t, srv), dial(t, srv)
	subscribe(t, a, "round:r1")
	subscribe(t, b, "user:u1")

	payload, _ := json.Marshal(map[string]string{"status": "completed"})
	hub.Broadcast(events.FeedUpdate{Topic: "round:r1", Type: events.FeedRoundStatus, Payload: payload})
	hub.Broadcast(events.FeedUpdate{Topic: "user:u1", Type: events.FeedBetOutcome, Payload: payload})
	hub.Broadcast(events.FeedUpdate{Topic: "round:other", Type: events.FeedRoundStatus, Payload: payload})

	var got events.FeedUpdate
	readMsg(t, a, &got)
	if got.Topic != "round:r1" || got.Type != events.FeedRoundStatus {
		t.Errorf("a got %+v", got)
	}
	readMsg(t, b, &got)
	if got.Topic != "user:u1" || got.Type != events.FeedBetOutcome {
		t.Errorf("b got %+v", got)
	}

	// round:other não tem assinantes; a próxima mensagem de a é o pong
	_ = a.WriteJSON(ClientMsg{Type: "ping"})
	var pong ServerMsg
	readMsg(t, a, &pong)
	if pong.Type != "pong" {
		t.Errorf("expected pong, got %+v", pong)
	}
}

func TestHubRejectsInvalidTopic(t *testing.T) {
	_, srv := newHubServer(t)
	c := dial(t, srv)
	for _, topic := range []string{"", "round:", "odds:1"} {
		_ = c.WriteJSON(ClientMsg{Type: "subscribe", Topic: topic})
		var m ServerMsg
		readMsg(t, c, &m)
		if m.Type != "error" {
			t.Errorf("subscribe %q = %+v, want error", topic, m)
		}
	}
}

func TestHubCleansUpOnDisconnect(t *testing.T) {
	hub, srv := newHubServer(t)
	c := dial(t, srv)
	subscribe(t, c, events.AllRoundsTopic)
	if n := hub.Subscribers(events.AllRoundsTopic); n != 1 {
		t.Fatalf("subscribers = %d", n)
	}

	_ = c.WriteJSON(ClientMsg{Type: "unsubscribe", Topic: events.AllRoundsTopic})
	var m ServerMsg
	readMsg(t, c, &m)
	if hub.Subscribers(events.AllRoundsTopic) != 0 {
		t.Fatal("unsubscribe kept the client")
	}

	subscribe(t, c, "round:r9")
	c.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("round:r9") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatchDiscardsGarbage(t *testing.T) {
	hub, srv := newHubServer(t)
	c := dial(t, srv)
	subscribe(t, c, "round:r1")

	Dispatch(hub, []byte("not json"), zap.NewNop())
	Dispatch(hub, []byte(`{"type":"round_status"}`), zap.NewNop())
	Dispatch(hub, []byte(`{"topic":"round:r1","type":"round_status","payload":{"status":"active"}}`), zap.NewNop())

	var got events.FeedUpdate
	readMsg(t, c, &got)
	if got.Topic != "round:r1" || !strings.Contains(string(got.Payload), "active") {
		t.Errorf("got %+v", got)
	}
}
