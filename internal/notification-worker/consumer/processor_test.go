package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

// fakeReader entrega msgs em ordem e cancela o contexto quando acabam
type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

type fakeWriter struct{ msgs []kafka.Message }

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type fakeFeed struct {
	mu       sync.Mutex
	updates  []events.FeedUpdate
	failures int // quantas chamadas falham antes de aceitar
}

func (f *fakeFeed) Broadcast(_ context.Context, u events.FeedUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("redis down")
	}
	f.updates = append(f.updates, u)
	return nil
}

type fakeAlert struct{ texts []string }

func (a *fakeAlert) Send(_ context.Context, text string) error {
	a.texts = append(a.texts, text)
	return nil
}

func msg(t *testing.T, topic string, offset int64, v any) kafka.Message {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Topic: topic, Offset: offset, Value: b}
}

func newProcessor(r *fakeReader, feed *fakeFeed, dlq *fakeWriter, alert *fakeAlert) *Processor {
	p := &Processor{
		Log:          zap.NewNop(),
		Reader:       r,
		DLQ:          dlq,
		Feed:         feed,
		StatusTopic:  "round_status",
		OutcomeTopic: "round_outcomes",
		Retries:      2,
	}
	if alert != nil {
		p.Alert = alert
	}
	return p
}

func run(t *testing.T, p *Processor, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
}

func TestProcessorFansOut(t *testing.T) {
	res := "A"
	r := &fakeReader{msgs: []kafka.Message{
		msg(t, "round_status", 1, events.RoundStatusChanged{RoundID: "r1", Status: "completed", Result: &res}),
		msg(t, "round_outcomes", 2, events.BetOutcome{BetID: "b1", RoundID: "r1", UserID: "u1", Outcome: "won", AmountCents: 200}),
		msg(t, "round_status", 3, events.RoundStatusChanged{RoundID: "r2", Status: "active"}),
	}}
	feed, dlq, alert := &fakeFeed{}, &fakeWriter{}, &fakeAlert{}
	p := newProcessor(r, feed, dlq, alert)
	kinds := map[string]int{}
	p.OnBroadcast = func(kind string) { kinds[kind]++ }

	run(t, p, r)

	var topics []string
	for _, u := range feed.updates {
		topics = append(topics, u.Topic)
	}
	want := []string{"round:r1", "rounds", "user:u1", "round:r2", "rounds"}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Fatalf("topics = %v, want %v", topics, want)
		}
	}
	if kinds[events.FeedRoundStatus] != 4 || kinds[events.FeedBetOutcome] != 1 {
		t.Errorf("kinds = %v", kinds)
	}
	if len(alert.texts) != 1 {
		t.Errorf("alerts = %v, want only the completed round", alert.texts)
	}
	if len(r.committed) != 3 || len(dlq.msgs) != 0 {
		t.Errorf("committed = %v dlq = %d", r.committed, len(dlq.msgs))
	}
}

func TestProcessorRetriesThenSucceeds(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		msg(t, "round_outcomes", 7, events.BetOutcome{BetID: "b1", UserID: "u1", Outcome: "refunded"}),
	}}
	feed, dlq := &fakeFeed{failures: 2}, &fakeWriter{}
	run(t, newProcessor(r, feed, dlq, nil), r)

	if len(feed.updates) != 1 || len(dlq.msgs) != 0 {
		t.Fatalf("updates = %d dlq = %d", len(feed.updates), len(dlq.msgs))
	}
}

func TestProcessorDeadLetters(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Topic: "round_outcomes", Offset: 1, Value: []byte("{not json")},
		msg(t, "round_outcomes", 2, events.BetOutcome{BetID: "b2", UserID: "u2", Outcome: "won"}),
		msg(t, "other", 3, map[string]string{}),
	}}
	feed, dlq := &fakeFeed{failures: 3}, &fakeWriter{}
	p := newProcessor(r, feed, dlq, nil)
	var dead int
	p.OnDLQ = func() { dead++ }

	run(t, p, r)

	if dead != 3 || len(dlq.msgs) != 3 {
		t.Fatalf("dlq = %d (%d callbacks), want 3", len(dlq.msgs), dead)
	}
	// decode falha sem retry; broadcast gasta 1 + Retries tentativas
	if feed.failures != 0 {
		t.Errorf("remaining failures = %d", feed.failures)
	}
	src := ""
	for _, h := range dlq.msgs[1].Headers {
		if h.Key == "source_topic" {
			src = string(h.Value)
		}
	}
	if src != "round_outcomes" {
		t.Errorf("source_topic header = %q", src)
	}
	if len(r.committed) != 3 {
		t.Errorf("committed = %v, dead letters must still advance the offset", r.committed)
	}
}

func TestStatusAlert(t *testing.T) {
	res := "red_7"
	got := StatusAlert(events.RoundStatusChanged{RoundID: "r_1", Status: "completed", Result: &res})
	want := "*Round r\\_1* completed\nresult: `red\\_7`"
	if got != want {
		t.Errorf("StatusAlert = %q, want %q", got, want)
	}
}
