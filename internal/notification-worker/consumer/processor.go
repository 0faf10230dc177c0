package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/shared/telegram"
	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

// MessageReader é o lado consumidor do Kafka com commit manual
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, u events.FeedUpdate) error
}

// Alerter é o canal de operador (Telegram); nil desliga
type Alerter interface {
	Send(ctx context.Context, text string) error
}

var errUnknownTopic = errors.New("unknown topic")

// Processor consome round_status e round_outcomes, repassa ao feed via Redis
// e avisa o operador quando uma rodada fecha. Mensagens que falham depois das
// tentativas vão para a DLQ; o offset só é confirmado depois disso.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	DLQ    MessageWriter // pode ser nil
	Feed   Broadcaster
	Alert  Alerter

	StatusTopic  string
	OutcomeTopic string

	Retries int
	Backoff time.Duration // multiplicado pela tentativa

	OnConsumed  func(topic string) // métricas
	OnBroadcast func(kind string)  // métricas
	OnDLQ       func()             // métricas
	OnError     func(stage string) // métricas por fase
}

// Run inicia o loop principal de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.errorAt("fetch")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed(m.Topic)
		}

		if err := p.handleWithRetry(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.deadLetter(ctx, m, err)
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.errorAt("commit")
		}
	}
}

func (p *Processor) handleWithRetry(ctx context.Context, m kafka.Message) error {
	err := p.Handle(ctx, m)
	for i := 0; err != nil && i < p.Retries && retryable(err); i++ {
		if !sleep(ctx, p.Backoff*time.Duration(i+1)) {
			return ctx.Err()
		}
		err = p.Handle(ctx, m)
	}
	return err
}

// decodeError não adianta repetir
type decodeError struct{ err error }

func (e decodeError) Error() string { return "decode: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var de decodeError
	return !errors.As(err, &de) && !errors.Is(err, errUnknownTopic)
}

// Handle processa uma mensagem sem retry
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	switch m.Topic {
	case p.StatusTopic:
		var ev events.RoundStatusChanged
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			p.errorAt("decode")
			return decodeError{err}
		}
		return p.onStatus(ctx, ev, m.Value)
	case p.OutcomeTopic:
		var ev events.BetOutcome
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			p.errorAt("decode")
			return decodeError{err}
		}
		return p.onOutcome(ctx, ev, m.Value)
	}
	return fmt.Errorf("%w: %s", errUnknownTopic, m.Topic)
}

func (p *Processor) onStatus(ctx context.Context, ev events.RoundStatusChanged, raw []byte) error {
	for _, topic := range []string{events.RoundTopic(ev.RoundID), events.AllRoundsTopic} {
		if err := p.broadcast(ctx, events.FeedUpdate{Topic: topic, Type: events.FeedRoundStatus, Payload: raw}); err != nil {
			return err
		}
	}

	if p.Alert != nil && (ev.Status == "completed" || ev.Status == "cancelled") {
		if err := p.Alert.Send(ctx, StatusAlert(ev)); err != nil {
			// canal de operador é best effort
			p.Log.Warn("operator alert not sent", zap.String("round_id", ev.RoundID), zap.Error(err))
			p.errorAt("alert")
		}
	}
	return nil
}

func (p *Processor) onOutcome(ctx context.Context, ev events.BetOutcome, raw []byte) error {
	return p.broadcast(ctx, events.FeedUpdate{Topic: events.UserTopic(ev.UserID), Type: events.FeedBetOutcome, Payload: raw})
}

func (p *Processor) broadcast(ctx context.Context, u events.FeedUpdate) error {
	if err := p.Feed.Broadcast(ctx, u); err != nil {
		p.Log.Warn("feed broadcast failed", zap.String("topic", u.Topic), zap.Error(err))
		p.errorAt("broadcast")
		return err
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast(u.Type)
	}
	return nil
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	p.Log.Error("message sent to dlq",
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.Error(cause))
	if p.DLQ == nil {
		return
	}
	dl := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
		),
		Time: time.Now(),
	}
	if err := p.DLQ.WriteMessages(ctx, dl); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.errorAt("dlq")
		return
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
}

func (p *Processor) errorAt(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// StatusAlert formata o aviso de rodada encerrada para o operador
func StatusAlert(ev events.RoundStatusChanged) string {
	msg := fmt.Sprintf("*Round %s* %s", telegram.EscapeMarkdown(ev.RoundID), ev.Status)
	if ev.Result != nil {
		msg += fmt.Sprintf("\nresult: `%s`", telegram.EscapeMarkdown(*ev.Result))
	}
	return msg
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
