package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

// KafkaPublisher publica os eventos pós-commit do motor de rodadas.
// Outcomes usa o user_id como chave (ordem por usuário); Status usa o round_id.
type KafkaPublisher struct {
	Outcomes *kafka.Writer
	Status   *kafka.Writer
}

func NewKafkaPublisher(outcomes, status *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Outcomes: outcomes, Status: status}
}

func (p *KafkaPublisher) PublishOutcome(ctx context.Context, e events.BetOutcome) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Outcomes.WriteMessages(ctx, kafka.Message{Key: []byte(e.UserID), Value: b})
}

func (p *KafkaPublisher) PublishStatus(ctx context.Context, e events.RoundStatusChanged) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Status.WriteMessages(ctx, kafka.Message{Key: []byte(e.RoundID), Value: b})
}
