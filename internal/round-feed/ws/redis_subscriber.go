package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal Redis Pub/Sub alimentado pelo
// notification-worker e repassa cada FeedUpdate ao Hub.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				Dispatch(hub, []byte(msg.Payload), log)
			}
		}
	}()
}

// Dispatch decodifica um payload do canal e entrega ao hub
func Dispatch(hub *Hub, payload []byte, log *zap.Logger) {
	var upd events.FeedUpdate
	if err := json.Unmarshal(payload, &upd); err != nil || upd.Topic == "" {
		log.Warn("feed update discarded", zap.ByteString("payload", payload), zap.Error(err))
		return
	}
	hub.Broadcast(upd)
}
