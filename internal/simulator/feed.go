package simulator

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-feed/ws"
	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

// FeedClient acompanha o round-feed-service e entrega cada update a OnUpdate.
// Em caso de desconexão reconecta com backoff e refaz as assinaturas.
type FeedClient struct {
	URL      string
	Log      *zap.Logger
	Topics   []string
	Backoff  time.Duration
	OnUpdate func(events.FeedUpdate)
}

func (c *FeedClient) Start(ctx context.Context) {
	for {
		if err := c.connectAndListen(ctx); err != nil {
			c.Log.Warn("feed connection closed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping feed client")
			return
		case <-time.After(c.Backoff):
		}
	}
}

func (c *FeedClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// ReadJSON não observa ctx; fechar a conexão destrava a leitura
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, t := range c.Topics {
		if err := conn.WriteJSON(ws.ClientMsg{Type: "subscribe", Topic: t}); err != nil {
			return err
		}
	}
	c.Log.Info("connected to feed", zap.String("url", c.URL), zap.Strings("topics", c.Topics))

	for {
		var u events.FeedUpdate
		if err := conn.ReadJSON(&u); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		// acks de controle chegam sem topic+payload
		if u.Topic == "" || u.Type == "" || len(u.Payload) == 0 {
			continue
		}
		if c.OnUpdate != nil {
			c.OnUpdate(u)
		}
	}
}
