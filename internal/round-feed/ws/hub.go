package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/pkg/contracts/events"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

// client tem um único escritor (writePump); Broadcast só enfileira
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub gerencia conexões WebSocket e assinaturas por tópico
// subs: mapeia tópico para o conjunto de clientes inscritos
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}

	OnDelivered func()    // métricas
	OnDropped   func()    // métricas (cliente lento)
	OnConns     func(int) // métricas (gauge de conexões)
	conns       int
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

func validTopic(t string) bool {
	if t == events.AllRoundsTopic {
		return true
	}
	for _, p := range []string{"round:", "user:"} {
		if strings.HasPrefix(t, p) && len(t) > len(p) {
			return true
		}
	}
	return false
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.trackConn(1)

	done := make(chan struct{})
	go h.writePump(c, done)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if !validTopic(msg.Topic) {
				h.reply(c, ServerMsg{Type: "error", Topic: msg.Topic, Error: "invalid topic"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Topic]; !ok {
				h.subs[msg.Topic] = make(map[*client]struct{})
			}
			h.subs[msg.Topic][c] = struct{}{}
			h.mu.Unlock()
			h.reply(c, ServerMsg{Type: "subscribed", Topic: msg.Topic})
		case "unsubscribe":
			h.remove(c, msg.Topic)
			h.reply(c, ServerMsg{Type: "unsubscribed", Topic: msg.Topic})
		case "ping":
			h.reply(c, ServerMsg{Type: "pong"})
		}
	}

	// Remove o cliente de todas as assinaturas ao desconectar
	h.mu.Lock()
	for topic, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, topic)
		}
	}
	h.mu.Unlock()
	close(done)
	h.trackConn(-1)
}

func (h *Hub) remove(c *client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[topic]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, topic)
		}
	}
}

func (h *Hub) reply(c *client, m ServerMsg) {
	b, _ := json.Marshal(m)
	h.enqueue(c, b)
}

func (h *Hub) enqueue(c *client, b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		if h.OnDropped != nil {
			h.OnDropped()
		}
		return false
	}
}

func (h *Hub) writePump(c *client, done <-chan struct{}) {
	defer c.conn.Close()
	for {
		select {
		case <-done:
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.log.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) trackConn(delta int) {
	h.mu.Lock()
	h.conns += delta
	n := h.conns
	h.mu.Unlock()
	if h.OnConns != nil {
		h.OnConns(n)
	}
}

// Broadcast envia a atualização para todos os clientes inscritos no tópico.
// Cliente com fila cheia perde a mensagem; os demais não esperam por ele.
func (h *Hub) Broadcast(u events.FeedUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[u.Topic]))
	for c := range h.subs[u.Topic] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, _ := json.Marshal(u)
	for _, c := range targets {
		if h.enqueue(c, b) && h.OnDelivered != nil {
			h.OnDelivered()
		}
	}
}

// Subscribers devolve quantos clientes estão inscritos no tópico
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
