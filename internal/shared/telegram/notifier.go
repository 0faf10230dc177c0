// Package telegram envia mensagens de texto para um chat de operadores,
// em fila assíncrona e respeitando o limite de envio da API.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// intervalo mínimo entre mensagens no mesmo chat (~30/min)
const sendInterval = 2 * time.Second

var (
	ErrQueueFull = errors.New("telegram queue full")
	ErrStopped   = errors.New("telegram notifier stopped")
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	log      *zap.Logger
	bot      sender
	chatID   int64
	interval time.Duration

	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	OnSent   func() // métricas
	OnFailed func() // métricas
}

// New conecta no bot e sobe o worker de envio
func New(log *zap.Logger, token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Info("telegram notifier ready", zap.String("bot", bot.Self.UserName), zap.Int64("chat_id", chatID))
	return newNotifier(log, bot, chatID, sendInterval, 100), nil
}

func newNotifier(log *zap.Logger, bot sender, chatID int64, interval time.Duration, queueSize int) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		log:      log,
		bot:      bot,
		chatID:   chatID,
		interval: interval,
		queue:    make(chan string, queueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go n.run()
	return n
}

// Send enfileira a mensagem sem bloquear. Nil-safe: sem bot configurado não faz nada.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if n == nil {
		return nil
	}
	select {
	case <-n.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- text:
		return nil
	default:
		n.log.Warn("telegram queue full, dropping message", zap.String("preview", preview(text)))
		return ErrQueueFull
	}
}

// Stop envia o que ainda está na fila e encerra o worker
func (n *Notifier) Stop() {
	if n == nil {
		return
	}
	n.cancel()
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)
	var last time.Time
	for {
		select {
		case <-n.ctx.Done():
			for {
				select {
				case text := <-n.queue:
					n.send(text)
				default:
					return
				}
			}
		case text := <-n.queue:
			if wait := n.interval - time.Since(last); wait > 0 {
				select {
				case <-time.After(wait):
				case <-n.ctx.Done():
				}
			}
			n.send(text)
			last = time.Now()
		}
	}
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn("telegram send failed", zap.String("preview", preview(text)), zap.Error(err))
		if n.OnFailed != nil {
			n.OnFailed()
		}
		return
	}
	if n.OnSent != nil {
		n.OnSent()
	}
}

func preview(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:50] + "..."
}

// EscapeMarkdown escapa os caracteres especiais do modo Markdown legado
func EscapeMarkdown(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`").Replace(s)
}
