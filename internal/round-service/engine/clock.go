package engine

import (
	"sync"
	"time"
)

// Clock é a única fonte de "agora" do motor. O countdown exibido no cliente
// é apenas informativo; toda transição é revalidada contra este relógio.
type Clock interface {
	Now() time.Time
}

// SystemClock usa o relógio do servidor, sempre em UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock é um relógio manual para testes e simulações
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{now: t.UTC()} }

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
