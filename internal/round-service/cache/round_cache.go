package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
)

// Cache guarda a visão pública de uma rodada por poucos segundos.
// Nunca é consultado pelo motor: toda transição lê o banco.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *Cache { return &Cache{R: r, TTL: ttl} }

func keyRound(id string) string { return "round:view:" + id }

func (c *Cache) GetRound(ctx context.Context, id string) (domain.Round, bool, error) {
	b, err := c.R.Get(ctx, keyRound(id)).Bytes()
	if err == redis.Nil {
		return domain.Round{}, false, nil
	}
	if err != nil {
		return domain.Round{}, false, err
	}
	var r domain.Round
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.Round{}, false, err
	}
	return r, true, nil
}

func (c *Cache) SetRound(ctx context.Context, r domain.Round) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyRound(r.ID), b, c.TTL).Err()
}

func (c *Cache) Invalidate(ctx context.Context, id string) error {
	return c.R.Del(ctx, keyRound(id)).Err()
}
