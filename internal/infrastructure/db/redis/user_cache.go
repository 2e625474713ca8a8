package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

const (
	defaultCacheTTL = 5 * time.Minute
	// generationTTL outlives any read-then-fill window by a wide margin.
	generationTTL = 24 * time.Hour
)

// UserCache keeps sanitized users as JSON under user:<id>. Every invalidation
// bumps user:<id>:gen, and a fill only lands when the generation it read on
// the miss is still current.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &UserCache{client: client, ttl: ttl}
}

// Get returns the cached user. On a miss it returns nil and the generation to
// hand back to Fill.
func (c *UserCache) Get(ctx context.Context, id int64) (*domain.User, uint64, error) {
	vals, err := c.client.MGet(ctx, c.key(id), c.genKey(id)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("user cache get: %w", err)
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, err
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, nil
	}

	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, gen, fmt.Errorf("user cache decode: %w", err)
	}
	return &u, gen, nil
}

// Fill stores user without its password hash, unless the user was invalidated
// after gen was read. A skipped fill is not an error.
func (c *UserCache) Fill(ctx context.Context, user *domain.User, gen uint64) error {
	raw, err := json.Marshal(user.Sanitized())
	if err != nil {
		return fmt.Errorf("user cache encode: %w", err)
	}

	genKey := c.genKey(user.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := parseGeneration(nilIfMissing(cur, err))
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(user.ID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("user cache fill: %w", err)
	}
	return nil
}

// Invalidate drops the cached user and bumps its generation so that fills
// started before this call are discarded.
func (c *UserCache) Invalidate(ctx context.Context, id int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(id))
		pipe.Expire(ctx, c.genKey(id), generationTTL)
		pipe.Del(ctx, c.key(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("user cache invalidate: %w", err)
	}
	return nil
}

func (c *UserCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *UserCache) key(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func (c *UserCache) genKey(id int64) string {
	return fmt.Sprintf("user:%d:gen", id)
}

func nilIfMissing(v string, err error) any {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return v
}

func parseGeneration(v any) (uint64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user cache generation %q: %w", s, err)
	}
	return gen, nil
}
