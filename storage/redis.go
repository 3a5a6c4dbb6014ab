package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores each slot under the key <prefix>:<slot>. A positive ttl
// expires an untouched slot; every Save refreshes it.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a [Redis] backend on client. An empty prefix defaults
// to "gs".
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "gs"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *Redis) key(slot string) string {
	return r.prefix + ":" + slot
}

// Load returns the bytes stored for slot, or [ErrNotFound] when the key is
// missing or expired.
//
//	Performance: 1 Redis GET.
func (r *Redis) Load(ctx context.Context, slot string) ([]byte, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}

	data, err := r.redis.Get(ctx, r.key(slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Save overwrites slot with data and refreshes the ttl when one is set.
//
//	Performance: 1 Redis SET.
func (r *Redis) Save(ctx context.Context, slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}

	if err := r.redis.Set(ctx, r.key(slot), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
