// Package cache keeps a short-lived Redis copy of property state.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/propledger/internal/config"
	"github.com/fastprodman/propledger/internal/repos/ledger"
	"github.com/redis/go-redis/v9"
)

const namespace = "property"

type PropertyCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewPropertyCache(client redis.UniversalClient, ttl time.Duration) *PropertyCache {
	return &PropertyCache{client: client, ttl: ttl}
}

// Connect opens a client for cfg and checks it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func key(id string) string { return namespace + ":" + id }

func (c *PropertyCache) Get(ctx context.Context, id string) (ledger.Property, bool, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ledger.Property{}, false, nil
	}

	if err != nil {
		return ledger.Property{}, false, fmt.Errorf("get %s: %w", key(id), err)
	}

	var p ledger.Property

	err = json.Unmarshal(raw, &p)
	if err != nil {
		return ledger.Property{}, false, fmt.Errorf("decode %s: %w", key(id), err)
	}

	return p, true, nil
}

func (c *PropertyCache) Set(ctx context.Context, p ledger.Property) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode property: %w", err)
	}

	err = c.client.Set(ctx, key(p.ID), raw, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("set %s: %w", key(p.ID), err)
	}

	return nil
}

func (c *PropertyCache) Invalidate(ctx context.Context, id string) error {
	err := c.client.Del(ctx, key(id)).Err()
	if err != nil {
		return fmt.Errorf("del %s: %w", key(id), err)
	}

	return nil
}
