// Package cache is an optional Redis read-through layer in front of partner balances.
// A cache built without a client is disabled: every lookup misses and writes are no-ops.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"accounting-engine/internal/core"
	"accounting-engine/internal/logger"
)

// BalanceCache stores partner balances keyed by organization and contact.
type BalanceCache interface {
	Get(ctx context.Context, organizationID, contactID int) (*core.PartnerBalance, bool)
	Set(ctx context.Context, b *core.PartnerBalance)
	Invalidate(ctx context.Context, organizationID, contactID int)
	Enabled() bool
}

type redisBalanceCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// Connect dials addr and pings it. An empty addr or a failed ping returns a nil client,
// which disables caching.
func Connect(ctx context.Context, addr string) *redis.Client {
	log := logger.WithComponent("cache")
	if addr == "" {
		log.Warn().Msg("REDIS_ADDR not set, partner balance caching disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("failed to connect to redis, caching disabled")
		rdb.Close()
		return nil
	}
	log.Info().Str("addr", addr).Msg("connected to redis")
	return rdb
}

// NewBalanceCache wraps rdb. rdb may be nil.
func NewBalanceCache(rdb *redis.Client, ttl time.Duration) BalanceCache {
	return &redisBalanceCache{rdb: rdb, ttl: ttl, log: logger.WithComponent("cache")}
}

// BalanceKey is the Redis key of one partner balance.
func BalanceKey(organizationID, contactID int) string {
	return fmt.Sprintf("balance:%d:%d", organizationID, contactID)
}

func (c *redisBalanceCache) Enabled() bool {
	return c.rdb != nil
}

func (c *redisBalanceCache) Get(ctx context.Context, organizationID, contactID int) (*core.PartnerBalance, bool) {
	if c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, BalanceKey(organizationID, contactID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Error().Err(err).Int("contact_id", contactID).Msg("redis GET failed")
		}
		return nil, false
	}
	var b core.PartnerBalance
	if err := json.Unmarshal(data, &b); err != nil {
		c.log.Warn().Err(err).Int("contact_id", contactID).Msg("discarding undecodable cached balance")
		return nil, false
	}
	return &b, true
}

func (c *redisBalanceCache) Set(ctx context.Context, b *core.PartnerBalance) {
	if c.rdb == nil || b == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode balance for cache")
		return
	}
	if err := c.rdb.Set(ctx, BalanceKey(b.OrganizationID, b.ContactID), data, c.ttl).Err(); err != nil {
		c.log.Error().Err(err).Int("contact_id", b.ContactID).Msg("redis SET failed")
	}
}

func (c *redisBalanceCache) Invalidate(ctx context.Context, organizationID, contactID int) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, BalanceKey(organizationID, contactID)).Err(); err != nil {
		c.log.Error().Err(err).Int("contact_id", contactID).Msg("redis DEL failed")
	}
}
