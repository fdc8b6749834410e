package wallet

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const balanceCachePrefix = "balances:v1:"

// CachedBalances decorates a BalanceSource with a short-lived Redis
// cache. Transfer and staking paths must bypass it; it exists only to
// keep read-heavy dashboard calls off the chain gateway.
type CachedBalances struct {
	source BalanceSource
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedBalances(source BalanceSource, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedBalances {
	return &CachedBalances{source: source, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedBalances) Balances(ctx context.Context, userID string) (Balances, error) {
	key := balanceCachePrefix + userID

	if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
		var balances Balances
		if err := json.Unmarshal([]byte(cached), &balances); err == nil {
			return balances, nil
		}
		c.logger.Warn("corrupt cached balances", "user_id", userID)
	} else if err != redis.Nil {
		c.logger.Warn("balance cache lookup failed", "user_id", userID, "error", err)
	}

	balances, err := c.source.Balances(ctx, userID)
	if err != nil {
		return Balances{}, err
	}

	if payload, err := json.Marshal(balances); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("balance cache write failed", "user_id", userID, "error", err)
		}
	}
	return balances, nil
}

// Invalidate drops the cached sheet after a balance-changing operation.
func (c *CachedBalances) Invalidate(ctx context.Context, userID string) {
	if err := c.cache.Del(ctx, balanceCachePrefix+userID).Err(); err != nil {
		c.logger.Warn("balance cache invalidation failed", "user_id", userID, "error", err)
	}
}
