// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

const cacheKeyPrefix = "loan:outcome:"

// IdempotencyCache keeps recent outcomes in Redis so a replayed request
// returns its original decision without re-running the pipeline. The cache
// is best effort; every error degrades to a miss.
type IdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewIdempotencyCache creates a cache with the given record lifetime.
func NewIdempotencyCache(client *redis.Client, ttl time.Duration, log logger.Logger) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "idempotency-cache"}),
	}
}

// Get returns the cached outcome for a request, or nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, requestID string) *models.LoanOutcome {
	val, err := c.client.Get(ctx, cacheKeyPrefix+requestID).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Cache lookup failed", map[string]interface{}{
				"requestId": requestID,
				"error":     err.Error(),
			})
		}
		return nil
	}

	var outcome models.LoanOutcome
	if err := json.Unmarshal([]byte(val), &outcome); err != nil {
		c.logger.Warn("Cached outcome is corrupt, treating as miss", map[string]interface{}{
			"requestId": requestID,
			"error":     err.Error(),
		})
		return nil
	}
	return &outcome
}

// Set stores an outcome under its request id for the configured TTL.
func (c *IdempotencyCache) Set(ctx context.Context, outcome *models.LoanOutcome) {
	data, err := json.Marshal(outcome)
	if err != nil {
		c.logger.Warn("Failed to marshal outcome for cache", map[string]interface{}{
			"requestId": outcome.RequestID,
			"error":     err.Error(),
		})
		return
	}

	if err := c.client.Set(ctx, cacheKeyPrefix+outcome.RequestID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", map[string]interface{}{
			"requestId": outcome.RequestID,
			"error":     err.Error(),
		})
	}
}
