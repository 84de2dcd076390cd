package feecache

import (
	"context"
	"encoding/json"
	"time"

	"alumniportal/internal/model"
	"alumniportal/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "fee:"

// Cache is a read-through redis cache in front of the fee catalog. Fees are
// read on every request creation and change rarely, so a short TTL plus
// invalidation on mutation is enough. A nil redis client disables caching;
// cache errors fall back to the repository and never fail a lookup.
type Cache struct {
	fees repository.FeeRepository
	rdb  *redis.Client
	ttl  time.Duration
	log  *zap.Logger
}

func New(fees repository.FeeRepository, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{fees: fees, rdb: rdb, ttl: ttl, log: log}
}

// FindByID implements lifecycle.FeeSource.
func (c *Cache) FindByID(ctx context.Context, id uuid.UUID) (*model.FeeCatalogEntry, error) {
	if c.rdb == nil {
		return c.fees.FindByID(ctx, id)
	}

	key := keyPrefix + id.String()
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var fee model.FeeCatalogEntry
		if unmarshalErr := json.Unmarshal(raw, &fee); unmarshalErr == nil {
			return &fee, nil
		}
	} else if err != redis.Nil {
		c.log.Warn("fee cache read failed", zap.Error(err))
	}

	fee, err := c.fees.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, marshalErr := json.Marshal(fee); marshalErr == nil {
		if setErr := c.rdb.Set(ctx, key, raw, c.ttl).Err(); setErr != nil {
			c.log.Warn("fee cache write failed", zap.Error(setErr))
		}
	}
	return fee, nil
}

// Invalidate drops the cached entry after a fee mutation.
func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, keyPrefix+id.String()).Err(); err != nil {
		c.log.Warn("fee cache invalidation failed", zap.Error(err))
	}
}
