package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultIdentityTTL = 30 * time.Minute
	redisKeyPrefix     = "matval:identity:"
)

// Kind separates the identity namespaces sharing one cache.
type Kind string

const (
	KindStore              Kind = "store"
	KindCategory           Kind = "category"
	KindProduct            Kind = "product"
	KindUnit               Kind = "unit"
	KindQuantityType       Kind = "quantity_type"
	KindAvailabilityStatus Kind = "availability_status"
)

// IdentityCache maps natural keys to committed row IDs. Callers must only store IDs of rows
// whose transaction has committed.
type IdentityCache interface {
	Get(ctx context.Context, kind Kind, key string) (snowflake.ID, bool)
	Set(ctx context.Context, kind Kind, key string, id snowflake.ID)
}

type IdentityCacheParams struct {
	fx.In

	Config  config.Config
	Redis   *redis.Client    `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
}

type identityCache struct {
	memory  Cache[string, snowflake.ID]
	redis   *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewIdentityCache(p IdentityCacheParams) IdentityCache {
	ttl := p.Config.IdentityCacheTTL
	if ttl <= 0 {
		ttl = defaultIdentityTTL
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &identityCache{
		memory:  NewTTLCache[string, snowflake.ID](),
		redis:   p.Redis,
		ttl:     ttl,
		metrics: p.Metrics,
		log:     log.Named("identity_cache"),
	}
}

func (c *identityCache) Get(ctx context.Context, kind Kind, key string) (snowflake.ID, bool) {
	k := cacheKey(string(kind), key)
	if id, ok := c.memory.Get(k); ok {
		c.metrics.RecordIdentityCache(ctx, "memory", true)
		return id, true
	}
	c.metrics.RecordIdentityCache(ctx, "memory", false)

	if c.redis == nil {
		return 0, false
	}
	raw, err := c.redis.Get(ctx, redisKeyPrefix+k).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug("redis get failed", zap.String("key", k), zap.Error(err))
		}
		c.metrics.RecordIdentityCache(ctx, "redis", false)
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		c.metrics.RecordIdentityCache(ctx, "redis", false)
		return 0, false
	}
	c.metrics.RecordIdentityCache(ctx, "redis", true)
	c.memory.Set(k, id, c.ttl)
	return id, true
}

func (c *identityCache) Set(ctx context.Context, kind Kind, key string, id snowflake.ID) {
	if id == 0 {
		return
	}
	k := cacheKey(string(kind), key)
	c.memory.Set(k, id, c.ttl)
	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, redisKeyPrefix+k, strconv.FormatInt(id.Int64(), 10), c.ttl).Err(); err != nil {
		c.log.Debug("redis set failed", zap.String("key", k), zap.Error(err))
	}
}

// cacheKey joins the non-empty key parts with "|".
func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return strings.Join(values, "|")
}
