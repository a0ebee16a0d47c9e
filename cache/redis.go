package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/orchestrator/cache/serializer"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/connector"
	"github.com/ceyewan/orchestrator/xerrors"
)

type redisCache struct {
	client     *redis.Client
	serializer serializer.Serializer
	prefix     string
	defaultTTL time.Duration
	logger     clog.Logger
	stats      *stats
}

func newRedis(conn connector.RedisConnector, cfg *Config, logger clog.Logger, st *stats) (Cache, error) {
	s, err := serializer.New(cfg.Serializer)
	if err != nil {
		return nil, err
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(connector.ErrClientNil, "cache: redis")
	}

	logger.Info("distributed cache created",
		clog.String("connector", conn.Name()),
		clog.String("prefix", cfg.Prefix),
		clog.String("serializer", s.Name()))

	return &redisCache{
		client:     client,
		serializer: s,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
		stats:      st,
	}, nil
}

func (c *redisCache) key(key string) string {
	return c.prefix + key
}

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return xerrors.Wrapf(err, "cache: marshal %s", key)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return xerrors.Mark(xerrors.Wrapf(err, "cache: set %s", key), xerrors.ErrUnavailable)
	}
	return nil
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if xerrors.Is(err, redis.Nil) {
			c.stats.miss(ctx)
			return ErrMiss
		}
		return xerrors.Mark(xerrors.Wrapf(err, "cache: get %s", key), xerrors.ErrUnavailable)
	}
	c.stats.hit(ctx)

	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return xerrors.Wrapf(ErrInvalidDest, "unmarshal %s: %v", key, err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return xerrors.Mark(xerrors.Wrapf(err, "cache: delete %s", key), xerrors.ErrUnavailable)
	}
	return nil
}

func (c *redisCache) Has(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, xerrors.Mark(xerrors.Wrapf(err, "cache: exists %s", key), xerrors.ErrUnavailable)
	}
	return n > 0, nil
}

func (c *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := c.client.Expire(ctx, c.key(key), ttl).Result()
	if err != nil {
		return xerrors.Mark(xerrors.Wrapf(err, "cache: expire %s", key), xerrors.ErrUnavailable)
	}
	if !ok {
		return ErrMiss
	}
	return nil
}

// Close 不关闭 Redis 客户端，连接由连接器负责释放
func (c *redisCache) Close() error {
	return nil
}
