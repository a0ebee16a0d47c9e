package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/connector"
	"github.com/ceyewan/orchestrator/xerrors"
)

// tokenBucketScript 基于“下一次可用时间戳”的令牌桶（GCRA 变体）
//
// KEYS[1]: 限流键
// ARGV[1]: rate，ARGV[2]: burst，ARGV[3]: 当前时间（秒，浮点），ARGV[4]: 本次消耗令牌数
// 返回 {allowed(0|1), remaining}
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local interval_per_token = 1 / rate
local fill_time = capacity * interval_per_token

local last_refreshed = tonumber(redis.call("GET", KEYS[1]))
if last_refreshed == nil then
  last_refreshed = now
end

local next_available_time = math.max(last_refreshed, now)
local new_refreshed = next_available_time + requested * interval_per_token
local allow_at_most = now + fill_time

if new_refreshed <= allow_at_most then
  redis.call("SET", KEYS[1], new_refreshed, "EX", math.ceil(fill_time * 2))
  return {1, math.floor((allow_at_most - new_refreshed) / interval_per_token)}
end
return {0, math.floor((allow_at_most - next_available_time) / interval_per_token)}
`

type distributedLimiter struct {
	client  *redis.Client
	prefix  string
	logger  clog.Logger
	metrics *limiterMetrics
	script  *redis.Script
}

func newDistributed(cfg *Config, redisConn connector.RedisConnector, logger clog.Logger, m *limiterMetrics) (Limiter, error) {
	client := redisConn.GetClient()
	if client == nil {
		return nil, ErrConnectorNil
	}

	logger.Info("distributed rate limiter created", clog.String("prefix", cfg.Prefix))
	return &distributedLimiter{
		client:  client,
		prefix:  cfg.Prefix,
		logger:  logger,
		metrics: m,
		script:  redis.NewScript(tokenBucketScript),
	}, nil
}

func (l *distributedLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *distributedLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if err := validateRequest(key, limit, n); err != nil {
		return false, err
	}

	now := float64(time.Now().UnixNano()) / 1e9
	result, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, limit.Rate, limit.Burst, now, n).Int64Slice()
	if err != nil {
		l.logger.Error("failed to execute rate limit script", clog.String("key", key), clog.Error(err))
		return false, xerrors.Mark(xerrors.Wrap(err, "ratelimit: execute script"), xerrors.ErrUnavailable)
	}
	if len(result) != 2 {
		return false, xerrors.Wrapf(xerrors.ErrInternal, "ratelimit: unexpected script result %v", result)
	}

	allowed := result[0] == 1
	l.metrics.observe(ctx, ModeDistributed, allowed)
	if !allowed {
		l.logger.Debug("rate limited",
			clog.String("key", key),
			clog.Int64("remaining", result[1]),
			clog.Float64("rate", limit.Rate),
			clog.Int("burst", limit.Burst))
	}
	return allowed, nil
}

// Close 不释放 Redis 连接，连接由连接器管理
func (l *distributedLimiter) Close() error {
	return nil
}
