// Package cache 提供键值缓存组件，用于缓存授权判定等短期结果。
//
// 两种模式语义一致：
//   - standalone：进程内 otter 缓存，存储原始对象
//   - distributed：Redis 缓存，值经 serializer 编码，多实例共享
//
// 基本使用：
//
//	c, _ := cache.New(&cache.Config{Mode: cache.ModeStandalone, DefaultTTL: 30 * time.Second},
//		cache.WithLogger(logger))
//	_ = c.Set(ctx, "consumer|provider|service", true, 0)
//
//	var allowed bool
//	if err := c.Get(ctx, "consumer|provider|service", &allowed); xerrors.Is(err, cache.ErrMiss) {
//		// 回源查询
//	}
package cache

import (
	"context"
	"time"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

var (
	// ErrMiss 键不存在或已过期
	ErrMiss = xerrors.Mark(xerrors.New("cache: miss"), xerrors.ErrNotFound)

	// ErrInvalidDest Get 的 dest 不是非 nil 指针，或类型不兼容
	ErrInvalidDest = xerrors.Mark(xerrors.New("cache: invalid destination"), xerrors.ErrInvalidInput)
)

// Cache 缓存组件的核心能力，方法并发安全
type Cache interface {
	// Set 写入值，ttl <= 0 时使用 Config.DefaultTTL
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get 读取值到 dest，未命中返回 ErrMiss
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	// Expire 重设过期时间，键不存在返回 ErrMiss
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

// New 根据 Mode 创建缓存实例
//
// 分布式模式需要通过 WithRedisConnector 注入已连接的 Redis 连接器。
func New(cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "cache: config is nil")
	}
	cfg.setDefaults()

	opt := options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, o := range opts {
		o(&opt)
	}

	stats, err := newStats(opt.meter, cfg.Mode)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeStandalone:
		return newStandalone(cfg, opt.logger, stats)
	case ModeDistributed:
		if opt.redisConn == nil {
			return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "cache: redis connector is required for distributed mode")
		}
		return newRedis(opt.redisConn, cfg, opt.logger, stats)
	default:
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "cache: unsupported mode %q", cfg.Mode)
	}
}

// stats 命中率指标
type stats struct {
	requests metrics.Counter
	mode     string
}

func newStats(m metrics.Meter, mode string) (*stats, error) {
	requests, err := m.Counter("cache_requests_total", "Cache lookups by result.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create cache requests counter")
	}
	return &stats{requests: requests, mode: mode}, nil
}

func (s *stats) hit(ctx context.Context) {
	s.requests.Inc(ctx, metrics.L("mode", s.mode), metrics.L("result", "hit"))
}

func (s *stats) miss(ctx context.Context) {
	s.requests.Inc(ctx, metrics.L("mode", s.mode), metrics.L("result", "miss"))
}
