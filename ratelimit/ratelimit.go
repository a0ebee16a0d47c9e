// Package ratelimit 提供令牌桶限流，保护编排服务的入站接口。
//
// 两种模式共享 Limiter 接口：
//   - standalone：基于 golang.org/x/time/rate 的进程内限流
//   - distributed：基于 Redis + Lua 的集群级限流，多个编排实例共享配额
//
// 基本使用：
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{Mode: ratelimit.ModeStandalone},
//		ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	r.Use(ratelimit.GinMiddleware(limiter, nil, func(*gin.Context) ratelimit.Limit {
//		return ratelimit.Limit{Rate: 100, Burst: 200}
//	}))
package ratelimit

import (
	"context"
	"time"

	"github.com/ceyewan/orchestrator/xerrors"
)

// 限流模式
const (
	ModeStandalone  = "standalone"
	ModeDistributed = "distributed"
)

// Limit 令牌桶规则
type Limit struct {
	Rate  float64 `json:"rate" yaml:"rate" mapstructure:"rate"`    // 每秒生成的令牌数
	Burst int     `json:"burst" yaml:"burst" mapstructure:"burst"` // 桶容量
}

// Valid 速率与容量均为正
func (l Limit) Valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// Limiter 限流器核心接口
type Limiter interface {
	// Allow 尝试获取 1 个令牌，不阻塞
	Allow(ctx context.Context, key string, limit Limit) (bool, error)

	// AllowN 尝试获取 n 个令牌，不阻塞
	AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error)

	Close() error
}

// Config 限流组件配置
//
//	ratelimit:
//	  enabled: true
//	  mode: standalone
//	  default: {rate: 100, burst: 200}
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Mode    string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// Default 未按路由单独配置时使用的规则
	Default Limit `json:"default" yaml:"default" mapstructure:"default"`

	// CleanupInterval 单机模式清理空闲限流器的间隔（默认：1 分钟）
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`

	// IdleTimeout 单机模式限流器空闲超时（默认：5 分钟）
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`

	// Prefix 分布式模式的 Redis Key 前缀（默认："ratelimit:"）
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.Prefix == "" {
		c.Prefix = "ratelimit:"
	}
}

// New 根据 Mode 创建限流器
//
// 分布式模式需要通过 WithRedisConnector 注入已连接的 Redis 连接器。
func New(cfg *Config, opts ...Option) (Limiter, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()

	opt := applyOptions(opts)
	m, err := newLimiterMetrics(opt.meter)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeStandalone:
		return newStandalone(cfg, opt.logger, m), nil
	case ModeDistributed:
		if opt.redisConn == nil {
			return nil, ErrConnectorNil
		}
		return newDistributed(cfg, opt.redisConn, opt.logger, m)
	default:
		return nil, xerrors.Wrapf(ErrConfigNil, "unsupported mode %q", cfg.Mode)
	}
}

func validateRequest(key string, limit Limit, n int) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if !limit.Valid() || n <= 0 {
		return ErrInvalidLimit
	}
	return nil
}
