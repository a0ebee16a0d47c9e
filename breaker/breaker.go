// Package breaker 提供按键隔离的熔断器，编排服务用它保护对外部系统的调用：
// 服务注册中心、授权系统、QoS 管理器以及每个对端云的网关。
//
// 每个键（通常是目标系统名或对端云标识）持有独立的 gobreaker 实例，
// 一个对端云的持续失败不会影响其他对端。
//
// 基本使用：
//
//	brk, _ := breaker.New(&breaker.Config{
//		Timeout:         30 * time.Second,
//		FailureRatio:    0.6,
//		MinimumRequests: 10,
//	}, breaker.WithLogger(logger), breaker.WithMeter(meter))
//
//	v, err := brk.Execute(ctx, "cloud:operator/name", func() (any, error) {
//		return client.Call(ctx, req)
//	})
//	if xerrors.Is(err, breaker.ErrOpenState) {
//		// 快速失败
//	}
package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/orchestrator/xerrors"
)

// Breaker 熔断器核心接口
type Breaker interface {
	// Execute 执行受熔断保护的函数，key 为空返回 ErrKeyEmpty。
	// 熔断打开时不调用 fn，返回 ErrOpenState 或降级函数的结果。
	Execute(ctx context.Context, key string, fn func() (any, error)) (any, error)

	// State 获取指定键的熔断器状态，未使用过的键视为闭合
	State(key string) (State, error)
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// MaxRequests 半开状态下允许通过的最大请求数（默认：1）
	MaxRequests uint32 `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`

	// Interval 闭合状态下的统计周期，0 表示不清空统计
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Timeout 打开状态持续时间，之后进入半开（默认：30s）
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// FailureRatio 失败率阈值（默认：0.6）
	FailureRatio float64 `json:"failure_ratio" yaml:"failure_ratio" mapstructure:"failure_ratio"`

	// MinimumRequests 统计周期内触发熔断的最小请求数（默认：10）
	MinimumRequests uint32 `json:"minimum_requests" yaml:"minimum_requests" mapstructure:"minimum_requests"`
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

func (c *Config) validate() error {
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		return xerrors.Wrapf(ErrInvalidConfig, "failure_ratio must be in (0, 1], got %v", c.FailureRatio)
	}
	if c.Timeout < 0 || c.Interval < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "timeout and interval must not be negative")
	}
	return nil
}

// New 创建熔断器实例
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts)
	return newBreaker(cfg, opt)
}
