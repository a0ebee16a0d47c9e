package breaker

import (
	"context"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// FallbackFunc 熔断打开时的降级函数，err 通常是 ErrOpenState。
// 返回 nil 表示降级成功，Execute 返回 (nil, nil)。
type FallbackFunc func(ctx context.Context, key string, err error) error

// FailureFunc 判断 fn 返回的错误是否计入失败，返回 false 的错误不推动熔断
type FailureFunc func(err error) bool

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	fallback  FallbackFunc
	isFailure FailureFunc
}

// WithLogger 设置 Logger，内部自动添加 namespace "breaker"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置指标 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithFallback 设置降级函数
func WithFallback(fallback FallbackFunc) Option {
	return func(o *options) {
		o.fallback = fallback
	}
}

// WithFailureFunc 设置失败判定
//
//	breaker.WithFailureFunc(func(err error) bool {
//		return xerrors.Is(err, xerrors.ErrUnavailable)
//	})
func WithFailureFunc(fn FailureFunc) Option {
	return func(o *options) {
		o.isFailure = fn
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
