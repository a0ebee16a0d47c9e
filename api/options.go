package api

import (
	"github.com/ceyewan/orchestrator/auth"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/idem"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/ratelimit"
	"github.com/ceyewan/orchestrator/store"
)

// Option 服务选项
type Option func(*options)

type options struct {
	logger        clog.Logger
	meter         metrics.Meter
	store         store.Store
	limiter       ratelimit.Limiter
	limit         ratelimit.Limit
	authenticator auth.Authenticator
	tokenHead     string
	idempotency   idem.Idempotency
}

// WithLogger 设置 Logger，内部自动添加 namespace "api"
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("api")
		}
	}
}

// WithMeter 设置指标 Meter，同时挂载 /metrics
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithStore 启用存储查询与管理接口，未设置时这些接口返回 503
func WithStore(s store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithRateLimit 按客户端 IP 与路由限流
func WithRateLimit(l ratelimit.Limiter, limit ratelimit.Limit) Option {
	return func(o *options) {
		o.limiter = l
		o.limit = limit
	}
}

// WithManagementAuth 管理接口要求 aud 为 auth.ManagementAudience 的令牌
func WithManagementAuth(a auth.Authenticator, tokenHead string) Option {
	return func(o *options) {
		o.authenticator = a
		o.tokenHead = tokenHead
	}
}

// WithIdempotency 存储写入接口识别幂等键，重复提交回放第一次的响应
func WithIdempotency(i idem.Idempotency) Option {
	return func(o *options) {
		o.idempotency = i
	}
}
