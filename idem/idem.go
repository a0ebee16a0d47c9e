// Package idem 为存储管理写接口提供幂等键支持。
//
// 客户端在请求头 Idempotency-Key 中携带键，同一路由上重复提交同一键时，
// 直接回放第一次成功的响应，不再执行写入；仍在处理中的重复请求被拒绝。
// 只缓存 2xx 响应，失败的请求可以用同一键重试。
//
//	guard, _ := idem.New(&idem.Config{Driver: idem.DriverRedis},
//		idem.WithRedisConnector(redisConn), idem.WithLogger(logger))
//	router.POST("/orchestrator/mgmt/store", guard.GinMiddleware(), handler)
package idem

import (
	"github.com/gin-gonic/gin"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/connector"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

// ReplayedHeader 回放的响应带有该头
const ReplayedHeader = "Idempotent-Replayed"

// Idempotency 幂等组件
type Idempotency interface {
	// GinMiddleware 按请求头中的幂等键去重，没有键的请求直接放行
	GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc
}

// Option 组件选项
type Option func(*options)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	redisConn connector.RedisConnector
}

// WithLogger 设置 Logger，内部自动添加 namespace "idem"
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("idem")
		}
	}
}

// WithMeter 设置指标
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithRedisConnector 注入 Redis 连接器，redis 后端必需
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		if conn != nil {
			o.redisConn = conn
		}
	}
}

type idem struct {
	cfg     Config
	store   Store
	logger  clog.Logger
	outcome metrics.Counter
}

// New 创建幂等组件
func New(cfg *Config, opts ...Option) (Idempotency, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	outcome, err := o.meter.Counter("idempotency_requests_total",
		"Requests carrying an idempotency key, by outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "idem: create counter")
	}

	var st Store
	switch c.Driver {
	case DriverRedis:
		if o.redisConn == nil {
			return nil, ErrConnectorRequired
		}
		st = newRedisStore(o.redisConn, c.Prefix)
	default:
		st = newMemoryStore(c.Prefix)
	}

	o.logger.Info("idem component created",
		clog.String("driver", string(c.Driver)),
		clog.String("prefix", c.Prefix),
		clog.Duration("ttl", c.TTL),
		clog.Duration("lock_ttl", c.LockTTL))

	return &idem{cfg: c, store: st, logger: o.logger, outcome: outcome}, nil
}
