package client

import (
	"net/http"

	"github.com/ceyewan/orchestrator/breaker"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
)

// Option 客户端选项
type Option func(*options)

type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	breaker    breaker.Breaker
	httpClient *http.Client
}

// WithLogger 设置 Logger，内部自动添加 namespace "client"
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("client")
		}
	}
}

// WithMeter 设置指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithBreaker 为每个协作方与对端云启用熔断，键为 "registry"、"authorization"、"qos" 与 "peer:<operator>/<name>"
func WithBreaker(b breaker.Breaker) Option {
	return func(o *options) {
		o.breaker = b
	}
}

// WithHTTPClient 替换底层 http.Client，默认使用带 otelhttp Transport 的客户端
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
