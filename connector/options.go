package connector

import (
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// Option 配置连接器的选项
type Option func(*options)

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// connectionMetrics 连接尝试计数，所有连接器共用同一组指标名
type connectionMetrics struct {
	attempts metrics.Counter
	active   metrics.Gauge
}

func newConnectionMetrics(m metrics.Meter) connectionMetrics {
	attempts, err := m.Counter("connector_connect_attempts_total", "Connector connect attempts by outcome.")
	if err != nil {
		attempts, _ = metrics.Discard().Counter("", "")
	}
	active, err := m.Gauge("connector_active", "Whether the connector currently holds a live connection.")
	if err != nil {
		active, _ = metrics.Discard().Gauge("", "")
	}
	return connectionMetrics{attempts: attempts, active: active}
}
