package orchestrator

import (
	"github.com/ceyewan/orchestrator/auth"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/registry"
	"github.com/ceyewan/orchestrator/store"
)

// Option 编排器选项
type Option func(*options)

type options struct {
	logger        clog.Logger
	meter         metrics.Meter
	store         store.Store
	authenticator auth.Authenticator
	peers         registry.Lister
}

// WithLogger 设置 Logger，内部自动添加 namespace "orchestrator"
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("orchestrator")
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

// WithStore 启用编排存储快速路径，未设置时等同 store_policy=disabled
func WithStore(s store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithAuthenticator 为每个编排表单签发授权令牌
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *options) {
		o.authenticator = a
	}
}

// WithPeerDirectory 替换对端云目录，默认使用配置中的静态列表
func WithPeerDirectory(l registry.Lister) Option {
	return func(o *options) {
		if l != nil {
			o.peers = l
		}
	}
}
