// Package orchestrator 实现编排引擎：把消费者对抽象服务的请求解析为具体、可达、
// 已授权且满足 QoS 的提供者。
//
// 本地流水线严格按顺序执行：
//
//	校验 -> 编排存储（可选） -> 服务发现 -> [外部请求直接组装]
//	     -> 偏好过滤 -> 授权 -> QoS 验证 -> QoS 预留 -> 组装
//
// 任何阶段失败都会终止整个请求，不返回部分结果。
//
// 跨云流水线分两轮：GSD 并发询问所有对端云是否托管该服务，ICN 只对回答肯定的云
// 并发发起协商。两轮都有并发上限和单对端超时，单个对端失败只会让结果变少，
// 不会让编排失败。
//
// 网关一侧的 HandleGSD / HandleICN 处理来自对端云的请求。
//
// 基本使用：
//
//	o, _ := orchestrator.New(&cfg.Orchestrator, clients,
//	    orchestrator.WithStore(st),
//	    orchestrator.WithLogger(logger),
//	)
//	resp, err := o.Orchestrate(ctx, form)
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ceyewan/orchestrator/auth"
	"github.com/ceyewan/orchestrator/client"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/filter"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/registry"
	"github.com/ceyewan/orchestrator/store"
	"github.com/ceyewan/orchestrator/trace"
	"github.com/ceyewan/orchestrator/xerrors"
)

// Orchestrator 编排引擎，方法并发安全
//
// 请求之间只共享只读的配置、编排存储与协作方客户端。
type Orchestrator struct {
	cfg           Config
	cloud         model.Cloud
	catalog       client.ServiceCatalog
	authz         client.Authorization
	negotiator    client.CloudNegotiator
	chain         *filter.Chain
	store         store.Store
	authenticator auth.Authenticator
	peers         registry.Lister
	logger        clog.Logger
	metrics       *pipelineMetrics
}

// New 创建编排引擎
//
// clients 中 Catalog、Authorization、QoS 必须非 nil；Negotiator 为 nil 时跨云编排不可用。
func New(cfg *Config, clients *client.Clients, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	if clients == nil || clients.Catalog == nil || clients.Authorization == nil || clients.QoS == nil {
		return nil, xerrors.Wrap(ErrMissingCollaborator, "catalog, authorization and qos clients are required")
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	if o.peers == nil {
		o.peers = registry.NewStatic(c.PeerClouds())
	}

	m, err := newPipelineMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:           c,
		cloud:         c.Cloud.Cloud(),
		catalog:       clients.Catalog,
		authz:         clients.Authorization,
		negotiator:    clients.Negotiator,
		chain:         filter.New(clients.Authorization, clients.QoS, filter.WithLogger(o.logger)),
		store:         o.store,
		authenticator: o.authenticator,
		peers:         o.peers,
		logger:        o.logger,
		metrics:       m,
	}, nil
}

// Cloud 本云身份
func (o *Orchestrator) Cloud() model.Cloud {
	return o.cloud
}

// Orchestrate 处理一次编排请求
//
// triggerInterCloud 时只运行跨云流水线；否则运行本地流水线，结果为空且
// enableInterCloud 标志或 enable_inter_cloud_fallback 配置开启时再运行跨云流水线。
func (o *Orchestrator) Orchestrate(ctx context.Context, form *model.ServiceRequestForm) (model.OrchestrationResponse, error) {
	start := time.Now()
	if err := form.Validate(); err != nil {
		o.metrics.observe(ctx, modeLocal, 0, err, time.Since(start))
		return model.OrchestrationResponse{}, xerrors.Mark(err, ErrInvalidRequest)
	}

	ctx, span := trace.StartSpan(ctx, "orchestrator.orchestrate",
		attribute.String("consumer", string(form.RequesterSystem.Key())),
		attribute.String("service", string(form.RequestedService.Key())))
	defer span.End()

	var (
		mode string
		resp model.OrchestrationResponse
		err  error
	)
	if form.Flag(model.FlagTriggerInterCloud) {
		mode = modeInterCloud
		resp, err = o.interCloud(ctx, form)
	} else {
		mode, resp, err = o.orchestrateLocal(ctx, form)
		if err == nil && resp.Empty() && o.fallbackEnabled(form) {
			mode = modeFallback
			resp, err = o.interCloud(ctx, form)
		}
	}

	trace.MarkSpanError(span, err)
	o.metrics.observe(ctx, mode, len(resp.Response), err, time.Since(start))

	fields := []clog.Field{
		clog.String("consumer", string(form.RequesterSystem.Key())),
		clog.String("service", string(form.RequestedService.Key())),
		clog.String("mode", mode),
		clog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		o.logger.WarnContext(ctx, "orchestration failed", append(fields, clog.Error(err))...)
		return model.OrchestrationResponse{}, err
	}
	o.logger.InfoContext(ctx, "orchestration completed", append(fields, clog.Int("forms", len(resp.Response)))...)
	return resp, nil
}

func (o *Orchestrator) fallbackEnabled(form *model.ServiceRequestForm) bool {
	return form.Flag(model.FlagEnableInterCloud) || (o.cfg.EnableInterCloudFallback && o.negotiator != nil)
}
