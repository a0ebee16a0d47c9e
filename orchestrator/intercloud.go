package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/trace"
	"github.com/ceyewan/orchestrator/xerrors"
)

// OrchestrateInterCloud 运行跨云流水线：GSD 后对肯定回答的云逐一 ICN，按 GSD 顺序拼接表单
//
// 单个对端超时或失败只会被跳过；父 ctx 取消时所有在途调用随之取消并返回 ErrCanceled。
func (o *Orchestrator) OrchestrateInterCloud(ctx context.Context, form *model.ServiceRequestForm) (model.OrchestrationResponse, error) {
	if err := form.Validate(); err != nil {
		return model.OrchestrationResponse{}, xerrors.Mark(err, ErrInvalidRequest)
	}
	return o.interCloud(ctx, form)
}

func (o *Orchestrator) interCloud(ctx context.Context, form *model.ServiceRequestForm) (model.OrchestrationResponse, error) {
	if o.negotiator == nil || o.cloud.CloudName == "" {
		return model.OrchestrationResponse{}, ErrInterCloudUnavailable
	}

	ctx, span := trace.StartSpan(ctx, "orchestrator.intercloud",
		attribute.String("service", string(form.RequestedService.Key())))
	defer span.End()

	peers, err := o.listPeers(ctx)
	if err != nil {
		trace.MarkSpanError(span, err)
		return model.OrchestrationResponse{}, err
	}
	span.AddEvent("peers", withCount(len(peers)))
	if len(peers) == 0 {
		return model.NewResponse(nil), nil
	}

	gsd := o.globalServiceDiscovery(ctx, *form.RequestedService, peers)
	if err := canceled(ctx); err != nil {
		trace.MarkSpanError(span, err)
		return model.OrchestrationResponse{}, err
	}
	span.AddEvent("gsd", withCount(len(gsd.Response)))
	if len(gsd.Response) == 0 {
		return model.NewResponse(nil), nil
	}

	forms := o.negotiate(ctx, form, gsd)
	if err := canceled(ctx); err != nil {
		trace.MarkSpanError(span, err)
		return model.OrchestrationResponse{}, err
	}
	span.AddEvent("icn", withCount(len(forms)))
	return model.NewResponse(forms), nil
}

// listPeers 对端目录中除本云以外的云，按云键去重并保持目录顺序
func (o *Orchestrator) listPeers(ctx context.Context) ([]model.Cloud, error) {
	clouds, err := o.peers.List(ctx)
	if err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "list peer clouds"), xerrors.ErrUnavailable)
	}
	own := o.cloud.Key()
	seen := make(map[model.CloudKey]struct{}, len(clouds))
	out := make([]model.Cloud, 0, len(clouds))
	for _, c := range clouds {
		k := c.Key()
		if k == own {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// globalServiceDiscovery 并发询问所有对端，保留回答肯定的云，顺序与 peers 一致
func (o *Orchestrator) globalServiceDiscovery(ctx context.Context, service model.Service, peers []model.Cloud) model.GSDResult {
	ctx, span := trace.StartSpan(ctx, "orchestrator.gsd", attribute.Int("peers", len(peers)))
	defer span.End()

	requester := o.cloud
	req := model.GSDRequest{RequestedService: service, RequesterCloud: &requester}

	answers := fanOut(ctx, o.cfg.MaxConcurrentPeers, o.cfg.GSDTimeout, peers,
		func(ctx context.Context, peer model.Cloud) (bool, error) {
			res, err := o.negotiator.InitGSD(ctx, peer, req)
			if err != nil {
				return false, err
			}
			return len(res.Response) > 0, nil
		},
		func(peer model.Cloud, err error) { o.observePeer(ctx, modeGSD, peer, err) },
	)

	result := model.GSDResult{Response: []model.GSDEntry{}}
	for i, a := range answers {
		if a.ok && a.value {
			result.Response = append(result.Response, model.GSDEntry{Cloud: peers[i]})
		}
	}
	return result
}

// negotiate 对 GSD 结果中的每个云发起 ICN，按 GSD 顺序拼接表单
func (o *Orchestrator) negotiate(ctx context.Context, form *model.ServiceRequestForm, gsd model.GSDResult) []model.OrchestrationForm {
	clouds := make([]model.Cloud, 0, len(gsd.Response))
	for _, e := range gsd.Response {
		clouds = append(clouds, e.Cloud)
	}

	ctx, span := trace.StartSpan(ctx, "orchestrator.icn", attribute.Int("clouds", len(clouds)))
	defer span.End()

	results := fanOut(ctx, o.cfg.MaxConcurrentPeers, o.cfg.ICNTimeout, clouds,
		func(ctx context.Context, peer model.Cloud) (model.ICNResult, error) {
			return o.negotiator.InitICN(ctx, peer, o.icnRequest(form, peer))
		},
		func(peer model.Cloud, err error) { o.observePeer(ctx, modeICN, peer, err) },
	)

	forms := []model.OrchestrationForm{}
	for i, r := range results {
		if !r.ok {
			continue
		}
		for _, f := range r.value.Instructions.Response {
			if f.ProviderCloud == nil {
				peer := clouds[i]
				f.ProviderCloud = &peer
			}
			forms = append(forms, f)
		}
	}
	return forms
}

func (o *Orchestrator) icnRequest(form *model.ServiceRequestForm, target model.Cloud) model.ICNRequest {
	return model.ICNRequest{
		RequestedService:   *form.RequestedService,
		RequesterSystem:    *form.RequesterSystem,
		RequesterCloud:     o.cloud,
		TargetCloud:        target,
		AuthenticationInfo: form.RequesterSystem.AuthenticationInfo,
		PreferredProviders: form.PreferredProviders,
		RequestedQoS:       form.RequestedQoS,
		Commands:           form.Commands,
	}
}

func (o *Orchestrator) observePeer(ctx context.Context, phase string, peer model.Cloud, err error) {
	o.metrics.observePeer(ctx, phase, err)
	if err != nil {
		o.logger.WarnContext(ctx, "peer cloud call failed, skipping",
			clog.String("phase", phase),
			clog.String("peer", string(peer.Key())),
			clog.Error(err))
	}
}

type peerAnswer[T any] struct {
	value T
	ok    bool
}

// fanOut 以并发上限 limit 对每个对端调用 call，每次调用有独立超时
//
// 等待全部调用结束才返回，结果下标与 peers 对应；失败的调用 ok 为 false。
func fanOut[T any](ctx context.Context, limit int, timeout time.Duration, peers []model.Cloud,
	call func(context.Context, model.Cloud) (T, error), observe func(model.Cloud, error)) []peerAnswer[T] {
	answers := make([]peerAnswer[T], len(peers))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, peer := range peers {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			v, err := call(callCtx, peer)
			observe(peer, err)
			if err == nil {
				answers[i] = peerAnswer[T]{value: v, ok: true}
			}
			return nil
		})
	}
	_ = g.Wait()
	return answers
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return xerrors.Mark(xerrors.Wrap(err, "inter-cloud orchestration"), xerrors.ErrCanceled)
	}
	return nil
}
