package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/trace"
	"github.com/ceyewan/orchestrator/xerrors"
)

// HandleGSD 回答对端云的全局服务发现：本地服务目录中至少有一个提供者时返回本云
func (o *Orchestrator) HandleGSD(ctx context.Context, req model.GSDRequest) (model.GSDResult, error) {
	if err := req.RequestedService.Validate(); err != nil {
		return model.GSDResult{}, xerrors.Mark(xerrors.Wrap(err, "requestedService"), ErrInvalidRequest)
	}

	ctx, span := trace.StartSpan(ctx, "orchestrator.gatekeeper.gsd",
		attribute.String("service", string(req.RequestedService.Key())))
	defer span.End()

	providers, err := o.catalog.Query(ctx, req.RequestedService)
	if err != nil {
		trace.MarkSpanError(span, err)
		return model.GSDResult{}, xerrors.Wrap(err, "service discovery")
	}

	result := model.GSDResult{Response: []model.GSDEntry{}}
	if len(providers) > 0 {
		result.Response = append(result.Response, model.GSDEntry{Cloud: o.cloud})
	}

	requester := ""
	if req.RequesterCloud != nil {
		requester = string(req.RequesterCloud.Key())
	}
	o.logger.DebugContext(ctx, "gsd answered",
		clog.String("requester_cloud", requester),
		clog.String("service", string(req.RequestedService.Key())),
		clog.Int("providers", len(providers)))
	return result, nil
}

// HandleICN 代表对端云的请求者运行本地流水线
//
// 请求方云未被授权使用该服务时返回空结果。发现结果视为已授权，跳过授权与 QoS 过滤。
func (o *Orchestrator) HandleICN(ctx context.Context, req model.ICNRequest) (model.ICNResult, error) {
	form := &model.ServiceRequestForm{
		RequesterSystem:    &req.RequesterSystem,
		RequesterCloud:     &req.RequesterCloud,
		RequestedService:   &req.RequestedService,
		PreferredProviders: req.PreferredProviders,
		RequestedQoS:       req.RequestedQoS,
		Commands:           req.Commands,
	}
	form = form.WithFlag(model.FlagExternalServiceRequest, true).
		WithFlag(model.FlagOnlyPreferred, len(req.PreferredProviders) > 0)
	if err := form.Validate(); err != nil {
		return model.ICNResult{}, xerrors.Mark(err, ErrInvalidRequest)
	}

	ctx, span := trace.StartSpan(ctx, "orchestrator.gatekeeper.icn",
		attribute.String("requester_cloud", string(req.RequesterCloud.Key())),
		attribute.String("service", string(req.RequestedService.Key())))
	defer span.End()

	empty := model.ICNResult{Instructions: model.NewResponse(nil)}

	allowed, err := o.authz.CheckCloud(ctx, req.RequesterCloud, req.RequestedService)
	if err != nil {
		trace.MarkSpanError(span, err)
		return model.ICNResult{}, xerrors.Wrap(err, "cloud authorization")
	}
	if !allowed {
		o.logger.InfoContext(ctx, "icn refused, requester cloud not authorized",
			clog.String("requester_cloud", string(req.RequesterCloud.Key())),
			clog.String("service", string(req.RequestedService.Key())))
		return empty, nil
	}

	_, resp, err := o.orchestrateLocal(ctx, form)
	if err != nil {
		trace.MarkSpanError(span, err)
		return model.ICNResult{}, err
	}
	return model.ICNResult{Instructions: resp}, nil
}
