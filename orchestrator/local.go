package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/filter"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/trace"
	"github.com/ceyewan/orchestrator/xerrors"
)

// orchestrateLocal 本地流水线，返回实际走过的路径（store 或 local）
//
// 调用方已完成请求校验。
func (o *Orchestrator) orchestrateLocal(ctx context.Context, form *model.ServiceRequestForm) (string, model.OrchestrationResponse, error) {
	ctx, span := trace.StartSpan(ctx, "orchestrator.local")
	defer span.End()

	consumer := *form.RequesterSystem
	service := *form.RequestedService

	if o.useStore(form) {
		entries, err := o.store.GetEntries(ctx, consumer, service)
		if err != nil {
			trace.MarkSpanError(span, err)
			return modeStore, model.OrchestrationResponse{}, xerrors.Wrap(err, "store lookup")
		}
		span.AddEvent("store", withCount(len(entries)))
		if len(entries) > 0 || o.cfg.StorePolicy == StorePolicyInstead {
			forms, err := o.assembleFromStore(ctx, consumer, service, entries)
			if err != nil {
				trace.MarkSpanError(span, err)
				return modeStore, model.OrchestrationResponse{}, err
			}
			return modeStore, model.NewResponse(forms), nil
		}
	}

	resp, err := o.dynamic(ctx, form)
	trace.MarkSpanError(span, err)
	return modeLocal, resp, err
}

// dynamic 服务发现与过滤链
func (o *Orchestrator) dynamic(ctx context.Context, form *model.ServiceRequestForm) (model.OrchestrationResponse, error) {
	span := oteltrace.SpanFromContext(ctx)
	consumer := *form.RequesterSystem
	service := *form.RequestedService

	candidates, err := o.catalog.Query(ctx, service)
	if err != nil {
		return model.OrchestrationResponse{}, xerrors.Wrap(err, "service discovery")
	}
	span.AddEvent("discovery", withCount(len(candidates)))
	o.logger.DebugContext(ctx, "providers discovered",
		clog.String("service", string(service.Key())), clog.Int("count", len(candidates)))
	if len(candidates) == 0 {
		return model.NewResponse(nil), nil
	}

	if form.Flag(model.FlagOnlyPreferred) {
		candidates = filter.OnlyPreferred(candidates, form.PreferredProviders)
		span.AddEvent("preferred", withCount(len(candidates)))
		if len(candidates) == 0 {
			return model.NewResponse(nil), nil
		}
	}

	if form.Flag(model.FlagExternalServiceRequest) {
		forms, err := o.assemble(ctx, consumer, service, candidates)
		if err != nil {
			return model.OrchestrationResponse{}, err
		}
		return model.NewResponse(forms), nil
	}

	candidates, err = o.chain.Authorize(ctx, consumer, service, candidates)
	if err != nil {
		return model.OrchestrationResponse{}, err
	}
	span.AddEvent("authorization", withCount(len(candidates)))
	if len(candidates) == 0 {
		return model.NewResponse(nil), nil
	}

	candidates, err = o.chain.Verify(ctx, form, candidates)
	if err != nil {
		return model.OrchestrationResponse{}, err
	}
	span.AddEvent("qos.verify", withCount(len(candidates)))
	if len(candidates) == 0 {
		return model.NewResponse(nil), nil
	}

	selected, err := o.chain.Reserve(ctx, form, candidates)
	if err != nil {
		return model.OrchestrationResponse{}, err
	}
	span.AddEvent("qos.reserve", oteltrace.WithAttributes(attribute.String("provider", string(selected.Provider.Key()))))

	forms, err := o.assemble(ctx, consumer, service, []model.ProvidedService{selected})
	if err != nil {
		return model.OrchestrationResponse{}, err
	}
	return model.NewResponse(forms), nil
}

func (o *Orchestrator) useStore(form *model.ServiceRequestForm) bool {
	return o.store != nil &&
		o.cfg.StorePolicy != StorePolicyDisabled &&
		!form.Flag(model.FlagOverrideStore)
}

func withCount(n int) oteltrace.EventOption {
	return oteltrace.WithAttributes(attribute.Int("count", n))
}
