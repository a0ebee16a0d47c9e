package orchestrator

import (
	"context"

	"github.com/ceyewan/orchestrator/auth"
	"github.com/ceyewan/orchestrator/filter"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

// assemble 为每个提供者绑定生成一个表单，服务接口收窄为绑定提供的接口
func (o *Orchestrator) assemble(ctx context.Context, consumer model.System, requested model.Service, bindings []model.ProvidedService) ([]model.OrchestrationForm, error) {
	forms := make([]model.OrchestrationForm, 0, len(bindings))
	for _, b := range bindings {
		iface := b.ServiceInterface
		if iface == "" {
			iface = filter.SelectInterface(requested, b.Service)
		}
		form := model.OrchestrationForm{
			Service:    b.Service.Narrow(iface),
			Provider:   b.Provider,
			ServiceURI: b.ServiceURI,
		}
		if err := o.sign(ctx, consumer, &form); err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

// assembleFromStore 存储条目直接成为表单，不经过授权与 QoS
func (o *Orchestrator) assembleFromStore(ctx context.Context, consumer model.System, requested model.Service, entries []model.OrchestrationStoreEntry) ([]model.OrchestrationForm, error) {
	forms := make([]model.OrchestrationForm, 0, len(entries))
	for _, e := range entries {
		form := model.OrchestrationForm{
			Service:       e.Service.Narrow(filter.SelectInterface(requested, e.Service)),
			Provider:      e.ProviderSystem,
			ProviderCloud: e.ProviderCloud,
			ServiceURI:    e.ServiceURI,
		}
		if err := o.sign(ctx, consumer, &form); err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

// sign 未配置 Authenticator 时不签发令牌
func (o *Orchestrator) sign(ctx context.Context, consumer model.System, form *model.OrchestrationForm) error {
	if o.authenticator == nil {
		return nil
	}
	iface := ""
	if len(form.Service.Interfaces) > 0 {
		iface = form.Service.Interfaces[0]
	}
	token, err := o.authenticator.Issue(ctx, auth.Grant{
		Consumer:  string(consumer.Key()),
		Provider:  string(form.Provider.Key()),
		Service:   string(form.Service.Key()),
		Interface: iface,
	})
	if err != nil {
		return xerrors.Mark(xerrors.Wrapf(err, "issue token for %s", form.Provider.Key()), xerrors.ErrInternal)
	}
	form.AuthorizationInfo = token
	return nil
}
