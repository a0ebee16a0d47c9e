// Package filter 实现编排流水线共享的提供者过滤链：授权、QoS 验证与 QoS 预留，
// 以及决定静态绑定能否满足接口请求的接口兼容性判断。
//
// 过滤只删除候选，不重排：输出保持上游（服务目录或编排存储）给出的顺序，
// 选择策略为首个匹配。
package filter

import (
	"context"
	"slices"

	"github.com/ceyewan/orchestrator/client"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

var (
	// ErrReservationFailed 选定提供者的 QoS 预留被拒绝或调用失败，不回退到下一个候选
	ErrReservationFailed = xerrors.Mark(xerrors.New("filter: qos reservation failed"), xerrors.ErrConflict)

	// ErrNoCandidate 预留阶段没有候选
	ErrNoCandidate = xerrors.Mark(xerrors.New("filter: no candidate to reserve"), xerrors.ErrNotFound)
)

// Chain 提供者过滤链，方法并发安全
type Chain struct {
	auth   client.Authorization
	qos    client.QoSManager
	logger clog.Logger
}

// Option 过滤链选项
type Option func(*Chain)

// WithLogger 设置 Logger，内部自动添加 namespace "filter"
func WithLogger(l clog.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l.WithNamespace("filter")
		}
	}
}

// New 创建过滤链
func New(auth client.Authorization, qos client.QoSManager, opts ...Option) *Chain {
	c := &Chain{auth: auth, qos: qos, logger: clog.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAuthorized 判定单个 (consumer, provider, service) 三元组，缺失的判定视为未授权
func (c *Chain) IsAuthorized(ctx context.Context, consumer, provider model.System, service model.Service) (bool, error) {
	answers, err := c.auth.Check(ctx, consumer, []model.System{provider}, service)
	if err != nil {
		return false, err
	}
	return answers[provider.Key()], nil
}

// Authorize 一次查询全部候选的授权，删除未被明确授权的提供者
func (c *Chain) Authorize(ctx context.Context, consumer model.System, service model.Service, candidates []model.ProvidedService) ([]model.ProvidedService, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	answers, err := c.auth.Check(ctx, consumer, model.UniqueProviders(candidates), service)
	if err != nil {
		return nil, xerrors.Wrap(err, "authorization check")
	}

	kept := keep(candidates, func(b model.ProvidedService) bool {
		return answers[b.Provider.Key()]
	})
	c.logger.DebugContext(ctx, "authorization filter applied",
		clog.String("consumer", string(consumer.Key())),
		clog.Int("candidates", len(candidates)),
		clog.Int("authorized", len(kept)))
	return kept, nil
}

// Verify 查询 QoS 可行性，只删除被明确判定为不可行的提供者
func (c *Chain) Verify(ctx context.Context, form *model.ServiceRequestForm, candidates []model.ProvidedService) ([]model.ProvidedService, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	answers, err := c.qos.Verify(ctx, client.VerifyRequest{
		Requester:    *form.RequesterSystem,
		Service:      *form.RequestedService,
		Providers:    model.UniqueProviders(candidates),
		RequestedQoS: form.RequestedQoS,
		Commands:     form.Commands,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "qos verify")
	}

	kept := keep(candidates, func(b model.ProvidedService) bool {
		feasible, ok := answers[b.Provider.Key()]
		return !ok || feasible
	})
	c.logger.DebugContext(ctx, "qos verification applied",
		clog.Int("candidates", len(candidates)),
		clog.Int("feasible", len(kept)))
	return kept, nil
}

// Reserve 在第一个候选上预留 QoS 资源并返回它
//
// 预留失败或被拒绝时返回 ErrReservationFailed，不尝试下一个候选。
func (c *Chain) Reserve(ctx context.Context, form *model.ServiceRequestForm, candidates []model.ProvidedService) (model.ProvidedService, error) {
	if len(candidates) == 0 {
		return model.ProvidedService{}, ErrNoCandidate
	}

	selected := candidates[0]
	result, err := c.qos.Reserve(ctx, client.ReserveRequest{
		Provider:     selected.Provider,
		Requester:    *form.RequesterSystem,
		Service:      *form.RequestedService,
		RequestedQoS: form.RequestedQoS,
		Commands:     form.Commands,
	})
	if err != nil {
		return model.ProvidedService{}, xerrors.Mark(
			xerrors.Wrapf(err, "reserve on %s", selected.Provider.Key()), ErrReservationFailed)
	}
	if !result.Reserved {
		return model.ProvidedService{}, xerrors.Wrapf(ErrReservationFailed, "provider %s refused: %s",
			selected.Provider.Key(), result.Reason)
	}

	c.logger.DebugContext(ctx, "qos reserved", clog.String("provider", string(selected.Provider.Key())))
	return selected, nil
}

// OnlyPreferred 只保留偏好列表中的提供者，保持发现顺序
func OnlyPreferred(candidates []model.ProvidedService, preferred []model.System) []model.ProvidedService {
	wanted := make(map[model.SystemKey]struct{}, len(preferred))
	for _, p := range preferred {
		wanted[p.Key()] = struct{}{}
	}
	return keep(candidates, func(b model.ProvidedService) bool {
		_, ok := wanted[b.Provider.Key()]
		return ok
	})
}

// InterfaceCompatible requested 未声明接口（通配）或与 candidate 的接口有交集时成立
func InterfaceCompatible(requested, candidate model.Service) bool {
	if len(requested.Interfaces) == 0 {
		return true
	}
	for _, iface := range requested.Interfaces {
		if slices.Contains(candidate.Interfaces, iface) {
			return true
		}
	}
	return false
}

// SelectInterface 为静态绑定挑选一个接口：优先取 candidate 中第一个被请求的接口
func SelectInterface(requested, candidate model.Service) string {
	for _, iface := range candidate.Interfaces {
		if len(requested.Interfaces) == 0 || slices.Contains(requested.Interfaces, iface) {
			return iface
		}
	}
	if len(requested.Interfaces) > 0 {
		return requested.Interfaces[0]
	}
	return ""
}

func keep(in []model.ProvidedService, pred func(model.ProvidedService) bool) []model.ProvidedService {
	out := make([]model.ProvidedService, 0, len(in))
	for _, b := range in {
		if pred(b) {
			out = append(out, b)
		}
	}
	return out
}
