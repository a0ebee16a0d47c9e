package model

import (
	"slices"

	"github.com/ceyewan/orchestrator/xerrors"
)

// 编排标志
const (
	FlagTriggerInterCloud      = "triggerInterCloud"
	FlagExternalServiceRequest = "externalServiceRequest"
	FlagOverrideStore          = "overrideStore"
	FlagOnlyPreferred          = "onlyPreferred"
	FlagEnableInterCloud       = "enableInterCloud"
)

// Flags 具名布尔标志，缺省为 false
type Flags map[string]bool

// Get 读取标志，nil 安全
func (f Flags) Get(name string) bool {
	return f[name]
}

// Clone 复制标志表
func (f Flags) Clone() Flags {
	out := make(Flags, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ServiceRequestForm 消费者的编排请求
type ServiceRequestForm struct {
	RequesterSystem    *System           `json:"requesterSystem"`
	RequesterCloud     *Cloud            `json:"requesterCloud,omitempty"`
	RequestedService   *Service          `json:"requestedService"`
	OrchestrationFlags Flags             `json:"orchestrationFlags,omitempty"`
	PreferredProviders []System          `json:"preferredProviders,omitempty"`
	RequestedQoS       map[string]string `json:"requestedQoS,omitempty"`
	Commands           map[string]string `json:"commands,omitempty"`
}

// Validate 请求者与请求服务必须存在且结构合法
func (f *ServiceRequestForm) Validate() error {
	if f == nil {
		return xerrors.Wrapf(ErrInvalid, "request form is required")
	}
	if f.RequesterSystem == nil {
		return xerrors.Wrapf(ErrInvalid, "requesterSystem is required")
	}
	if err := f.RequesterSystem.Validate(); err != nil {
		return xerrors.Wrap(err, "requesterSystem")
	}
	if f.RequestedService == nil {
		return xerrors.Wrapf(ErrInvalid, "requestedService is required")
	}
	if err := f.RequestedService.Validate(); err != nil {
		return xerrors.Wrap(err, "requestedService")
	}
	if f.RequesterCloud != nil {
		if err := f.RequesterCloud.Validate(); err != nil {
			return xerrors.Wrap(err, "requesterCloud")
		}
	}
	for i, p := range f.PreferredProviders {
		if err := p.Validate(); err != nil {
			return xerrors.Wrapf(err, "preferredProviders[%d]", i)
		}
	}
	return nil
}

// Flag 读取编排标志
func (f *ServiceRequestForm) Flag(name string) bool {
	return f.OrchestrationFlags.Get(name)
}

// WithFlag 返回设置了指定标志的浅拷贝，原请求不变
func (f *ServiceRequestForm) WithFlag(name string, value bool) *ServiceRequestForm {
	out := *f
	out.OrchestrationFlags = f.OrchestrationFlags.Clone()
	out.OrchestrationFlags[name] = value
	out.PreferredProviders = slices.Clone(f.PreferredProviders)
	return &out
}

// OrchestrationStoreEntry 管理员维护的消费者到提供者绑定
type OrchestrationStoreEntry struct {
	ID             uint64  `json:"id"`
	Service        Service `json:"service"`
	Consumer       System  `json:"consumer"`
	ProviderSystem System  `json:"providerSystem"`
	ProviderCloud  *Cloud  `json:"providerCloud,omitempty"`
	ServiceURI     string  `json:"serviceURI,omitempty"`
	Priority       int     `json:"priority"`
	IsDefault      bool    `json:"isDefault"`
	Name           string  `json:"name,omitempty"`
}

// Validate 三方身份必须合法，优先级非负
func (e OrchestrationStoreEntry) Validate() error {
	if err := e.Consumer.Validate(); err != nil {
		return xerrors.Wrap(err, "consumer")
	}
	if err := e.ProviderSystem.Validate(); err != nil {
		return xerrors.Wrap(err, "providerSystem")
	}
	if err := e.Service.Validate(); err != nil {
		return xerrors.Wrap(err, "service")
	}
	if e.ProviderCloud != nil {
		if err := e.ProviderCloud.Validate(); err != nil {
			return xerrors.Wrap(err, "providerCloud")
		}
	}
	if e.Priority < 0 {
		return xerrors.Wrapf(ErrInvalid, "priority must not be negative")
	}
	return nil
}

// AuthorizationRelation (consumer, provider, service) 授权关系，存在即授权
type AuthorizationRelation struct {
	Consumer System  `json:"consumer"`
	Provider System  `json:"provider"`
	Service  Service `json:"service"`
}

// Key 返回 consumer|provider|service 组合键
func (r AuthorizationRelation) Key() string {
	return string(r.Consumer.Key()) + "|" + string(r.Provider.Key()) + "|" + string(r.Service.Key())
}
