// Package model 定义编排流水线各阶段共享的数据模型。
//
// 所有实体都是值语义：流水线只做过滤、复制与重新标记（例如把服务的接口列表收窄为一个），
// 从不原地修改 System、Service 或 Cloud。
//
// 身份与组合键：
//   - System 由 (systemGroup, systemName) 唯一确定，Key() 返回 "group/name"，各段经路径转义，
//     因此字段内含 "/" 或 "|" 时不同身份也不会得到相同的键
//   - Service 由 (serviceGroup, serviceDefinition) 确定同一服务，接口兼容性另行判断
//   - Cloud 由 (operator, cloudName) 唯一确定
//
// 授权与 QoS 结果一律以 SystemKey 为键，避免使用可变记录作为 map 键。
package model

import (
	"net/url"
	"slices"
	"strings"

	"github.com/ceyewan/orchestrator/xerrors"
)

// ErrInvalid 实体结构不合法
var ErrInvalid = xerrors.Mark(xerrors.New("model: invalid entity"), xerrors.ErrInvalidInput)

// SystemKey 系统的稳定组合键 "group/name"
type SystemKey string

// ServiceKey 服务的稳定组合键 "group/definition"
type ServiceKey string

// CloudKey 云的稳定组合键 "operator/name"
type CloudKey string

// System 可被编排的系统（消费者或提供者）
type System struct {
	SystemGroup        string `json:"systemGroup"`
	SystemName         string `json:"systemName"`
	Address            string `json:"address,omitempty"`
	Port               int    `json:"port,omitempty"`
	AuthenticationInfo string `json:"authenticationInfo,omitempty"`
}

// joinKey 逐段转义后用 "/" 拼接，转义后的段不含 "/"、"|" 与裸 "%"，拼接结果可唯一还原
func joinKey(a, b string) string {
	return url.PathEscape(a) + "/" + url.PathEscape(b)
}

// Key 返回组合键
func (s System) Key() SystemKey {
	return SystemKey(joinKey(s.SystemGroup, s.SystemName))
}

// Validate 身份字段必须非空，端口必须在合法范围内
func (s System) Validate() error {
	if strings.TrimSpace(s.SystemGroup) == "" || strings.TrimSpace(s.SystemName) == "" {
		return xerrors.Wrapf(ErrInvalid, "system group and name are required")
	}
	if s.Port < 0 || s.Port > 65535 {
		return xerrors.Wrapf(ErrInvalid, "system %s: port %d out of range", s.Key(), s.Port)
	}
	return nil
}

// Service 抽象服务
type Service struct {
	ServiceGroup      string            `json:"serviceGroup"`
	ServiceDefinition string            `json:"serviceDefinition"`
	Interfaces        []string          `json:"interfaces"`
	ServiceMetadata   map[string]string `json:"serviceMetadata,omitempty"`
}

// Key 返回组合键
func (s Service) Key() ServiceKey {
	return ServiceKey(joinKey(s.ServiceGroup, s.ServiceDefinition))
}

// Validate 服务身份字段必须非空，接口名不能为空白
func (s Service) Validate() error {
	if strings.TrimSpace(s.ServiceGroup) == "" || strings.TrimSpace(s.ServiceDefinition) == "" {
		return xerrors.Wrapf(ErrInvalid, "service group and definition are required")
	}
	for _, iface := range s.Interfaces {
		if strings.TrimSpace(iface) == "" {
			return xerrors.Wrapf(ErrInvalid, "service %s: blank interface name", s.Key())
		}
	}
	return nil
}

// SameService group 与 definition 都相同即为同一服务
func (s Service) SameService(other Service) bool {
	return s.ServiceGroup == other.ServiceGroup && s.ServiceDefinition == other.ServiceDefinition
}

// Clone 深拷贝接口列表与元数据
func (s Service) Clone() Service {
	out := s
	out.Interfaces = slices.Clone(s.Interfaces)
	if s.ServiceMetadata != nil {
		out.ServiceMetadata = make(map[string]string, len(s.ServiceMetadata))
		for k, v := range s.ServiceMetadata {
			out.ServiceMetadata[k] = v
		}
	}
	return out
}

// Narrow 返回接口列表只包含 iface 的副本；iface 为空时接口列表为空
func (s Service) Narrow(iface string) Service {
	out := s.Clone()
	if iface == "" {
		out.Interfaces = []string{}
		return out
	}
	out.Interfaces = []string{iface}
	return out
}

// Cloud 一个管理域（本云或对端云）
type Cloud struct {
	Operator             string `json:"operator"`
	CloudName            string `json:"cloudName"`
	Address              string `json:"address,omitempty"`
	Port                 int    `json:"port,omitempty"`
	GatekeeperServiceURI string `json:"gatekeeperServiceURI,omitempty"`
	AuthenticationInfo   string `json:"authenticationInfo,omitempty"`
}

// Key 返回组合键
func (c Cloud) Key() CloudKey {
	return CloudKey(joinKey(c.Operator, c.CloudName))
}

// Validate 运营方与云名必须非空
func (c Cloud) Validate() error {
	if strings.TrimSpace(c.Operator) == "" || strings.TrimSpace(c.CloudName) == "" {
		return xerrors.Wrapf(ErrInvalid, "cloud operator and name are required")
	}
	return nil
}

// ProvidedService 服务目录返回的提供者绑定，不持久化
type ProvidedService struct {
	Provider         System  `json:"provider"`
	Service          Service `json:"service"`
	ServiceURI       string  `json:"serviceURI"`
	ServiceInterface string  `json:"serviceInterface"`
}

// UniqueProviders 按首次出现顺序返回去重后的提供者
func UniqueProviders(bindings []ProvidedService) []System {
	seen := make(map[SystemKey]struct{}, len(bindings))
	out := make([]System, 0, len(bindings))
	for _, b := range bindings {
		k := b.Provider.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, b.Provider)
	}
	return out
}
