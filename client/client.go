// Package client 定义编排流水线依赖的外部协作方契约，并提供基于 HTTP/JSON 的实现。
//
// 协作方：
//   - ServiceCatalog：服务注册中心，按服务查询提供者绑定
//   - Authorization：授权系统，判定 (消费者, 提供者, 服务) 是否授权，以及对端云是否被授权
//   - QoSManager：QoS 管理器，验证可行性并预留资源
//   - CloudNegotiator：对端云网关，全局服务发现与跨云协商
//
// 错误分类：超时、传输失败、5xx 响应、无法解析的响应体以及熔断打开都标记为
// xerrors.ErrUnavailable；4xx 响应标记为 xerrors.ErrInvalidInput，不推动熔断。
package client

import (
	"context"

	"github.com/ceyewan/orchestrator/model"
)

// ServiceCatalog 服务注册中心
type ServiceCatalog interface {
	// Query 返回 (group, definition) 匹配的全部提供者绑定，保持注册中心的顺序
	Query(ctx context.Context, service model.Service) ([]model.ProvidedService, error)
}

// Authorization 授权系统
type Authorization interface {
	// Check 返回每个提供者的授权结果，结果中缺失的提供者由调用方视为未授权
	Check(ctx context.Context, consumer model.System, providers []model.System, service model.Service) (map[model.SystemKey]bool, error)

	// CheckCloud 判定对端云是否被授权使用该服务
	CheckCloud(ctx context.Context, cloud model.Cloud, service model.Service) (bool, error)
}

// QoSManager QoS 管理器
type QoSManager interface {
	// Verify 返回每个提供者的可行性
	Verify(ctx context.Context, req VerifyRequest) (map[model.SystemKey]bool, error)

	// Reserve 在选定的提供者上预留资源
	Reserve(ctx context.Context, req ReserveRequest) (ReservationResult, error)
}

// CloudNegotiator 对端云网关
type CloudNegotiator interface {
	InitGSD(ctx context.Context, peer model.Cloud, req model.GSDRequest) (model.GSDResult, error)
	InitICN(ctx context.Context, peer model.Cloud, req model.ICNRequest) (model.ICNResult, error)
}

// VerifyRequest QoS 可行性验证请求
type VerifyRequest struct {
	Requester    model.System      `json:"requester"`
	Service      model.Service     `json:"service"`
	Providers    []model.System    `json:"providers"`
	RequestedQoS map[string]string `json:"requestedQoS,omitempty"`
	Commands     map[string]string `json:"commands,omitempty"`
}

// ReserveRequest QoS 预留请求
type ReserveRequest struct {
	Provider     model.System      `json:"provider"`
	Requester    model.System      `json:"requester"`
	Service      model.Service     `json:"service"`
	RequestedQoS map[string]string `json:"requestedQoS,omitempty"`
	Commands     map[string]string `json:"commands,omitempty"`
}

// ReservationResult QoS 预留结果
type ReservationResult struct {
	Reserved bool   `json:"reserved"`
	Reason   string `json:"reason,omitempty"`
}
