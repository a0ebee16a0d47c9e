package registry

import (
	"context"
	"time"

	"github.com/ceyewan/orchestrator/model"
)

// Lister 对端云来源，编排器每次跨云编排时调用
type Lister interface {
	// List 按键序返回已知的云
	List(ctx context.Context) ([]model.Cloud, error)
}

// Registry 对端云目录
type Registry interface {
	Lister

	// Register 以租约注册云，ttl 为 0 时使用默认值；租约由后台协程续约
	Register(ctx context.Context, cloud model.Cloud, ttl time.Duration) error

	// Deregister 撤销租约，云随之下线
	Deregister(ctx context.Context, cloud model.Cloud) error

	// Watch 监听目录变化，ctx 取消或 Close 后通道关闭
	Watch(ctx context.Context) (<-chan Event, error)

	// Close 停止后台任务并撤销本实例持有的租约，幂等
	Close() error
}

// EventType 事件类型
type EventType string

const (
	EventTypePut    EventType = "PUT"    // 云注册或更新
	EventTypeDelete EventType = "DELETE" // 云下线
)

// Event 目录变化事件
//
// DELETE 事件只能从 Key 还原 Operator 与 CloudName。
type Event struct {
	Type  EventType
	Cloud model.Cloud
}
