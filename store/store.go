// Package store 实现编排存储：管理员维护的 (消费者, 服务) -> 提供者 绑定表。
//
// 流水线只读取存储；写入路径（Save/Delete）供管理接口使用，在单个事务中完成，
// 提交后对后续读取原子可见。
//
// 查询条件在每次调用时构造为独立的 criteria 值，并发调用之间不共享任何可变状态。
//
// 接口匹配规则：存储中的服务未声明接口，或请求未声明接口，或两者接口有交集时匹配；
// 否则该服务下的条目全部排除。
package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/db"
	"github.com/ceyewan/orchestrator/filter"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

var (
	// ErrEntryNotFound Delete 没有匹配任何条目
	ErrEntryNotFound = xerrors.Mark(xerrors.New("store: entry not found"), xerrors.ErrNotFound)

	// ErrEntryExists 同一 (consumer, service, provider) 已存在
	ErrEntryExists = xerrors.Mark(xerrors.New("store: entry already exists"), xerrors.ErrAlreadyExists)
)

// Store 编排存储
type Store interface {
	// Resolve service 为 nil 时返回消费者的默认条目，否则等同 GetEntries
	Resolve(ctx context.Context, consumer model.System, service *model.Service) ([]model.OrchestrationStoreEntry, error)

	// GetDefaultEntries 返回消费者的默认条目，消费者未知时返回空
	GetDefaultEntries(ctx context.Context, consumer model.System) ([]model.OrchestrationStoreEntry, error)

	// GetEntries 返回消费者与服务都匹配且接口兼容的条目
	GetEntries(ctx context.Context, consumer model.System, service model.Service) ([]model.OrchestrationStoreEntry, error)

	// GetEntriesForService 不限定消费者的服务查询，接口规则相同
	GetEntriesForService(ctx context.Context, service model.Service) ([]model.OrchestrationStoreEntry, error)

	// GetAllEntries 返回全表，按 id 排序
	GetAllEntries(ctx context.Context) ([]model.OrchestrationStoreEntry, error)

	// Save 在一个事务中写入系统、服务与条目，返回带 id 的条目
	Save(ctx context.Context, entries ...model.OrchestrationStoreEntry) ([]model.OrchestrationStoreEntry, error)

	// Delete 在一个事务中删除条目，一条都没删除时返回 ErrEntryNotFound
	Delete(ctx context.Context, ids ...uint64) error

	// AutoMigrate 创建或补齐表结构
	AutoMigrate(ctx context.Context) error
}

// Option 存储选项
type Option func(*gormStore)

// WithLogger 设置 Logger，内部自动添加 namespace "store"
func WithLogger(l clog.Logger) Option {
	return func(s *gormStore) {
		if l != nil {
			s.logger = l.WithNamespace("store")
		}
	}
}

type gormStore struct {
	db     db.DB
	logger clog.Logger
}

// New 基于 db 组件创建编排存储
func New(database db.DB, opts ...Option) (Store, error) {
	if database == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "store: db is nil")
	}
	s := &gormStore{db: database, logger: clog.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *gormStore) AutoMigrate(ctx context.Context) error {
	return s.db.AutoMigrate(ctx, &systemRecord{}, &serviceRecord{}, &entryRecord{})
}

// criteria 单次查询的过滤条件
type criteria struct {
	consumerID  uint64
	serviceID   uint64
	defaultOnly bool
}

func (c criteria) apply(q *gorm.DB) *gorm.DB {
	if c.consumerID != 0 {
		q = q.Where("consumer_id = ?", c.consumerID)
	}
	if c.serviceID != 0 {
		q = q.Where("service_id = ?", c.serviceID)
	}
	if c.defaultOnly {
		q = q.Where("is_default = ?", true)
	}
	return q
}

func (s *gormStore) Resolve(ctx context.Context, consumer model.System, service *model.Service) ([]model.OrchestrationStoreEntry, error) {
	if service == nil {
		return s.GetDefaultEntries(ctx, consumer)
	}
	return s.GetEntries(ctx, consumer, *service)
}

func (s *gormStore) GetDefaultEntries(ctx context.Context, consumer model.System) ([]model.OrchestrationStoreEntry, error) {
	saved, err := s.findSystem(s.db.DB(ctx), consumer)
	if err != nil || saved == nil {
		return []model.OrchestrationStoreEntry{}, err
	}
	return s.list(ctx, criteria{consumerID: saved.ID, defaultOnly: true})
}

func (s *gormStore) GetEntries(ctx context.Context, consumer model.System, service model.Service) ([]model.OrchestrationStoreEntry, error) {
	conn := s.db.DB(ctx)
	savedConsumer, err := s.findSystem(conn, consumer)
	if err != nil || savedConsumer == nil {
		return []model.OrchestrationStoreEntry{}, err
	}
	savedService, err := s.findCompatibleService(ctx, conn, service)
	if err != nil || savedService == nil {
		return []model.OrchestrationStoreEntry{}, err
	}
	return s.list(ctx, criteria{consumerID: savedConsumer.ID, serviceID: savedService.ID})
}

func (s *gormStore) GetEntriesForService(ctx context.Context, service model.Service) ([]model.OrchestrationStoreEntry, error) {
	savedService, err := s.findCompatibleService(ctx, s.db.DB(ctx), service)
	if err != nil || savedService == nil {
		return []model.OrchestrationStoreEntry{}, err
	}
	return s.list(ctx, criteria{serviceID: savedService.ID})
}

func (s *gormStore) GetAllEntries(ctx context.Context) ([]model.OrchestrationStoreEntry, error) {
	return s.list(ctx, criteria{})
}

// list 默认与指定查询按优先级排序，全表查询按 id 排序
func (s *gormStore) list(ctx context.Context, c criteria) ([]model.OrchestrationStoreEntry, error) {
	q := c.apply(s.db.DB(ctx).Model(&entryRecord{})).
		Preload("Consumer").Preload("Service").Preload("Provider")
	if c != (criteria{}) {
		q = q.Order("priority ASC")
	}

	var records []entryRecord
	if err := q.Order("id ASC").Find(&records).Error; err != nil {
		return nil, storeError(err, "list entries")
	}

	out := make([]model.OrchestrationStoreEntry, 0, len(records))
	for _, r := range records {
		out = append(out, r.toModel())
	}
	return out, nil
}

// findSystem 系统不存在时返回 (nil, nil)
func (s *gormStore) findSystem(conn *gorm.DB, sys model.System) (*systemRecord, error) {
	var rec systemRecord
	err := conn.Where("system_group = ? AND system_name = ?", sys.SystemGroup, sys.SystemName).
		Limit(1).Find(&rec).Error
	if err != nil {
		return nil, storeError(err, "find system")
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

// findCompatibleService 服务不存在或接口不兼容时返回 (nil, nil)
func (s *gormStore) findCompatibleService(ctx context.Context, conn *gorm.DB, service model.Service) (*serviceRecord, error) {
	var rec serviceRecord
	err := conn.Where("service_group = ? AND service_definition = ?", service.ServiceGroup, service.ServiceDefinition).
		Limit(1).Find(&rec).Error
	if err != nil {
		return nil, storeError(err, "find service")
	}
	if rec.ID == 0 {
		return nil, nil
	}
	if len(rec.Interfaces) > 0 && !filter.InterfaceCompatible(service, rec.toModel()) {
		s.logger.DebugContext(ctx, "stored service interfaces do not match request",
			clog.String("service", string(service.Key())),
			clog.Strings("requested", service.Interfaces),
			clog.Strings("stored", rec.Interfaces))
		return nil, nil
	}
	return &rec, nil
}

func storeError(err error, op string) error {
	return xerrors.Mark(xerrors.Wrapf(err, "store: %s", op), xerrors.ErrUnavailable)
}
