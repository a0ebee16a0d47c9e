package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

func (s *gormStore) Save(ctx context.Context, entries ...model.OrchestrationStoreEntry) ([]model.OrchestrationStoreEntry, error) {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, xerrors.Wrapf(err, "entry[%d]", i)
		}
	}

	ids := make([]uint64, 0, len(entries))
	err := s.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		for _, e := range entries {
			id, err := s.insertEntry(tx, e)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var records []entryRecord
	if err := s.db.DB(ctx).Preload("Consumer").Preload("Service").Preload("Provider").
		Where("id IN ?", ids).Order("id ASC").Find(&records).Error; err != nil {
		return nil, storeError(err, "reload saved entries")
	}
	out := make([]model.OrchestrationStoreEntry, 0, len(records))
	for _, r := range records {
		out = append(out, r.toModel())
	}

	s.logger.InfoContext(ctx, "store entries saved", clog.Int("count", len(out)))
	return out, nil
}

func (s *gormStore) insertEntry(tx *gorm.DB, e model.OrchestrationStoreEntry) (uint64, error) {
	consumer, err := upsertSystem(tx, e.Consumer)
	if err != nil {
		return 0, err
	}
	provider, err := upsertSystem(tx, e.ProviderSystem)
	if err != nil {
		return 0, err
	}
	service, err := upsertService(tx, e.Service)
	if err != nil {
		return 0, err
	}

	var existing int64
	if err := tx.Model(&entryRecord{}).
		Where("consumer_id = ? AND service_id = ? AND provider_id = ?", consumer.ID, service.ID, provider.ID).
		Count(&existing).Error; err != nil {
		return 0, storeError(err, "check duplicate entry")
	}
	if existing > 0 {
		return 0, xerrors.Wrapf(ErrEntryExists, "%s -> %s for %s",
			e.Consumer.Key(), e.ProviderSystem.Key(), e.Service.Key())
	}

	rec := entryRecord{
		ConsumerID:    consumer.ID,
		ServiceID:     service.ID,
		ProviderID:    provider.ID,
		ProviderCloud: e.ProviderCloud,
		ServiceURI:    e.ServiceURI,
		Priority:      e.Priority,
		IsDefault:     e.IsDefault,
		Name:          e.Name,
	}
	if err := tx.Omit("Consumer", "Service", "Provider").Create(&rec).Error; err != nil {
		return 0, storeError(err, "create entry")
	}
	return rec.ID, nil
}

// upsertSystem 按身份查找系统，存在则以新的地址信息覆盖
func upsertSystem(tx *gorm.DB, sys model.System) (*systemRecord, error) {
	rec := systemRecord{SystemGroup: sys.SystemGroup, SystemName: sys.SystemName}
	err := tx.Where(&systemRecord{SystemGroup: sys.SystemGroup, SystemName: sys.SystemName}).
		Assign(map[string]any{
			"address":             sys.Address,
			"port":                sys.Port,
			"authentication_info": sys.AuthenticationInfo,
		}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return nil, storeError(err, "upsert system")
	}
	return &rec, nil
}

// upsertService 按身份查找服务，存在则以新的接口集与元数据覆盖
func upsertService(tx *gorm.DB, svc model.Service) (*serviceRecord, error) {
	rec := serviceRecord{ServiceGroup: svc.ServiceGroup, ServiceDefinition: svc.ServiceDefinition}
	err := tx.Where(&serviceRecord{ServiceGroup: svc.ServiceGroup, ServiceDefinition: svc.ServiceDefinition}).
		Assign(serviceRecord{Interfaces: svc.Interfaces, Metadata: svc.ServiceMetadata}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return nil, storeError(err, "upsert service")
	}
	return &rec, nil
}

func (s *gormStore) Delete(ctx context.Context, ids ...uint64) error {
	if len(ids) == 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "store: no ids to delete")
	}

	var deleted int64
	err := s.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		res := tx.Where("id IN ?", ids).Delete(&entryRecord{})
		if res.Error != nil {
			return storeError(res.Error, "delete entries")
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return xerrors.Wrapf(ErrEntryNotFound, "ids %v", ids)
	}

	s.logger.InfoContext(ctx, "store entries deleted", clog.Int64("count", deleted))
	return nil
}
