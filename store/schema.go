package store

import (
	"time"

	"github.com/ceyewan/orchestrator/model"
)

// systemRecord systems 表，(system_group, system_name) 唯一
type systemRecord struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement"`
	SystemGroup        string `gorm:"size:255;not null;uniqueIndex:uk_system_identity"`
	SystemName         string `gorm:"size:255;not null;uniqueIndex:uk_system_identity"`
	Address            string `gorm:"size:255"`
	Port               int
	AuthenticationInfo string `gorm:"size:2047"`
}

func (systemRecord) TableName() string { return "systems" }

func (r systemRecord) toModel() model.System {
	return model.System{
		SystemGroup:        r.SystemGroup,
		SystemName:         r.SystemName,
		Address:            r.Address,
		Port:               r.Port,
		AuthenticationInfo: r.AuthenticationInfo,
	}
}

// serviceRecord services 表，(service_group, service_definition) 唯一
type serviceRecord struct {
	ID                uint64            `gorm:"primaryKey;autoIncrement"`
	ServiceGroup      string            `gorm:"size:255;not null;uniqueIndex:uk_service_identity"`
	ServiceDefinition string            `gorm:"size:255;not null;uniqueIndex:uk_service_identity"`
	Interfaces        []string          `gorm:"serializer:json"`
	Metadata          map[string]string `gorm:"serializer:json"`
}

func (serviceRecord) TableName() string { return "services" }

func (r serviceRecord) toModel() model.Service {
	interfaces := r.Interfaces
	if interfaces == nil {
		interfaces = []string{}
	}
	return model.Service{
		ServiceGroup:      r.ServiceGroup,
		ServiceDefinition: r.ServiceDefinition,
		Interfaces:        interfaces,
		ServiceMetadata:   r.Metadata,
	}
}

// entryRecord store_entries 表，(consumer, service, provider) 唯一
type entryRecord struct {
	ID            uint64        `gorm:"primaryKey;autoIncrement"`
	ConsumerID    uint64        `gorm:"not null;uniqueIndex:uk_entry_binding;index:idx_entry_consumer_default"`
	ServiceID     uint64        `gorm:"not null;uniqueIndex:uk_entry_binding"`
	ProviderID    uint64        `gorm:"not null;uniqueIndex:uk_entry_binding"`
	Consumer      systemRecord  `gorm:"foreignKey:ConsumerID"`
	Service       serviceRecord `gorm:"foreignKey:ServiceID"`
	Provider      systemRecord  `gorm:"foreignKey:ProviderID"`
	ProviderCloud *model.Cloud  `gorm:"serializer:json"`
	ServiceURI    string        `gorm:"size:2047"`
	Priority      int           `gorm:"not null;default:0"`
	IsDefault     bool          `gorm:"not null;default:false;index:idx_entry_consumer_default"`
	Name          string        `gorm:"size:255"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (entryRecord) TableName() string { return "store_entries" }

func (r entryRecord) toModel() model.OrchestrationStoreEntry {
	return model.OrchestrationStoreEntry{
		ID:             r.ID,
		Service:        r.Service.toModel(),
		Consumer:       r.Consumer.toModel(),
		ProviderSystem: r.Provider.toModel(),
		ProviderCloud:  r.ProviderCloud,
		ServiceURI:     r.ServiceURI,
		Priority:       r.Priority,
		IsDefault:      r.IsDefault,
		Name:           r.Name,
	}
}
