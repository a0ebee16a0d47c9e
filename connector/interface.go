// Package connector 管理编排服务依赖的外部连接：SQLite/MySQL（编排存储）、
// Redis（授权结果分布式缓存）与 Etcd（对端云注册表）。
//
// 连接器遵循“谁创建，谁负责释放”：NewXXX 只构造客户端，Connect 建立并验证连接，
// 依赖它的组件（db、cache、registry）只借用客户端，不调用 Close。
// 应用层按 LIFO 顺序释放：先关闭组件，再关闭连接器。
//
// 基本使用：
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//		connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	client := conn.GetClient()
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// Connector 所有连接器的通用行为，方法均并发安全。
type Connector interface {
	// Connect 建立连接，幂等。
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等。
	Close() error

	// HealthCheck 发送测试请求并刷新 IsHealthy 的缓存值。
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次检查的结果，不阻塞。
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志与指标。
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。
//
// 在 Connect 之前或 Close 之后 GetClient 可能返回 nil。
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

// DatabaseConnector 基于 GORM 的关系型数据库连接器，db 组件只依赖这一抽象。
type DatabaseConnector interface {
	TypedConnector[*gorm.DB]
	// Dialect 返回 GORM 方言名，如 "sqlite"、"mysql"
	Dialect() string
}

// RedisConnector Redis 连接器
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// MySQLConnector MySQL 连接器
type MySQLConnector interface {
	DatabaseConnector
}

// SQLiteConnector SQLite 连接器，支持文件库与内存库，适合单机部署和测试
type SQLiteConnector interface {
	DatabaseConnector
}

// EtcdConnector Etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
