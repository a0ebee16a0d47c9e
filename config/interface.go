// Package config 提供编排服务的配置加载能力，基于 Viper 实现。
//
// 配置优先级：环境变量 > .env 文件 > 环境特定配置（config.<env>.yaml）> 基础配置。
// 环境变量使用前缀加下划线分隔的键，例如 ORCH_ORCHESTRATOR_STORE_POLICY
// 覆盖 orchestrator.store_policy。
//
// 基本使用：
//
//	loader, err := config.New(
//		config.WithConfigName("orchestrator"),
//		config.WithConfigPaths("./configs"),
//		config.WithEnvPrefix("ORCH"),
//	)
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//
//	var cfg config.AppConfig
//	if err := loader.Unmarshal(&cfg); err != nil {
//		return err
//	}
//
// 监听某个键的变化（例如运行时调整日志级别）：
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for ev := range ch {
//		logger.Info("config changed", clog.String("key", ev.Key))
//	}
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置，并开始监听配置文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体（按 mapstructure 标签）
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听指定 Key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
