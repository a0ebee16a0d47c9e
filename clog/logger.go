// Package clog 提供基于 log/slog 的结构化日志组件。
//
// 编排服务的每个组件都通过 WithLogger 注入同一个 Logger，
// 并用 WithNamespace 派生出自己的命名空间（如 "orchestrator.intercloud"），
// 因此一条日志总能定位到产生它的组件与阶段。
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json"})
//	logger.Info("orchestration finished", clog.Int("forms", 2))
//
// 带 Context 的日志，会自动提取配置的 Context 字段与 OTel TraceID：
//
//	logger, _ := clog.New(cfg, clog.WithStandardContext(), clog.WithTraceContext())
//	logger.InfoContext(ctx, "request accepted")
package clog

import "context"

// Logger 日志接口
//
// 支持五个级别，每个级别都有带 Context 的版本，
// 带 Context 的版本会提取通过 WithContextField 配置的字段。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger，
	// 命名空间以 "." 追加在现有命名空间之后
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，对所有派生出的子 Logger 同时生效
	SetLevel(level Level) error

	// Flush 强制同步缓冲区
	Flush()
}
