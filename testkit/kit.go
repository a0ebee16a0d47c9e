// Package testkit 提供测试用的公共依赖：日志、指标、唯一 ID 与各类连接器。
//
// 需要外部服务（Redis、Etcd）的辅助函数在服务不可达时跳过测试，
// 纯内存依赖（SQLite 内存库）总是可用。
package testkit

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
)

// NewLogger 返回一个用于测试的 logger，使用开发环境格式，只输出 warn 以上
func NewLogger() clog.Logger {
	cfg := clog.NewDevDefaultConfig("orchestrator")
	cfg.Level = "warn"
	logger, err := clog.New(cfg)
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewBufferLogger 返回写入内存缓冲区的 JSON logger，用于断言日志内容
func NewBufferLogger(t *testing.T, level clog.Level) (clog.Logger, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	logger, err := clog.New(&clog.Config{
		Level:  level.String(),
		Format: "json",
		Output: "buffer",
	}, clog.WithBuffer(buf))
	require.NoError(t, err)
	return logger, buf
}

// NewMeter 返回一个独立 Registry 的 meter，测试结束时关闭
func NewMeter(t *testing.T) metrics.Meter {
	meter, err := metrics.New(metrics.NewDevDefaultConfig("test"))
	if err != nil {
		return metrics.Discard()
	}
	t.Cleanup(func() {
		_ = meter.Shutdown(context.Background())
	})
	return meter
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 Key、前缀或库名，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}
