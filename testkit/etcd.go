package testkit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ceyewan/orchestrator/connector"
)

// GetEtcdConfig 返回 Etcd 测试配置
// 默认连接 localhost:2379，可通过 ORCH_TEST_ETCD_ENDPOINTS（逗号分隔）覆盖
func GetEtcdConfig() *connector.EtcdConfig {
	endpoints := []string{"localhost:2379"}
	if v := os.Getenv("ORCH_TEST_ETCD_ENDPOINTS"); v != "" {
		endpoints = strings.Split(v, ",")
	}
	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   endpoints,
		DialTimeout: time.Second,
	}
}

// GetEtcdConnector 获取 Etcd 连接器，Etcd 不可达时跳过测试
func GetEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()

	conn, err := connector.NewEtcd(GetEtcdConfig(), connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd connector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		t.Skipf("etcd not available: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

