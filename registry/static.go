package registry

import (
	"context"
	"slices"

	"github.com/ceyewan/orchestrator/model"
)

// Static 配置文件中声明的固定对端列表，保持声明顺序
type Static struct {
	clouds []model.Cloud
}

// NewStatic 创建静态对端列表
func NewStatic(clouds []model.Cloud) *Static {
	return &Static{clouds: slices.Clone(clouds)}
}

// List 返回对端列表的副本
func (s *Static) List(context.Context) ([]model.Cloud, error) {
	return slices.Clone(s.clouds), nil
}
