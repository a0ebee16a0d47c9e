package db

import "github.com/ceyewan/orchestrator/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Mark(xerrors.New("db: invalid config"), xerrors.ErrInvalidInput)

	// ErrConnectorRequired 未注入与 Driver 匹配的连接器
	ErrConnectorRequired = xerrors.Mark(xerrors.New("db: connector is required"), xerrors.ErrInvalidInput)

	// ErrNotConnected 连接器尚未 Connect
	ErrNotConnected = xerrors.Mark(xerrors.New("db: connector not connected"), xerrors.ErrUnavailable)
)
