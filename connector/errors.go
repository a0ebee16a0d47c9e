package connector

import "github.com/ceyewan/orchestrator/xerrors"

// 连接器专用的哨兵错误
var (
	ErrNotConnected = xerrors.New("connector: not connected")
	ErrClientNil    = xerrors.New("connector: client is nil")
	ErrConnection   = xerrors.Mark(xerrors.New("connector: connection failed"), xerrors.ErrUnavailable)
	ErrConfig       = xerrors.Mark(xerrors.New("connector: invalid config"), xerrors.ErrInvalidInput)
	ErrHealthCheck  = xerrors.Mark(xerrors.New("connector: health check failed"), xerrors.ErrUnavailable)
)
