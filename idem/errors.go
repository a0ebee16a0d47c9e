package idem

import "github.com/ceyewan/orchestrator/xerrors"

var (
	// ErrInvalidConfig 配置非法
	ErrInvalidConfig = xerrors.Mark(xerrors.New("idem: invalid config"), xerrors.ErrInvalidInput)

	// ErrConnectorRequired redis 后端未注入连接器
	ErrConnectorRequired = xerrors.Mark(xerrors.New("idem: redis connector is required"), xerrors.ErrInvalidInput)

	// ErrConcurrentRequest 同一幂等键的请求仍在处理
	ErrConcurrentRequest = xerrors.Mark(xerrors.New("idem: request with the same key is in progress"), xerrors.ErrConflict)

	// ErrResultNotFound 没有已完成的记录
	ErrResultNotFound = xerrors.Mark(xerrors.New("idem: result not found"), xerrors.ErrNotFound)
)
