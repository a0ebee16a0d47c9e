package ratelimit

import "github.com/ceyewan/orchestrator/xerrors"

var (
	// ErrConfigNil 配置为空或模式不支持
	ErrConfigNil = xerrors.Mark(xerrors.New("ratelimit: invalid config"), xerrors.ErrInvalidInput)

	// ErrConnectorNil 分布式模式缺少 Redis 连接器
	ErrConnectorNil = xerrors.Mark(xerrors.New("ratelimit: connector is nil"), xerrors.ErrInvalidInput)

	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.Mark(xerrors.New("ratelimit: key is empty"), xerrors.ErrInvalidInput)

	// ErrInvalidLimit 限流规则或令牌数无效
	ErrInvalidLimit = xerrors.Mark(xerrors.New("ratelimit: invalid limit"), xerrors.ErrInvalidInput)
)
