package breaker

import "github.com/ceyewan/orchestrator/xerrors"

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.Mark(xerrors.New("breaker: config is nil"), xerrors.ErrInvalidInput)

	// ErrInvalidConfig 配置取值无效
	ErrInvalidConfig = xerrors.Mark(xerrors.New("breaker: invalid config"), xerrors.ErrInvalidInput)

	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.Mark(xerrors.New("breaker: key is empty"), xerrors.ErrInvalidInput)

	// ErrOpenState 熔断器打开或半开探测名额已满
	ErrOpenState = xerrors.Mark(xerrors.New("breaker: circuit breaker is open"), xerrors.ErrUnavailable)
)
