package orchestrator

import (
	"github.com/ceyewan/orchestrator/filter"
	"github.com/ceyewan/orchestrator/xerrors"
)

var (
	// ErrInvalidRequest 请求缺失或结构非法，未发出任何外部调用
	ErrInvalidRequest = xerrors.Mark(xerrors.New("orchestrator: invalid request"), xerrors.ErrInvalidInput)

	// ErrReservationFailed 选定提供者的 QoS 预留被拒绝，不自动重试下一个候选
	ErrReservationFailed = filter.ErrReservationFailed

	// ErrInterCloudUnavailable 本云身份或对端协商客户端未配置
	ErrInterCloudUnavailable = xerrors.Mark(xerrors.New("orchestrator: inter-cloud orchestration not configured"), xerrors.ErrUnavailable)

	// ErrInvalidConfig 配置非法
	ErrInvalidConfig = xerrors.Mark(xerrors.New("orchestrator: invalid config"), xerrors.ErrInvalidInput)

	// ErrMissingCollaborator 必需的协作方客户端为 nil
	ErrMissingCollaborator = xerrors.Mark(xerrors.New("orchestrator: missing collaborator"), xerrors.ErrInvalidInput)
)
