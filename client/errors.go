package client

import "github.com/ceyewan/orchestrator/xerrors"

var (
	// ErrInvalidConfig 协作方配置无效
	ErrInvalidConfig = xerrors.Mark(xerrors.New("client: invalid config"), xerrors.ErrInvalidInput)

	// ErrRejected 协作方以 4xx 拒绝了编排器发出的请求，属于内部契约错误，与调用方输入无关
	ErrRejected = xerrors.Mark(xerrors.New("client: request rejected"), xerrors.ErrInternal)

	// ErrBadResponse 协作方返回 5xx 或无法解析的响应
	ErrBadResponse = xerrors.Mark(xerrors.New("client: bad response"), xerrors.ErrUnavailable)
)

// unavailable 把传输层错误归类为不可用，保留原始错误链
func unavailable(err error, format string, args ...any) error {
	return xerrors.Mark(xerrors.Wrapf(err, format, args...), xerrors.ErrUnavailable)
}
