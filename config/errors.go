package config

import "github.com/ceyewan/orchestrator/xerrors"

// ErrValidationFailed 配置验证失败
var ErrValidationFailed = xerrors.Mark(xerrors.New("config: validation failed"), xerrors.ErrInvalidInput)

// IsInvalidInput 检查错误是否为配置无效
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput)
}
