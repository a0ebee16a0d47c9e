package registry

import "github.com/ceyewan/orchestrator/xerrors"

var (
	// ErrCloudNotFound 云未在本实例注册
	ErrCloudNotFound = xerrors.Mark(xerrors.New("registry: cloud not registered"), xerrors.ErrNotFound)

	// ErrCloudAlreadyRegistered 云已由本实例注册
	ErrCloudAlreadyRegistered = xerrors.Mark(xerrors.New("registry: cloud already registered"), xerrors.ErrAlreadyExists)

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Mark(xerrors.New("registry: invalid config"), xerrors.ErrInvalidInput)

	// ErrInvalidTTL 租约时长无效，至少 1 秒
	ErrInvalidTTL = xerrors.Mark(xerrors.New("registry: invalid ttl"), xerrors.ErrInvalidInput)

	// ErrRegistryClosed registry 已关闭
	ErrRegistryClosed = xerrors.Mark(xerrors.New("registry: closed"), xerrors.ErrUnavailable)
)
