// Package xerrors 提供编排服务统一的错误处理工具。
//
// 这是一个基础包，不依赖于仓库内的其他组件。它提供：
//   - 哨兵错误：跨组件共享的错误分类（未找到、不可用、冲突等）
//   - 错误包装：Wrap/Wrapf 保留错误链
//   - 错误码：WithCode/GetCode 为 API 层提供机器可读的分类
//   - 错误标记：Mark 让一个错误同时匹配原因和分类
//
// 基本使用：
//
//	if err != nil {
//	    return xerrors.Wrapf(err, "query provider %s", key)
//	}
//
//	// 把超时归类为不可用，同时保留底层错误
//	return xerrors.Mark(err, xerrors.ErrUnavailable)
package xerrors

import (
	"errors"
	"fmt"
)

// 哨兵错误
var (
	// ErrNotFound 表示请求的资源未找到。
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists 表示资源已存在。
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput 表示输入参数无效。
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout 表示操作超时。
	ErrTimeout = errors.New("timeout")

	// ErrUnavailable 表示服务或资源不可用。
	ErrUnavailable = errors.New("unavailable")

	// ErrConflict 表示与当前状态冲突。
	ErrConflict = errors.New("conflict")

	// ErrInternal 表示内部错误。
	ErrInternal = errors.New("internal error")

	// ErrCanceled 表示操作被取消。
	ErrCanceled = errors.New("canceled")
)

// Wrap 用上下文信息包装错误，保留错误链。
// 如果 err 为 nil，则返回 nil。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithCode 用错误码包装错误。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// CodedError 带有机器可读错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取错误码，没有错误码时返回空字符串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Mark 为 err 打上分类标记。
//
// 返回的错误对 errors.Is(result, err 链上的任意错误) 和
// errors.Is(result, mark) 均成立，Error() 文本保持 err 的原样。
//
// 示例：
//
//	err := xerrors.Mark(ctx.Err(), xerrors.ErrUnavailable)
//	errors.Is(err, context.DeadlineExceeded) // true
//	errors.Is(err, xerrors.ErrUnavailable)   // true
func Mark(err error, mark error) error {
	if err == nil {
		return nil
	}
	if mark == nil || errors.Is(err, mark) {
		return err
	}
	return &markedError{cause: err, mark: mark}
}

type markedError struct {
	cause error
	mark  error
}

func (e *markedError) Error() string {
	return e.cause.Error()
}

func (e *markedError) Unwrap() []error {
	return []error{e.cause, e.mark}
}

// MultiError 合并多个错误。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 将多个错误合并为一个，全部为 nil 时返回 nil。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// 标准库函数再导出
var (
	New  = errors.New
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)
