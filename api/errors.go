package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/orchestrator"
	"github.com/ceyewan/orchestrator/xerrors"
)

// 错误码
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeConflict          = "CONFLICT"
	CodeReservationFailed = "RESERVATION_FAILED"
	CodeUnavailable       = "UNAVAILABLE"
	CodeInternal          = "INTERNAL"
)

// ErrStoreDisabled 未配置编排存储
var ErrStoreDisabled = xerrors.Mark(xerrors.New("api: orchestration store is not configured"), xerrors.ErrUnavailable)

// ErrorResponse 错误响应体
type ErrorResponse struct {
	ErrorMessage  string `json:"errorMessage"`
	ErrorCode     int    `json:"errorCode"`
	ExceptionType string `json:"exceptionType"`
}

// classify 把错误分类映射为 HTTP 状态与错误码，预留失败优先于链上其余标记
func classify(err error) (int, string) {
	switch {
	case xerrors.Is(err, orchestrator.ErrReservationFailed):
		return http.StatusConflict, CodeReservationFailed
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidRequest
	case xerrors.Is(err, xerrors.ErrAlreadyExists):
		return http.StatusConflict, CodeAlreadyExists
	case xerrors.Is(err, xerrors.ErrConflict):
		return http.StatusConflict, CodeConflict
	case xerrors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case xerrors.Is(err, xerrors.ErrUnavailable),
		xerrors.Is(err, xerrors.ErrTimeout),
		xerrors.Is(err, xerrors.ErrCanceled):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed",
			clog.String("route", c.FullPath()), clog.ErrorWithCode(err, code))
	} else {
		s.logger.WarnContext(ctx, "request rejected",
			clog.String("route", c.FullPath()), clog.ErrorWithCode(err, code))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		ErrorMessage:  err.Error(),
		ErrorCode:     status,
		ExceptionType: code,
	})
}

// badRequest 请求体无法解析
func badRequest(err error) error {
	return xerrors.Mark(xerrors.Wrap(err, "decode request body"), xerrors.ErrInvalidInput)
}
