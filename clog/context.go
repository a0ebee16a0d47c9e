package clog

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	// RequestIDKey 请求 ID 在 Context 中的键
	RequestIDKey ctxKey = "request_id"
	// RequesterKey 请求方系统在 Context 中的键
	RequesterKey ctxKey = "requester"
)

// WithRequestID 把请求 ID 写入 Context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithRequester 把请求方系统标识写入 Context
func WithRequester(ctx context.Context, requester string) context.Context {
	return context.WithValue(ctx, RequesterKey, requester)
}

// extractContextFields 按规则从 ctx 中提取字段
func extractContextFields(ctx context.Context, o *options, attrs []slog.Attr) []slog.Attr {
	if ctx == nil || o == nil {
		return attrs
	}

	for _, cf := range o.contextFields {
		if val := ctx.Value(cf.Key); val != nil {
			attrs = append(attrs, slog.Any(cf.FieldName, val))
		}
	}

	if o.enableTraceExtraction {
		sc := trace.SpanContextFromContext(ctx)
		if sc.IsValid() {
			attrs = append(attrs,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	return attrs
}
