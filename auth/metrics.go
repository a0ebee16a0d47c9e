package auth

import (
	"context"

	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

const (
	// MetricTokensIssued 令牌签发计数
	MetricTokensIssued = "auth_tokens_issued_total"

	// MetricTokensVerified 令牌校验计数，标签: status, error_type
	MetricTokensVerified = "auth_tokens_verified_total"
)

type authMetrics struct {
	issued   metrics.Counter
	verified metrics.Counter
}

func newAuthMetrics(m metrics.Meter) (*authMetrics, error) {
	issued, err := m.Counter(MetricTokensIssued, "Total number of authorization tokens issued")
	if err != nil {
		return nil, xerrors.Wrap(err, "create issued counter")
	}
	verified, err := m.Counter(MetricTokensVerified, "Total number of authorization tokens verified")
	if err != nil {
		return nil, xerrors.Wrap(err, "create verified counter")
	}
	return &authMetrics{issued: issued, verified: verified}, nil
}

func (m *authMetrics) observeVerify(ctx context.Context, errType string) {
	if errType == "" {
		m.verified.Inc(ctx, metrics.L("status", "success"))
		return
	}
	m.verified.Inc(ctx, metrics.L("status", "error"), metrics.L("error_type", errType))
}
