package ratelimit

import (
	"context"

	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

const (
	// MetricDecisions 限流判定次数 (Counter)
	MetricDecisions = "ratelimit_decisions_total"

	// LabelMode 模式标签 (standalone/distributed)
	LabelMode = "mode"

	// LabelDecision 判定结果标签 (allowed/denied)
	LabelDecision = "decision"
)

type limiterMetrics struct {
	decisions metrics.Counter
}

func newLimiterMetrics(m metrics.Meter) (*limiterMetrics, error) {
	c, err := m.Counter(MetricDecisions, "Rate limit decisions by result.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create ratelimit counter")
	}
	return &limiterMetrics{decisions: c}, nil
}

func (m *limiterMetrics) observe(ctx context.Context, mode string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.decisions.Inc(ctx, metrics.L(LabelMode, mode), metrics.L(LabelDecision, decision))
}
