package breaker

import (
	"context"

	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

// 指标名
const (
	MetricRequestsTotal = "breaker_requests_total"
	MetricStateChanges  = "breaker_state_changes_total"
)

// 标签
const (
	LabelKey       = "key"
	LabelResult    = "result"
	LabelFromState = "from_state"
	LabelToState   = "to_state"
)

// 结果标签值
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

type breakerMetrics struct {
	requests     metrics.Counter
	stateChanges metrics.Counter
}

func newBreakerMetrics(m metrics.Meter) (*breakerMetrics, error) {
	requests, err := m.Counter(MetricRequestsTotal, "Calls guarded by the circuit breaker by result.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create breaker requests counter")
	}
	changes, err := m.Counter(MetricStateChanges, "Circuit breaker state transitions.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create breaker state counter")
	}
	return &breakerMetrics{requests: requests, stateChanges: changes}, nil
}

func (m *breakerMetrics) observe(ctx context.Context, key, result string) {
	m.requests.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelResult, result))
}

func (m *breakerMetrics) transition(key string, from, to State) {
	m.stateChanges.Inc(context.Background(),
		metrics.L(LabelKey, key),
		metrics.L(LabelFromState, from.String()),
		metrics.L(LabelToState, to.String()))
}
