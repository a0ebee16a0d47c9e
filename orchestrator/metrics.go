package orchestrator

import (
	"context"
	"time"

	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

const (
	// MetricOrchestrations 编排计数，标签: mode, outcome
	MetricOrchestrations = "orchestrations_total"

	// MetricForms 输出的编排表单数
	MetricForms = "orchestration_forms_total"

	// MetricPeerCalls 对端云调用计数，标签: phase, outcome
	MetricPeerCalls = "peer_calls_total"

	// MetricDuration 编排耗时（秒），标签: mode
	MetricDuration = "orchestration_duration_seconds"
)

const (
	modeLocal      = "local"
	modeStore      = "store"
	modeInterCloud = "intercloud"
	modeFallback   = "fallback"
	modeGSD        = "gsd"
	modeICN        = "icn"

	outcomeEmpty   = "empty"
	outcomeTimeout = "timeout"
)

type pipelineMetrics struct {
	orchestrations metrics.Counter
	forms          metrics.Counter
	peerCalls      metrics.Counter
	duration       metrics.Histogram
}

func newPipelineMetrics(m metrics.Meter) (*pipelineMetrics, error) {
	orchestrations, err := m.Counter(MetricOrchestrations, "Total number of orchestrations by mode and outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "create orchestrations counter")
	}
	forms, err := m.Counter(MetricForms, "Total number of orchestration forms emitted")
	if err != nil {
		return nil, xerrors.Wrap(err, "create forms counter")
	}
	peerCalls, err := m.Counter(MetricPeerCalls, "Total number of peer cloud calls by phase and outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "create peer calls counter")
	}
	duration, err := m.Histogram(MetricDuration, "Orchestration duration",
		metrics.WithUnit("s"), metrics.WithBuckets(metrics.DefaultDurationBuckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create duration histogram")
	}
	return &pipelineMetrics{
		orchestrations: orchestrations,
		forms:          forms,
		peerCalls:      peerCalls,
		duration:       duration,
	}, nil
}

func (m *pipelineMetrics) observe(ctx context.Context, mode string, forms int, err error, d time.Duration) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case forms == 0:
		outcome = outcomeEmpty
	}
	m.orchestrations.Inc(ctx, metrics.L("mode", mode), metrics.L(metrics.LabelOutcome, outcome))
	if forms > 0 {
		m.forms.Add(ctx, float64(forms))
	}
	m.duration.Record(ctx, d.Seconds(), metrics.L("mode", mode))
}

func (m *pipelineMetrics) observePeer(ctx context.Context, phase string, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case xerrors.Is(err, context.DeadlineExceeded), xerrors.Is(err, xerrors.ErrTimeout):
		outcome = outcomeTimeout
	case err != nil:
		outcome = metrics.OutcomeError
	}
	m.peerCalls.Inc(ctx, metrics.L("phase", phase), metrics.L(metrics.LabelOutcome, outcome))
}
