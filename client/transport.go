package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ceyewan/orchestrator/breaker"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/trace"
	"github.com/ceyewan/orchestrator/xerrors"
)

const (
	// MetricCalls 协作方调用次数 (Counter)，标签: target, outcome
	MetricCalls = "collaborator_calls_total"

	// MetricCallDuration 协作方调用耗时 (Histogram)，标签: target
	MetricCallDuration = "collaborator_call_duration_seconds"

	// maxResponseBytes 响应体读取上限
	maxResponseBytes = 4 << 20
)

// jsonTransport 以 POST + JSON 调用协作方，可选熔断
type jsonTransport struct {
	http     *http.Client
	breaker  breaker.Breaker
	logger   clog.Logger
	calls    metrics.Counter
	duration metrics.Histogram
}

func newJSONTransport(o *options) (*jsonTransport, error) {
	calls, err := o.meter.Counter(MetricCalls, "Calls to external collaborators by outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "create calls counter")
	}
	duration, err := o.meter.Histogram(MetricCallDuration, "Latency of calls to external collaborators",
		metrics.WithUnit("s"), metrics.WithBuckets(metrics.DefaultDurationBuckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create call duration histogram")
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: trace.HTTPTransport(nil)}
	}

	return &jsonTransport{
		http:     httpClient,
		breaker:  o.breaker,
		logger:   o.logger,
		calls:    calls,
		duration: duration,
	}, nil
}

// post 发送 in 并把响应解码到 out；breakerKey 为熔断隔离键，target 为指标标签
func (t *jsonTransport) post(ctx context.Context, target, breakerKey, url string, timeout time.Duration, in, out any) error {
	start := time.Now()

	call := func() (any, error) {
		return nil, t.do(ctx, url, timeout, in, out)
	}

	var err error
	if t.breaker != nil {
		_, err = t.breaker.Execute(ctx, breakerKey, call)
	} else {
		_, err = call()
	}

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		t.logger.WarnContext(ctx, "collaborator call failed",
			clog.String("target", target),
			clog.String("url", url),
			clog.Duration("elapsed", time.Since(start)),
			clog.Error(err))
	}
	t.calls.Inc(ctx, metrics.L("target", target), metrics.L(metrics.LabelOutcome, outcome))
	t.duration.Record(ctx, time.Since(start).Seconds(), metrics.L("target", target))
	return err
}

func (t *jsonTransport) do(ctx context.Context, url string, timeout time.Duration, in, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(in)
	if err != nil {
		return xerrors.Wrapf(xerrors.ErrInternal, "encode request for %s: %v", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return xerrors.Wrapf(ErrInvalidConfig, "build request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		err = unavailable(err, "post %s", url)
		if xerrors.Is(ctx.Err(), context.Canceled) {
			err = xerrors.Mark(err, xerrors.ErrCanceled)
		} else if xerrors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = xerrors.Mark(err, xerrors.ErrTimeout)
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return unavailable(err, "read response from %s", url)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return xerrors.Wrapf(ErrBadResponse, "post %s: status %d: %s", url, resp.StatusCode, snippet(data))
	case resp.StatusCode >= http.StatusBadRequest:
		return xerrors.WithCode(xerrors.Wrapf(ErrRejected, "post %s: status %d: %s", url, resp.StatusCode, snippet(data)),
			strconv.Itoa(resp.StatusCode))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return xerrors.Wrapf(ErrBadResponse, "decode response from %s: %v", url, err)
	}
	return nil
}

func snippet(data []byte) string {
	const limit = 256
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
