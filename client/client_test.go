package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/breaker"
	"github.com/ceyewan/orchestrator/cache"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/testkit"
	"github.com/ceyewan/orchestrator/xerrors"
)

var (
	consumer = model.System{SystemGroup: "aitia", SystemName: "client"}
	p1       = model.System{SystemGroup: "aitia", SystemName: "p1", Address: "10.0.0.1", Port: 8080}
	p2       = model.System{SystemGroup: "aitia", SystemName: "p2", Address: "10.0.0.2", Port: 8080}
	sensor   = model.Service{ServiceGroup: "temp", ServiceDefinition: "sensor", Interfaces: []string{"JSON"}}
)

func newClients(t *testing.T, srv *httptest.Server, opts ...Option) *Clients {
	t.Helper()

	opts = append([]Option{WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter(t))}, opts...)
	c, err := New(&Config{
		ServiceRegistry: Endpoint{BaseURL: srv.URL + "/serviceregistry"},
		Authorization:   Endpoint{BaseURL: srv.URL + "/authorization"},
		QoSManager:      Endpoint{BaseURL: srv.URL + "/qosmanager", Timeout: 100 * time.Millisecond},
	}, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&Config{ServiceRegistry: Endpoint{BaseURL: "http://x"}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCatalogQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/serviceregistry/query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req queryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, sensor.Key(), req.Service.Key())

		writeJSON(t, w, queryResult{ServiceQueryData: []model.ProvidedService{
			{Provider: p1, Service: sensor, ServiceURI: "/temp", ServiceInterface: "JSON"},
			{Provider: p2, Service: sensor, ServiceURI: "/temp", ServiceInterface: "JSON"},
		}})
	}))
	defer srv.Close()

	got, err := newClients(t, srv).Catalog.Query(context.Background(), sensor)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, p1.Key(), got[0].Provider.Key())
	assert.Equal(t, p2.Key(), got[1].Provider.Key())
}

func TestAuthorizationCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authorization/intracloud":
			var req intraCloudRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, consumer.Key(), req.Consumer.Key())
			writeJSON(t, w, intraCloudResponse{AuthorizationMap: map[model.SystemKey]bool{
				p1.Key(): false,
				p2.Key(): true,
			}})
		case "/authorization/intercloud":
			writeJSON(t, w, interCloudResponse{Authorized: true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newClients(t, srv)
	got, err := c.Authorization.Check(context.Background(), consumer, []model.System{p1, p2}, sensor)
	require.NoError(t, err)
	assert.Equal(t, map[model.SystemKey]bool{p1.Key(): false, p2.Key(): true}, got)

	ok, err := c.Authorization.CheckCloud(context.Background(), model.Cloud{Operator: "o", CloudName: "c"}, sensor)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQoSTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := newClients(t, srv).QoS.Verify(context.Background(), VerifyRequest{Requester: consumer, Service: sensor})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrUnavailable))
	assert.True(t, xerrors.Is(err, xerrors.ErrTimeout))
}

func TestStatusClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/qosmanager/reserve":
			http.Error(w, "no capacity", http.StatusServiceUnavailable)
		case "/qosmanager/verify":
			http.Error(w, "bad request", http.StatusBadRequest)
		default:
			_, _ = w.Write([]byte("{not json"))
		}
	}))
	defer srv.Close()

	c := newClients(t, srv)
	ctx := context.Background()

	_, err := c.QoS.Reserve(ctx, ReserveRequest{Provider: p1, Requester: consumer, Service: sensor})
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.True(t, xerrors.Is(err, xerrors.ErrUnavailable))

	_, err = c.QoS.Verify(ctx, VerifyRequest{Requester: consumer, Service: sensor})
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, xerrors.Is(err, xerrors.ErrUnavailable))
	assert.False(t, xerrors.Is(err, xerrors.ErrInvalidInput), "upstream rejection is not the caller's fault")
	assert.True(t, xerrors.Is(err, xerrors.ErrInternal))
	assert.Equal(t, "400", xerrors.GetCode(err))

	_, err = c.Catalog.Query(ctx, sensor)
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestBreakerOpensPerTarget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	brk, err := breaker.New(&breaker.Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: time.Minute},
		breaker.WithFailureFunc(func(err error) bool { return xerrors.Is(err, xerrors.ErrUnavailable) }))
	require.NoError(t, err)

	c := newClients(t, srv, WithBreaker(brk))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.Catalog.Query(ctx, sensor)
		assert.ErrorIs(t, err, ErrBadResponse)
	}

	_, err = c.Catalog.Query(ctx, sensor)
	assert.ErrorIs(t, err, breaker.ErrOpenState)
	assert.True(t, xerrors.Is(err, xerrors.ErrUnavailable))
	assert.Equal(t, int32(2), hits.Load())

	state, err := brk.State(TargetAuthorization)
	require.NoError(t, err)
	assert.Equal(t, breaker.StateClosed, state)
}

func TestNegotiatorUsesPeerGatekeeper(t *testing.T) {
	peer := model.Cloud{Operator: "aitia", CloudName: "cloud-2"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gatekeeper/gsd":
			writeJSON(t, w, model.GSDResult{Response: []model.GSDEntry{{Cloud: peer}}})
		case "/gatekeeper/icn":
			var req model.ICNRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, peer.Key(), req.TargetCloud.Key())
			writeJSON(t, w, model.ICNResult{Instructions: model.NewResponse([]model.OrchestrationForm{
				{Service: sensor, Provider: p1, ServiceURI: "/temp"},
			})})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	peer.Address = u.Hostname()
	peer.Port = port

	c := newClients(t, srv)
	ctx := context.Background()

	gsd, err := c.Negotiator.InitGSD(ctx, peer, model.GSDRequest{RequestedService: sensor})
	require.NoError(t, err)
	require.Len(t, gsd.Response, 1)

	icn, err := c.Negotiator.InitICN(ctx, peer, model.ICNRequest{RequestedService: sensor, TargetCloud: peer})
	require.NoError(t, err)
	require.Len(t, icn.Instructions.Response, 1)

	explicit := model.Cloud{Operator: "x", CloudName: "y", GatekeeperServiceURI: srv.URL + "/gatekeeper/"}
	gsd, err = c.Negotiator.InitGSD(ctx, explicit, model.GSDRequest{RequestedService: sensor})
	require.NoError(t, err)
	assert.Len(t, gsd.Response, 1)
}

type countingAuthorization struct {
	calls  atomic.Int32
	answer map[model.SystemKey]bool
}

func (a *countingAuthorization) Check(_ context.Context, _ model.System, providers []model.System, _ model.Service) (map[model.SystemKey]bool, error) {
	a.calls.Add(1)
	out := map[model.SystemKey]bool{}
	for _, p := range providers {
		if v, ok := a.answer[p.Key()]; ok {
			out[p.Key()] = v
		}
	}
	return out, nil
}

func (a *countingAuthorization) CheckCloud(context.Context, model.Cloud, model.Service) (bool, error) {
	return true, nil
}

func TestCachedAuthorization(t *testing.T) {
	c, err := cache.New(&cache.Config{Mode: cache.ModeStandalone, DefaultTTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	p3 := model.System{SystemGroup: "aitia", SystemName: "p3"}
	inner := &countingAuthorization{answer: map[model.SystemKey]bool{p1.Key(): false, p2.Key(): true}}
	auth := NewCachedAuthorization(inner, c, 0)
	ctx := context.Background()

	got, err := auth.Check(ctx, consumer, []model.System{p1, p2, p3}, sensor)
	require.NoError(t, err)
	assert.Equal(t, map[model.SystemKey]bool{p1.Key(): false, p2.Key(): true}, got)
	assert.Equal(t, int32(1), inner.calls.Load())

	got, err = auth.Check(ctx, consumer, []model.System{p1, p2}, sensor)
	require.NoError(t, err)
	assert.Equal(t, map[model.SystemKey]bool{p1.Key(): false, p2.Key(): true}, got)
	assert.Equal(t, int32(1), inner.calls.Load(), "answers come from cache")

	_, err = auth.Check(ctx, consumer, []model.System{p3}, sensor)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load(), "missing answers are not cached")

	other := model.System{SystemGroup: "aitia", SystemName: "other"}
	_, err = auth.Check(ctx, other, []model.System{p2}, sensor)
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load(), "cache key includes the consumer")
}
