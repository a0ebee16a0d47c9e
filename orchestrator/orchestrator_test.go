package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/auth"
	"github.com/ceyewan/orchestrator/client"
	"github.com/ceyewan/orchestrator/db"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/store"
	"github.com/ceyewan/orchestrator/testkit"
	"github.com/ceyewan/orchestrator/xerrors"
)

var (
	c1     = model.System{SystemGroup: "aitia", SystemName: "c1", Address: "10.0.0.10", Port: 9000}
	p1     = model.System{SystemGroup: "aitia", SystemName: "p1", Address: "10.0.0.1", Port: 8080}
	p2     = model.System{SystemGroup: "aitia", SystemName: "p2", Address: "10.0.0.2", Port: 8080}
	p3     = model.System{SystemGroup: "aitia", SystemName: "p3", Address: "10.0.0.3", Port: 8080}
	sensor = model.Service{ServiceGroup: "temp", ServiceDefinition: "sensor", Interfaces: []string{"HTTP-SECURE-JSON", "COAP-JSON"}}

	ownCloud = CloudConfig{Operator: "aitia", Name: "home", Address: "127.0.0.1", Port: 8449}
)

func binding(p model.System, iface string) model.ProvidedService {
	return model.ProvidedService{Provider: p, Service: sensor, ServiceURI: "/temperature", ServiceInterface: iface}
}

func request(flags ...string) *model.ServiceRequestForm {
	consumer, service := c1, sensor
	f := &model.ServiceRequestForm{
		RequesterSystem:    &consumer,
		RequestedService:   &service,
		OrchestrationFlags: model.Flags{},
	}
	for _, name := range flags {
		f.OrchestrationFlags[name] = true
	}
	return f
}

func cloud(name string) model.Cloud {
	return model.Cloud{Operator: "aitia", CloudName: name, Address: name + ".example", Port: 8449}
}

type fixture struct {
	catalog    *fakeCatalog
	authz      *fakeAuthorization
	qos        *fakeQoS
	negotiator *fakeNegotiator
}

func newFixture() *fixture {
	return &fixture{
		catalog:    &fakeCatalog{},
		authz:      &fakeAuthorization{answers: map[model.SystemKey]bool{}},
		qos:        &fakeQoS{infeasible: map[model.SystemKey]bool{}},
		negotiator: &fakeNegotiator{peers: map[model.CloudKey]peerBehavior{}},
	}
}

func (fx *fixture) clients() *client.Clients {
	return &client.Clients{
		Catalog:       fx.catalog,
		Authorization: fx.authz,
		QoS:           fx.qos,
		Negotiator:    fx.negotiator,
	}
}

func newTestOrchestrator(t *testing.T, cfg *Config, fx *fixture, opts ...Option) *Orchestrator {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	opts = append([]Option{WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter(t))}, opts...)
	o, err := New(cfg, fx.clients(), opts...)
	require.NoError(t, err)
	return o
}

func newTestStore(t *testing.T, entries ...model.OrchestrationStoreEntry) store.Store {
	t.Helper()

	database, err := db.New(&db.Config{Driver: db.DriverSQLite},
		db.WithSQLiteConnector(testkit.NewSQLiteConnector(t)), db.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	s, err := store.New(database)
	require.NoError(t, err)
	require.NoError(t, s.AutoMigrate(context.Background()))
	if len(entries) > 0 {
		_, err = s.Save(context.Background(), entries...)
		require.NoError(t, err)
	}
	return s
}

func providerKeys(resp model.OrchestrationResponse) []model.SystemKey {
	out := make([]model.SystemKey, 0, len(resp.Response))
	for _, f := range resp.Response {
		out = append(out, f.Provider.Key())
	}
	return out
}

func TestNewValidation(t *testing.T) {
	fx := newFixture()

	_, err := New(&Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	_, err = New(&Config{}, &client.Clients{Catalog: fx.catalog})
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	_, err = New(&Config{StorePolicy: "sometimes"}, fx.clients())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&Config{PeerSource: "dns"}, fx.clients())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&Config{Peers: []CloudConfig{{Operator: "aitia"}}}, fx.clients())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	o, err := New(nil, fx.clients())
	require.NoError(t, err)
	assert.Equal(t, StorePolicyBefore, o.cfg.StorePolicy)
	assert.Equal(t, 8, o.cfg.MaxConcurrentPeers)
}

func TestOrchestrateInvalidRequest(t *testing.T) {
	fx := newFixture()
	o := newTestOrchestrator(t, nil, fx)
	ctx := context.Background()

	cases := map[string]*model.ServiceRequestForm{
		"nil form":          nil,
		"missing requester": {RequestedService: &sensor},
		"missing service":   {RequesterSystem: &c1},
		"blank service":     {RequesterSystem: &c1, RequestedService: &model.Service{ServiceGroup: "temp"}},
	}
	for name, form := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := o.Orchestrate(ctx, form)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
		})
	}
	assert.Zero(t, fx.catalog.Calls())
	assert.Zero(t, fx.authz.Calls())
}

func TestLocalScenarioAuthorizedProviderIsReserved(t *testing.T) {
	fx := newFixture()
	fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON"), binding(p2, "COAP-JSON")}
	fx.authz.answers[p1.Key()] = false
	fx.authz.answers[p2.Key()] = true
	o := newTestOrchestrator(t, nil, fx)

	resp, err := o.Orchestrate(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, resp.Response, 1)

	form := resp.Response[0]
	assert.Equal(t, p2.Key(), form.Provider.Key())
	assert.Equal(t, []string{"COAP-JSON"}, form.Service.Interfaces)
	assert.Equal(t, "/temperature", form.ServiceURI)
	assert.Empty(t, form.AuthorizationInfo)
	assert.Equal(t, []model.SystemKey{p2.Key()}, fx.qos.reserved)
	// 原始绑定未被修改
	assert.Len(t, fx.catalog.bindings[1].Service.Interfaces, 2)
}

func TestLocalScenarioNothingAuthorized(t *testing.T) {
	fx := newFixture()
	fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON"), binding(p2, "HTTP-SECURE-JSON")}
	fx.authz.answers[p1.Key()] = false
	// p2 没有回答，视为未授权
	o := newTestOrchestrator(t, nil, fx)

	resp, err := o.Orchestrate(context.Background(), request())
	require.NoError(t, err)
	assert.NotNil(t, resp.Response)
	assert.Empty(t, resp.Response)

	verify, reserve := fx.qos.Calls()
	assert.Zero(t, verify)
	assert.Zero(t, reserve)
}

func TestLocalEmptyDiscovery(t *testing.T) {
	fx := newFixture()
	o := newTestOrchestrator(t, nil, fx)

	resp, err := o.Orchestrate(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, resp.Empty())
	assert.Zero(t, fx.authz.Calls())
}

func TestLocalQoSVerificationRemovesInfeasible(t *testing.T) {
	fx := newFixture()
	fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON"), binding(p2, "HTTP-SECURE-JSON")}
	fx.authz.answers[p1.Key()] = true
	fx.authz.answers[p2.Key()] = true
	fx.qos.infeasible[p1.Key()] = true
	o := newTestOrchestrator(t, nil, fx)

	resp, err := o.Orchestrate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, []model.SystemKey{p2.Key()}, providerKeys(resp))
}

func TestLocalReservationRefusedDoesNotFallBack(t *testing.T) {
	fx := newFixture()
	fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON"), binding(p2, "HTTP-SECURE-JSON")}
	fx.authz.answers[p1.Key()] = true
	fx.authz.answers[p2.Key()] = true
	fx.qos.refuse = true
	o := newTestOrchestrator(t, nil, fx)

	_, err := o.Orchestrate(context.Background(), request())
	assert.ErrorIs(t, err, ErrReservationFailed)
	assert.True(t, xerrors.Is(err, xerrors.ErrConflict))

	_, reserve := fx.qos.Calls()
	assert.Equal(t, 1, reserve)
}

func TestLocalCollaboratorUnavailableIsFatal(t *testing.T) {
	fx := newFixture()
	fx.catalog.err = xerrors.Mark(xerrors.New("registry down"), xerrors.ErrUnavailable)
	o := newTestOrchestrator(t, nil, fx)

	resp, err := o.Orchestrate(context.Background(), request())
	assert.True(t, xerrors.Is(err, xerrors.ErrUnavailable))
	assert.Nil(t, resp.Response)
}

func TestLocalExternalRequestSkipsFilters(t *testing.T) {
	fx := newFixture()
	fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON"), binding(p2, "COAP-JSON")}
	o := newTestOrchestrator(t, nil, fx)

	resp, err := o.Orchestrate(context.Background(), request(model.FlagExternalServiceRequest))
	require.NoError(t, err)
	require.Len(t, resp.Response, 2)
	for i, b := range fx.catalog.bindings {
		assert.Equal(t, b.Provider.Key(), resp.Response[i].Provider.Key())
		assert.Equal(t, []string{b.ServiceInterface}, resp.Response[i].Service.Interfaces)
		assert.Equal(t, b.ServiceURI, resp.Response[i].ServiceURI)
	}

	assert.Zero(t, fx.authz.Calls())
	verify, reserve := fx.qos.Calls()
	assert.Zero(t, verify)
	assert.Zero(t, reserve)
}

func TestLocalOnlyPreferred(t *testing.T) {
	fx := newFixture()
	fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON"), binding(p2, "HTTP-SECURE-JSON")}
	fx.authz.answers[p1.Key()] = true
	fx.authz.answers[p2.Key()] = true
	o := newTestOrchestrator(t, nil, fx)

	form := request(model.FlagOnlyPreferred)
	form.PreferredProviders = []model.System{p2}
	resp, err := o.Orchestrate(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, []model.SystemKey{p2.Key()}, providerKeys(resp))

	form.PreferredProviders = []model.System{p3}
	resp, err = o.Orchestrate(context.Background(), form)
	require.NoError(t, err)
	assert.True(t, resp.Empty())
}

func TestStoreScenarioBypassesDynamicPath(t *testing.T) {
	fx := newFixture()
	fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON")}
	st := newTestStore(t, model.OrchestrationStoreEntry{
		Consumer:       c1,
		ProviderSystem: p3,
		Service:        sensor,
		ServiceURI:     "/stored",
		IsDefault:      true,
	})
	o := newTestOrchestrator(t, nil, fx, WithStore(st))

	resp, err := o.Orchestrate(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, resp.Response, 1)
	assert.Equal(t, p3.Key(), resp.Response[0].Provider.Key())
	assert.Equal(t, "/stored", resp.Response[0].ServiceURI)
	assert.Equal(t, []string{"HTTP-SECURE-JSON"}, resp.Response[0].Service.Interfaces)

	assert.Zero(t, fx.catalog.Calls())
	assert.Zero(t, fx.authz.Calls())
	verify, reserve := fx.qos.Calls()
	assert.Zero(t, verify)
	assert.Zero(t, reserve)
}

func TestStorePolicies(t *testing.T) {
	entry := model.OrchestrationStoreEntry{Consumer: c1, ProviderSystem: p3, Service: sensor}

	t.Run("override flag skips store", func(t *testing.T) {
		fx := newFixture()
		fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON")}
		fx.authz.answers[p1.Key()] = true
		o := newTestOrchestrator(t, nil, fx, WithStore(newTestStore(t, entry)))

		resp, err := o.Orchestrate(context.Background(), request(model.FlagOverrideStore))
		require.NoError(t, err)
		assert.Equal(t, []model.SystemKey{p1.Key()}, providerKeys(resp))
	})

	t.Run("before falls through on miss", func(t *testing.T) {
		fx := newFixture()
		fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON")}
		fx.authz.answers[p1.Key()] = true
		o := newTestOrchestrator(t, nil, fx, WithStore(newTestStore(t)))

		resp, err := o.Orchestrate(context.Background(), request())
		require.NoError(t, err)
		assert.Equal(t, []model.SystemKey{p1.Key()}, providerKeys(resp))
	})

	t.Run("instead never discovers", func(t *testing.T) {
		fx := newFixture()
		fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON")}
		o := newTestOrchestrator(t, &Config{StorePolicy: StorePolicyInstead}, fx, WithStore(newTestStore(t)))

		resp, err := o.Orchestrate(context.Background(), request())
		require.NoError(t, err)
		assert.True(t, resp.Empty())
		assert.Zero(t, fx.catalog.Calls())
	})

	t.Run("disabled ignores store", func(t *testing.T) {
		fx := newFixture()
		o := newTestOrchestrator(t, &Config{StorePolicy: StorePolicyDisabled}, fx, WithStore(newTestStore(t, entry)))

		resp, err := o.Orchestrate(context.Background(), request())
		require.NoError(t, err)
		assert.True(t, resp.Empty())
		assert.Equal(t, 1, fx.catalog.Calls())
	})
}

func TestFormsCarryVerifiableTokens(t *testing.T) {
	fx := newFixture()
	fx.catalog.bindings = []model.ProvidedService{binding(p1, "HTTP-SECURE-JSON")}
	fx.authz.answers[p1.Key()] = true

	authenticator, err := auth.New(&auth.Config{SecretKey: "0123456789abcdef0123456789abcdef", Issuer: "home"})
	require.NoError(t, err)
	o := newTestOrchestrator(t, nil, fx, WithAuthenticator(authenticator))

	resp, err := o.Orchestrate(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, resp.Response, 1)
	require.NotEmpty(t, resp.Response[0].AuthorizationInfo)

	claims, err := authenticator.Verify(context.Background(), resp.Response[0].AuthorizationInfo, string(p1.Key()))
	require.NoError(t, err)
	assert.Equal(t, string(c1.Key()), claims.Consumer())
	assert.Equal(t, string(sensor.Key()), claims.Service)
	assert.Equal(t, "HTTP-SECURE-JSON", claims.Interface)
}
