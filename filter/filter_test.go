package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/client"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

var (
	consumer = model.System{SystemGroup: "aitia", SystemName: "client"}
	p1       = model.System{SystemGroup: "aitia", SystemName: "p1"}
	p2       = model.System{SystemGroup: "aitia", SystemName: "p2"}
	p3       = model.System{SystemGroup: "aitia", SystemName: "p3"}
	sensor   = model.Service{ServiceGroup: "temp", ServiceDefinition: "sensor", Interfaces: []string{"JSON"}}
)

func binding(p model.System, iface string) model.ProvidedService {
	return model.ProvidedService{Provider: p, Service: sensor, ServiceURI: "/temp", ServiceInterface: iface}
}

type fakeAuth struct {
	answers map[model.SystemKey]bool
	err     error
	asked   [][]model.System
}

func (f *fakeAuth) Check(_ context.Context, _ model.System, providers []model.System, _ model.Service) (map[model.SystemKey]bool, error) {
	f.asked = append(f.asked, providers)
	return f.answers, f.err
}

func (f *fakeAuth) CheckCloud(context.Context, model.Cloud, model.Service) (bool, error) {
	return false, nil
}

type fakeQoS struct {
	verify    map[model.SystemKey]bool
	reserved  client.ReservationResult
	err       error
	reserveOn []model.System
}

func (f *fakeQoS) Verify(context.Context, client.VerifyRequest) (map[model.SystemKey]bool, error) {
	return f.verify, f.err
}

func (f *fakeQoS) Reserve(_ context.Context, req client.ReserveRequest) (client.ReservationResult, error) {
	f.reserveOn = append(f.reserveOn, req.Provider)
	return f.reserved, f.err
}

func form() *model.ServiceRequestForm {
	return &model.ServiceRequestForm{RequesterSystem: &consumer, RequestedService: &sensor}
}

func TestAuthorizeIsFailClosed(t *testing.T) {
	auth := &fakeAuth{answers: map[model.SystemKey]bool{p1.Key(): false, p2.Key(): true}}
	c := New(auth, &fakeQoS{})

	got, err := c.Authorize(context.Background(), consumer, sensor,
		[]model.ProvidedService{binding(p1, "JSON"), binding(p2, "JSON"), binding(p3, "JSON"), binding(p2, "XML")})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "JSON", got[0].ServiceInterface)
	assert.Equal(t, "XML", got[1].ServiceInterface)
	assert.Equal(t, p2.Key(), got[1].Provider.Key())

	require.Len(t, auth.asked, 1)
	assert.Equal(t, []model.System{p1, p2, p3}, auth.asked[0], "providers are deduplicated")
}

func TestAuthorizeDistinguishesSeparatorInIdentity(t *testing.T) {
	granted := model.System{SystemGroup: "a/b", SystemName: "c"}
	lookalike := model.System{SystemGroup: "a", SystemName: "b/c"}
	auth := &fakeAuth{answers: map[model.SystemKey]bool{granted.Key(): true}}
	c := New(auth, &fakeQoS{})

	got, err := c.Authorize(context.Background(), consumer, sensor,
		[]model.ProvidedService{binding(granted, "JSON"), binding(lookalike, "JSON")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, granted, got[0].Provider)

	require.Len(t, auth.asked, 1)
	assert.Len(t, auth.asked[0], 2, "distinct identities are not collapsed by deduplication")
}

func TestAuthorizeSkipsEmptyAndPropagatesErrors(t *testing.T) {
	auth := &fakeAuth{err: xerrors.Mark(xerrors.New("down"), xerrors.ErrUnavailable)}
	c := New(auth, &fakeQoS{})

	got, err := c.Authorize(context.Background(), consumer, sensor, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, auth.asked)

	_, err = c.Authorize(context.Background(), consumer, sensor, []model.ProvidedService{binding(p1, "JSON")})
	assert.True(t, xerrors.Is(err, xerrors.ErrUnavailable))
}

func TestIsAuthorized(t *testing.T) {
	c := New(&fakeAuth{answers: map[model.SystemKey]bool{p2.Key(): true}}, &fakeQoS{})

	ok, err := c.IsAuthorized(context.Background(), consumer, p2, sensor)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsAuthorized(context.Background(), consumer, p1, sensor)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRemovesOnlyExplicitlyInfeasible(t *testing.T) {
	c := New(&fakeAuth{}, &fakeQoS{verify: map[model.SystemKey]bool{p1.Key(): false, p2.Key(): true}})

	got, err := c.Verify(context.Background(), form(),
		[]model.ProvidedService{binding(p1, "JSON"), binding(p2, "JSON"), binding(p3, "JSON")})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, p2.Key(), got[0].Provider.Key())
	assert.Equal(t, p3.Key(), got[1].Provider.Key())
}

func TestReserveFirstFit(t *testing.T) {
	qos := &fakeQoS{reserved: client.ReservationResult{Reserved: true}}
	c := New(&fakeAuth{}, qos)

	got, err := c.Reserve(context.Background(), form(), []model.ProvidedService{binding(p2, "JSON"), binding(p3, "JSON")})
	require.NoError(t, err)
	assert.Equal(t, p2.Key(), got.Provider.Key())
	assert.Equal(t, []model.System{p2}, qos.reserveOn)
}

func TestReserveFailureDoesNotFallBack(t *testing.T) {
	qos := &fakeQoS{reserved: client.ReservationResult{Reserved: false, Reason: "busy"}}
	c := New(&fakeAuth{}, qos)

	_, err := c.Reserve(context.Background(), form(), []model.ProvidedService{binding(p2, "JSON"), binding(p3, "JSON")})
	assert.ErrorIs(t, err, ErrReservationFailed)
	assert.True(t, xerrors.Is(err, xerrors.ErrConflict))
	assert.Equal(t, []model.System{p2}, qos.reserveOn)

	qos = &fakeQoS{err: xerrors.Mark(xerrors.New("timeout"), xerrors.ErrUnavailable)}
	_, err = New(&fakeAuth{}, qos).Reserve(context.Background(), form(), []model.ProvidedService{binding(p2, "JSON")})
	assert.ErrorIs(t, err, ErrReservationFailed)

	qos = &fakeQoS{err: xerrors.Wrap(client.ErrRejected, "status 400")}
	_, err = New(&fakeAuth{}, qos).Reserve(context.Background(), form(), []model.ProvidedService{binding(p2, "JSON")})
	assert.ErrorIs(t, err, ErrReservationFailed)
	assert.ErrorIs(t, err, client.ErrRejected)
	assert.False(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = c.Reserve(context.Background(), form(), nil)
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestOnlyPreferred(t *testing.T) {
	got := OnlyPreferred([]model.ProvidedService{binding(p1, "JSON"), binding(p2, "JSON"), binding(p3, "JSON")},
		[]model.System{p3, p1})
	require.Len(t, got, 2)
	assert.Equal(t, p1.Key(), got[0].Provider.Key())
	assert.Equal(t, p3.Key(), got[1].Provider.Key())
}

func TestInterfaceCompatible(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		candidate []string
		want      bool
	}{
		{name: "wildcard request", requested: nil, candidate: []string{"JSON"}, want: true},
		{name: "wildcard against empty", requested: nil, candidate: nil, want: true},
		{name: "intersection", requested: []string{"XML", "JSON"}, candidate: []string{"JSON"}, want: true},
		{name: "disjoint", requested: []string{"XML"}, candidate: []string{"JSON"}, want: false},
		{name: "declared against empty", requested: []string{"XML"}, candidate: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requested := model.Service{Interfaces: tt.requested}
			candidate := model.Service{Interfaces: tt.candidate}
			assert.Equal(t, tt.want, InterfaceCompatible(requested, candidate))
		})
	}
}

func TestSelectInterface(t *testing.T) {
	stored := model.Service{Interfaces: []string{"XML", "JSON"}}

	assert.Equal(t, "JSON", SelectInterface(model.Service{Interfaces: []string{"JSON"}}, stored))
	assert.Equal(t, "XML", SelectInterface(model.Service{}, stored))
	assert.Equal(t, "CBOR", SelectInterface(model.Service{Interfaces: []string{"CBOR"}}, model.Service{}))
	assert.Equal(t, "", SelectInterface(model.Service{}, model.Service{}))
}
