package orchestrator

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ceyewan/orchestrator/client"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

type fakeCatalog struct {
	mu       sync.Mutex
	bindings []model.ProvidedService
	err      error
	calls    int
}

func (f *fakeCatalog) Query(_ context.Context, _ model.Service) ([]model.ProvidedService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.bindings), nil
}

func (f *fakeCatalog) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAuthorization struct {
	mu           sync.Mutex
	answers      map[model.SystemKey]bool
	cloudAllowed bool
	calls        int
	cloudCalls   int
}

func (f *fakeAuthorization) Check(_ context.Context, _ model.System, providers []model.System, _ model.Service) (map[model.SystemKey]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[model.SystemKey]bool, len(providers))
	for _, p := range providers {
		if v, ok := f.answers[p.Key()]; ok {
			out[p.Key()] = v
		}
	}
	return out, nil
}

func (f *fakeAuthorization) CheckCloud(_ context.Context, _ model.Cloud, _ model.Service) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cloudCalls++
	return f.cloudAllowed, nil
}

func (f *fakeAuthorization) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeQoS struct {
	mu           sync.Mutex
	infeasible   map[model.SystemKey]bool
	refuse       bool
	verifyCalls  int
	reserveCalls int
	reserved     []model.SystemKey
}

func (f *fakeQoS) Verify(_ context.Context, req client.VerifyRequest) (map[model.SystemKey]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	out := make(map[model.SystemKey]bool, len(req.Providers))
	for _, p := range req.Providers {
		out[p.Key()] = !f.infeasible[p.Key()]
	}
	return out, nil
}

func (f *fakeQoS) Reserve(_ context.Context, req client.ReserveRequest) (client.ReservationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserveCalls++
	if f.refuse {
		return client.ReservationResult{Reserved: false, Reason: "no capacity"}, nil
	}
	f.reserved = append(f.reserved, req.Provider.Key())
	return client.ReservationResult{Reserved: true}, nil
}

func (f *fakeQoS) Calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls, f.reserveCalls
}

// peerBehavior 单个对端云的行为
type peerBehavior struct {
	hosts  bool
	delay  time.Duration
	hang   bool
	gsdErr error
	icnErr error
	forms  []model.OrchestrationForm
}

type fakeNegotiator struct {
	mu          sync.Mutex
	peers       map[model.CloudKey]peerBehavior
	gsdCalls    []model.CloudKey
	icnCalls    []model.CloudKey
	icnRequests []model.ICNRequest
	inFlight    int
	maxInFlight int
}

func (f *fakeNegotiator) enter() {
	f.mu.Lock()
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.mu.Unlock()
}

func (f *fakeNegotiator) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeNegotiator) wait(ctx context.Context, b peerBehavior) error {
	if b.hang {
		<-ctx.Done()
		return xerrors.Mark(ctx.Err(), xerrors.ErrUnavailable)
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return xerrors.Mark(ctx.Err(), xerrors.ErrUnavailable)
		}
	}
	return nil
}

func (f *fakeNegotiator) InitGSD(ctx context.Context, peer model.Cloud, _ model.GSDRequest) (model.GSDResult, error) {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	f.gsdCalls = append(f.gsdCalls, peer.Key())
	b := f.peers[peer.Key()]
	f.mu.Unlock()

	if err := f.wait(ctx, b); err != nil {
		return model.GSDResult{}, err
	}
	if b.gsdErr != nil {
		return model.GSDResult{}, b.gsdErr
	}
	res := model.GSDResult{Response: []model.GSDEntry{}}
	if b.hosts {
		res.Response = append(res.Response, model.GSDEntry{Cloud: peer})
	}
	return res, nil
}

func (f *fakeNegotiator) InitICN(ctx context.Context, peer model.Cloud, req model.ICNRequest) (model.ICNResult, error) {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	f.icnCalls = append(f.icnCalls, peer.Key())
	f.icnRequests = append(f.icnRequests, req)
	b := f.peers[peer.Key()]
	f.mu.Unlock()

	if b.icnErr != nil {
		return model.ICNResult{}, b.icnErr
	}
	return model.ICNResult{Instructions: model.NewResponse(slices.Clone(b.forms))}, nil
}

func (f *fakeNegotiator) ICNCalls() []model.CloudKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.icnCalls)
}

func (f *fakeNegotiator) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}
