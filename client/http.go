package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ceyewan/orchestrator/model"
)

// 熔断键与指标标签
const (
	TargetRegistry      = "registry"
	TargetAuthorization = "authorization"
	TargetQoS           = "qos"
	TargetPeer          = "peer"
)

// Clients 基于 HTTP 的全部协作方客户端，共享同一个 http.Client 与熔断器
type Clients struct {
	Catalog       ServiceCatalog
	Authorization Authorization
	QoS           QoSManager
	Negotiator    CloudNegotiator
}

// New 根据配置创建全部 HTTP 客户端
func New(cfg *Config, opts ...Option) (*Clients, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	t, err := newJSONTransport(applyOptions(opts))
	if err != nil {
		return nil, err
	}

	return &Clients{
		Catalog:       &httpCatalog{t: t, ep: cfg.ServiceRegistry},
		Authorization: &httpAuthorization{t: t, ep: cfg.Authorization},
		QoS:           &httpQoS{t: t, ep: cfg.QoSManager},
		Negotiator:    &httpNegotiator{t: t, path: cfg.GatekeeperPath, timeout: cfg.PeerTimeout},
	}, nil
}

func join(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}

type httpCatalog struct {
	t  *jsonTransport
	ep Endpoint
}

type queryRequest struct {
	Service model.Service `json:"service"`
}

type queryResult struct {
	ServiceQueryData []model.ProvidedService `json:"serviceQueryData"`
}

func (c *httpCatalog) Query(ctx context.Context, service model.Service) ([]model.ProvidedService, error) {
	var out queryResult
	if err := c.t.post(ctx, TargetRegistry, TargetRegistry, join(c.ep.BaseURL, "/query"), c.ep.Timeout,
		queryRequest{Service: service}, &out); err != nil {
		return nil, err
	}
	return out.ServiceQueryData, nil
}

type httpAuthorization struct {
	t  *jsonTransport
	ep Endpoint
}

type intraCloudRequest struct {
	Consumer  model.System   `json:"consumer"`
	Providers []model.System `json:"providers"`
	Service   model.Service  `json:"service"`
}

type intraCloudResponse struct {
	AuthorizationMap map[model.SystemKey]bool `json:"authorizationMap"`
}

type interCloudRequest struct {
	Cloud   model.Cloud   `json:"cloud"`
	Service model.Service `json:"service"`
}

type interCloudResponse struct {
	Authorized bool `json:"authorized"`
}

func (c *httpAuthorization) Check(ctx context.Context, consumer model.System, providers []model.System, service model.Service) (map[model.SystemKey]bool, error) {
	var out intraCloudResponse
	if err := c.t.post(ctx, TargetAuthorization, TargetAuthorization, join(c.ep.BaseURL, "/intracloud"), c.ep.Timeout,
		intraCloudRequest{Consumer: consumer, Providers: providers, Service: service}, &out); err != nil {
		return nil, err
	}
	if out.AuthorizationMap == nil {
		out.AuthorizationMap = map[model.SystemKey]bool{}
	}
	return out.AuthorizationMap, nil
}

func (c *httpAuthorization) CheckCloud(ctx context.Context, cloud model.Cloud, service model.Service) (bool, error) {
	var out interCloudResponse
	if err := c.t.post(ctx, TargetAuthorization, TargetAuthorization, join(c.ep.BaseURL, "/intercloud"), c.ep.Timeout,
		interCloudRequest{Cloud: cloud, Service: service}, &out); err != nil {
		return false, err
	}
	return out.Authorized, nil
}

type httpQoS struct {
	t  *jsonTransport
	ep Endpoint
}

type verifyResponse struct {
	Response map[model.SystemKey]bool `json:"response"`
}

func (c *httpQoS) Verify(ctx context.Context, req VerifyRequest) (map[model.SystemKey]bool, error) {
	var out verifyResponse
	if err := c.t.post(ctx, TargetQoS, TargetQoS, join(c.ep.BaseURL, "/verify"), c.ep.Timeout, req, &out); err != nil {
		return nil, err
	}
	if out.Response == nil {
		out.Response = map[model.SystemKey]bool{}
	}
	return out.Response, nil
}

func (c *httpQoS) Reserve(ctx context.Context, req ReserveRequest) (ReservationResult, error) {
	var out ReservationResult
	if err := c.t.post(ctx, TargetQoS, TargetQoS, join(c.ep.BaseURL, "/reserve"), c.ep.Timeout, req, &out); err != nil {
		return ReservationResult{}, err
	}
	return out, nil
}

type httpNegotiator struct {
	t       *jsonTransport
	path    string
	timeout time.Duration
}

// gatekeeperURL 优先使用对端声明的网关地址
func (c *httpNegotiator) gatekeeperURL(peer model.Cloud) string {
	if peer.GatekeeperServiceURI != "" {
		return strings.TrimSuffix(peer.GatekeeperServiceURI, "/")
	}
	return fmt.Sprintf("http://%s:%d%s", peer.Address, peer.Port, c.path)
}

func peerKey(peer model.Cloud) string {
	return TargetPeer + ":" + string(peer.Key())
}

func (c *httpNegotiator) InitGSD(ctx context.Context, peer model.Cloud, req model.GSDRequest) (model.GSDResult, error) {
	var out model.GSDResult
	if err := c.t.post(ctx, TargetPeer, peerKey(peer), c.gatekeeperURL(peer)+"/gsd", c.timeout, req, &out); err != nil {
		return model.GSDResult{}, err
	}
	return out, nil
}

func (c *httpNegotiator) InitICN(ctx context.Context, peer model.Cloud, req model.ICNRequest) (model.ICNResult, error) {
	var out model.ICNResult
	if err := c.t.post(ctx, TargetPeer, peerKey(peer), c.gatekeeperURL(peer)+"/icn", c.timeout, req, &out); err != nil {
		return model.ICNResult{}, err
	}
	return out, nil
}
