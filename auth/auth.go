// Package auth 签发并校验编排结果中携带的授权令牌。
//
// 每个 OrchestrationForm 都可以附带一个 HS256 JWT：
//   - sub：消费者系统键（group/name）
//   - aud：提供者系统键
//   - service / interface：授权使用的服务与选定接口
//
// 提供者一侧使用同一密钥通过 Verify 校验令牌，并要求 aud 等于自己的系统键。
//
// 基本使用：
//
//	authenticator, _ := auth.New(&auth.Config{SecretKey: "..."})
//	token, _ := authenticator.Issue(ctx, auth.Grant{
//	    Consumer: "cloud/consumer", Provider: "cloud/sensor-1",
//	    Service: "temp/sensor", Interface: "HTTP-SECURE-JSON",
//	})
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/xerrors"
)

// Grant 一次授权的内容
type Grant struct {
	Consumer  string
	Provider  string
	Service   string
	Interface string
}

// Authenticator 令牌签发与校验
type Authenticator interface {
	// Issue 为 grant 签发令牌
	Issue(ctx context.Context, grant Grant) (string, error)

	// Verify 校验令牌签名、有效期与签发者；audience 非空时同时要求 aud 匹配
	Verify(ctx context.Context, token string, audience string) (*Claims, error)
}

type jwtAuth struct {
	config  *Config
	logger  clog.Logger
	metrics *authMetrics
	now     func() time.Time
}

// New 创建 Authenticator
func New(cfg *Config, opts ...Option) (Authenticator, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	m, err := newAuthMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	return &jwtAuth{
		config:  cfg,
		logger:  o.logger,
		metrics: m,
		now:     time.Now,
	}, nil
}

func (a *jwtAuth) Issue(ctx context.Context, grant Grant) (string, error) {
	if grant.Consumer == "" || grant.Provider == "" || grant.Service == "" {
		return "", ErrInvalidClaims
	}

	now := a.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.config.Issuer,
			Subject:   grant.Consumer,
			Audience:  jwt.ClaimStrings{grant.Provider},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TokenTTL)),
		},
		Service:   grant.Service,
		Interface: grant.Interface,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", xerrors.Wrap(err, "auth: sign token")
	}

	a.metrics.issued.Inc(ctx)
	a.logger.Debug("token issued",
		clog.String("consumer", grant.Consumer),
		clog.String("provider", grant.Provider),
		clog.String("service", grant.Service))
	return token, nil
}

func (a *jwtAuth) Verify(ctx context.Context, tokenString string, audience string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.config.Issuer))
	}
	if audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(a.config.SecretKey), nil
	}, parserOpts...)
	if err != nil {
		mapped, errType := classify(err)
		a.metrics.observeVerify(ctx, errType)
		a.logger.Debug("token rejected", clog.String("error_type", errType), clog.Error(err))
		return nil, mapped
	}

	a.metrics.observeVerify(ctx, "")
	return claims, nil
}

// classify 把 jwt 库错误映射为包内哨兵错误
func classify(err error) (error, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken, "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature, "invalid_signature"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch, "invalid_audience"
	default:
		return xerrors.Mark(xerrors.Wrap(err, ErrInvalidToken.Error()), ErrInvalidToken), "invalid_token"
	}
}
