package auth

import "github.com/ceyewan/orchestrator/xerrors"

var (
	ErrInvalidToken     = xerrors.New("auth: invalid token")
	ErrExpiredToken     = xerrors.New("auth: token expired")
	ErrMissingToken     = xerrors.New("auth: missing token")
	ErrInvalidClaims    = xerrors.Mark(xerrors.New("auth: invalid claims"), xerrors.ErrInvalidInput)
	ErrInvalidSignature = xerrors.New("auth: invalid signature")
	ErrAudienceMismatch = xerrors.New("auth: audience mismatch")
	ErrInvalidConfig    = xerrors.Mark(xerrors.New("auth: invalid config"), xerrors.ErrInvalidInput)
)
