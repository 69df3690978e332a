package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type TokenPair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	FindValid(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
}

// CredentialService is what the connection hub consumes during the
// websocket handshake. Primary is the short-lived access token; secondary
// is the rotating refresh token used as a fallback.
type CredentialService interface {
	VerifyPrimary(token string) (int64, error)
	VerifySecondary(ctx context.Context, token string) (int64, error)
	MintPair(ctx context.Context, userID int64) (TokenPair, error)
}
