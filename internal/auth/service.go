package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

type Service struct {
	rt  RefreshTokenRepo
	cfg Config
}

var _ CredentialService = (*Service)(nil)

func NewService(rt RefreshTokenRepo, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{rt: rt, cfg: cfg}
}

func (s *Service) VerifyPrimary(token string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.cfg.Secret, nil
	}, jwt.WithTimeFunc(s.cfg.Now))
	if err != nil || !parsed.Valid {
		return 0, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, ErrTokenInvalid
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uid, nil
}

// VerifySecondary consumes the refresh token: a token that validates is
// revoked so it cannot be replayed. The caller mints a fresh pair.
func (s *Service) VerifySecondary(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrTokenInvalid
	}
	hash := HashToken(token)
	rec, err := s.rt.FindValid(ctx, hash)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	now := s.cfg.Now()
	if rec.Revoked || rec.ExpiresAt.Before(now) {
		return 0, ErrTokenExpired
	}
	if err := s.rt.Revoke(ctx, rec.TokenHash); err != nil {
		return 0, fmt.Errorf("revoke refresh: %w", err)
	}
	return rec.UserID, nil
}

func (s *Service) MintPair(ctx context.Context, userID int64) (TokenPair, error) {
	now := s.cfg.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access: %w", err)
	}

	refreshRaw, err := GenerateRawToken(32)
	if err != nil {
		return TokenPair{}, fmt.Errorf("gen refresh: %w", err)
	}
	rec := &RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(refreshRaw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
	}
	if err := s.rt.Create(ctx, rec); err != nil {
		return TokenPair{}, fmt.Errorf("save refresh: %w", err)
	}
	return TokenPair{Access: access, Refresh: refreshRaw}, nil
}
