package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/pkg/metrics"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 10 * 24 * time.Hour
)

// TokenConfig holds the signing material for both token purposes. Access and
// refresh tokens use different secrets so one can never be replayed as the other.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// TokenService mints and verifies HS256 access/refresh token pairs.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(cfg TokenConfig) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Type     string `json:"typ"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// MintPair issues a fresh access and refresh token for user.
func (s *TokenService) MintPair(user *domain.User) (domain.TokenPair, error) {
	if user == nil || user.ID == "" {
		return domain.TokenPair{}, errors.New("mint pair: missing user id")
	}
	now := s.now()

	access, err := s.sign(tokenClaims{
		RegisteredClaims: s.registered(user.ID, now, s.accessTTL),
		Type:             domain.TokenTypeAccess,
		Username:         user.Username,
		Email:            user.Email,
		FullName:         user.FullName,
	}, s.accessSecret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.sign(tokenClaims{
		RegisteredClaims: s.registered(user.ID, now, s.refreshTTL),
		Type:             domain.TokenTypeRefresh,
	}, s.refreshSecret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	metrics.TokensIssuedTotal.WithLabelValues(domain.TokenTypeAccess).Inc()
	metrics.TokensIssuedTotal.WithLabelValues(domain.TokenTypeRefresh).Inc()

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess checks signature, expiry and purpose of an access token and
// returns the user id it was issued to. It never touches storage.
func (s *TokenService) VerifyAccess(token string) (string, error) {
	claims, err := s.parse(token, s.accessSecret, domain.TokenTypeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyRefresh checks signature, expiry and purpose of a refresh token. The
// caller must still compare the token against the user's stored slot.
func (s *TokenService) VerifyRefresh(token string) (*domain.RefreshClaims, error) {
	claims, err := s.parse(token, s.refreshSecret, domain.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	out := &domain.RefreshClaims{
		UserID:  claims.Subject,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (s *TokenService) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims tokenClaims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *TokenService) parse(token string, secret []byte, wantType string) (*tokenClaims, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Type != wantType || claims.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
