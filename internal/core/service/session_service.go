package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
	"github.com/videotube/account-service/internal/pkg/metrics"
)

// SessionService implements login, refresh-token rotation and logout.
type SessionService struct {
	creds  ports.CredentialStore
	tokens ports.TokenIssuer
	locker ports.RefreshLocker
	log    zerolog.Logger
}

// NewSessionService wires the session lifecycle. locker may be nil, in which
// case the conditional slot update is the only rotation guard.
func NewSessionService(creds ports.CredentialStore, tokens ports.TokenIssuer, locker ports.RefreshLocker, log zerolog.Logger) *SessionService {
	return &SessionService{creds: creds, tokens: tokens, locker: locker, log: log}
}

// Login verifies credentials, mints a pair and stores the refresh token in the
// user's slot, replacing any earlier session.
func (s *SessionService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	user, err := s.creds.VerifyCredentials(ctx, in.Username, in.Email, in.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginFailureLabel(err)).Inc()
		return nil, err
	}

	pair, err := s.tokens.MintPair(user)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to mint token pair")
		return nil, domain.ErrTokenIssue
	}
	if err := s.creds.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to store refresh token")
		return nil, domain.ErrTokenIssue
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return &ports.LoginResult{User: user.Safe(), Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. Every failure is reported
// as domain.ErrRefreshRejected; the concrete reason is logged only.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	pair, userID, err := s.rotate(ctx, refreshToken)
	if err != nil {
		reason := refreshFailureReason(err)
		metrics.RefreshesTotal.WithLabelValues(reason).Inc()
		s.log.Warn().Err(err).Str("reason", reason).Str("user_id", userID).Msg("refresh rejected")
		return domain.TokenPair{}, domain.ErrRefreshRejected
	}

	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	s.log.Debug().Str("user_id", userID).Msg("refresh token rotated")
	return pair, nil
}

func (s *SessionService) rotate(ctx context.Context, refreshToken string) (domain.TokenPair, string, error) {
	if refreshToken == "" {
		return domain.TokenPair{}, "", domain.ErrUnauthorized
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	userID := claims.UserID

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrRefreshInProgress):
			return domain.TokenPair{}, userID, err
		case err != nil:
			s.log.Warn().Err(err).Str("user_id", userID).Msg("refresh lock unavailable, relying on conditional update")
		default:
			defer release()
		}
	}

	user, err := s.creds.FindUser(ctx, userID)
	if err != nil {
		return domain.TokenPair{}, userID, err
	}
	if !s.creds.MatchesRefreshToken(user, refreshToken) {
		return domain.TokenPair{}, userID, domain.ErrSessionSlotMismatch
	}

	pair, err := s.tokens.MintPair(user)
	if err != nil {
		return domain.TokenPair{}, userID, fmt.Errorf("mint pair: %w", err)
	}
	if err := s.creds.RotateRefreshToken(ctx, userID, refreshToken, pair.RefreshToken); err != nil {
		return domain.TokenPair{}, userID, err
	}
	return pair, userID, nil
}

// Logout clears the refresh slot. Clearing an empty slot is not an error.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.creds.SetRefreshToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	metrics.LogoutsTotal.Inc()
	s.log.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

func loginFailureLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "bad_credentials"
	default:
		return "error"
	}
}

func refreshFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, domain.ErrSessionSlotMismatch):
		return "slot_mismatch"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrRefreshInProgress):
		return "in_progress"
	case errors.Is(err, domain.ErrUnauthorized):
		return "missing"
	default:
		return "storage"
	}
}
