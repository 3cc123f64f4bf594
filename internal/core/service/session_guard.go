package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

// SessionGuard is the gate in front of every protected operation. It only
// reads: it verifies the access token and loads the user it names.
type SessionGuard struct {
	tokens ports.TokenIssuer
	creds  ports.CredentialStore
}

func NewSessionGuard(tokens ports.TokenIssuer, creds ports.CredentialStore) *SessionGuard {
	return &SessionGuard{tokens: tokens, creds: creds}
}

// Authenticate returns the safe view of the token's user, or an error matching
// domain.ErrUnauthorized when the token is missing, malformed, expired, or the
// user is gone.
func (g *SessionGuard) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	if accessToken == "" {
		return nil, domain.ErrUnauthorized
	}

	userID, err := g.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	user, err := g.creds.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return user.Safe(), nil
}
