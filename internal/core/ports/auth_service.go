package ports

import (
	"context"

	"github.com/videotube/account-service/internal/core/domain"
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *domain.Upload
	CoverImage *domain.Upload // optional
}

// LoginInput identifies a user by username OR email; at least one is required.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User   *domain.User
	Tokens domain.TokenPair
}

// AccountService covers account creation and self-service profile changes.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, userID string, file *domain.Upload) (*domain.User, error)
	UpdateCoverImage(ctx context.Context, userID string, file *domain.Upload) (*domain.User, error)
}

// CredentialStore is the part of the account service the session lifecycle needs.
type CredentialStore interface {
	VerifyCredentials(ctx context.Context, username, email, password string) (*domain.User, error)
	FindUser(ctx context.Context, userID string) (*domain.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	RotateRefreshToken(ctx context.Context, userID, previous, next string) error
	// MatchesRefreshToken reports whether token is the one held in the user's slot.
	MatchesRefreshToken(user *domain.User, token string) bool
}

// TokenIssuer mints and verifies the access/refresh pair.
type TokenIssuer interface {
	MintPair(user *domain.User) (domain.TokenPair, error)
	VerifyAccess(token string) (string, error)
	VerifyRefresh(token string) (*domain.RefreshClaims, error)
}

// SessionService drives login, refresh and logout.
type SessionService interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	Logout(ctx context.Context, userID string) error
}

// Authenticator resolves an access token to the user it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.User, error)
}

// ProfileService answers the channel profile and watch history queries.
type ProfileService interface {
	GetChannelProfile(ctx context.Context, viewerID, username string) (*domain.ChannelProfile, error)
	GetWatchHistory(ctx context.Context, userID string) ([]domain.VideoView, error)
}
