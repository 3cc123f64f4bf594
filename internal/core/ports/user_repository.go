package ports

import (
	"context"

	"github.com/videotube/account-service/internal/core/domain"
)

// UserRepository persists user records. It is the only writer of the
// password hash and the refresh slot.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByIdentifier matches on username OR email; empty arguments are ignored.
	FindByIdentifier(ctx context.Context, username, email string) (*domain.User, error)

	// SetRefreshTokenHash overwrites the refresh slot. An empty hash clears it.
	SetRefreshTokenHash(ctx context.Context, id, hash string) error
	// SwapRefreshTokenHash replaces the slot only while it still holds previous.
	// It returns domain.ErrSessionSlotMismatch when the slot has moved on.
	SwapRefreshTokenHash(ctx context.Context, id, previous, next string) error

	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateAccount(ctx context.Context, id, fullName, email string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (*domain.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*domain.User, error)
}
