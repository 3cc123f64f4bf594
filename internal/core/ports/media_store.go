package ports

import (
	"context"

	"github.com/videotube/account-service/internal/core/domain"
)

// MediaStore uploads user images and returns their public URL.
type MediaStore interface {
	Upload(ctx context.Context, kind string, file domain.Upload) (string, error)
	// Delete removes the object behind url. URLs the store does not own are ignored.
	Delete(ctx context.Context, url string) error
}

// MediaCleaner removes images that are no longer referenced, off the request path.
type MediaCleaner interface {
	Discard(userID, url string)
}

// RefreshLocker serialises refresh attempts of a single user.
// Acquire returns domain.ErrRefreshInProgress when the lock is held elsewhere.
type RefreshLocker interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}
