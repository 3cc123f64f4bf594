package ports

import (
	"context"

	"github.com/videotube/account-service/internal/core/domain"
)

// ProfileRepository runs the read-side joins over users, subscriptions and videos.
type ProfileRepository interface {
	// ChannelProfile returns domain.ErrChannelNotFound when no user has username.
	ChannelProfile(ctx context.Context, viewerID, username string) (*domain.ChannelProfile, error)
	// WatchHistory returns the user's watched videos in watch-history order.
	WatchHistory(ctx context.Context, userID string) ([]domain.VideoView, error)
}
