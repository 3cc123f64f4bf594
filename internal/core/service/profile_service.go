package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

// ProfileAggregator answers the channel profile and watch history queries.
// The joins themselves run inside the repository's aggregation pipelines.
type ProfileAggregator struct {
	repo ports.ProfileRepository
	log  zerolog.Logger
}

func NewProfileAggregator(repo ports.ProfileRepository, log zerolog.Logger) *ProfileAggregator {
	return &ProfileAggregator{repo: repo, log: log}
}

// GetChannelProfile returns the public profile of the channel named username,
// with subscriber counts and whether viewerID subscribes to it.
func (p *ProfileAggregator) GetChannelProfile(ctx context.Context, viewerID, username string) (*domain.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, domain.NewValidationError("username is missing")
	}

	profile, err := p.repo.ChannelProfile(ctx, viewerID, username)
	if err != nil {
		return nil, err
	}
	p.log.Debug().Str("channel", username).Int64("subscribers", profile.SubscribersCount).Msg("channel profile fetched")
	return profile, nil
}

// GetWatchHistory returns the user's watched videos in the order they appear
// in the user's watch history.
func (p *ProfileAggregator) GetWatchHistory(ctx context.Context, userID string) ([]domain.VideoView, error) {
	videos, err := p.repo.WatchHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []domain.VideoView{}
	}
	return videos, nil
}
