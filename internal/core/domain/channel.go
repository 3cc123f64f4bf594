package domain

import "time"

// Subscription links a subscriber to the channel (another user) they follow.
type Subscription struct {
	ID         string    `json:"_id"`
	Subscriber string    `json:"subscriber"`
	Channel    string    `json:"channel"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChannelProfile is the public view of a channel as seen by a viewer.
type ChannelProfile struct {
	ID                        string  `json:"_id"`
	FullName                  string  `json:"fullName"`
	Username                  string  `json:"username"`
	Email                     string  `json:"email"`
	Avatar                    string  `json:"avatar"`
	CoverImage                *string `json:"coverImage,omitempty"`
	SubscribersCount          int64   `json:"subscribersCount"`
	ChannelsSubscribedToCount int64   `json:"channelsSubscribedToCount"`
	IsSubscribed              bool    `json:"isSubscribed"`
}

// VideoOwner is the public projection of the user who uploaded a video.
type VideoOwner struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// VideoView is a watched video together with its owner's public profile.
// Owner is nil when the owning account no longer exists.
type VideoView struct {
	ID          string      `json:"_id"`
	VideoFile   string      `json:"videoFile"`
	Thumbnail   string      `json:"thumbnail"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	Views       int64       `json:"views"`
	IsPublished bool        `json:"isPublished"`
	Owner       *VideoOwner `json:"owner"`
	CreatedAt   time.Time   `json:"createdAt"`
}
