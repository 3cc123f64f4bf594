package domain

import (
	"io"
	"time"
)

// Token purposes, carried in the "typ" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenPair is the session artifact handed to the client. It is never persisted.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshClaims is what a verified refresh token tells us.
type RefreshClaims struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Upload is an image received from the client, ready to be stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Media kinds, used as object key prefixes.
const (
	MediaAvatar     = "avatars"
	MediaCoverImage = "cover-images"
)
