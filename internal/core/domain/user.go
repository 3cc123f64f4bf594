package domain

import "time"

// User is the account and credential record of a channel owner.
//
// PasswordHash and RefreshTokenHash never leave the service; both are excluded
// from JSON and cleared by Safe.
type User struct {
	ID               string    `json:"_id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	PasswordHash     string    `json:"-"`
	Avatar           string    `json:"avatar"`
	CoverImage       *string   `json:"coverImage,omitempty"`
	RefreshTokenHash string    `json:"-"`
	WatchHistory     []string  `json:"watchHistory"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Safe returns a copy of u without credential or session material.
func (u *User) Safe() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.PasswordHash = ""
	clone.RefreshTokenHash = ""
	if u.WatchHistory != nil {
		clone.WatchHistory = append([]string(nil), u.WatchHistory...)
	} else {
		clone.WatchHistory = []string{}
	}
	return &clone
}

// HasSession reports whether the refresh slot currently holds a token.
func (u *User) HasSession() bool {
	return u != nil && u.RefreshTokenHash != ""
}
