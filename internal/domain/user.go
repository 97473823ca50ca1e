package domain

import "time"

// User represents a registered account. Username and email are stored
// lowercase and are unique across all users. RefreshToken holds the single
// currently valid refresh token, or empty when the user has no active session.
type User struct {
	ID            int64
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TokenPair bundles the credentials issued on login and refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
