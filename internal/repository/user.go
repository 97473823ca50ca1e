package repository

import (
	"context"

	"streamtube/internal/domain"
)

// UserRepository defines persistence operations for User entities. It owns the
// single-slot refresh token: every write fully replaces the prior value.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// FindByUsernameOrEmail returns the first user matching either value.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	UpdateAccount(ctx context.Context, id int64, fullName, email string) error
	UpdateAvatarURL(ctx context.Context, id int64, url string) error
	UpdateCoverImageURL(ctx context.Context, id int64, url string) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	// SetRefreshToken unconditionally replaces the stored refresh token.
	// A nil token clears the slot.
	SetRefreshToken(ctx context.Context, id int64, token *string) error
	// RotateRefreshToken atomically swaps the stored refresh token from
	// expected to next. It returns domain.ErrUnauthorized when the stored
	// value no longer matches expected, so that of two racing refreshes at
	// most one can win.
	RotateRefreshToken(ctx context.Context, id int64, expected, next string) error
}

// SubscriptionRepository manages the subscriber->channel edge set.
type SubscriptionRepository interface {
	Init(ctx context.Context) error
	// Subscribe inserts the edge; subscribing twice is a no-op.
	Subscribe(ctx context.Context, subscriberID, channelID int64) error
	Unsubscribe(ctx context.Context, subscriberID, channelID int64) error
	CountSubscribers(ctx context.Context, channelID int64) (int64, error)
	CountSubscribedTo(ctx context.Context, subscriberID int64) (int64, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID int64) (bool, error)
}
