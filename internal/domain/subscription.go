package domain

import "time"

// Subscription is a directed edge in the relationship graph: the subscriber
// follows the channel. Both sides reference users.
type Subscription struct {
	ID           int64
	SubscriberID int64
	ChannelID    int64
	CreatedAt    time.Time
}

// ChannelProfile is the derived, viewer-relative view of a user acting as a
// channel. It is recomputed on every read and never persisted.
type ChannelProfile struct {
	UserID            int64
	Username          string
	FullName          string
	AvatarURL         string
	CoverImageURL     string
	SubscriberCount   int64
	SubscribedToCount int64
	IsSubscribed      bool
}
