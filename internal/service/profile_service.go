package service

import (
	"context"
	"fmt"
	"strings"

	"streamtube/internal/domain"
	"streamtube/internal/repository"
)

// ProfileService computes the viewer-relative channel view and maintains the
// subscription edges behind it.
type ProfileService interface {
	// GetChannelProfile aggregates subscriber counts for the named channel.
	// viewerID 0 means an anonymous viewer; IsSubscribed is then false.
	GetChannelProfile(ctx context.Context, viewerID int64, username string) (*domain.ChannelProfile, error)
	Subscribe(ctx context.Context, subscriberID int64, channelUsername string) error
	Unsubscribe(ctx context.Context, subscriberID int64, channelUsername string) error
}

type profileService struct {
	users repository.UserRepository
	subs  repository.SubscriptionRepository
}

func NewProfileService(users repository.UserRepository, subs repository.SubscriptionRepository) ProfileService {
	return &profileService{users: users, subs: subs}
}

func (s *profileService) GetChannelProfile(ctx context.Context, viewerID int64, username string) (*domain.ChannelProfile, error) {
	channel, err := s.channelByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	subscribers, err := s.subs.CountSubscribers(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	subscribedTo, err := s.subs.CountSubscribedTo(ctx, channel.ID)
	if err != nil {
		return nil, err
	}

	var isSubscribed bool
	if viewerID > 0 {
		isSubscribed, err = s.subs.IsSubscribed(ctx, viewerID, channel.ID)
		if err != nil {
			return nil, err
		}
	}

	return &domain.ChannelProfile{
		UserID:            channel.ID,
		Username:          channel.Username,
		FullName:          channel.FullName,
		AvatarURL:         channel.AvatarURL,
		CoverImageURL:     channel.CoverImageURL,
		SubscriberCount:   subscribers,
		SubscribedToCount: subscribedTo,
		IsSubscribed:      isSubscribed,
	}, nil
}

func (s *profileService) Subscribe(ctx context.Context, subscriberID int64, channelUsername string) error {
	channel, err := s.channelByUsername(ctx, channelUsername)
	if err != nil {
		return err
	}
	if channel.ID == subscriberID {
		return fmt.Errorf("cannot subscribe to yourself: %w", domain.ErrValidation)
	}
	return s.subs.Subscribe(ctx, subscriberID, channel.ID)
}

func (s *profileService) Unsubscribe(ctx context.Context, subscriberID int64, channelUsername string) error {
	channel, err := s.channelByUsername(ctx, channelUsername)
	if err != nil {
		return err
	}
	return s.subs.Unsubscribe(ctx, subscriberID, channel.ID)
}

func (s *profileService) channelByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", domain.ErrValidation)
	}
	return s.users.GetByUsername(ctx, username)
}
