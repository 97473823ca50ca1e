package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamtube/internal/domain"
	"streamtube/internal/storage"
)

// fakeUserRepository is an in-memory stand-in for the sqlite repository with
// the same uniqueness and compare-and-swap semantics.
type fakeUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{nextID: 1, users: make(map[int64]*domain.User)}
}

func (f *fakeUserRepository) Init(ctx context.Context) error { return nil }

func (f *fakeUserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, fmt.Errorf("user: %w", domain.ErrConflict)
		}
	}
	clone := *user
	clone.ID = f.nextID
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	f.users[clone.ID] = &clone
	f.nextID++
	user.ID = clone.ID
	return clone.ID, nil
}

func (f *fakeUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

func (f *fakeUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

func (f *fakeUserRepository) UpdateAccount(ctx context.Context, id int64, fullName, email string) error {
	return f.update(id, func(u *domain.User) {
		u.FullName = fullName
		u.Email = email
	})
}

func (f *fakeUserRepository) UpdateAvatarURL(ctx context.Context, id int64, url string) error {
	return f.update(id, func(u *domain.User) { u.AvatarURL = url })
}

func (f *fakeUserRepository) UpdateCoverImageURL(ctx context.Context, id int64, url string) error {
	return f.update(id, func(u *domain.User) { u.CoverImageURL = url })
}

func (f *fakeUserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return f.update(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (f *fakeUserRepository) SetRefreshToken(ctx context.Context, id int64, token *string) error {
	return f.update(id, func(u *domain.User) {
		if token == nil {
			u.RefreshToken = ""
		} else {
			u.RefreshToken = *token
		}
	})
}

func (f *fakeUserRepository) RotateRefreshToken(ctx context.Context, id int64, expected, next string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if u.RefreshToken != expected {
		return fmt.Errorf("refresh token superseded: %w", domain.ErrUnauthorized)
	}
	u.RefreshToken = next
	return nil
}

func (f *fakeUserRepository) update(id int64, fn func(*domain.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

type fakeSubscriptionRepository struct {
	mu    sync.Mutex
	edges map[[2]int64]struct{}
}

func newFakeSubscriptionRepository() *fakeSubscriptionRepository {
	return &fakeSubscriptionRepository{edges: make(map[[2]int64]struct{})}
}

func (f *fakeSubscriptionRepository) Init(ctx context.Context) error { return nil }

func (f *fakeSubscriptionRepository) Subscribe(ctx context.Context, subscriberID, channelID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[[2]int64{subscriberID, channelID}] = struct{}{}
	return nil
}

func (f *fakeSubscriptionRepository) Unsubscribe(ctx context.Context, subscriberID, channelID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.edges, [2]int64{subscriberID, channelID})
	return nil
}

func (f *fakeSubscriptionRepository) CountSubscribers(ctx context.Context, channelID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for edge := range f.edges {
		if edge[1] == channelID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSubscriptionRepository) CountSubscribedTo(ctx context.Context, subscriberID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for edge := range f.edges {
		if edge[0] == subscriberID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSubscriptionRepository) IsSubscribed(ctx context.Context, subscriberID, channelID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.edges[[2]int64{subscriberID, channelID}]
	return ok, nil
}

// fakeMediaStore returns deterministic URLs and can be told to fail for
// specific local paths.
type fakeMediaStore struct {
	mu      sync.Mutex
	failFor map[string]bool
	uploads []string
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{failFor: make(map[string]bool)}
}

func (f *fakeMediaStore) Upload(ctx context.Context, localPath string, opts storage.UploadOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[localPath] {
		return "", errors.New("media store unavailable")
	}
	f.uploads = append(f.uploads, localPath)
	return "https://cdn.example.com/" + opts.KeyPrefix + "/" + localPath, nil
}

func (f *fakeMediaStore) Delete(ctx context.Context, bucket, key string) error { return nil }

func (f *fakeMediaStore) GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	return "https://cdn.example.com/presigned/" + key, nil
}
