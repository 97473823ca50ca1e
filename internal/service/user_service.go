package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"streamtube/internal/domain"
	"streamtube/internal/repository"
	"streamtube/internal/storage"
	"streamtube/internal/token"
)

// RegisterInput carries the fields of a registration request. Avatar and
// cover image are local paths of already-received uploads.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// MediaOptions points the user service at the buckets/prefixes for profile
// assets.
type MediaOptions struct {
	Avatar storage.UploadOptions
	Cover  storage.UploadOptions
}

// UserService owns the session lifecycle: registration, login, refresh-token
// rotation, logout, and account mutations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, email, password string) (*domain.User, *domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, userID int64) error
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateAccount(ctx context.Context, userID int64, fullName, email string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, userID int64, localPath string) (*domain.User, error)
	UpdateCoverImage(ctx context.Context, userID int64, localPath string) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	media  storage.Service
	codec  *token.Codec
	opts   MediaOptions
	logger *logrus.Logger
}

func NewUserService(users repository.UserRepository, media storage.Service, codec *token.Codec, opts MediaOptions, logger *logrus.Logger) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{
		users:  users,
		media:  media,
		codec:  codec,
		opts:   opts,
		logger: logger,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))
	password := strings.TrimSpace(in.Password)

	if fullName == "" || email == "" || username == "" || password == "" {
		return nil, fmt.Errorf("all fields are required: %w", domain.ErrValidation)
	}

	existing, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user: %w", domain.ErrConflict)
	}

	if in.AvatarPath == "" {
		return nil, fmt.Errorf("avatar is required: %w", domain.ErrValidation)
	}

	avatarURL, coverURL, err := s.uploadProfileImages(ctx, in.AvatarPath, in.CoverImagePath)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  string(hash),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}
	id, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	created, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load created user: %w", err)
	}
	return sanitizeUser(created), nil
}

// uploadProfileImages pushes avatar and cover concurrently. The avatar is
// mandatory; a cover failure degrades to an empty URL.
func (s *userService) uploadProfileImages(ctx context.Context, avatarPath, coverPath string) (string, string, error) {
	var avatarURL, coverURL string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := s.media.Upload(gctx, avatarPath, s.opts.Avatar)
		if err != nil {
			return fmt.Errorf("avatar: %v: %w", err, domain.ErrUpload)
		}
		avatarURL = url
		return nil
	})
	if coverPath != "" {
		g.Go(func() error {
			url, err := s.media.Upload(gctx, coverPath, s.opts.Cover)
			if err != nil {
				s.logger.Warnf("cover image upload failed, continuing without: %v", err)
				return nil
			}
			coverURL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return avatarURL, coverURL, nil
}

func (s *userService) Login(ctx context.Context, username, email, password string) (*domain.User, *domain.TokenPair, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" && email == "" {
		return nil, nil, fmt.Errorf("username or email is required: %w", domain.ErrValidation)
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, nil, err
	}
	// overwriting the slot invalidates any previously issued refresh token:
	// one active session per user
	if err := s.users.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return nil, nil, err
	}

	return sanitizeUser(user), pair, nil
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("refresh token is required: %w", domain.ErrUnauthorized)
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("unknown session: %w", domain.ErrUnauthorized)
	}

	// only the most recently issued token is ever valid; an older one was
	// rotated away and is treated as reused
	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return nil, fmt.Errorf("refresh token expired or reused: %w", domain.ErrUnauthorized)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	if err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return pair, nil
}

func (s *userService) Logout(ctx context.Context, userID int64) error {
	// clearing an already-empty slot is fine; logout is idempotent
	return s.users.SetRefreshToken(ctx, userID, nil)
}

func (s *userService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return fmt.Errorf("new password is required: %w", domain.ErrValidation)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	// password change intentionally leaves the current session valid; the
	// refresh token is not rotated or cleared here
	return s.users.UpdatePasswordHash(ctx, userID, string(hash))
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateAccount(ctx context.Context, userID int64, fullName, email string) (*domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" {
		return nil, fmt.Errorf("full name and email are required: %w", domain.ErrValidation)
	}

	if err := s.users.UpdateAccount(ctx, userID, fullName, email); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, userID)
}

func (s *userService) UpdateAvatar(ctx context.Context, userID int64, localPath string) (*domain.User, error) {
	if localPath == "" {
		return nil, fmt.Errorf("avatar file is required: %w", domain.ErrValidation)
	}

	url, err := s.media.Upload(ctx, localPath, s.opts.Avatar)
	if err != nil {
		return nil, fmt.Errorf("avatar: %v: %w", err, domain.ErrUpload)
	}
	// TODO: delete the replaced avatar object; needs the object key persisted
	// alongside the URL
	if err := s.users.UpdateAvatarURL(ctx, userID, url); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, userID)
}

func (s *userService) UpdateCoverImage(ctx context.Context, userID int64, localPath string) (*domain.User, error) {
	if localPath == "" {
		return nil, fmt.Errorf("cover image file is required: %w", domain.ErrValidation)
	}

	url, err := s.media.Upload(ctx, localPath, s.opts.Cover)
	if err != nil {
		return nil, fmt.Errorf("cover image: %v: %w", err, domain.ErrUpload)
	}
	if err := s.users.UpdateCoverImageURL(ctx, userID, url); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, userID)
}

func (s *userService) issuePair(user *domain.User) (*domain.TokenPair, error) {
	access, accessExp, err := s.codec.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.codec.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}
