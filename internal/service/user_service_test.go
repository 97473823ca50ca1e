package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"streamtube/internal/domain"
	"streamtube/internal/storage"
	"streamtube/internal/token"
)

func newTestService(t *testing.T) (UserService, *fakeUserRepository, *fakeMediaStore) {
	t.Helper()

	repo := newFakeUserRepository()
	media := newFakeMediaStore()
	codec := token.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := NewUserService(repo, media, codec, MediaOptions{
		Avatar: storage.UploadOptions{Bucket: "media", KeyPrefix: "avatars"},
		Cover:  storage.UploadOptions{Bucket: "media", KeyPrefix: "covers"},
	}, logger)
	return svc, repo, media
}

func registerAlice(t *testing.T, svc UserService) *domain.User {
	t.Helper()

	user, err := svc.Register(context.Background(), RegisterInput{
		FullName:       "Alice Smith",
		Email:          "alice@x.com",
		Username:       "Alice",
		Password:       "Secret1",
		AvatarPath:     "avatar.png",
		CoverImagePath: "cover.png",
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	user := registerAlice(t, svc)

	assert.Equal(t, "alice", user.Username, "username must be lowercased")
	assert.Equal(t, "alice@x.com", user.Email)
	assert.Empty(t, user.PasswordHash, "returned user must not carry the password hash")
	assert.Empty(t, user.RefreshToken, "returned user must not carry a refresh token")
	assert.NotEmpty(t, user.AvatarURL)
	assert.NotEmpty(t, user.CoverImageURL)

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secret1")))
}

func TestRegister_ValidationFailures(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"blank full name", RegisterInput{FullName: "  ", Email: "a@x.com", Username: "a", Password: "Secret1", AvatarPath: "a.png"}},
		{"blank email", RegisterInput{FullName: "A", Email: "", Username: "a", Password: "Secret1", AvatarPath: "a.png"}},
		{"blank username", RegisterInput{FullName: "A", Email: "a@x.com", Username: " ", Password: "Secret1", AvatarPath: "a.png"}},
		{"blank password", RegisterInput{FullName: "A", Email: "a@x.com", Username: "a", Password: "   ", AvatarPath: "a.png"}},
		{"missing avatar", RegisterInput{FullName: "A", Email: "a@x.com", Username: "a", Password: "Secret1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	registerAlice(t, svc)

	_, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Other", Email: "other@x.com", Username: "ALICE",
		Password: "Secret1", AvatarPath: "a.png",
	})
	assert.ErrorIs(t, err, domain.ErrConflict, "duplicate username")

	_, err = svc.Register(context.Background(), RegisterInput{
		FullName: "Other", Email: "alice@x.com", Username: "bob",
		Password: "Secret1", AvatarPath: "a.png",
	})
	assert.ErrorIs(t, err, domain.ErrConflict, "duplicate email")
}

func TestRegister_DuplicateReportedBeforeMissingAvatar(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	registerAlice(t, svc)

	_, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Other", Email: "alice@x.com", Username: "alice",
		Password: "Secret1",
	})
	assert.ErrorIs(t, err, domain.ErrConflict, "existing user wins over the missing avatar")
	assert.NotErrorIs(t, err, domain.ErrValidation)
}

func TestRegister_AvatarUploadFailure(t *testing.T) {
	t.Parallel()

	svc, _, media := newTestService(t)
	media.failFor["avatar.png"] = true

	_, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Alice", Email: "alice@x.com", Username: "alice",
		Password: "Secret1", AvatarPath: "avatar.png",
	})
	assert.ErrorIs(t, err, domain.ErrUpload)
}

func TestRegister_CoverUploadFailureDegrades(t *testing.T) {
	t.Parallel()

	svc, _, media := newTestService(t)
	media.failFor["cover.png"] = true

	user, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Alice", Email: "alice@x.com", Username: "alice",
		Password: "Secret1", AvatarPath: "avatar.png", CoverImagePath: "cover.png",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.AvatarURL)
	assert.Empty(t, user.CoverImageURL, "cover failure must degrade to empty URL")
}

func TestLogin(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	created := registerAlice(t, svc)
	ctx := context.Background()

	user, pair, err := svc.Login(ctx, "alice", "", "Secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Empty(t, user.PasswordHash)
	assert.Empty(t, user.RefreshToken)
	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, stored.RefreshToken, "login must persist the refresh token")

	// login by email works too
	_, _, err = svc.Login(ctx, "", "alice@x.com", "Secret1")
	assert.NoError(t, err)
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	created := registerAlice(t, svc)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "", "", "Secret1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = svc.Login(ctx, "ghost", "", "Secret1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = svc.Login(ctx, "alice", "", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = svc.Login(ctx, "alice", "", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken, "failed logins must not persist anything")
}

func TestRefresh_RotationAndReuseDetection(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	registerAlice(t, svc)
	ctx := context.Background()

	_, t1, err := svc.Login(ctx, "alice", "", "Secret1")
	require.NoError(t, err)

	t2, err := svc.Refresh(ctx, t1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, t1.RefreshToken, t2.RefreshToken, "rotation must issue a new refresh token")

	// replaying the rotated-away token must fail even though it is unexpired
	_, err = svc.Refresh(ctx, t1.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// the current token still works
	t3, err := svc.Refresh(ctx, t2.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, t2.RefreshToken, t3.RefreshToken)
}

func TestRefresh_InvalidTokens(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	registerAlice(t, svc)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Refresh(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// token signed with a foreign secret
	foreign := token.NewCodec("other-access", "other-refresh", time.Minute, time.Hour)
	forged, _, err := foreign.IssueRefreshToken(&domain.User{ID: 1})
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// valid signature but no session stored
	_, t1, err := svc.Login(ctx, "alice", "", "Secret1")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, 1))
	_, err = svc.Refresh(ctx, t1.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "logout must invalidate the stored token")
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	created := registerAlice(t, svc)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "alice", "", "Secret1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, created.ID))
	require.NoError(t, svc.Logout(ctx, created.ID), "second logout must not fail")

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	created := registerAlice(t, svc)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, created.ID, "wrong-old", "NewSecret9")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = svc.ChangePassword(ctx, created.ID, "Secret1", "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, t1, err := svc.Login(ctx, "alice", "", "Secret1")
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, created.ID, "Secret1", "NewSecret9"))

	_, _, err = svc.Login(ctx, "alice", "", "Secret1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "old password must stop working")

	// a password change leaves the current session's refresh token in place
	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, t1.RefreshToken, stored.RefreshToken)

	_, _, err = svc.Login(ctx, "alice", "", "NewSecret9")
	assert.NoError(t, err)
}

func TestUpdateAccountAndMedia(t *testing.T) {
	t.Parallel()

	svc, _, media := newTestService(t)
	created := registerAlice(t, svc)
	ctx := context.Background()

	user, err := svc.UpdateAccount(ctx, created.ID, "Alice Brown", "Alice.Brown@X.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice Brown", user.FullName)
	assert.Equal(t, "alice.brown@x.com", user.Email, "email must be lowercased")

	_, err = svc.UpdateAccount(ctx, created.ID, "", "x@x.com")
	assert.ErrorIs(t, err, domain.ErrValidation)

	user, err = svc.UpdateAvatar(ctx, created.ID, "new-avatar.png")
	require.NoError(t, err)
	assert.Contains(t, user.AvatarURL, "new-avatar.png")

	media.failFor["bad.png"] = true
	_, err = svc.UpdateAvatar(ctx, created.ID, "bad.png")
	assert.ErrorIs(t, err, domain.ErrUpload)

	user, err = svc.UpdateCoverImage(ctx, created.ID, "new-cover.png")
	require.NoError(t, err)
	assert.Contains(t, user.CoverImageURL, "new-cover.png")
}
