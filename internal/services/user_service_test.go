package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/manuphatak/talks/internal/database/testutil"
	apperrors "github.com/manuphatak/talks/pkg/errors"
)

func newUserService(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewUserService(db, audit)
	require.NoError(t, err)
	return svc, db
}

func TestUserServiceRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterUserInput{
		Username: "presenter",
		Email:    "Presenter@Example.com",
		Password: "s3cret-pass",
		Name:     "Pat Presenter",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "presenter@example.com", user.Email)
	require.NotEqual(t, "s3cret-pass", user.PasswordHash)
	require.Len(t, user.AvatarHash, 32)
	require.False(t, user.MemberSince.IsZero())

	byUsername, err := svc.Authenticate(ctx, "presenter", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, user.ID, byUsername.ID)

	byEmail, err := svc.Authenticate(ctx, "presenter@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)
}

func TestUserServiceAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterUserInput{
		Username: "presenter",
		Email:    "presenter@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "presenter", "wrong-pass")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret-pass")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestTimingEqualizationHashIsWellFormed(t *testing.T) {
	// A malformed digest would make CompareHashAndPassword fail fast on
	// parsing and burn nothing.
	cost, err := bcrypt.Cost([]byte(timingEqualizationHash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, cost)
}

func TestUserServiceRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterUserInput{
		Username: "presenter",
		Email:    "presenter@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterUserInput{
		Username: "presenter",
		Email:    "other@example.com",
		Password: "s3cret-pass",
	})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.StatusCode)
}

func TestUserServiceUpdateProfile(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterUserInput{
		Username: "presenter",
		Email:    "presenter@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	name := "Pat Presenter"
	location := "Portland, OR"
	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{
		Name:     &name,
		Location: &location,
	})
	require.NoError(t, err)
	require.Equal(t, "Pat Presenter", updated.Name)
	require.Equal(t, "Portland, OR", updated.Location)
	require.Equal(t, "Pat Presenter", updated.DisplayName())
}

func TestUserServiceChangePassword(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterUserInput{
		Username: "presenter",
		Email:    "presenter@example.com",
		Password: "old-pass",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "new-pass"))

	_, err = svc.Authenticate(ctx, "presenter", "old-pass")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "presenter", "new-pass")
	require.NoError(t, err)

	require.ErrorIs(t, svc.ChangePassword(ctx, "missing-id", "whatever"), ErrUserNotFound)
}

func TestUserServiceGetByUsername(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterUserInput{
		Username: "presenter",
		Email:    "presenter@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	found, err := svc.GetByUsername(ctx, "presenter")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	_, err = svc.GetByUsername(ctx, "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)
}
