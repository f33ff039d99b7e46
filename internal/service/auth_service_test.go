package service

import (
	"context"
	"testing"
	"time"

	"streampass/internal/model"
	"streampass/internal/repository"
	"streampass/internal/testutil"
	"streampass/internal/util"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (AuthService, *testutil.UserRepo) {
	t.Helper()
	users := testutil.NewUserRepo()
	return NewAuthService(users, "secret", 2*time.Hour, zerolog.Nop()), users
}

func TestRegister(t *testing.T) {
	svc, users := newAuthService(t)

	res, err := svc.Register(context.Background(), "  A@B.com ", "Abc123", "Ann")
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", res.User.Email)
	assert.Equal(t, []string{model.RoleUser}, res.User.Roles)
	assert.Equal(t, model.SubscriptionStatusInactive, res.User.SubscriptionStatus)
	assert.True(t, res.User.IsActive)
	assert.NotEqual(t, "Abc123", users.Get(res.User.ID).Password)

	claims, err := util.ValidateJWT(res.Token, "secret")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService(t)
	_, err := svc.Register(context.Background(), "a@b.com", "Abc123", "Ann")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "A@b.com", "Abc123", "Ann")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrUniqueViolation)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	reg, err := svc.Register(context.Background(), "a@b.com", "Abc123", "Ann")
	require.NoError(t, err)

	res, err := svc.Login(context.Background(), "A@B.COM", "Abc123")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(context.Background(), "a@b.com", "wrong1A")
	assert.ErrorIs(t, err, ErrInvalidCredentialsPassword)

	_, err = svc.Login(context.Background(), "nobody@b.com", "Abc123")
	assert.ErrorIs(t, err, ErrInvalidCredentialsEmail)
}

func TestAuthenticate(t *testing.T) {
	svc, users := newAuthService(t)
	reg, err := svc.Register(context.Background(), "a@b.com", "Abc123", "Ann")
	require.NoError(t, err)

	u, err := svc.Authenticate(context.Background(), reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, u.ID)

	inactive := users.Seed(&model.User{Email: "off@b.com", IsActive: false})
	token, err := util.SignJWT(inactive.ID, "secret", time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUserInactive)

	ghost, err := util.SignJWT("4f1c2d8e-0000-4000-8000-000000000000", "secret", time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	malformed, err := util.SignJWT("not-a-uuid", "secret", time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), malformed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCheckAuthStatusIssuesFreshToken(t *testing.T) {
	svc, users := newAuthService(t)
	u := users.Seed(&model.User{Email: "a@b.com", IsActive: true})

	res, err := svc.CheckAuthStatus(context.Background(), u)
	require.NoError(t, err)
	assert.Same(t, u, res.User)
	claims, err := util.ValidateJWT(res.Token, "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.ID)
}
