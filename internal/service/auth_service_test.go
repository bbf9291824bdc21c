package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cadenza-hq/music-crm-api/internal/models"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type authRepoStub struct {
	userRepoStub
	lastLogin *time.Time
}

func (s *authRepoStub) UpdateLastLogin(_ context.Context, _ string, ts time.Time) error {
	s.lastLogin = &ts
	return nil
}

func newAuthFixture(t *testing.T, active bool) (*AuthService, *authRepoStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &authRepoStub{userRepoStub: userRepoStub{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "staff@example.com", PasswordHash: string(hash), FullName: "Staff One", Role: models.RoleStaff, Active: active},
	}}}
	return NewAuthService(repo, "test-secret", time.Hour, nil, nil), repo
}

func TestAuthLoginSuccess(t *testing.T) {
	svc, repo := newAuthFixture(t, true)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "user-1", res.User.ID)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.NotNil(t, repo.lastLogin)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStaff, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginUnknownEmailSameError(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
