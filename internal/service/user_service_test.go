package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cadenza-hq/music-crm-api/internal/models"
	"github.com/cadenza-hq/music-crm-api/internal/repository"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type userRepoStub struct {
	users     map[string]*models.User
	created   *models.User
	createErr error
}

func (s *userRepoStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *userRepoStub) Create(_ context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = "user-new"
	s.created = user
	return nil
}

func TestProvisionStudentHashesPassword(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{}}
	svc := NewUserService(repo, nil)

	user, err := svc.ProvisionStudent(context.Background(), "Ana Souza", "ana@example.com", "555-0100", "hunter2secret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2secret")))
}

func TestProvisionStudentGeneratesPassword(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{}}
	svc := NewUserService(repo, nil)

	user, err := svc.ProvisionStudent(context.Background(), "Ana Souza", "ana@example.com", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestProvisionStudentRequiresEmail(t *testing.T) {
	svc := NewUserService(&userRepoStub{}, nil)

	_, err := svc.ProvisionStudent(context.Background(), "Ana Souza", "", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProvisionStudentDuplicateEmail(t *testing.T) {
	repo := &userRepoStub{createErr: repository.ErrDuplicateEmail}
	svc := NewUserService(repo, nil)

	_, err := svc.ProvisionStudent(context.Background(), "Ana Souza", "ana@example.com", "", "pw12345678")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
