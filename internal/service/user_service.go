package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cadenza-hq/music-crm-api/internal/models"
	"github.com/cadenza-hq/music-crm-api/internal/repository"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// UserService manages user accounts, in particular student provisioning
// during admission.
type UserService struct {
	users  userRepository
	logger *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(users userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

// FindByID returns a user; sql.ErrNoRows passes through for callers that map
// absence themselves.
func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

// ProvisionStudent creates a STUDENT account. An empty password gets a random
// one; the student resets it through the usual recovery flow.
func (s *UserService) ProvisionStudent(ctx context.Context, fullName, email, phone, password string) (*models.User, error) {
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student email is required")
	}
	if password == "" {
		generated, err := randomPassword()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
		}
		password = generated
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Phone:        phone,
		Role:         models.RoleStudent,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("a user with email %s already exists", email))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.logger.Info("provisioned student account",
		zap.String("user_id", user.ID),
		zap.String("email", email))
	return user, nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
