package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/repositories"
)

// UserService defines the interface for account operations.
type UserService interface {
	// Register creates an active, non-superuser account.
	Register(ctx context.Context, email, password, fullName string) (*models.User, error)

	// Authenticate checks credentials. Unknown email and wrong password both
	// return apperrors.ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (*models.User, error)

	// CreateAdmin creates an active superuser.
	CreateAdmin(ctx context.Context, email, password, fullName string) (*models.User, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type userService struct {
	repo   repositories.UserRepository
	logger *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo repositories.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		repo:   repo,
		logger: logger.Named("users"),
	}
}

func (s *userService) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	return s.create(ctx, email, password, fullName, false)
}

func (s *userService) CreateAdmin(ctx context.Context, email, password, fullName string) (*models.User, error) {
	return s.create(ctx, email, password, fullName, true)
}

func (s *userService) create(ctx context.Context, email, password, fullName string, superuser bool) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	user := &models.User{
		Email:          email,
		FullName:       strings.TrimSpace(fullName),
		HashedPassword: hash,
		IsActive:       true,
		IsSuperuser:    superuser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("Created user",
		zap.String("user_id", user.ID.String()),
		zap.Bool("superuser", superuser),
	)
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.HashedPassword, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrInactiveUser
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperrors.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.Validation("invalid email address")
	}
	return email, nil
}
