package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// UserRepository defines the interface for user data access.
// Users are not owner-scoped; these run on an unscoped connection.
type UserRepository interface {
	// Create inserts a user. A duplicate email (case-insensitive) is apperrors.ErrConflict.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

const userColumns = `id, email, full_name, hashed_password, is_active, is_superuser, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (email, full_name, hashed_password, is_active, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err = scope.Conn.QueryRow(ctx, query,
		user.Email,
		user.FullName,
		user.HashedPassword,
		user.IsActive,
		user.IsSuperuser,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return mapError("create user", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(scope.Conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get user", err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(scope.Conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, mapError("get user by email", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.HashedPassword,
		&u.IsActive,
		&u.IsSuperuser,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
