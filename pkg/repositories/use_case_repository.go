package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// UseCaseRepository defines the interface for use case data access.
// Ownership comes from the parent connection via row-level security.
type UseCaseRepository interface {
	Create(ctx context.Context, uc *models.UseCase) error
	GetByID(ctx context.Context, connectionID, id uuid.UUID) (*models.UseCase, error)
	// ListByConnection returns use cases in stored order (created_at, id).
	ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.UseCase, error)
	Update(ctx context.Context, uc *models.UseCase) error
	Delete(ctx context.Context, connectionID, id uuid.UUID) error
}

type useCaseRepository struct{}

// NewUseCaseRepository creates a new use case repository.
func NewUseCaseRepository() UseCaseRepository {
	return &useCaseRepository{}
}

const useCaseColumns = `id, connection_id, title, description, natural_language_example, example_query, created_at, updated_at`

func (r *useCaseRepository) Create(ctx context.Context, uc *models.UseCase) error {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	uc.CreatedAt = now
	uc.UpdatedAt = now

	query := `
		INSERT INTO use_cases (connection_id, title, description, natural_language_example, example_query, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err = scope.Conn.QueryRow(ctx, query,
		uc.ConnectionID,
		uc.Title,
		uc.Description,
		uc.NaturalLanguageExample,
		uc.ExampleQuery,
		uc.CreatedAt,
		uc.UpdatedAt,
	).Scan(&uc.ID)
	if err != nil {
		return mapError("create use case", err)
	}
	return nil
}

func (r *useCaseRepository) GetByID(ctx context.Context, connectionID, id uuid.UUID) (*models.UseCase, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + useCaseColumns + ` FROM use_cases WHERE connection_id = $1 AND id = $2`
	uc, err := scanUseCase(scope.Conn.QueryRow(ctx, query, connectionID, id))
	if err != nil {
		return nil, mapError("get use case", err)
	}
	return uc, nil
}

func (r *useCaseRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.UseCase, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + useCaseColumns + ` FROM use_cases WHERE connection_id = $1 ORDER BY created_at, id`
	rows, err := scope.Conn.Query(ctx, query, connectionID)
	if err != nil {
		return nil, mapError("list use cases", err)
	}
	defer rows.Close()

	useCases := []models.UseCase{}
	for rows.Next() {
		uc, err := scanUseCase(rows)
		if err != nil {
			return nil, mapError("scan use case", err)
		}
		useCases = append(useCases, *uc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list use cases", err)
	}
	return useCases, nil
}

func (r *useCaseRepository) Update(ctx context.Context, uc *models.UseCase) error {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return err
	}

	uc.UpdatedAt = time.Now()

	query := `
		UPDATE use_cases
		SET title = $3, description = $4, natural_language_example = $5, example_query = $6, updated_at = $7
		WHERE connection_id = $1 AND id = $2`

	tag, err := scope.Conn.Exec(ctx, query,
		uc.ConnectionID,
		uc.ID,
		uc.Title,
		uc.Description,
		uc.NaturalLanguageExample,
		uc.ExampleQuery,
		uc.UpdatedAt,
	)
	if err != nil {
		return mapError("update use case", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *useCaseRepository) Delete(ctx context.Context, connectionID, id uuid.UUID) error {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return err
	}

	tag, err := scope.Conn.Exec(ctx, "DELETE FROM use_cases WHERE connection_id = $1 AND id = $2", connectionID, id)
	if err != nil {
		return mapError("delete use case", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanUseCase(row pgx.Row) (*models.UseCase, error) {
	var uc models.UseCase
	err := row.Scan(
		&uc.ID,
		&uc.ConnectionID,
		&uc.Title,
		&uc.Description,
		&uc.NaturalLanguageExample,
		&uc.ExampleQuery,
		&uc.CreatedAt,
		&uc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &uc, nil
}
