package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/database"
)

const pgUniqueViolation = "23505"

// errNoScope is returned when a repository is called without a scoped connection.
var errNoScope = errors.New("no owner scope in context")

func scopeFrom(ctx context.Context) (*database.OwnerScope, error) {
	scope, ok := database.GetOwnerScope(ctx)
	if !ok {
		return nil, errNoScope
	}
	return scope, nil
}

// mapError turns pgx sentinel errors into apperrors and wraps the rest with op.
func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperrors.ErrConflict
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
