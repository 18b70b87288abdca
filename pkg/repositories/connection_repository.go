package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// ConnectionRepository defines the interface for connection data access.
// Credentials are stored sealed; sealing and opening is the service's job.
// Every query also filters on owner_id, on top of row-level security.
type ConnectionRepository interface {
	// Create inserts a connection and fills in its id and timestamps.
	Create(ctx context.Context, conn *models.Connection, sealedCredentials string) error

	// GetByID returns the connection and its sealed credentials ("" when none).
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Connection, string, error)

	// List returns the owner's connections, oldest first, with sealed credentials.
	List(ctx context.Context, ownerID uuid.UUID) ([]*models.Connection, []string, error)

	// Update writes every mutable field of conn.
	Update(ctx context.Context, conn *models.Connection, sealedCredentials string) error

	// Delete removes a connection. Snapshot and use cases cascade.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type connectionRepository struct{}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository() ConnectionRepository {
	return &connectionRepository{}
}

const connectionColumns = `id, owner_id, name, connection_type, host, port, database_name,
	username, project_id, dataset, COALESCE(credentials, ''), created_at, updated_at`

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection, sealedCredentials string) error {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	query := `
		INSERT INTO database_connections
			(owner_id, name, connection_type, host, port, database_name, username, project_id, dataset, credentials, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
		RETURNING id`

	err = scope.Conn.QueryRow(ctx, query,
		conn.OwnerID,
		conn.Name,
		conn.Kind,
		conn.Host,
		conn.Port,
		conn.DatabaseName,
		conn.Username,
		conn.ProjectID,
		conn.Dataset,
		sealedCredentials,
		conn.CreatedAt,
		conn.UpdatedAt,
	).Scan(&conn.ID)
	if err != nil {
		return mapError("create connection", err)
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Connection, string, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, "", err
	}

	query := `SELECT ` + connectionColumns + `
		FROM database_connections
		WHERE owner_id = $1 AND id = $2`

	conn, sealed, err := scanConnection(scope.Conn.QueryRow(ctx, query, ownerID, id))
	if err != nil {
		return nil, "", mapError("get connection", err)
	}
	return conn, sealed, nil
}

func (r *connectionRepository) List(ctx context.Context, ownerID uuid.UUID) ([]*models.Connection, []string, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, nil, err
	}

	query := `SELECT ` + connectionColumns + `
		FROM database_connections
		WHERE owner_id = $1
		ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, ownerID)
	if err != nil {
		return nil, nil, mapError("list connections", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	var sealed []string
	for rows.Next() {
		conn, s, err := scanConnection(rows)
		if err != nil {
			return nil, nil, mapError("scan connection", err)
		}
		conns = append(conns, conn)
		sealed = append(sealed, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mapError("list connections", err)
	}
	return conns, sealed, nil
}

func (r *connectionRepository) Update(ctx context.Context, conn *models.Connection, sealedCredentials string) error {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return err
	}

	conn.UpdatedAt = time.Now()

	query := `
		UPDATE database_connections
		SET name = $3, connection_type = $4, host = $5, port = $6, database_name = $7,
		    username = $8, project_id = $9, dataset = $10, credentials = NULLIF($11, ''), updated_at = $12
		WHERE owner_id = $1 AND id = $2`

	tag, err := scope.Conn.Exec(ctx, query,
		conn.OwnerID,
		conn.ID,
		conn.Name,
		conn.Kind,
		conn.Host,
		conn.Port,
		conn.DatabaseName,
		conn.Username,
		conn.ProjectID,
		conn.Dataset,
		sealedCredentials,
		conn.UpdatedAt,
	)
	if err != nil {
		return mapError("update connection", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return err
	}

	tag, err := scope.Conn.Exec(ctx, "DELETE FROM database_connections WHERE owner_id = $1 AND id = $2", ownerID, id)
	if err != nil {
		return mapError("delete connection", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanConnection(row pgx.Row) (*models.Connection, string, error) {
	var c models.Connection
	var sealed string
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Name,
		&c.Kind,
		&c.Host,
		&c.Port,
		&c.DatabaseName,
		&c.Username,
		&c.ProjectID,
		&c.Dataset,
		&sealed,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, "", err
	}
	return &c, sealed, nil
}
