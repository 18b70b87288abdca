package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OwnerScope is a pooled connection with app.current_user_id set for the
// row-level security policies on connections, snapshots and use cases.
type OwnerScope struct {
	Conn    *pgxpool.Conn
	OwnerID uuid.UUID // uuid.Nil for an unscoped connection
}

// Close resets the owner setting and returns the connection to the pool.
// Must be called, or the owner leaks into the next borrower of the connection.
func (s *OwnerScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_user_id")
	s.Conn.Release()
}

// WithOwner acquires a connection scoped to ownerID.
func (db *DB) WithOwner(ctx context.Context, ownerID uuid.UUID) (*OwnerScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_user_id', $1, false)", ownerID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &OwnerScope{Conn: conn, OwnerID: ownerID}, nil
}

// WithoutOwner acquires a connection with no owner set. Used for user
// registration/login and the CLI, which run before an owner is known.
func (db *DB) WithoutOwner(ctx context.Context) (*OwnerScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &OwnerScope{Conn: conn}, nil
}

// OwnerScopeProvider opens owner-scoped contexts outside the HTTP middleware
// (the MCP tools use it).
type OwnerScopeProvider struct {
	db *DB
}

func NewOwnerScopeProvider(db *DB) *OwnerScopeProvider {
	return &OwnerScopeProvider{db: db}
}

// WithOwnerScope returns a context carrying a scope for ownerID. The cleanup
// function must be called when the scope is no longer needed.
func (p *OwnerScopeProvider) WithOwnerScope(ctx context.Context, ownerID uuid.UUID) (context.Context, func(), error) {
	scope, err := p.db.WithOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	return SetOwnerScope(ctx, scope), scope.Close, nil
}
