package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/crypto"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/repositories"
)

// ConnectionService defines the interface for warehouse connection operations.
// Every method is scoped to ownerID; another owner's connection is NotFound.
type ConnectionService interface {
	// Create validates and stores a connection with sealed credentials.
	Create(ctx context.Context, ownerID uuid.UUID, conn *models.Connection) (*models.Connection, error)

	// Get returns the connection with decrypted credentials.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Connection, error)

	// List returns the owner's connections with decrypted credentials.
	List(ctx context.Context, ownerID uuid.UUID) ([]*models.Connection, error)

	// Update applies a partial update. Last writer wins.
	Update(ctx context.Context, ownerID, id uuid.UUID, update *models.ConnectionUpdate) (*models.Connection, error)

	// Delete removes the connection together with its snapshot and use cases.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error

	// Test opens the catalog and fetches the first page of datasets.
	Test(ctx context.Context, ownerID, id uuid.UUID) error
}

type connectionService struct {
	repo   repositories.ConnectionRepository
	sealer *crypto.CredentialSealer
	opener warehouse.Opener
	logger *zap.Logger
}

// NewConnectionService creates a new connection service with dependencies.
func NewConnectionService(
	repo repositories.ConnectionRepository,
	sealer *crypto.CredentialSealer,
	opener warehouse.Opener,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:   repo,
		sealer: sealer,
		opener: opener,
		logger: logger.Named("connections"),
	}
}

func (s *connectionService) Create(ctx context.Context, ownerID uuid.UUID, conn *models.Connection) (*models.Connection, error) {
	conn.OwnerID = ownerID
	if err := validateConnection(conn); err != nil {
		return nil, err
	}

	sealed, err := s.sealer.SealJSON(conn.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credentials: %w", err)
	}

	if err := s.repo.Create(ctx, conn, sealed); err != nil {
		return nil, err
	}

	s.logger.Info("Created connection",
		zap.String("connection_id", conn.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("type", conn.Kind),
	)
	return conn, nil
}

func (s *connectionService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Connection, error) {
	conn, sealed, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	creds, err := s.sealer.OpenJSON(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials for connection %s: %w", id, err)
	}
	conn.Credentials = creds
	return conn, nil
}

func (s *connectionService) List(ctx context.Context, ownerID uuid.UUID) ([]*models.Connection, error) {
	conns, sealed, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	for i, conn := range conns {
		creds, err := s.sealer.OpenJSON(sealed[i])
		if err != nil {
			return nil, fmt.Errorf("failed to open credentials for connection %s: %w", conn.ID, err)
		}
		conn.Credentials = creds
	}
	return conns, nil
}

func (s *connectionService) Update(ctx context.Context, ownerID, id uuid.UUID, update *models.ConnectionUpdate) (*models.Connection, error) {
	conn, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	update.Apply(conn)
	if err := validateConnection(conn); err != nil {
		return nil, err
	}

	sealed, err := s.sealer.SealJSON(conn.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credentials: %w", err)
	}

	if err := s.repo.Update(ctx, conn, sealed); err != nil {
		return nil, err
	}

	s.logger.Info("Updated connection",
		zap.String("connection_id", id.String()),
		zap.Bool("credentials_changed", update.Credentials != nil),
	)
	return conn, nil
}

func (s *connectionService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.Info("Deleted connection", zap.String("connection_id", id.String()))
	return nil
}

func (s *connectionService) Test(ctx context.Context, ownerID, id uuid.UUID) error {
	conn, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	client, err := openCatalog(ctx, s.opener, conn, 1)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.ListDatasets(ctx, ""); err != nil {
		s.logger.Warn("Connection test failed",
			zap.String("connection_id", id.String()),
			logging.ErrorField(err),
		)
		return catalogFailure("list datasets", err)
	}
	return nil
}

// openCatalog opens a client for conn. Credential and validation errors pass
// through; any other open failure is reported as an authentication failure.
func openCatalog(ctx context.Context, opener warehouse.Opener, conn *models.Connection, pageSize int) (warehouse.CatalogClient, error) {
	client, err := opener.Open(ctx, warehouse.FromConnection(conn, pageSize))
	if err == nil {
		return client, nil
	}
	if errors.Is(err, apperrors.ErrCredential) || errors.Is(err, apperrors.ErrValidation) {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &apperrors.CatalogError{Op: "open", Cause: ctxErr}
	}
	return nil, &apperrors.CredentialError{Kind: conn.Kind, Reason: "authentication failed", Cause: err}
}

// catalogFailure keeps credential errors reported mid-walk and wraps the rest.
func catalogFailure(op string, err error) error {
	if errors.Is(err, apperrors.ErrCredential) {
		return err
	}
	return &apperrors.CatalogError{Op: op, Cause: err}
}

func validateConnection(conn *models.Connection) error {
	conn.Name = strings.TrimSpace(conn.Name)
	conn.Kind = strings.ToLower(strings.TrimSpace(conn.Kind))

	if conn.Name == "" {
		return apperrors.Validation("name is required")
	}
	if conn.Kind == "" {
		return apperrors.Validation("connection_type is required")
	}
	if !warehouse.IsRegistered(conn.Kind) {
		return apperrors.Validation("unsupported connection type: %q", conn.Kind)
	}
	if conn.Port != "" {
		p, err := strconv.Atoi(conn.Port)
		if err != nil || p <= 0 || p > 65535 {
			return apperrors.Validation("invalid port %q", conn.Port)
		}
	}
	return nil
}
