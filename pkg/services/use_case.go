package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/repositories"
	sqltext "github.com/ekaya-inc/t2sql-engine/pkg/sql"
)

// UseCaseService manages the worked examples pinned to a connection.
type UseCaseService interface {
	Create(ctx context.Context, ownerID, connectionID uuid.UUID, uc *models.UseCase) (*models.UseCase, error)
	Get(ctx context.Context, ownerID, connectionID, id uuid.UUID) (*models.UseCase, error)
	List(ctx context.Context, ownerID, connectionID uuid.UUID) ([]models.UseCase, error)
	Update(ctx context.Context, ownerID, connectionID, id uuid.UUID, update *models.UseCaseUpdate) (*models.UseCase, error)
	Delete(ctx context.Context, ownerID, connectionID, id uuid.UUID) error
}

type useCaseService struct {
	connections repositories.ConnectionRepository
	repo        repositories.UseCaseRepository
	logger      *zap.Logger
}

// NewUseCaseService creates a new use case service.
func NewUseCaseService(connections repositories.ConnectionRepository, repo repositories.UseCaseRepository, logger *zap.Logger) UseCaseService {
	return &useCaseService{
		connections: connections,
		repo:        repo,
		logger:      logger.Named("use-cases"),
	}
}

func (s *useCaseService) Create(ctx context.Context, ownerID, connectionID uuid.UUID, uc *models.UseCase) (*models.UseCase, error) {
	if err := s.requireConnection(ctx, ownerID, connectionID); err != nil {
		return nil, err
	}

	uc.ConnectionID = connectionID
	if err := validateUseCase(uc); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, uc); err != nil {
		return nil, err
	}

	s.logger.Info("Created use case",
		zap.String("use_case_id", uc.ID.String()),
		zap.String("connection_id", connectionID.String()),
	)
	return uc, nil
}

func (s *useCaseService) Get(ctx context.Context, ownerID, connectionID, id uuid.UUID) (*models.UseCase, error) {
	if err := s.requireConnection(ctx, ownerID, connectionID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, connectionID, id)
}

func (s *useCaseService) List(ctx context.Context, ownerID, connectionID uuid.UUID) ([]models.UseCase, error) {
	if err := s.requireConnection(ctx, ownerID, connectionID); err != nil {
		return nil, err
	}
	return s.repo.ListByConnection(ctx, connectionID)
}

func (s *useCaseService) Update(ctx context.Context, ownerID, connectionID, id uuid.UUID, update *models.UseCaseUpdate) (*models.UseCase, error) {
	uc, err := s.Get(ctx, ownerID, connectionID, id)
	if err != nil {
		return nil, err
	}

	update.Apply(uc)
	if err := validateUseCase(uc); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, uc); err != nil {
		return nil, err
	}
	return uc, nil
}

func (s *useCaseService) Delete(ctx context.Context, ownerID, connectionID, id uuid.UUID) error {
	if err := s.requireConnection(ctx, ownerID, connectionID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, connectionID, id)
}

func (s *useCaseService) requireConnection(ctx context.Context, ownerID, connectionID uuid.UUID) error {
	_, _, err := s.connections.GetByID(ctx, ownerID, connectionID)
	return err
}

func validateUseCase(uc *models.UseCase) error {
	uc.Title = strings.TrimSpace(uc.Title)
	uc.NaturalLanguageExample = strings.TrimSpace(uc.NaturalLanguageExample)

	if uc.Title == "" {
		return apperrors.Validation("title is required")
	}
	if uc.NaturalLanguageExample == "" {
		return apperrors.Validation("natural_language_example is required")
	}

	query, err := sqltext.NormalizeStatement(uc.ExampleQuery)
	switch {
	case errors.Is(err, sqltext.ErrEmptyStatement):
		return apperrors.Validation("example_query is required")
	case err != nil:
		return apperrors.Validation("example_query: %v", err)
	}
	uc.ExampleQuery = query
	return nil
}
