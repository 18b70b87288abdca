package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/audit"
	"github.com/ekaya-inc/t2sql-engine/pkg/config"
	"github.com/ekaya-inc/t2sql-engine/pkg/llm"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
	"github.com/ekaya-inc/t2sql-engine/pkg/metrics"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/prompts"
	"github.com/ekaya-inc/t2sql-engine/pkg/repositories"
)

// maxRawOutputLogLength bounds how much rejected model output is logged.
const maxRawOutputLogLength = 500

// QueryGenerationService turns a question about a connection into SQL.
type QueryGenerationService interface {
	// Generate requires a stored snapshot; it never extracts one.
	Generate(ctx context.Context, ownerID, connectionID uuid.UUID, req models.GenerateQueryRequest) (*models.GeneratedQuery, error)
}

type queryGenerationService struct {
	connections ConnectionService
	snapshots   repositories.SnapshotRepository
	useCases    repositories.UseCaseRepository
	assembler   *prompts.SQLPromptAssembler
	invoker     llm.Invoker
	cfg         config.GenerationConfig
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewQueryGenerationService creates a new query generation service.
func NewQueryGenerationService(
	connections ConnectionService,
	snapshots repositories.SnapshotRepository,
	useCases repositories.UseCaseRepository,
	assembler *prompts.SQLPromptAssembler,
	invoker llm.Invoker,
	cfg config.GenerationConfig,
	logger *zap.Logger,
) QueryGenerationService {
	return &queryGenerationService{
		connections: connections,
		snapshots:   snapshots,
		useCases:    useCases,
		assembler:   assembler,
		invoker:     invoker,
		cfg:         cfg,
		auditor:     audit.NewSecurityAuditor(logger),
		logger:      logger.Named("generation"),
	}
}

func (s *queryGenerationService) Generate(ctx context.Context, ownerID, connectionID uuid.UUID, req models.GenerateQueryRequest) (result *models.GeneratedQuery, err error) {
	start := time.Now()
	requestID := uuid.New()
	ctx = llm.WithRequestID(ctx, requestID)

	logger := s.logger.With(
		zap.String("request_id", requestID.String()),
		zap.String("connection_id", connectionID.String()),
	)
	defer func() {
		metrics.ObserveGeneration(metrics.OutcomeFor(err), time.Since(start))
		if err != nil {
			logger.Warn("SQL generation failed",
				zap.String("outcome", metrics.OutcomeFor(err)),
				zap.Duration("elapsed", time.Since(start)),
				logging.ErrorField(err),
			)
		}
	}()

	question, err := ValidateQuestion(req.Question, s.cfg)
	if err != nil {
		var rejected *InjectionRejectedError
		if errors.As(err, &rejected) {
			s.auditor.LogInjectionAttempt(ctx, ownerID, connectionID,
				rejected.Finding.Field, rejected.Finding.Fingerprint, req.Question)
		}
		return nil, err
	}

	conn, err := s.connections.Get(ctx, ownerID, connectionID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.snapshots.Get(ctx, conn.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundf("no metadata extracted for connection %s", conn.ID)
		}
		return nil, err
	}

	useCases, err := s.loadUseCases(ctx, conn.ID, req.UseCaseID)
	if err != nil {
		return nil, err
	}

	prompt, err := s.assembler.AssembleDetailed(prompts.PromptInput{
		Question: question,
		Kind:     conn.Kind,
		Snapshot: snapshot,
		UseCases: useCases,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Assembled prompt",
		zap.Int("prompt_bytes", len(prompt.Text)),
		zap.Int("use_cases_included", prompt.UseCasesIncluded),
		zap.Int("use_cases_dropped", prompt.UseCasesDropped),
	)

	raw, err := s.invoker.Invoke(ctx, prompt.Text)
	if err != nil {
		return nil, err
	}

	result, err = llm.ParseSQLOutput(raw)
	if err != nil {
		logger.Debug("Rejected model output",
			zap.String("raw_output", logging.TruncateString(logging.Sanitize(raw), maxRawOutputLogLength)),
		)
		return nil, err
	}

	logger.Info("Generated SQL",
		zap.String("question", logging.TruncateString(logging.Sanitize(question), logging.MaxQuestionLogLength)),
		zap.Int("sql_length", len(result.SQLQuery)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// loadUseCases returns the one requested use case, or all of the connection's
// use cases in stored order when none is requested.
func (s *queryGenerationService) loadUseCases(ctx context.Context, connectionID uuid.UUID, useCaseID *uuid.UUID) ([]models.UseCase, error) {
	if useCaseID == nil {
		return s.useCases.ListByConnection(ctx, connectionID)
	}
	uc, err := s.useCases.GetByID(ctx, connectionID, *useCaseID)
	if err != nil {
		return nil, err
	}
	return []models.UseCase{*uc}, nil
}
