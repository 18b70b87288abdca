package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/config"
	"github.com/ekaya-inc/t2sql-engine/pkg/crypto"
	"github.com/ekaya-inc/t2sql-engine/pkg/database"
	"github.com/ekaya-inc/t2sql-engine/pkg/handlers"
	"github.com/ekaya-inc/t2sql-engine/pkg/llm"
	"github.com/ekaya-inc/t2sql-engine/pkg/mcp"
	mcpauth "github.com/ekaya-inc/t2sql-engine/pkg/mcp/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/mcp/tools"
	"github.com/ekaya-inc/t2sql-engine/pkg/middleware"
	"github.com/ekaya-inc/t2sql-engine/pkg/prompts"
	"github.com/ekaya-inc/t2sql-engine/pkg/repositories"
	"github.com/ekaya-inc/t2sql-engine/pkg/retry"
	"github.com/ekaya-inc/t2sql-engine/pkg/services"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP and MCP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.RequireSecrets(); err != nil {
		logger.Error("Configuration incomplete", zap.Error(err))
		return err
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Int("adapters", len(warehouse.RegisteredAdapters())),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(stdlib.OpenDBFromPool(db.Pool), logger); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	handler, err := buildServer(ctx, cfg, db, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting t2sql-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// connectDB opens the metadata store, retrying while the database starts.
func connectDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	dbCfg := database.ConfigFrom(&cfg.Database)
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		db, err := database.NewConnection(ctx, dbCfg)
		if err != nil {
			logger.Warn("Database not ready", zap.Error(err))
		}
		return db, err
	})
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}
	return db, nil
}

// buildServer wires repositories, services and handlers into one handler.
func buildServer(ctx context.Context, cfg *config.Config, db *database.DB, logger *zap.Logger) (http.Handler, error) {
	sealer, err := crypto.NewCredentialSealer(cfg.ConnectionCredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("invalid CONNECTION_CREDENTIALS_KEY: %w", err)
	}

	// Auth
	issuer, err := auth.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.AccessTokenTTL())
	if err != nil {
		return nil, err
	}
	var external *auth.JWKSClient
	if len(cfg.Auth.JWKSEndpoints) > 0 {
		external, err = auth.NewJWKSClient(ctx, cfg.Auth.JWKSEndpoints)
		if err != nil {
			return nil, err
		}
	}
	sessions := auth.NewSessionStore(cfg.Auth.SecretKey, cfg.Auth.CookieName,
		auth.DeriveCookieSettings(cfg.BaseURL, cfg.Auth.CookieDomain), cfg.Auth.AccessTokenTTL())
	authService := auth.NewAuthService(issuer, external, sessions, logger.Named("auth"))
	authMiddleware := auth.NewMiddleware(authService, logger)

	// LLM
	llmClient, err := llm.NewClientFromConfig(&cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	invoker := llm.NewInvoker(llmClient, llm.InvokerOptionsFrom(&cfg.LLM), logger)

	// Repositories
	connectionRepo := repositories.NewConnectionRepository()
	snapshotRepo := repositories.NewSnapshotRepository()
	useCaseRepo := repositories.NewUseCaseRepository()
	userRepo := repositories.NewUserRepository()

	// Services
	opener := warehouse.NewOpener()
	connectionService := services.NewConnectionService(connectionRepo, sealer, opener, logger)
	extractionService := services.NewExtractionService(connectionService, snapshotRepo, opener,
		services.NewExtractionLock(cfg.Extraction.LockTTL()), cfg.Extraction, logger)
	useCaseService := services.NewUseCaseService(connectionRepo, useCaseRepo, logger)
	userService := services.NewUserService(userRepo, logger)
	generationService := services.NewQueryGenerationService(connectionService, snapshotRepo, useCaseRepo,
		prompts.NewSQLPromptAssembler(cfg.LLM.MaxPromptBytes), invoker, cfg.Generation, logger)

	// HTTP
	mux := http.NewServeMux()
	owner := handlers.OwnerMiddleware(database.WithOwnerContext(db, logger))
	unscoped := handlers.OwnerMiddleware(database.WithUnscopedContext(db, logger))
	prefix := cfg.APIPrefix

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(userService, issuer, sessions, logger).RegisterRoutes(mux, prefix, authMiddleware, unscoped)
	handlers.NewAdaptersHandler(logger).RegisterRoutes(mux, prefix, authMiddleware)
	handlers.NewConnectionsHandler(connectionService, logger).RegisterRoutes(mux, prefix, authMiddleware, owner)
	handlers.NewMetadataHandler(extractionService, logger).RegisterRoutes(mux, prefix, authMiddleware, owner)
	handlers.NewUseCasesHandler(useCaseService, logger).RegisterRoutes(mux, prefix, authMiddleware, owner)
	handlers.NewQueryHandler(generationService, logger).RegisterRoutes(mux, prefix, authMiddleware, owner)
	mux.Handle("GET /metrics", promhttp.Handler())

	if cfg.MCP.Enabled {
		audit := mcp.NewToolCallLogger(logger)
		mcpServer := mcp.NewServer(cfg.ProjectName, cfg.Version, logger, audit.Hooks())
		mcpServer.RegisterTools(&tools.ToolDeps{
			Scopes:      database.NewOwnerScopeProvider(db),
			Connections: connectionService,
			Extraction:  extractionService,
			Generator:   generationService,
			Logger:      logger.Named("mcp"),
		}, cfg.Version)

		mcpAuth := mcpauth.NewMiddleware(authService, logger)
		mux.Handle("/mcp", middleware.MCPRequestLogger(logger)(mcpAuth.RequireAuth(mcpServer.NewStreamableHTTPServer())))
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Mcp-Session-Id"},
		AllowCredentials: true,
	})

	return corsHandler.Handler(middleware.HTTPMetrics(middleware.RequestLogger(logger)(mux))), nil
}
