package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/database"
)

// PostgresImage is the stock image used for both the metadata store and the
// postgres warehouse fixtures.
const PostgresImage = "postgres:16-alpine"

const (
	testUser     = "t2sql"
	testPassword = "test_password"
	warehouseDB  = "warehouse"
	engineDBName = "t2sql_test"
	appUser      = "t2sql_app"
	appPassword  = "app_password"
)

// TestDB is a shared PostgreSQL container. Its default database plays the
// role of a customer warehouse in adapter tests.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      string
	User      string
	Password  string
	Database  string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns the shared container, starting it on first use.
// Skipped under -short since it requires Docker.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})
	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}
	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       warehouseDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		// The server logs readiness twice: once for the init run and once for real.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testUser, testPassword, host, port.Port(), warehouseDB)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port.Port(),
		User:      testUser,
		Password:  testPassword,
		Database:  warehouseDB,
	}, nil
}

// ConnStrFor returns a connection string for another database in the container.
func (db *TestDB) ConnStrFor(name string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		db.User, db.Password, db.Host, db.Port, name)
}

// EngineDB is the metadata store with migrations applied.
type EngineDB struct {
	DB      *database.DB
	ConnStr string
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB returns the shared metadata store, creating and migrating it on first use.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	testDB := GetTestDB(t)

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB(testDB)
	})
	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup engine database: %v", sharedEngineDBErr)
	}
	return sharedEngineDB
}

func setupEngineDB(testDB *TestDB) (*EngineDB, error) {
	ctx := context.Background()

	if _, err := testDB.Pool.Exec(ctx, "CREATE DATABASE "+engineDBName); err != nil {
		return nil, fmt.Errorf("failed to create engine database: %w", err)
	}
	connStr := testDB.ConnStrFor(engineDBName)

	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Superusers bypass row-level security, so the pool connects as a plain role.
	if _, err := testDB.Pool.Exec(ctx, fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD '%s'", appUser, appPassword)); err != nil {
		return nil, fmt.Errorf("failed to create app role: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, "GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO "+appUser); err != nil {
		return nil, fmt.Errorf("failed to grant app role: %w", err)
	}

	appConnStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		appUser, appPassword, testDB.Host, testDB.Port, engineDBName)
	db, err := database.NewConnection(ctx, &database.Config{URL: appConnStr, MaxConnections: 5})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine database: %w", err)
	}

	return &EngineDB{DB: db, ConnStr: appConnStr}, nil
}

// OwnerContext returns a context carrying a connection scoped to ownerID.
// The scope is released when the test finishes.
func (e *EngineDB) OwnerContext(t *testing.T, ownerID uuid.UUID) context.Context {
	t.Helper()
	scope, err := e.DB.WithOwner(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("Failed to acquire owner scope: %v", err)
	}
	t.Cleanup(scope.Close)
	return database.SetOwnerScope(context.Background(), scope)
}

// UnscopedContext returns a context carrying a connection with no owner set.
func (e *EngineDB) UnscopedContext(t *testing.T) context.Context {
	t.Helper()
	scope, err := e.DB.WithoutOwner(context.Background())
	if err != nil {
		t.Fatalf("Failed to acquire connection: %v", err)
	}
	t.Cleanup(scope.Close)
	return database.SetOwnerScope(context.Background(), scope)
}

// CreateUser inserts an active user and removes it (with everything it owns)
// when the test finishes.
func (e *EngineDB) CreateUser(t *testing.T, email string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	_, err := e.DB.Pool.Exec(ctx, `
		INSERT INTO users (id, email, full_name, hashed_password, is_active, is_superuser)
		VALUES ($1, $2, 'Test User', 'x', true, false)`, id, email)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = e.DB.Pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", id)
	})
	return id
}
