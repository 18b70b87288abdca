package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/config"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

type extractionFixture struct {
	owner     uuid.UUID
	conn      *models.Connection
	conns     *mockConnectionRepository
	snapshots *mockSnapshotRepository
	catalog   *fakeCatalog
	opener    *fakeOpener
	lock      ExtractionLock
	svc       ExtractionService
}

func newExtractionFixture(t *testing.T, cfg config.ExtractionConfig) *extractionFixture {
	t.Helper()
	sealer := newTestSealer()

	f := &extractionFixture{
		owner:     uuid.New(),
		conns:     newMockConnectionRepository(),
		snapshots: newMockSnapshotRepository(),
		catalog:   newFakeCatalog(),
		lock:      NewExtractionLock(time.Minute),
	}
	f.opener = &fakeOpener{catalog: f.catalog}
	f.conn = &models.Connection{
		OwnerID:     f.owner,
		Name:        "warehouse",
		Kind:        "bigquery",
		ProjectID:   "acme",
		Credentials: map[string]any{"credentials": `{"type":"service_account"}`},
	}
	f.conns.seed(f.conn, sealer)

	connections := NewConnectionService(f.conns, sealer, f.opener, zap.NewNop())
	f.svc = NewExtractionService(connections, f.snapshots, f.opener, f.lock, cfg, zap.NewNop())
	return f
}

func defaultExtractionConfig() config.ExtractionConfig {
	return config.ExtractionConfig{Timeout: time.Minute, PageSize: 2}
}

func seedSalesCatalog(c *fakeCatalog) {
	c.addTable("sales", "orders",
		warehouse.Field{Name: "id", Type: "INT64", Mode: "REQUIRED"},
		warehouse.Field{Name: "customer_id", Type: "INT64", Mode: "NULLABLE"},
		warehouse.Field{Name: "amount", Type: "NUMERIC", Mode: "NULLABLE", Description: "order total"},
	)
	c.addTable("sales", "customers",
		warehouse.Field{Name: "id", Type: "INT64", Mode: "REQUIRED"},
	)
	c.addTable("sales", "refunds",
		warehouse.Field{Name: "order_id", Type: "INT64"},
	)
	c.addTable("marketing", "campaigns",
		warehouse.Field{Name: "name", Type: "STRING"},
	)
	c.addTable("ops", "tickets",
		warehouse.Field{Name: "opened_at", Type: "TIMESTAMP"},
	)
}

func TestExtract_WalksEveryPage(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	seedSalesCatalog(f.catalog)

	result, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Snapshot)

	s := result.Snapshot
	assert.False(t, result.Partial())
	assert.Equal(t, 0, result.SkipCount())
	assert.Equal(t, f.conn.ID, s.ConnectionID)
	assert.NotEmpty(t, s.Checksum)
	assert.False(t, s.ExtractedAt.IsZero())

	// Three datasets and three sales tables span more than one page of two.
	require.Len(t, s.Datasets, 3)
	assert.Equal(t, "marketing", s.Datasets[0].Name)
	assert.Equal(t, "ops", s.Datasets[1].Name)
	assert.Equal(t, "sales", s.Datasets[2].Name)
	assert.Equal(t, 5, s.TableCount())

	sales := s.Datasets[2]
	require.Len(t, sales.Tables, 3)
	assert.Equal(t, "customers", sales.Tables[0].Name)
	orders := sales.Tables[1]
	assert.Equal(t, "orders", orders.Name)
	require.Len(t, orders.Columns, 3)
	assert.Equal(t, "id", orders.Columns[0].Name)
	assert.Equal(t, "REQUIRED", orders.Columns[0].Mode)
	require.NotNil(t, orders.Columns[2].Description)
	assert.Equal(t, "order total", *orders.Columns[2].Description)

	assert.Equal(t, 1, f.snapshots.replaceCalls)
	assert.True(t, f.catalog.isClosed())
	assert.Equal(t, "acme", f.opener.lastCfg.ProjectID)
	assert.Equal(t, `{"type":"service_account"}`, f.opener.lastCfg.Credential("credentials"))
}

func TestExtract_IsIdempotent(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	seedSalesCatalog(f.catalog)

	first, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	require.NoError(t, err)
	firstDoc, err := first.Snapshot.Canonical()
	require.NoError(t, err)

	second, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	require.NoError(t, err)
	secondDoc, err := second.Snapshot.Canonical()
	require.NoError(t, err)

	assert.Equal(t, string(firstDoc), string(secondDoc))
	assert.Equal(t, first.Snapshot.Checksum, second.Snapshot.Checksum)
	assert.Equal(t, 2, f.snapshots.replaceCalls)
}

func TestExtract_SkipsTableWhenSchemaFails(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	seedSalesCatalog(f.catalog)
	f.catalog.schemaErr["sales.orders"] = errors.New("access denied for dsn postgres://app:hunter2@db/x")

	result, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	require.NoError(t, err)

	assert.True(t, result.Partial())
	assert.Equal(t, 1, result.Snapshot.SkippedTables)
	assert.Equal(t, 0, result.Snapshot.SkippedDatasets)
	assert.Equal(t, 4, result.Snapshot.TableCount())

	require.Len(t, result.Failures, 1)
	failure := result.Failures[0]
	assert.Equal(t, models.CatalogFailureTable, failure.Level)
	assert.Equal(t, "sales", failure.Dataset)
	assert.Equal(t, "orders", failure.Table)
	assert.NotContains(t, failure.Message, "hunter2")
}

func TestExtract_SkipsDatasetWhenTableListingFails(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	seedSalesCatalog(f.catalog)
	f.catalog.listTablesErr["marketing"] = errors.New("permission denied")

	result, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Snapshot.SkippedDatasets)
	require.Len(t, result.Snapshot.Datasets, 2)
	assert.Equal(t, "ops", result.Snapshot.Datasets[0].Name)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.CatalogFailureDataset, result.Failures[0].Level)
	assert.Equal(t, "marketing", result.Failures[0].Dataset)
}

func TestExtract_DatasetListingFailureKeepsPriorSnapshot(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	prior := &models.SchemaSnapshot{ConnectionID: f.conn.ID, Checksum: "prior"}
	f.snapshots.snapshots[f.conn.ID] = prior
	f.catalog.listDatasetsErr = errors.New("backend unavailable")

	_, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	require.Error(t, err)

	var catErr *apperrors.CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "list datasets", catErr.Op)
	assert.Equal(t, 0, f.snapshots.replaceCalls)
	assert.Same(t, prior, f.snapshots.snapshots[f.conn.ID])

	_, ok := f.lock.TryAcquire(f.conn.ID)
	assert.True(t, ok, "lock is released after a failed walk")
}

func TestExtract_CredentialErrors(t *testing.T) {
	tests := []struct {
		name       string
		openErr    error
		listErr    error
		wantReason string
	}{
		{
			name:       "missing credentials pass through",
			openErr:    apperrors.NewCredentialError("bigquery", "credentials is required"),
			wantReason: "credentials is required",
		},
		{
			name:       "other open failures are authentication failures",
			openErr:    errors.New("oauth2: invalid_grant"),
			wantReason: "authentication failed",
		},
		{
			name:       "credential error while listing",
			listErr:    &apperrors.CredentialError{Kind: "bigquery", Reason: "access denied"},
			wantReason: "access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExtractionFixture(t, defaultExtractionConfig())
			f.opener.openErr = tt.openErr
			f.catalog.listDatasetsErr = tt.listErr

			_, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
			var credErr *apperrors.CredentialError
			require.ErrorAs(t, err, &credErr)
			assert.Equal(t, tt.wantReason, credErr.Reason)
			assert.Equal(t, 0, f.snapshots.replaceCalls)
		})
	}
}

func TestExtract_ConflictWhileAnotherExtractionRuns(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	seedSalesCatalog(f.catalog)
	release, ok := f.lock.TryAcquire(f.conn.ID)
	require.True(t, ok)

	_, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, f.conn.ID, conflict.ConnectionID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 0, f.opener.opens)

	release()
	_, err = f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	assert.NoError(t, err)
}

func TestExtract_OtherOwnerGetsNotFound(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())

	_, err := f.svc.Extract(context.Background(), uuid.New(), f.conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, f.opener.opens)
}

func TestExtract_TimeoutAbortsWalk(t *testing.T) {
	f := newExtractionFixture(t, config.ExtractionConfig{Timeout: 20 * time.Millisecond, PageSize: 2})
	f.catalog.block = make(chan struct{})

	_, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrCatalog)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, f.snapshots.replaceCalls)
	assert.True(t, f.catalog.isClosed())
}

func TestExtract_Relationships(t *testing.T) {
	t.Run("recorded when the warehouse exposes them", func(t *testing.T) {
		f := newExtractionFixture(t, defaultExtractionConfig())
		seedSalesCatalog(f.catalog)
		f.catalog.relationships = []warehouse.Relationship{{
			FromDataset: "sales", FromTable: "orders", FromColumn: "customer_id",
			ToDataset: "sales", ToTable: "customers", ToColumn: "id",
		}}

		result, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
		require.NoError(t, err)
		require.Len(t, result.Snapshot.Relationships, 1)
		assert.Equal(t, "customers", result.Snapshot.Relationships[0].ToTable)
	})

	t.Run("failure is partial, not fatal", func(t *testing.T) {
		f := newExtractionFixture(t, defaultExtractionConfig())
		seedSalesCatalog(f.catalog)
		f.catalog.relationshipsErr = errors.New("no access to information_schema")

		result, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
		require.NoError(t, err)
		assert.True(t, result.Partial())
		assert.Equal(t, 0, result.SkipCount())
		require.Len(t, result.Failures, 1)
		assert.Equal(t, models.CatalogFailureRelationships, result.Failures[0].Level)
	})

	t.Run("skipped when the client has no lister", func(t *testing.T) {
		f := newExtractionFixture(t, defaultExtractionConfig())
		seedSalesCatalog(f.catalog)
		f.catalog.withoutFKs = true
		f.catalog.relationshipsErr = errors.New("never called")

		result, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
		require.NoError(t, err)
		assert.False(t, result.Partial())
		assert.Nil(t, result.Snapshot.Relationships)
	})
}

func TestGetOrExtract_ExtractsOnce(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	seedSalesCatalog(f.catalog)

	_, err := f.svc.Get(context.Background(), f.owner, f.conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	first, err := f.svc.GetOrExtract(context.Background(), f.owner, f.conn.ID)
	require.NoError(t, err)
	second, err := f.svc.GetOrExtract(context.Background(), f.owner, f.conn.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.opener.opens)
	assert.Equal(t, 1, f.snapshots.replaceCalls)
}

func TestGetOrExtract_PropagatesStoreErrors(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	f.snapshots.getErr = errors.New("connection reset")

	_, err := f.svc.GetOrExtract(context.Background(), f.owner, f.conn.ID)
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, 0, f.opener.opens)
}

func TestCollectPages_StuckTokenIsAnError(t *testing.T) {
	_, err := collectPages(context.Background(), func(token string) (warehouse.Page, error) {
		return warehouse.Page{Names: []string{"a"}, NextPageToken: "a"}, nil
	})
	assert.Error(t, err)
}

func TestExtract_StoreWriteIsBoundedByTimeout(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	seedSalesCatalog(f.catalog)

	_, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	require.NoError(t, err)
	assert.True(t, f.snapshots.replaceHadDeadline, "snapshot replace runs under the extraction timeout")
}

func TestExtract_StaleHolderDoesNotUnlockRunningExtraction(t *testing.T) {
	f := newExtractionFixture(t, defaultExtractionConfig())
	seedSalesCatalog(f.catalog)
	f.lock = NewExtractionLock(20 * time.Millisecond)
	f.svc = NewExtractionService(
		NewConnectionService(f.conns, newTestSealer(), f.opener, zap.NewNop()),
		f.snapshots, f.opener, f.lock, defaultExtractionConfig(), zap.NewNop())

	staleRelease, ok := f.lock.TryAcquire(f.conn.ID)
	require.True(t, ok)
	time.Sleep(40 * time.Millisecond)

	release, ok := f.lock.TryAcquire(f.conn.ID)
	require.True(t, ok)
	defer release()
	staleRelease()

	_, err := f.svc.Extract(context.Background(), f.owner, f.conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
