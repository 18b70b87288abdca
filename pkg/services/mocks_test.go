package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/crypto"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// Test encryption key (32 bytes, base64 encoded), same as crypto tests.
const testCredentialsKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

const fakeKind = "fake"

func init() {
	warehouse.Register(warehouse.AdapterRegistration{
		Info: warehouse.AdapterInfo{Type: fakeKind, DisplayName: "Fake", Description: "test catalog"},
		Factory: func(ctx context.Context, cfg warehouse.ConnectionConfig) (warehouse.CatalogClient, error) {
			return newFakeCatalog(), nil
		},
	})
}

func newTestSealer() *crypto.CredentialSealer {
	sealer, err := crypto.NewCredentialSealer(testCredentialsKey)
	if err != nil {
		panic(err)
	}
	return sealer
}

// mockConnectionRepository keeps connections in memory, keyed by id.
type mockConnectionRepository struct {
	mu     sync.Mutex
	conns  map[uuid.UUID]models.Connection
	sealed map[uuid.UUID]string

	createErr error
	getErr    error
	updateErr error

	capturedSealed string
	getCalls       int
}

func newMockConnectionRepository() *mockConnectionRepository {
	return &mockConnectionRepository{
		conns:  make(map[uuid.UUID]models.Connection),
		sealed: make(map[uuid.UUID]string),
	}
}

// seed stores conn as-is, sealing its credentials with sealer when given.
func (m *mockConnectionRepository) seed(conn *models.Connection, sealer *crypto.CredentialSealer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	sealed := ""
	if sealer != nil {
		sealed, _ = sealer.SealJSON(conn.Credentials)
	}
	stored := *conn
	stored.Credentials = nil
	m.conns[conn.ID] = stored
	m.sealed[conn.ID] = sealed
}

func (m *mockConnectionRepository) Create(ctx context.Context, conn *models.Connection, sealed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturedSealed = sealed
	if m.createErr != nil {
		return m.createErr
	}
	conn.ID = uuid.New()
	stored := *conn
	stored.Credentials = nil
	m.conns[conn.ID] = stored
	m.sealed[conn.ID] = sealed
	return nil
}

func (m *mockConnectionRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Connection, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, "", m.getErr
	}
	conn, ok := m.conns[id]
	if !ok || conn.OwnerID != ownerID {
		return nil, "", apperrors.ErrNotFound
	}
	return &conn, m.sealed[id], nil
}

func (m *mockConnectionRepository) List(ctx context.Context, ownerID uuid.UUID) ([]*models.Connection, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var conns []*models.Connection
	var sealed []string
	for id, conn := range m.conns {
		if conn.OwnerID != ownerID {
			continue
		}
		c := conn
		conns = append(conns, &c)
		sealed = append(sealed, m.sealed[id])
	}
	return conns, sealed, nil
}

func (m *mockConnectionRepository) Update(ctx context.Context, conn *models.Connection, sealed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturedSealed = sealed
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.conns[conn.ID]; !ok {
		return apperrors.ErrNotFound
	}
	stored := *conn
	stored.Credentials = nil
	m.conns[conn.ID] = stored
	m.sealed[conn.ID] = sealed
	return nil
}

func (m *mockConnectionRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[id]
	if !ok || conn.OwnerID != ownerID {
		return apperrors.ErrNotFound
	}
	delete(m.conns, id)
	delete(m.sealed, id)
	return nil
}

// mockSnapshotRepository holds at most one snapshot per connection.
type mockSnapshotRepository struct {
	mu         sync.Mutex
	snapshots  map[uuid.UUID]*models.SchemaSnapshot
	replaceErr error
	getErr     error

	replaceCalls       int
	replaceHadDeadline bool
}

func newMockSnapshotRepository() *mockSnapshotRepository {
	return &mockSnapshotRepository{snapshots: make(map[uuid.UUID]*models.SchemaSnapshot)}
}

func (m *mockSnapshotRepository) Get(ctx context.Context, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.snapshots[connectionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (m *mockSnapshotRepository) Replace(ctx context.Context, s *models.SchemaSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	_, m.replaceHadDeadline = ctx.Deadline()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	s.ID = uuid.New()
	m.snapshots[s.ConnectionID] = s
	return nil
}

// mockUseCaseRepository keeps use cases in insertion order.
type mockUseCaseRepository struct {
	useCases []models.UseCase
	listErr  error

	listCalls int
	getCalls  int
}

func (m *mockUseCaseRepository) Create(ctx context.Context, uc *models.UseCase) error {
	uc.ID = uuid.New()
	m.useCases = append(m.useCases, *uc)
	return nil
}

func (m *mockUseCaseRepository) GetByID(ctx context.Context, connectionID, id uuid.UUID) (*models.UseCase, error) {
	m.getCalls++
	for _, uc := range m.useCases {
		if uc.ID == id && uc.ConnectionID == connectionID {
			found := uc
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUseCaseRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.UseCase, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []models.UseCase{}
	for _, uc := range m.useCases {
		if uc.ConnectionID == connectionID {
			out = append(out, uc)
		}
	}
	return out, nil
}

func (m *mockUseCaseRepository) Update(ctx context.Context, uc *models.UseCase) error {
	for i := range m.useCases {
		if m.useCases[i].ID == uc.ID {
			m.useCases[i] = *uc
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockUseCaseRepository) Delete(ctx context.Context, connectionID, id uuid.UUID) error {
	for i, uc := range m.useCases {
		if uc.ID == id && uc.ConnectionID == connectionID {
			m.useCases = append(m.useCases[:i], m.useCases[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockUserRepository matches emails exactly; case folding is the database's job.
type mockUserRepository struct {
	users     map[string]*models.User
	createErr error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*models.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[user.Email]; ok {
		return apperrors.ErrConflict
	}
	user.ID = uuid.New()
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

// fakeCatalog is a scripted warehouse. Datasets and tables are served in
// pages of pageSize; failures are keyed by dataset or "dataset.table".
type fakeCatalog struct {
	mu sync.Mutex

	datasets      []string
	tables        map[string][]string
	fields        map[string][]warehouse.Field
	relationships []warehouse.Relationship
	pageSize      int

	listDatasetsErr  error
	listTablesErr    map[string]error
	schemaErr        map[string]error
	relationshipsErr error
	withoutFKs       bool

	// block, when set, is waited on before listing datasets.
	block chan struct{}

	closed bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tables:        make(map[string][]string),
		fields:        make(map[string][]warehouse.Field),
		listTablesErr: make(map[string]error),
		schemaErr:     make(map[string]error),
		pageSize:      2,
	}
}

func (f *fakeCatalog) addTable(dataset, table string, fields ...warehouse.Field) {
	found := false
	for _, ds := range f.datasets {
		if ds == dataset {
			found = true
		}
	}
	if !found {
		f.datasets = append(f.datasets, dataset)
	}
	f.tables[dataset] = append(f.tables[dataset], table)
	f.fields[dataset+"."+table] = fields
}

func (f *fakeCatalog) page(names []string, token string) warehouse.Page {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	start := 0
	if token != "" {
		start = sort.SearchStrings(sorted, token) + 1
	}
	return warehouse.PageOf(sorted[min(start, len(sorted)):], f.pageSize)
}

func (f *fakeCatalog) ListDatasets(ctx context.Context, token string) (warehouse.Page, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return warehouse.Page{}, ctx.Err()
		}
	}
	if f.listDatasetsErr != nil {
		return warehouse.Page{}, f.listDatasetsErr
	}
	return f.page(f.datasets, token), nil
}

func (f *fakeCatalog) ListTables(ctx context.Context, dataset, token string) (warehouse.Page, error) {
	if err := f.listTablesErr[dataset]; err != nil {
		return warehouse.Page{}, err
	}
	return f.page(f.tables[dataset], token), nil
}

func (f *fakeCatalog) GetTableSchema(ctx context.Context, dataset, table string) ([]warehouse.Field, error) {
	if err := f.schemaErr[dataset+"."+table]; err != nil {
		return nil, err
	}
	fields, ok := f.fields[dataset+"."+table]
	if !ok {
		return nil, errors.New("table not found")
	}
	return fields, nil
}

func (f *fakeCatalog) ListRelationships(ctx context.Context) ([]warehouse.Relationship, error) {
	if f.relationshipsErr != nil {
		return nil, f.relationshipsErr
	}
	return f.relationships, nil
}

func (f *fakeCatalog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeCatalog) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeOpener hands out the same catalog for every open.
type fakeOpener struct {
	catalog *fakeCatalog
	openErr error
	opens   int
	lastCfg warehouse.ConnectionConfig
}

func (o *fakeOpener) Open(ctx context.Context, cfg warehouse.ConnectionConfig) (warehouse.CatalogClient, error) {
	o.opens++
	o.lastCfg = cfg
	if o.openErr != nil {
		return nil, o.openErr
	}
	if o.catalog.withoutFKs {
		return noFKCatalog{o.catalog}, nil
	}
	return o.catalog, nil
}

// noFKCatalog hides ListRelationships.
type noFKCatalog struct {
	inner *fakeCatalog
}

func (c noFKCatalog) ListDatasets(ctx context.Context, token string) (warehouse.Page, error) {
	return c.inner.ListDatasets(ctx, token)
}

func (c noFKCatalog) ListTables(ctx context.Context, dataset, token string) (warehouse.Page, error) {
	return c.inner.ListTables(ctx, dataset, token)
}

func (c noFKCatalog) GetTableSchema(ctx context.Context, dataset, table string) ([]warehouse.Field, error) {
	return c.inner.GetTableSchema(ctx, dataset, table)
}

func (c noFKCatalog) Close() error { return c.inner.Close() }
