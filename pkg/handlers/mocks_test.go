package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// withOwner returns a request carrying claims for ownerID.
func withOwner(req *http.Request, ownerID uuid.UUID) *http.Request {
	claims := &auth.Claims{}
	claims.Subject = ownerID.String()
	return req.WithContext(auth.WithClaims(req.Context(), claims, "test-token"))
}

func newOwnedRequest(method, target string, body string, ownerID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return withOwner(req, ownerID)
}

type mockConnectionService struct {
	conns      map[uuid.UUID]*models.Connection
	created    *models.Connection
	lastUpdate *models.ConnectionUpdate
	createErr  error
	testErr    error
}

func newMockConnectionService() *mockConnectionService {
	return &mockConnectionService{conns: make(map[uuid.UUID]*models.Connection)}
}

func (m *mockConnectionService) seed(ownerID uuid.UUID) *models.Connection {
	c := &models.Connection{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        "warehouse",
		Kind:        "postgres",
		Host:        "db.internal",
		Port:        "5432",
		Credentials: map[string]any{"password": "hunter22"},
	}
	m.conns[c.ID] = c
	return c
}

func (m *mockConnectionService) Create(ctx context.Context, ownerID uuid.UUID, conn *models.Connection) (*models.Connection, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	conn.ID = uuid.New()
	conn.OwnerID = ownerID
	m.created = conn
	m.conns[conn.ID] = conn
	return conn, nil
}

func (m *mockConnectionService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Connection, error) {
	c, ok := m.conns[id]
	if !ok || c.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

func (m *mockConnectionService) List(ctx context.Context, ownerID uuid.UUID) ([]*models.Connection, error) {
	var out []*models.Connection
	for _, c := range m.conns {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockConnectionService) Update(ctx context.Context, ownerID, id uuid.UUID, update *models.ConnectionUpdate) (*models.Connection, error) {
	c, err := m.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	m.lastUpdate = update
	update.Apply(c)
	return c, nil
}

func (m *mockConnectionService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := m.Get(ctx, ownerID, id); err != nil {
		return err
	}
	delete(m.conns, id)
	return nil
}

func (m *mockConnectionService) Test(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := m.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return m.testErr
}

type mockExtractionService struct {
	result       *models.ExtractionResult
	snapshot     *models.SchemaSnapshot
	err          error
	extractCalls int
	lazyCalls    int
}

func (m *mockExtractionService) Extract(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.ExtractionResult, error) {
	m.extractCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockExtractionService) Get(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

func (m *mockExtractionService) GetOrExtract(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	m.lazyCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

type mockUseCaseService struct {
	items      []models.UseCase
	created    *models.UseCase
	lastUpdate *models.UseCaseUpdate
	err        error
}

func (m *mockUseCaseService) Create(ctx context.Context, ownerID, connectionID uuid.UUID, uc *models.UseCase) (*models.UseCase, error) {
	if m.err != nil {
		return nil, m.err
	}
	uc.ID = uuid.New()
	uc.ConnectionID = connectionID
	m.created = uc
	return uc, nil
}

func (m *mockUseCaseService) Get(ctx context.Context, ownerID, connectionID, id uuid.UUID) (*models.UseCase, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.items {
		if m.items[i].ID == id {
			return &m.items[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUseCaseService) List(ctx context.Context, ownerID, connectionID uuid.UUID) ([]models.UseCase, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

func (m *mockUseCaseService) Update(ctx context.Context, ownerID, connectionID, id uuid.UUID, update *models.UseCaseUpdate) (*models.UseCase, error) {
	uc, err := m.Get(ctx, ownerID, connectionID, id)
	if err != nil {
		return nil, err
	}
	m.lastUpdate = update
	update.Apply(uc)
	return uc, nil
}

func (m *mockUseCaseService) Delete(ctx context.Context, ownerID, connectionID, id uuid.UUID) error {
	_, err := m.Get(ctx, ownerID, connectionID, id)
	return err
}

type mockQueryGenerationService struct {
	result  *models.GeneratedQuery
	err     error
	lastReq models.GenerateQueryRequest
	lastID  uuid.UUID
}

func (m *mockQueryGenerationService) Generate(ctx context.Context, ownerID, connectionID uuid.UUID, req models.GenerateQueryRequest) (*models.GeneratedQuery, error) {
	m.lastReq = req
	m.lastID = connectionID
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockUserService struct {
	users       map[string]*models.User
	registerErr error
	authErr     error
}

func newMockUserService() *mockUserService {
	return &mockUserService{users: make(map[string]*models.User)}
}

func (m *mockUserService) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	u := &models.User{ID: uuid.New(), Email: email, FullName: fullName, IsActive: true}
	m.users[email] = u
	return u, nil
}

func (m *mockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	u, ok := m.users[email]
	if !ok || password != "correct-horse" {
		return nil, apperrors.ErrInvalidCredentials
	}
	return u, nil
}

func (m *mockUserService) CreateAdmin(ctx context.Context, email, password, fullName string) (*models.User, error) {
	u, err := m.Register(ctx, email, password, fullName)
	if err != nil {
		return nil, err
	}
	u.IsSuperuser = true
	return u, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}
