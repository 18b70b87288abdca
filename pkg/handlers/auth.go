package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/services"
)

// RegisterRequest is the POST /auth/register body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest is the JSON form of POST /auth/login. Username carries the
// email, matching the OAuth2 password form.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthHandler handles registration, login and the current user.
type AuthHandler struct {
	users    services.UserService
	issuer   *auth.TokenIssuer
	sessions *auth.SessionStore
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler. sessions may be nil, in which
// case login only returns the bearer token.
func NewAuthHandler(users services.UserService, issuer *auth.TokenIssuer, sessions *auth.SessionStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		issuer:   issuer,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware, unscoped OwnerMiddleware) {
	mux.HandleFunc("POST "+prefix+"/auth/register", unscoped(h.Register))
	mux.HandleFunc("POST "+prefix+"/auth/login", unscoped(h.Login))
	mux.HandleFunc("POST "+prefix+"/auth/logout", h.Logout)
	mux.HandleFunc("GET "+prefix+"/auth/me", authMiddleware.RequireAuth(unscoped(h.Me)))
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to register user")
		return
	}

	h.issueToken(w, r, user, http.StatusCreated)
}

// Login handles POST /api/v1/auth/login. It accepts the OAuth2 password form
// (username, password) or the same fields as JSON.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if !decodeJSON(w, r, h.logger, &req) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid form body")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}

	email := req.Username
	if email == "" {
		email = req.Email
	}

	user, err := h.users.Authenticate(r.Context(), email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "Login failed")
		return
	}

	h.issueToken(w, r, user, http.StatusOK)
}

// Logout handles POST /api/v1/auth/logout. Bearer tokens stay valid until
// they expire; only the session cookie is cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if err := h.sessions.Clear(w, r); err != nil {
			h.logger.Warn("Failed to clear session", zap.Error(err))
		}
	}
	writeData(w, h.logger, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load current user")
		return
	}
	writeData(w, h.logger, http.StatusOK, user)
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, expiresAt, err := h.issuer.Issue(user)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to issue token")
		return
	}

	if h.sessions != nil {
		if err := h.sessions.SetToken(w, r, token); err != nil {
			h.logger.Warn("Failed to set session cookie", zap.Error(err))
		}
	}

	writeData(w, h.logger, status, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}
