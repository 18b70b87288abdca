package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrUnsupportedIssuer    = errors.New("token issuer not accepted")
)

// AuthService authenticates HTTP requests.
type AuthService interface {
	// ValidateRequest extracts and validates the access token. It checks:
	//   1. Authorization header with "Bearer" scheme (API clients)
	//   2. The session cookie (browser clients)
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

type authService struct {
	issuer   *TokenIssuer
	external *JWKSClient // nil when no external issuers are configured
	sessions *SessionStore
	logger   *zap.Logger
}

// NewAuthService creates an AuthService. external and sessions may be nil.
func NewAuthService(issuer *TokenIssuer, external *JWKSClient, sessions *SessionStore, logger *zap.Logger) AuthService {
	return &authService{
		issuer:   issuer,
		external: external,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	tokenString, source, err := s.extractToken(r)
	if err != nil {
		s.logger.Debug("No token found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err))
		return nil, "", err
	}

	claims, err := s.validate(r, tokenString)
	if err != nil {
		s.logger.Debug("Token validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", source))
		return nil, "", err
	}
	if _, err := claims.UserID(); err != nil {
		return nil, "", err
	}
	return claims, tokenString, nil
}

func (s *authService) extractToken(r *http.Request) (string, string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", "", ErrInvalidAuthFormat
		}
		return strings.TrimSpace(token), "header", nil
	}
	if s.sessions != nil {
		if token, err := s.sessions.Token(r); err == nil {
			return token, "cookie", nil
		}
	}
	return "", "", ErrMissingAuthorization
}

// validate routes HS256 tokens to the local issuer and RS256 tokens to JWKS.
func (s *authService) validate(r *http.Request, tokenString string) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, err
	}
	if _, ok := parsed.Method.(*jwt.SigningMethodHMAC); ok {
		return s.issuer.Validate(tokenString)
	}
	if s.external.Empty() {
		return nil, ErrUnsupportedIssuer
	}
	return s.external.ValidateToken(r.Context(), tokenString)
}

var _ AuthService = (*authService)(nil)
