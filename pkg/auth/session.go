package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	sessionKeyToken       = "access_token"
	maxSessionCookieBytes = 8192
)

// ErrNoSession is returned when the request carries no usable session cookie.
var ErrNoSession = errors.New("no session")

// SessionStore keeps the access token in a signed cookie for browser clients.
type SessionStore struct {
	store *sessions.CookieStore
	name  string
}

// NewSessionStore creates a cookie store. The secret is SHA-256 hashed to
// derive the 32-byte signing key, so it must be stable across restarts.
func NewSessionStore(secret, cookieName string, settings CookieSettings, maxAge time.Duration) *SessionStore {
	key := sha256.Sum256([]byte(secret))
	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	for _, codec := range store.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxLength(maxSessionCookieBytes)
		}
	}
	return &SessionStore{store: store, name: cookieName}
}

// SetToken writes the token into the session cookie.
func (s *SessionStore) SetToken(w http.ResponseWriter, r *http.Request, token string) error {
	session, err := s.store.Get(r, s.name)
	if err != nil && session == nil {
		return err
	}
	session.Values[sessionKeyToken] = token
	return session.Save(r, w)
}

// Token returns the token stored in the request's session cookie.
func (s *SessionStore) Token(r *http.Request) (string, error) {
	if _, err := r.Cookie(s.name); err != nil {
		return "", ErrNoSession
	}
	session, err := s.store.Get(r, s.name)
	if err != nil {
		return "", ErrNoSession
	}
	token, ok := session.Values[sessionKeyToken].(string)
	if !ok || token == "" {
		return "", ErrNoSession
	}
	return token, nil
}

// Clear expires the session cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, s.name)
	if session == nil {
		return nil
	}
	delete(session.Values, sessionKeyToken)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
