package remote

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// SessionProvider is the authentication boundary. The core calls
// CurrentUserID before every owner-scoped write and never caches the
// result across calls — session validity is re-checked each time.
type SessionProvider interface {
	// CurrentUserID returns the signed-in user's identifier, or "" and
	// false when there is no valid session.
	CurrentUserID() (string, bool)

	// AccessToken returns the bearer token for remote requests, or ""
	// when signed out.
	AccessToken() string
}

// sessionClaims is the JWT claim shape issued by the auth backend.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// UserIDFromToken extracts the user identifier from an access token's
// claims without signature verification (that is the backend's job on
// every request). Returns an error for malformed or expired tokens.
func UserIDFromToken(token string) (string, error) {
	claims := &sessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", serr.Wrap(err, "failed to parse access token")
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return "", serr.New("access token is expired")
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", serr.New("access token carries no user identifier")
}

// TokenSession is a SessionProvider backed by a JWT access token handed to
// the core by the surrounding app's sign-in flow. The token's signature is
// the backend's concern; the client validates structure and expiry and
// extracts the user identifier from the claims.
//
// Auth-state transitions (signed-out → signed-in and back) are announced
// to registered listeners; the sync manager uses this as a trigger point.
type TokenSession struct {
	mu        sync.RWMutex
	token     string
	userID    string
	expiresAt time.Time
	listeners []func(signedIn bool)
}

// NewTokenSession returns an empty (signed-out) session.
func NewTokenSession() *TokenSession {
	return &TokenSession{}
}

// OnAuthChange registers a listener invoked whenever the auth state
// transitions. Register before SetToken so the sign-in trigger isn't missed.
func (ts *TokenSession) OnAuthChange(fn func(signedIn bool)) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.listeners = append(ts.listeners, fn)
}

// SetToken installs a new access token, parsing the user identifier and
// expiry from its claims. An unparseable token is rejected.
func (ts *TokenSession) SetToken(token string) error {
	claims := &sessionClaims{}
	parser := jwt.NewParser()

	// Signature verification happens server-side on every request; here we
	// only need the claims, so an unverified parse is sufficient and keeps
	// the signing key out of the client entirely.
	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return serr.Wrap(err, "failed to parse access token")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return serr.New("access token carries no user identifier")
	}

	ts.mu.Lock()
	wasSignedIn := ts.signedInLocked()
	ts.token = token
	ts.userID = userID
	ts.expiresAt = time.Time{}
	if claims.ExpiresAt != nil {
		ts.expiresAt = claims.ExpiresAt.Time
	}
	nowSignedIn := ts.signedInLocked()
	listeners := append([]func(bool){}, ts.listeners...)
	ts.mu.Unlock()

	if wasSignedIn != nowSignedIn {
		logger.Info("Auth state changed", "signed_in", nowSignedIn, "user_id", userID)
		for _, fn := range listeners {
			fn(nowSignedIn)
		}
	}
	return nil
}

// Clear signs the session out, e.g. on explicit sign-out or 401 from the
// backend.
func (ts *TokenSession) Clear() {
	ts.mu.Lock()
	wasSignedIn := ts.signedInLocked()
	ts.token = ""
	ts.userID = ""
	ts.expiresAt = time.Time{}
	listeners := append([]func(bool){}, ts.listeners...)
	ts.mu.Unlock()

	if wasSignedIn {
		logger.Info("Auth state changed", "signed_in", false)
		for _, fn := range listeners {
			fn(false)
		}
	}
}

// CurrentUserID implements SessionProvider.
func (ts *TokenSession) CurrentUserID() (string, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if !ts.signedInLocked() {
		return "", false
	}
	return ts.userID, true
}

// AccessToken implements SessionProvider.
func (ts *TokenSession) AccessToken() string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if !ts.signedInLocked() {
		return ""
	}
	return ts.token
}

func (ts *TokenSession) signedInLocked() bool {
	if ts.token == "" || ts.userID == "" {
		return false
	}
	if !ts.expiresAt.IsZero() && time.Now().After(ts.expiresAt) {
		return false
	}
	return true
}

// StaticSession is a fixed-identity SessionProvider for tests and tooling.
type StaticSession struct {
	UserID string
	Token  string
}

func (s *StaticSession) CurrentUserID() (string, bool) { return s.UserID, s.UserID != "" }
func (s *StaticSession) AccessToken() string           { return s.Token }
