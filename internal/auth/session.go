// internal/auth/session.go
package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Status is the human readable session indicator shown by the UI.
type Status string

const (
	StatusSignedOut       Status = "signed-out"
	StatusSignedIn        Status = "signed-in"
	StatusReauthenticated Status = "reauthenticated"
	StatusReauthFailed    Status = "reauth-failed"
)

// Credential is the bearer token together with the player it was issued to.
type Credential struct {
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
}

// Session is the process-scoped credential context. It is written on sign-in and by the
// session guard's re-authentication, cleared on sign-out, and read by every outbound call.
type Session struct {
	mu     sync.RWMutex
	cred   Credential
	status Status
	store  TokenStore
}

// NewSession builds a session backed by store. A previously persisted credential is restored
// when present; a nil store disables persistence.
func NewSession(store TokenStore) (*Session, error) {
	if store == nil {
		store = nopStore{}
	}
	s := &Session{store: store, status: StatusSignedOut}
	cred, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred.Token != "" {
		if cred.PlayerID == "" {
			if claims, err := ParseClaims(cred.Token); err == nil {
				cred.PlayerID = claims.Subject
			}
		}
		s.cred = cred
		s.status = StatusSignedIn
	}
	return s, nil
}

// Set stores a freshly issued credential and persists it.
func (s *Session) Set(cred Credential, status Status) error {
	s.mu.Lock()
	s.cred = cred
	s.status = status
	s.mu.Unlock()
	if err := s.store.Save(cred); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}

// Clear signs out and removes any persisted credential.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.cred = Credential{}
	s.status = StatusSignedOut
	s.mu.Unlock()
	return s.store.Clear()
}

// MarkStatus updates only the indicator (e.g. after a failed re-authentication).
func (s *Session) MarkStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Token
}

func (s *Session) PlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.PlayerID
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Claims is the subset of token claims the client cares about.
type Claims struct {
	Subject   string
	ExpiresAt time.Time // zero when the token never expires
}

// ParseClaims reads sub and exp from a token without verifying its signature. The client
// never holds the server's key; this is only used for display and for recovering the
// player id of a persisted token.
func ParseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("jwt parse error: %w", err)
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, fmt.Errorf("missing sub in jwt")
	}
	claims := Claims{Subject: sub}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}
