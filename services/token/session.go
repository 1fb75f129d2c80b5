package token

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessionRecord holds a live session token's binding and absolute expiry
type sessionRecord struct {
	tenantID  uuid.UUID
	expiresAt time.Time
}

// SessionStore issues, validates, and revokes medium-lived bearer tokens.
// Expiry is absolute from issuance: validating a token never extends its
// lifetime, so a leaked token cannot persist through continuous traffic.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionRecord
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionStore creates a new SessionStore with the given absolute TTL
func NewSessionStore(ttl time.Duration, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]sessionRecord),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue mints a new session token bound to the tenant
func (s *SessionStore) Issue(tenantID uuid.UUID) (string, error) {
	tok, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pruneExpiredLocked()
	s.sessions[tok] = sessionRecord{
		tenantID:  tenantID,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	s.logger.Info("session token issued",
		zap.String("tenant_id", tenantID.String()),
		zap.Duration("ttl", s.ttl))
	return tok, nil
}

// Validate returns the tenant bound to a live session token. Unknown or
// expired tokens return false; expired records are deleted on detection.
func (s *SessionStore) Validate(token string) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[token]
	if !ok {
		return uuid.Nil, false
	}
	if s.now().After(rec.expiresAt) {
		delete(s.sessions, token)
		return uuid.Nil, false
	}
	return rec.tenantID, true
}

// Revoke deletes a session token if present and reports whether it existed.
// Idempotent: revoking an unknown token is not an error.
func (s *SessionStore) Revoke(token string) bool {
	s.mu.Lock()
	rec, ok := s.sessions[token]
	if ok {
		delete(s.sessions, token)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info("session token revoked",
			zap.String("tenant_id", rec.tenantID.String()))
	}
	return ok
}

// Len returns the number of live (possibly expired, not yet pruned) sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// pruneExpiredLocked removes expired sessions. Caller must hold s.mu.
func (s *SessionStore) pruneExpiredLocked() {
	now := s.now()
	for tok, rec := range s.sessions {
		if now.After(rec.expiresAt) {
			delete(s.sessions, tok)
		}
	}
}
