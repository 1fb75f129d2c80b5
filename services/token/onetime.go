package token

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/services"
)

// SessionIssuer mints session tokens on successful exchange
type SessionIssuer interface {
	Issue(tenantID uuid.UUID) (string, error)
}

// oneTimeRecord tracks a single issued URL token, keyed by digest
type oneTimeRecord struct {
	tenantID  uuid.UUID
	expiresAt time.Time
	consumed  bool
}

// OneTimeStore issues short-lived URL tokens and exchanges each exactly once
// for a session token. Only the SHA-256 digest of a token is retained; the
// plaintext exists solely in the URL handed to the caller.
type OneTimeStore struct {
	mu       sync.Mutex
	tokens   map[string]oneTimeRecord
	ttl      time.Duration
	sessions SessionIssuer
	logger   *zap.Logger
	now      func() time.Time
}

// NewOneTimeStore creates a new OneTimeStore with the given exchange window
func NewOneTimeStore(ttl time.Duration, sessions SessionIssuer, logger *zap.Logger) *OneTimeStore {
	return &OneTimeStore{
		tokens:   make(map[string]oneTimeRecord),
		ttl:      ttl,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue generates a one-time URL token for the tenant and returns the plaintext
func (s *OneTimeStore) Issue(tenantID uuid.UUID) (string, error) {
	tok, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pruneExpiredLocked()
	s.tokens[hashToken(tok)] = oneTimeRecord{
		tenantID:  tenantID,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	s.logger.Info("one-time token issued",
		zap.String("tenant_id", tenantID.String()),
		zap.Duration("ttl", s.ttl))
	return tok, nil
}

// Exchange converts a one-time token into a session token. Exactly one
// exchange per token can ever succeed:
//   - unknown or expired tokens fail with ErrInvalidCredential
//   - a consumed token fails with ErrReplayedToken and the record is purged,
//     so the attempt leaves nothing behind to retry against
//   - a live token is marked consumed before the session is minted, making
//     the lookup+mutate step atomic under the store mutex
func (s *OneTimeStore) Exchange(token string) (uuid.UUID, string, error) {
	digest := hashToken(token)

	s.mu.Lock()
	s.pruneExpiredLocked()

	rec, ok := s.tokens[digest]
	if !ok {
		s.mu.Unlock()
		return uuid.Nil, "", services.ErrInvalidCredential
	}

	if rec.consumed {
		delete(s.tokens, digest)
		s.mu.Unlock()
		// Reuse of a consumed token is a theft signal, not a retry
		s.logger.Warn("one-time token replay attempt",
			zap.String("tenant_id", rec.tenantID.String()))
		return uuid.Nil, "", services.ErrReplayedToken
	}

	if s.now().After(rec.expiresAt) {
		delete(s.tokens, digest)
		s.mu.Unlock()
		return uuid.Nil, "", services.ErrInvalidCredential
	}

	rec.consumed = true
	s.tokens[digest] = rec
	s.mu.Unlock()

	sessionToken, err := s.sessions.Issue(rec.tenantID)
	if err != nil {
		return uuid.Nil, "", services.WrapInternal("failed to mint session token", err)
	}

	s.logger.Info("one-time token exchanged",
		zap.String("tenant_id", rec.tenantID.String()))
	return rec.tenantID, sessionToken, nil
}

// Len returns the number of retained (possibly consumed) token records
func (s *OneTimeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// pruneExpiredLocked removes expired records. Caller must hold s.mu.
func (s *OneTimeStore) pruneExpiredLocked() {
	now := s.now()
	for digest, rec := range s.tokens {
		if now.After(rec.expiresAt) {
			delete(s.tokens, digest)
		}
	}
}
