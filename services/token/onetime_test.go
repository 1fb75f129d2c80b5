package token

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/services"
)

// stubIssuer counts mints without a real session store behind it
type stubIssuer struct {
	calls int32
	err   error
}

func (s *stubIssuer) Issue(tenantID uuid.UUID) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return "", s.err
	}
	return "session-" + tenantID.String(), nil
}

func TestOneTimeStore_ExchangeSucceedsOnce(t *testing.T) {
	issuer := &stubIssuer{}
	store := NewOneTimeStore(5*time.Minute, issuer, zap.NewNop())
	tenantID := uuid.New()

	tok, err := store.Issue(tenantID)
	require.NoError(t, err)

	resolved, sessionToken, err := store.Exchange(tok)
	require.NoError(t, err)
	assert.Equal(t, tenantID, resolved)
	assert.NotEmpty(t, sessionToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&issuer.calls))
}

func TestOneTimeStore_ReplayIsRejectedAndPurged(t *testing.T) {
	store := NewOneTimeStore(5*time.Minute, &stubIssuer{}, zap.NewNop())
	tenantID := uuid.New()

	tok, err := store.Issue(tenantID)
	require.NoError(t, err)

	_, _, err = store.Exchange(tok)
	require.NoError(t, err)

	t.Run("second exchange is a replay", func(t *testing.T) {
		_, _, err := store.Exchange(tok)
		require.Error(t, err)
		assert.True(t, errors.Is(err, services.ErrReplayedToken))
		assert.Equal(t, 0, store.Len(), "replayed record should be purged")
	})

	t.Run("third exchange no longer distinguishes replay", func(t *testing.T) {
		// The record is gone, so a later attempt looks like any unknown token
		_, _, err := store.Exchange(tok)
		require.Error(t, err)
		assert.True(t, errors.Is(err, services.ErrInvalidCredential))
	})
}

func TestOneTimeStore_UnknownTokenIsInvalid(t *testing.T) {
	store := NewOneTimeStore(5*time.Minute, &stubIssuer{}, zap.NewNop())

	_, _, err := store.Exchange("never-issued")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInvalidCredential))
}

func TestOneTimeStore_ExpiredTokenIsInvalid(t *testing.T) {
	issuer := &stubIssuer{}
	store := NewOneTimeStore(5*time.Minute, issuer, zap.NewNop())

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	tok, err := store.Issue(uuid.New())
	require.NoError(t, err)

	now = now.Add(5*time.Minute + time.Second)

	_, _, err = store.Exchange(tok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInvalidCredential))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, int32(0), atomic.LoadInt32(&issuer.calls), "no session should be minted for an expired token")
}

func TestOneTimeStore_SessionMintFailure(t *testing.T) {
	issuer := &stubIssuer{err: errors.New("entropy exhausted")}
	store := NewOneTimeStore(5*time.Minute, issuer, zap.NewNop())

	tok, err := store.Issue(uuid.New())
	require.NoError(t, err)

	_, _, err = store.Exchange(tok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInternal))
}

func TestOneTimeStore_ConcurrentExchange(t *testing.T) {
	issuer := &stubIssuer{}
	store := NewOneTimeStore(5*time.Minute, issuer, zap.NewNop())

	tok, err := store.Issue(uuid.New())
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	var succeeded int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := store.Exchange(tok); err == nil {
				atomic.AddInt32(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&succeeded), "exactly one racing exchange may win")
	assert.Equal(t, int32(1), atomic.LoadInt32(&issuer.calls))
}

func TestOneTimeStore_EndToEndWithSessionStore(t *testing.T) {
	sessions := NewSessionStore(4*time.Hour, zap.NewNop())
	store := NewOneTimeStore(5*time.Minute, sessions, zap.NewNop())
	tenantID := uuid.New()

	tok, err := store.Issue(tenantID)
	require.NoError(t, err)

	resolved, sessionToken, err := store.Exchange(tok)
	require.NoError(t, err)
	require.Equal(t, tenantID, resolved)

	got, ok := sessions.Validate(sessionToken)
	require.True(t, ok)
	assert.Equal(t, tenantID, got)

	require.True(t, sessions.Revoke(sessionToken))
	_, ok = sessions.Validate(sessionToken)
	assert.False(t, ok)
}
