package token

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionStore_IssueAndValidate(t *testing.T) {
	store := NewSessionStore(4*time.Hour, zap.NewNop())
	tenantID := uuid.New()

	tok, err := store.Issue(tenantID)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	resolved, ok := store.Validate(tok)
	assert.True(t, ok)
	assert.Equal(t, tenantID, resolved)
}

func TestSessionStore_UnknownTokenIsRejected(t *testing.T) {
	store := NewSessionStore(4*time.Hour, zap.NewNop())

	resolved, ok := store.Validate("no-such-token")
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, resolved)
}

func TestSessionStore_TokensAreUnique(t *testing.T) {
	store := NewSessionStore(4*time.Hour, zap.NewNop())
	tenantID := uuid.New()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := store.Issue(tenantID)
		require.NoError(t, err)
		assert.False(t, seen[tok], "issued a duplicate token")
		seen[tok] = true
	}
}

func TestSessionStore_AbsoluteExpiry(t *testing.T) {
	store := NewSessionStore(4*time.Hour, zap.NewNop())
	tenantID := uuid.New()

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	tok, err := store.Issue(tenantID)
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		now = now.Add(4*time.Hour - time.Second)
		_, ok := store.Validate(tok)
		assert.True(t, ok)
	})

	t.Run("invalid after expiry and record deleted", func(t *testing.T) {
		now = now.Add(2 * time.Second)
		_, ok := store.Validate(tok)
		assert.False(t, ok)
		assert.Equal(t, 0, store.Len())
	})
}

func TestSessionStore_NoSlidingRenewal(t *testing.T) {
	store := NewSessionStore(4*time.Hour, zap.NewNop())
	tenantID := uuid.New()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	tok, err := store.Issue(tenantID)
	require.NoError(t, err)

	// Continuous use right up to the deadline must not extend the lifetime
	for i := 1; i <= 7; i++ {
		now = base.Add(time.Duration(i) * 30 * time.Minute)
		_, ok := store.Validate(tok)
		require.True(t, ok, "token should still be live at +%dm", i*30)
	}

	now = base.Add(4*time.Hour + time.Minute)
	_, ok := store.Validate(tok)
	assert.False(t, ok, "expiry is absolute from issuance, not from last use")
}

func TestSessionStore_Revoke(t *testing.T) {
	store := NewSessionStore(4*time.Hour, zap.NewNop())
	tenantID := uuid.New()

	tok, err := store.Issue(tenantID)
	require.NoError(t, err)

	assert.True(t, store.Revoke(tok))

	_, ok := store.Validate(tok)
	assert.False(t, ok)

	// Idempotent: second revoke reports the token was already gone
	assert.False(t, store.Revoke(tok))
}

func TestSessionStore_IssuePrunesExpired(t *testing.T) {
	store := NewSessionStore(time.Hour, zap.NewNop())

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_, err := store.Issue(uuid.New())
		require.NoError(t, err)
	}
	require.Equal(t, 5, store.Len())

	now = now.Add(2 * time.Hour)
	_, err := store.Issue(uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len(), "expired sessions should be pruned on issue")
}

func TestSessionStore_ConcurrentUse(t *testing.T) {
	store := NewSessionStore(4*time.Hour, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := store.Issue(uuid.New())
			if err != nil {
				t.Error(err)
				return
			}
			if _, ok := store.Validate(tok); !ok {
				t.Error("freshly issued token failed validation")
			}
			store.Revoke(tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, store.Len())
}
