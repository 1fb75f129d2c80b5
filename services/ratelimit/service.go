// Package ratelimit enforces per-tenant request budgets over a trailing
// window using process-local state only. There is no cross-instance
// coordination; each gateway process meters its own traffic.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/config"
)

// observation is one timestamped unit increment in a tenant's window
type observation struct {
	at    time.Time
	count int
}

// Result reports a rate limit decision plus the metadata well-behaved
// clients need to back off deterministically.
type Result struct {
	Allowed      bool
	CurrentCount int
	Limit        int
	// RetryAfter is the interval until the window can admit again
	RetryAfter time.Duration
	// ResetAt is when the oldest counted observation leaves the window
	ResetAt time.Time
}

// Service is a sliding-window rate limiter keyed by tenant. Tenants are
// fully independent: exhausting one budget never affects another.
type Service struct {
	mu      sync.Mutex
	windows map[uuid.UUID][]observation
	limit   int
	window  time.Duration
	sweep   time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new rate limiter from configuration
func NewService(cfg config.RateLimitConfig, logger *zap.Logger) *Service {
	return &Service{
		windows: make(map[uuid.UUID][]observation),
		limit:   cfg.RequestsPerWindow,
		window:  cfg.Window,
		sweep:   cfg.CleanupInterval,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckAndRecord prunes the tenant's window, then either rejects (without
// recording, so a rejected call never counts against the budget) or records
// one unit and admits.
func (s *Service) CheckAndRecord(tenantID uuid.UUID) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)

	recent := prune(s.windows[tenantID], cutoff)

	current := 0
	for _, obs := range recent {
		current += obs.count
	}

	if current >= s.limit {
		s.windows[tenantID] = recent
		// The oldest surviving observation determines when capacity returns
		resetAt := recent[0].at.Add(s.window)
		return Result{
			Allowed:      false,
			CurrentCount: current,
			Limit:        s.limit,
			RetryAfter:   resetAt.Sub(now),
			ResetAt:      resetAt,
		}
	}

	recent = append(recent, observation{at: now, count: 1})
	s.windows[tenantID] = recent

	return Result{
		Allowed:      true,
		CurrentCount: current + 1,
		Limit:        s.limit,
		ResetAt:      recent[0].at.Add(s.window),
	}
}

// Tenants returns the number of tenants currently holding window state
func (s *Service) Tenants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Cleanup drops tenants whose windows are empty and returns how many were
// removed. Purely a memory bound: per-call pruning already keeps admission
// decisions correct.
func (s *Service) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	removed := 0
	for tenantID, window := range s.windows {
		recent := prune(window, cutoff)
		if len(recent) == 0 {
			delete(s.windows, tenantID)
			removed++
			continue
		}
		s.windows[tenantID] = recent
	}
	return removed
}

// StartCleanupWorker runs Cleanup on the configured interval until the
// context is cancelled.
func (s *Service) StartCleanupWorker(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	s.logger.Info("started rate limit cleanup worker",
		zap.Duration("interval", s.sweep))

	for {
		select {
		case <-ticker.C:
			if removed := s.Cleanup(); removed > 0 {
				s.logger.Debug("swept idle tenants from rate limiter",
					zap.Int("removed", removed))
			}
		case <-ctx.Done():
			s.logger.Info("stopping rate limit cleanup worker")
			return
		}
	}
}

// prune returns the observations at or after cutoff, preserving order
func prune(window []observation, cutoff time.Time) []observation {
	i := 0
	for i < len(window) && !window[i].at.After(cutoff) {
		i++
	}
	if i == 0 {
		return window
	}
	return append([]observation(nil), window[i:]...)
}
