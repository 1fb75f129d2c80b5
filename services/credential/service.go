// Package credential verifies long-lived per-tenant static credentials
// against the durable tenant store.
package credential

import (
	"context"
	"crypto/subtle"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/models"
	"github.com/clinicore/advisor-gateway/repositories"
)

// Service compares candidate credentials in constant time so response
// latency leaks nothing about the stored secret.
type Service struct {
	tenants repositories.TenantRepository
	logger  *zap.Logger
}

// NewService creates a new credential verification service
func NewService(tenants repositories.TenantRepository, logger *zap.Logger) *Service {
	return &Service{
		tenants: tenants,
		logger:  logger,
	}
}

// Verify reports whether candidate matches the tenant's stored credential.
// Absent tenant or absent credential verify as false, never as an error the
// caller could distinguish from a mismatch.
func (s *Service) Verify(ctx context.Context, tenantID uuid.UUID, candidate string) bool {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		s.logger.Warn("credential verification against unknown tenant",
			zap.String("tenant_id", tenantID.String()))
		return false
	}
	if !tenant.HasStaticCredential() {
		s.logger.Warn("tenant has no static credential configured",
			zap.String("tenant_id", tenantID.String()))
		return false
	}

	ok := constantTimeEquals(tenant.StaticCredential.String, candidate)
	if !ok {
		s.logger.Warn("invalid static credential attempt",
			zap.String("tenant_id", tenantID.String()))
	}
	return ok
}

// LookupByCredential resolves a tenant from a bare credential value (legacy
// path where the caller presents no tenant id). Relies on the unique index
// on the credential column; returns nil on a miss.
func (s *Service) LookupByCredential(ctx context.Context, candidate string) (*models.Tenant, error) {
	if candidate == "" {
		return nil, nil
	}
	return s.tenants.GetByCredential(ctx, candidate)
}

// constantTimeEquals compares two strings without early exit. Lengths are
// folded into the comparison rather than short-circuiting on them.
func constantTimeEquals(stored, candidate string) bool {
	lengthMatch := subtle.ConstantTimeEq(int32(len(stored)), int32(len(candidate)))

	// Compare against a same-length buffer when lengths differ so the byte
	// comparison always runs over the candidate's full length.
	compareTo := stored
	if len(stored) != len(candidate) {
		compareTo = candidate
	}
	bytesMatch := subtle.ConstantTimeCompare([]byte(compareTo), []byte(candidate))

	return lengthMatch&bytesMatch == 1
}
