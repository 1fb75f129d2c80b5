package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/advisor-gateway/models"
	"github.com/clinicore/advisor-gateway/repositories"
	"github.com/clinicore/advisor-gateway/services"
)

// TokenResolver turns a presented token into a tenant. Implementations
// return nil, nil on a miss so the pipeline can fall through to the next
// strategy; an error means the lookup itself failed and the request must
// not be classified as unauthorized.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.Tenant, error)
}

// SessionValidator validates session tokens (implemented by token.SessionStore)
type SessionValidator interface {
	Validate(token string) (uuid.UUID, bool)
}

// CredentialLookup resolves a tenant from a bare static credential
// (implemented by credential.Service)
type CredentialLookup interface {
	LookupByCredential(ctx context.Context, candidate string) (*models.Tenant, error)
}

// SessionResolver resolves session tokens against the in-process store,
// then loads the tenant record. Tried first: the shorter-lived credential
// is privileged over the long-lived fallback.
type SessionResolver struct {
	sessions SessionValidator
	tenants  repositories.TenantRepository
}

// NewSessionResolver creates a SessionResolver
func NewSessionResolver(sessions SessionValidator, tenants repositories.TenantRepository) *SessionResolver {
	return &SessionResolver{sessions: sessions, tenants: tenants}
}

// Resolve implements TokenResolver
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*models.Tenant, error) {
	tenantID, ok := r.sessions.Validate(token)
	if !ok {
		return nil, nil
	}
	tenant, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if services.GetErrorType(err) == services.ErrorTypeNotFound {
			// A live session for a since-deleted tenant is a miss, not a fault
			return nil, nil
		}
		// Anything else is a lookup failure and must surface as one
		return nil, err
	}
	return tenant, nil
}

// CredentialResolver resolves static credentials via reverse lookup in the
// durable store. Tried last (legacy fallback path).
type CredentialResolver struct {
	credentials CredentialLookup
}

// NewCredentialResolver creates a CredentialResolver
func NewCredentialResolver(credentials CredentialLookup) *CredentialResolver {
	return &CredentialResolver{credentials: credentials}
}

// Resolve implements TokenResolver
func (r *CredentialResolver) Resolve(ctx context.Context, token string) (*models.Tenant, error) {
	return r.credentials.LookupByCredential(ctx, token)
}
