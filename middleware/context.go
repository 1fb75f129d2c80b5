package middleware

import (
	"context"

	"github.com/clinicore/advisor-gateway/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// TenantKey is the context key for the authenticated tenant
	TenantKey contextKey = "tenant"

	// ClientTokenKey is the context key for the raw token the request
	// presented (needed by logout to revoke the right session)
	ClientTokenKey contextKey = "client_token"
)

// GetTenantFromContext retrieves the authenticated tenant from context.
// Returns nil on routes that did not pass through RequireTenant.
func GetTenantFromContext(ctx context.Context) *models.Tenant {
	if val := ctx.Value(TenantKey); val != nil {
		if tenant, ok := val.(*models.Tenant); ok {
			return tenant
		}
	}
	return nil
}

// WithTenant attaches the authenticated tenant to the context
func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// GetClientTokenFromContext retrieves the presented token from context
func GetClientTokenFromContext(ctx context.Context) string {
	if val := ctx.Value(ClientTokenKey); val != nil {
		if token, ok := val.(string); ok {
			return token
		}
	}
	return ""
}

// WithClientToken attaches the presented token to the context
func WithClientToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ClientTokenKey, token)
}
