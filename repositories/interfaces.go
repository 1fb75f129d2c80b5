package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/advisor-gateway/models"
)

// TenantRepository provides read access to the durable tenant store.
// This subsystem never writes tenant records; provisioning and credential
// rotation happen elsewhere.
type TenantRepository interface {
	// GetByID retrieves a tenant by ID. Returns services.ErrTenantNotFound
	// (wrapped) when no row exists.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)

	// GetByCredential performs the reverse lookup used by the legacy
	// authentication path. Callers accept the operational requirement that
	// static credentials be globally unique; the backing table enforces this
	// with a unique index. Returns nil, nil on a miss.
	GetByCredential(ctx context.Context, credential string) (*models.Tenant, error)
}
