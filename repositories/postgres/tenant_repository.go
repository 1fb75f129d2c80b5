package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/models"
	"github.com/clinicore/advisor-gateway/repositories"
	"github.com/clinicore/advisor-gateway/services"
)

// TenantRepository implements the repositories.TenantRepository interface.
// The tenants table carries a unique index on static_credential, which is
// what makes the reverse lookup unambiguous.
type TenantRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sql.DB, logger *zap.Logger) repositories.TenantRepository {
	return &TenantRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `
		SELECT id, display_name, static_credential, created_at
		FROM tenants
		WHERE id = $1
	`

	tenant := &models.Tenant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.DisplayName,
		&tenant.StaticCredential,
		&tenant.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			// Fresh error per call: WithDetail mutates, and the sentinels are shared
			return nil, services.NewDomainError(services.ErrorTypeNotFound, "tenant not found", nil).
				WithDetail("tenant_id", id.String())
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// GetByCredential retrieves a tenant by its static credential.
// Returns nil, nil when no tenant matches; a miss is an expected outcome on
// the fallback authentication path, not an error.
func (r *TenantRepository) GetByCredential(ctx context.Context, credential string) (*models.Tenant, error) {
	query := `
		SELECT id, display_name, static_credential, created_at
		FROM tenants
		WHERE static_credential = $1
	`

	tenant := &models.Tenant{}
	err := r.db.QueryRowContext(ctx, query, credential).Scan(
		&tenant.ID,
		&tenant.DisplayName,
		&tenant.StaticCredential,
		&tenant.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up tenant by credential: %w", err)
	}

	r.logger.Debug("tenant resolved via static credential",
		zap.String("tenant_id", tenant.ID.String()))
	return tenant, nil
}
