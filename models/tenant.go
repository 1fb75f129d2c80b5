package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Tenant represents a practice record in the durable store. Tenants are
// provisioned by an external process; this subsystem only reads them.
type Tenant struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	// StaticCredential is the long-lived per-tenant secret used as the
	// fallback authentication path. Nullable: a tenant may be session-only.
	StaticCredential sql.NullString `json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
}

// HasStaticCredential reports whether a fallback credential is configured
func (t *Tenant) HasStaticCredential() bool {
	return t.StaticCredential.Valid && t.StaticCredential.String != ""
}
