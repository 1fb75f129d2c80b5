package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/repositories"
	"github.com/clinicore/advisor-gateway/utils"
)

// adminKeyHeader carries the operator key for issuance requests
const adminKeyHeader = "X-Admin-Key"

// OneTimeIssuer issues one-time URL tokens (implemented by token.OneTimeStore)
type OneTimeIssuer interface {
	Issue(tenantID uuid.UUID) (string, error)
}

// AdminHandler serves operator-facing token issuance. One-time tokens live
// in process memory, so issuance has to happen inside the serving process
// rather than in an out-of-band tool.
type AdminHandler struct {
	oneTime       OneTimeIssuer
	tenants       repositories.TenantRepository
	adminKey      string
	portalBaseURL string
	ttlMinutes    int
	logger        *zap.Logger
}

// NewAdminHandler creates a new AdminHandler. Issuance is disabled when
// adminKey is empty.
func NewAdminHandler(
	oneTime OneTimeIssuer,
	tenants repositories.TenantRepository,
	adminKey string,
	portalBaseURL string,
	ttlMinutes int,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		oneTime:       oneTime,
		tenants:       tenants,
		adminKey:      adminKey,
		portalBaseURL: portalBaseURL,
		ttlMinutes:    ttlMinutes,
		logger:        logger,
	}
}

// IssueTokenRequest is the body for POST /admin/tokens
type IssueTokenRequest struct {
	TenantID string `json:"tenant_id" validate:"required,uuid"`
}

// IssueTokenResponse is the success body for POST /admin/tokens
type IssueTokenResponse struct {
	Token            string `json:"token"`
	AccessURL        string `json:"access_url"`
	TenantID         string `json:"tenant_id"`
	DisplayName      string `json:"display_name"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// HandleIssueToken handles POST /admin/tokens: mints a one-time URL token
// for a tenant and composes the portal access URL.
func (h *AdminHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.Warn("unauthorized admin token issuance attempt")
		_ = utils.WriteUnauthorized(w, "Invalid admin key")
		return
	}

	var req IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request", utils.ValidationDetails(err))
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		_ = utils.WriteBadRequest(w, "tenant_id must be a valid UUID", nil)
		return
	}

	tenant, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		_ = utils.WriteNotFound(w, "Tenant not found")
		return
	}

	tok, err := h.oneTime.Issue(tenant.ID)
	if err != nil {
		h.logger.Error("failed to issue one-time token", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	h.logger.Info("one-time access token issued by operator",
		zap.String("tenant_id", tenant.ID.String()))

	_ = utils.WriteCreated(w, IssueTokenResponse{
		Token:            tok,
		AccessURL:        fmt.Sprintf("%s?token=%s", h.portalBaseURL, tok),
		TenantID:         tenant.ID.String(),
		DisplayName:      tenant.DisplayName,
		ExpiresInMinutes: h.ttlMinutes,
	})
}

// authorized compares the presented admin key in constant time
func (h *AdminHandler) authorized(r *http.Request) bool {
	if h.adminKey == "" {
		return false
	}
	presented := r.Header.Get(adminKeyHeader)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.adminKey)) == 1
}
