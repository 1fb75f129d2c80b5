package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/middleware"
	"github.com/clinicore/advisor-gateway/models"
	"github.com/clinicore/advisor-gateway/repositories"
	"github.com/clinicore/advisor-gateway/services"
	"github.com/clinicore/advisor-gateway/services/audit"
	"github.com/clinicore/advisor-gateway/utils"
)

// OneTimeExchanger exchanges one-time URL tokens (implemented by token.OneTimeStore)
type OneTimeExchanger interface {
	Exchange(token string) (uuid.UUID, string, error)
}

// SessionManager issues and revokes session tokens (implemented by token.SessionStore)
type SessionManager interface {
	Issue(tenantID uuid.UUID) (string, error)
	Revoke(token string) bool
}

// CredentialLookup resolves tenants from bare static credentials
// (implemented by credential.Service)
type CredentialLookup interface {
	LookupByCredential(ctx context.Context, candidate string) (*models.Tenant, error)
}

// Auditor records token lifecycle decisions (implemented by audit.Service)
type Auditor interface {
	Record(event audit.Event)
}

// AuthHandler serves the token exchange and logout endpoints
type AuthHandler struct {
	oneTime         OneTimeExchanger
	sessions        SessionManager
	credentials     CredentialLookup
	tenants         repositories.TenantRepository
	auditor         Auditor
	sessionTTLHours int
	logger          *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	oneTime OneTimeExchanger,
	sessions SessionManager,
	credentials CredentialLookup,
	tenants repositories.TenantRepository,
	auditor Auditor,
	sessionTTLHours int,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		oneTime:         oneTime,
		sessions:        sessions,
		credentials:     credentials,
		tenants:         tenants,
		auditor:         auditor,
		sessionTTLHours: sessionTTLHours,
		logger:          logger,
	}
}

// TokenExchangeRequest is the body for POST /auth/exchange
type TokenExchangeRequest struct {
	Token string `json:"token" validate:"required,min=1"`
}

// TokenExchangeResponse is the success body for POST /auth/exchange
type TokenExchangeResponse struct {
	SessionToken   string `json:"session_token"`
	TenantID       string `json:"tenant_id"`
	DisplayName    string `json:"display_name"`
	ExpiresInHours int    `json:"expires_in_hours"`
}

// HandleExchange handles POST /auth/exchange. A one-time URL token is
// exchanged for a session token; a static credential presented here is
// upgraded to a session token (legacy path).
func (h *AuthHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	var req TokenExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request", utils.ValidationDetails(err))
		return
	}

	tenantID, sessionToken, err := h.oneTime.Exchange(req.Token)
	if err == nil {
		tenant, terr := h.tenants.GetByID(r.Context(), tenantID)
		if terr != nil {
			// The token was valid but the tenant record is gone; treat as
			// an invalid credential rather than leaking store state
			h.logger.Warn("exchanged token for missing tenant",
				zap.String("tenant_id", tenantID.String()))
			h.auditor.Record(audit.Event{
				TenantID: &tenantID,
				Decision: audit.DecisionRejected,
				Reason:   "invalid_credential",
			})
			_ = utils.WriteUnauthorized(w, "Invalid, expired, or already used token")
			return
		}
		h.auditor.Record(audit.Event{
			TenantID: &tenant.ID,
			Decision: audit.DecisionAdmitted,
			Reason:   "token_exchanged",
		})
		h.writeExchangeResponse(w, sessionToken, tenant)
		return
	}

	if errors.Is(err, services.ErrReplayedToken) {
		// Reuse of a consumed token: possible theft, no fallback attempted
		h.logger.Warn("one-time token replay rejected at exchange endpoint")
		h.auditor.Record(audit.Event{
			Decision: audit.DecisionRejected,
			Reason:   "replayed_token",
			Elevated: true,
		})
		_ = utils.WriteUnauthorized(w, "Invalid, expired, or already used token")
		return
	}
	if !errors.Is(err, services.ErrInvalidCredential) {
		h.logger.Error("token exchange failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	// Fall back to a direct static credential: existing integrations keep
	// working but get upgraded to session tokens
	tenant, err := h.credentials.LookupByCredential(r.Context(), req.Token)
	if err != nil {
		h.logger.Error("credential lookup failed during exchange", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}
	if tenant == nil {
		h.logger.Warn("token exchange failed: invalid or expired token")
		h.auditor.Record(audit.Event{
			Decision: audit.DecisionRejected,
			Reason:   "invalid_credential",
		})
		_ = utils.WriteUnauthorized(w, "Invalid, expired, or already used token")
		return
	}

	sessionToken, err = h.sessions.Issue(tenant.ID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	h.logger.Info("static credential exchanged for session token",
		zap.String("tenant_id", tenant.ID.String()))
	h.auditor.Record(audit.Event{
		TenantID: &tenant.ID,
		Decision: audit.DecisionAdmitted,
		Reason:   "credential_upgraded",
	})
	h.writeExchangeResponse(w, sessionToken, tenant)
}

// HandleLogout handles POST /auth/logout on a protected route. Revokes the
// session token the request authenticated with. Idempotent.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetClientTokenFromContext(r.Context())
	if token == "" {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	revoked := h.sessions.Revoke(token)
	event := audit.Event{Decision: audit.DecisionAdmitted, Reason: "logout"}
	if tenant := middleware.GetTenantFromContext(r.Context()); tenant != nil {
		event.TenantID = &tenant.ID
		h.logger.Info("logout",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Bool("revoked", revoked))
	}
	h.auditor.Record(event)
	_ = utils.WriteOK(w, map[string]interface{}{"revoked": revoked})
}

func (h *AuthHandler) writeExchangeResponse(w http.ResponseWriter, sessionToken string, tenant *models.Tenant) {
	_ = utils.WriteJSON(w, http.StatusOK, TokenExchangeResponse{
		SessionToken:   sessionToken,
		TenantID:       tenant.ID.String(),
		DisplayName:    tenant.DisplayName,
		ExpiresInHours: h.sessionTTLHours,
	})
}
