package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/middleware"
	"github.com/clinicore/advisor-gateway/models"
	"github.com/clinicore/advisor-gateway/utils"
)

// AdvisorService is the external conversational collaborator the gateway
// fronts. The gateway authenticates and rate-limits; what an admitted
// request may do is the collaborator's concern.
type AdvisorService interface {
	Chat(ctx context.Context, tenant *models.Tenant, req *ChatRequest) (*ChatResponse, error)
}

// ChatMessage is a single message in the conversation history
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,min=1,max=10000"`
}

// ChatRequest is the body for POST /api/v1/advisor/chat. The endpoint is
// stateless: the client sends the full history each time.
type ChatRequest struct {
	Message string        `json:"message" validate:"required,min=1,max=10000"`
	History []ChatMessage `json:"conversation_history" validate:"max=50,dive"`
}

// ChatResponse is the collaborator's reply
type ChatResponse struct {
	Response string `json:"response"`
	TenantID string `json:"tenant_id"`
}

// AdvisorHandler serves the protected practice-facing routes
type AdvisorHandler struct {
	advisor AdvisorService
	logger  *zap.Logger
}

// NewAdvisorHandler creates a new AdvisorHandler
func NewAdvisorHandler(advisor AdvisorService, logger *zap.Logger) *AdvisorHandler {
	return &AdvisorHandler{
		advisor: advisor,
		logger:  logger,
	}
}

// HandleChat handles POST /api/v1/advisor/chat on a protected route
func (h *AdvisorHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantFromContext(r.Context())
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request", utils.ValidationDetails(err))
		return
	}

	resp, err := h.advisor.Chat(r.Context(), tenant, &req)
	if err != nil {
		h.logger.Error("advisor chat failed",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Error(err))
		_ = utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse{
			Error:   "advisor_unavailable",
			Message: "Advisor service is not available",
		})
		return
	}

	_ = utils.WriteOK(w, resp)
}

// HandleProfile handles GET /api/v1/practice/profile: tenant metadata only,
// never the stored credential.
func (h *AdvisorHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantFromContext(r.Context())
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	h.logger.Info("practice profile access",
		zap.String("tenant_id", tenant.ID.String()))

	_ = utils.WriteOK(w, map[string]interface{}{
		"tenant_id":      tenant.ID.String(),
		"display_name":   tenant.DisplayName,
		"has_credential": tenant.HasStaticCredential(),
		"created_at":     tenant.CreatedAt,
	})
}
