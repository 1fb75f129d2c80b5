package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/services/audit"
	"github.com/clinicore/advisor-gateway/services/ratelimit"
	"github.com/clinicore/advisor-gateway/utils"
)

// clientTokenHeader is the dedicated header clients present tokens in
const clientTokenHeader = "X-Client-Token"

// OriginValidator decides admit/reject for the CSRF check
type OriginValidator interface {
	Validate(method, originHeader, refererHeader string) bool
}

// RateLimiter enforces the per-tenant request budget
type RateLimiter interface {
	CheckAndRecord(tenantID uuid.UUID) ratelimit.Result
}

// Auditor records pipeline decisions
type Auditor interface {
	Record(event audit.Event)
}

// AuthMiddleware composes the authentication pipeline every protected route
// runs through: origin check, token resolution, rate limiting. Each stage
// is terminal on failure; nothing is retried.
type AuthMiddleware struct {
	origins   OriginValidator
	resolvers []TokenResolver
	limiter   RateLimiter
	auditor   Auditor
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. Resolvers are tried in
// order; the session store should come before the static credential
// fallback so the shorter-lived credential wins.
func NewAuthMiddleware(
	origins OriginValidator,
	resolvers []TokenResolver,
	limiter RateLimiter,
	auditor Auditor,
	logger *zap.Logger,
) *AuthMiddleware {
	return &AuthMiddleware{
		origins:   origins,
		resolvers: resolvers,
		limiter:   limiter,
		auditor:   auditor,
		logger:    logger,
	}
}

// ValidateOrigin rejects forged cross-origin state-changing requests before
// any further processing, including rate-limit accounting.
func (m *AuthMiddleware) ValidateOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.origins.Validate(r.Method, r.Header.Get("Origin"), r.Header.Get("Referer")) {
			m.logger.Warn("origin rejected",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("origin", r.Header.Get("Origin")))
			m.auditor.Record(audit.Event{
				Decision: audit.DecisionRejected,
				Reason:   "origin_rejected",
			})
			_ = utils.WriteForbidden(w, "Request origin not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTenant resolves the presented token to a tenant via the ordered
// resolver chain and attaches the identity to the request context.
func (m *AuthMiddleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimiddleware.GetReqID(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing client token",
				zap.String("request_id", requestID))
			m.auditor.Record(audit.Event{
				Decision: audit.DecisionRejected,
				Reason:   "missing_credential",
			})
			_ = utils.WriteUnauthorized(w, "Missing X-Client-Token header")
			return
		}

		for _, resolver := range m.resolvers {
			tenant, err := resolver.Resolve(ctx, token)
			if err != nil {
				// Lookup failure is a fault, not an auth decision; keep it
				// distinguishable from a rejected credential
				m.logger.Error("token resolution failed",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "")
				return
			}
			if tenant != nil {
				ctx = WithTenant(ctx, tenant)
				ctx = WithClientToken(ctx, token)
				m.logger.Debug("tenant identified",
					zap.String("request_id", requestID),
					zap.String("tenant_id", tenant.ID.String()))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		m.logger.Warn("invalid or unknown client token",
			zap.String("request_id", requestID))
		m.auditor.Record(audit.Event{
			Decision: audit.DecisionRejected,
			Reason:   "invalid_credential",
		})
		_ = utils.WriteUnauthorized(w, "Invalid or expired access token")
	})
}

// RateLimit consults the per-tenant budget. Must run after RequireTenant.
// A passing request is the pipeline's terminal admit decision.
func (m *AuthMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenant := GetTenantFromContext(ctx)
		if tenant == nil {
			m.logger.Error("tenant missing from context in rate limit stage",
				zap.String("request_id", chimiddleware.GetReqID(ctx)))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		result := m.limiter.CheckAndRecord(tenant.ID)
		if !result.Allowed {
			m.logger.Warn("rate limit exceeded",
				zap.String("tenant_id", tenant.ID.String()),
				zap.Int("request_count", result.CurrentCount),
				zap.Int("rate_limit", result.Limit))
			m.auditor.Record(audit.Event{
				TenantID: &tenant.ID,
				Decision: audit.DecisionRejected,
				Reason:   "rate_limited",
			})
			writeRateLimitHeaders(w, result)
			_ = utils.WriteTooManyRequests(w,
				"Rate limit exceeded. Please try again later.",
				map[string]interface{}{
					"limit":               result.Limit,
					"retry_after_seconds": retryAfterSeconds(result.RetryAfter),
				})
			return
		}

		m.auditor.Record(audit.Event{
			TenantID: &tenant.ID,
			Decision: audit.DecisionAdmitted,
			Reason:   "admitted",
		})
		next.ServeHTTP(w, r)
	})
}

// writeRateLimitHeaders sets the standard back-off metadata headers
func writeRateLimitHeaders(w http.ResponseWriter, result ratelimit.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// retryAfterSeconds rounds the retry horizon up to whole seconds so clients
// never retry early.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// extractToken pulls the client token from the X-Client-Token header, with
// Bearer Authorization accepted as a fallback for non-browser clients.
func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(clientTokenHeader)); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
