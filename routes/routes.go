package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clinicore/advisor-gateway/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Browser CORS layer. Preflight handling only; the server-side CSRF
	// gate is the origin validator on each state-changing route.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Auth.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Client-Token"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := deps.AuthMiddleware

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// Token exchange: origin-checked but unauthenticated (no identity yet)
	r.Route("/auth", func(r chi.Router) {
		r.With(auth.ValidateOrigin).Post("/exchange", deps.AuthHandler.HandleExchange)
		r.With(auth.ValidateOrigin, auth.RequireTenant).Post("/logout", deps.AuthHandler.HandleLogout)
	})

	// Operator issuance (admin key, not tenant tokens)
	r.Route("/admin", func(r chi.Router) {
		r.Post("/tokens", deps.AdminHandler.HandleIssueToken)
	})

	// Protected practice routes: full pipeline in fixed order
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.ValidateOrigin)
		r.Use(auth.RequireTenant)
		r.Use(auth.RateLimit)

		r.Post("/advisor/chat", deps.AdvisorHandler.HandleChat)
		r.Get("/practice/profile", deps.AdvisorHandler.HandleProfile)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
