package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/config"
	"github.com/clinicore/advisor-gateway/handlers"
	"github.com/clinicore/advisor-gateway/middleware"
	"github.com/clinicore/advisor-gateway/models"
	"github.com/clinicore/advisor-gateway/repositories"
	"github.com/clinicore/advisor-gateway/repositories/postgres"
	"github.com/clinicore/advisor-gateway/services/audit"
	"github.com/clinicore/advisor-gateway/services/credential"
	"github.com/clinicore/advisor-gateway/services/origin"
	"github.com/clinicore/advisor-gateway/services/ratelimit"
	"github.com/clinicore/advisor-gateway/services/token"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repositories
	Tenants repositories.TenantRepository

	// Token lifecycle stores
	Sessions      *token.SessionStore
	OneTimeTokens *token.OneTimeStore

	// Pipeline services
	Credentials *credential.Service
	Origins     *origin.Validator
	RateLimiter *ratelimit.Service
	Audit       *audit.Service

	// Pipeline
	AuthMiddleware *middleware.AuthMiddleware

	// Handlers
	AuthHandler    *handlers.AuthHandler
	AdminHandler   *handlers.AdminHandler
	AdvisorHandler *handlers.AdvisorHandler
	HealthHandler  *handlers.HealthHandler

	// background workers
	workerCancel context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.DB = db
	deps.Tenants = postgres.NewTenantRepository(db.DB, logger)

	deps.Sessions = token.NewSessionStore(cfg.Auth.SessionTokenTTL, logger)
	deps.OneTimeTokens = token.NewOneTimeStore(cfg.Auth.OneTimeTokenTTL, deps.Sessions, logger)
	deps.Credentials = credential.NewService(deps.Tenants, logger)
	deps.Origins = origin.NewValidator(cfg.Auth.AllowedOrigins, logger)
	deps.RateLimiter = ratelimit.NewService(cfg.RateLimit, logger)
	deps.Audit = audit.NewService(audit.NewZapSink(logger), logger, audit.DefaultConfig())

	// Session tokens are tried before the static credential fallback so the
	// shorter-lived credential wins
	resolvers := []middleware.TokenResolver{
		middleware.NewSessionResolver(deps.Sessions, deps.Tenants),
		middleware.NewCredentialResolver(deps.Credentials),
	}
	deps.AuthMiddleware = middleware.NewAuthMiddleware(
		deps.Origins, resolvers, deps.RateLimiter, deps.Audit, logger)

	deps.AuthHandler = handlers.NewAuthHandler(
		deps.OneTimeTokens,
		deps.Sessions,
		deps.Credentials,
		deps.Tenants,
		deps.Audit,
		int(cfg.Auth.SessionTokenTTL.Hours()),
		logger,
	)
	deps.AdminHandler = handlers.NewAdminHandler(
		deps.OneTimeTokens,
		deps.Tenants,
		cfg.Auth.AdminAPIKey,
		cfg.Auth.PortalBaseURL,
		int(cfg.Auth.OneTimeTokenTTL.Minutes()),
		logger,
	)
	deps.AdvisorHandler = handlers.NewAdvisorHandler(&unconfiguredAdvisor{}, logger)
	deps.HealthHandler = handlers.NewHealthHandler(db, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// Start launches background workers (audit drain, rate limiter sweep)
func (d *Dependencies) Start() error {
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	d.workerCancel = cancel
	go d.RateLimiter.StartCleanupWorker(workerCtx)

	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.workerCancel != nil {
		d.workerCancel()
	}

	if d.Audit != nil {
		if err := d.Audit.Stop(d.Config.Server.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

// unconfiguredAdvisor stands in until a real conversational backend is
// wired. Admitted requests still exercise the full pipeline.
type unconfiguredAdvisor struct{}

func (*unconfiguredAdvisor) Chat(context.Context, *models.Tenant, *handlers.ChatRequest) (*handlers.ChatResponse, error) {
	return nil, fmt.Errorf("advisor backend not configured")
}
