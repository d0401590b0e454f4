package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/kyma-lab/aws-defectTicket/internal/api/http/handlers"
	"github.com/kyma-lab/aws-defectTicket/internal/auth"
	"github.com/kyma-lab/aws-defectTicket/internal/observability"
)

// RouteConfig bundles dependencies for route registration. A nil
// AuthMiddleware leaves every route open.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Approvals      *handlers.ApprovalsHandler
	Batches        *handlers.BatchesHandler
	Ingestion      *handlers.IngestionHandler
	Classification *handlers.ClassificationHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1")

	reviewer := guard(cfg.AuthMiddleware, auth.RoleReviewer)
	admin := guard(cfg.AuthMiddleware, auth.RoleAdmin)

	if cfg.AuthMiddleware != nil && cfg.Auth != nil {
		api.Post("/auth/login", cfg.Auth.Login)
	}

	approvals := api.Group("/approvals")
	approvals.Post("", cfg.Approvals.Create)
	approvals.Get("/pending", with(reviewer, cfg.Approvals.ListPending)...)
	approvals.Get("/ticket/:ticketId", with(reviewer, cfg.Approvals.ListForTicket)...)
	approvals.Post("/decide", with(reviewer, cfg.Approvals.Decide)...)
	approvals.Get("/resume-failures", with(admin, cfg.Approvals.ListResumeFailures)...)
	approvals.Post("/:id/resume", with(admin, cfg.Approvals.RetryResume)...)

	batches := api.Group("/batches")
	batches.Get("/stats", cfg.Batches.Stats)
	batches.Get("/:batchId/progress", cfg.Batches.Progress)
	batches.Get("/:batchId/tickets", cfg.Batches.Tickets)

	ingestion := api.Group("/batch-ingestion")
	ingestion.Post("/ingest", cfg.Ingestion.Enqueue)
	ingestion.Post("/direct", cfg.Ingestion.Direct)

	classification := api.Group("/classification")
	classification.Post("/batch/:batchId", cfg.Classification.ClassifyBatch)
	classification.Post("/:ticketId", cfg.Classification.ClassifyTicket)
}

func guard(m *auth.AuthMiddleware, role auth.Role) []fiber.Handler {
	if m == nil {
		return nil
	}
	return []fiber.Handler{m.Handle, auth.RequireRole(role)}
}

func with(chain []fiber.Handler, handler fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, handler)
}
