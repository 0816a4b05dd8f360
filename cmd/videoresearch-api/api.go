// Package main provides the Video DeepResearch API server.
package main

import (
	"log/slog"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/identity"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/metrics"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/ratelimit"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	handlers *web.APIHandlers
	limiter  ratelimit.Limiter
	gate     identity.Gate
	metrics  *metrics.Metrics
}

func NewAPI(
	logger *slog.Logger,
	handlers *web.APIHandlers,
	limiter ratelimit.Limiter,
	gate identity.Gate,
	metrics *metrics.Metrics,
) *API {
	return &API{
		logger:   logger,
		handlers: handlers,
		limiter:  limiter,
		gate:     gate,
		metrics:  metrics,
	}
}

func (a *API) App() *fiber.App {
	handlers := a.handlers

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", handlers.Index)
	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	limited := web.RateLimit(a.limiter, a.logger)

	api := app.Group("/api")
	api.Get("/config/twelvelabs", handlers.GetKeyStatus)
	api.Post("/config/twelvelabs", handlers.ValidateKey)
	api.Delete("/config/twelvelabs", handlers.ClearKey)
	api.Post("/indexes", handlers.ListIndexes)
	api.Post("/videos", handlers.ListVideos)
	api.Post("/video/:index_id/:video_id", handlers.GetVideo)
	api.Post("/analyze/:video_id", handlers.AnalyzeVideo)
	// Route middleware follows the handler and runs before it.
	api.Post("/sonar/research", handlers.Research, limited)
	api.Post("/sonar/research/stream", handlers.ResearchStream, limited)
	api.Post("/workflow", handlers.RunWorkflow, limited)
	api.Post("/workflow/steps", handlers.WorkflowStep)

	// Auth endpoints:
	api.Post("/auth/verify", handlers.VerifyToken)

	if a.gate != nil {
		api.Get("/auth/user", handlers.CurrentUser, identity.Required(a.gate))
	} else {
		api.Get("/auth/user", handlers.CurrentUser)
	}

	return app
}
