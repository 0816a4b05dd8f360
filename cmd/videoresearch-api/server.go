package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/cmd"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/config"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/credentials"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/eventbus"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/identity"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/keepalive"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/metrics"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/otelhelper"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/prompts"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/providers/sonar"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/providers/twelvelabs"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/ratelimit"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/web"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName     = "videoresearch-api"
	shutdownTimeout = 10 * time.Second
)

// Server owns the long-lived resources behind the API.
type Server struct {
	cfg            *config.Config
	logger         *slog.Logger
	api            *API
	eventBus       eventbus.EventBus
	pinger         *keepalive.Pinger
	redis          redis.UniversalClient
	shutdownTracer otelhelper.ShutdownFunc
}

func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{cfg: cfg, logger: logger}

	defer func() {
		if err != nil {
			s.Close(context.WithoutCancel(ctx))
		}
	}()

	tracer := otelhelper.NoopTracer()

	if cfg.OTelEnabled {
		tracer, s.shutdownTracer, err = otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	s.eventBus, err = cmd.NewEventBus(cfg.EventBus, cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	eventBus := s.eventBus

	if err := subscribeLifecycle(ctx, eventBus, component(logger, "lifecycle")); err != nil {
		return nil, fmt.Errorf("failed to subscribe to lifecycle events: %w", err)
	}

	limiter, err := s.newLimiter()
	if err != nil {
		return nil, err
	}

	s.pinger, err = keepalive.New(cfg.AppURL, cfg.KeepaliveSchedule, logger)
	if err != nil {
		return nil, err
	}

	store := prompts.LoadStore(ctx,
		prompts.NewLoader(newObjectGetter(ctx, logger, cfg), component(logger, "prompts")),
		cfg.AnalysisPromptPath,
		cfg.ResearchPromptPath,
	)

	videos := twelvelabs.NewClient(twelvelabs.Options{
		BaseURL: cfg.TwelveLabsBaseURL,
		Timeout: cfg.VideoTimeout,
		Logger:  component(logger, "twelvelabs"),
	})

	researcher := sonar.NewClient(sonar.Options{
		BaseURL: cfg.PerplexityBaseURL,
		Model:   cfg.ResearchModel,
		Logger:  component(logger, "sonar"),
	})

	validate := validator.New(validator.WithRequiredStructEnabled())
	videoCredentials := credentials.NewResolver(cfg.TwelveLabsAPIKey)
	m := metrics.New()

	orchestrator := workflow.New(workflow.Deps{
		Videos:      videos,
		Researcher:  researcher,
		Prompts:     store,
		Credentials: videoCredentials,
		Validate:    validate,
		Tracer:      tracer,
		Metrics:     m,
		Publisher:   eventBus,
		Logger:      component(logger, "workflow"),
	}, workflow.Config{
		ResearchCredential: cfg.PerplexityAPIKey,
		ResearchTimeout:    cfg.ResearchTimeout,
		ChunkSize:          cfg.ChunkSize,
		MaxPayloadBytes:    cfg.MaxPayloadBytes,
	})

	var gate identity.Gate
	if cfg.FirebaseAPIKey != "" {
		gate = identity.NewFirebase(cfg.FirebaseAPIKey, identity.Options{Logger: component(logger, "identity")})
	}

	handlers := web.NewAPIHandlers(web.Dependencies{
		Videos:              videos,
		Researcher:          researcher,
		Orchestrator:        orchestrator,
		VideoCredentials:    videoCredentials,
		ResearchCredentials: credentials.NewResolver(cfg.PerplexityAPIKey),
		ResearchTimeout:     cfg.ResearchTimeout,
		DefaultIndexID:      cfg.TwelveLabsIndexID,
		Validator:           validate,
		Gate:                gate,
		Logger:              component(logger, "web"),
	})

	s.api = NewAPI(logger, handlers, limiter, gate, m)

	return s, nil
}

func (s *Server) newLimiter() (ratelimit.Limiter, error) {
	if s.cfg.RedisURL == "" {
		return ratelimit.NewMemory(s.cfg.RateLimit, time.Minute), nil
	}

	client, err := ratelimit.NewRedisClient(s.cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	s.redis = client

	return ratelimit.NewRedis(client, s.cfg.RateLimit, time.Minute), nil
}

// newObjectGetter returns an S3 client only when a template lives in S3.
// nolint:ireturn
func newObjectGetter(ctx context.Context, logger *slog.Logger, cfg *config.Config) prompts.ObjectGetter {
	if !prompts.NeedsS3(cfg.AnalysisPromptPath, cfg.ResearchPromptPath) {
		return nil
	}

	client, err := prompts.NewS3Client(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to load AWS configuration, S3 templates unavailable", "error", err)

		return nil
	}

	return client
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.pinger.Start(ctx); err != nil {
		return err
	}

	app := s.api.App()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Error("Failed to shut down HTTP server", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(s.cfg.Port))
}

// Close releases whatever NewServer managed to build.
func (s *Server) Close(ctx context.Context) {
	if s.pinger != nil {
		s.pinger.Stop()
	}

	if s.eventBus != nil {
		if err := s.eventBus.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
		}
	}

	if s.shutdownTracer != nil {
		if err := s.shutdownTracer(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}
}

func component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
