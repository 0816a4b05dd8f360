// Package web provides HTTP handlers and REST API endpoints for video research.
package web

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/credentials"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/identity"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const (
	Version = "1.1.0"

	serviceName = "TwelveLabs Video DeepResearch API"

	msgVideoKeyRequired    = "TwelveLabs API key is required. Please connect your API key in the UI or set TWELVELABS_API_KEY in environment variables."
	msgResearchKeyRequired = "API key is required. Please check your environment configuration."
)

// Dependencies are the collaborators of APIHandlers. Gate is optional; auth
// endpoints answer 503 without it.
type Dependencies struct {
	Videos              upstream.VideoPlatform
	Researcher          upstream.Researcher
	Orchestrator        *workflow.Orchestrator
	VideoCredentials    credentials.Resolver
	ResearchCredentials credentials.Resolver
	ResearchTimeout     time.Duration
	DefaultIndexID      string
	Validator           *validator.Validate
	Gate                identity.Gate
	Logger              *slog.Logger
}

type APIHandlers struct {
	videos              upstream.VideoPlatform
	researcher          upstream.Researcher
	orchestrator        *workflow.Orchestrator
	videoCredentials    credentials.Resolver
	researchCredentials credentials.Resolver
	researchTimeout     time.Duration
	defaultIndexID      string
	validator           *validator.Validate
	gate                identity.Gate
	logger              *slog.Logger
}

func NewAPIHandlers(deps Dependencies) *APIHandlers {
	if deps.Validator == nil {
		deps.Validator = validator.New(validator.WithRequiredStructEnabled())
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.ResearchTimeout <= 0 {
		deps.ResearchTimeout = workflow.DefaultResearchTimeout
	}

	return &APIHandlers{
		videos:              deps.Videos,
		researcher:          deps.Researcher,
		orchestrator:        deps.Orchestrator,
		videoCredentials:    deps.VideoCredentials,
		researchCredentials: deps.ResearchCredentials,
		researchTimeout:     deps.ResearchTimeout,
		defaultIndexID:      deps.DefaultIndexID,
		validator:           deps.Validator,
		gate:                deps.Gate,
		logger:              deps.Logger,
	}
}

func (h *APIHandlers) Index(c fiber.Ctx) error {
	return c.JSON(ServiceInfo{
		Status:  "healthy",
		Message: serviceName,
		Version: Version,
		Endpoints: map[string]string{
			"config":         "GET|POST|DELETE /api/config/twelvelabs",
			"indexes":        "POST /api/indexes",
			"videos":         "POST /api/videos",
			"video_details":  "POST /api/video/:index_id/:video_id",
			"analyze":        "POST /api/analyze/:video_id",
			"sonar_research": "POST /api/sonar/research",
			"sonar_stream":   "POST /api/sonar/research/stream",
			"workflow":       "POST /api/workflow",
			"workflow_steps": "POST /api/workflow/steps",
			"verify_token":   "POST /api/auth/verify",
			"user_profile":   "GET /api/auth/user",
			"metrics":        "GET /metrics",
		},
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   serviceName + " is running",
		Version:   Version,
	})
}

func (h *APIHandlers) GetKeyStatus(c fiber.Ctx) error {
	available := h.videoCredentials.HasFallback()

	return c.JSON(KeyStatusResponse{
		Success:                 true,
		Configured:              available,
		EnvironmentKeyAvailable: available,
	})
}

// ValidateKey checks a client key by listing its indexes. The key is not
// stored.
func (h *APIHandlers) ValidateKey(c fiber.Ctx) error {
	var req ValidateKeyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	req.APIKey = strings.TrimSpace(req.APIKey)
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "TwelveLabs API key is required.")
	}

	indexes, err := h.videos.ListIndexes(c.Context(), req.APIKey)
	if err != nil {
		var upstreamErr *upstream.Error
		if errors.As(err, &upstreamErr) && isRejectedCredential(upstreamErr.StatusCode) {
			return unauthorized(c, "Invalid API key: Failed to fetch indexes")
		}

		return handleUpstreamError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "TwelveLabs API key validated successfully",
		"indexes": indexes,
	})
}

func (h *APIHandlers) ClearKey(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Switched to environment API key mode",
	})
}

func (h *APIHandlers) ListIndexes(c fiber.Ctx) error {
	var req CredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	key, ok := h.videoCredentials.Resolve(req.APIKey)
	if !ok {
		return badRequest(c, msgVideoKeyRequired)
	}

	indexes, err := h.videos.ListIndexes(c.Context(), key)
	if err != nil {
		return handleUpstreamError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"indexes":          indexes,
		"default_index_id": h.defaultIndexID,
	})
}

func (h *APIHandlers) ListVideos(c fiber.Ctx) error {
	var req ListVideosRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	key, ok := h.videoCredentials.Resolve(req.APIKey)
	if !ok {
		return badRequest(c, msgVideoKeyRequired)
	}

	req.IndexID = strings.TrimSpace(req.IndexID)
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Index ID is required")
	}

	videos, err := h.videos.ListVideos(c.Context(), key, req.IndexID)
	if err != nil {
		return handleUpstreamError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"videos":   videos,
		"index_id": req.IndexID,
	})
}

func (h *APIHandlers) GetVideo(c fiber.Ctx) error {
	var req CredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	key, ok := h.videoCredentials.Resolve(req.APIKey)
	if !ok {
		return badRequest(c, msgVideoKeyRequired)
	}

	metadata, err := h.videos.FetchVideoMetadata(c.Context(), key, c.Params("index_id"), c.Params("video_id"))
	if err != nil {
		if upstream.IsNotFound(err) {
			return notFound(c, "Video not found or access denied")
		}

		return handleUpstreamError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"video_details": metadata,
	})
}

func (h *APIHandlers) AnalyzeVideo(c fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	key, ok := h.videoCredentials.Resolve(req.APIKey)
	if !ok {
		return badRequest(c, msgVideoKeyRequired)
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Prompt is required")
	}

	analysis, err := h.videos.AnalyzeItem(c.Context(), key, c.Params("video_id"), req.Prompt)
	if err != nil {
		return handleUpstreamError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"analysis": analysis,
	})
}

func (h *APIHandlers) Research(c fiber.Ctx) error {
	var req ResearchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	key, ok := h.researchCredentials.Resolve(req.APIKey)
	if !ok {
		return unauthorized(c, msgResearchKeyRequired)
	}

	req.Query = strings.TrimSpace(req.Query)
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Query is required")
	}

	result, err := h.researcher.RunResearch(c.Context(), key, req.Query, h.researchTimeout)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Sonar research error", "error", err)

		return handleUpstreamError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"research": result,
	})
}

// WorkflowStep runs one step of the workflow per request, for clients that
// drive the sequence themselves.
func (h *APIHandlers) WorkflowStep(c fiber.Ctx) error {
	var req StepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Invalid step. Available steps: get_indexes, get_videos, analyze_video, sonar_research, sonar_research_stream")
	}

	switch req.Step {
	case "sonar_research":
		return h.researchStep(c, req)
	case "sonar_research_stream":
		return h.researchStreamStep(c, req)
	}

	key, ok := h.videoCredentials.Resolve(req.APIKey)
	if !ok {
		return badRequest(c, "TwelveLabs API key is required")
	}

	ctx := c.Context()

	switch req.Step {
	case "get_indexes":
		indexes, err := h.videos.ListIndexes(ctx, key)
		if err != nil {
			return handleUpstreamError(c, err)
		}

		return c.JSON(StepResponse{Success: true, Step: "indexes", Data: indexes, NextStep: "select_index"})

	case "get_videos":
		indexID := strings.TrimSpace(req.IndexID)
		if indexID == "" {
			return badRequest(c, "Index ID is required")
		}

		videos, err := h.videos.ListVideos(ctx, key, indexID)
		if err != nil {
			return handleUpstreamError(c, err)
		}

		return c.JSON(StepResponse{Success: true, Step: "videos", Data: videos, IndexID: indexID, NextStep: "select_video"})

	default:
		videoID := strings.TrimSpace(req.VideoID)
		if videoID == "" {
			return badRequest(c, "Video ID is required")
		}

		prompt := strings.TrimSpace(req.AnalysisPrompt)
		if prompt == "" {
			prompt = h.orchestrator.AnalysisPrompt()
		}

		analysis, err := h.videos.AnalyzeItem(ctx, key, videoID, prompt)
		if err != nil {
			return handleUpstreamError(c, err)
		}

		return c.JSON(StepResponse{Success: true, Step: "analysis", Data: analysis, VideoID: videoID, NextStep: "sonar_research"})
	}
}

func (h *APIHandlers) researchStep(c fiber.Ctx, req StepRequest) error {
	query := strings.TrimSpace(req.ResearchQuery)
	if query == "" {
		return badRequest(c, "Research query is required")
	}

	key, ok := h.researchCredentials.Resolve("")
	if !ok {
		return unauthorized(c, msgResearchKeyRequired)
	}

	result, err := h.researcher.RunResearch(c.Context(), key, query, h.researchTimeout)
	if err != nil {
		return handleUpstreamError(c, err)
	}

	return c.JSON(StepResponse{Success: true, Step: "research", Data: result, NextStep: "complete"})
}

func (h *APIHandlers) VerifyToken(c fiber.Ctx) error {
	var req VerifyTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "ID token is required")
	}

	if h.gate == nil {
		return serviceUnavailable(c, identity.ErrNotConfigured.Error())
	}

	who, err := h.gate.Verify(c.Context(), req.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidToken):
			return unauthorized(c, err.Error())
		case errors.Is(err, identity.ErrNotConfigured):
			return serviceUnavailable(c, err.Error())
		default:
			return handleUpstreamError(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    who,
		"message": "Token verified successfully",
	})
}

// CurrentUser must be mounted behind identity.Required.
func (h *APIHandlers) CurrentUser(c fiber.Ctx) error {
	who, ok := identity.FromContext(c)
	if !ok {
		return unauthorized(c, "Missing or invalid authorization header")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    who,
	})
}
