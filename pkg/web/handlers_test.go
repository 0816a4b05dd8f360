package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/credentials"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/identity"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/mocks"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/ratelimit"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/stream"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/web"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	envVideoKey    = "tlk_env_key_000000"
	envResearchKey = "pplx_env_key"
)

type testEnv struct {
	app        *fiber.App
	videos     *mocks.MockVideoPlatform
	researcher *mocks.MockResearcher
}

type stubGate struct{}

func (stubGate) Verify(_ context.Context, token string) (identity.Identity, error) {
	if token != "good-token" {
		return identity.Identity{}, identity.ErrInvalidToken
	}

	return identity.Identity{UID: "uid-1", Email: "a@example.com"}, nil
}

func setupTestApp(t *testing.T, videoFallback string, limiter ratelimit.Limiter) *testEnv {
	t.Helper()

	env := &testEnv{
		videos:     &mocks.MockVideoPlatform{},
		researcher: &mocks.MockResearcher{},
	}

	videoCredentials := credentials.NewResolver(videoFallback)
	researchCredentials := credentials.NewResolver(envResearchKey)

	orchestrator := workflow.New(workflow.Deps{
		Videos:      env.videos,
		Researcher:  env.researcher,
		Credentials: videoCredentials,
	}, workflow.Config{
		ResearchCredential: envResearchKey,
		ResearchTimeout:    time.Minute,
	})

	handlers := web.NewAPIHandlers(web.Dependencies{
		Videos:              env.videos,
		Researcher:          env.researcher,
		Orchestrator:        orchestrator,
		VideoCredentials:    videoCredentials,
		ResearchCredentials: researchCredentials,
		ResearchTimeout:     time.Minute,
		Gate:                stubGate{},
	})

	app := fiber.New()
	app.Get("/", handlers.Index)
	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api")
	api.Get("/config/twelvelabs", handlers.GetKeyStatus)
	api.Post("/config/twelvelabs", handlers.ValidateKey)
	api.Delete("/config/twelvelabs", handlers.ClearKey)
	api.Post("/indexes", handlers.ListIndexes)
	api.Post("/videos", handlers.ListVideos)
	api.Post("/video/:index_id/:video_id", handlers.GetVideo)
	api.Post("/analyze/:video_id", handlers.AnalyzeVideo)
	api.Post("/workflow/steps", handlers.WorkflowStep)
	api.Post("/auth/verify", handlers.VerifyToken)
	api.Get("/auth/user", handlers.CurrentUser, identity.Required(stubGate{}))

	if limiter == nil {
		limiter = ratelimit.NewMemory(100, time.Minute)
	}

	limited := web.RateLimit(limiter, slog.Default())
	api.Post("/sonar/research", handlers.Research, limited)
	api.Post("/sonar/research/stream", handlers.ResearchStream, limited)
	api.Post("/workflow", handlers.RunWorkflow, limited)

	env.app = app

	return env
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func problemDetail(t *testing.T, body []byte) string {
	t.Helper()

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))

	detail, _ := problem["detail"].(string)

	return detail
}

func TestAPIHandlers_IndexAndHealth(t *testing.T) {
	env := setupTestApp(t, "", nil)

	resp, body := doJSON(t, env.app, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var info web.ServiceInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, web.Version, info.Version)
	assert.Contains(t, info.Endpoints, "workflow")

	resp, body = doJSON(t, env.app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health web.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, health.Timestamp)
}

func TestAPIHandlers_KeyStatus(t *testing.T) {
	for _, fallback := range []string{"", envVideoKey} {
		env := setupTestApp(t, fallback, nil)

		resp, body := doJSON(t, env.app, http.MethodGet, "/api/config/twelvelabs", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var status web.KeyStatusResponse
		require.NoError(t, json.Unmarshal(body, &status))
		assert.Equal(t, fallback != "", status.EnvironmentKeyAvailable)
		assert.NotContains(t, string(body), envVideoKey)
	}
}

func TestAPIHandlers_ValidateKey(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		listErr    error
		wantStatus int
	}{
		{name: "valid", key: "tlk_good", wantStatus: http.StatusOK},
		{name: "missing", key: "", wantStatus: http.StatusBadRequest},
		{
			name:       "rejected",
			key:        "tlk_bad",
			listErr:    &upstream.Error{Provider: "twelvelabs", Op: "list_indexes", StatusCode: 401, Reason: "invalid key"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "upstream down",
			key:        "tlk_good",
			listErr:    &upstream.Error{Provider: "twelvelabs", Op: "list_indexes", StatusCode: 500, Reason: "boom"},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestApp(t, envVideoKey, nil)
			if tt.listErr != nil {
				env.videos.On("ListIndexes", mock.Anything, tt.key).Return(nil, tt.listErr)
			} else {
				env.videos.On("ListIndexes", mock.Anything, tt.key).Return([]upstream.Index{{ID: "idx-1"}}, nil)
			}

			resp, _ := doJSON(t, env.app, http.MethodPost, "/api/config/twelvelabs", map[string]string{"api_key": tt.key})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.key == "" {
				env.videos.AssertNotCalled(t, "ListIndexes", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAPIHandlers_ClearKey(t *testing.T) {
	env := setupTestApp(t, "", nil)

	resp, body := doJSON(t, env.app, http.MethodDelete, "/api/config/twelvelabs", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "environment API key mode")
}

func TestAPIHandlers_ListIndexes(t *testing.T) {
	t.Run("falls back to environment key", func(t *testing.T) {
		env := setupTestApp(t, envVideoKey, nil)
		env.videos.On("ListIndexes", mock.Anything, envVideoKey).Return([]upstream.Index{{ID: "idx-1", Name: "demo"}}, nil)

		resp, body := doJSON(t, env.app, http.MethodPost, "/api/indexes", map[string]string{})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), `"idx-1"`)
	})

	t.Run("client key wins", func(t *testing.T) {
		env := setupTestApp(t, envVideoKey, nil)
		env.videos.On("ListIndexes", mock.Anything, "tlk_client").Return([]upstream.Index{}, nil)

		resp, _ := doJSON(t, env.app, http.MethodPost, "/api/indexes", map[string]string{"api_key": "tlk_client"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		env.videos.AssertExpectations(t)
	})

	t.Run("no key at all", func(t *testing.T) {
		env := setupTestApp(t, "", nil)

		resp, body := doJSON(t, env.app, http.MethodPost, "/api/indexes", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, problemDetail(t, body), "TwelveLabs API key is required")
	})
}

func TestAPIHandlers_ListVideos(t *testing.T) {
	env := setupTestApp(t, envVideoKey, nil)
	env.videos.On("ListVideos", mock.Anything, envVideoKey, "idx-1").Return([]upstream.Metadata{{ID: "vid-1"}}, nil)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/videos", map[string]string{"index_id": "idx-1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"vid-1"`)

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/videos", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Index ID is required", problemDetail(t, body))
}

func TestAPIHandlers_GetVideo(t *testing.T) {
	env := setupTestApp(t, envVideoKey, nil)
	env.videos.On("FetchVideoMetadata", mock.Anything, envVideoKey, "idx-1", "vid-1").
		Return(&upstream.Metadata{ID: "vid-1", IndexID: "idx-1"}, nil)
	env.videos.On("FetchVideoMetadata", mock.Anything, envVideoKey, "idx-1", "missing").
		Return(nil, &upstream.Error{Provider: "twelvelabs", Op: "get_video", StatusCode: 404, Err: upstream.ErrNotFound})
	env.videos.On("FetchVideoMetadata", mock.Anything, envVideoKey, "idx-1", "slow").
		Return(nil, &upstream.Error{Provider: "twelvelabs", Op: "get_video", Reason: "request timed out", Err: upstream.ErrTimeout})

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/video/idx-1/vid-1", map[string]string{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "video_details")

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/video/idx-1/missing", map[string]string{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Video not found or access denied", problemDetail(t, body))

	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/video/idx-1/slow", map[string]string{})
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestAPIHandlers_AnalyzeVideo(t *testing.T) {
	env := setupTestApp(t, envVideoKey, nil)
	env.videos.On("AnalyzeItem", mock.Anything, envVideoKey, "vid-1", "Summarize").Return("A summary.", nil)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/analyze/vid-1", map[string]string{"prompt": "Summarize"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "A summary.")

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/analyze/vid-1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Prompt is required", problemDetail(t, body))
}

func TestAPIHandlers_Research(t *testing.T) {
	env := setupTestApp(t, "", nil)
	env.researcher.On("RunResearch", mock.Anything, envResearchKey, "solar storms", time.Minute).
		Return(&upstream.ResearchResult{Choices: []upstream.Choice{{Message: upstream.ChatMessage{Content: "## Storms"}}}}, nil)
	env.researcher.On("RunResearch", mock.Anything, envResearchKey, "too slow", time.Minute).
		Return(nil, &upstream.Error{Provider: "sonar", Op: "research", Reason: "Request timed out - Sonar research is taking too long", Err: upstream.ErrTimeout})

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/sonar/research", map[string]string{"query": "solar storms"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "## Storms")

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/sonar/research", map[string]string{"query": "too slow"})
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, "Request timed out - Sonar research is taking too long", problemDetail(t, body))

	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/sonar/research", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_WorkflowStep(t *testing.T) {
	env := setupTestApp(t, envVideoKey, nil)
	env.videos.On("ListIndexes", mock.Anything, envVideoKey).Return([]upstream.Index{{ID: "idx-1"}}, nil)
	env.videos.On("ListVideos", mock.Anything, envVideoKey, "idx-1").Return([]upstream.Metadata{{ID: "vid-1"}}, nil)
	env.videos.On("AnalyzeItem", mock.Anything, envVideoKey, "vid-1", "Describe what happens in this video").Return("analysis", nil)
	env.researcher.On("RunResearch", mock.Anything, envResearchKey, "query", time.Minute).Return(&upstream.ResearchResult{}, nil)

	tests := []struct {
		body     map[string]string
		step     string
		nextStep string
	}{
		{body: map[string]string{"step": "get_indexes"}, step: "indexes", nextStep: "select_index"},
		{body: map[string]string{"step": "get_videos", "index_id": "idx-1"}, step: "videos", nextStep: "select_video"},
		{body: map[string]string{"step": "analyze_video", "video_id": "vid-1"}, step: "analysis", nextStep: "sonar_research"},
		{body: map[string]string{"step": "sonar_research", "research_query": "query"}, step: "research", nextStep: "complete"},
	}

	for _, tt := range tests {
		t.Run(tt.body["step"], func(t *testing.T) {
			resp, body := doJSON(t, env.app, http.MethodPost, "/api/workflow/steps", tt.body)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			var result web.StepResponse
			require.NoError(t, json.Unmarshal(body, &result))
			assert.Equal(t, tt.step, result.Step)
			assert.Equal(t, tt.nextStep, result.NextStep)
		})
	}

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/workflow/steps", map[string]string{"step": "teleport"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, problemDetail(t, body), "Invalid step")
}

func TestAPIHandlers_Auth(t *testing.T) {
	env := setupTestApp(t, "", nil)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/auth/verify", map[string]string{"id_token": "good-token"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "uid-1")

	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/auth/verify", map[string]string{"id_token": "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/auth/verify", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer good-token")

	userResp, err := env.app.Test(req)
	require.NoError(t, err)
	defer userResp.Body.Close()

	assert.Equal(t, http.StatusOK, userResp.StatusCode)
}

func TestAPIHandlers_CurrentUserBehindGate(t *testing.T) {
	env := setupTestApp(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer forged")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid or expired token", problemDetail(t, body))
}

func TestAPIHandlers_ResearchStream(t *testing.T) {
	env := setupTestApp(t, "", nil)
	env.researcher.On("StreamResearch", mock.Anything, envResearchKey, "solar storms", time.Minute).
		Return([]string{"## Storms", "\nDetails"}, nil)
	env.researcher.On("StreamResearch", mock.Anything, "pplx_body_key", "rejected", time.Minute).
		Return([]string{"partial"}, &upstream.Error{Provider: "sonar", Op: "research_stream", StatusCode: 401, Reason: "API request failed with status 401"})

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/sonar/research/stream", map[string]string{"query": "solar storms"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t,
		`data: {"content":"## Storms"}`+"\n\n"+`data: {"content":"\nDetails"}`+"\n\n"+`data: {"done":true}`+"\n\n",
		string(body))

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/sonar/research/stream", map[string]string{
		"query":   "rejected",
		"api_key": "pplx_body_key",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		`data: {"content":"partial"}`+"\n\n"+`data: {"error":"API request failed with status 401"}`+"\n\n",
		string(body))

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/sonar/research/stream", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Query is required", problemDetail(t, body))
}

func TestAPIHandlers_ResearchStreamStep(t *testing.T) {
	env := setupTestApp(t, "", nil)
	env.researcher.On("StreamResearch", mock.Anything, envResearchKey, "query", time.Minute).
		Return([]string{"answer"}, nil)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/workflow/steps", map[string]string{
		"step":           "sonar_research_stream",
		"research_query": "query",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `data: {"content":"answer"}`+"\n\n"+`data: {"done":true}`+"\n\n", string(body))

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/workflow/steps", map[string]string{"step": "sonar_research_stream"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Research query is required", problemDetail(t, body))
}

func TestRunWorkflow_StreamsEvents(t *testing.T) {
	env := setupTestApp(t, envVideoKey, nil)
	env.videos.On("FetchVideoMetadata", mock.Anything, envVideoKey, "idx-1", "vid-1").Return(&upstream.Metadata{ID: "vid-1"}, nil)
	env.videos.On("AnalyzeItem", mock.Anything, envVideoKey, "vid-1", "Describe what happens in this video").Return("analysis", nil)
	env.researcher.On("RunResearch", mock.Anything, envResearchKey, mock.Anything, time.Minute).
		Return(&upstream.ResearchResult{Choices: []upstream.Choice{{Message: upstream.ChatMessage{Content: "findings"}}}}, nil)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/workflow", map[string]string{
		"index_id":       "idx-1",
		"video_id":       "vid-1",
		"research_query": "what tools",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	events := decodeAll(t, body)
	require.Len(t, events, 6)
	assert.Equal(t, stream.TypeComplete, events[5].Type)
	assert.Equal(t, 100, events[5].ProgressValue())
}

func TestRunWorkflow_ValidationErrorIsAnEvent(t *testing.T) {
	env := setupTestApp(t, "", nil)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/workflow", map[string]string{
		"index_id":       "idx-1",
		"video_id":       "vid-1",
		"research_query": "what tools",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	events := decodeAll(t, body)
	require.Len(t, events, 1)
	assert.Equal(t, stream.TypeError, events[0].Type)
	assert.Equal(t, "TwelveLabs API key is required", events[0].Message)

	env.videos.AssertNotCalled(t, "FetchVideoMetadata", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunWorkflow_MalformedBody(t *testing.T) {
	env := setupTestApp(t, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/workflow", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunWorkflow_RateLimited(t *testing.T) {
	env := setupTestApp(t, "", ratelimit.NewMemory(1, time.Minute))
	payload := map[string]string{"index_id": "idx-1"}

	first, _ := doJSON(t, env.app, http.MethodPost, "/api/workflow", payload)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "0", first.Header.Get("X-RateLimit-Remaining"))

	second, body := doJSON(t, env.app, http.MethodPost, "/api/workflow", payload)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get("Retry-After"))
	assert.Contains(t, problemDetail(t, body), "too many requests")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, assert.AnError
}

func TestRateLimit_FailsOpen(t *testing.T) {
	env := setupTestApp(t, "", failingLimiter{})

	resp, _ := doJSON(t, env.app, http.MethodPost, "/api/sonar/research", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func decodeAll(t *testing.T, body []byte) []stream.Event {
	t.Helper()

	decoder := stream.NewDecoder(bytes.NewReader(body), true)

	var events []stream.Event

	for {
		event, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			return events
		}

		require.NoError(t, err)

		events = append(events, event)
	}
}
