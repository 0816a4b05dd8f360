// Package sonar implements upstream.Researcher against the Perplexity chat-completions API.
package sonar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
)

const (
	DefaultBaseURL = "https://api.perplexity.ai"
	DefaultModel   = "sonar-deep-research"
	DefaultTimeout = 180 * time.Second

	providerName = "sonar"
	opResearch   = "research"
	opStream     = "research_stream"
)

var _ upstream.Researcher = (*Client)(nil)

type Options struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		model:   model,
		client:  client,
		logger:  logger.With("provider", providerName),
	}
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []upstream.ChatMessage `json:"messages"`
	Stream   bool                   `json:"stream,omitempty"`
}

// RunResearch sends query as a single user message and blocks until the
// answer arrives or timeout elapses. A non-positive timeout uses DefaultTimeout.
func (c *Client) RunResearch(ctx context.Context, credential, query string, timeout time.Duration) (*upstream.ResearchResult, error) {
	if credential == "" {
		return nil, &upstream.Error{Provider: providerName, Op: opResearch, Reason: "API key is required", Err: upstream.ErrMissingCredential}
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []upstream.ChatMessage{{Role: "user", Content: query}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode research request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "research request rejected",
			"status", resp.StatusCode,
			"reason", upstream.ReasonFromBody(respBody),
		)

		statusErr := upstream.StatusError(providerName, opResearch, resp.StatusCode, respBody)
		statusErr.Reason = fmt.Sprintf("API request failed with status %d", resp.StatusCode)

		return nil, statusErr
	}

	var result upstream.ResearchResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &upstream.Error{Provider: providerName, Op: opResearch, Reason: "malformed response body", Err: err}
	}

	c.logger.InfoContext(ctx, "research completed",
		"model", result.Model,
		"duration", time.Since(started),
		"content_length", len(result.Content()),
		"citations", len(result.Citations),
	)

	return &result, nil
}

func transportError(err error) *upstream.Error {
	return classifyTransport(opResearch, err)
}

func classifyTransport(op string, err error) *upstream.Error {
	classified := upstream.TransportError(providerName, op, err)
	if upstream.IsTimeout(classified) {
		classified.Reason = "Request timed out - Sonar research is taking too long"
	} else {
		classified.Reason = "Network error: " + err.Error()
	}

	return classified
}
