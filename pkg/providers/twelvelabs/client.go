// Package twelvelabs implements upstream.VideoPlatform against the TwelveLabs REST API.
package twelvelabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
)

const (
	DefaultBaseURL = "https://api.twelvelabs.io/v1.3"
	providerName   = "twelvelabs"
	pageLimit      = 50
)

var _ upstream.VideoPlatform = (*Client)(nil)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout applies to each call when HTTPClient is nil.
	Timeout time.Duration
	Logger  *slog.Logger
}

type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}

		client = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		client:  client,
		logger:  logger.With("provider", providerName),
	}
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

func (c *Client) ListIndexes(ctx context.Context, credential string) ([]upstream.Index, error) {
	var envelope listEnvelope[upstream.Index]

	query := url.Values{"page_limit": {fmt.Sprint(pageLimit)}}
	if err := c.get(ctx, credential, "list_indexes", "/indexes?"+query.Encode(), &envelope); err != nil {
		return nil, err
	}

	if envelope.Data == nil {
		return []upstream.Index{}, nil
	}

	return envelope.Data, nil
}

func (c *Client) ListVideos(ctx context.Context, credential, indexID string) ([]upstream.Metadata, error) {
	var envelope listEnvelope[upstream.Metadata]

	query := url.Values{"page_limit": {fmt.Sprint(pageLimit)}}
	path := "/indexes/" + url.PathEscape(indexID) + "/videos?" + query.Encode()

	if err := c.get(ctx, credential, "list_videos", path, &envelope); err != nil {
		return nil, err
	}

	if envelope.Data == nil {
		return []upstream.Metadata{}, nil
	}

	for i := range envelope.Data {
		if envelope.Data[i].IndexID == "" {
			envelope.Data[i].IndexID = indexID
		}
	}

	return envelope.Data, nil
}

func (c *Client) FetchVideoMetadata(ctx context.Context, credential, indexID, videoID string) (*upstream.Metadata, error) {
	var metadata upstream.Metadata

	path := "/indexes/" + url.PathEscape(indexID) + "/videos/" + url.PathEscape(videoID)
	if err := c.get(ctx, credential, "get_video", path, &metadata); err != nil {
		return nil, err
	}

	if metadata.ID == "" {
		metadata.ID = videoID
	}

	if metadata.IndexID == "" {
		metadata.IndexID = indexID
	}

	return &metadata, nil
}

type analyzeRequest struct {
	VideoID string `json:"video_id"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
}

type analyzeResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

func (c *Client) AnalyzeItem(ctx context.Context, credential, videoID, prompt string) (string, error) {
	body, err := json.Marshal(analyzeRequest{VideoID: videoID, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode analyze request: %w", err)
	}

	var response analyzeResponse
	if err := c.do(ctx, credential, "analyze", http.MethodPost, "/analyze", body, &response); err != nil {
		return "", err
	}

	if strings.TrimSpace(response.Data) == "" {
		return "", &upstream.Error{Provider: providerName, Op: "analyze", Reason: "analysis returned no text", Err: upstream.ErrEmptyResponse}
	}

	return response.Data, nil
}

func (c *Client) get(ctx context.Context, credential, op, path string, out any) error {
	return c.do(ctx, credential, op, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, credential, op, method, path string, body []byte, out any) error {
	if credential == "" {
		return &upstream.Error{Provider: providerName, Op: op, Reason: "TwelveLabs API key is required", Err: upstream.ErrMissingCredential}
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", credential)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return upstream.TransportError(providerName, op, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return upstream.TransportError(providerName, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "request rejected", "op", op, "status", resp.StatusCode)

		return upstream.StatusError(providerName, op, resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &upstream.Error{Provider: providerName, Op: op, Reason: "malformed response body", Err: err}
	}

	return nil
}
