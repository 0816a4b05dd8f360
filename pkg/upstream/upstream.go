// Package upstream defines the capabilities the orchestrator needs from the
// video platform and the research API, and the payloads they return.
package upstream

import (
	"context"
	"time"
)

// VideoPlatform is the video-understanding collaborator. Every call is keyed
// by the credential supplied by the caller.
type VideoPlatform interface {
	ListIndexes(ctx context.Context, credential string) ([]Index, error)
	ListVideos(ctx context.Context, credential, indexID string) ([]Metadata, error)
	// FetchVideoMetadata returns an error matching ErrNotFound when the
	// platform reports no such video.
	FetchVideoMetadata(ctx context.Context, credential, indexID, videoID string) (*Metadata, error)
	AnalyzeItem(ctx context.Context, credential, videoID, prompt string) (string, error)
}

// Researcher runs research queries. Failures caused by the deadline match
// ErrTimeout.
type Researcher interface {
	RunResearch(ctx context.Context, credential, query string, timeout time.Duration) (*ResearchResult, error)
	// StreamResearch delivers the answer text incrementally to onDelta. An
	// error from onDelta stops the stream and is returned unchanged.
	StreamResearch(ctx context.Context, credential, query string, timeout time.Duration, onDelta func(string) error) error
}

type Index struct {
	ID            string       `json:"_id"`
	Name          string       `json:"index_name"`
	VideoCount    int          `json:"video_count"`
	TotalDuration float64      `json:"total_duration"`
	Models        []IndexModel `json:"models,omitempty"`
	CreatedAt     string       `json:"created_at,omitempty"`
	UpdatedAt     string       `json:"updated_at,omitempty"`
}

type IndexModel struct {
	Name    string   `json:"model_name"`
	Options []string `json:"model_options,omitempty"`
}

// Metadata describes one indexed video.
type Metadata struct {
	ID             string         `json:"_id"`
	IndexID        string         `json:"index_id,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	IndexedAt      string         `json:"indexed_at,omitempty"`
	SystemMetadata SystemMetadata `json:"system_metadata"`
	HLS            *HLS           `json:"hls,omitempty"`
	UserMetadata   map[string]any `json:"user_metadata,omitempty"`
}

type SystemMetadata struct {
	Filename string  `json:"filename,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Size     int64   `json:"size,omitempty"`
}

type HLS struct {
	VideoURL      string   `json:"video_url,omitempty"`
	ThumbnailURLs []string `json:"thumbnail_urls,omitempty"`
	Status        string   `json:"status,omitempty"`
}

// ResearchResult mirrors a chat-completion response from the research API.
type ResearchResult struct {
	ID            string         `json:"id,omitempty"`
	Model         string         `json:"model,omitempty"`
	Created       int64          `json:"created,omitempty"`
	Usage         Usage          `json:"usage"`
	Citations     []string       `json:"citations,omitempty"`
	SearchResults []SearchResult `json:"search_results,omitempty"`
	Choices       []Choice       `json:"choices"`
}

type Usage struct {
	PromptTokens      int    `json:"prompt_tokens"`
	CompletionTokens  int    `json:"completion_tokens"`
	TotalTokens       int    `json:"total_tokens"`
	CitationTokens    int    `json:"citation_tokens,omitempty"`
	NumSearchQueries  int    `json:"num_search_queries,omitempty"`
	ReasoningTokens   int    `json:"reasoning_tokens,omitempty"`
	SearchContextSize string `json:"search_context_size,omitempty"`
}

type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
}

type Choice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Message      ChatMessage `json:"message"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Content returns the text of the first choice.
func (r ResearchResult) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}

	return r.Choices[0].Message.Content
}

// WithContent returns a copy whose first choice carries content. The
// receiver is left untouched.
func (r ResearchResult) WithContent(content string) ResearchResult {
	choices := make([]Choice, len(r.Choices))
	copy(choices, r.Choices)

	if len(choices) == 0 {
		choices = append(choices, Choice{Message: ChatMessage{Role: "assistant"}})
	}

	choices[0].Message.Content = content
	r.Choices = choices

	return r
}

// Capped returns a copy with citations and search results truncated to the
// given maximums. A negative maximum leaves the list untouched.
func (r ResearchResult) Capped(maxCitations, maxSources int) ResearchResult {
	r.Citations = capSlice(r.Citations, maxCitations)
	r.SearchResults = capSlice(r.SearchResults, maxSources)

	return r
}

// CapSources truncates a source list to at most limit entries.
func CapSources(sources []SearchResult, limit int) []SearchResult {
	return capSlice(sources, limit)
}

func capSlice[T any](items []T, limit int) []T {
	if limit < 0 || len(items) <= limit {
		return items
	}

	return items[:limit:limit]
}
