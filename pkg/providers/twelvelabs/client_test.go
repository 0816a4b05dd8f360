package twelvelabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Options{BaseURL: server.URL, HTTPClient: server.Client()})
}

func TestClient_FetchVideoMetadata(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/indexes/idx-1/videos/vid-9", r.URL.Path)
		assert.Equal(t, "tlk_key", r.Header.Get("x-api-key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"vid-9","system_metadata":{"filename":"talk.mp4","duration":120.5,"fps":30,"width":1920,"height":1080},"hls":{"video_url":"https://cdn/x.m3u8"}}`))
	})

	metadata, err := client.FetchVideoMetadata(context.Background(), "tlk_key", "idx-1", "vid-9")
	require.NoError(t, err)
	assert.Equal(t, "vid-9", metadata.ID)
	assert.Equal(t, "idx-1", metadata.IndexID)
	assert.Equal(t, "talk.mp4", metadata.SystemMetadata.Filename)
	assert.InDelta(t, 120.5, metadata.SystemMetadata.Duration, 0.001)
	require.NotNil(t, metadata.HLS)
	assert.Equal(t, "https://cdn/x.m3u8", metadata.HLS.VideoURL)
}

func TestClient_FetchVideoMetadata_NotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"video_not_found","message":"video does not exist"}`))
	})

	metadata, err := client.FetchVideoMetadata(context.Background(), "tlk_key", "idx-1", "missing")
	require.Error(t, err)
	assert.Nil(t, metadata)
	assert.True(t, upstream.IsNotFound(err))
}

func TestClient_MissingCredential(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.ListIndexes(context.Background(), "")
	require.ErrorIs(t, err, upstream.ErrMissingCredential)
	assert.Zero(t, calls.Load())
}

func TestClient_ListIndexes(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("page_limit"))
		_, _ = w.Write([]byte(`{"data":[{"_id":"idx-1","index_name":"talks","video_count":3}]}`))
	})

	indexes, err := client.ListIndexes(context.Background(), "tlk_key")
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "talks", indexes[0].Name)
	assert.Equal(t, 3, indexes[0].VideoCount)
}

func TestClient_ListVideos_EmptyIsNotNil(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/idx-1/videos", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":null}`))
	})

	videos, err := client.ListVideos(context.Background(), "tlk_key", "idx-1")
	require.NoError(t, err)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}

func TestClient_AnalyzeItem(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)

		var body analyzeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vid-9", body.VideoID)
		assert.Equal(t, "Describe what happens in this video", body.Prompt)
		assert.False(t, body.Stream)

		_, _ = w.Write([]byte(`{"id":"gen-1","data":"A speaker explains Go channels."}`))
	})

	text, err := client.AnalyzeItem(context.Background(), "tlk_key", "vid-9", "Describe what happens in this video")
	require.NoError(t, err)
	assert.Equal(t, "A speaker explains Go channels.", text)
}

func TestClient_AnalyzeItem_EmptyText(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"gen-1","data":"   "}`))
	})

	_, err := client.AnalyzeItem(context.Background(), "tlk_key", "vid-9", "prompt")
	require.ErrorIs(t, err, upstream.ErrEmptyResponse)
}

func TestClient_RejectedKeyIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Options{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})

	_, err := client.ListIndexes(context.Background(), "bad")
	require.Error(t, err)
	assert.Equal(t, "invalid api key (status 401)", upstream.Message(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	client := NewClient(Options{BaseURL: server.URL, HTTPClient: &http.Client{Timeout: 50 * time.Millisecond}})

	_, err := client.FetchVideoMetadata(context.Background(), "tlk_key", "idx", "vid")
	require.Error(t, err)
	assert.True(t, upstream.IsTimeout(err))
}
