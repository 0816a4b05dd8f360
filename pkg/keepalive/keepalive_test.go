package keepalive

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p, err := New("https://app.example.com/", "", slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/health", p.URL)
	assert.Equal(t, DefaultSchedule, p.Schedule)
	assert.True(t, p.Enabled())

	disabled, err := New("  ", "*/5 * * * *", slog.Default())
	require.NoError(t, err)
	assert.False(t, disabled.Enabled())
	require.NoError(t, disabled.Start(context.Background()))
	disabled.Stop()

	_, err = New("https://app.example.com", "every now and then", slog.Default())
	require.Error(t, err)
}

func TestPinger_Ping(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	p, err := New(server.URL, "", slog.Default())
	require.NoError(t, err)

	require.NoError(t, p.Ping(context.Background()))

	status = http.StatusServiceUnavailable
	require.Error(t, p.Ping(context.Background()))
}

func TestPinger_StartRunsSchedule(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	p, err := New(server.URL, "@every 1s", slog.Default())
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Eventually(t, func() bool { return hits.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
