package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = ":0"
	return NewManager(handler, cfg, zap.NewNop())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestManagerServesRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	m := newTestManager(t, mux)
	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	addr := m.listener.Addr().String()
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManagerLifecycle(t *testing.T) {
	t.Run("double start fails", func(t *testing.T) {
		m := newTestManager(t, http.NewServeMux())
		require.NoError(t, m.Start())
		t.Cleanup(func() { m.Shutdown(context.Background()) })

		err := m.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already started")
	})

	t.Run("shutdown is idempotent", func(t *testing.T) {
		m := newTestManager(t, http.NewServeMux())
		require.NoError(t, m.Start())

		require.NoError(t, m.Shutdown(context.Background()))
		require.NoError(t, m.Shutdown(context.Background()))
	})

	t.Run("start after shutdown fails", func(t *testing.T) {
		m := newTestManager(t, http.NewServeMux())
		require.NoError(t, m.Start())
		require.NoError(t, m.Shutdown(context.Background()))

		err := m.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")
	})

	t.Run("running state tracks lifecycle", func(t *testing.T) {
		m := newTestManager(t, http.NewServeMux())
		assert.True(t, m.IsRunning())

		require.NoError(t, m.Start())
		assert.True(t, m.IsRunning())

		require.NoError(t, m.Shutdown(context.Background()))
		assert.False(t, m.IsRunning())
	})
}

func TestManagerErrorsChannelQuietAtRest(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())

	ch := m.Errors()
	require.NotNil(t, ch)
	select {
	case err := <-ch:
		t.Fatalf("unexpected error before start: %v", err)
	default:
	}
}

func TestManagerAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ":9100"
	m := NewManager(http.NewServeMux(), cfg, zap.NewNop())
	assert.Equal(t, ":9100", m.Addr())
}
