package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a Client at a stub media service and records the
// last request path, auth header, and decoded body.
func newTestClient(t *testing.T, status int, response any) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Path = r.URL.Path
		rec.Auth = r.Header.Get("Authorization")
		rec.Body = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	})
	return client, rec
}

type recordedRequest struct {
	Path string
	Auth string
	Body map[string]any
}

func TestExtractBridgeFrame(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, map[string]any{
		"source_video_id": "vid-1",
		"frame_url":       "https://cdn.example.com/frame.png",
		"timestamp":       11.96,
	})

	bridge, err := client.ExtractBridgeFrame(context.Background(), "u-1", "vid-1", "https://cdn/v.mp4", "shot-1", FramePositionLast)
	require.NoError(t, err)

	assert.Equal(t, "/v1/frames/bridge", rec.Path)
	assert.Equal(t, "Bearer test-key", rec.Auth)
	assert.Equal(t, "last", rec.Body["position"])
	assert.Equal(t, "https://cdn.example.com/frame.png", bridge.FrameURL)
	assert.InDelta(t, 11.96, bridge.Timestamp, 1e-9)
}

func TestStyleSimilarity(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, map[string]any{"score": 0.87})

	score, err := client.StyleSimilarity(context.Background(),
		"https://cdn/frame.png", "https://cdn/ref.png")
	require.NoError(t, err)

	assert.Equal(t, "/v1/similarity/style", rec.Path)
	assert.InDelta(t, 0.87, score, 1e-9)
}

func TestHistogramScorerUsesFallbackEndpoint(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, map[string]any{"score": 0.64})

	score, err := client.Histogram().StyleSimilarity(context.Background(),
		"https://cdn/frame.png", "https://cdn/ref.png")
	require.NoError(t, err)

	assert.Equal(t, "/v1/similarity/histogram", rec.Path)
	assert.InDelta(t, 0.64, score, 1e-9)
}

func TestIdentitySimilarity(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, map[string]any{"score": 0.92})

	score, err := client.IdentitySimilarity(context.Background(),
		"https://cdn/frame.png", "https://cdn/character.png")
	require.NoError(t, err)

	assert.Equal(t, "/v1/similarity/identity", rec.Path)
	assert.InDelta(t, 0.92, score, 1e-9)
}

func TestGenerateStyledKeyframe(t *testing.T) {
	t.Run("returns keyframe URL", func(t *testing.T) {
		client, rec := newTestClient(t, http.StatusOK, map[string]any{
			"keyframe_url": "https://cdn/keyframe.png",
		})

		url, err := client.GenerateStyledKeyframe(context.Background(), KeyframeRequest{
			UserID: "u-1",
			Prompt: "neon alley",
		})
		require.NoError(t, err)
		assert.Equal(t, "/v1/styles/keyframe", rec.Path)
		assert.Equal(t, "https://cdn/keyframe.png", url)
	})

	t.Run("empty output is an error", func(t *testing.T) {
		client, _ := newTestClient(t, http.StatusOK, map[string]any{})
		_, err := client.GenerateStyledKeyframe(context.Background(), KeyframeRequest{})
		assert.ErrorContains(t, err, "no output")
	})
}

func TestServerErrorSurfacesStatusAndBody(t *testing.T) {
	client, _ := newTestClient(t, http.StatusBadGateway, map[string]any{"error": "model offline"})

	_, err := client.StyleSimilarity(context.Background(), "a", "b")
	require.Error(t, err)
	assert.ErrorContains(t, err, "status=502")
	assert.ErrorContains(t, err, "model offline")
}

func TestRenderProxyRequiresProxy(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, map[string]any{})
	_, err := client.RenderProxy(context.Background(), "u-1", nil, "shot-1", nil)
	assert.ErrorContains(t, err, "scene proxy is required")
}
