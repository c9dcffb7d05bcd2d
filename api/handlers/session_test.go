package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bharm16/reelflow/internal/ctxkeys"
	"github.com/bharm16/reelflow/types"
)

// newSessionMux wires a SessionHandler onto the same route patterns the
// server registers, so PathValue extraction is exercised for real.
func newSessionMux(api SessionAPI) *http.ServeMux {
	h := NewSessionHandler(api, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}", h.HandleUpdateSessionMeta)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/settings", h.HandleUpdateSettings)
	mux.HandleFunc("POST /api/v1/sessions/{id}/archive", h.HandleArchiveSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/style-reference", h.HandleSetStyleReference)
	mux.HandleFunc("POST /api/v1/sessions/{id}/scene-proxy", h.HandleCreateSceneProxy)
	mux.HandleFunc("GET /api/v1/sessions/{id}/credits", h.HandleCreditUsage)
	return mux
}

func seedSession(api *fakeSessionAPI, id, userID string) *types.ContinuitySession {
	s := &types.ContinuitySession{
		ID:              id,
		UserID:          userID,
		Name:            "demo",
		Status:          types.SessionStatusActive,
		Version:         1,
		DefaultSettings: types.DefaultSessionSettings(),
	}
	api.put(s)
	return s
}

func TestHandleCreateSession(t *testing.T) {
	api := newFakeSessionAPI()
	mux := newSessionMux(api)

	t.Run("created", func(t *testing.T) {
		body := `{"user_id":"u-1","name":"ep1"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
	})

	t.Run("authenticated user overrides body user_id", func(t *testing.T) {
		body := `{"user_id":"spoofed","name":"ep2"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(ctxkeys.WithUserID(req.Context(), "u-real"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "u-real", data["user_id"])
	})

	t.Run("missing content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"name":""}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	})
}

func TestHandleListSessions(t *testing.T) {
	api := newFakeSessionAPI()
	seedSession(api, "s-1", "u-1")
	seedSession(api, "s-2", "u-1")
	seedSession(api, "s-3", "u-2")
	mux := newSessionMux(api)

	t.Run("scoped by query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?user_id=u-1", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]interface{})
		assert.EqualValues(t, 2, data["count"])
	})

	t.Run("context user wins over query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?user_id=u-1", nil)
		req = req.WithContext(ctxkeys.WithUserID(req.Context(), "u-2"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]interface{})
		assert.EqualValues(t, 1, data["count"])
	})

	t.Run("missing user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGetSession(t *testing.T) {
	api := newFakeSessionAPI()
	seedSession(api, "s-1", "u-1")
	mux := newSessionMux(api)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "s-1", data["id"])
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, "SESSION_NOT_FOUND", resp.Error.Code)
	})
}

func TestHandleUpdateSessionMeta(t *testing.T) {
	api := newFakeSessionAPI()
	seedSession(api, "s-1", "u-1")
	mux := newSessionMux(api)

	body := `{"name":"renamed"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/sessions/s-1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "renamed", data["name"])
	_, hasDescription := data["description"]
	assert.False(t, hasDescription, "description should stay unset")
}

func TestHandleDeleteSession(t *testing.T) {
	api := newFakeSessionAPI()
	seedSession(api, "s-1", "u-1")
	mux := newSessionMux(api)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpdateSettings(t *testing.T) {
	api := newFakeSessionAPI()
	seedSession(api, "s-1", "u-1")
	mux := newSessionMux(api)

	body := `{"continuity_mode":"style-match","style_strength":0.8,"style_threshold":0.9,"max_retries":4,"auto_retry_on_failure":true,"use_scene_proxy":false,"color_grade":true}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/s-1/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	settings := data["default_settings"].(map[string]interface{})
	assert.InDelta(t, 0.8, settings["style_strength"].(float64), 1e-9)
	assert.EqualValues(t, 4, settings["max_retries"])
}

func TestHandleArchiveSession(t *testing.T) {
	api := newFakeSessionAPI()
	seedSession(api, "s-1", "u-1")
	mux := newSessionMux(api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/archive", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, string(types.SessionStatusArchived), data["status"])
}

func TestHandleSetStyleReference(t *testing.T) {
	api := newFakeSessionAPI()
	seedSession(api, "s-1", "u-1")
	mux := newSessionMux(api)

	body := `{"image_url":"https://cdn.example.com/ref.png"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/style-reference", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	ref := data["primary_style_reference"].(map[string]interface{})
	assert.Equal(t, "https://cdn.example.com/ref.png", ref["frame_url"])
}

func TestHandleCreditUsage(t *testing.T) {
	api := newFakeSessionAPI()
	s := seedSession(api, "s-1", "u-1")
	s.Shots = []*types.ContinuityShot{
		{ID: "shot-1", SessionID: "s-1"},
		{ID: "shot-2", SessionID: "s-1"},
	}
	mux := newSessionMux(api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1/credits", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "s-1", data["session_id"])
	assert.InDelta(t, 5.0, data["credits_used"].(float64), 1e-9)
}
