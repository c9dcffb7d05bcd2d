package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/bharm16/reelflow/continuity"
	"github.com/bharm16/reelflow/internal/ctxkeys"
	"github.com/bharm16/reelflow/types"
)

// SessionAPI is the slice of the session service the HTTP layer needs.
// *continuity.SessionService satisfies it.
type SessionAPI interface {
	CreateSession(ctx context.Context, req continuity.CreateSessionRequest) (*types.ContinuitySession, error)
	GetSession(ctx context.Context, sessionID string) (*types.ContinuitySession, error)
	ListSessions(ctx context.Context, userID string) ([]*types.ContinuitySession, error)
	AddShot(ctx context.Context, req continuity.AddShotRequest) (*types.ContinuityShot, error)
	UpdateSettings(ctx context.Context, sessionID string, settings types.SessionSettings) (*types.ContinuitySession, error)
	UpdateSessionMeta(ctx context.Context, sessionID string, req continuity.UpdateSessionMetaRequest) (*types.ContinuitySession, error)
	SetStyleReference(ctx context.Context, sessionID, imageURL, videoID, videoURL string) (*types.ContinuitySession, error)
	CreateSceneProxy(ctx context.Context, sessionID, videoID, videoURL string) (*types.ContinuitySession, error)
	ArchiveSession(ctx context.Context, sessionID string) (*types.ContinuitySession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GenerateShot(ctx context.Context, sessionID, shotID string) (*types.ContinuityShot, error)
	CreditUsage(ctx context.Context, sessionID string) (float64, error)
}

// SessionHandler serves the /api/v1/sessions endpoints.
type SessionHandler struct {
	svc    SessionAPI
	logger *zap.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(svc SessionAPI, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		svc:    svc,
		logger: logger.With(zap.String("component", "session_handler")),
	}
}

// HandleCreateSession serves POST /api/v1/sessions.
func (h *SessionHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req continuity.CreateSessionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// An authenticated caller creates sessions for itself.
	if userID, ok := ctxkeys.UserID(r.Context()); ok {
		req.UserID = userID
	}

	session, err := h.svc.CreateSession(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteCreated(w, session)
}

// HandleListSessions serves GET /api/v1/sessions. The user scope comes from
// the authenticated context, falling back to the user_id query parameter.
func (h *SessionHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxkeys.UserID(r.Context())
	if !ok {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"user_id is required", h.logger)
		return
	}

	sessions, err := h.svc.ListSessions(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// HandleGetSession serves GET /api/v1/sessions/{id}.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, session)
}

// HandleUpdateSessionMeta serves PATCH /api/v1/sessions/{id}.
func (h *SessionHandler) HandleUpdateSessionMeta(w http.ResponseWriter, r *http.Request) {
	var req continuity.UpdateSessionMetaRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	session, err := h.svc.UpdateSessionMeta(r.Context(), r.PathValue("id"), req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, session)
}

// HandleDeleteSession serves DELETE /api/v1/sessions/{id}.
func (h *SessionHandler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateSettings serves PUT /api/v1/sessions/{id}/settings. The body
// replaces the session defaults wholesale; unset fields fall back to the
// system defaults inside the service.
func (h *SessionHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings types.SessionSettings
	if err := DecodeJSONBody(w, r, &settings, h.logger); err != nil {
		return
	}

	session, err := h.svc.UpdateSettings(r.Context(), r.PathValue("id"), settings)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, session)
}

// HandleArchiveSession serves POST /api/v1/sessions/{id}/archive.
func (h *SessionHandler) HandleArchiveSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.ArchiveSession(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, session)
}

// StyleReferenceRequest sets or replaces a session's style anchor. Exactly
// one of the fields must be set.
type StyleReferenceRequest struct {
	ImageURL string `json:"image_url,omitempty"`
	VideoID  string `json:"video_id,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

// HandleSetStyleReference serves POST /api/v1/sessions/{id}/style-reference.
func (h *SessionHandler) HandleSetStyleReference(w http.ResponseWriter, r *http.Request) {
	var req StyleReferenceRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	session, err := h.svc.SetStyleReference(r.Context(), r.PathValue("id"),
		req.ImageURL, req.VideoID, req.VideoURL)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, session)
}

// SceneProxyRequest kicks off scene-proxy creation from a source video.
type SceneProxyRequest struct {
	VideoID  string `json:"video_id,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

// HandleCreateSceneProxy serves POST /api/v1/sessions/{id}/scene-proxy.
func (h *SessionHandler) HandleCreateSceneProxy(w http.ResponseWriter, r *http.Request) {
	var req SceneProxyRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	session, err := h.svc.CreateSceneProxy(r.Context(), r.PathValue("id"),
		req.VideoID, req.VideoURL)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, session)
}

// HandleCreditUsage serves GET /api/v1/sessions/{id}/credits.
func (h *SessionHandler) HandleCreditUsage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	credits, err := h.svc.CreditUsage(r.Context(), sessionID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"session_id":   sessionID,
		"credits_used": credits,
	})
}
