package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bharm16/reelflow/continuity"
	"github.com/bharm16/reelflow/internal/ctxkeys"
	"github.com/bharm16/reelflow/internal/pool"
	"github.com/bharm16/reelflow/types"
)

// ShotHandler serves the shot endpoints under /api/v1/sessions/{id}/shots.
// Generation runs on a bounded goroutine pool by default; callers that need
// the result inline pass ?wait=true.
type ShotHandler struct {
	svc    SessionAPI
	pool   *pool.GoroutinePool
	logger *zap.Logger
}

// NewShotHandler creates a shot handler backed by the given worker pool.
func NewShotHandler(svc SessionAPI, workers *pool.GoroutinePool, logger *zap.Logger) *ShotHandler {
	return &ShotHandler{
		svc:    svc,
		pool:   workers,
		logger: logger.With(zap.String("component", "shot_handler")),
	}
}

// HandleAddShot serves POST /api/v1/sessions/{id}/shots. The session ID in
// the path wins over any session_id in the body.
func (h *ShotHandler) HandleAddShot(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req continuity.AddShotRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	req.SessionID = r.PathValue("id")

	shot, err := h.svc.AddShot(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteCreated(w, shot)
}

// HandleGetShot serves GET /api/v1/sessions/{id}/shots/{shotID}.
func (h *ShotHandler) HandleGetShot(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	shotID := r.PathValue("shotID")
	shot := session.FindShot(shotID)
	if shot == nil {
		WriteError(w, types.NewError(types.ErrShotNotFound,
			"shot "+shotID+" not found in session "+session.ID), h.logger)
		return
	}
	WriteSuccess(w, shot)
}

// HandleGenerateShot serves POST /api/v1/sessions/{id}/shots/{shotID}/generate.
//
// By default the request is accepted, queued on the worker pool, and answered
// with 202; clients poll the shot for status transitions. With ?wait=true the
// pipeline runs inline and the response carries the finished shot.
func (h *ShotHandler) HandleGenerateShot(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	shotID := r.PathValue("shotID")

	// Reject unknown sessions and shots up front so a 202 is a real promise.
	session, err := h.svc.GetSession(r.Context(), sessionID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	if session.FindShot(shotID) == nil {
		WriteError(w, types.NewError(types.ErrShotNotFound,
			"shot "+shotID+" not found in session "+sessionID), h.logger)
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		shot, err := h.svc.GenerateShot(r.Context(), sessionID, shotID)
		if err != nil {
			WriteServiceError(w, err, h.logger)
			return
		}
		WriteSuccess(w, shot)
		return
	}

	// Detach from the request context: the generation must outlive the
	// HTTP exchange, but keep request-scoped values for log correlation.
	taskCtx := context.WithoutCancel(r.Context())
	requestID, _ := ctxkeys.RequestID(r.Context())

	err = h.pool.Submit(taskCtx, func(ctx context.Context) error {
		_, genErr := h.svc.GenerateShot(ctx, sessionID, shotID)
		if genErr != nil {
			h.logger.Error("background shot generation failed",
				zap.String("session_id", sessionID),
				zap.String("shot_id", shotID),
				zap.String("request_id", requestID),
				zap.Error(genErr),
			)
		}
		return genErr
	})
	if err != nil {
		if errors.Is(err, pool.ErrPoolFull) || errors.Is(err, pool.ErrPoolClosed) {
			WriteError(w, types.NewError(types.ErrStoreUnavailable,
				"generation queue is full, retry later").WithRetryable(true).
				WithHTTPStatus(http.StatusServiceUnavailable), h.logger)
			return
		}
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusAccepted, Response{
		Success: true,
		Data: map[string]string{
			"session_id": sessionID,
			"shot_id":    shotID,
			"status":     "accepted",
		},
		Timestamp: time.Now(),
	})
}
