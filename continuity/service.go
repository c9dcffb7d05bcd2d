package continuity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bharm16/reelflow/media"
	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

// CreateSessionRequest creates a new continuity session. Settings fields
// left at zero values fall back to the service defaults.
type CreateSessionRequest struct {
	UserID      string                 `json:"user_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Settings    *types.SessionSettings `json:"settings,omitempty"`

	// Optional initial style anchor: exactly one of these may be set.
	StyleImageURL string `json:"style_image_url,omitempty"`
	StyleVideoID  string `json:"style_video_id,omitempty"`
	StyleVideoURL string `json:"style_video_url,omitempty"`
}

// AddShotRequest appends a shot to a session. The sequence index is
// assigned by the service.
type AddShotRequest struct {
	SessionID         string                   `json:"session_id"`
	UserPrompt        string                   `json:"user_prompt"`
	GenerationMode    types.GenerationMode     `json:"generation_mode,omitempty"`
	ContinuityMode    types.ContinuityMode     `json:"continuity_mode,omitempty"`
	ModelID           string                   `json:"model_id"`
	StyleStrength     float64                  `json:"style_strength,omitempty"`
	CharacterAssetID  string                   `json:"character_asset_id,omitempty"`
	CameraAdjustments *types.CameraAdjustments `json:"camera_adjustments,omitempty"`
	UseSceneProxy     *bool                    `json:"use_scene_proxy,omitempty"`
}

// UpdateSessionMetaRequest renames or re-describes a session. Nil fields
// are left unchanged.
type UpdateSessionMetaRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SessionService is the session-level API surface: CRUD over sessions and
// shots, style-reference and scene-proxy management, and the entry point
// into shot generation. Every mutation goes through the versioned save.
type SessionService struct {
	store     Store
	styles    media.StyleSynthesizer
	post      *PostProcessor
	generator *ShotGenerator
	logger    *zap.Logger
}

// NewSessionService creates a session service.
func NewSessionService(store Store, styles media.StyleSynthesizer, post *PostProcessor, generator *ShotGenerator, logger *zap.Logger) *SessionService {
	return &SessionService{
		store:     store,
		styles:    styles,
		post:      post,
		generator: generator,
		logger:    logger.With(zap.String("component", "session_service")),
	}
}

// CreateSession creates and persists a new session. When the request names
// a style source, a style reference is built from it before the first
// save; a failure there fails creation since the session would be useless
// without its anchor.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (*types.ContinuitySession, error) {
	if req.UserID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "user_id is required").WithHTTPStatus(400)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "session name is required").WithHTTPStatus(400)
	}

	settings := types.DefaultSessionSettings()
	if req.Settings != nil {
		settings = mergeSettings(settings, *req.Settings)
	}

	now := time.Now()
	session := &types.ContinuitySession{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Name:            req.Name,
		Description:     req.Description,
		Shots:           []*types.ContinuityShot{},
		DefaultSettings: settings,
		Status:          types.SessionStatusActive,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch {
	case req.StyleImageURL != "":
		ref, err := s.styles.CreateFromImage(ctx, req.UserID, req.StyleImageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create style reference: %w", err)
		}
		session.PrimaryStyleReference = ref
	case req.StyleVideoID != "":
		ref, err := s.styles.CreateFromVideo(ctx, req.UserID, req.StyleVideoID, req.StyleVideoURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create style reference: %w", err)
		}
		session.PrimaryStyleReference = ref
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID),
	)
	return session, nil
}

// GetSession loads one session.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*types.ContinuitySession, error) {
	return s.store.Get(ctx, sessionID)
}

// ListSessions returns all of a user's sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]*types.ContinuitySession, error) {
	if userID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "user_id is required").WithHTTPStatus(400)
	}
	return s.store.List(ctx, userID)
}

// AddShot appends a draft shot to the session with the next sequence
// index. The shot does not generate until GenerateShot is called for it.
func (s *SessionService) AddShot(ctx context.Context, req AddShotRequest) (*types.ContinuityShot, error) {
	if strings.TrimSpace(req.UserPrompt) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "user_prompt is required").WithHTTPStatus(400)
	}
	if req.ModelID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "model_id is required").WithHTTPStatus(400)
	}
	if providers.FromModel(req.ModelID) == "" {
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("no provider registered for model %q", req.ModelID)).WithHTTPStatus(400)
	}

	mode := req.GenerationMode
	if mode == "" {
		mode = types.GenerationModeContinuity
	}

	var shot *types.ContinuityShot
	err := s.mutate(ctx, req.SessionID, func(session *types.ContinuitySession) error {
		shot = &types.ContinuityShot{
			ID:                uuid.NewString(),
			SessionID:         session.ID,
			SequenceIndex:     session.NextSequenceIndex(),
			UserPrompt:        req.UserPrompt,
			GenerationMode:    mode,
			ContinuityMode:    req.ContinuityMode,
			StyleStrength:     req.StyleStrength,
			ModelID:           req.ModelID,
			CharacterAssetID:  req.CharacterAssetID,
			CameraAdjustments: req.CameraAdjustments,
			UseSceneProxy:     req.UseSceneProxy,
			Status:            types.ShotStatusDraft,
			CreatedAt:         time.Now(),
		}
		session.Shots = append(session.Shots, shot)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shot, nil
}

// UpdateSettings replaces the session's generation defaults.
func (s *SessionService) UpdateSettings(ctx context.Context, sessionID string, settings types.SessionSettings) (*types.ContinuitySession, error) {
	if settings.MaxRetries < 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "max_retries must not be negative").WithHTTPStatus(400)
	}
	if settings.StyleThreshold < 0 || settings.StyleThreshold > 1 {
		return nil, types.NewError(types.ErrInvalidRequest, "style_threshold must be in [0,1]").WithHTTPStatus(400)
	}

	return s.mutateSession(ctx, sessionID, func(session *types.ContinuitySession) error {
		session.DefaultSettings = mergeSettings(session.DefaultSettings, settings)
		return nil
	})
}

// UpdateSessionMeta renames or re-describes a session.
func (s *SessionService) UpdateSessionMeta(ctx context.Context, sessionID string, req UpdateSessionMetaRequest) (*types.ContinuitySession, error) {
	return s.mutateSession(ctx, sessionID, func(session *types.ContinuitySession) error {
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return types.NewError(types.ErrInvalidRequest, "session name must not be empty").WithHTTPStatus(400)
			}
			session.Name = *req.Name
		}
		if req.Description != nil {
			session.Description = *req.Description
		}
		return nil
	})
}

// SetStyleReference replaces the session's primary style reference with
// one built from an image or video source.
func (s *SessionService) SetStyleReference(ctx context.Context, sessionID, imageURL, videoID, videoURL string) (*types.ContinuitySession, error) {
	var ref *types.StyleReference
	var err error
	switch {
	case imageURL != "":
		ref, err = s.styles.CreateFromImage(ctx, "", imageURL)
	case videoID != "":
		ref, err = s.styles.CreateFromVideo(ctx, "", videoID, videoURL)
	default:
		return nil, types.NewError(types.ErrInvalidRequest, "a style image or video source is required").WithHTTPStatus(400)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create style reference: %w", err)
	}

	return s.mutateSession(ctx, sessionID, func(session *types.ContinuitySession) error {
		session.PrimaryStyleReference = ref
		return nil
	})
}

// CreateSceneProxy starts building a scene proxy from a source video and
// attaches it to the session. The proxy begins in the building state; the
// media pipeline flips it to ready asynchronously.
func (s *SessionService) CreateSceneProxy(ctx context.Context, sessionID, videoID, videoURL string) (*types.ContinuitySession, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	proxy, err := s.post.CreateSceneProxyFromVideo(ctx, session.UserID, videoID, videoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create scene proxy: %w", err)
	}

	return s.mutateSession(ctx, sessionID, func(session *types.ContinuitySession) error {
		session.SceneProxy = proxy
		return nil
	})
}

// ArchiveSession marks a session archived. Archived sessions remain
// readable but reject new shots.
func (s *SessionService) ArchiveSession(ctx context.Context, sessionID string) (*types.ContinuitySession, error) {
	return s.mutateSession(ctx, sessionID, func(session *types.ContinuitySession) error {
		session.Status = types.SessionStatusArchived
		return nil
	})
}

// DeleteSession removes a session permanently.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// GenerateShot runs the generation state machine for a shot.
func (s *SessionService) GenerateShot(ctx context.Context, sessionID, shotID string) (*types.ContinuityShot, error) {
	return s.generator.GenerateShot(ctx, sessionID, shotID)
}

// CreditUsage reports the credits consumed by a session so far.
func (s *SessionService) CreditUsage(ctx context.Context, sessionID string) (float64, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return SessionCreditUsage(session), nil
}

// mutate applies fn to the session and saves with the loaded version,
// retrying once on a concurrent-writer conflict by reloading and
// reapplying. A second conflict surfaces.
func (s *SessionService) mutate(ctx context.Context, sessionID string, fn func(*types.ContinuitySession) error) error {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == types.SessionStatusArchived {
		return types.NewError(types.ErrInvalidRequest, "session is archived").WithHTTPStatus(409)
	}
	if err := fn(session); err != nil {
		return err
	}

	_, err = s.store.SaveWithVersion(ctx, session, session.Version)
	if err == nil {
		return nil
	}
	if !types.IsVersionMismatch(err) {
		return err
	}

	fresh, gerr := s.store.Get(ctx, sessionID)
	if gerr != nil {
		return gerr
	}
	if err := fn(fresh); err != nil {
		return err
	}
	_, err = s.store.SaveWithVersion(ctx, fresh, fresh.Version)
	return err
}

// mutateSession is mutate returning the saved session.
func (s *SessionService) mutateSession(ctx context.Context, sessionID string, fn func(*types.ContinuitySession) error) (*types.ContinuitySession, error) {
	if err := s.mutate(ctx, sessionID, fn); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, sessionID)
}

// mergeSettings overlays non-zero fields of override onto base. Booleans
// are taken from override unconditionally since false is a meaningful
// choice for all three flags.
func mergeSettings(base, override types.SessionSettings) types.SessionSettings {
	out := base
	if override.ContinuityMode != "" {
		out.ContinuityMode = override.ContinuityMode
	}
	if override.StyleStrength > 0 {
		out.StyleStrength = override.StyleStrength
	}
	if override.StyleThreshold > 0 {
		out.StyleThreshold = override.StyleThreshold
	}
	if override.IdentityThreshold > 0 {
		out.IdentityThreshold = override.IdentityThreshold
	}
	if override.MaxRetries > 0 {
		out.MaxRetries = override.MaxRetries
	}
	out.AutoRetryOnFailure = override.AutoRetryOnFailure
	out.UseSceneProxy = override.UseSceneProxy
	out.ColorGrade = override.ColorGrade
	if override.AspectRatio != "" {
		out.AspectRatio = override.AspectRatio
	}
	if override.Resolution != "" {
		out.Resolution = override.Resolution
	}
	return out
}
