package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/bharm16/reelflow/continuity"
	"github.com/bharm16/reelflow/types"
)

// fakeSessionAPI is an in-memory SessionAPI for handler tests. Every
// method can be overridden per test through the corresponding func field;
// unset fields fall back to a map-backed default.
type fakeSessionAPI struct {
	mu       sync.Mutex
	sessions map[string]*types.ContinuitySession

	generateFn func(ctx context.Context, sessionID, shotID string) (*types.ContinuityShot, error)
	generated  []string
}

func newFakeSessionAPI() *fakeSessionAPI {
	return &fakeSessionAPI{sessions: map[string]*types.ContinuitySession{}}
}

func (f *fakeSessionAPI) put(s *types.ContinuitySession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func notFound(sessionID string) error {
	return types.NewError(types.ErrSessionNotFound,
		fmt.Sprintf("session %s not found", sessionID))
}

func (f *fakeSessionAPI) CreateSession(_ context.Context, req continuity.CreateSessionRequest) (*types.ContinuitySession, error) {
	if req.UserID == "" || req.Name == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "user_id and name are required")
	}
	s := &types.ContinuitySession{
		ID:              "sess-" + req.Name,
		UserID:          req.UserID,
		Name:            req.Name,
		Description:     req.Description,
		Status:          types.SessionStatusActive,
		Version:         1,
		DefaultSettings: types.DefaultSessionSettings(),
		Shots:           []*types.ContinuityShot{},
	}
	f.put(s)
	return s, nil
}

func (f *fakeSessionAPI) GetSession(_ context.Context, sessionID string) (*types.ContinuitySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, notFound(sessionID)
	}
	return s, nil
}

func (f *fakeSessionAPI) ListSessions(_ context.Context, userID string) ([]*types.ContinuitySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.ContinuitySession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionAPI) AddShot(_ context.Context, req continuity.AddShotRequest) (*types.ContinuityShot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[req.SessionID]
	if !ok {
		return nil, notFound(req.SessionID)
	}
	if req.UserPrompt == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "user_prompt is required")
	}
	shot := &types.ContinuityShot{
		ID:            fmt.Sprintf("shot-%d", len(s.Shots)+1),
		SessionID:     s.ID,
		SequenceIndex: s.NextSequenceIndex(),
		UserPrompt:    req.UserPrompt,
		ModelID:       req.ModelID,
		Status:        types.ShotStatusDraft,
	}
	s.Shots = append(s.Shots, shot)
	return shot, nil
}

func (f *fakeSessionAPI) UpdateSettings(ctx context.Context, sessionID string, settings types.SessionSettings) (*types.ContinuitySession, error) {
	s, err := f.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.DefaultSettings = settings
	return s, nil
}

func (f *fakeSessionAPI) UpdateSessionMeta(ctx context.Context, sessionID string, req continuity.UpdateSessionMetaRequest) (*types.ContinuitySession, error) {
	s, err := f.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.Description != nil {
		s.Description = *req.Description
	}
	return s, nil
}

func (f *fakeSessionAPI) SetStyleReference(ctx context.Context, sessionID, imageURL, videoID, videoURL string) (*types.ContinuitySession, error) {
	s, err := f.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.PrimaryStyleReference = &types.StyleReference{
		ID:             "ref-1",
		ExtractedFrame: types.ExtractedFrame{FrameURL: imageURL},
	}
	return s, nil
}

func (f *fakeSessionAPI) CreateSceneProxy(ctx context.Context, sessionID, videoID, videoURL string) (*types.ContinuitySession, error) {
	return f.GetSession(ctx, sessionID)
}

func (f *fakeSessionAPI) ArchiveSession(ctx context.Context, sessionID string) (*types.ContinuitySession, error) {
	s, err := f.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.Status = types.SessionStatusArchived
	return s, nil
}

func (f *fakeSessionAPI) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return notFound(sessionID)
	}
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeSessionAPI) GenerateShot(ctx context.Context, sessionID, shotID string) (*types.ContinuityShot, error) {
	f.mu.Lock()
	f.generated = append(f.generated, sessionID+"/"+shotID)
	fn := f.generateFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, sessionID, shotID)
	}

	s, err := f.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	shot := s.FindShot(shotID)
	if shot == nil {
		return nil, types.NewError(types.ErrShotNotFound,
			fmt.Sprintf("shot %s not found", shotID))
	}
	shot.Status = types.ShotStatusCompleted
	return shot, nil
}

func (f *fakeSessionAPI) CreditUsage(ctx context.Context, sessionID string) (float64, error) {
	s, err := f.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return float64(len(s.Shots)) * 2.5, nil
}

func (f *fakeSessionAPI) generatedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.generated))
	copy(out, f.generated)
	return out
}
