package continuity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bharm16/reelflow/media"
	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

// memStore is an in-memory Store with the same versioning contract as the
// real one: SaveWithVersion compares the stored version, bumps by exactly
// one, and returns VersionMismatchError on a stale expectation. Sessions
// are deep-copied through JSON on every read and write so tests observe
// persistence semantics rather than shared pointers.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*types.ContinuitySession
	saves    int

	// beforeSave, when set, runs under the lock just before the version
	// check. Tests use it to inject a concurrent writer.
	beforeSave func(stored *types.ContinuitySession)
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*types.ContinuitySession{}}
}

func cloneSession(s *types.ContinuitySession) *types.ContinuitySession {
	data, _ := json.Marshal(s)
	var out types.ContinuitySession
	_ = json.Unmarshal(data, &out)
	return &out
}

func (m *memStore) Create(_ context.Context, session *types.ContinuitySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *memStore) Get(_ context.Context, sessionID string) (*types.ContinuitySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[sessionID]
	if !ok {
		return nil, types.NewError(types.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID)).WithHTTPStatus(404)
	}
	return cloneSession(stored), nil
}

func (m *memStore) List(_ context.Context, userID string) ([]*types.ContinuitySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.ContinuitySession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (m *memStore) SaveWithVersion(_ context.Context, session *types.ContinuitySession, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[session.ID]
	if !ok {
		return 0, types.NewError(types.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", session.ID)).WithHTTPStatus(404)
	}
	if m.beforeSave != nil {
		m.beforeSave(stored)
	}
	if stored.Version != expectedVersion {
		return 0, &types.VersionMismatchError{
			SessionID:       session.ID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   stored.Version,
		}
	}

	m.saves++
	next := cloneSession(session)
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now()
	m.sessions[session.ID] = next
	session.Version = next.Version
	return next.Version, nil
}

func (m *memStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return types.NewError(types.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID)).WithHTTPStatus(404)
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *memStore) storedVersion(sessionID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID].Version
}

// fakeGenerator records every Generate call and replays queued results.
type fakeGenerator struct {
	name    string
	mu      sync.Mutex
	calls   []providers.GenerationOptions
	prompts []string
	results []*providers.GenerationResult
	err     error

	videoURLs     map[string]string
	characterURLs map[string]string

	// onGenerate, when set, runs at the start of every Generate call.
	// Tests use it to observe store state while a generation is in
	// flight.
	onGenerate func()
}

func newFakeGenerator(name string) *fakeGenerator {
	return &fakeGenerator{
		name:          name,
		videoURLs:     map[string]string{},
		characterURLs: map[string]string{},
	}
}

func (f *fakeGenerator) queue(results ...*providers.GenerationResult) {
	f.results = append(f.results, results...)
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, opts providers.GenerationOptions) (*providers.GenerationResult, error) {
	if f.onGenerate != nil {
		f.onGenerate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &providers.GenerationResult{
			AssetID:  fmt.Sprintf("%s-asset-%d", f.name, len(f.calls)),
			VideoURL: fmt.Sprintf("https://videos.test/%s/%d.mp4", f.name, len(f.calls)),
		}, nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result, nil
}

func (f *fakeGenerator) VideoURL(_ context.Context, assetID string) (string, error) {
	if url, ok := f.videoURLs[assetID]; ok {
		return url, nil
	}
	return "", nil
}

func (f *fakeGenerator) CharacterReferenceURL(_ context.Context, assetID string) (string, error) {
	if url, ok := f.characterURLs[assetID]; ok {
		return url, nil
	}
	return "", fmt.Errorf("character asset %s not found", assetID)
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeFrames serves canned bridge and representative frames.
type fakeFrames struct {
	bridgeErr error
	repErr    error
	bridges   int
}

func (f *fakeFrames) ExtractBridgeFrame(_ context.Context, _, videoID, _, _ string, _ media.FramePosition) (*types.FrameBridge, error) {
	if f.bridgeErr != nil {
		return nil, f.bridgeErr
	}
	f.bridges++
	return &types.FrameBridge{
		ID: fmt.Sprintf("bridge-%d", f.bridges),
		ExtractedFrame: types.ExtractedFrame{
			SourceVideoID: videoID,
			FrameURL:      fmt.Sprintf("https://frames.test/bridge-%d.png", f.bridges),
			ExtractedAt:   time.Now(),
		},
	}, nil
}

func (f *fakeFrames) ExtractRepresentativeFrame(_ context.Context, _, videoID, videoURL, _ string) (*types.StyleReference, error) {
	if f.repErr != nil {
		return nil, f.repErr
	}
	return &types.StyleReference{
		ID: "rep-" + videoID,
		ExtractedFrame: types.ExtractedFrame{
			SourceVideoID: videoID,
			FrameURL:      videoURL + "#frame",
			ExtractedAt:   time.Now(),
		},
	}, nil
}

// fakeStyles synthesizes deterministic style references and keyframes.
type fakeStyles struct {
	keyframes   int
	keyframeErr error
	createErr   error
}

func (f *fakeStyles) CreateFromVideo(_ context.Context, _, videoID, _ string) (*types.StyleReference, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &types.StyleReference{
		ID: "style-" + videoID,
		ExtractedFrame: types.ExtractedFrame{
			SourceVideoID: videoID,
			FrameURL:      "https://frames.test/style-" + videoID + ".png",
			ExtractedAt:   time.Now(),
		},
	}, nil
}

func (f *fakeStyles) CreateFromImage(_ context.Context, _, imageURL string) (*types.StyleReference, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &types.StyleReference{
		ID:             "style-image",
		ExtractedFrame: types.ExtractedFrame{FrameURL: imageURL, ExtractedAt: time.Now()},
	}, nil
}

func (f *fakeStyles) GenerateStyledKeyframe(_ context.Context, _ media.KeyframeRequest) (string, error) {
	if f.keyframeErr != nil {
		return "", f.keyframeErr
	}
	f.keyframes++
	return fmt.Sprintf("https://frames.test/keyframe-%d.png", f.keyframes), nil
}

// fakeScorer replays a queue of scores; once the queue drains it repeats
// the last one.
type fakeScorer struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeScorer) StyleSimilarity(_ context.Context, _, _ string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.scores) == 0 {
		return 1.0, nil
	}
	score := f.scores[0]
	if len(f.scores) > 1 {
		f.scores = f.scores[1:]
	}
	return score, nil
}

type fakeIdentity struct {
	score float64
	err   error
}

func (f *fakeIdentity) IdentitySimilarity(_ context.Context, _, _ string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.score, nil
}

type fakePalette struct {
	applied bool
	err     error
	calls   int
}

func (f *fakePalette) MatchPalette(_ context.Context, assetID, _ string) (*media.PaletteResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if !f.applied {
		return &media.PaletteResult{Applied: false}, nil
	}
	return &media.PaletteResult{
		Applied:  true,
		AssetID:  assetID + "-graded",
		VideoURL: "https://videos.test/" + assetID + "-graded.mp4",
	}, nil
}

func (f *fakePalette) MatchImagePalette(_ context.Context, _, sourceURL, _ string) (*media.PaletteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &media.PaletteResult{Applied: f.applied, VideoURL: sourceURL}, nil
}

type fakeProxies struct {
	renderErr error
	renders   int
	deltas    []map[string]float64
}

func (f *fakeProxies) RenderProxy(_ context.Context, _ string, _ *types.SceneProxy, _ string, deltas map[string]float64) (string, error) {
	if f.renderErr != nil {
		return "", f.renderErr
	}
	f.renders++
	f.deltas = append(f.deltas, deltas)
	return fmt.Sprintf("https://frames.test/proxy-render-%d.png", f.renders), nil
}

func (f *fakeProxies) CreateProxyFromVideo(_ context.Context, _, videoID, _ string) (*types.SceneProxy, error) {
	return &types.SceneProxy{
		ID:            "proxy-" + videoID,
		SourceVideoID: videoID,
		ProxyType:     types.SceneProxyTypeParallax,
		Status:        types.SceneProxyBuilding,
	}, nil
}
