package continuity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

type genFixture struct {
	store   *memStore
	runway  *fakeGenerator
	luma    *fakeGenerator
	pika    *fakeGenerator
	frames  *fakeFrames
	styles  *fakeStyles
	embed   *fakeScorer
	hist    *fakeScorer
	ident   *fakeIdentity
	palette *fakePalette
	proxies *fakeProxies
	sg      *ShotGenerator
}

func newGenFixture(t *testing.T) *genFixture {
	t.Helper()
	logger := zap.NewNop()

	f := &genFixture{
		store:   newMemStore(),
		runway:  newFakeGenerator(providers.ProviderRunway),
		luma:    newFakeGenerator(providers.ProviderLuma),
		pika:    newFakeGenerator(providers.ProviderPika),
		frames:  &fakeFrames{},
		styles:  &fakeStyles{},
		embed:   &fakeScorer{},
		hist:    &fakeScorer{},
		ident:   &fakeIdentity{score: 0.95},
		palette: &fakePalette{},
		proxies: &fakeProxies{},
	}

	gate := NewQualityGate(f.frames, f.embed, f.hist, f.ident, logger)
	post := NewPostProcessor(f.palette, f.proxies, gate, logger)

	f.sg = NewShotGenerator(GeneratorConfig{
		Store: f.store,
		Generators: map[string]providers.VideoGenerator{
			providers.ProviderRunway: f.runway,
			providers.ProviderLuma:   f.luma,
			providers.ProviderPika:   f.pika,
		},
		Frames:  f.frames,
		Styles:  f.styles,
		Post:    post,
		Seeds:   NewSeedService(logger),
		Anchors: NewAnchorService(logger),
		Logger:  logger,
	})
	return f
}

func testSession(shots ...*types.ContinuityShot) *types.ContinuitySession {
	now := time.Now()
	return &types.ContinuitySession{
		ID:     "sess-1",
		UserID: "user-1",
		Name:   "test session",
		PrimaryStyleReference: &types.StyleReference{
			ID: "style-1",
			ExtractedFrame: types.ExtractedFrame{
				FrameURL:    "https://frames.test/style-1.png",
				ExtractedAt: now,
			},
		},
		Shots:           shots,
		DefaultSettings: types.DefaultSessionSettings(),
		Status:          types.SessionStatusActive,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func continuityShot(id, modelID string, seq int) *types.ContinuityShot {
	return &types.ContinuityShot{
		ID:             id,
		SessionID:      "sess-1",
		SequenceIndex:  seq,
		UserPrompt:     "a hero walks into the sunset",
		GenerationMode: types.GenerationModeContinuity,
		ModelID:        modelID,
		Status:         types.ShotStatusDraft,
		CreatedAt:      time.Now(),
	}
}

func (f *genFixture) seed(t *testing.T, session *types.ContinuitySession) {
	t.Helper()
	require.NoError(t, f.store.Create(context.Background(), session))
}

func TestGenerateShot_NativeStyleReference(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	f.seed(t, session)

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusCompleted, shot.Status)
	assert.Equal(t, types.MechanismNativeStyleRef, shot.ContinuityMechanismUsed)
	require.Equal(t, 1, f.luma.callCount())

	opts := f.luma.calls[0]
	assert.True(t, opts.NativeStyleRef)
	assert.Equal(t, "https://frames.test/style-1.png", opts.StyleReferenceURL)
	assert.InDelta(t, 0.6, opts.StyleStrength, 1e-9)
	assert.Empty(t, opts.StartImageURL)

	require.NotNil(t, shot.QualityScore)
	assert.InDelta(t, 1.0, *shot.QualityScore, 1e-9)
	assert.NotNil(t, shot.GeneratedAt)
}

func TestGenerateShot_QualityRetryThenPass(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	f.seed(t, session)
	f.embed.scores = []float64{0.4, 0.88}

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusCompleted, shot.Status)
	assert.Equal(t, 1, shot.RetryCount)
	require.Equal(t, 2, f.luma.callCount())

	// The retry must run at the increased strength.
	assert.InDelta(t, 0.6, f.luma.calls[0].StyleStrength, 1e-9)
	assert.InDelta(t, 0.7, f.luma.calls[1].StyleStrength, 1e-9)
	assert.InDelta(t, 0.7, shot.StyleStrength, 1e-9)

	require.NotNil(t, shot.QualityScore)
	assert.InDelta(t, 0.88, *shot.QualityScore, 1e-9)
}

func TestGenerateShot_RetriesExhaustedAcceptsBestEffort(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	session.DefaultSettings.MaxRetries = 1
	f.seed(t, session)
	f.embed.scores = []float64{0.4}

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	// Below threshold after the retry budget: still completed, not failed.
	assert.Equal(t, types.ShotStatusCompleted, shot.Status)
	assert.Equal(t, 1, shot.RetryCount)
	assert.Equal(t, 2, f.luma.callCount())
	require.NotNil(t, shot.QualityScore)
	assert.InDelta(t, 0.4, *shot.QualityScore, 1e-9)
}

func TestGenerateShot_AutoRetryDisabled(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	session.DefaultSettings.AutoRetryOnFailure = false
	f.seed(t, session)
	f.embed.scores = []float64{0.4}

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusCompleted, shot.Status)
	assert.Equal(t, 0, shot.RetryCount)
	assert.Equal(t, 1, f.luma.callCount())
}

func TestGenerateShot_StyleStrengthCappedAtOne(t *testing.T) {
	f := newGenFixture(t)
	shot := continuityShot("shot-1", "ray-2", 0)
	shot.StyleStrength = 0.95
	session := testSession(shot)
	session.DefaultSettings.MaxRetries = 2
	f.seed(t, session)
	f.embed.scores = []float64{0.1, 0.1, 0.1}

	result, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.RetryCount)
	require.Equal(t, 3, f.luma.callCount())
	assert.InDelta(t, 0.95, f.luma.calls[0].StyleStrength, 1e-9)
	assert.InDelta(t, 1.0, f.luma.calls[1].StyleStrength, 1e-9)
	assert.InDelta(t, 1.0, f.luma.calls[2].StyleStrength, 1e-9)
}

func TestGenerateShot_FrameBridgeWithoutPredecessorFailsLocally(t *testing.T) {
	f := newGenFixture(t)
	shot := continuityShot("shot-1", "gen4_turbo", 0)
	shot.ContinuityMode = types.ContinuityModeFrameBridge
	session := testSession(shot)
	f.seed(t, session)

	result, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	// Deterministic local failure: the provider is never invoked.
	assert.Equal(t, types.ShotStatusFailed, result.Status)
	assert.Contains(t, result.Error, "anchor")
	assert.Equal(t, 0, f.runway.callCount())

	// The failed state is persisted: one save for the generating
	// transition, one for the failure.
	stored, err := f.store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.ShotStatusFailed, stored.FindShot("shot-1").Status)
	assert.Equal(t, int64(3), stored.Version)
}

func TestGenerateShot_FrameBridgeFromPredecessor(t *testing.T) {
	f := newGenFixture(t)
	prev := continuityShot("shot-1", "gen4_turbo", 0)
	prev.Status = types.ShotStatusCompleted
	prev.VideoAssetID = "asset-prev"
	prev.SeedInfo = &types.SeedInfo{
		Seed:        42,
		Provider:    providers.ProviderRunway,
		ModelID:     "gen4_turbo",
		ExtractedAt: time.Now(),
	}
	next := continuityShot("shot-2", "gen4_turbo", 1)
	next.ContinuityMode = types.ContinuityModeFrameBridge
	session := testSession(prev, next)
	f.seed(t, session)
	f.runway.videoURLs["asset-prev"] = "https://videos.test/prev.mp4"

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-2")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusCompleted, shot.Status)
	assert.Equal(t, types.MechanismFrameBridge, shot.ContinuityMechanismUsed)
	require.NotNil(t, shot.FrameBridge)

	require.Equal(t, 1, f.runway.callCount())
	opts := f.runway.calls[0]
	assert.Equal(t, shot.FrameBridge.FrameURL, opts.StartImageURL)
	assert.Empty(t, opts.StyleReferenceURL)

	// Seed inherited from the same-provider predecessor.
	require.NotNil(t, opts.Extra)
	assert.Equal(t, int64(42), opts.Extra["seed"])
}

func TestGenerateShot_SeedNotInheritedAcrossProviders(t *testing.T) {
	f := newGenFixture(t)
	prev := continuityShot("shot-1", "ray-2", 0)
	prev.Status = types.ShotStatusCompleted
	prev.VideoAssetID = "asset-prev"
	prev.SeedInfo = &types.SeedInfo{
		Seed:        42,
		Provider:    providers.ProviderLuma,
		ModelID:     "ray-2",
		ExtractedAt: time.Now(),
	}
	next := continuityShot("shot-2", "pika-2.2", 1)
	session := testSession(prev, next)
	f.seed(t, session)

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-2")
	require.NoError(t, err)
	assert.Equal(t, types.ShotStatusCompleted, shot.Status)

	require.Equal(t, 1, f.pika.callCount())
	_, present := f.pika.calls[0].Extra["seedValue"]
	assert.False(t, present)
}

func TestGenerateShot_IPAdapterKeyframeSynthesis(t *testing.T) {
	f := newGenFixture(t)
	// Runway has start-image support but no native style parameter; a
	// style-match shot with no predecessor gets a synthesized keyframe.
	shot := continuityShot("shot-1", "gen4_turbo", 0)
	session := testSession(shot)
	f.seed(t, session)

	result, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusCompleted, result.Status)
	assert.Equal(t, types.MechanismIPAdapter, result.ContinuityMechanismUsed)
	require.Equal(t, 1, f.runway.callCount())
	assert.Equal(t, "https://frames.test/keyframe-1.png", f.runway.calls[0].StartImageURL)
	assert.Equal(t, 1, f.styles.keyframes)
}

func TestGenerateShot_IPAdapterParameters(t *testing.T) {
	f := newGenFixture(t)
	// Pika has no start-image support; style-match goes through the
	// IP-adapter request parameters instead of a synthesized keyframe.
	shot := continuityShot("shot-1", "pika-2.2", 0)
	session := testSession(shot)
	f.seed(t, session)

	result, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.MechanismIPAdapter, result.ContinuityMechanismUsed)
	require.Equal(t, 1, f.pika.callCount())
	opts := f.pika.calls[0]
	assert.Empty(t, opts.StartImageURL)
	assert.Equal(t, "https://frames.test/style-1.png", opts.StyleReferenceURL)
	assert.Equal(t, 0, f.styles.keyframes)
}

func TestGenerateShot_MissingStyleReferenceFailsLocally(t *testing.T) {
	f := newGenFixture(t)
	shot := continuityShot("shot-1", "ray-2", 0)
	session := testSession(shot)
	session.PrimaryStyleReference = nil
	f.seed(t, session)

	result, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusFailed, result.Status)
	assert.Contains(t, result.Error, "style reference")
	assert.Equal(t, 0, f.luma.callCount())
}

func TestGenerateShot_StandardModeSeedOnly(t *testing.T) {
	f := newGenFixture(t)
	prev := continuityShot("shot-1", "gen4_turbo", 0)
	prev.Status = types.ShotStatusCompleted
	prev.VideoAssetID = "asset-prev"
	prev.SeedInfo = &types.SeedInfo{
		Seed:        7,
		Provider:    providers.ProviderRunway,
		ModelID:     "gen4_turbo",
		ExtractedAt: time.Now(),
	}
	next := continuityShot("shot-2", "gen4_turbo", 1)
	next.GenerationMode = types.GenerationModeStandard
	session := testSession(prev, next)
	f.seed(t, session)

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-2")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusCompleted, shot.Status)
	assert.Equal(t, types.MechanismSeedOnly, shot.ContinuityMechanismUsed)
	require.Equal(t, 1, f.runway.callCount())
	opts := f.runway.calls[0]
	assert.Equal(t, int64(7), opts.Extra["seed"])
	// Standard mode sends no visual anchor.
	assert.Empty(t, opts.StartImageURL)
	assert.Empty(t, opts.StyleReferenceURL)
}

func TestGenerateShot_UnknownModelFails(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "stable-video-1", 0))
	f.seed(t, session)

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusFailed, shot.Status)
	assert.Contains(t, shot.Error, "stable-video-1")
	assert.Equal(t, 0, f.runway.callCount()+f.luma.callCount()+f.pika.callCount())
}

func TestGenerateShot_ProviderFailureMarksShotFailed(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	f.seed(t, session)
	f.luma.err = errors.New("upstream 503")

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusFailed, shot.Status)
	assert.Contains(t, shot.Error, "upstream 503")

	stored, err := f.store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.ShotStatusFailed, stored.FindShot("shot-1").Status)
}

func TestGenerateShot_HistogramFallback(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	f.seed(t, session)
	f.embed.err = errors.New("embedding service down")
	f.hist.scores = []float64{0.8}

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusCompleted, shot.Status)
	require.NotNil(t, shot.QualityScore)
	assert.InDelta(t, 0.8, *shot.QualityScore, 1e-9)
	assert.Equal(t, 1, f.hist.calls)
}

func TestGenerateShot_PaletteGrading(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	session.DefaultSettings.ColorGrade = true
	f.seed(t, session)
	f.palette.applied = true
	f.luma.queue(&providers.GenerationResult{
		AssetID:  "asset-raw",
		VideoURL: "https://videos.test/raw.mp4",
	})

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, "asset-raw-graded", shot.VideoAssetID)
	assert.Equal(t, 1, f.palette.calls)
}

func TestGenerateShot_PaletteFailureKeepsUngraded(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	session.DefaultSettings.ColorGrade = true
	f.seed(t, session)
	f.palette.err = errors.New("palette service down")
	f.luma.queue(&providers.GenerationResult{
		AssetID:  "asset-raw",
		VideoURL: "https://videos.test/raw.mp4",
	})

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	// Grading never fails a shot.
	assert.Equal(t, types.ShotStatusCompleted, shot.Status)
	assert.Equal(t, "asset-raw", shot.VideoAssetID)
}

func TestGenerateShot_SceneProxyRender(t *testing.T) {
	f := newGenFixture(t)
	pan := 0.5
	shot := continuityShot("shot-1", "ray-2", 0)
	shot.CameraAdjustments = &types.CameraAdjustments{Pan: &pan}
	session := testSession(shot)
	session.DefaultSettings.UseSceneProxy = true
	session.SceneProxy = &types.SceneProxy{
		ID:        "proxy-1",
		ProxyType: types.SceneProxyTypeParallax,
		Status:    types.SceneProxyReady,
	}
	f.seed(t, session)

	result, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusCompleted, result.Status)
	require.Equal(t, 1, f.proxies.renders)
	// Only the set camera field reaches the render request.
	assert.Equal(t, map[string]float64{"pan": 0.5}, f.proxies.deltas[0])
}

func TestGenerateShot_SeedExtractedFromResult(t *testing.T) {
	f := newGenFixture(t)
	shot := continuityShot("shot-1", "gen4_turbo", 0)
	shot.GenerationMode = types.GenerationModeStandard
	session := testSession(shot)
	f.seed(t, session)
	f.runway.queue(&providers.GenerationResult{
		AssetID:  "asset-1",
		VideoURL: "https://videos.test/1.mp4",
		Raw: map[string]any{
			"info": map[string]any{"seed": float64(12345)},
		},
	})

	result, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	require.NotNil(t, result.SeedInfo)
	assert.Equal(t, int64(12345), result.SeedInfo.Seed)
	assert.Equal(t, providers.ProviderRunway, result.SeedInfo.Provider)
}

func TestGenerateShot_GeneratingStatusVisibleWhileInFlight(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	f.seed(t, session)

	// A polling client reading the store during the provider call must see
	// the shot in the generating state, not a stale draft.
	var midFlight types.ShotStatus
	f.luma.onGenerate = func() {
		stored, err := f.store.Get(context.Background(), "sess-1")
		require.NoError(t, err)
		midFlight = stored.FindShot("shot-1").Status
	}

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)

	assert.Equal(t, types.ShotStatusGenerating, midFlight)
	assert.Equal(t, types.ShotStatusCompleted, shot.Status)

	stored, err := f.store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.ShotStatusCompleted, stored.FindShot("shot-1").Status)
}

func TestGenerateShot_VersionConflictReconciles(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	f.seed(t, session)

	// A concurrent writer bumps the stored version exactly once, before
	// the generator's first save.
	bumped := false
	f.store.beforeSave = func(stored *types.ContinuitySession) {
		if !bumped {
			stored.Version++
			stored.Name = "renamed concurrently"
			bumped = true
		}
	}

	shot, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.NoError(t, err)
	assert.Equal(t, types.ShotStatusCompleted, shot.Status)

	stored, err := f.store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	// The reload-reapply kept both the concurrent rename and the shot.
	// Versions: seed(1), conflicting bump(2), generating save(3),
	// completed save(4).
	assert.Equal(t, "renamed concurrently", stored.Name)
	assert.Equal(t, types.ShotStatusCompleted, stored.FindShot("shot-1").Status)
	assert.Equal(t, int64(4), stored.Version)
}

func TestGenerateShot_SecondVersionConflictSurfaces(t *testing.T) {
	f := newGenFixture(t)
	session := testSession(continuityShot("shot-1", "ray-2", 0))
	f.seed(t, session)

	f.store.beforeSave = func(stored *types.ContinuitySession) {
		stored.Version++
	}

	_, err := f.sg.GenerateShot(context.Background(), "sess-1", "shot-1")
	require.Error(t, err)
	assert.True(t, types.IsVersionMismatch(err))
}

func TestGenerateShot_ShotNotFound(t *testing.T) {
	f := newGenFixture(t)
	f.seed(t, testSession())

	_, err := f.sg.GenerateShot(context.Background(), "sess-1", "missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrShotNotFound, types.GetErrorCode(err))
}
