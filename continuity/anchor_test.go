package continuity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

func TestAssertProviderSupportsContinuity(t *testing.T) {
	svc := NewAnchorService(zap.NewNop())

	t.Run("start image support is enough", func(t *testing.T) {
		assert.NoError(t, svc.AssertProviderSupportsContinuity(providers.ProviderRunway, "gen4_turbo"))
	})

	t.Run("native style support is enough", func(t *testing.T) {
		assert.NoError(t, svc.AssertProviderSupportsContinuity(providers.ProviderLuma, "ray-2"))
	})

	t.Run("ip adapter support is enough", func(t *testing.T) {
		assert.NoError(t, svc.AssertProviderSupportsContinuity(providers.ProviderPika, "pika-2.2"))
	})

	t.Run("unknown provider", func(t *testing.T) {
		err := svc.AssertProviderSupportsContinuity("stability", "svd-1.1")
		require.Error(t, err)
		assert.True(t, types.IsUnsupportedProvider(err))
	})
}

func TestShouldUseSceneProxy(t *testing.T) {
	svc := NewAnchorService(zap.NewNop())

	ready := &types.SceneProxy{ID: "p1", Status: types.SceneProxyReady}
	shot := &types.ContinuityShot{ID: "s1", GenerationMode: types.GenerationModeContinuity}

	base := func() *types.ContinuitySession {
		s := testSession(shot)
		s.DefaultSettings.UseSceneProxy = true
		s.SceneProxy = ready
		return s
	}

	t.Run("ready proxy with style match", func(t *testing.T) {
		assert.True(t, svc.ShouldUseSceneProxy(base(), shot, nil))
	})

	t.Run("disabled by settings", func(t *testing.T) {
		s := base()
		s.DefaultSettings.UseSceneProxy = false
		assert.False(t, svc.ShouldUseSceneProxy(s, shot, nil))
	})

	t.Run("shot override enables despite session default", func(t *testing.T) {
		s := base()
		s.DefaultSettings.UseSceneProxy = false
		enabled := true
		proxyShot := &types.ContinuityShot{ID: "s3", GenerationMode: types.GenerationModeContinuity, UseSceneProxy: &enabled}
		assert.True(t, svc.ShouldUseSceneProxy(s, proxyShot, nil))
	})

	t.Run("shot override disables despite session default", func(t *testing.T) {
		disabled := false
		proxyShot := &types.ContinuityShot{ID: "s3", GenerationMode: types.GenerationModeContinuity, UseSceneProxy: &disabled}
		assert.False(t, svc.ShouldUseSceneProxy(base(), proxyShot, nil))
	})

	t.Run("no proxy", func(t *testing.T) {
		s := base()
		s.SceneProxy = nil
		assert.False(t, svc.ShouldUseSceneProxy(s, shot, nil))
	})

	t.Run("proxy still building", func(t *testing.T) {
		s := base()
		s.SceneProxy = &types.SceneProxy{ID: "p1", Status: types.SceneProxyBuilding}
		assert.False(t, svc.ShouldUseSceneProxy(s, shot, nil))
	})

	t.Run("frame bridge mode never uses a proxy", func(t *testing.T) {
		bridgeShot := &types.ContinuityShot{ID: "s2", ContinuityMode: types.ContinuityModeFrameBridge}
		assert.False(t, svc.ShouldUseSceneProxy(base(), bridgeShot, nil))
	})

	t.Run("override mode wins over the shot", func(t *testing.T) {
		bridgeShot := &types.ContinuityShot{ID: "s2", ContinuityMode: types.ContinuityModeFrameBridge}
		override := types.ContinuityModeStyleMatch
		assert.True(t, svc.ShouldUseSceneProxy(base(), bridgeShot, &override))
	})

	t.Run("nil session or shot", func(t *testing.T) {
		assert.False(t, svc.ShouldUseSceneProxy(nil, shot, nil))
		assert.False(t, svc.ShouldUseSceneProxy(base(), nil, nil))
	})
}
