package continuity

import (
	"go.uber.org/zap"

	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

// AnchorService validates provider continuity support and decides whether
// a precomputed scene proxy applies to a shot. All methods are
// side-effect-free.
type AnchorService struct {
	logger *zap.Logger
}

// NewAnchorService creates an anchor service.
func NewAnchorService(logger *zap.Logger) *AnchorService {
	return &AnchorService{
		logger: logger.With(zap.String("component", "anchor")),
	}
}

// AssertProviderSupportsContinuity fails with an UnsupportedProviderError
// unless the provider accepts at least one continuity mechanism: a
// start-image parameter, a native style-reference parameter, or an
// IP-adapter conditioning input. Called before any continuity attempt.
func (s *AnchorService) AssertProviderSupportsContinuity(provider, modelID string) error {
	caps, ok := providers.Lookup(provider)
	if !ok || (!caps.SupportsStartImage && !caps.SupportsNativeStyleReference && !caps.SupportsIPAdapter) {
		return &types.UnsupportedProviderError{Provider: provider, ModelID: modelID}
	}
	return nil
}

// ShouldUseSceneProxy returns true only when the session has a ready scene
// proxy, proxy use is enabled (session default, overridable per shot), and
// the effective continuity mode is style-match. Proxies encode geometry,
// not literal frames, so frame-bridge shots never use them.
func (s *AnchorService) ShouldUseSceneProxy(session *types.ContinuitySession, shot *types.ContinuityShot, overrideMode *types.ContinuityMode) bool {
	if session == nil || shot == nil {
		return false
	}
	enabled := session.DefaultSettings.UseSceneProxy
	if shot.UseSceneProxy != nil {
		enabled = *shot.UseSceneProxy
	}
	if !enabled {
		return false
	}
	if !session.SceneProxy.Ready() {
		return false
	}

	mode := shot.EffectiveContinuityMode(session.DefaultSettings)
	if overrideMode != nil {
		mode = *overrideMode
	}
	return mode == types.ContinuityModeStyleMatch
}
