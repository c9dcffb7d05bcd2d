package continuity

import (
	"context"

	"go.uber.org/zap"

	"github.com/bharm16/reelflow/media"
	"github.com/bharm16/reelflow/types"
)

// PostProcessor wraps palette grading, quality evaluation, and scene-proxy
// rendering as a uniform post-processing step over the media collaborators.
type PostProcessor struct {
	palette media.PaletteService
	proxies media.SceneProxyEngine
	gate    *QualityGate
	logger  *zap.Logger
}

// NewPostProcessor creates a post-processing service.
func NewPostProcessor(palette media.PaletteService, proxies media.SceneProxyEngine, gate *QualityGate, logger *zap.Logger) *PostProcessor {
	return &PostProcessor{
		palette: palette,
		proxies: proxies,
		gate:    gate,
		logger:  logger.With(zap.String("component", "postprocess")),
	}
}

// MatchPalette color-grades a generated asset toward a reference palette.
// It never returns an error: when grading is unavailable the result simply
// reports Applied=false and the caller keeps the ungraded asset.
func (p *PostProcessor) MatchPalette(ctx context.Context, assetID, referenceURL string) *media.PaletteResult {
	if p.palette == nil || referenceURL == "" {
		return &media.PaletteResult{Applied: false}
	}
	result, err := p.palette.MatchPalette(ctx, assetID, referenceURL)
	if err != nil {
		p.logger.Warn("palette match unavailable",
			zap.String("asset_id", assetID),
			zap.Error(err),
		)
		return &media.PaletteResult{Applied: false}
	}
	return result
}

// MatchImagePalette grades a still image toward a reference palette, with
// the same never-fails contract as MatchPalette.
func (p *PostProcessor) MatchImagePalette(ctx context.Context, userID, sourceURL, referenceURL string) *media.PaletteResult {
	if p.palette == nil || referenceURL == "" {
		return &media.PaletteResult{Applied: false}
	}
	result, err := p.palette.MatchImagePalette(ctx, userID, sourceURL, referenceURL)
	if err != nil {
		p.logger.Warn("image palette match unavailable",
			zap.String("source_url", sourceURL),
			zap.Error(err),
		)
		return &media.PaletteResult{Applied: false}
	}
	return result
}

// EvaluateQuality delegates to the quality gate.
func (p *PostProcessor) EvaluateQuality(ctx context.Context, req EvaluationRequest) *Evaluation {
	return p.gate.Evaluate(ctx, req)
}

// RenderSceneProxy renders a new frame from a ready proxy using the shot's
// camera deltas. Unset delta fields are omitted from the render request
// entirely. Errors when no proxy is supplied.
func (p *PostProcessor) RenderSceneProxy(ctx context.Context, userID string, proxy *types.SceneProxy, shotID string, cam *types.CameraAdjustments) (string, error) {
	if proxy == nil {
		return "", types.NewError(types.ErrInvalidRequest, "scene proxy is required")
	}
	if !proxy.Ready() {
		return "", types.NewError(types.ErrProxyNotReady, "scene proxy is not ready")
	}

	deltas := map[string]float64{}
	if cam != nil {
		if cam.Pan != nil {
			deltas["pan"] = *cam.Pan
		}
		if cam.Tilt != nil {
			deltas["tilt"] = *cam.Tilt
		}
		if cam.Zoom != nil {
			deltas["zoom"] = *cam.Zoom
		}
		if cam.Dolly != nil {
			deltas["dolly"] = *cam.Dolly
		}
	}

	return p.proxies.RenderProxy(ctx, userID, proxy, shotID, deltas)
}

// CreateSceneProxyFromVideo starts building a scene proxy for a source
// video.
func (p *PostProcessor) CreateSceneProxyFromVideo(ctx context.Context, userID, videoID, videoURL string) (*types.SceneProxy, error) {
	return p.proxies.CreateProxyFromVideo(ctx, userID, videoID, videoURL)
}
