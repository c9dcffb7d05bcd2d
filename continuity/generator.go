package continuity

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bharm16/reelflow/internal/metrics"
	"github.com/bharm16/reelflow/media"
	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

// styleStrengthStep is the fixed increment applied to StyleStrength on
// every quality-gate retry, capped at 1.0.
const styleStrengthStep = 0.1

// GeneratorConfig wires the shot generator's collaborators.
type GeneratorConfig struct {
	Store      Store
	Generators map[string]providers.VideoGenerator
	Frames     media.FrameExtractor
	Styles     media.StyleSynthesizer
	Post       *PostProcessor
	Seeds      *SeedService
	Anchors    *AnchorService
	Metrics    *metrics.Collector
	Logger     *zap.Logger
}

// ShotGenerator orchestrates one shot's generation: strategy resolution,
// provider call, post-processing, quality gate, bounded adaptive retry,
// and conflict-tolerant persistence.
//
// Each GenerateShot call is a single sequential unit of work. Multiple
// shots may be generated concurrently by independent callers; correctness
// under concurrent session mutation rests entirely on the store's version
// check.
type ShotGenerator struct {
	store      Store
	generators map[string]providers.VideoGenerator
	frames     media.FrameExtractor
	styles     media.StyleSynthesizer
	post       *PostProcessor
	seeds      *SeedService
	anchors    *AnchorService
	metrics    *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewShotGenerator creates a shot generator.
func NewShotGenerator(cfg GeneratorConfig) *ShotGenerator {
	return &ShotGenerator{
		store:      cfg.Store,
		generators: cfg.Generators,
		frames:     cfg.Frames,
		styles:     cfg.Styles,
		post:       cfg.Post,
		seeds:      cfg.Seeds,
		anchors:    cfg.Anchors,
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer("reelflow/continuity"),
		logger:     cfg.Logger.With(zap.String("component", "shot_generator")),
	}
}

// GenerateShot runs the full generation state machine for one shot and
// persists the outcome. Callers receive either a completed shot (possibly
// below threshold after retries were exhausted) or a failed shot with a
// human-readable error; an error return means the session could not be
// loaded or persisted, never a shot-level failure.
func (g *ShotGenerator) GenerateShot(ctx context.Context, sessionID, shotID string) (*types.ContinuityShot, error) {
	ctx, span := g.tracer.Start(ctx, "continuity.GenerateShot",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("shot.id", shotID),
		))
	defer span.End()

	start := time.Now()

	session, err := g.store.Get(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, "session load failed")
		return nil, err
	}
	shot := session.FindShot(shotID)
	if shot == nil {
		return nil, types.NewError(types.ErrShotNotFound,
			fmt.Sprintf("shot %s not found in session %s", shotID, sessionID)).WithHTTPStatus(404)
	}
	prev := session.PrecedingShot(shot)

	provider := providers.FromModel(shot.ModelID)
	span.SetAttributes(attribute.String("provider", provider))

	// Persist the draft->generating transition before any provider work so
	// polling clients observe an in-flight shot rather than a stale draft.
	shot.Status = types.ShotStatusGenerating
	shot.Error = ""
	if err := g.persistShot(ctx, session, shot); err != nil {
		span.SetStatus(codes.Error, "status transition save failed")
		return nil, err
	}

	outcome, err := g.run(ctx, session, shot, prev, provider)
	if err != nil {
		// Every failure class lands here: anchor resolution, provider,
		// post-processing. The shot is marked failed with the captured
		// message and persisted through the conflict-tolerant path so the
		// failure is never silently lost.
		span.RecordError(err)
		shot.Status = types.ShotStatusFailed
		shot.Error = err.Error()
		if perr := g.persistShot(ctx, session, shot); perr != nil {
			return nil, perr
		}
		if g.metrics != nil {
			g.metrics.RecordGeneration(provider, string(types.ShotStatusFailed), time.Since(start))
		}
		g.logger.Warn("shot generation failed",
			zap.String("session_id", sessionID),
			zap.String("shot_id", shotID),
			zap.String("provider", provider),
			zap.String("error", shot.Error),
		)
		return shot, nil
	}

	shot.Status = types.ShotStatusCompleted
	shot.VideoAssetID = outcome.assetID
	shot.ContinuityMechanismUsed = outcome.mechanism
	if outcome.eval != nil {
		score := outcome.eval.StyleScore
		shot.QualityScore = &score
	}
	if outcome.seedInfo != nil {
		shot.SeedInfo = outcome.seedInfo
	}
	now := time.Now()
	shot.GeneratedAt = &now

	if err := g.persistShot(ctx, session, shot); err != nil {
		return nil, err
	}

	if g.metrics != nil {
		g.metrics.RecordGeneration(provider, string(types.ShotStatusCompleted), time.Since(start))
		g.metrics.RecordMechanism(provider, string(outcome.mechanism))
		g.metrics.RecordCredits(provider, EstimateShotCost(provider, session.DefaultSettings.Resolution, 0, shot.RetryCount+1))
	}
	g.logger.Info("shot generation completed",
		zap.String("session_id", sessionID),
		zap.String("shot_id", shotID),
		zap.String("provider", provider),
		zap.String("mechanism", string(outcome.mechanism)),
		zap.Int("retries", shot.RetryCount),
	)

	return shot, nil
}

// runOutcome carries the successful result of the generation loop.
type runOutcome struct {
	assetID   string
	videoURL  string
	mechanism types.ContinuityMechanism
	eval      *Evaluation
	seedInfo  *types.SeedInfo
}

// run executes steps 2-10 of the generation algorithm. Any returned error
// means the shot must be marked failed.
func (g *ShotGenerator) run(ctx context.Context, session *types.ContinuitySession, shot *types.ContinuityShot, prev *types.ContinuityShot, provider string) (*runOutcome, error) {
	settings := session.DefaultSettings

	if provider == "" {
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("no provider registered for model %q", shot.ModelID))
	}
	gen, ok := g.generators[provider]
	if !ok {
		return nil, types.NewError(types.ErrProviderError,
			fmt.Sprintf("provider %s is not configured", provider))
	}

	if shot.GenerationMode == types.GenerationModeContinuity {
		if err := g.anchors.AssertProviderSupportsContinuity(provider, shot.ModelID); err != nil {
			return nil, err
		}
	}

	mode := shot.EffectiveContinuityMode(settings)
	hasBridge := shot.FrameBridge != nil ||
		(prev != nil && prev.Status == types.ShotStatusCompleted && prev.VideoAssetID != "")

	// Strategy and proxy applicability are independent decisions.
	var strategy Strategy
	var useProxy bool
	eg := new(errgroup.Group)
	eg.Go(func() error {
		strategy = ResolveStrategy(provider, mode, hasBridge)
		return nil
	})
	eg.Go(func() error {
		useProxy = g.anchors.ShouldUseSceneProxy(session, shot, nil)
		return nil
	})
	_ = eg.Wait()

	styleRefURL := g.styleReferenceURL(session, shot)

	mechanism := types.MechanismNone
	switch shot.GenerationMode {
	case types.GenerationModeContinuity:
		// A continuity shot must resolve a real mechanism before any
		// provider call. This is a deterministic local failure, not a
		// network failure.
		if strategy == StrategyNone {
			return nil, types.NewError(types.ErrAnchorUnresolved,
				fmt.Sprintf("no visual anchor available for shot %s: no frame bridge, no style reference, no native style support on %s", shot.ID, provider))
		}
		if (strategy == StrategyNativeStyleRef || strategy == StrategyIPAdapter) && styleRefURL == "" {
			return nil, types.NewError(types.ErrAnchorUnresolved,
				fmt.Sprintf("shot %s requires a style reference but the session has none", shot.ID))
		}
		mechanism = strategy.Mechanism()
	default:
		// Standard mode: absence of a visual anchor is fine. Seed
		// persistence still counts as a (weak) continuity mechanism.
		strategy = StrategyNone
		caps, _ := providers.Lookup(provider)
		if caps.SupportsSeed && prev != nil && prev.SeedInfo.InheritableBy(provider) {
			mechanism = types.MechanismSeedOnly
		}
	}

	// Literal start frame for frame-bridge continuity.
	startImageURL := ""
	if strategy == StrategyFrameBridge {
		if shot.FrameBridge == nil {
			bridge, err := g.extractBridge(ctx, session, shot, prev, gen)
			if err != nil {
				return nil, err
			}
			shot.FrameBridge = bridge
		}
		startImageURL = shot.FrameBridge.FrameURL
	}

	// Character identity anchor, when the shot carries one. A resolution
	// failure degrades to no identity scoring rather than failing the
	// shot.
	characterURL := ""
	if shot.CharacterAssetID != "" {
		url, err := gen.CharacterReferenceURL(ctx, shot.CharacterAssetID)
		if err != nil {
			g.logger.Warn("character reference unavailable",
				zap.String("shot_id", shot.ID),
				zap.String("asset_id", shot.CharacterAssetID),
				zap.Error(err),
			)
		} else {
			characterURL = url
		}
	}

	// When a ready scene proxy applies, its rendered frame (with the
	// shot's camera deltas) becomes the composition reference the output
	// is judged against.
	qualityRefURL := styleRefURL
	if useProxy {
		rendered, err := g.post.RenderSceneProxy(ctx, session.UserID, session.SceneProxy, shot.ID, shot.CameraAdjustments)
		if err != nil {
			g.logger.Warn("scene proxy render unavailable",
				zap.String("shot_id", shot.ID),
				zap.Error(err),
			)
		} else {
			qualityRefURL = rendered
		}
	}

	seed, seedOK := int64(0), false
	if prev != nil {
		seed, seedOK = g.seeds.InheritedSeed(prev.SeedInfo, provider)
	}

	strength := shot.StyleStrength
	if strength <= 0 {
		strength = settings.StyleStrength
	}

	caps, _ := providers.Lookup(provider)

	var result *providers.GenerationResult
	var eval *Evaluation
	videoURL := ""
	assetID := ""

	for {
		opts := providers.GenerationOptions{
			ModelID:               shot.ModelID,
			AspectRatio:           settings.AspectRatio,
			Resolution:            settings.Resolution,
			CharacterReferenceURL: characterURL,
			Extra:                 g.seeds.SeedParam(provider, seed, seedOK),
		}

		switch strategy {
		case StrategyNativeStyleRef:
			opts.StyleReferenceURL = styleRefURL
			opts.StyleStrength = strength
			opts.NativeStyleRef = true
		case StrategyFrameBridge:
			opts.StartImageURL = startImageURL
		case StrategyIPAdapter:
			if caps.SupportsStartImage {
				// Synthesize a styled keyframe at the current strength and
				// feed it as the start image.
				keyframeURL, err := g.styles.GenerateStyledKeyframe(ctx, media.KeyframeRequest{
					UserID:            session.UserID,
					Prompt:            shot.UserPrompt,
					StyleReferenceURL: styleRefURL,
					Strength:          strength,
					AspectRatio:       settings.AspectRatio,
				})
				if err != nil {
					return nil, fmt.Errorf("keyframe synthesis failed: %w", err)
				}
				opts.StartImageURL = keyframeURL
			} else {
				opts.StyleReferenceURL = styleRefURL
				opts.StyleStrength = strength
			}
		}

		var err error
		result, err = gen.Generate(ctx, shot.UserPrompt, opts)
		if err != nil {
			return nil, fmt.Errorf("video generation failed: %w", err)
		}
		videoURL = result.VideoURL
		assetID = result.AssetID

		// Palette grading toward the style reference, only when enabled.
		if settings.ColorGrade && styleRefURL != "" {
			if graded := g.post.MatchPalette(ctx, result.AssetID, styleRefURL); graded.Applied {
				if graded.VideoURL != "" {
					videoURL = graded.VideoURL
				}
				if graded.AssetID != "" {
					assetID = graded.AssetID
				}
			}
		}

		// Nothing to judge against: accept the result as-is.
		if qualityRefURL == "" {
			break
		}

		eval = g.post.EvaluateQuality(ctx, EvaluationRequest{
			UserID:                session.UserID,
			ShotID:                shot.ID,
			VideoID:               assetID,
			ReferenceImageURL:     qualityRefURL,
			GeneratedVideoURL:     videoURL,
			CharacterReferenceURL: characterURL,
			StyleThreshold:        settings.StyleThreshold,
			IdentityThreshold:     settings.IdentityThreshold,
		})
		if g.metrics != nil {
			g.metrics.RecordQualityScore(provider, eval.Method, eval.StyleScore)
		}
		if eval.Passed {
			break
		}

		// Retries exhausted (or disabled): accept the last attempt as
		// completed regardless of score. Deliberate best-effort policy.
		if !settings.AutoRetryOnFailure || shot.RetryCount >= settings.MaxRetries {
			g.logger.Info("quality gate not met, accepting best effort",
				zap.String("shot_id", shot.ID),
				zap.Float64("style_score", eval.StyleScore),
				zap.Float64("threshold", settings.StyleThreshold),
				zap.Int("retries", shot.RetryCount),
			)
			break
		}

		shot.RetryCount++
		strength = math.Min(1.0, strength+styleStrengthStep)
		shot.StyleStrength = strength
		if g.metrics != nil {
			g.metrics.RecordRetry(provider)
		}
		g.logger.Debug("quality gate failed, retrying with increased strength",
			zap.String("shot_id", shot.ID),
			zap.Float64("style_score", eval.StyleScore),
			zap.Float64("style_strength", strength),
			zap.Int("retry", shot.RetryCount),
		)
	}

	return &runOutcome{
		assetID:   assetID,
		videoURL:  videoURL,
		mechanism: mechanism,
		eval:      eval,
		seedInfo:  g.seeds.ExtractSeed(provider, shot.ModelID, result),
	}, nil
}

// extractBridge pulls the bridging frame out of the preceding shot's
// video.
func (g *ShotGenerator) extractBridge(ctx context.Context, session *types.ContinuitySession, shot, prev *types.ContinuityShot, gen providers.VideoGenerator) (*types.FrameBridge, error) {
	if prev == nil || prev.VideoAssetID == "" {
		return nil, types.NewError(types.ErrAnchorUnresolved,
			fmt.Sprintf("shot %s has no preceding video to bridge from", shot.ID))
	}

	videoURL, err := gen.VideoURL(ctx, prev.VideoAssetID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preceding video: %w", err)
	}
	if videoURL == "" {
		return nil, types.NewError(types.ErrAnchorUnresolved,
			fmt.Sprintf("preceding video %s is no longer available", prev.VideoAssetID))
	}

	bridge, err := g.frames.ExtractBridgeFrame(ctx, session.UserID, prev.VideoAssetID, videoURL, shot.ID, media.FramePositionLast)
	if err != nil {
		return nil, fmt.Errorf("bridge frame extraction failed: %w", err)
	}
	return bridge, nil
}

// styleReferenceURL resolves the stylistic anchor for a shot: its own
// reference first, then the session's primary.
func (g *ShotGenerator) styleReferenceURL(session *types.ContinuitySession, shot *types.ContinuityShot) string {
	if shot.StyleReference != nil && shot.StyleReference.FrameURL != "" {
		return shot.StyleReference.FrameURL
	}
	if session.PrimaryStyleReference != nil {
		return session.PrimaryStyleReference.FrameURL
	}
	return ""
}

// persistShot saves the session carrying the updated shot with the version
// read at load time. On a version conflict it reloads the freshest session
// exactly once, reapplies the just-computed shot, and saves again; a
// second conflict surfaces to the caller. The bound is deliberate — this
// is a narrow compare-and-swap, not a backoff loop.
func (g *ShotGenerator) persistShot(ctx context.Context, session *types.ContinuitySession, shot *types.ContinuityShot) error {
	_, err := g.store.SaveWithVersion(ctx, session, session.Version)
	if err == nil {
		return nil
	}
	if !types.IsVersionMismatch(err) {
		return err
	}

	fresh, gerr := g.store.Get(ctx, session.ID)
	if gerr != nil {
		return gerr
	}
	applyShot(fresh, shot)

	if _, err2 := g.store.SaveWithVersion(ctx, fresh, fresh.Version); err2 != nil {
		if g.metrics != nil {
			g.metrics.RecordVersionConflict("surfaced")
		}
		return err2
	}
	if g.metrics != nil {
		g.metrics.RecordVersionConflict("reconciled")
	}
	return nil
}

// applyShot replaces (or appends) the shot in the session's list, keeping
// sequence order intact.
func applyShot(session *types.ContinuitySession, shot *types.ContinuityShot) {
	for i, existing := range session.Shots {
		if existing.ID == shot.ID {
			session.Shots[i] = shot
			return
		}
	}
	session.Shots = append(session.Shots, shot)
}
