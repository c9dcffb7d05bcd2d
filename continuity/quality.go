package continuity

import (
	"context"

	"go.uber.org/zap"

	"github.com/bharm16/reelflow/media"
)

// EvaluationRequest describes one quality-gate check of a generated shot
// against its references.
type EvaluationRequest struct {
	UserID                string
	ShotID                string
	VideoID               string
	ReferenceImageURL     string
	GeneratedVideoURL     string
	CharacterReferenceURL string
	StyleThreshold        float64
	IdentityThreshold     float64
}

// Evaluation is the quality-gate verdict. StyleScore is always present;
// IdentityScore is nil when no character reference was supplied or the
// face-embedding path failed.
type Evaluation struct {
	StyleScore    float64  `json:"style_score"`
	IdentityScore *float64 `json:"identity_score,omitempty"`
	Passed        bool     `json:"passed"`
	Method        string   `json:"method"` // embedding | histogram | none
}

// QualityGate scores a generated shot's style and identity similarity
// against its references. It degrades rather than fails: an unavailable
// embedding path falls back to a pixel-histogram comparison, and an
// unavailable identity path simply omits the identity score.
type QualityGate struct {
	frames    media.FrameExtractor
	embedding media.StyleScorer
	histogram media.StyleScorer
	identity  media.IdentityScorer
	logger    *zap.Logger
}

// NewQualityGate creates a quality gate. embedding and histogram are the
// primary and fallback style scorers; identity may be nil when no face
// model is deployed.
func NewQualityGate(frames media.FrameExtractor, embedding, histogram media.StyleScorer, identity media.IdentityScorer, logger *zap.Logger) *QualityGate {
	return &QualityGate{
		frames:    frames,
		embedding: embedding,
		histogram: histogram,
		identity:  identity,
		logger:    logger.With(zap.String("component", "quality_gate")),
	}
}

// Evaluate extracts one representative frame from the generated video and
// scores it against the reference image (and character reference, when
// present). It always produces a style score of some kind.
func (g *QualityGate) Evaluate(ctx context.Context, req EvaluationRequest) *Evaluation {
	frameURL := req.GeneratedVideoURL
	if g.frames != nil {
		frame, err := g.frames.ExtractRepresentativeFrame(ctx, req.UserID, req.VideoID, req.GeneratedVideoURL, req.ShotID)
		if err != nil {
			g.logger.Warn("representative frame extraction failed, scoring against video directly",
				zap.String("shot_id", req.ShotID),
				zap.Error(err),
			)
		} else {
			frameURL = frame.FrameURL
		}
	}

	eval := &Evaluation{Method: "none"}

	if g.embedding != nil {
		score, err := g.embedding.StyleSimilarity(ctx, frameURL, req.ReferenceImageURL)
		if err == nil {
			eval.StyleScore = score
			eval.Method = "embedding"
		} else {
			g.logger.Warn("embedding similarity unavailable, falling back to histogram",
				zap.String("shot_id", req.ShotID),
				zap.Error(err),
			)
		}
	}
	if eval.Method == "none" && g.histogram != nil {
		score, err := g.histogram.StyleSimilarity(ctx, frameURL, req.ReferenceImageURL)
		if err == nil {
			eval.StyleScore = score
			eval.Method = "histogram"
		} else {
			g.logger.Warn("histogram similarity unavailable",
				zap.String("shot_id", req.ShotID),
				zap.Error(err),
			)
		}
	}

	if req.CharacterReferenceURL != "" && g.identity != nil {
		score, err := g.identity.IdentitySimilarity(ctx, frameURL, req.CharacterReferenceURL)
		if err != nil {
			// A failed face-embedding extraction omits the identity score
			// rather than failing the whole evaluation.
			g.logger.Warn("identity similarity unavailable, omitting identity score",
				zap.String("shot_id", req.ShotID),
				zap.Error(err),
			)
		} else {
			eval.IdentityScore = &score
		}
	}

	eval.Passed = eval.StyleScore >= req.StyleThreshold &&
		(eval.IdentityScore == nil || *eval.IdentityScore >= req.IdentityThreshold)

	return eval
}
