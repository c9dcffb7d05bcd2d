// Package media defines the contracts for the media pipeline the
// continuity core collaborates with: frame extraction, style synthesis,
// palette grading, scene-proxy rendering, similarity scoring, and blob
// storage. Implementations talk to the media service over HTTP; the core
// only sees these interfaces.
package media

import (
	"context"

	"github.com/bharm16/reelflow/types"
)

// FramePosition selects which frame a bridge extraction targets.
type FramePosition string

const (
	FramePositionFirst FramePosition = "first"
	FramePositionLast  FramePosition = "last"
)

// FrameExtractor pulls frames out of generated videos.
type FrameExtractor interface {
	// ExtractBridgeFrame extracts a literal frame (usually the last) from
	// a shot's video for use as the next shot's start image.
	ExtractBridgeFrame(ctx context.Context, userID, videoID, videoURL, shotID string, position FramePosition) (*types.FrameBridge, error)

	// ExtractRepresentativeFrame samples several timestamps, scores them,
	// and returns the best frame as a style reference.
	ExtractRepresentativeFrame(ctx context.Context, userID, videoID, videoURL, shotID string) (*types.StyleReference, error)
}

// KeyframeRequest describes a styled-keyframe synthesis call.
type KeyframeRequest struct {
	UserID            string  `json:"user_id"`
	Prompt            string  `json:"prompt"`
	StyleReferenceURL string  `json:"style_reference_url"`
	Strength          float64 `json:"strength"`
	AspectRatio       string  `json:"aspect_ratio,omitempty"`
}

// StyleSynthesizer creates style references and styled keyframes.
type StyleSynthesizer interface {
	// CreateFromVideo builds a style reference from a source video.
	CreateFromVideo(ctx context.Context, userID, videoID, videoURL string) (*types.StyleReference, error)

	// CreateFromImage builds a style reference from a still image.
	CreateFromImage(ctx context.Context, userID, imageURL string) (*types.StyleReference, error)

	// GenerateStyledKeyframe synthesizes a keyframe conditioned on a style
	// reference. Fails when the underlying keyframe model returns no
	// output.
	GenerateStyledKeyframe(ctx context.Context, req KeyframeRequest) (string, error)
}

// PaletteResult reports the outcome of a palette-grading call.
type PaletteResult struct {
	Applied  bool   `json:"applied"`
	AssetID  string `json:"asset_id,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

// PaletteService color-grades generated assets toward a reference palette.
type PaletteService interface {
	MatchPalette(ctx context.Context, assetID, referenceURL string) (*PaletteResult, error)
	MatchImagePalette(ctx context.Context, userID, sourceURL, referenceURL string) (*PaletteResult, error)
}

// SceneProxyEngine builds and renders scene proxies.
type SceneProxyEngine interface {
	// RenderProxy renders a new frame from a ready proxy using camera
	// deltas. Unset delta fields must be omitted from the request.
	RenderProxy(ctx context.Context, userID string, proxy *types.SceneProxy, shotID string, deltas map[string]float64) (string, error)

	// CreateProxyFromVideo starts building a proxy for a source video.
	CreateProxyFromVideo(ctx context.Context, userID, videoID, videoURL string) (*types.SceneProxy, error)
}

// StyleScorer computes a style-similarity score in [0,1] between a frame
// and a reference image.
type StyleScorer interface {
	StyleSimilarity(ctx context.Context, frameURL, referenceURL string) (float64, error)
}

// IdentityScorer computes a face-embedding cosine similarity in [0,1]
// between a frame and a character reference.
type IdentityScorer interface {
	IdentitySimilarity(ctx context.Context, frameURL, characterURL string) (float64, error)
}

// StoredObject is the result of a blob-store write.
type StoredObject struct {
	StoragePath string `json:"storage_path"`
	ViewURL     string `json:"view_url"`
}

// BlobStore persists binary artifacts (frames, keyframes, graded videos).
type BlobStore interface {
	SaveFromBuffer(ctx context.Context, userID string, buf []byte, label, contentType string, metadata map[string]string) (*StoredObject, error)
	ViewURL(ctx context.Context, userID, storagePath string) (string, error)
}
