package providers

import (
	"context"
	"time"
)

// GenerationOptions carries the provider-facing knobs for one video
// generation call. Anchor fields are mutually exclusive in practice: the
// orchestrator sets at most one of StartImageURL or StyleReferenceURL
// (plus NativeStyleRef when the provider supports it natively).
type GenerationOptions struct {
	ModelID string `json:"model_id"`

	// StartImageURL conditions generation on a literal first frame.
	StartImageURL string `json:"start_image_url,omitempty"`

	// StyleReferenceURL plus StyleStrength condition generation on a
	// provider-native style reference parameter.
	StyleReferenceURL string  `json:"style_reference_url,omitempty"`
	StyleStrength     float64 `json:"style_strength,omitempty"`
	NativeStyleRef    bool    `json:"native_style_ref,omitempty"`

	// CharacterReferenceURL is an identity anchor image, when the shot
	// carries a character asset.
	CharacterReferenceURL string `json:"character_reference_url,omitempty"`

	AspectRatio string `json:"aspect_ratio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	Duration    float64 `json:"duration,omitempty"`

	// Extra holds provider-specific request fragments, e.g. the seed
	// parameter produced by the seed service. Keys absent from the map are
	// never sent.
	Extra map[string]any `json:"extra,omitempty"`
}

// GenerationResult is the normalized outcome of a provider generation.
// Raw preserves the provider's response payload so seed extraction can
// read provider-specific fields after the fact.
type GenerationResult struct {
	AssetID   string         `json:"asset_id"`
	VideoURL  string         `json:"video_url"`
	Raw       map[string]any `json:"raw,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// VideoGenerator is the contract the continuity core consumes. Network
// timeouts, polling, and transport retries live behind this interface; the
// orchestrator performs no network-level retry of its own.
type VideoGenerator interface {
	// Generate renders a video for the prompt with the given options.
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (*GenerationResult, error)

	// VideoURL resolves an asset ID or storage path to a playable URL.
	// Returns empty string when the asset is unknown.
	VideoURL(ctx context.Context, assetIDOrPath string) (string, error)

	// CharacterReferenceURL resolves a character asset to its reference
	// image URL.
	CharacterReferenceURL(ctx context.Context, assetID string) (string, error)

	// Name returns the provider's registry identifier.
	Name() string
}
