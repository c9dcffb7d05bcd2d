package types

import "time"

// GenerationMode selects whether a shot participates in continuity at all.
type GenerationMode string

const (
	GenerationModeContinuity GenerationMode = "continuity"
	GenerationModeStandard   GenerationMode = "standard"
)

// ContinuityMode is the user-requested continuity mechanism for a shot.
type ContinuityMode string

const (
	ContinuityModeFrameBridge ContinuityMode = "frame-bridge"
	ContinuityModeStyleMatch  ContinuityMode = "style-match"
	ContinuityModeNative      ContinuityMode = "native"
	ContinuityModeNone        ContinuityMode = "none"
)

// ShotStatus represents the lifecycle state of a shot.
type ShotStatus string

const (
	ShotStatusDraft      ShotStatus = "draft"
	ShotStatusGenerating ShotStatus = "generating"
	ShotStatusCompleted  ShotStatus = "completed"
	ShotStatusFailed     ShotStatus = "failed"
)

// ContinuityMechanism is the mechanism actually used for a generated shot,
// which may differ from the requested ContinuityMode after capability
// resolution.
type ContinuityMechanism string

const (
	MechanismNativeStyleRef ContinuityMechanism = "native-style-ref"
	MechanismFrameBridge    ContinuityMechanism = "frame-bridge"
	MechanismIPAdapter      ContinuityMechanism = "ip-adapter"
	MechanismSeedOnly       ContinuityMechanism = "seed-only"
	MechanismNone           ContinuityMechanism = "none"
)

// CameraAdjustments carries optional camera-parameter deltas applied when a
// shot is re-rendered through a scene proxy. Unset fields are omitted from
// the render request entirely.
type CameraAdjustments struct {
	Pan   *float64 `json:"pan,omitempty"`
	Tilt  *float64 `json:"tilt,omitempty"`
	Zoom  *float64 `json:"zoom,omitempty"`
	Dolly *float64 `json:"dolly,omitempty"`
}

// ContinuityShot is one unit of video generation within a session.
type ContinuityShot struct {
	ID                      string               `json:"id"`
	SessionID               string               `json:"session_id"`
	SequenceIndex           int                  `json:"sequence_index"`
	UserPrompt              string               `json:"user_prompt"`
	GenerationMode          GenerationMode       `json:"generation_mode"`
	ContinuityMode          ContinuityMode       `json:"continuity_mode"`
	StyleStrength           float64              `json:"style_strength"`
	StyleReferenceID        string               `json:"style_reference_id,omitempty"`
	ModelID                 string               `json:"model_id"`
	CharacterAssetID        string               `json:"character_asset_id,omitempty"`
	CameraAdjustments       *CameraAdjustments   `json:"camera_adjustments,omitempty"`
	UseSceneProxy           *bool                `json:"use_scene_proxy,omitempty"`
	Status                  ShotStatus           `json:"status"`
	VideoAssetID            string               `json:"video_asset_id,omitempty"`
	FrameBridge             *FrameBridge         `json:"frame_bridge,omitempty"`
	StyleReference          *StyleReference      `json:"style_reference,omitempty"`
	SeedInfo                *SeedInfo            `json:"seed_info,omitempty"`
	QualityScore            *float64             `json:"quality_score,omitempty"`
	RetryCount              int                  `json:"retry_count"`
	ContinuityMechanismUsed ContinuityMechanism  `json:"continuity_mechanism_used,omitempty"`
	Error                   string               `json:"error,omitempty"`
	CreatedAt               time.Time            `json:"created_at"`
	GeneratedAt             *time.Time           `json:"generated_at,omitempty"`
}

// EffectiveContinuityMode returns the shot's continuity mode, falling back
// to the session default when the shot does not set one.
func (s *ContinuityShot) EffectiveContinuityMode(defaults SessionSettings) ContinuityMode {
	if s.ContinuityMode != "" {
		return s.ContinuityMode
	}
	return defaults.ContinuityMode
}
