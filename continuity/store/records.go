package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bharm16/reelflow/types"
)

// KindContinuity tags continuity sessions inside the unified sessions
// table, which also holds other session kinds.
const KindContinuity = "continuity"

// SessionRecord is the unified-store row: a generic session envelope with
// a kind discriminator and the full continuity payload as JSON.
type SessionRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"index;size:64;column:user_id"`
	Kind      string    `gorm:"index;size:32"`
	Version   int64     `gorm:"not null"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName maps the unified store to the sessions table.
func (SessionRecord) TableName() string { return "sessions" }

// ContinuitySessionRecord is the legacy continuity-only row, kept readable
// during the migration window.
type ContinuitySessionRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"index;size:64;column:user_id"`
	Version   int64     `gorm:"not null"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName maps the legacy store to its table.
func (ContinuitySessionRecord) TableName() string { return "continuity_sessions" }

// The wire documents below carry every date as epoch milliseconds and omit
// absent optional fields entirely. Optionals are pointers with omitempty so
// a partial write can never clobber stored data with nulls.

type frameDoc struct {
	SourceVideoID string  `json:"sourceVideoId,omitempty"`
	FrameURL      string  `json:"frameUrl"`
	Timestamp     float64 `json:"timestamp,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	AspectRatio   string  `json:"aspectRatio,omitempty"`
	ExtractedAtMs int64   `json:"extractedAtMs"`
}

type styleRefDoc struct {
	ID string `json:"id"`
	frameDoc
}

type frameBridgeDoc struct {
	ID string `json:"id"`
	frameDoc
}

type sceneProxyDoc struct {
	ID                string `json:"id"`
	SourceVideoID     string `json:"sourceVideoId,omitempty"`
	ProxyType         string `json:"proxyType"`
	ReferenceFrameURL string `json:"referenceFrameUrl,omitempty"`
	Status            string `json:"status"`
}

type seedDoc struct {
	Seed          int64  `json:"seed"`
	Provider      string `json:"provider"`
	ModelID       string `json:"modelId"`
	ExtractedAtMs int64  `json:"extractedAtMs"`
}

type cameraDoc struct {
	Pan   *float64 `json:"pan,omitempty"`
	Tilt  *float64 `json:"tilt,omitempty"`
	Zoom  *float64 `json:"zoom,omitempty"`
	Dolly *float64 `json:"dolly,omitempty"`
}

type shotDoc struct {
	ID                      string          `json:"id"`
	SessionID               string          `json:"sessionId"`
	SequenceIndex           int             `json:"sequenceIndex"`
	UserPrompt              string          `json:"userPrompt"`
	GenerationMode          string          `json:"generationMode"`
	ContinuityMode          string          `json:"continuityMode,omitempty"`
	StyleStrength           float64         `json:"styleStrength,omitempty"`
	StyleReferenceID        string          `json:"styleReferenceId,omitempty"`
	ModelID                 string          `json:"modelId"`
	CharacterAssetID        string          `json:"characterAssetId,omitempty"`
	CameraAdjustments       *cameraDoc      `json:"cameraAdjustments,omitempty"`
	Status                  string          `json:"status"`
	VideoAssetID            string          `json:"videoAssetId,omitempty"`
	FrameBridge             *frameBridgeDoc `json:"frameBridge,omitempty"`
	StyleReference          *styleRefDoc    `json:"styleReference,omitempty"`
	SeedInfo                *seedDoc        `json:"seedInfo,omitempty"`
	QualityScore            *float64        `json:"qualityScore,omitempty"`
	RetryCount              int             `json:"retryCount,omitempty"`
	ContinuityMechanismUsed string          `json:"continuityMechanismUsed,omitempty"`
	Error                   string          `json:"error,omitempty"`
	CreatedAtMs             int64           `json:"createdAtMs"`
	GeneratedAtMs           *int64          `json:"generatedAtMs,omitempty"`
}

type sessionDoc struct {
	ID                    string                `json:"id"`
	UserID                string                `json:"userId"`
	Name                  string                `json:"name"`
	Description           string                `json:"description,omitempty"`
	PrimaryStyleReference *styleRefDoc          `json:"primaryStyleReference,omitempty"`
	SceneProxy            *sceneProxyDoc        `json:"sceneProxy,omitempty"`
	Shots                 []shotDoc             `json:"shots"`
	DefaultSettings       types.SessionSettings `json:"defaultSettings"`
	Status                string                `json:"status"`
	Version               int64                 `json:"version"`
	CreatedAtMs           int64                 `json:"createdAtMs"`
	UpdatedAtMs           int64                 `json:"updatedAtMs"`
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts epoch milliseconds back to a time. Zero and negative
// values are treated as malformed and replaced with the current time.
func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

func frameToDoc(f types.ExtractedFrame) frameDoc {
	return frameDoc{
		SourceVideoID: f.SourceVideoID,
		FrameURL:      f.FrameURL,
		Timestamp:     f.Timestamp,
		Width:         f.Width,
		Height:        f.Height,
		AspectRatio:   f.AspectRatio,
		ExtractedAtMs: toMillis(f.ExtractedAt),
	}
}

func frameFromDoc(d frameDoc) types.ExtractedFrame {
	return types.ExtractedFrame{
		SourceVideoID: d.SourceVideoID,
		FrameURL:      d.FrameURL,
		Timestamp:     d.Timestamp,
		Width:         d.Width,
		Height:        d.Height,
		AspectRatio:   d.AspectRatio,
		ExtractedAt:   fromMillis(d.ExtractedAtMs),
	}
}

func shotToDoc(s *types.ContinuityShot) shotDoc {
	doc := shotDoc{
		ID:                      s.ID,
		SessionID:               s.SessionID,
		SequenceIndex:           s.SequenceIndex,
		UserPrompt:              s.UserPrompt,
		GenerationMode:          string(s.GenerationMode),
		ContinuityMode:          string(s.ContinuityMode),
		StyleStrength:           s.StyleStrength,
		StyleReferenceID:        s.StyleReferenceID,
		ModelID:                 s.ModelID,
		CharacterAssetID:        s.CharacterAssetID,
		Status:                  string(s.Status),
		VideoAssetID:            s.VideoAssetID,
		QualityScore:            s.QualityScore,
		RetryCount:              s.RetryCount,
		ContinuityMechanismUsed: string(s.ContinuityMechanismUsed),
		Error:                   s.Error,
		CreatedAtMs:             toMillis(s.CreatedAt),
	}
	if s.CameraAdjustments != nil {
		doc.CameraAdjustments = &cameraDoc{
			Pan:   s.CameraAdjustments.Pan,
			Tilt:  s.CameraAdjustments.Tilt,
			Zoom:  s.CameraAdjustments.Zoom,
			Dolly: s.CameraAdjustments.Dolly,
		}
	}
	if s.FrameBridge != nil {
		doc.FrameBridge = &frameBridgeDoc{ID: s.FrameBridge.ID, frameDoc: frameToDoc(s.FrameBridge.ExtractedFrame)}
	}
	if s.StyleReference != nil {
		doc.StyleReference = &styleRefDoc{ID: s.StyleReference.ID, frameDoc: frameToDoc(s.StyleReference.ExtractedFrame)}
	}
	if s.SeedInfo != nil {
		doc.SeedInfo = &seedDoc{
			Seed:          s.SeedInfo.Seed,
			Provider:      s.SeedInfo.Provider,
			ModelID:       s.SeedInfo.ModelID,
			ExtractedAtMs: toMillis(s.SeedInfo.ExtractedAt),
		}
	}
	if s.GeneratedAt != nil {
		ms := toMillis(*s.GeneratedAt)
		doc.GeneratedAtMs = &ms
	}
	return doc
}

func shotFromDoc(d shotDoc) *types.ContinuityShot {
	shot := &types.ContinuityShot{
		ID:                      d.ID,
		SessionID:               d.SessionID,
		SequenceIndex:           d.SequenceIndex,
		UserPrompt:              d.UserPrompt,
		GenerationMode:          types.GenerationMode(d.GenerationMode),
		ContinuityMode:          types.ContinuityMode(d.ContinuityMode),
		StyleStrength:           d.StyleStrength,
		StyleReferenceID:        d.StyleReferenceID,
		ModelID:                 d.ModelID,
		CharacterAssetID:        d.CharacterAssetID,
		Status:                  types.ShotStatus(d.Status),
		VideoAssetID:            d.VideoAssetID,
		QualityScore:            d.QualityScore,
		RetryCount:              d.RetryCount,
		ContinuityMechanismUsed: types.ContinuityMechanism(d.ContinuityMechanismUsed),
		Error:                   d.Error,
		CreatedAt:               fromMillis(d.CreatedAtMs),
	}
	if d.CameraAdjustments != nil {
		shot.CameraAdjustments = &types.CameraAdjustments{
			Pan:   d.CameraAdjustments.Pan,
			Tilt:  d.CameraAdjustments.Tilt,
			Zoom:  d.CameraAdjustments.Zoom,
			Dolly: d.CameraAdjustments.Dolly,
		}
	}
	if d.FrameBridge != nil {
		shot.FrameBridge = &types.FrameBridge{ID: d.FrameBridge.ID, ExtractedFrame: frameFromDoc(d.FrameBridge.frameDoc)}
	}
	if d.StyleReference != nil {
		shot.StyleReference = &types.StyleReference{ID: d.StyleReference.ID, ExtractedFrame: frameFromDoc(d.StyleReference.frameDoc)}
	}
	if d.SeedInfo != nil {
		shot.SeedInfo = &types.SeedInfo{
			Seed:        d.SeedInfo.Seed,
			Provider:    d.SeedInfo.Provider,
			ModelID:     d.SeedInfo.ModelID,
			ExtractedAt: fromMillis(d.SeedInfo.ExtractedAtMs),
		}
	}
	if d.GeneratedAtMs != nil {
		t := fromMillis(*d.GeneratedAtMs)
		shot.GeneratedAt = &t
	}
	return shot
}

func sessionToDoc(s *types.ContinuitySession) sessionDoc {
	doc := sessionDoc{
		ID:              s.ID,
		UserID:          s.UserID,
		Name:            s.Name,
		Description:     s.Description,
		Shots:           make([]shotDoc, 0, len(s.Shots)),
		DefaultSettings: s.DefaultSettings,
		Status:          string(s.Status),
		Version:         s.Version,
		CreatedAtMs:     toMillis(s.CreatedAt),
		UpdatedAtMs:     toMillis(s.UpdatedAt),
	}
	if s.PrimaryStyleReference != nil {
		doc.PrimaryStyleReference = &styleRefDoc{
			ID:       s.PrimaryStyleReference.ID,
			frameDoc: frameToDoc(s.PrimaryStyleReference.ExtractedFrame),
		}
	}
	if s.SceneProxy != nil {
		doc.SceneProxy = &sceneProxyDoc{
			ID:                s.SceneProxy.ID,
			SourceVideoID:     s.SceneProxy.SourceVideoID,
			ProxyType:         string(s.SceneProxy.ProxyType),
			ReferenceFrameURL: s.SceneProxy.ReferenceFrameURL,
			Status:            string(s.SceneProxy.Status),
		}
	}
	for _, shot := range s.Shots {
		doc.Shots = append(doc.Shots, shotToDoc(shot))
	}
	return doc
}

func sessionFromDoc(d sessionDoc) *types.ContinuitySession {
	session := &types.ContinuitySession{
		ID:              d.ID,
		UserID:          d.UserID,
		Name:            d.Name,
		Description:     d.Description,
		Shots:           make([]*types.ContinuityShot, 0, len(d.Shots)),
		DefaultSettings: d.DefaultSettings,
		Status:          types.SessionStatus(d.Status),
		Version:         d.Version,
		CreatedAt:       fromMillis(d.CreatedAtMs),
		UpdatedAt:       fromMillis(d.UpdatedAtMs),
	}
	if d.PrimaryStyleReference != nil {
		session.PrimaryStyleReference = &types.StyleReference{
			ID:             d.PrimaryStyleReference.ID,
			ExtractedFrame: frameFromDoc(d.PrimaryStyleReference.frameDoc),
		}
	}
	if d.SceneProxy != nil {
		session.SceneProxy = &types.SceneProxy{
			ID:                d.SceneProxy.ID,
			SourceVideoID:     d.SceneProxy.SourceVideoID,
			ProxyType:         types.SceneProxyType(d.SceneProxy.ProxyType),
			ReferenceFrameURL: d.SceneProxy.ReferenceFrameURL,
			Status:            types.SceneProxyStatus(d.SceneProxy.Status),
		}
	}
	for _, shot := range d.Shots {
		session.Shots = append(session.Shots, shotFromDoc(shot))
	}
	return session
}

// encodeSession serializes a session to its wire payload.
func encodeSession(s *types.ContinuitySession) (string, error) {
	data, err := json.Marshal(sessionToDoc(s))
	if err != nil {
		return "", fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	return string(data), nil
}

// decodeSession deserializes a wire payload.
func decodeSession(payload string) (*types.ContinuitySession, error) {
	var doc sessionDoc
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session payload: %w", err)
	}
	return sessionFromDoc(doc), nil
}
