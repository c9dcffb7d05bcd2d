package types

import "time"

// ExtractedFrame describes a single frame pulled out of a source video.
// It is embedded by both FrameBridge and StyleReference, which share shape
// but differ in intent.
type ExtractedFrame struct {
	SourceVideoID string    `json:"source_video_id"`
	FrameURL      string    `json:"frame_url"`
	Timestamp     float64   `json:"timestamp"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	AspectRatio   string    `json:"aspect_ratio,omitempty"`
	ExtractedAt   time.Time `json:"extracted_at"`
}

// FrameBridge is a literal frame extracted from a previous shot's video,
// supplied as a start image to the next generation call.
type FrameBridge struct {
	ID string `json:"id"`
	ExtractedFrame
}

// StyleReference is a representative extracted frame used for looser
// stylistic conditioning. Unlike a FrameBridge it may come from any earlier
// point in the session, including a "best" frame chosen by a quality
// heuristic.
type StyleReference struct {
	ID string `json:"id"`
	ExtractedFrame
}

// SceneProxyStatus represents the build state of a scene proxy.
type SceneProxyStatus string

const (
	SceneProxyBuilding SceneProxyStatus = "building"
	SceneProxyReady    SceneProxyStatus = "ready"
)

// SceneProxyType identifies the geometry representation backing a proxy.
type SceneProxyType string

const (
	SceneProxyTypeParallax SceneProxyType = "parallax"
	SceneProxyTypeGaussian SceneProxyType = "gaussian"
)

// SceneProxy is a precomputed geometric/parallax representation of a source
// video. It enables camera-parameter re-rendering while preserving
// composition; it is never used for literal-frame continuity.
type SceneProxy struct {
	ID                string           `json:"id"`
	SourceVideoID     string           `json:"source_video_id"`
	ProxyType         SceneProxyType   `json:"proxy_type"`
	ReferenceFrameURL string           `json:"reference_frame_url"`
	Status            SceneProxyStatus `json:"status"`
}

// Ready reports whether the proxy can serve render requests.
func (p *SceneProxy) Ready() bool {
	return p != nil && p.Status == SceneProxyReady
}
