package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bharm16/reelflow/internal/tlsutil"
	"github.com/bharm16/reelflow/types"
)

// ClientConfig configures the media service HTTP client.
type ClientConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	APIKey  string        `json:"api_key" yaml:"api_key"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultClientConfig returns the default media client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "http://localhost:8090",
		Timeout: 120 * time.Second,
	}
}

// Client talks to the media pipeline service. It implements
// FrameExtractor, StyleSynthesizer, PaletteService, SceneProxyEngine,
// StyleScorer, IdentityScorer, and BlobStore.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

// NewClient creates a media service client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8090"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("media service error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode media response: %w", err)
	}
	return nil
}

// ExtractBridgeFrame implements FrameExtractor.
func (c *Client) ExtractBridgeFrame(ctx context.Context, userID, videoID, videoURL, shotID string, position FramePosition) (*types.FrameBridge, error) {
	req := map[string]any{
		"user_id":   userID,
		"video_id":  videoID,
		"video_url": videoURL,
		"shot_id":   shotID,
		"position":  string(position),
	}
	var bridge types.FrameBridge
	if err := c.post(ctx, "/v1/frames/bridge", req, &bridge); err != nil {
		return nil, err
	}
	return &bridge, nil
}

// ExtractRepresentativeFrame implements FrameExtractor.
func (c *Client) ExtractRepresentativeFrame(ctx context.Context, userID, videoID, videoURL, shotID string) (*types.StyleReference, error) {
	req := map[string]any{
		"user_id":   userID,
		"video_id":  videoID,
		"video_url": videoURL,
		"shot_id":   shotID,
	}
	var ref types.StyleReference
	if err := c.post(ctx, "/v1/frames/representative", req, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// CreateFromVideo implements StyleSynthesizer.
func (c *Client) CreateFromVideo(ctx context.Context, userID, videoID, videoURL string) (*types.StyleReference, error) {
	req := map[string]any{
		"user_id":   userID,
		"video_id":  videoID,
		"video_url": videoURL,
	}
	var ref types.StyleReference
	if err := c.post(ctx, "/v1/styles/from-video", req, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// CreateFromImage implements StyleSynthesizer.
func (c *Client) CreateFromImage(ctx context.Context, userID, imageURL string) (*types.StyleReference, error) {
	req := map[string]any{
		"user_id":   userID,
		"image_url": imageURL,
	}
	var ref types.StyleReference
	if err := c.post(ctx, "/v1/styles/from-image", req, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// GenerateStyledKeyframe implements StyleSynthesizer.
func (c *Client) GenerateStyledKeyframe(ctx context.Context, req KeyframeRequest) (string, error) {
	var out struct {
		KeyframeURL string `json:"keyframe_url"`
	}
	if err := c.post(ctx, "/v1/styles/keyframe", req, &out); err != nil {
		return "", err
	}
	if out.KeyframeURL == "" {
		return "", fmt.Errorf("keyframe model returned no output")
	}
	return out.KeyframeURL, nil
}

// MatchPalette implements PaletteService.
func (c *Client) MatchPalette(ctx context.Context, assetID, referenceURL string) (*PaletteResult, error) {
	req := map[string]any{
		"asset_id":      assetID,
		"reference_url": referenceURL,
	}
	var result PaletteResult
	if err := c.post(ctx, "/v1/palette/match", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MatchImagePalette implements PaletteService.
func (c *Client) MatchImagePalette(ctx context.Context, userID, sourceURL, referenceURL string) (*PaletteResult, error) {
	req := map[string]any{
		"user_id":       userID,
		"source_url":    sourceURL,
		"reference_url": referenceURL,
	}
	var result PaletteResult
	if err := c.post(ctx, "/v1/palette/match-image", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RenderProxy implements SceneProxyEngine.
func (c *Client) RenderProxy(ctx context.Context, userID string, proxy *types.SceneProxy, shotID string, deltas map[string]float64) (string, error) {
	if proxy == nil {
		return "", fmt.Errorf("scene proxy is required")
	}
	req := map[string]any{
		"user_id":  userID,
		"proxy_id": proxy.ID,
		"shot_id":  shotID,
		"deltas":   deltas,
	}
	var out struct {
		FrameURL string `json:"frame_url"`
	}
	if err := c.post(ctx, "/v1/proxies/render", req, &out); err != nil {
		return "", err
	}
	return out.FrameURL, nil
}

// CreateProxyFromVideo implements SceneProxyEngine.
func (c *Client) CreateProxyFromVideo(ctx context.Context, userID, videoID, videoURL string) (*types.SceneProxy, error) {
	req := map[string]any{
		"user_id":   userID,
		"video_id":  videoID,
		"video_url": videoURL,
	}
	var proxy types.SceneProxy
	if err := c.post(ctx, "/v1/proxies", req, &proxy); err != nil {
		return nil, err
	}
	return &proxy, nil
}

// StyleSimilarity implements StyleScorer via the embedding endpoint.
func (c *Client) StyleSimilarity(ctx context.Context, frameURL, referenceURL string) (float64, error) {
	req := map[string]any{
		"frame_url":     frameURL,
		"reference_url": referenceURL,
	}
	var out struct {
		Score float64 `json:"score"`
	}
	if err := c.post(ctx, "/v1/similarity/style", req, &out); err != nil {
		return 0, err
	}
	return out.Score, nil
}

// Histogram returns a StyleScorer backed by the pixel-histogram endpoint.
// It is the cheap fallback when the embedding model is unavailable.
func (c *Client) Histogram() StyleScorer {
	return histogramScorer{c: c}
}

type histogramScorer struct {
	c *Client
}

func (h histogramScorer) StyleSimilarity(ctx context.Context, frameURL, referenceURL string) (float64, error) {
	req := map[string]any{
		"frame_url":     frameURL,
		"reference_url": referenceURL,
	}
	var out struct {
		Score float64 `json:"score"`
	}
	if err := h.c.post(ctx, "/v1/similarity/histogram", req, &out); err != nil {
		return 0, err
	}
	return out.Score, nil
}

// IdentitySimilarity implements IdentityScorer via the face-embedding
// endpoint.
func (c *Client) IdentitySimilarity(ctx context.Context, frameURL, characterURL string) (float64, error) {
	req := map[string]any{
		"frame_url":     frameURL,
		"character_url": characterURL,
	}
	var out struct {
		Score float64 `json:"score"`
	}
	if err := c.post(ctx, "/v1/similarity/identity", req, &out); err != nil {
		return 0, err
	}
	return out.Score, nil
}

// SaveFromBuffer implements BlobStore.
func (c *Client) SaveFromBuffer(ctx context.Context, userID string, buf []byte, label, contentType string, metadata map[string]string) (*StoredObject, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("user_id", userID)
	_ = w.WriteField("label", label)
	for k, v := range metadata {
		_ = w.WriteField("meta_"+k, v)
	}
	part, err := w.CreateFormFile("file", label)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	w.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/blobs", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("X-Content-Type", contentType)
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("media service error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var obj StoredObject
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to decode media response: %w", err)
	}
	return &obj, nil
}

// ViewURL implements BlobStore.
func (c *Client) ViewURL(ctx context.Context, userID, storagePath string) (string, error) {
	req := map[string]any{
		"user_id":      userID,
		"storage_path": storagePath,
	}
	var out struct {
		ViewURL string `json:"view_url"`
	}
	if err := c.post(ctx, "/v1/blobs/view-url", req, &out); err != nil {
		return "", err
	}
	return out.ViewURL, nil
}
