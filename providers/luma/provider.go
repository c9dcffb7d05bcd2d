// Package luma implements the Luma Dream Machine video generation
// provider. Luma exposes a native style_ref parameter, so style-match
// continuity never needs a synthesized start image here.
package luma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bharm16/reelflow/internal/tlsutil"
	"github.com/bharm16/reelflow/providers"
)

// Provider implements providers.VideoGenerator using the Luma API.
// API docs: https://docs.lumalabs.ai/reference
type Provider struct {
	cfg    providers.LumaConfig
	client *http.Client
}

// New creates a new Luma provider.
func New(cfg providers.LumaConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.lumalabs.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "ray-2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}

	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
	}
}

func (p *Provider) Name() string { return providers.ProviderLuma }

type keyframe struct {
	Type string `json:"type"` // image
	URL  string `json:"url"`
}

type styleRef struct {
	URL    string  `json:"url"`
	Weight float64 `json:"weight,omitempty"`
}

type characterRef struct {
	Identity struct {
		Images []string `json:"images"`
	} `json:"identity0"`
}

type generateRequest struct {
	Model        string               `json:"model"`
	Prompt       string               `json:"prompt"`
	AspectRatio  string               `json:"aspect_ratio,omitempty"`
	Resolution   string               `json:"resolution,omitempty"`
	Keyframes    map[string]keyframe  `json:"keyframes,omitempty"`
	StyleRef     []styleRef           `json:"style_ref,omitempty"`
	CharacterRef *characterRef        `json:"character_ref,omitempty"`
}

type generationResponse struct {
	ID      string `json:"id"`
	State   string `json:"state"` // queued, dreaming, completed, failed
	Assets  struct {
		Video string `json:"video"`
		Image string `json:"image"`
	} `json:"assets"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Generate submits a generation and polls it to completion.
// Endpoint: POST /dream-machine/v1/generations
func (p *Provider) Generate(ctx context.Context, prompt string, opts providers.GenerationOptions) (*providers.GenerationResult, error) {
	model := opts.ModelID
	if model == "" {
		model = p.cfg.Model
	}

	body := generateRequest{
		Model:       model,
		Prompt:      prompt,
		AspectRatio: opts.AspectRatio,
		Resolution:  opts.Resolution,
	}
	if opts.StartImageURL != "" {
		body.Keyframes = map[string]keyframe{
			"frame0": {Type: "image", URL: opts.StartImageURL},
		}
	}
	if opts.NativeStyleRef && opts.StyleReferenceURL != "" {
		body.StyleRef = []styleRef{{URL: opts.StyleReferenceURL, Weight: opts.StyleStrength}}
	}
	if opts.CharacterReferenceURL != "" {
		ref := &characterRef{}
		ref.Identity.Images = []string{opts.CharacterReferenceURL}
		body.CharacterRef = ref
	}

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.cfg.BaseURL+"/dream-machine/v1/generations",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("luma request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("luma error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var gen generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("failed to decode luma response: %w", err)
	}

	final, err := p.pollGeneration(ctx, gen.ID)
	if err != nil {
		return nil, err
	}

	return &providers.GenerationResult{
		AssetID:  final.ID,
		VideoURL: final.Assets.Video,
		Raw:      map[string]any{"state": final.State},
		CreatedAt: time.Now(),
	}, nil
}

func (p *Provider) pollGeneration(ctx context.Context, id string) (*generationResponse, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			gen, err := p.getGeneration(ctx, id)
			if err != nil {
				continue
			}

			switch gen.State {
			case "completed":
				return gen, nil
			case "failed":
				if gen.FailureReason != "" {
					return nil, fmt.Errorf("luma generation failed: %s", gen.FailureReason)
				}
				return nil, fmt.Errorf("luma generation failed")
			}
			// keep polling on queued / dreaming
		}
	}
}

func (p *Provider) getGeneration(ctx context.Context, id string) (*generationResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/dream-machine/v1/generations/%s", p.cfg.BaseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("luma request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("luma error: status=%d", resp.StatusCode)
	}

	var gen generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("failed to decode luma response: %w", err)
	}
	return &gen, nil
}

// VideoURL resolves a generation ID to its video asset URL.
func (p *Provider) VideoURL(ctx context.Context, assetIDOrPath string) (string, error) {
	gen, err := p.getGeneration(ctx, assetIDOrPath)
	if err != nil {
		return "", err
	}
	return gen.Assets.Video, nil
}

// CharacterReferenceURL resolves a character asset to its reference image.
func (p *Provider) CharacterReferenceURL(ctx context.Context, assetID string) (string, error) {
	gen, err := p.getGeneration(ctx, assetID)
	if err != nil {
		return "", err
	}
	if gen.Assets.Image == "" {
		return "", fmt.Errorf("luma asset %s has no reference image", assetID)
	}
	return gen.Assets.Image, nil
}
