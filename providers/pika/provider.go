// Package pika implements the Pika video generation provider. Pika has no
// start-image or native style parameter; continuity goes through an
// IP-adapter conditioning image or seed persistence. The seed it used
// comes back as a top-level field on the job result.
package pika

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

// Provider implements providers.VideoGenerator using the Pika API.
type Provider struct {
	cfg    providers.PikaConfig
	client *http.Client
}

// New creates a new Pika provider.
func New(cfg providers.PikaConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pika.art"
	}
	if cfg.Model == "" {
		cfg.Model = "pika-2.2"
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

func (p *Provider) Name() string { return providers.ProviderPika }

type generateRequest struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"promptText"`
	AspectRatio    string  `json:"aspectRatio,omitempty"`
	Resolution     string  `json:"resolution,omitempty"`
	IPAdapterImage string  `json:"ipAdapterImage,omitempty"`
	IPAdapterScale float64 `json:"ipAdapterScale,omitempty"`
	SeedValue      *int64  `json:"seedValue,omitempty"`
}

type jobResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // pending, processing, finished, failed
	VideoURL string `json:"videoUrl,omitempty"`
	Seed     int64  `json:"seed,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Generate submits a job and polls it to completion.
// Endpoint: POST /v1/videos
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
	// IP-adapter conditioning: a synthesized keyframe arrives as the
	// style reference URL, scaled by the style strength.
	if opts.StyleReferenceURL != "" {
		body.IPAdapterImage = opts.StyleReferenceURL
		body.IPAdapterScale = opts.StyleStrength
	}
	if raw, ok := opts.Extra["seedValue"]; ok {
		if seed, ok := raw.(int64); ok {
			body.SeedValue = &seed
		}
	}

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.cfg.BaseURL+"/v1/videos",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pika request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pika error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode pika response: %w", err)
	}

	final, err := p.pollJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{"status": final.Status}
	if final.Seed != 0 {
		raw["seed"] = final.Seed
	}

	return &providers.GenerationResult{
		AssetID:   final.ID,
		VideoURL:  final.VideoURL,
		Raw:       raw,
		CreatedAt: time.Now(),
	}, nil
}

func (p *Provider) pollJob(ctx context.Context, id string) (*jobResponse, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := p.getJob(ctx, id)
			if err != nil {
				continue
			}

			switch job.Status {
			case "finished":
				return job, nil
			case "failed":
				if job.Error != "" {
					return nil, fmt.Errorf("pika generation failed: %s", job.Error)
				}
				return nil, fmt.Errorf("pika generation failed")
			}
			// keep polling on pending / processing
		}
	}
}

func (p *Provider) getJob(ctx context.Context, id string) (*jobResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/v1/videos/%s", p.cfg.BaseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pika request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("pika error: status=%d", resp.StatusCode)
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode pika response: %w", err)
	}
	return &job, nil
}

// VideoURL resolves a job ID to its video URL.
func (p *Provider) VideoURL(ctx context.Context, assetIDOrPath string) (string, error) {
	job, err := p.getJob(ctx, assetIDOrPath)
	if err != nil {
		return "", err
	}
	return job.VideoURL, nil
}

// CharacterReferenceURL is not supported by Pika.
func (p *Provider) CharacterReferenceURL(ctx context.Context, assetID string) (string, error) {
	return "", fmt.Errorf("character references not supported by pika provider")
}
