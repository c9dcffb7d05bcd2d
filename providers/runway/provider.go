// Package runway implements the Runway Gen-4 video generation provider.
// Runway continuity goes through the promptImage (start image) parameter;
// the seed it actually used is reported nested under the task info object.
package runway

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

// Provider implements providers.VideoGenerator using the Runway ML API.
// API docs: https://docs.dev.runwayml.com/api/
type Provider struct {
	cfg    providers.RunwayConfig
	client *http.Client
}

// New creates a new Runway provider.
func New(cfg providers.RunwayConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.runwayml.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gen4_turbo"
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

func (p *Provider) Name() string { return providers.ProviderRunway }

type generateRequest struct {
	Model       string `json:"model"`
	PromptText  string `json:"promptText,omitempty"`
	PromptImage string `json:"promptImage,omitempty"` // HTTPS URL or data URI
	Ratio       string `json:"ratio,omitempty"`       // e.g. "1280:720", "720:1280"
	Duration    int    `json:"duration,omitempty"`    // 2-10 seconds
	Seed        *int64 `json:"seed,omitempty"`
}

type taskResponse struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"` // PENDING, RUNNING, SUCCEEDED, FAILED
	Output      []string       `json:"output,omitempty"`
	Info        map[string]any `json:"info,omitempty"` // includes the effective seed
	CreatedAt   string         `json:"createdAt"`
	Failure     string         `json:"failure,omitempty"`
	FailureCode string         `json:"failureCode,omitempty"`
}

// Generate submits an image-to-video / text-to-video task and polls it to
// completion.
// Endpoint: POST /v1/image_to_video
func (p *Provider) Generate(ctx context.Context, prompt string, opts providers.GenerationOptions) (*providers.GenerationResult, error) {
	model := opts.ModelID
	if model == "" {
		model = p.cfg.Model
	}

	duration := int(opts.Duration)
	if duration == 0 {
		duration = 5
	}
	if duration < 2 {
		duration = 2
	}
	if duration > 10 {
		duration = 10
	}

	ratio := "1280:720" // default 16:9
	switch opts.AspectRatio {
	case "", "16:9":
	case "9:16":
		ratio = "720:1280"
	case "1:1":
		ratio = "960:960"
	default:
		ratio = opts.AspectRatio
	}

	body := generateRequest{
		Model:      model,
		PromptText: prompt,
		Ratio:      ratio,
		Duration:   duration,
	}
	if opts.StartImageURL != "" {
		body.PromptImage = opts.StartImageURL
	}
	if raw, ok := opts.Extra["seed"]; ok {
		if seed, ok := raw.(int64); ok {
			body.Seed = &seed
		}
	}

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.cfg.BaseURL+"/v1/image_to_video",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Runway-Version", "2024-11-06")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("runway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("runway error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode runway response: %w", err)
	}

	final, err := p.pollTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	videoURL := ""
	if len(final.Output) > 0 {
		videoURL = final.Output[0]
	}

	raw := map[string]any{"status": final.Status}
	if final.Info != nil {
		raw["info"] = final.Info
	}

	return &providers.GenerationResult{
		AssetID:   final.ID,
		VideoURL:  videoURL,
		Raw:       raw,
		CreatedAt: time.Now(),
	}, nil
}

func (p *Provider) pollTask(ctx context.Context, id string) (*taskResponse, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			httpReq, err := http.NewRequestWithContext(ctx, "GET",
				fmt.Sprintf("%s/v1/tasks/%s", p.cfg.BaseURL, id), nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
			httpReq.Header.Set("X-Runway-Version", "2024-11-06")

			resp, err := p.client.Do(httpReq)
			if err != nil {
				continue
			}

			var task taskResponse
			json.NewDecoder(resp.Body).Decode(&task)
			resp.Body.Close()

			switch task.Status {
			case "SUCCEEDED":
				return &task, nil
			case "FAILED":
				if task.Failure != "" {
					return nil, fmt.Errorf("runway generation failed: %s", task.Failure)
				}
				return nil, fmt.Errorf("runway generation failed")
			}
			// keep polling on PENDING / RUNNING
		}
	}
}

// VideoURL resolves a finished task to its output URL.
func (p *Provider) VideoURL(ctx context.Context, assetIDOrPath string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/v1/tasks/%s", p.cfg.BaseURL, assetIDOrPath), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("X-Runway-Version", "2024-11-06")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("runway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("runway error: status=%d", resp.StatusCode)
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return "", fmt.Errorf("failed to decode runway response: %w", err)
	}
	if len(task.Output) == 0 {
		return "", nil
	}
	return task.Output[0], nil
}

// CharacterReferenceURL resolves a character asset to its reference image.
// Endpoint: GET /v1/assets/{id}
func (p *Provider) CharacterReferenceURL(ctx context.Context, assetID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/v1/assets/%s", p.cfg.BaseURL, assetID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("X-Runway-Version", "2024-11-06")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("runway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("runway error: status=%d", resp.StatusCode)
	}

	var asset struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return "", fmt.Errorf("failed to decode runway response: %w", err)
	}
	return asset.URL, nil
}
