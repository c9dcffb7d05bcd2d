package providers

import "time"

// RunwayConfig configures the Runway video generation provider.
type RunwayConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // gen4_turbo, gen3a_turbo
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// LumaConfig configures the Luma Dream Machine provider.
type LumaConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // ray-2, ray-flash-2
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// PikaConfig configures the Pika provider.
type PikaConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // pika-2.2
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultRunwayConfig returns the default Runway configuration.
func DefaultRunwayConfig() RunwayConfig {
	return RunwayConfig{
		BaseURL: "https://api.runwayml.com",
		Model:   "gen4_turbo",
		Timeout: 300 * time.Second,
	}
}

// DefaultLumaConfig returns the default Luma configuration.
func DefaultLumaConfig() LumaConfig {
	return LumaConfig{
		BaseURL: "https://api.lumalabs.ai",
		Model:   "ray-2",
		Timeout: 300 * time.Second,
	}
}

// DefaultPikaConfig returns the default Pika configuration.
func DefaultPikaConfig() PikaConfig {
	return PikaConfig{
		BaseURL: "https://api.pika.art",
		Model:   "pika-2.2",
		Timeout: 300 * time.Second,
	}
}
