package continuity

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

// SeedService owns everything seed-shaped: extracting the seed a provider
// actually used, deciding when a seed may be inherited by a later shot,
// and emitting the provider-specific request fragment.
type SeedService struct {
	logger *zap.Logger
}

// NewSeedService creates a seed service.
func NewSeedService(logger *zap.Logger) *SeedService {
	return &SeedService{
		logger: logger.With(zap.String("component", "seed")),
	}
}

// ExtractSeed pulls the effective seed out of a generation result. Each
// provider reports it somewhere different: Runway nests it under the task
// info object, Pika reports it top-level, Luma not at all. Returns nil
// when no seed is present.
func (s *SeedService) ExtractSeed(provider, modelID string, result *providers.GenerationResult) *types.SeedInfo {
	if result == nil || result.Raw == nil {
		return nil
	}

	var raw any
	switch provider {
	case providers.ProviderRunway:
		info, ok := result.Raw["info"].(map[string]any)
		if !ok {
			return nil
		}
		raw = info["seed"]
	case providers.ProviderPika:
		raw = result.Raw["seed"]
	default:
		return nil
	}

	seed, ok := asInt64(raw)
	if !ok {
		return nil
	}

	return &types.SeedInfo{
		Seed:        seed,
		Provider:    provider,
		ModelID:     modelID,
		ExtractedAt: time.Now(),
	}
}

// InheritedSeed returns the numeric seed when seedInfo may be inherited by
// a generation on targetProvider. Seeds never cross providers.
func (s *SeedService) InheritedSeed(seedInfo *types.SeedInfo, targetProvider string) (int64, bool) {
	if !seedInfo.InheritableBy(targetProvider) {
		return 0, false
	}
	return seedInfo.Seed, true
}

// SeedParam returns the provider-specific request fragment carrying the
// seed. When ok is false the fragment is empty: a seed key is never sent
// with an absent value.
func (s *SeedService) SeedParam(provider string, seed int64, ok bool) map[string]any {
	if !ok {
		return map[string]any{}
	}

	switch provider {
	case providers.ProviderRunway:
		return map[string]any{"seed": seed}
	case providers.ProviderPika:
		return map[string]any{"seedValue": seed}
	default:
		return map[string]any{}
	}
}

// asInt64 tolerates the numeric types JSON decoding and provider clients
// produce.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
