package providers

import "strings"

// Provider registry identifiers.
const (
	ProviderRunway = "runway"
	ProviderLuma   = "luma"
	ProviderPika   = "pika"
)

// Capabilities describes the continuity-relevant parameters a provider's
// generation API accepts. The registry below is the single source of truth
// for strategy resolution.
type Capabilities struct {
	// SupportsStartImage: the API accepts a literal first-frame image
	// (image-to-video), usable for frame-bridge continuity.
	SupportsStartImage bool

	// SupportsNativeStyleReference: the API accepts a style reference
	// image plus strength as a first-class parameter.
	SupportsNativeStyleReference bool

	// SupportsIPAdapter: the API accepts an image-conditioning (IP-adapter)
	// input, usable for keyframe-synthesis fallback when neither a native
	// style parameter nor a start image is available.
	SupportsIPAdapter bool

	// SupportsSeed: the API accepts an explicit random seed and reports
	// the seed it used in generation results.
	SupportsSeed bool

	// SupportsCharacterReference: the API accepts an identity anchor image.
	SupportsCharacterReference bool
}

// registry is the static capability table. Extend here when onboarding a
// provider; nothing else in the continuity core needs to change.
var registry = map[string]Capabilities{
	ProviderRunway: {
		SupportsStartImage:         true,
		SupportsSeed:               true,
		SupportsCharacterReference: true,
	},
	ProviderLuma: {
		SupportsStartImage:           true,
		SupportsNativeStyleReference: true,
		SupportsCharacterReference:   true,
	},
	ProviderPika: {
		SupportsIPAdapter: true,
		SupportsSeed:      true,
	},
}

// modelPrefixes maps model ID prefixes to provider identifiers.
var modelPrefixes = []struct {
	prefix   string
	provider string
}{
	{"gen4", ProviderRunway},
	{"gen3", ProviderRunway},
	{"ray-", ProviderLuma},
	{"dream-machine", ProviderLuma},
	{"pika", ProviderPika},
}

// Lookup returns the capability flags for a provider. The zero value (no
// capabilities) is returned for unknown providers.
func Lookup(provider string) (Capabilities, bool) {
	caps, ok := registry[provider]
	return caps, ok
}

// FromModel maps a model ID to its provider identifier. Returns empty
// string for unknown models.
func FromModel(modelID string) string {
	m := strings.ToLower(strings.TrimSpace(modelID))
	for _, entry := range modelPrefixes {
		if strings.HasPrefix(m, entry.prefix) {
			return entry.provider
		}
	}
	return ""
}

// Names returns the registered provider identifiers.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
