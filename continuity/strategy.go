package continuity

import (
	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

// Strategy is the continuity mechanism resolved for one generation call.
type Strategy string

const (
	// StrategyNativeStyleRef passes the style reference through the
	// provider's first-class style parameter. Always preferred when the
	// provider has one.
	StrategyNativeStyleRef Strategy = "native-style-ref"

	// StrategyFrameBridge supplies a literal frame from the previous shot
	// as the start image.
	StrategyFrameBridge Strategy = "frame-bridge"

	// StrategyIPAdapter synthesizes an image-conditioned keyframe from the
	// style reference and feeds it to the provider, either as a start
	// image or through an IP-adapter parameter.
	StrategyIPAdapter Strategy = "ip-adapter"

	// StrategyNone means no continuity mechanism is resolvable.
	StrategyNone Strategy = "none"
)

// Mechanism converts a strategy into the mechanism recorded on a shot.
func (s Strategy) Mechanism() types.ContinuityMechanism {
	switch s {
	case StrategyNativeStyleRef:
		return types.MechanismNativeStyleRef
	case StrategyFrameBridge:
		return types.MechanismFrameBridge
	case StrategyIPAdapter:
		return types.MechanismIPAdapter
	default:
		return types.MechanismNone
	}
}

// ResolveStrategy maps (provider, requested mode, anchor availability) to a
// continuity strategy. It is a pure lookup on the static capability
// registry: no network, no per-call heuristics, fully unit-testable.
//
// hasBridgeFrame reports whether a literal frame from a preceding shot is
// available; it distinguishes frame-bridge from keyframe synthesis when a
// start-image provider handles a style-match request.
func ResolveStrategy(provider string, mode types.ContinuityMode, hasBridgeFrame bool) Strategy {
	caps, ok := providers.Lookup(provider)
	if !ok {
		return StrategyNone
	}

	switch mode {
	case types.ContinuityModeNative:
		if caps.SupportsNativeStyleReference {
			return StrategyNativeStyleRef
		}
		return StrategyNone

	case types.ContinuityModeFrameBridge:
		if caps.SupportsStartImage && hasBridgeFrame {
			return StrategyFrameBridge
		}
		return StrategyNone

	case types.ContinuityModeStyleMatch:
		// Native style support always wins.
		if caps.SupportsNativeStyleReference {
			return StrategyNativeStyleRef
		}
		if caps.SupportsStartImage {
			if hasBridgeFrame {
				return StrategyFrameBridge
			}
			// No literal anchor: synthesize a styled keyframe and use it
			// as the start image.
			return StrategyIPAdapter
		}
		if caps.SupportsIPAdapter {
			return StrategyIPAdapter
		}
		return StrategyNone

	default:
		return StrategyNone
	}
}
