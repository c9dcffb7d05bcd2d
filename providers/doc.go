// Package providers defines the unified video-generation provider
// interface, the static capability registry that drives continuity
// strategy resolution, and the model-to-provider mapping.
//
// Capability dispatch is a table lookup, never a network call, so the
// continuity decision logic stays deterministic and unit-testable without
// any provider being reachable.
package providers
