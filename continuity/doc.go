// Package continuity implements the shot-generation orchestrator: it
// resolves which continuity mechanism a provider can honor, drives
// generation through a quality-gated adaptive retry loop, and persists
// results against concurrent session edits with optimistic concurrency.
//
// The package is organized around small collaborating services:
//
//   - AnchorService — validates provider continuity support and decides
//     scene-proxy applicability.
//   - ResolveStrategy — static capability-table dispatch to a continuity
//     strategy (native style ref, frame bridge, IP-adapter, none).
//   - SeedService — provider-specific seed extraction, inheritance, and
//     request fragments.
//   - QualityGate — style/identity similarity scoring with graceful
//     degradation.
//   - PostProcessor — palette grading and scene-proxy rendering.
//   - ShotGenerator — the per-shot state machine tying it all together.
//   - SessionService — session and shot lifecycle operations.
//
// Persistence goes through the Store interface; see the store subpackage
// for the unified/legacy dual-store implementation.
package continuity
