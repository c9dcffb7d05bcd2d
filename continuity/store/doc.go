// Package store persists continuity sessions with optimistic concurrency.
//
// Writes go through SaveWithVersion, which compares the stored version
// inside a transaction and bumps it by exactly one. The package implements
// a dual-store migration: a unified sessions table (generic envelope with
// a kind discriminator) is the source of truth, while a legacy
// continuity-only table is still written (config) and read as a fallback,
// with legacy hits backfilled into the unified table. Payloads serialize
// dates as epoch milliseconds and omit absent optional fields entirely.
package store
