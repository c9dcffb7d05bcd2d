// Package types defines the shared domain model for continuity sessions,
// shots, visual anchors, and seed inheritance, along with the unified
// error type used across the service.
package types
