package continuity

import (
	"context"

	"github.com/bharm16/reelflow/types"
)

// Store is the session persistence contract the orchestrator consumes.
// The store subpackage provides the unified/legacy dual-store
// implementation with optimistic concurrency.
type Store interface {
	// Create persists a brand-new session at version 1.
	Create(ctx context.Context, session *types.ContinuitySession) error

	// Get loads a session by ID. Returns a SESSION_NOT_FOUND error when
	// absent from both stores.
	Get(ctx context.Context, sessionID string) (*types.ContinuitySession, error)

	// List returns a user's sessions, newest first.
	List(ctx context.Context, userID string) ([]*types.ContinuitySession, error)

	// SaveWithVersion writes the session only if the stored version equals
	// expectedVersion, bumping it by exactly 1. A stale expectedVersion
	// yields a *types.VersionMismatchError and leaves stored state
	// untouched.
	SaveWithVersion(ctx context.Context, session *types.ContinuitySession, expectedVersion int64) (int64, error)

	// Delete removes the session from both the unified and legacy stores.
	Delete(ctx context.Context, sessionID string) error
}
