package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bharm16/reelflow/internal/cache"
	"github.com/bharm16/reelflow/internal/database"
	"github.com/bharm16/reelflow/internal/metrics"
	"github.com/bharm16/reelflow/types"
)

// Config controls the dual-store migration behavior and caching.
type Config struct {
	// DualWrite mirrors every write into the legacy continuity_sessions
	// table. Disable once all readers are on the unified store.
	DualWrite bool `yaml:"dual_write" json:"dual_write"`

	// CacheTTL bounds staleness of the redis read-through cache. Zero
	// disables caching even when a cache manager is wired.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		DualWrite: true,
		CacheTTL:  2 * time.Minute,
	}
}

// SessionStore persists continuity sessions with optimistic concurrency
// over a unified sessions table, falling back to (and backfilling from)
// the legacy continuity-only table during the migration window.
type SessionStore struct {
	pool    *database.PoolManager
	cache   *cache.Manager
	metrics *metrics.Collector
	config  Config
	logger  *zap.Logger
}

// NewSessionStore creates a session store. cache and collector may be nil.
func NewSessionStore(pool *database.PoolManager, cacheManager *cache.Manager, collector *metrics.Collector, config Config, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		pool:    pool,
		cache:   cacheManager,
		metrics: collector,
		config:  config,
		logger:  logger.With(zap.String("component", "session_store")),
	}
}

func cacheKey(sessionID string) string {
	return "continuity:session:" + sessionID
}

// Create inserts a new session. The caller assigns the initial version.
func (s *SessionStore) Create(ctx context.Context, session *types.ContinuitySession) error {
	start := time.Now()
	payload, err := encodeSession(session)
	if err != nil {
		return err
	}

	err = s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		record := SessionRecord{
			ID:        session.ID,
			UserID:    session.UserID,
			Kind:      KindContinuity,
			Version:   session.Version,
			Payload:   payload,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to create session record: %w", err)
		}
		if s.config.DualWrite {
			legacy := ContinuitySessionRecord{
				ID:        session.ID,
				UserID:    session.UserID,
				Version:   session.Version,
				Payload:   payload,
				CreatedAt: session.CreatedAt,
				UpdatedAt: session.UpdatedAt,
			}
			if err := tx.Create(&legacy).Error; err != nil {
				return fmt.Errorf("failed to create legacy session record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, session.ID)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("session_create", time.Since(start))
	}
	return nil
}

// Get loads a session, preferring the cache, then the unified store, then
// the legacy store. A legacy hit backfills the unified store so the next
// read is served there.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*types.ContinuitySession, error) {
	if s.cache != nil && s.config.CacheTTL > 0 {
		var payload string
		if err := s.cache.GetJSON(ctx, cacheKey(sessionID), &payload); err == nil {
			if session, derr := decodeSession(payload); derr == nil {
				if s.metrics != nil {
					s.metrics.RecordCacheHit("session")
				}
				return session, nil
			}
		} else if cache.IsCacheMiss(err) && s.metrics != nil {
			s.metrics.RecordCacheMiss("session")
		}
	}

	start := time.Now()
	payload, err := s.loadPayload(ctx, s.pool.DB().WithContext(ctx), sessionID, true)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordDBQuery("session_get", time.Since(start))
	}

	session, err := decodeSession(payload)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.config.CacheTTL > 0 {
		if cerr := s.cache.SetJSON(ctx, cacheKey(sessionID), payload, s.config.CacheTTL); cerr != nil {
			s.logger.Warn("failed to cache session", zap.String("session_id", sessionID), zap.Error(cerr))
		}
	}
	return session, nil
}

// loadPayload reads the stored payload for a session. With backfill set, a
// legacy hit is copied into the unified store.
func (s *SessionStore) loadPayload(ctx context.Context, db *gorm.DB, sessionID string, backfill bool) (string, error) {
	var record SessionRecord
	err := db.Where("id = ? AND kind = ?", sessionID, KindContinuity).First(&record).Error
	if err == nil {
		return record.Payload, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", types.NewError(types.ErrStoreUnavailable, "failed to load session").WithCause(err)
	}

	var legacy ContinuitySessionRecord
	err = db.Where("id = ?", sessionID).First(&legacy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", types.NewError(types.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID)).WithHTTPStatus(404)
	}
	if err != nil {
		return "", types.NewError(types.ErrStoreUnavailable, "failed to load session").WithCause(err)
	}

	if s.metrics != nil {
		s.metrics.RecordLegacyFallback()
	}
	s.logger.Info("serving session from legacy store", zap.String("session_id", sessionID))

	if backfill {
		backfilled := SessionRecord{
			ID:        legacy.ID,
			UserID:    legacy.UserID,
			Kind:      KindContinuity,
			Version:   legacy.Version,
			Payload:   legacy.Payload,
			CreatedAt: legacy.CreatedAt,
			UpdatedAt: legacy.UpdatedAt,
		}
		if berr := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&backfilled).Error; berr != nil {
			// Backfill is opportunistic; the read already succeeded.
			s.logger.Warn("failed to backfill unified store",
				zap.String("session_id", sessionID), zap.Error(berr))
		}
	}
	return legacy.Payload, nil
}

// List returns a user's sessions, most recently updated first. Sessions
// that only exist in the legacy store are included.
func (s *SessionStore) List(ctx context.Context, userID string) ([]*types.ContinuitySession, error) {
	start := time.Now()
	db := s.pool.DB().WithContext(ctx)

	var records []SessionRecord
	if err := db.Where("user_id = ? AND kind = ?", userID, KindContinuity).
		Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to list sessions").WithCause(err)
	}

	seen := make(map[string]bool, len(records))
	payloads := make([]string, 0, len(records))
	for _, r := range records {
		seen[r.ID] = true
		payloads = append(payloads, r.Payload)
	}

	var legacies []ContinuitySessionRecord
	if err := db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&legacies).Error; err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to list legacy sessions").WithCause(err)
	}
	for _, l := range legacies {
		if !seen[l.ID] {
			payloads = append(payloads, l.Payload)
		}
	}

	sessions := make([]*types.ContinuitySession, 0, len(payloads))
	for _, payload := range payloads {
		session, err := decodeSession(payload)
		if err != nil {
			s.logger.Warn("skipping undecodable session payload", zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}

	if s.metrics != nil {
		s.metrics.RecordDBQuery("session_list", time.Since(start))
	}
	return sessions, nil
}

// SaveWithVersion writes the session if and only if the stored version
// equals expectedVersion, bumping the version by exactly one. On success
// the passed session's Version field is updated to the stored version. A
// stale expectation returns a VersionMismatchError naming both versions.
func (s *SessionStore) SaveWithVersion(ctx context.Context, session *types.ContinuitySession, expectedVersion int64) (int64, error) {
	start := time.Now()
	newVersion := expectedVersion + 1

	// Version and timestamps are serialized into the payload, so set them
	// before encoding.
	session.Version = newVersion
	session.UpdatedAt = time.Now()
	payload, err := encodeSession(session)
	if err != nil {
		session.Version = expectedVersion
		return 0, err
	}

	err = s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		stored, err := s.storedVersion(tx, session.ID)
		if err != nil {
			return err
		}
		if stored != expectedVersion {
			return &types.VersionMismatchError{
				SessionID:       session.ID,
				ExpectedVersion: expectedVersion,
				ActualVersion:   stored,
			}
		}

		record := SessionRecord{
			ID:        session.ID,
			UserID:    session.UserID,
			Kind:      KindContinuity,
			Version:   newVersion,
			Payload:   payload,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error; err != nil {
			return fmt.Errorf("failed to save session record: %w", err)
		}

		if s.config.DualWrite {
			legacy := ContinuitySessionRecord{
				ID:        session.ID,
				UserID:    session.UserID,
				Version:   newVersion,
				Payload:   payload,
				CreatedAt: session.CreatedAt,
				UpdatedAt: session.UpdatedAt,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&legacy).Error; err != nil {
				return fmt.Errorf("failed to save legacy session record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		session.Version = expectedVersion
		return 0, err
	}

	s.invalidate(ctx, session.ID)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("session_save", time.Since(start))
	}
	return newVersion, nil
}

// storedVersion reads the current version inside the save transaction,
// preferring the unified record.
func (s *SessionStore) storedVersion(tx *gorm.DB, sessionID string) (int64, error) {
	var record SessionRecord
	err := tx.Select("version").Where("id = ? AND kind = ?", sessionID, KindContinuity).First(&record).Error
	if err == nil {
		return record.Version, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, types.NewError(types.ErrStoreUnavailable, "failed to read session version").WithCause(err)
	}

	var legacy ContinuitySessionRecord
	err = tx.Select("version").Where("id = ?", sessionID).First(&legacy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, types.NewError(types.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID)).WithHTTPStatus(404)
	}
	if err != nil {
		return 0, types.NewError(types.ErrStoreUnavailable, "failed to read session version").WithCause(err)
	}
	return legacy.Version, nil
}

// Delete removes the session from both stores.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	start := time.Now()
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		unified := tx.Where("id = ? AND kind = ?", sessionID, KindContinuity).Delete(&SessionRecord{})
		if unified.Error != nil {
			return types.NewError(types.ErrStoreUnavailable, "failed to delete session").WithCause(unified.Error)
		}
		legacy := tx.Where("id = ?", sessionID).Delete(&ContinuitySessionRecord{})
		if legacy.Error != nil {
			return types.NewError(types.ErrStoreUnavailable, "failed to delete legacy session").WithCause(legacy.Error)
		}
		if unified.RowsAffected == 0 && legacy.RowsAffected == 0 {
			return types.NewError(types.ErrSessionNotFound,
				fmt.Sprintf("session %s not found", sessionID)).WithHTTPStatus(404)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, sessionID)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("session_delete", time.Since(start))
	}
	return nil
}

func (s *SessionStore) invalidate(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(sessionID)); err != nil {
		s.logger.Warn("failed to invalidate session cache",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
