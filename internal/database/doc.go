// Package database wraps the gorm connection pool behind a PoolManager:
// pool sizing, background health checks, and transaction helpers used by
// the session stores.
package database
