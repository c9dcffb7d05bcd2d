// Package cache wraps go-redis behind a small Manager used as the session
// store's read-through cache: string and JSON get/set with TTLs, deletes
// for invalidation, and a background health check.
package cache
