package rules

import "time"

// RulesCache caches the active definitions of a program between mutations
type RulesCache interface {
	// Get retrieves cached definitions, returns nil if cache miss or expired
	Get() []*Definition

	// Set stores definitions in cache
	Set(defs []*Definition)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL bounds how long definitions written by another process can stay unseen.
	// Zero means entries only expire on Invalidate.
	TTL time.Duration
}

// DefaultCacheConfig disables expiry; the engine invalidates on every mutation.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{}
}
