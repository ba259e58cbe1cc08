// Package cache provides byte-oriented caches for release catalog responses.
//
// The PyPI client stores raw project documents under namespaced keys
// (e.g. "pypi:requests") so that repeated batch runs within the TTL do not
// hit the catalog again. Three backends are available:
//
//   - [NullCache]: never stores anything (the default, no caching)
//   - [FileCache]: one JSON envelope per key under a local directory
//   - [RedisCache]: shared cache for several hosts running batches
//
// All backends treat a missing or expired entry as a miss, never as an error.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store for opaque byte payloads with per-entry TTL.
type Cache interface {
	// Get returns the payload for key. hit is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
