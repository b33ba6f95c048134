// Package cache provides the key-value store behind the location cache.
// Backends: in-process memory, a local JSON file, Redis, and the shared
// SQL/MongoDB storage connection for multi-instance deployments.
package cache

import (
	"context"
	"errors"
)

// Backend type constants
const (
	TypeMemory  = "memory"
	TypeLocal   = "local"
	TypeRedis   = "redis"
	TypeStorage = "storage"
)

// ErrClosed is returned by stores that have been closed.
var ErrClosed = errors.New("cache: store closed")

// Store is a string-to-string key-value store without expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key. A missing key is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
