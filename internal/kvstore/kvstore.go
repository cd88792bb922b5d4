// Package kvstore provides the persistent tier behind the TTL caches.
// The same cache logic runs against an embedded map in tests, a
// PostgreSQL table, or Redis, depending on which Store is injected.
package kvstore

import "context"

// Store is a string-keyed key-value capability. Implementations must be
// safe for concurrent use. Values are JSON documents produced by the
// cache layer; the store treats them as opaque.
type Store interface {
	// Get returns the value for key. The bool reports whether the key
	// was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all stored keys beginning with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases any underlying resources.
	Close() error
}
