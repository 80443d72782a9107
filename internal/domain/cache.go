package domain

import (
	"context"
	"time"
)

// Cache is the fast lookup layer in front of the repository. Values are bare
// target URLs: the cache never carries counters, ownership or expiry metadata,
// so it is never authoritative for a link's existence or policy decisions.
//
// Implementations may fail; callers on the resolution path must treat a Get
// error as a miss and a Set/Delete error as a no-op.
type Cache interface {
	// Get returns the cached target URL for key, or "" on a miss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores the target URL under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, url string, ttl time.Duration) error

	// Delete removes the entry for key.
	Delete(ctx context.Context, key string) error

	// Ping checks if the cache backend is reachable.
	Ping(ctx context.Context) error
}
