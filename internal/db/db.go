package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	// HSetWithTTL writes fields and refreshes the key's expiry in one round trip.
	// A non-positive ttl leaves the expiry untouched.
	HSetWithTTL(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	// HGetAll returns every field of a hash; a missing key yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}
