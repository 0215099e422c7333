package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which keys (usually event IDs) have already
// been handled, for a limited time.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. It returns false when the key was
	// already claimed and has not expired.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether key is currently claimed
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Close releases the store's resources
	Close() error
}

// IdempotencyConfig controls duplicate suppression for event handlers
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps handled keys for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}
