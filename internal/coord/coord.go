// Package coord provides the shared key-value coordination store used by all
// worker processes: lock keys, the dedup fingerprint set, duplicate counters,
// and bounded metrics lists. Every primitive is individually atomic; there are
// no multi-key transactions.
package coord

import (
	"context"
	"time"
)

// KV is the coordination-store contract. Implementations must make each call
// atomic on its own: set-if-absent, membership insert, increment, and bounded
// push are the only write shapes the rest of the system uses.
type KV interface {
	// SetIfAbsent atomically creates key=value with a TTL. Returns true when
	// the key was created, false when a live key already existed.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the live value for key, with found=false for missing or
	// expired keys.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Release deletes key only while it still holds value, so a worker cannot
	// release a lock that expired and was re-acquired by another worker.
	Release(ctx context.Context, key, value string) error

	// AddMember inserts member into the named set with a TTL. Returns true
	// when the member was new, false when a live entry already existed.
	AddMember(ctx context.Context, set, member string, ttl time.Duration) (bool, error)

	// HasMember reports whether member is a live entry of the named set.
	HasMember(ctx context.Context, set, member string) (bool, error)

	// Incr atomically increments the named counter and returns the new value.
	Incr(ctx context.Context, counter string) (int64, error)

	// Counter returns the named counter's current value (0 when unset).
	Counter(ctx context.Context, counter string) (int64, error)

	// PushBounded appends entry to the named list, trimming the oldest
	// entries so at most max remain.
	PushBounded(ctx context.Context, list, entry string, max int) error

	// Entries returns the list contents, oldest first.
	Entries(ctx context.Context, list string) ([]string, error)
}
