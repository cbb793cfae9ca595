// Package dedup filters re-ingested duplicate articles through a shared
// fingerprint set in the coordination store.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"showrunner/internal/coord"
	"showrunner/internal/core"
	"showrunner/internal/logger"
)

const (
	fingerprintSet   = "dedup:fingerprints"
	duplicateCounter = "dedup:duplicates"
)

// Deduplicator performs fingerprint membership checks against the shared set.
type Deduplicator struct {
	kv  coord.KV
	ttl time.Duration
}

// NewDeduplicator creates a deduplicator with the given fingerprint TTL.
func NewDeduplicator(kv coord.KV, ttl time.Duration) *Deduplicator {
	return &Deduplicator{kv: kv, ttl: ttl}
}

// Fingerprint computes the stable hash over an article's identifying fields.
// Publish time is truncated to the hour so the same item refetched with a
// slightly different timestamp still collides.
func Fingerprint(link, title string, published time.Time) string {
	normalized := published.UTC().Truncate(time.Hour).Format(time.RFC3339)
	payload := strings.ToLower(strings.TrimSpace(link)) + "|" +
		strings.ToLower(strings.TrimSpace(title)) + "|" + normalized
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Check records the candidate's fingerprint and reports whether it was
// already known. When the coordination store is unreachable the check fails
// open: the article is admitted, favoring completeness over exact dedup.
func (d *Deduplicator) Check(ctx context.Context, link, title string, published time.Time) core.DedupResult {
	result := core.DedupResult{
		Fingerprint: Fingerprint(link, title, published),
		CheckedAt:   time.Now().UTC(),
	}

	inserted, err := d.kv.AddMember(ctx, fingerprintSet, result.Fingerprint, d.ttl)
	if err != nil {
		logger.Warn("Dedup store unreachable, admitting article", "link", link, "error", err.Error())
		return result
	}
	if inserted {
		return result
	}

	result.IsDuplicate = true
	if _, err := d.kv.Incr(ctx, duplicateCounter); err != nil {
		logger.Debug("Failed to record duplicate tick", "error", err.Error())
	}
	return result
}

// DuplicateCount returns the lifetime duplicate tick counter.
func (d *Deduplicator) DuplicateCount(ctx context.Context) (int64, error) {
	return d.kv.Counter(ctx, duplicateCounter)
}
