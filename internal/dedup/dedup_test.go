package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"showrunner/internal/coord"
)

func TestFingerprintStable(t *testing.T) {
	published := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	a := Fingerprint("https://example.com/story", "Big News", published)
	b := Fingerprint("  HTTPS://EXAMPLE.COM/STORY  ", "big news", published.Add(30*time.Minute))
	if a != b {
		t.Error("Expected case, whitespace, and sub-hour timestamp drift to collide")
	}

	c := Fingerprint("https://example.com/story", "Big News", published.Add(2*time.Hour))
	if a == c {
		t.Error("Expected a different publish hour to produce a different fingerprint")
	}
}

func TestCheckDetectsDuplicate(t *testing.T) {
	kv := coord.NewMemoryKV()
	dedup := NewDeduplicator(kv, time.Hour)
	ctx := context.Background()
	published := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	first := dedup.Check(ctx, "https://example.com/story", "Big News", published)
	if first.IsDuplicate {
		t.Error("Expected first check to admit the article")
	}

	second := dedup.Check(ctx, "https://example.com/story", "Big News", published)
	if !second.IsDuplicate {
		t.Error("Expected second check to flag the duplicate")
	}
	if second.Fingerprint != first.Fingerprint {
		t.Error("Expected identical candidates to share a fingerprint")
	}

	count, err := dedup.DuplicateCount(ctx)
	if err != nil {
		t.Fatalf("DuplicateCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 duplicate recorded, got %d", count)
	}
}

// failingKV simulates an unreachable coordination store.
type failingKV struct {
	coord.KV
}

func (f *failingKV) AddMember(ctx context.Context, set, member string, ttl time.Duration) (bool, error) {
	return false, errors.New("store unreachable")
}

func TestCheckFailsOpen(t *testing.T) {
	dedup := NewDeduplicator(&failingKV{}, time.Hour)

	result := dedup.Check(context.Background(), "https://example.com/story", "Big News", time.Now())
	if result.IsDuplicate {
		t.Error("Expected an unreachable store to admit the article")
	}
	if result.Fingerprint == "" {
		t.Error("Expected the fingerprint to be computed regardless")
	}
}
