package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Review.ConfidenceThreshold != 0.85 {
		t.Errorf("Expected default confidence threshold 0.85, got %f", cfg.Review.ConfidenceThreshold)
	}
	if !cfg.Review.HeavyEnabled {
		t.Error("Expected the heavy tier enabled by default")
	}
	if cfg.Collection.MinFeeds != 3 {
		t.Errorf("Expected default minimum 3 feeds, got %d", cfg.Collection.MinFeeds)
	}
	if cfg.Cadence.DailyDays != 1 || cfg.Cadence.ThreeDayDays != 3 || cfg.Cadence.WeeklyDays != 7 {
		t.Errorf("Unexpected cadence spacing defaults: %d/%d/%d",
			cfg.Cadence.DailyDays, cfg.Cadence.ThreeDayDays, cfg.Cadence.WeeklyDays)
	}

	// The daily and three-day thresholds must differ or the three-day bucket
	// is unreachable.
	if cfg.Cadence.DailyMinFeedItems <= cfg.Cadence.ThreeDayMinFeedItems {
		t.Errorf("Expected distinct bucket thresholds, got daily=%d three_day=%d",
			cfg.Cadence.DailyMinFeedItems, cfg.Cadence.ThreeDayMinFeedItems)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	first, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := Load("")
	if err != nil {
		t.Fatalf("Second load failed: %v", err)
	}
	if first != second {
		t.Error("Expected repeated loads to return the cached configuration")
	}
}

func TestCurrentPolicyReadsLiveValues(t *testing.T) {
	if _, err := Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	policy := CurrentPolicy()
	if policy.ConfidenceThreshold != 0.85 {
		t.Errorf("Expected threshold 0.85, got %f", policy.ConfidenceThreshold)
	}
	if policy.HeavyMaxRetries != 3 {
		t.Errorf("Expected 3 heavy retries, got %d", policy.HeavyMaxRetries)
	}
	if policy.DedupTTL != 720*time.Hour {
		t.Errorf("Expected 720h dedup TTL, got %s", policy.DedupTTL)
	}
	if policy.GroupLockTTL != time.Hour {
		t.Errorf("Expected 1h group lock TTL, got %s", policy.GroupLockTTL)
	}

	// An edit to the live viper values shows up on the next snapshot, which
	// is how the config watcher propagates file changes.
	original := viper.GetFloat64("review.confidence_threshold")
	viper.Set("review.confidence_threshold", 0.70)
	defer viper.Set("review.confidence_threshold", original)

	if got := CurrentPolicy().ConfidenceThreshold; got != 0.70 {
		t.Errorf("Expected the edited threshold 0.70, got %f", got)
	}
	if policy.ConfidenceThreshold != 0.85 {
		t.Error("Expected the earlier snapshot to be unaffected by the edit")
	}
}
