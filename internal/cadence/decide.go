// Package cadence decides if and what each group should generate next.
// Publication frequency follows content readiness instead of a fixed
// calendar: busy groups qualify for the daily bucket, quiet groups are
// throttled down to weekly.
package cadence

import (
	"fmt"
	"sort"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/core"
)

// BreakingTag marks a collection as priority-ranked regardless of size.
const BreakingTag = "breaking"

// completenessCap bounds the completeness score so one oversized collection
// cannot outrank everything on volume alone.
const completenessCap = 10

// Candidate is one ready collection as the scheduler sees it.
type Candidate struct {
	CollectionID string
	FeedItems    int       // Attached article count
	Breaking     bool      // Any article carries the breaking tag
	NewestItem   time.Time // Publish time of the newest article
}

// BucketDecision is the outcome of bucket selection for one group.
type BucketDecision struct {
	Bucket   core.CadenceBucket
	Days     int
	Eligible bool
	Reason   string
}

// PickBucket determines the applicable cadence bucket from the group's ready
// collections, trying daily first, then three-day, then weekly. The daily and
// three-day tiers use distinct feed-item thresholds so each is genuinely
// reachable.
func PickBucket(candidates []Candidate, policy config.Policy) BucketDecision {
	if len(candidates) == 0 {
		return BucketDecision{Eligible: false, Reason: "no ready collections"}
	}

	maxItems := 0
	for _, candidate := range candidates {
		if candidate.FeedItems > maxItems {
			maxItems = candidate.FeedItems
		}
	}

	switch {
	case maxItems >= policy.DailyMinFeedItems:
		return BucketDecision{
			Bucket:   core.BucketDaily,
			Days:     policy.DailyDays,
			Eligible: true,
			Reason:   fmt.Sprintf("collection with %d items meets daily threshold %d", maxItems, policy.DailyMinFeedItems),
		}
	case maxItems >= policy.ThreeDayMinFeedItems:
		return BucketDecision{
			Bucket:   core.BucketThreeDay,
			Days:     policy.ThreeDayDays,
			Eligible: true,
			Reason:   fmt.Sprintf("collection with %d items meets three-day threshold %d", maxItems, policy.ThreeDayMinFeedItems),
		}
	case maxItems >= policy.MinFeedsPerCollection:
		return BucketDecision{
			Bucket:   core.BucketWeekly,
			Days:     policy.WeeklyDays,
			Eligible: true,
			Reason:   fmt.Sprintf("collection with %d items meets weekly minimum %d", maxItems, policy.MinFeedsPerCollection),
		}
	default:
		return BucketDecision{
			Eligible: false,
			Reason:   fmt.Sprintf("largest ready collection has %d items, below minimum %d", maxItems, policy.MinFeedsPerCollection),
		}
	}
}

// SpacingSatisfied gates on time spacing: generation proceeds only when now
// is at least bucketDays past the last published episode, or the group has
// never published.
func SpacingSatisfied(now, lastPublished time.Time, hasPublished bool, bucketDays int) bool {
	if !hasPublished {
		return true
	}
	return !now.Before(lastPublished.AddDate(0, 0, bucketDays))
}

// Rank orders candidates by (a) the breaking tag, dominant, (b) completeness
// capped at completenessCap, (c) freshness, fresher wins, and returns the top
// candidate.
func Rank(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Breaking != b.Breaking {
			return a.Breaking
		}
		ca, cb := a.FeedItems, b.FeedItems
		if ca > completenessCap {
			ca = completenessCap
		}
		if cb > completenessCap {
			cb = completenessCap
		}
		if ca != cb {
			return ca > cb
		}
		return a.NewestItem.After(b.NewestItem)
	})
	return ranked[0], true
}
