package cadence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/config"
	"showrunner/internal/core"
	"showrunner/internal/logger"
)

// Store is the slice of the relational store the scheduler reads, plus the
// shared generation queue it writes.
type Store interface {
	ListActiveGroups(ctx context.Context) ([]core.Group, error)
	ReadyCollections(ctx context.Context, groupID string) ([]core.Collection, error)
	CollectionArticles(ctx context.Context, collectionID string) ([]core.Article, error)
	LastPublished(ctx context.Context, groupID string) (time.Time, bool, error)
	EnqueueGeneration(ctx context.Context, request *core.GenerationRequest) (bool, error)
}

// Scheduler evaluates every active group on each tick and enqueues at most
// one generation request per group. Ticks are read-mostly and idempotent:
// running two concurrently at worst enqueues the same group once, because the
// queue keeps a single pending request per group.
type Scheduler struct {
	store  Store
	policy func() config.Policy

	// now is overridable in tests.
	now func() time.Time
}

// NewScheduler creates a cadence scheduler.
func NewScheduler(s Store, policy func() config.Policy) *Scheduler {
	return &Scheduler{store: s, policy: policy, now: time.Now}
}

// Tick evaluates all active groups once. Returns the number of generation
// requests enqueued.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	groups, err := s.store.ListActiveGroups(ctx)
	if err != nil {
		return 0, err
	}

	policy := s.policy()
	enqueued := 0
	for _, group := range groups {
		if s.evaluateGroup(ctx, group, policy) {
			enqueued++
		}
	}
	return enqueued, nil
}

// evaluateGroup runs the three-step decision for one group and enqueues the
// top-ranked collection when all gates pass.
func (s *Scheduler) evaluateGroup(ctx context.Context, group core.Group, policy config.Policy) bool {
	candidates, err := s.loadCandidates(ctx, group.ID)
	if err != nil {
		logger.Error("Failed to load ready collections", err, "group", group.ID)
		return false
	}

	bucket := PickBucket(candidates, policy)
	if !bucket.Eligible {
		logger.Debug("Group not eligible this tick", "group", group.ID, "reason", bucket.Reason)
		return false
	}

	lastPublished, hasPublished, err := s.store.LastPublished(ctx, group.ID)
	if err != nil {
		logger.Error("Failed to read publish history", err, "group", group.ID)
		return false
	}
	if !SpacingSatisfied(s.now().UTC(), lastPublished, hasPublished, bucket.Days) {
		logger.Debug("Group inside spacing window", "group", group.ID,
			"bucket", string(bucket.Bucket), "last_published", lastPublished)
		return false
	}

	top, ok := Rank(candidates)
	if !ok {
		return false
	}

	request := &core.GenerationRequest{
		ID:           uuid.NewString(),
		GroupID:      group.ID,
		CollectionID: top.CollectionID,
		Reason:       bucket.Reason,
		DateEnqueued: s.now().UTC(),
	}
	added, err := s.store.EnqueueGeneration(ctx, request)
	if err != nil {
		logger.Error("Failed to enqueue generation", err, "group", group.ID)
		return false
	}
	if !added {
		logger.Debug("Generation already pending", "group", group.ID)
		return false
	}

	logger.Info("Enqueued generation", "group", group.ID, "collection", top.CollectionID,
		"bucket", string(bucket.Bucket), "reason", bucket.Reason)
	return true
}

// loadCandidates builds the ranking view for a group's ready collections.
func (s *Scheduler) loadCandidates(ctx context.Context, groupID string) ([]Candidate, error) {
	collections, err := s.store.ReadyCollections(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, collection := range collections {
		articles, err := s.store.CollectionArticles(ctx, collection.ID)
		if err != nil {
			return nil, err
		}
		candidate := Candidate{
			CollectionID: collection.ID,
			FeedItems:    len(articles),
		}
		for _, article := range articles {
			if article.Published.After(candidate.NewestItem) {
				candidate.NewestItem = article.Published
			}
			for _, tag := range article.Classification.Tags {
				if tag == BreakingTag {
					candidate.Breaking = true
				}
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// State computes the derived cadence state for one group, for status output.
func (s *Scheduler) State(ctx context.Context, groupID string) (*core.CadenceState, error) {
	candidates, err := s.loadCandidates(ctx, groupID)
	if err != nil {
		return nil, err
	}
	policy := s.policy()
	bucket := PickBucket(candidates, policy)

	state := &core.CadenceState{GroupID: groupID, Bucket: core.BucketWeekly}
	days := policy.WeeklyDays
	if bucket.Eligible {
		state.Bucket = bucket.Bucket
		days = bucket.Days
	}

	lastPublished, hasPublished, err := s.store.LastPublished(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if hasPublished {
		state.LastPublished = lastPublished
		state.NextEligible = lastPublished.AddDate(0, 0, days)
	}
	return state, nil
}
