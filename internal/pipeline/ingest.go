// Package pipeline wires the ingest path: fingerprint dedup, confidence
// review, and attachment to the group's open building collection.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/collections"
	"showrunner/internal/core"
	"showrunner/internal/dedup"
	"showrunner/internal/generation"
	"showrunner/internal/logger"
	"showrunner/internal/review"
)

// Candidate is a raw ingested article before dedup and review.
type Candidate struct {
	GroupID   string
	SourceRef string
	Link      string
	Title     string
	Text      string
	Published time.Time
	Metadata  map[string]string
}

// Status values for one ingest attempt.
const (
	StatusIngested  = "ingested"
	StatusDuplicate = "duplicate"
)

// Result is the outcome of one ingest attempt.
type Result struct {
	Status     string
	Article    *core.Article
	Collection *core.Collection
	Dedup      core.DedupResult
}

// Ingestor runs candidates through dedup, review, and the lifecycle manager.
type Ingestor struct {
	dedup   *dedup.Deduplicator
	router  *review.Router
	manager *collections.Manager
	locker  *generation.Locker
}

// NewIngestor creates an ingest pipeline.
func NewIngestor(d *dedup.Deduplicator, r *review.Router, m *collections.Manager, l *generation.Locker) *Ingestor {
	return &Ingestor{dedup: d, router: r, manager: m, locker: l}
}

// Ingest processes one candidate end to end. Duplicates are discarded with
// no article row created; everything else is classified and attached to the
// group's open building collection.
func (i *Ingestor) Ingest(ctx context.Context, candidate Candidate) (*Result, error) {
	dedupResult := i.dedup.Check(ctx, candidate.Link, candidate.Title, candidate.Published)
	if dedupResult.IsDuplicate {
		logger.Debug("Discarding duplicate article", "link", candidate.Link)
		return &Result{Status: StatusDuplicate, Dedup: dedupResult}, nil
	}

	classification := i.router.Review(ctx, review.Input{
		Title:    candidate.Title,
		Text:     candidate.Text,
		Metadata: candidate.Metadata,
	})

	article := &core.Article{
		ID:             uuid.NewString(),
		GroupID:        candidate.GroupID,
		SourceRef:      candidate.SourceRef,
		Link:           candidate.Link,
		Title:          candidate.Title,
		Published:      candidate.Published,
		Fingerprint:    dedupResult.Fingerprint,
		Classification: classification,
		DateIngested:   time.Now().UTC(),
	}

	collection, err := i.manager.Ingest(ctx, article)
	if err != nil {
		return nil, err
	}

	return &Result{
		Status:     StatusIngested,
		Article:    article,
		Collection: collection,
		Dedup:      dedupResult,
	}, nil
}

// ProductionPaused reports whether a generation run has raised the global
// production flag. Review consumers check this before dequeuing new work; it
// is a cooperative pause, so an unreachable store reads as not paused.
func (i *Ingestor) ProductionPaused(ctx context.Context) bool {
	if i.locker == nil {
		return false
	}
	flag, err := i.locker.CurrentProduction(ctx)
	if err != nil {
		return false
	}
	return flag != nil
}
