package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"showrunner/internal/collections"
	"showrunner/internal/config"
	"showrunner/internal/coord"
	"showrunner/internal/core"
	"showrunner/internal/dedup"
	"showrunner/internal/generation"
	"showrunner/internal/review"
	"showrunner/internal/store"
)

// stubClassifier always answers with one fixed classification.
type stubClassifier struct {
	result core.Classification
}

func (s *stubClassifier) Classify(ctx context.Context, input review.Input) (core.Classification, error) {
	return s.result, nil
}

// stubLifecycleStore is the minimal collections.Store for ingest tests.
type stubLifecycleStore struct {
	collections map[string]*core.Collection
	attached    map[string][]string
}

func newStubLifecycleStore() *stubLifecycleStore {
	return &stubLifecycleStore{
		collections: make(map[string]*core.Collection),
		attached:    make(map[string][]string),
	}
}

func (s *stubLifecycleStore) CreateCollection(ctx context.Context, collection *core.Collection) error {
	clone := *collection
	s.collections[collection.ID] = &clone
	return nil
}

func (s *stubLifecycleStore) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	collection, ok := s.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", id)
	}
	clone := *collection
	clone.ArticleCount = len(s.attached[id])
	return &clone, nil
}

func (s *stubLifecycleStore) ActiveBuildingCollection(ctx context.Context, groupID string) (*core.Collection, error) {
	for _, collection := range s.collections {
		if collection.Status != core.CollectionBuilding && collection.Status != core.CollectionReady {
			continue
		}
		for _, id := range collection.GroupIDs {
			if id == groupID {
				return s.GetCollection(ctx, collection.ID)
			}
		}
	}
	return nil, nil
}

func (s *stubLifecycleStore) ReadyCollections(ctx context.Context, groupID string) ([]core.Collection, error) {
	return nil, nil
}

func (s *stubLifecycleStore) UpdateCollectionStatus(ctx context.Context, id string, status core.CollectionStatus) error {
	if collection, ok := s.collections[id]; ok {
		collection.Status = status
	}
	return nil
}

func (s *stubLifecycleStore) SaveArticle(ctx context.Context, article *core.Article) error {
	return nil
}

func (s *stubLifecycleStore) AttachArticle(ctx context.Context, articleID, collectionID string) error {
	s.attached[collectionID] = append(s.attached[collectionID], articleID)
	return nil
}

func (s *stubLifecycleStore) CollectionArticles(ctx context.Context, collectionID string) ([]core.Article, error) {
	return nil, nil
}

func (s *stubLifecycleStore) RotateSnapshot(ctx context.Context, sourceID, episodeID string) (*store.RotationResult, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *stubLifecycleStore) DeleteExpiredCollections(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func ingestPolicy() config.Policy {
	return config.Policy{
		ConfidenceThreshold:   0.85,
		HeavyEnabled:          true,
		HeavyMaxRetries:       3,
		LightWorkers:          1,
		MinFeedsPerCollection: 3,
	}
}

func newTestIngestor(kv *coord.MemoryKV) *Ingestor {
	classifier := &stubClassifier{result: core.Classification{
		Topic: "technology", Confidence: 0.95,
	}}
	router := review.NewRouter(classifier, classifier, nil, ingestPolicy)
	manager := collections.NewManager(newStubLifecycleStore(), ingestPolicy)
	return NewIngestor(dedup.NewDeduplicator(kv, time.Hour), router, manager, generation.NewLocker(kv))
}

func testCandidate() Candidate {
	return Candidate{
		GroupID:   "g1",
		SourceRef: "feed-1",
		Link:      "https://example.com/story",
		Title:     "Big News",
		Text:      "Something happened.",
		Published: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestIngestCreatesArticle(t *testing.T) {
	ingestor := newTestIngestor(coord.NewMemoryKV())

	result, err := ingestor.Ingest(context.Background(), testCandidate())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.Status != StatusIngested {
		t.Fatalf("Expected ingested status, got %s", result.Status)
	}
	if result.Article == nil || result.Article.ID == "" {
		t.Fatal("Expected a persisted article with an identifier")
	}
	if result.Article.Classification.Topic != "technology" {
		t.Errorf("Expected the review classification on the article, got %s",
			result.Article.Classification.Topic)
	}
	if result.Article.Fingerprint == "" {
		t.Error("Expected the dedup fingerprint on the article")
	}
	if result.Collection == nil || result.Collection.Status != core.CollectionBuilding {
		t.Error("Expected the article attached to an open building collection")
	}
}

func TestIngestDiscardsDuplicate(t *testing.T) {
	ingestor := newTestIngestor(coord.NewMemoryKV())
	ctx := context.Background()

	if _, err := ingestor.Ingest(ctx, testCandidate()); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	result, err := ingestor.Ingest(ctx, testCandidate())
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}
	if result.Status != StatusDuplicate {
		t.Errorf("Expected duplicate status, got %s", result.Status)
	}
	if result.Article != nil {
		t.Error("Expected no article row for a duplicate")
	}
}

func TestProductionPaused(t *testing.T) {
	kv := coord.NewMemoryKV()
	ingestor := newTestIngestor(kv)
	ctx := context.Background()

	if ingestor.ProductionPaused(ctx) {
		t.Error("Expected no pause with the flag down")
	}

	locker := generation.NewLocker(kv)
	lower := locker.RaiseProductionFlag(ctx, "g1", "ep1", time.Hour)
	if !ingestor.ProductionPaused(ctx) {
		t.Error("Expected the raised flag to pause ingestion consumers")
	}

	lower()
	if ingestor.ProductionPaused(ctx) {
		t.Error("Expected the lowered flag to resume")
	}
}
