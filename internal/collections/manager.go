// Package collections owns the building -> ready -> snapshot -> used/expired
// lifecycle for the mutable article buffers feeding each group.
package collections

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/config"
	"showrunner/internal/core"
	"showrunner/internal/logger"
	"showrunner/internal/store"
)

// Store is the slice of the relational store the lifecycle manager needs.
type Store interface {
	CreateCollection(ctx context.Context, collection *core.Collection) error
	GetCollection(ctx context.Context, id string) (*core.Collection, error)
	ActiveBuildingCollection(ctx context.Context, groupID string) (*core.Collection, error)
	ReadyCollections(ctx context.Context, groupID string) ([]core.Collection, error)
	UpdateCollectionStatus(ctx context.Context, id string, status core.CollectionStatus) error
	SaveArticle(ctx context.Context, article *core.Article) error
	AttachArticle(ctx context.Context, articleID, collectionID string) error
	CollectionArticles(ctx context.Context, collectionID string) ([]core.Article, error)
	RotateSnapshot(ctx context.Context, sourceID, episodeID string) (*store.RotationResult, error)
	DeleteExpiredCollections(ctx context.Context, cutoff time.Time) (int, error)
}

// Manager is the collection lifecycle manager.
type Manager struct {
	store  Store
	policy func() config.Policy
}

// NewManager creates a lifecycle manager. policy is read per operation so the
// readiness minimum and TTL hot-reload.
func NewManager(s Store, policy func() config.Policy) *Manager {
	return &Manager{store: s, policy: policy}
}

// Create opens a new building collection, optionally pre-bound to groups.
func (m *Manager) Create(ctx context.Context, name, description string, groupIDs []string) (*core.Collection, error) {
	now := time.Now().UTC()
	collection := &core.Collection{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      core.CollectionBuilding,
		GroupIDs:    groupIDs,
		DateCreated: now,
		DateUpdated: now,
	}
	if err := m.store.CreateCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	logger.Info("Opened building collection", "collection", collection.ID, "groups", groupIDs)
	return collection, nil
}

// Ingest attaches a reviewed article to its group's currently open building
// collection, opening one if the group has none, and transitions the
// collection to ready once the article count reaches the configured minimum.
func (m *Manager) Ingest(ctx context.Context, article *core.Article) (*core.Collection, error) {
	if article.GroupID == "" {
		return nil, fmt.Errorf("article %s has no group", article.ID)
	}

	collection, err := m.store.ActiveBuildingCollection(ctx, article.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up building collection: %w", err)
	}
	if collection == nil {
		collection, err = m.Create(ctx, "buffer-"+article.GroupID, "", []string{article.GroupID})
		if err != nil {
			return nil, err
		}
	}

	article.CollectionID = collection.ID
	if err := m.store.SaveArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to save article: %w", err)
	}
	if err := m.store.AttachArticle(ctx, article.ID, collection.ID); err != nil {
		return nil, fmt.Errorf("failed to attach article: %w", err)
	}

	collection, err = m.store.GetCollection(ctx, collection.ID)
	if err != nil {
		return nil, err
	}

	minFeeds := m.policy().MinFeedsPerCollection
	if collection.Status == core.CollectionBuilding && collection.ArticleCount >= minFeeds {
		if err := m.store.UpdateCollectionStatus(ctx, collection.ID, core.CollectionReady); err != nil {
			return nil, fmt.Errorf("failed to mark collection ready: %w", err)
		}
		collection.Status = core.CollectionReady
		logger.Info("Collection ready", "collection", collection.ID,
			"articles", collection.ArticleCount, "minimum", minFeeds)
	}
	return collection, nil
}

// SnapshotView is what the generation coordinator consumes: a frozen article
// set bound to one episode. Isolated is false on the degraded path where the
// rotation failed and generation proceeds directly on the source collection.
type SnapshotView struct {
	CollectionID  string
	NewBuildingID string
	Articles      []core.Article
	Isolated      bool
}

// Snapshot performs the copy-on-read rotation for one episode. The rotation
// itself is a single store transaction; if it fails, the manager falls back
// to operating directly on the source collection so generation proceeds
// without isolation rather than aborting.
func (m *Manager) Snapshot(ctx context.Context, collectionID, episodeID string) (*SnapshotView, error) {
	result, err := m.store.RotateSnapshot(ctx, collectionID, episodeID)
	if err != nil {
		logger.Warn("Snapshot rotation failed, operating on source collection",
			"collection", collectionID, "episode", episodeID, "error", err.Error())
		articles, readErr := m.store.CollectionArticles(ctx, collectionID)
		if readErr != nil {
			return nil, fmt.Errorf("snapshot rotation and fallback read both failed: %w", readErr)
		}
		return &SnapshotView{CollectionID: collectionID, Articles: articles}, nil
	}

	articles, err := m.store.CollectionArticles(ctx, result.SnapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot articles: %w", err)
	}

	logger.Info("Collection snapshotted", "source", collectionID,
		"snapshot", result.SnapshotID, "replacement", result.NewBuildingID,
		"articles", len(articles), "episode", episodeID)
	return &SnapshotView{
		CollectionID:  result.SnapshotID,
		NewBuildingID: result.NewBuildingID,
		Articles:      articles,
		Isolated:      true,
	}, nil
}

// MarkUsed is the terminal transition applied once the episode is published.
func (m *Manager) MarkUsed(ctx context.Context, collectionID string) error {
	collection, err := m.store.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if collection.Status != core.CollectionSnapshot {
		return fmt.Errorf("collection %s is %s, only snapshots become used", collectionID, collection.Status)
	}
	return m.store.UpdateCollectionStatus(ctx, collectionID, core.CollectionUsed)
}

// GetActiveCollection returns the group's open building collection, if any.
func (m *Manager) GetActiveCollection(ctx context.Context, groupID string) (*core.Collection, error) {
	return m.store.ActiveBuildingCollection(ctx, groupID)
}

// GetReadyCollections returns ready collections, optionally per group.
func (m *Manager) GetReadyCollections(ctx context.Context, groupID string) ([]core.Collection, error) {
	return m.store.ReadyCollections(ctx, groupID)
}

// CleanupExpired removes empty collections past the configured TTL.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	ttl := m.policy().CollectionTTL
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	removed, err := m.store.DeleteExpiredCollections(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Info("Cleaned up expired collections", "removed", removed)
	}
	return removed, nil
}
