package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/core"
)

// CreateCollection persists a new collection and its group bindings.
func (s *Store) CreateCollection(ctx context.Context, collection *core.Collection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertCollection(ctx, tx, collection); err != nil {
		return err
	}
	return tx.Commit()
}

func insertCollection(ctx context.Context, tx *sql.Tx, collection *core.Collection) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO collections (id, name, description, status, parent_id, episode_id, date_created, date_updated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		collection.ID, collection.Name, collection.Description, string(collection.Status),
		nullable(collection.ParentID), nullable(collection.EpisodeID),
		collection.DateCreated, collection.DateUpdated)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	for _, groupID := range collection.GroupIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO collection_groups (collection_id, group_id) VALUES (?, ?)",
			collection.ID, groupID); err != nil {
			return fmt.Errorf("failed to bind collection to group: %w", err)
		}
	}
	return nil
}

// GetCollection retrieves a collection with its group bindings and article count.
func (s *Store) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT c.id, c.name, c.description, c.status, c.parent_id, c.episode_id, c.date_created, c.date_updated,
	       (SELECT COUNT(*) FROM articles a WHERE a.collection_id = c.id)
	FROM collections c WHERE c.id = ?`, id)

	collection, err := scanCollection(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadGroupBindings(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// ActiveBuildingCollection returns the group's currently open building
// collection, or nil when the group has none.
func (s *Store) ActiveBuildingCollection(ctx context.Context, groupID string) (*core.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT c.id, c.name, c.description, c.status, c.parent_id, c.episode_id, c.date_created, c.date_updated,
	       (SELECT COUNT(*) FROM articles a WHERE a.collection_id = c.id)
	FROM collections c
	JOIN collection_groups cg ON cg.collection_id = c.id
	WHERE cg.group_id = ? AND c.status IN (?, ?)
	ORDER BY c.date_created DESC LIMIT 1`,
		groupID, string(core.CollectionBuilding), string(core.CollectionReady))

	collection, err := scanCollection(row)
	if err == errCollectionNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadGroupBindings(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// ReadyCollections returns ready collections, optionally restricted to one group.
func (s *Store) ReadyCollections(ctx context.Context, groupID string) ([]core.Collection, error) {
	query := `
	SELECT DISTINCT c.id, c.name, c.description, c.status, c.parent_id, c.episode_id, c.date_created, c.date_updated,
	       (SELECT COUNT(*) FROM articles a WHERE a.collection_id = c.id)
	FROM collections c
	JOIN collection_groups cg ON cg.collection_id = c.id
	WHERE c.status = ?`
	args := []any{string(core.CollectionReady)}
	if groupID != "" {
		query += " AND cg.group_id = ?"
		args = append(args, groupID)
	}
	query += " ORDER BY c.date_updated DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready collections: %w", err)
	}
	defer rows.Close()

	var collections []core.Collection
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		if err := s.loadGroupBindings(ctx, collection); err != nil {
			return nil, err
		}
		collections = append(collections, *collection)
	}
	return collections, rows.Err()
}

// UpdateCollectionStatus transitions a collection's lifecycle state.
func (s *Store) UpdateCollectionStatus(ctx context.Context, id string, status core.CollectionStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE collections SET status = ?, date_updated = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update collection status: %w", err)
	}
	return nil
}

// RotationResult describes a completed snapshot rotation.
type RotationResult struct {
	SnapshotID    string // The frozen collection bound to the episode
	NewBuildingID string // The replacement buffer ingestion is redirected to
	ArticleCount  int    // Articles re-pointed onto the snapshot
}

// RotateSnapshot performs the copy-on-read rotation as one transaction:
// create the snapshot row, re-point the source's articles onto it, open a
// replacement building collection with the same bindings, and expire the
// now-empty source. A mid-rotation crash rolls the whole unit back, so a
// group can never be left without an open building collection.
func (s *Store) RotateSnapshot(ctx context.Context, sourceID, episodeID string) (*RotationResult, error) {
	source, err := s.GetCollection(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source.Status != core.CollectionBuilding && source.Status != core.CollectionReady {
		return nil, fmt.Errorf("collection %s is %s, not open for snapshot", sourceID, source.Status)
	}

	now := time.Now().UTC()
	snapshot := &core.Collection{
		ID:          uuid.NewString(),
		Name:        source.Name,
		Description: source.Description,
		Status:      core.CollectionSnapshot,
		ParentID:    sourceID,
		EpisodeID:   episodeID,
		GroupIDs:    source.GroupIDs,
		DateCreated: now,
		DateUpdated: now,
	}
	replacement := &core.Collection{
		ID:          uuid.NewString(),
		Name:        source.Name,
		Description: source.Description,
		Status:      core.CollectionBuilding,
		ParentID:    snapshot.ID,
		GroupIDs:    source.GroupIDs,
		DateCreated: now,
		DateUpdated: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertCollection(ctx, tx, snapshot); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE articles SET collection_id = ? WHERE collection_id = ?", snapshot.ID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-point articles: %w", err)
	}
	moved, _ := res.RowsAffected()

	if err := insertCollection(ctx, tx, replacement); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE collections SET status = ?, date_updated = ? WHERE id = ?",
		string(core.CollectionExpired), now, sourceID); err != nil {
		return nil, fmt.Errorf("failed to expire source collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rotation: %w", err)
	}

	return &RotationResult{
		SnapshotID:    snapshot.ID,
		NewBuildingID: replacement.ID,
		ArticleCount:  int(moved),
	}, nil
}

// DeleteExpiredCollections removes empty expired/stale collections older than
// the cutoff. Returns the number of rows removed.
func (s *Store) DeleteExpiredCollections(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM collections WHERE date_updated < ?
	AND status IN (?, ?, ?)
	AND id NOT IN (SELECT DISTINCT collection_id FROM articles WHERE collection_id IS NOT NULL)`,
		cutoff, string(core.CollectionExpired), string(core.CollectionBuilding), string(core.CollectionReady))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired collections: %w", err)
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		if _, err := s.db.ExecContext(ctx, `
		DELETE FROM collection_groups WHERE collection_id NOT IN (SELECT id FROM collections)`); err != nil {
			return int(removed), fmt.Errorf("failed to prune group bindings: %w", err)
		}
	}
	return int(removed), nil
}

var errCollectionNotFound = fmt.Errorf("collection not found")

func scanCollection(row rowScanner) (*core.Collection, error) {
	var collection core.Collection
	var status string
	var parentID, episodeID sql.NullString
	err := row.Scan(&collection.ID, &collection.Name, &collection.Description, &status,
		&parentID, &episodeID, &collection.DateCreated, &collection.DateUpdated,
		&collection.ArticleCount)
	if err == sql.ErrNoRows {
		return nil, errCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection: %w", err)
	}
	collection.Status = core.CollectionStatus(status)
	collection.ParentID = parentID.String
	collection.EpisodeID = episodeID.String
	return &collection, nil
}

func (s *Store) loadGroupBindings(ctx context.Context, collection *core.Collection) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_id FROM collection_groups WHERE collection_id = ? ORDER BY group_id", collection.ID)
	if err != nil {
		return fmt.Errorf("failed to load group bindings: %w", err)
	}
	defer rows.Close()

	collection.GroupIDs = nil
	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			return fmt.Errorf("failed to scan group binding: %w", err)
		}
		collection.GroupIDs = append(collection.GroupIDs, groupID)
	}
	return rows.Err()
}
