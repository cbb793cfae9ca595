package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"showrunner/internal/core"
)

// CreateEpisode persists a draft episode.
func (s *Store) CreateEpisode(ctx context.Context, episode *core.Episode) error {
	metadata, _ := json.Marshal(episode.Metadata)
	audio, _ := json.Marshal(episode.Audio)
	publishResults, _ := json.Marshal(episode.PublishResults)

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO episodes
	(id, group_id, collection_id, status, script, metadata, audio, publish_results, failure_reason, date_created, date_published)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		episode.ID, episode.GroupID, nullable(episode.CollectionID), string(episode.Status),
		episode.Script, string(metadata), string(audio), string(publishResults),
		episode.FailureReason, episode.DateCreated, nullTime(episode.DatePublished))
	if err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}
	return nil
}

// UpdateEpisode rewrites an episode's mutable fields. The coordinator calls
// this after every completed stage so the furthest artifact is never lost.
func (s *Store) UpdateEpisode(ctx context.Context, episode *core.Episode) error {
	metadata, _ := json.Marshal(episode.Metadata)
	audio, _ := json.Marshal(episode.Audio)
	publishResults, _ := json.Marshal(episode.PublishResults)

	_, err := s.db.ExecContext(ctx, `
	UPDATE episodes SET collection_id = ?, status = ?, script = ?, metadata = ?, audio = ?,
	publish_results = ?, failure_reason = ?, date_published = ? WHERE id = ?`,
		nullable(episode.CollectionID), string(episode.Status), episode.Script,
		string(metadata), string(audio), string(publishResults),
		episode.FailureReason, nullTime(episode.DatePublished), episode.ID)
	if err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}
	return nil
}

// GetEpisode retrieves an episode by id.
func (s *Store) GetEpisode(ctx context.Context, id string) (*core.Episode, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, group_id, collection_id, status, script, metadata, audio, publish_results, failure_reason, date_created, date_published
	FROM episodes WHERE id = ?`, id)
	return scanEpisode(row)
}

// LastPublished returns the most recent publish time for a group, with
// found=false when the group has never published.
func (s *Store) LastPublished(ctx context.Context, groupID string) (time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT MAX(date_published) FROM episodes WHERE group_id = ? AND status = ?",
		groupID, string(core.EpisodePublished))

	var last sql.NullTime
	if err := row.Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last published: %w", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return last.Time, true, nil
}

func scanEpisode(row rowScanner) (*core.Episode, error) {
	var episode core.Episode
	var status, metadata, audio, publishResults string
	var collectionID sql.NullString
	var published sql.NullTime

	err := row.Scan(&episode.ID, &episode.GroupID, &collectionID, &status, &episode.Script,
		&metadata, &audio, &publishResults, &episode.FailureReason,
		&episode.DateCreated, &published)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("episode not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan episode: %w", err)
	}

	episode.CollectionID = collectionID.String
	episode.Status = core.EpisodeStatus(status)
	_ = json.Unmarshal([]byte(metadata), &episode.Metadata)
	_ = json.Unmarshal([]byte(audio), &episode.Audio)
	_ = json.Unmarshal([]byte(publishResults), &episode.PublishResults)
	if published.Valid {
		episode.DatePublished = published.Time
	}
	return &episode, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
