package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"showrunner/internal/core"
)

// EnqueueGeneration adds a generation request to the shared queue. At most
// one pending request per group is kept; a second enqueue for the same group
// is a no-op and returns false.
func (s *Store) EnqueueGeneration(ctx context.Context, request *core.GenerationRequest) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM generation_queue WHERE group_id = ? AND status = 'pending'",
		request.GroupID).Scan(&existing)
	if err != nil {
		return false, fmt.Errorf("failed to check pending requests: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO generation_queue (id, group_id, collection_id, reason, status, date_enqueued)
	VALUES (?, ?, ?, ?, 'pending', ?)`,
		request.ID, request.GroupID, nullable(request.CollectionID),
		request.Reason, request.DateEnqueued)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue generation: %w", err)
	}
	return true, tx.Commit()
}

// DequeueGeneration atomically claims the oldest pending request for workerID.
// Returns nil when the queue is empty.
func (s *Store) DequeueGeneration(ctx context.Context, workerID string) (*core.GenerationRequest, error) {
	row := s.db.QueryRowContext(ctx, `
	UPDATE generation_queue SET status = 'claimed', claimed_by = ?, date_claimed = ?
	WHERE id = (SELECT id FROM generation_queue WHERE status = 'pending' ORDER BY date_enqueued ASC LIMIT 1)
	RETURNING id, group_id, collection_id, reason, date_enqueued`,
		workerID, time.Now().UTC())

	var request core.GenerationRequest
	var collectionID sql.NullString
	err := row.Scan(&request.ID, &request.GroupID, &collectionID, &request.Reason, &request.DateEnqueued)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue generation: %w", err)
	}
	request.CollectionID = collectionID.String
	return &request, nil
}

// CompleteGeneration removes a claimed request once its run has finished,
// whatever the outcome.
func (s *Store) CompleteGeneration(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM generation_queue WHERE id = ?", requestID)
	if err != nil {
		return fmt.Errorf("failed to complete generation request: %w", err)
	}
	return nil
}

// PendingGenerations returns the number of unclaimed requests on the queue.
func (s *Store) PendingGenerations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM generation_queue WHERE status = 'pending'").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending generations: %w", err)
	}
	return count, nil
}
