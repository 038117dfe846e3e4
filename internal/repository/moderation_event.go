package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cargoyard/cargoyard/internal/model"
)

// ModerationEventRepository persists the moderation audit log.
type ModerationEventRepository struct {
	repo *Repository
}

// NewModerationEventRepository creates a new ModerationEventRepository.
func NewModerationEventRepository(repo *Repository) *ModerationEventRepository {
	return &ModerationEventRepository{repo: repo}
}

// BulkInsert inserts events in one batch. Events already stored under the
// same stream id are skipped, so redelivered messages are harmless.
func (r *ModerationEventRepository) BulkInsert(ctx context.Context, events []*model.ModerationEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO moderation_events (
			id, stream_id, action, user_id, actor_id, reason, lock_until, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (stream_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.StreamID,
			string(event.Action),
			event.UserID,
			event.ActorID,
			event.Reason,
			event.LockUntil,
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}
	return nil
}

// ListByUser returns the newest audit events for a user.
func (r *ModerationEventRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.ModerationEvent, error) {
	query := `
		SELECT id, stream_id, action, user_id, actor_id, reason, lock_until, occurred_at, created_at
		FROM moderation_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.repo.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query moderation events: %w", err)
	}
	defer rows.Close()

	var events []*model.ModerationEvent
	for rows.Next() {
		var e model.ModerationEvent
		var action string
		if err := rows.Scan(
			&e.ID,
			&e.StreamID,
			&action,
			&e.UserID,
			&e.ActorID,
			&e.Reason,
			&e.LockUntil,
			&e.OccurredAt,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan moderation event: %w", err)
		}
		e.Action = model.ModerationAction(action)
		events = append(events, &e)
	}

	return events, rows.Err()
}
