// Package audit records moderation events (account locks, unlocks and
// email changes) through a Redis stream and persists them with a worker.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cargoyard/cargoyard/internal/metrics"
	"github.com/cargoyard/cargoyard/internal/model"
)

const (
	// StreamKey is the Redis stream for moderation events.
	StreamKey = "stream:moderation"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:moderation:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 500 * time.Millisecond
)

// EventPayload is the stream form of a moderation event.
type EventPayload struct {
	Action     string `json:"a"`
	UserID     int64  `json:"u"`
	ActorID    int64  `json:"by"`
	Reason     string `json:"r,omitempty"`
	LockUntil  int64  `json:"until,omitempty"` // Unix milliseconds
	OccurredAt int64  `json:"t"`               // Unix milliseconds
}

// NewPayload builds a payload for action on userID performed by actorID.
func NewPayload(action model.ModerationAction, userID, actorID int64, reason *string, until *time.Time, now time.Time) EventPayload {
	p := EventPayload{
		Action:     string(action),
		UserID:     userID,
		ActorID:    actorID,
		OccurredAt: now.UnixMilli(),
	}
	if reason != nil {
		p.Reason = *reason
	}
	if until != nil {
		p.LockUntil = until.UnixMilli()
	}
	return p
}

// ToEvent converts a payload read from the stream into a model event.
func (p EventPayload) ToEvent(id, streamID string) *model.ModerationEvent {
	event := &model.ModerationEvent{
		ID:         id,
		StreamID:   streamID,
		Action:     model.ModerationAction(p.Action),
		UserID:     p.UserID,
		ActorID:    p.ActorID,
		OccurredAt: time.UnixMilli(p.OccurredAt).UTC(),
	}
	if p.Reason != "" {
		reason := p.Reason
		event.Reason = &reason
	}
	if p.LockUntil != 0 {
		until := time.UnixMilli(p.LockUntil).UTC()
		event.LockUntil = &until
	}
	return event
}

// Publisher enqueues moderation events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event EventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{"payload": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishAsync publishes without blocking the caller. Failures are logged
// and counted, never returned: the moderation action itself already happened.
func (p *Publisher) PublishAsync(event EventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish moderation event",
				"action", event.Action,
				"user_id", event.UserID,
				"error", err,
			)
			p.metrics.IncAuditEventPublished("dropped")
			return
		}

		p.logger.Debug("moderation event published",
			"action", event.Action,
			"user_id", event.UserID,
			"stream_id", streamID,
		)
		p.metrics.IncAuditEventPublished("success")
	}()
}
