package model

import "time"

// ModerationAction names an admin or account action recorded in the audit log.
type ModerationAction string

const (
	ActionLock        ModerationAction = "lock"
	ActionUnlock      ModerationAction = "unlock"
	ActionEmailChange ModerationAction = "email_change"
)

// IsValid reports whether the action is known.
func (a ModerationAction) IsValid() bool {
	switch a {
	case ActionLock, ActionUnlock, ActionEmailChange:
		return true
	}
	return false
}

// ModerationEvent is one persisted audit record.
type ModerationEvent struct {
	ID         string           `json:"id"`       // ULID
	StreamID   string           `json:"event_id"` // Redis stream id, idempotency key
	Action     ModerationAction `json:"action"`
	UserID     int64            `json:"user_id"`
	ActorID    int64            `json:"actor_id"`
	Reason     *string          `json:"reason,omitempty"`
	LockUntil  *time.Time       `json:"lock_until,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
	CreatedAt  time.Time        `json:"created_at"`
}
