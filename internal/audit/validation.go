package audit

import (
	"errors"
	"fmt"

	"github.com/cargoyard/cargoyard/internal/model"
)

const maxReasonLength = 2000

// ValidatePayload checks an event payload before it is persisted.
func ValidatePayload(p EventPayload) error {
	if !model.ModerationAction(p.Action).IsValid() {
		return fmt.Errorf("unknown action %q", p.Action)
	}
	if p.UserID <= 0 {
		return errors.New("user_id is required")
	}
	if p.ActorID <= 0 {
		return errors.New("actor_id is required")
	}
	if p.OccurredAt <= 0 {
		return errors.New("occurred_at must be set")
	}
	if len(p.Reason) > maxReasonLength {
		return errors.New("reason too long")
	}
	if p.Action == string(model.ActionLock) && p.Reason == "" {
		return errors.New("lock events require a reason")
	}
	return nil
}
