// Package model defines domain entities for the application.
package model

import "time"

// Lock is the moderation lock attached to an account.
//
// A lock without a reason is treated as no lock at all. A lock with a reason
// but no Until is indefinite. A lock whose Until has passed is kept so the
// reason can still be shown as history.
type Lock struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until"`
}

// NewLock builds a Lock from nullable database columns.
// Returns nil when there is no reason.
func NewLock(reason *string, until *time.Time) *Lock {
	if reason == nil || *reason == "" {
		return nil
	}
	return &Lock{Reason: *reason, Until: until}
}

// IsCurrentlyLocked reports whether the lock is in effect at now.
func (l *Lock) IsCurrentlyLocked(now time.Time) bool {
	if l == nil || l.Reason == "" {
		return false
	}
	if l.Until == nil {
		return true
	}
	return l.Until.After(now)
}

// WasPreviouslyLocked reports whether the lock has a reason but has expired.
func (l *Lock) WasPreviouslyLocked(now time.Time) bool {
	if l == nil || l.Reason == "" {
		return false
	}
	return !l.IsCurrentlyLocked(now)
}

// IsIndefinite reports whether the lock has a reason and no expiry.
func (l *Lock) IsIndefinite() bool {
	return l != nil && l.Reason != "" && l.Until == nil
}

// LockState is the derived moderation state of an account.
type LockState string

const (
	LockStateUnlocked   LockState = "unlocked"
	LockStateLocked     LockState = "locked"
	LockStateIndefinite LockState = "locked_indefinitely"
	LockStateExpired    LockState = "previously_locked"
)

// State computes the lock state at now.
func (l *Lock) State(now time.Time) LockState {
	switch {
	case l.IsIndefinite():
		return LockStateIndefinite
	case l.IsCurrentlyLocked(now):
		return LockStateLocked
	case l.WasPreviouslyLocked(now):
		return LockStateExpired
	default:
		return LockStateUnlocked
	}
}
