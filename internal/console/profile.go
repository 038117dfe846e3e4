package console

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/registry"
	"github.com/cargoyard/cargoyard/internal/telemetry"
)

// ProfileDefaults are the lock form values shown on a fresh profile.
type ProfileDefaults struct {
	Days   string
	Reason string
}

// DefaultProfileDefaults returns the stock lock form values.
func DefaultProfileDefaults() ProfileDefaults {
	return ProfileDefaults{
		Days:   "7",
		Reason: "Please contact help@cargoyard.dev to unlock your account.",
	}
}

// ProfileController holds the lock form of one user profile and runs the
// lock and unlock actions.
type ProfileController struct {
	Days   string
	Reason string

	user     *registry.User
	defaults ProfileDefaults
	api      *registry.Session
	store    *Store
	notify   Notifier
	capture  telemetry.Capturer
	now      func() time.Time
}

// ProfileDeps are the collaborators of a ProfileController.
type ProfileDeps struct {
	API      *registry.Session
	Store    *Store
	Notifier Notifier
	Capturer telemetry.Capturer
	Defaults ProfileDefaults
	Now      func() time.Time
}

// NewProfileController creates a controller for user with the default form.
func NewProfileController(user *registry.User, deps ProfileDeps) *ProfileController {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ProfileController{
		Days:     deps.Defaults.Days,
		Reason:   deps.Defaults.Reason,
		user:     user,
		defaults: deps.Defaults,
		api:      deps.API,
		store:    deps.Store,
		notify:   deps.Notifier,
		capture:  deps.Capturer,
		now:      deps.Now,
	}
}

// User returns the controller's current user record.
func (p *ProfileController) User() *registry.User {
	return p.user
}

// IsCurrentlyLocked is evaluated against the clock on every call.
func (p *ProfileController) IsCurrentlyLocked() bool {
	return p.user.Lock.IsCurrentlyLocked(p.now())
}

// WasPreviouslyLocked is evaluated against the clock on every call.
func (p *ProfileController) WasPreviouslyLocked() bool {
	return p.user.Lock.WasPreviouslyLocked(p.now())
}

// LockState is the derived lock state at the current time.
func (p *ProfileController) LockState() model.LockState {
	return p.user.Lock.State(p.now())
}

// maxLockDays keeps lock deadlines inside the years a JSON timestamp can carry.
const maxLockDays = 2_900_000

// AsPayload builds the lock request. A Days value that is not a number,
// or whose deadline would fall outside years 0 to 9999, locks indefinitely.
func (p *ProfileController) AsPayload() registry.LockPayload {
	payload := registry.LockPayload{Reason: p.Reason}
	if days, ok := parseDays(p.Days); ok {
		if until, ok := lockUntil(p.now().UTC(), days); ok {
			payload.Until = &until
		}
	}
	return payload
}

func parseDays(raw string) (float64, bool) {
	days, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(days) || math.IsInf(days, 0) {
		return 0, false
	}
	return days, true
}

// lockUntil adds whole days on the calendar and only the fractional part as
// a Duration, so large day counts cannot overflow.
func lockUntil(now time.Time, days float64) (time.Time, bool) {
	if math.Abs(days) > maxLockDays {
		return time.Time{}, false
	}
	whole := math.Trunc(days)
	until := now.AddDate(0, 0, int(whole)).Add(time.Duration((days - whole) * float64(24*time.Hour)))
	if y := until.Year(); y < 0 || y > 9999 {
		return time.Time{}, false
	}
	return until, true
}

// Lock locks the account. Failures are reported to the operator and
// captured, then returned so the caller can keep the form input.
func (p *ProfileController) Lock(ctx context.Context) error {
	user, err := p.api.Lock(ctx, p.user.Login, p.AsPayload())
	if err != nil {
		p.fail(ctx, "lock", err)
		return err
	}
	p.succeed(ctx, user, "Account locked")
	return nil
}

// Unlock ends the account lock.
func (p *ProfileController) Unlock(ctx context.Context) error {
	user, err := p.api.Unlock(ctx, p.user.Login)
	if err != nil {
		p.fail(ctx, "unlock", err)
		return err
	}
	p.succeed(ctx, user, "Account unlocked")
	return nil
}

func (p *ProfileController) succeed(ctx context.Context, user *registry.User, message string) {
	p.notify.Success(ctx, message)
	p.Days = p.defaults.Days
	p.Reason = p.defaults.Reason
	p.user = p.store.Push(user)
}

func (p *ProfileController) fail(ctx context.Context, action string, err error) {
	p.notify.Error(ctx, fmt.Sprintf("Failed to %s account: %s", action, errorDetail(err)))
	p.capture.Capture(ctx, err, "action", action, "login", p.user.Login)
}
