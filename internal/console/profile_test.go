package console

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/registry"
)

func newProfile(tc *testConsole, user *registry.User, notifier Notifier, now func() time.Time) *ProfileController {
	return NewProfileController(user, ProfileDeps{
		API:      tc.client.As(adminCookie),
		Store:    tc.store,
		Notifier: notifier,
		Capturer: tc.capture,
		Defaults: DefaultProfileDefaults(),
		Now:      now,
	})
}

func TestProfileController_AsPayload(t *testing.T) {
	tc := newTestConsole(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newProfile(tc, &registry.User{ID: 42, Login: "ghost"}, &recordingNotifier{}, func() time.Time { return now })

	tests := []struct {
		days      string
		wantUntil *time.Time
	}{
		{"7", ptrTime(now.Add(7 * 24 * time.Hour))},
		{"3", ptrTime(now.Add(3 * 24 * time.Hour))},
		{" 1 ", ptrTime(now.Add(24 * time.Hour))},
		{"0.5", ptrTime(now.Add(12 * time.Hour))},
		{"1.5", ptrTime(now.Add(36 * time.Hour))},
		{"-1", ptrTime(now.Add(-24 * time.Hour))},
		{"36500", ptrTime(time.Date(2126, 2, 5, 12, 0, 0, 0, time.UTC))},
		{"200000", ptrTime(now.AddDate(0, 0, 200000))},
		{"1000000", ptrTime(now.AddDate(0, 0, 1000000))},
		{"1e9", nil},
		{"-1e9", nil},
		{"abc", nil},
		{"", nil},
		{"NaN", nil},
	}

	for _, tt := range tests {
		t.Run(tt.days, func(t *testing.T) {
			p.Days = tt.days
			p.Reason = "spam"

			payload := p.AsPayload()
			assert.Equal(t, "spam", payload.Reason)
			if tt.wantUntil == nil {
				assert.Nil(t, payload.Until)
				return
			}
			require.NotNil(t, payload.Until)
			assert.True(t, tt.wantUntil.Equal(*payload.Until), "until = %v, want %v", payload.Until, tt.wantUntil)
		})
	}
}

func TestProfileController_LongLockStaysInFuture(t *testing.T) {
	tc := newTestConsole(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newProfile(tc, &registry.User{ID: 42, Login: "ghost"}, &recordingNotifier{}, func() time.Time { return now })

	for _, days := range []string{"106752", "200000", "1000000", "2900000"} {
		p.Days = days
		payload := p.AsPayload()
		require.NotNil(t, payload.Until, days)
		assert.True(t, payload.Until.After(now), "%s days gave %v", days, payload.Until)

		_, err := payload.Until.MarshalJSON()
		assert.NoError(t, err, days)
	}
}

func TestProfileController_DefaultsToSevenDays(t *testing.T) {
	tc := newTestConsole(t)
	p := newProfile(tc, &registry.User{ID: 42, Login: "ghost"}, &recordingNotifier{}, nil)

	assert.Equal(t, "7", p.Days)
	assert.Equal(t, "Please contact help@cargoyard.dev to unlock your account.", p.Reason)

	payload := p.AsPayload()
	require.NotNil(t, payload.Until)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *payload.Until, 5*time.Second)
}

func TestProfileController_LockStateIsRecomputed(t *testing.T) {
	tc := newTestConsole(t)
	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := &registry.User{ID: 42, Login: "ghost", Lock: &model.Lock{Reason: "spam", Until: &until}}

	now := until.Add(-time.Minute)
	p := newProfile(tc, user, &recordingNotifier{}, func() time.Time { return now })

	assert.True(t, p.IsCurrentlyLocked())
	assert.False(t, p.WasPreviouslyLocked())
	assert.Equal(t, model.LockStateLocked, p.LockState())

	now = until.Add(time.Minute)
	assert.False(t, p.IsCurrentlyLocked())
	assert.True(t, p.WasPreviouslyLocked())
	assert.Equal(t, model.LockStateExpired, p.LockState())
}

func TestProfileController_Lock(t *testing.T) {
	tc := newTestConsole(t)
	now := tc.now
	user := tc.store.Push(tc.registry.users["ghost"])
	notifier := &recordingNotifier{}
	p := newProfile(tc, user, notifier, func() time.Time { return now })

	p.Days = "3"
	p.Reason = "spam"
	require.NoError(t, p.Lock(context.Background()))

	calls := tc.registry.callsTo(http.MethodPut, "/api/v1/users/Ghost/lock")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"reason":"spam","until":"`+now.Add(72*time.Hour).Format(time.RFC3339)+`"}`, calls[0].Body)

	assert.Equal(t, "7", p.Days)
	assert.Equal(t, DefaultProfileDefaults().Reason, p.Reason)

	require.NotNil(t, p.User().Lock)
	assert.Equal(t, "spam", p.User().Lock.Reason)
	assert.True(t, now.Add(72*time.Hour).Equal(*p.User().Lock.Until))
	assert.True(t, p.IsCurrentlyLocked())

	stored, _ := tc.store.Lookup("ghost")
	assert.Equal(t, "spam", stored.Lock.Reason)

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, model.NotificationSuccess, notifier.notes[0].Level)
}

func TestProfileController_Unlock(t *testing.T) {
	tc := newTestConsole(t)
	tc.registry.users["ghost"].Lock = &model.Lock{Reason: "spam"}
	user := tc.store.Push(tc.registry.users["ghost"])
	notifier := &recordingNotifier{}
	p := newProfile(tc, user, notifier, nil)

	p.Days = "30"
	p.Reason = "changed my mind"
	require.NoError(t, p.Unlock(context.Background()))

	calls := tc.registry.callsTo(http.MethodDelete, "/api/v1/users/Ghost/lock")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Body)

	assert.Equal(t, "7", p.Days)
	assert.Equal(t, DefaultProfileDefaults().Reason, p.Reason)
	assert.Equal(t, "spam", p.User().Lock.Reason)
	require.Len(t, notifier.notes, 1)
	assert.Equal(t, "Account unlocked", notifier.notes[0].Message)
}

func TestProfileController_FailureKeepsForm(t *testing.T) {
	tc := newTestConsole(t)
	tc.registry.mutationStatus = http.StatusForbidden
	user := tc.store.Push(tc.registry.users["ghost"])
	notifier := &recordingNotifier{}
	p := newProfile(tc, user, notifier, nil)

	p.Days = "3"
	p.Reason = "spam"
	assert.Error(t, p.Lock(context.Background()))
	assert.Error(t, p.Unlock(context.Background()))

	assert.Equal(t, "3", p.Days)
	assert.Equal(t, "spam", p.Reason)
	assert.Nil(t, p.User().Lock)
	assert.Equal(t, 2, tc.capture.count())

	require.Len(t, notifier.notes, 2)
	assert.Equal(t, "Failed to lock account: lock failed", notifier.notes[0].Message)
	assert.Equal(t, "Failed to unlock account: unlock failed", notifier.notes[1].Message)
}

func ptrTime(t time.Time) *time.Time { return &t }
