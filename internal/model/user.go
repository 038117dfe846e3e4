package model

import (
	"fmt"
	"time"
)

// UserKind is the account kind reported to clients.
const UserKind = "user"

// User represents a registry account.
type User struct {
	ID                   int64      `json:"id"`
	Login                string     `json:"login"`
	Name                 *string    `json:"name,omitempty"`
	Avatar               *string    `json:"avatar,omitempty"`
	IsAdmin              bool       `json:"is_admin"`
	PublishNotifications bool       `json:"publish_notifications"`
	LockReason           *string    `json:"-"`
	LockUntil            *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Lock returns the account lock, or nil when the account was never locked.
func (u *User) Lock() *Lock {
	return NewLock(u.LockReason, u.LockUntil)
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.Lock().IsCurrentlyLocked(now)
}

// ProfileURL returns the external profile URL for the login.
func (u *User) ProfileURL() string {
	return "https://github.com/" + u.Login
}

// LockedMessage describes an active lock for authentication failures.
func (u *User) LockedMessage() string {
	lock := u.Lock()
	if lock == nil {
		return ""
	}
	until := "indefinitely"
	if lock.Until != nil {
		until = lock.Until.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("This account is locked until %s. Reason: %s", until, lock.Reason)
}

// Email is the address attached to a user and its verification state.
type Email struct {
	UserID           int64
	Email            string
	Verified         bool
	Token            string
	TokenGeneratedAt *time.Time
}

// AdminUser is the privileged view of a user, including contact and lock data.
type AdminUser struct {
	User
	Email                 *string
	EmailVerified         bool
	EmailVerificationSent bool
}

// AdminUserResponse is the JSON form of AdminUser.
type AdminUserResponse struct {
	ID                    int64   `json:"id"`
	Login                 string  `json:"login"`
	Name                  *string `json:"name"`
	Avatar                *string `json:"avatar"`
	URL                   string  `json:"url"`
	Kind                  string  `json:"kind"`
	Email                 *string `json:"email"`
	EmailVerified         bool    `json:"email_verified"`
	EmailVerificationSent bool    `json:"email_verification_sent"`
	IsAdmin               bool    `json:"is_admin"`
	PublishNotifications  bool    `json:"publish_notifications"`
	Lock                  *Lock   `json:"lock"`
}

// ToResponse converts an AdminUser to its JSON form.
func (u *AdminUser) ToResponse() AdminUserResponse {
	return AdminUserResponse{
		ID:                    u.ID,
		Login:                 u.Login,
		Name:                  u.Name,
		Avatar:                u.Avatar,
		URL:                   u.ProfileURL(),
		Kind:                  UserKind,
		Email:                 u.Email,
		EmailVerified:         u.EmailVerified,
		EmailVerificationSent: u.EmailVerificationSent,
		IsAdmin:               u.IsAdmin,
		PublishNotifications:  u.PublishNotifications,
		Lock:                  u.Lock(),
	}
}
