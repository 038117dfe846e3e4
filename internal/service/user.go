// Package service provides business logic for the registry API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cargoyard/cargoyard/internal/audit"
	"github.com/cargoyard/cargoyard/internal/metrics"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/repository"
)

// Service errors.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrNotOwnAccount    = errors.New("current user does not match requested user")
	ErrEmptyEmail       = errors.New("empty email rejected")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrNoEmail          = errors.New("email could not be found")
	ErrEmptyLockReason  = errors.New("lock reason must not be empty")
	ErrNothingToUpdate  = errors.New("no user fields to update")
	ErrTokenNotFound    = errors.New("api token not found")
	ErrTokenNameMissing = errors.New("name must have a value")
)

// UserRepository is the user persistence used by UserService.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetAdminUserByLogin(ctx context.Context, login string) (*model.AdminUser, error)
	LockUser(ctx context.Context, login, reason string, until *time.Time) (*model.AdminUser, error)
	UnlockUser(ctx context.Context, login string, now time.Time) (*model.AdminUser, error)
	UpdatePublishNotifications(ctx context.Context, userID int64, enabled bool) error
	UpsertEmail(ctx context.Context, userID int64, email, token string, now time.Time) error
	RegenerateEmailToken(ctx context.Context, userID int64, token string, now time.Time) (*model.Email, error)
	TotalDownloads(ctx context.Context, userID int64) (int64, error)
}

// SessionInvalidator drops cached session users.
type SessionInvalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

// EventPublisher records moderation events.
type EventPublisher interface {
	PublishAsync(event audit.EventPayload)
}

// UserService implements admin moderation and self-service profile changes.
type UserService struct {
	repo      UserRepository
	sessions  SessionInvalidator
	publisher EventPublisher
	mailer    Mailer
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(
	repo UserRepository,
	sessions SessionInvalidator,
	publisher EventPublisher,
	mailer Mailer,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		repo:      repo,
		sessions:  sessions,
		publisher: publisher,
		mailer:    mailer,
		logger:    logger.With("component", "service.user"),
		metrics:   recorder,
		now:       time.Now,
	}
}

// SetClock replaces the service clock.
func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

// Me returns the authenticated user.
func (s *UserService) Me(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return user, nil
}

// GetAdminUser returns the admin view of the user with login.
func (s *UserService) GetAdminUser(ctx context.Context, login string) (*model.AdminUser, error) {
	user, err := s.repo.GetAdminUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.IncAdminLookup("not_found")
			return nil, ErrUserNotFound
		}
		s.metrics.IncAdminLookup("error")
		return nil, fmt.Errorf("get admin user: %w", err)
	}
	s.metrics.IncAdminLookup("found")
	return user, nil
}

// LockInput describes a lock request. A nil Until locks indefinitely.
type LockInput struct {
	Login   string
	Reason  string
	Until   *time.Time
	ActorID int64
}

// LockUser locks the account with the given reason and expiry.
func (s *UserService) LockUser(ctx context.Context, input LockInput) (*model.AdminUser, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, ErrEmptyLockReason
	}

	var until *time.Time
	if input.Until != nil {
		u := input.Until.UTC()
		until = &u
	}

	user, err := s.repo.LockUser(ctx, input.Login, reason, until)
	if err != nil {
		return nil, mapUserErr(err)
	}

	s.afterModeration(ctx, model.ActionLock, user.ID, input.ActorID, &reason, until)
	s.logger.InfoContext(ctx, "user locked",
		"user_id", user.ID,
		"login", user.Login,
		"actor_id", input.ActorID,
		"indefinite", until == nil,
	)
	return user, nil
}

// UnlockUser ends the account lock. The reason is kept as history.
func (s *UserService) UnlockUser(ctx context.Context, login string, actorID int64) (*model.AdminUser, error) {
	user, err := s.repo.UnlockUser(ctx, login, s.now().UTC())
	if err != nil {
		return nil, mapUserErr(err)
	}

	s.afterModeration(ctx, model.ActionUnlock, user.ID, actorID, nil, nil)
	s.logger.InfoContext(ctx, "user unlocked", "user_id", user.ID, "login", user.Login, "actor_id", actorID)
	return user, nil
}

func (s *UserService) afterModeration(ctx context.Context, action model.ModerationAction, userID, actorID int64, reason *string, until *time.Time) {
	s.metrics.IncLockChange(string(action))
	s.invalidate(ctx, userID)
	if s.publisher != nil {
		s.publisher.PublishAsync(audit.NewPayload(action, userID, actorID, reason, until, s.now()))
	}
}

func (s *UserService) invalidate(ctx context.Context, userID int64) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.InvalidateUser(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate cached user", "user_id", userID, "error", err)
	}
}

// Actor is the user performing a profile change.
type Actor struct {
	ID int64
	// Admin is set for admins on a browser session. They may edit any account.
	Admin bool
}

// CanEdit reports whether the actor may change the account with userID.
func (a Actor) CanEdit(userID int64) bool {
	return a.ID == userID || a.Admin
}

// UpdateInput holds the optional profile fields of PUT /users/{id}.
type UpdateInput struct {
	UserID               int64
	Actor                Actor
	Email                *string
	PublishNotifications *bool
}

// UpdateUser changes the email and/or publish notification preference of an
// account. Only the owner or an admin may do so.
func (s *UserService) UpdateUser(ctx context.Context, input UpdateInput) error {
	if !input.Actor.CanEdit(input.UserID) {
		return ErrNotOwnAccount
	}
	if input.Email == nil && input.PublishNotifications == nil {
		return ErrNothingToUpdate
	}

	user, err := s.repo.GetUserByID(ctx, input.UserID)
	if err != nil {
		return mapUserErr(err)
	}

	var email string
	if input.Email != nil {
		email, err = normalizeEmail(*input.Email)
		if err != nil {
			return err
		}
	}

	if input.PublishNotifications != nil {
		enabled := *input.PublishNotifications
		if err := s.repo.UpdatePublishNotifications(ctx, user.ID, enabled); err != nil {
			return mapUserErr(err)
		}
		s.metrics.IncUserUpdate("publish_notifications")
		s.invalidate(ctx, user.ID)

		if user.PublishNotifications && !enabled {
			s.notifyDisabled(ctx, user)
		}
	}

	if input.Email != nil {
		token := uuid.NewString()
		if err := s.repo.UpsertEmail(ctx, user.ID, email, token, s.now().UTC()); err != nil {
			return fmt.Errorf("update email: %w", err)
		}
		s.metrics.IncUserUpdate("email")
		s.invalidate(ctx, user.ID)
		if s.publisher != nil {
			s.publisher.PublishAsync(audit.NewPayload(model.ActionEmailChange, user.ID, input.Actor.ID, nil, nil, s.now()))
		}

		if err := s.mailer.SendVerification(ctx, email, user.Login, token); err != nil {
			// The address is saved; the user can ask for a resend.
			s.logger.ErrorContext(ctx, "failed to send verification email", "user_id", user.ID, "error", err)
		}
	}

	return nil
}

func (s *UserService) notifyDisabled(ctx context.Context, user *model.User) {
	view, err := s.repo.GetAdminUserByLogin(ctx, user.Login)
	if err != nil || view.Email == nil || !view.EmailVerified {
		return
	}
	if err := s.mailer.SendNotificationsDisabled(ctx, *view.Email, user.Login); err != nil {
		s.logger.WarnContext(ctx, "failed to send notification opt-out email", "user_id", user.ID, "error", err)
	}
}

// ResendVerification issues a new verification token for the account's
// email and sends it.
func (s *UserService) ResendVerification(ctx context.Context, userID int64, actor Actor) error {
	if !actor.CanEdit(userID) {
		return ErrNotOwnAccount
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return mapUserErr(err)
	}

	email, err := s.repo.RegenerateEmailToken(ctx, userID, uuid.NewString(), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrEmailNotFound) {
			return ErrNoEmail
		}
		return fmt.Errorf("regenerate email token: %w", err)
	}

	if err := s.mailer.SendVerification(ctx, email.Email, user.Login, email.Token); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// Stats returns the total downloads across the user's crates.
func (s *UserService) Stats(ctx context.Context, userID int64) (int64, error) {
	total, err := s.repo.TotalDownloads(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("total downloads: %w", err)
	}
	return total, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrEmptyEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func mapUserErr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}
