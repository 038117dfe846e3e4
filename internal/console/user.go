package console

import (
	"context"

	"github.com/cargoyard/cargoyard/internal/registry"
)

// UserEntity runs the remote actions on a stored user. After a successful
// call it patches only the fields the action is known to change. Errors go
// back to the caller; nothing here notifies or logs.
type UserEntity struct {
	id    int64
	api   *registry.Session
	store *Store
}

// NewUserEntity binds the stored user with id to an operator session.
func NewUserEntity(id int64, api *registry.Session, store *Store) *UserEntity {
	return &UserEntity{id: id, api: api, store: store}
}

// ChangeEmail sets a new, unverified email address.
func (e *UserEntity) ChangeEmail(ctx context.Context, email string) error {
	if err := e.api.UpdateUser(ctx, e.id, registry.UserUpdate{Email: &email}); err != nil {
		return err
	}
	e.store.Patch(e.id, func(u *registry.User) {
		u.Email = &email
		u.EmailVerified = false
		u.EmailVerificationSent = true
	})
	return nil
}

// UpdatePublishNotifications toggles publish notification emails.
func (e *UserEntity) UpdatePublishNotifications(ctx context.Context, enabled bool) error {
	if err := e.api.UpdateUser(ctx, e.id, registry.UserUpdate{PublishNotifications: &enabled}); err != nil {
		return err
	}
	e.store.Patch(e.id, func(u *registry.User) {
		u.PublishNotifications = enabled
	})
	return nil
}

// ResendVerificationEmail asks the registry to send a new verification link.
func (e *UserEntity) ResendVerificationEmail(ctx context.Context) (*registry.OK, error) {
	return e.api.ResendVerification(ctx, e.id)
}

// Stats returns the user's download totals.
func (e *UserEntity) Stats(ctx context.Context) (*registry.Stats, error) {
	return e.api.Stats(ctx, e.id)
}
