package registry

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cargoyard/cargoyard/internal/model"
)

// User is the admin view of an account as returned by the registry.
type User = model.AdminUserResponse

// LockPayload is the body of a lock request. A nil Until locks indefinitely.
type LockPayload struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until"`
}

// UserUpdate carries the optional fields of a profile update.
type UserUpdate struct {
	Email                *string `json:"email,omitempty"`
	PublishNotifications *bool   `json:"publish_notifications,omitempty"`
}

// Stats summarizes a user's crates.
type Stats struct {
	TotalDownloads int64 `json:"total_downloads"`
}

// OK acknowledges a mutation.
type OK struct {
	OK bool `json:"ok"`
}

// CrateQuery selects a page of crates.
type CrateQuery struct {
	UserID        int64
	IncludeYanked bool
	Page          int
	PerPage       int
}

func (q CrateQuery) values() url.Values {
	v := url.Values{}
	if q.UserID != 0 {
		v.Set("user_id", strconv.FormatInt(q.UserID, 10))
	}
	if q.IncludeYanked {
		v.Set("include_yanked", "yes")
	} else {
		v.Set("include_yanked", "no")
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	return v
}

// CratePage is one page of a crate listing.
type CratePage struct {
	Crates []model.Crate `json:"crates"`
	Meta   struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

// Me returns the user behind the session.
func (s *Session) Me(ctx context.Context) (*model.User, error) {
	var out struct {
		User *model.User `json:"user"`
	}
	if err := s.do(ctx, http.MethodGet, "/api/v1/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// AdminUser fetches the admin view of the user with login or id.
func (s *Session) AdminUser(ctx context.Context, id string) (*User, error) {
	var out User
	if err := s.do(ctx, http.MethodGet, userPath(id, "/admin"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Lock locks the account with login.
func (s *Session) Lock(ctx context.Context, login string, payload LockPayload) (*User, error) {
	var out User
	if err := s.do(ctx, http.MethodPut, userPath(login, "/lock"), nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unlock ends the lock on the account with login.
func (s *Session) Unlock(ctx context.Context, login string) (*User, error) {
	var out User
	if err := s.do(ctx, http.MethodDelete, userPath(login, "/lock"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser changes profile fields of the user with id.
func (s *Session) UpdateUser(ctx context.Context, id int64, update UserUpdate) error {
	body := struct {
		User UserUpdate `json:"user"`
	}{User: update}
	return s.do(ctx, http.MethodPut, numericUserPath(id, ""), nil, body, nil)
}

// ResendVerification asks the registry to resend the verification email.
func (s *Session) ResendVerification(ctx context.Context, id int64) (*OK, error) {
	var out OK
	if err := s.do(ctx, http.MethodPut, numericUserPath(id, "/resend"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns download totals for the user with id.
func (s *Session) Stats(ctx context.Context, id int64) (*Stats, error) {
	var out Stats
	if err := s.do(ctx, http.MethodGet, numericUserPath(id, "/stats"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCrates returns a page of crates.
func (s *Session) ListCrates(ctx context.Context, q CrateQuery) (*CratePage, error) {
	var out CratePage
	if err := s.do(ctx, http.MethodGet, "/api/v1/crates", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
