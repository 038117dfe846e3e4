// Package console is the admin console: it guards /admin routes, looks up
// users through the registry API and runs moderation actions on them.
//
// Pages answer with JSON view models. Failed lookups redirect to /error;
// failed actions queue an error notification and redirect back to the
// profile.
package console

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/cache"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/registry"
	"github.com/cargoyard/cargoyard/internal/telemetry"
)

// Config holds the console's collaborators.
type Config struct {
	Registry *registry.Client
	Store    *Store
	State    StateStore
	Capturer telemetry.Capturer
	Logger   *slog.Logger
	Defaults ProfileDefaults
	Now      func() time.Time
}

// Console serves the admin console pages and actions.
type Console struct {
	registry *registry.Client
	store    *Store
	state    StateStore
	capture  telemetry.Capturer
	logger   *slog.Logger
	defaults ProfileDefaults
	now      func() time.Time
}

// New creates a Console.
func New(cfg Config) *Console {
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Defaults == (ProfileDefaults{}) {
		cfg.Defaults = DefaultProfileDefaults()
	}
	logger := cfg.Logger.With("component", "console")
	if cfg.Capturer == nil {
		cfg.Capturer = telemetry.NewCollector(cfg.Logger)
	}
	return &Console{
		registry: cfg.Registry,
		store:    cfg.Store,
		state:    cfg.State,
		capture:  cfg.Capturer,
		logger:   logger,
		defaults: cfg.Defaults,
		now:      cfg.Now,
	}
}

// ProfileView is the body of a user's profile page.
type ProfileView struct {
	User                *registry.User       `json:"user"`
	LockState           model.LockState      `json:"lock_state"`
	IsCurrentlyLocked   bool                 `json:"is_currently_locked"`
	WasPreviouslyLocked bool                 `json:"was_previously_locked"`
	LockForm            LockForm             `json:"lock_form"`
	Notifications       []model.Notification `json:"notifications"`
}

// LockForm is the lock form state.
type LockForm struct {
	Days   string `json:"days"`
	Reason string `json:"reason"`
}

func (c *Console) notifier(op *operator) Notifier {
	return &flashNotifier{state: c.state, sessionKey: op.SessionKey, logger: c.logger}
}

func (c *Console) profile(op *operator, user *registry.User) *ProfileController {
	return NewProfileController(user, ProfileDeps{
		API:      op.API,
		Store:    c.store,
		Notifier: c.notifier(op),
		Capturer: c.capture,
		Defaults: c.defaults,
		Now:      c.now,
	})
}

// Index handles GET /admin.
func (c *Console) Index(w http.ResponseWriter, r *http.Request) {
	op := operatorFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]*model.User{"user": op.User})
}

// Profile handles GET /admin/users/{id}.
func (c *Console) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op := operatorFromContext(ctx)
	id := chi.URLParam(r, "id")

	user, err := op.API.AdminUser(ctx, id)
	if err != nil {
		c.lookupFailed(w, r, id, err)
		return
	}
	p := c.profile(op, c.store.Push(user))

	// Form input survives a failed action.
	query := r.URL.Query()
	if query.Has("days") {
		p.Days = query.Get("days")
	}
	if query.Has("reason") {
		p.Reason = query.Get("reason")
	}

	flashes, err := c.state.Flashes(ctx, op.SessionKey)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read notifications", "error", err)
	}
	if flashes == nil {
		flashes = []model.Notification{}
	}

	writeJSON(w, http.StatusOK, ProfileView{
		User:                p.User(),
		LockState:           p.LockState(),
		IsCurrentlyLocked:   p.IsCurrentlyLocked(),
		WasPreviouslyLocked: p.WasPreviouslyLocked(),
		LockForm:            LockForm{Days: p.Days, Reason: p.Reason},
		Notifications:       flashes,
	})
}

// Crates handles GET /admin/users/{id}/crates.
func (c *Console) Crates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op := operatorFromContext(ctx)
	id := chi.URLParam(r, "id")

	user, err := op.API.AdminUser(ctx, id)
	if err != nil {
		c.lookupFailed(w, r, id, err)
		return
	}
	user = c.store.Push(user)

	q := crateQueryFromURL(r.URL.Query(), user.ID)
	page, err := op.API.ListCrates(ctx, registry.CrateQuery{
		UserID:        q.UserID,
		IncludeYanked: q.IncludeYanked,
		Page:          q.Page,
		PerPage:       q.PerPage,
	})
	if err != nil {
		c.lookupFailed(w, r, id, err)
		return
	}

	writeJSON(w, http.StatusOK, newCratesView(user, q, page))
}

func (c *Console) lookupFailed(w http.ResponseWriter, r *http.Request, id string, err error) {
	view := lookupErrorView(id, err)
	if view.TryAgain {
		c.logger.WarnContext(r.Context(), "user lookup failed", "id", id, "error", err)
	}
	view.From = r.URL.RequestURI()
	redirectToError(w, r, view)
}

// resolve returns the stored user for id, fetching it when the store has
// not seen it yet.
func (c *Console) resolve(r *http.Request, op *operator, id string) (*registry.User, error) {
	if user, ok := c.store.Lookup(id); ok {
		return user, nil
	}
	user, err := op.API.AdminUser(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return c.store.Push(user), nil
}

// Lock handles POST /admin/users/{id}/lock with form fields days and reason.
func (c *Console) Lock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op := operatorFromContext(ctx)
	id := chi.URLParam(r, "id")

	user, err := c.resolve(r, op, id)
	if err != nil {
		c.lookupFailed(w, r, id, err)
		return
	}

	p := c.profile(op, user)
	p.Days = r.PostFormValue("days")
	p.Reason = r.PostFormValue("reason")

	if err := p.Lock(ctx); err != nil {
		redirectToProfile(w, r, id, url.Values{"days": {p.Days}, "reason": {p.Reason}})
		return
	}
	redirectToProfile(w, r, id, nil)
}

// Unlock handles POST /admin/users/{id}/unlock.
func (c *Console) Unlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op := operatorFromContext(ctx)
	id := chi.URLParam(r, "id")

	user, err := c.resolve(r, op, id)
	if err != nil {
		c.lookupFailed(w, r, id, err)
		return
	}

	_ = c.profile(op, user).Unlock(ctx)
	redirectToProfile(w, r, id, nil)
}

// ChangeEmail handles POST /admin/users/{id}/email with form field email.
func (c *Console) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	c.userAction(w, r, "change_email", func(e *UserEntity, n Notifier) error {
		email := strings.TrimSpace(r.PostFormValue("email"))
		if err := e.ChangeEmail(r.Context(), email); err != nil {
			return err
		}
		n.Success(r.Context(), "Email address updated. A confirmation link was sent to "+email)
		return nil
	})
}

// UpdateNotifications handles POST /admin/users/{id}/notifications with form
// field enabled.
func (c *Console) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	c.userAction(w, r, "update_notifications", func(e *UserEntity, n Notifier) error {
		enabled, err := strconv.ParseBool(r.PostFormValue("enabled"))
		if err != nil {
			return errInvalidToggle
		}
		if err := e.UpdatePublishNotifications(r.Context(), enabled); err != nil {
			return err
		}
		if enabled {
			n.Success(r.Context(), "Publish notifications enabled")
		} else {
			n.Success(r.Context(), "Publish notifications disabled")
		}
		return nil
	})
}

// Resend handles POST /admin/users/{id}/resend.
func (c *Console) Resend(w http.ResponseWriter, r *http.Request) {
	c.userAction(w, r, "resend_verification", func(e *UserEntity, n Notifier) error {
		if _, err := e.ResendVerificationEmail(r.Context()); err != nil {
			return err
		}
		n.Success(r.Context(), "We have re-sent the email confirmation link")
		return nil
	})
}

// Stats handles GET /admin/users/{id}/stats.
func (c *Console) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op := operatorFromContext(ctx)
	id := chi.URLParam(r, "id")

	user, err := c.resolve(r, op, id)
	if err != nil {
		c.lookupFailed(w, r, id, err)
		return
	}

	stats, err := NewUserEntity(user.ID, op.API, c.store).Stats(ctx)
	if err != nil {
		c.actionFailed(r, c.notifier(op), "stats", user, err)
		redirectToProfile(w, r, id, nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

var errInvalidToggle = errors.New("enabled must be true or false")

type actionFunc func(e *UserEntity, n Notifier) error

func (c *Console) userAction(w http.ResponseWriter, r *http.Request, action string, fn actionFunc) {
	op := operatorFromContext(r.Context())
	id := chi.URLParam(r, "id")

	user, err := c.resolve(r, op, id)
	if err != nil {
		c.lookupFailed(w, r, id, err)
		return
	}

	n := c.notifier(op)
	if err := fn(NewUserEntity(user.ID, op.API, c.store), n); err != nil {
		c.actionFailed(r, n, action, user, err)
	}
	redirectToProfile(w, r, id, nil)
}

func (c *Console) actionFailed(r *http.Request, n Notifier, action string, user *registry.User, err error) {
	detail := errorDetail(err)
	if errors.Is(err, errInvalidToggle) {
		detail = err.Error()
	}
	n.Error(r.Context(), "An error occurred: "+detail)
	c.capture.Capture(r.Context(), err, "action", action, "user_id", user.ID)
}

// ErrorPage handles GET /error.
func (c *Console) ErrorPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, errorViewFromQuery(r.URL.Query()))
}

// Resume handles GET /resume by replaying the navigation saved by the guard.
func (c *Console) Resume(w http.ResponseWriter, r *http.Request) {
	target := "/admin"
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		saved, err := c.state.PopTransition(r.Context(), stateKey(cookie.Value))
		switch {
		case err == nil:
			if p := localPath(saved); p != "" {
				target = p
			}
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.WarnContext(r.Context(), "failed to pop transition", "error", err)
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Healthz is the liveness probe.
func (c *Console) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func redirectToProfile(w http.ResponseWriter, r *http.Request, id string, query url.Values) {
	target := "/admin/users/" + url.PathEscape(id)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
