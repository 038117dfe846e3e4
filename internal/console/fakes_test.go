package console

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/cache"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/registry"
)

const (
	adminCookie  = "admin-session"
	memberCookie = "member-session"
)

type registryCall struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

// fakeRegistry serves the registry endpoints the console calls.
type fakeRegistry struct {
	mu       sync.Mutex
	sessions map[string]*model.User
	users    map[string]*registry.User
	crates   registry.CratePage
	calls    []registryCall

	// Forced statuses; zero means behave normally.
	meStatus       int
	adminStatus    int
	mutationStatus int
}

func newFakeRegistry() *fakeRegistry {
	email := "ghost@example.com"
	return &fakeRegistry{
		sessions: map[string]*model.User{
			adminCookie:  {ID: 1, Login: "admin", IsAdmin: true},
			memberCookie: {ID: 2, Login: "member"},
		},
		users: map[string]*registry.User{
			"ghost": {ID: 42, Login: "Ghost", Kind: model.UserKind, Email: &email, EmailVerified: true, PublishNotifications: true},
		},
	}
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, registryCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: string(body)})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if f.meStatus != 0 {
			writeRegistryError(w, f.meStatus, "session lookup failed")
			return
		}
		cookie, err := r.Cookie(auth.SessionCookieName)
		if err != nil || f.sessions[cookie.Value] == nil {
			writeRegistryError(w, http.StatusForbidden, "must be logged in to perform that action")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": f.sessions[cookie.Value]})
	})
	mux.HandleFunc("GET /api/v1/users/{id}/admin", func(w http.ResponseWriter, r *http.Request) {
		if f.adminStatus != 0 {
			writeRegistryError(w, f.adminStatus, http.StatusText(f.adminStatus))
			return
		}
		f.writeUser(w, r.PathValue("id"))
	})
	mux.HandleFunc("PUT /api/v1/users/{id}/lock", func(w http.ResponseWriter, r *http.Request) {
		if f.mutationStatus != 0 {
			writeRegistryError(w, f.mutationStatus, "lock failed")
			return
		}
		var payload registry.LockPayload
		_ = json.Unmarshal(body, &payload)
		if u := f.users[strings.ToLower(r.PathValue("id"))]; u != nil {
			u.Lock = &model.Lock{Reason: payload.Reason, Until: payload.Until}
		}
		f.writeUser(w, r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /api/v1/users/{id}/lock", func(w http.ResponseWriter, r *http.Request) {
		if f.mutationStatus != 0 {
			writeRegistryError(w, f.mutationStatus, "unlock failed")
			return
		}
		if u := f.users[strings.ToLower(r.PathValue("id"))]; u != nil && u.Lock != nil {
			now := time.Now().UTC()
			u.Lock = &model.Lock{Reason: u.Lock.Reason, Until: &now}
		}
		f.writeUser(w, r.PathValue("id"))
	})
	mux.HandleFunc("PUT /api/v1/users/{id}", f.mutation(map[string]any{"ok": true}))
	mux.HandleFunc("PUT /api/v1/users/{id}/resend", f.mutation(map[string]any{"ok": true}))
	mux.HandleFunc("GET /api/v1/users/{id}/stats", f.mutation(map[string]any{"total_downloads": 1234}))
	mux.HandleFunc("GET /api/v1/crates", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.crates)
	})
	mux.ServeHTTP(w, r)
}

func (f *fakeRegistry) mutation(out any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.mutationStatus != 0 {
			writeRegistryError(w, f.mutationStatus, "mutation failed")
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (f *fakeRegistry) writeUser(w http.ResponseWriter, id string) {
	u := f.users[strings.ToLower(id)]
	if u == nil {
		writeRegistryError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (f *fakeRegistry) callsTo(method, prefix string) []registryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []registryCall
	for _, c := range f.calls {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func writeRegistryError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"errors": []map[string]string{{"detail": detail}}})
}

// memState is an in-memory StateStore.
type memState struct {
	mu          sync.Mutex
	flashes     map[string][]model.Notification
	transitions map[string]string
}

func newMemState() *memState {
	return &memState{flashes: map[string][]model.Notification{}, transitions: map[string]string{}}
}

func (s *memState) Notify(_ context.Context, key string, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes[key] = append(s.flashes[key], n)
	return nil
}

func (s *memState) Flashes(_ context.Context, key string) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes[key]
	delete(s.flashes, key)
	return out, nil
}

func (s *memState) SaveTransition(_ context.Context, key, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions[key] = target
	return nil
}

func (s *memState) PopTransition(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.transitions[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	delete(s.transitions, key)
	return target, nil
}

// recordingCapturer keeps captured errors.
type recordingCapturer struct {
	mu     sync.Mutex
	errors []error
}

func (c *recordingCapturer) Capture(_ context.Context, err error, _ ...any) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
	return "evt"
}

func (c *recordingCapturer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors)
}

// recordingNotifier keeps notifications.
type recordingNotifier struct {
	notes []model.Notification
}

func (n *recordingNotifier) Success(_ context.Context, message string) {
	n.notes = append(n.notes, model.Notification{Level: model.NotificationSuccess, Message: message})
}

func (n *recordingNotifier) Error(_ context.Context, message string) {
	n.notes = append(n.notes, model.Notification{Level: model.NotificationError, Message: message})
}

type testConsole struct {
	registry *fakeRegistry
	client   *registry.Client
	state    *memState
	capture  *recordingCapturer
	store    *Store
	now      time.Time
	handler  http.Handler
	console  *Console
}

func newTestConsole(t *testing.T) *testConsole {
	t.Helper()

	fake := newFakeRegistry()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tc := &testConsole{
		registry: fake,
		client:   registry.NewClient(srv.URL, 5*time.Second, logger),
		state:    newMemState(),
		capture:  &recordingCapturer{},
		store:    NewStore(),
		now:      time.Now().UTC().Truncate(time.Second),
	}

	c := New(Config{
		Registry: tc.client,
		Store:    tc.store,
		State:    tc.state,
		Capturer: tc.capture,
		Logger:   logger,
		Now:      func() time.Time { return tc.now },
	})
	tc.console = c
	tc.handler = NewRouter(c, logger, nil)
	return tc
}

func (tc *testConsole) do(t *testing.T, method, target, cookie string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: cookie})
	}

	rec := httptest.NewRecorder()
	tc.handler.ServeHTTP(rec, req)
	return rec
}

func (tc *testConsole) flashes(cookie string) []model.Notification {
	out, _ := tc.state.Flashes(context.Background(), stateKey(cookie))
	return out
}
