package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/cache"
	"github.com/cargoyard/cargoyard/internal/metrics"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/repository"
)

type fakeStore struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	tokens []*model.APIToken
	used   []string
}

func (s *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeStore) GetAPITokensByPrefix(_ context.Context, prefix string) ([]*model.APIToken, error) {
	var out []*model.APIToken
	for _, t := range s.tokens {
		if t.TokenPrefix == prefix {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateAPITokenLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = append(s.used, id)
	return nil
}

type fakeAuthCache struct {
	users  map[int64]*model.User
	tokens map[string]*cache.TokenAuth
}

func newFakeAuthCache() *fakeAuthCache {
	return &fakeAuthCache{users: map[int64]*model.User{}, tokens: map[string]*cache.TokenAuth{}}
}

func (c *fakeAuthCache) GetUser(_ context.Context, id int64) (*model.User, error) {
	if u, ok := c.users[id]; ok {
		return u, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *fakeAuthCache) SetUser(_ context.Context, u *model.User, _ time.Duration) error {
	c.users[u.ID] = u
	return nil
}

func (c *fakeAuthCache) GetTokenAuth(_ context.Context, hash string) (*cache.TokenAuth, error) {
	if t, ok := c.tokens[hash]; ok {
		return t, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *fakeAuthCache) SetTokenAuth(_ context.Context, hash string, t *cache.TokenAuth) error {
	c.tokens[hash] = t
	return nil
}

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type authFixture struct {
	store    *fakeStore
	cache    *fakeAuthCache
	sessions *auth.SessionManager
	recorder *metrics.InMemoryRecorder
	handler  http.Handler
	seen     *model.AuthContext
}

func newAuthFixture(t *testing.T, users ...*model.User) *authFixture {
	t.Helper()
	f := &authFixture{
		store:    &fakeStore{users: map[int64]*model.User{}},
		cache:    newFakeAuthCache(),
		sessions: auth.NewSessionManager("test-secret", time.Hour),
		recorder: metrics.NewInMemory(),
	}
	for _, u := range users {
		f.store.users[u.ID] = u
	}
	mw := Auth(AuthConfig{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:        f.store,
		Cache:        f.cache,
		Sessions:     f.sessions,
		Metrics:      f.recorder,
		UserCacheTTL: time.Minute,
		Now:          func() time.Time { return testNow },
	})
	f.handler = mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.seen = auth.AuthFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return f
}

func (f *authFixture) cookieRequest(t *testing.T, userID int64) *http.Request {
	t.Helper()
	value, err := f.sessions.Issue(userID, time.Now())
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: value})
	return req
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if len(body.Errors) != 1 {
		t.Fatalf("errors = %v, want one entry", body.Errors)
	}
	return body.Errors[0].Detail
}

func TestAuth_Cookie(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, &model.User{ID: 7, Login: "ferris", IsAdmin: true})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, f.cookieRequest(t, 7))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.seen == nil || f.seen.UserID != 7 || f.seen.Method != model.AuthMethodCookie || !f.seen.IsAdmin {
		t.Errorf("auth context = %+v", f.seen)
	}
	if _, ok := f.cache.users[7]; !ok {
		t.Error("resolved user should be cached")
	}
}

func TestAuth_CookieUsesCachedUser(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	f.cache.users[9] = &model.User{ID: 9, Login: "cached"}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, f.cookieRequest(t, 9))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.seen.Login != "cached" {
		t.Errorf("login = %q, want cached", f.seen.Login)
	}
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantReason string
	}{
		{"no credentials", func(r *http.Request) {}, "missing_credentials"},
		{"forged cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "not-a-jwt"})
		}, "invalid_session"},
		{"malformed token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer pk_live_nope")
		}, "invalid_token"},
		{"unknown token", func(r *http.Request) {
			r.Header.Set("Authorization", "cy_abcdef_0123456789abcdef0123456789abcdef")
		}, "invalid_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newAuthFixture(t)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", rec.Code)
			}
			if got := decodeDetail(t, rec); got != detailLoginRequired {
				t.Errorf("detail = %q", got)
			}
			if f.recorder.Snapshot().AuthRejected[tt.wantReason] != 1 {
				t.Errorf("rejections = %v, want %s", f.recorder.Snapshot().AuthRejected, tt.wantReason)
			}
		})
	}
}

func TestAuth_DeletedUser(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, f.cookieRequest(t, 404))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAuth_LockedAccount(t *testing.T) {
	t.Parallel()

	until := testNow.Add(24 * time.Hour)
	tests := []struct {
		name       string
		user       *model.User
		wantStatus int
		wantDetail string
	}{
		{
			name:       "locked until a date",
			user:       &model.User{ID: 1, Login: "a", LockReason: ptr("spam"), LockUntil: &until},
			wantStatus: http.StatusForbidden,
			wantDetail: "This account is locked until 2026-05-02T12:00:00Z. Reason: spam",
		},
		{
			name:       "locked indefinitely",
			user:       &model.User{ID: 1, Login: "a", LockReason: ptr("abuse")},
			wantStatus: http.StatusForbidden,
			wantDetail: "This account is locked until indefinitely. Reason: abuse",
		},
		{
			name:       "expired lock passes",
			user:       &model.User{ID: 1, Login: "a", LockReason: ptr("old"), LockUntil: ptr(testNow.Add(-time.Hour))},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newAuthFixture(t, tt.user)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, f.cookieRequest(t, 1))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantDetail != "" {
				if got := decodeDetail(t, rec); got != tt.wantDetail {
					t.Errorf("detail = %q, want %q", got, tt.wantDetail)
				}
			}
		})
	}
}

func TestAuth_APIToken(t *testing.T) {
	t.Parallel()

	generated, err := auth.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	f := newAuthFixture(t, &model.User{ID: 3, Login: "cargo"})
	f.store.tokens = []*model.APIToken{
		{ID: "tok-other", UserID: 99, TokenPrefix: generated.Prefix, TokenHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{ID: "tok-1", UserID: 3, TokenPrefix: generated.Prefix, TokenHash: generated.Hash},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+generated.Plaintext)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.seen.Method != model.AuthMethodToken || f.seen.TokenID != "tok-1" || f.seen.UserID != 3 {
		t.Errorf("auth context = %+v", f.seen)
	}
	if _, ok := f.cache.tokens[auth.QuickHash(generated.Plaintext)]; !ok {
		t.Error("verified token should be cached")
	}
}

func TestRequireCookie(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	tests := []struct {
		name       string
		authCtx    *model.AuthContext
		wantStatus int
		wantDetail string
	}{
		{"cookie passes", &model.AuthContext{UserID: 1, Method: model.AuthMethodCookie}, http.StatusOK, ""},
		{"token rejected", &model.AuthContext{UserID: 1, Method: model.AuthMethodToken}, http.StatusForbidden, detailCookieOnly},
		{"anonymous rejected", nil, http.StatusForbidden, detailLoginRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authCtx != nil {
				req = req.WithContext(auth.ContextWithAuth(req.Context(), tt.authCtx))
			}
			rec := httptest.NewRecorder()
			RequireCookie(ok).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantDetail != "" && !strings.Contains(rec.Body.String(), tt.wantDetail) {
				t.Errorf("body = %s, want %q", rec.Body.String(), tt.wantDetail)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	tests := []struct {
		name       string
		authCtx    *model.AuthContext
		wantStatus int
	}{
		{"admin passes", &model.AuthContext{UserID: 1, IsAdmin: true}, http.StatusOK},
		{"non-admin rejected", &model.AuthContext{UserID: 2}, http.StatusForbidden},
		{"anonymous rejected", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authCtx != nil {
				req = req.WithContext(auth.ContextWithAuth(req.Context(), tt.authCtx))
			}
			rec := httptest.NewRecorder()
			RequireAdmin(ok).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer cy_abc", "cy_abc"},
		{"cy_abc", "cy_abc"},
		{"  Bearer   cy_abc  ", "cy_abc"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := extractToken(req); got != tt.want {
			t.Errorf("extractToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
