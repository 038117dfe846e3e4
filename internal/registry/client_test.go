package registry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoyard/cargoyard/internal/auth"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Cookie string
	Body   string
}

func newTestServer(t *testing.T, status int, response string) (*Client, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Query: r.URL.RawQuery, Body: string(body)}
		if c, err := r.Cookie(auth.SessionCookieName); err == nil {
			rec.Cookie = c.Value
		}
		requests = append(requests, rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(srv.URL+"/", 5*time.Second, logger), &requests
}

func TestSession_AdminUser(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK, `{
		"id": 42, "login": "ghost", "kind": "user", "url": "https://github.com/ghost",
		"email": "ghost@example.com", "email_verified": true,
		"lock": {"reason": "spam", "until": "2030-01-01T00:00:00Z"}
	}`)

	user, err := client.As("session-value").AdminUser(context.Background(), "ghost")
	require.NoError(t, err)

	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "ghost", user.Login)
	require.NotNil(t, user.Lock)
	assert.Equal(t, "spam", user.Lock.Reason)
	assert.True(t, user.Lock.IsCurrentlyLocked(time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)))

	require.Len(t, *requests, 1)
	got := (*requests)[0]
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/v1/users/ghost/admin", got.Path)
	assert.Equal(t, "session-value", got.Cookie)
}

func TestSession_AdminUserEscapesID(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK, `{"id": 1}`)

	_, err := client.As("").AdminUser(context.Background(), "a/b")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/users/a%2Fb/admin", (*requests)[0].Path)
	assert.Empty(t, (*requests)[0].Cookie)
}

func TestSession_Errors(t *testing.T) {
	tests := []struct {
		name             string
		status           int
		body             string
		wantNotFound     bool
		wantUnauthorized bool
		wantDetails      []string
	}{
		{"not found", http.StatusNotFound, `{"errors":[{"detail":"Not Found"}]}`, true, false, []string{"Not Found"}},
		{"forbidden", http.StatusForbidden, `{"errors":[{"detail":"must be an admin to use this route"}]}`, false, true, []string{"must be an admin to use this route"}},
		{"server error without body", http.StatusInternalServerError, ``, false, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestServer(t, tt.status, tt.body)

			_, err := client.As("s").AdminUser(context.Background(), "ghost")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantDetails, apiErr.Details)
			assert.Equal(t, tt.wantNotFound, IsNotFound(err))
			assert.Equal(t, tt.wantUnauthorized, IsUnauthorized(err))
		})
	}
}

func TestSession_TransportError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient("http://127.0.0.1:1", time.Second, logger)

	_, err := client.As("s").Me(context.Background())
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestSession_Lock(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK, `{"id": 7, "login": "ghost", "lock": {"reason": "spam", "until": null}}`)

	until := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	user, err := client.As("s").Lock(context.Background(), "ghost", LockPayload{Reason: "spam", Until: &until})
	require.NoError(t, err)
	assert.True(t, user.Lock.IsIndefinite())

	got := (*requests)[0]
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/api/v1/users/ghost/lock", got.Path)
	assert.JSONEq(t, `{"reason":"spam","until":"2030-05-01T12:00:00Z"}`, got.Body)
}

func TestSession_LockIndefinitely(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK, `{"id": 7}`)

	_, err := client.As("s").Lock(context.Background(), "ghost", LockPayload{Reason: "spam"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"spam","until":null}`, (*requests)[0].Body)
}

func TestSession_Unlock(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK, `{"id": 7, "login": "ghost"}`)

	_, err := client.As("s").Unlock(context.Background(), "ghost")
	require.NoError(t, err)

	got := (*requests)[0]
	assert.Equal(t, http.MethodDelete, got.Method)
	assert.Equal(t, "/api/v1/users/ghost/lock", got.Path)
	assert.Empty(t, got.Body)
}

func TestSession_UpdateUser(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK, `{"ok":true}`)

	email := "new@example.com"
	require.NoError(t, client.As("s").UpdateUser(context.Background(), 7, UserUpdate{Email: &email}))

	disabled := false
	require.NoError(t, client.As("s").UpdateUser(context.Background(), 7, UserUpdate{PublishNotifications: &disabled}))

	require.Len(t, *requests, 2)
	assert.Equal(t, "/api/v1/users/7", (*requests)[0].Path)
	assert.JSONEq(t, `{"user":{"email":"new@example.com"}}`, (*requests)[0].Body)
	assert.JSONEq(t, `{"user":{"publish_notifications":false}}`, (*requests)[1].Body)
}

func TestSession_ResendAndStats(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK, `{"ok":true,"total_downloads":99}`)

	ok, err := client.As("s").ResendVerification(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok.OK)

	stats, err := client.As("s").Stats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(99), stats.TotalDownloads)

	assert.Equal(t, http.MethodPut, (*requests)[0].Method)
	assert.Equal(t, "/api/v1/users/7/resend", (*requests)[0].Path)
	assert.Equal(t, http.MethodGet, (*requests)[1].Method)
	assert.Equal(t, "/api/v1/users/7/stats", (*requests)[1].Path)
}

func TestSession_ListCrates(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK, `{"crates":[{"id":1,"name":"serde","yanked":false}],"meta":{"total":31}}`)

	page, err := client.As("s").ListCrates(context.Background(), CrateQuery{UserID: 7, IncludeYanked: true, Page: 2, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, page.Crates, 1)
	assert.Equal(t, "serde", page.Crates[0].Name)
	assert.Equal(t, int64(31), page.Meta.Total)

	assert.Equal(t, "include_yanked=yes&page=2&per_page=10&user_id=7", (*requests)[0].Query)
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Status: http.StatusBadRequest, Details: []string{"a", "b"}}
	assert.Equal(t, "registry: 400 a; b", err.Error())

	bare := &APIError{Status: http.StatusBadGateway}
	assert.Equal(t, "registry: 502 Bad Gateway", bare.Error())
}
