package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/cache"
	"github.com/cargoyard/cargoyard/internal/metrics"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/repository"
)

// DefaultTokenMinDuration is the minimum time spent verifying an API token,
// so that a bad prefix and a bad secret take the same time.
const DefaultTokenMinDuration = 200 * time.Millisecond

const (
	detailLoginRequired = "must be logged in to perform that action"
	detailAdminRequired = "must be an admin to use this route"
	detailCookieOnly    = "this action can only be performed with a browser session"
)

// UserStore is the persistence the auth middleware reads from.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetAPITokensByPrefix(ctx context.Context, prefix string) ([]*model.APIToken, error)
	UpdateAPITokenLastUsed(ctx context.Context, id string) error
}

// AuthCache caches resolved users and verified tokens.
type AuthCache interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	SetUser(ctx context.Context, user *model.User, ttl time.Duration) error
	GetTokenAuth(ctx context.Context, tokenHash string) (*cache.TokenAuth, error)
	SetTokenAuth(ctx context.Context, tokenHash string, auth *cache.TokenAuth) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Store    UserStore
	Cache    AuthCache
	Sessions *auth.SessionManager
	Metrics  metrics.Recorder

	// UserCacheTTL is how long a resolved session user is cached.
	UserCacheTTL time.Duration
	// TokenMinDuration pads API token verification. Zero disables padding.
	TokenMinDuration time.Duration
	// Now overrides the clock used for lock checks.
	Now func() time.Time
}

type authFailure struct {
	status int
	reason string
	detail string
}

func (f *authFailure) Error() string { return f.reason }

var (
	errMissingCredentials = &authFailure{http.StatusForbidden, "missing_credentials", detailLoginRequired}
	errBadSession         = &authFailure{http.StatusForbidden, "invalid_session", detailLoginRequired}
	errBadToken           = &authFailure{http.StatusForbidden, "invalid_token", detailLoginRequired}
)

// Auth returns a middleware that authenticates the request by session cookie
// or API token and rejects locked accounts.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			attrs := []any{
				slog.String("ip", r.RemoteAddr),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(ctx)),
			}

			authCtx, user, err := cfg.authenticate(r)
			if err != nil {
				var failure *authFailure
				if !errors.As(err, &failure) {
					cfg.Logger.Error("authentication error", append(attrs, slog.String("error", err.Error()))...)
					WriteError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				cfg.Metrics.IncAuthRejected(failure.reason)
				cfg.Logger.Warn("authentication failed", append(attrs, slog.String("reason", failure.reason))...)
				WriteError(w, failure.status, failure.detail)
				return
			}

			if user.IsLocked(cfg.Now()) {
				cfg.Metrics.IncAuthRejected("account_locked")
				cfg.Logger.Warn("authentication failed",
					append(attrs, slog.String("reason", "account_locked"), slog.Int64("user_id", user.ID))...)
				WriteError(w, http.StatusForbidden, user.LockedMessage())
				return
			}

			cfg.Logger.Debug("authentication successful",
				append(attrs,
					slog.Int64("user_id", authCtx.UserID),
					slog.String("method", string(authCtx.Method)),
				)...)

			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(ctx, authCtx)))
		})
	}
}

func (cfg AuthConfig) authenticate(r *http.Request) (*model.AuthContext, *model.User, error) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		userID, err := cfg.Sessions.Verify(cookie.Value)
		if err != nil {
			return nil, nil, errBadSession
		}
		user, err := cfg.loadUser(r.Context(), userID)
		if err != nil {
			return nil, nil, err
		}
		return newAuthContext(user, model.AuthMethodCookie, ""), user, nil
	}

	token := extractToken(r)
	if token == "" {
		return nil, nil, errMissingCredentials
	}
	return cfg.authenticateToken(r.Context(), token)
}

func (cfg AuthConfig) authenticateToken(ctx context.Context, token string) (*model.AuthContext, *model.User, error) {
	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed < cfg.TokenMinDuration {
			time.Sleep(cfg.TokenMinDuration - elapsed)
		}
	}()

	prefix, err := auth.ParseTokenPrefix(token)
	if err != nil {
		return nil, nil, errBadToken
	}

	cacheKey := auth.QuickHash(token)
	cached, _ := cfg.Cache.GetTokenAuth(ctx, cacheKey)
	if cached == nil {
		candidates, err := cfg.Store.GetAPITokensByPrefix(ctx, prefix)
		if err != nil {
			return nil, nil, err
		}

		// Prefixes may collide, so every candidate is verified.
		var matched *model.APIToken
		for _, candidate := range candidates {
			ok, err := auth.VerifyToken(token, candidate.TokenHash)
			if err == nil && ok {
				matched = candidate
				break
			}
		}
		if matched == nil {
			return nil, nil, errBadToken
		}

		cached = &cache.TokenAuth{TokenID: matched.ID, UserID: matched.UserID}
		_ = cfg.Cache.SetTokenAuth(ctx, cacheKey, cached)

		tokenID := matched.ID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = cfg.Store.UpdateAPITokenLastUsed(ctx, tokenID)
		}()
	}

	user, err := cfg.loadUser(ctx, cached.UserID)
	if err != nil {
		return nil, nil, err
	}
	return newAuthContext(user, model.AuthMethodToken, cached.TokenID), user, nil
}

func (cfg AuthConfig) loadUser(ctx context.Context, userID int64) (*model.User, error) {
	if user, err := cfg.Cache.GetUser(ctx, userID); err == nil {
		return user, nil
	}

	user, err := cfg.Store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errBadSession
		}
		return nil, err
	}

	if cfg.UserCacheTTL > 0 {
		_ = cfg.Cache.SetUser(ctx, user, cfg.UserCacheTTL)
	}
	return user, nil
}

func newAuthContext(user *model.User, method model.AuthMethod, tokenID string) *model.AuthContext {
	return &model.AuthContext{
		UserID:  user.ID,
		Login:   user.Login,
		IsAdmin: user.IsAdmin,
		Method:  method,
		TokenID: tokenID,
	}
}

// extractToken reads an API token from "Authorization: Bearer <token>" or a
// bare Authorization value, the way cargo sends it.
func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return header
}

// RequireCookie rejects requests not authenticated with a session cookie.
// Must be applied after Auth.
func RequireCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.AuthFromContext(r.Context())
		if authCtx == nil {
			WriteError(w, http.StatusForbidden, detailLoginRequired)
			return
		}
		if authCtx.Method != model.AuthMethodCookie {
			WriteError(w, http.StatusForbidden, detailCookieOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from non-admin users. Must be applied after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.AuthFromContext(r.Context())
		if authCtx == nil {
			WriteError(w, http.StatusForbidden, detailLoginRequired)
			return
		}
		if !authCtx.IsAdmin {
			WriteError(w, http.StatusForbidden, detailAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
