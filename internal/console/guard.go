package console

import (
	"context"
	"net/http"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/registry"
)

type contextKey int

const operatorKey contextKey = 0

// operator is the authenticated admin behind a console request.
type operator struct {
	User       *model.User
	API        *registry.Session
	SessionKey string
}

func operatorFromContext(ctx context.Context) *operator {
	op, _ := ctx.Value(operatorKey).(*operator)
	return op
}

// stateKey derives the state key of a session cookie.
func stateKey(cookie string) string {
	return auth.QuickHash(cookie)
}

// requireAdmin resolves the operator through the registry and only lets
// admins through. Denied GET navigations are saved for /resume.
func (c *Console) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		from := r.URL.RequestURI()

		cookie, err := r.Cookie(auth.SessionCookieName)
		if err != nil || cookie.Value == "" {
			redirectToError(w, r, ErrorView{Title: titleLoginRequired, LoginNeeded: true, From: from})
			return
		}
		key := stateKey(cookie.Value)
		api := c.registry.As(cookie.Value)

		user, err := api.Me(ctx)
		switch {
		case registry.IsUnauthorized(err):
			c.saveTransition(r, key)
			redirectToError(w, r, ErrorView{Title: titleLoginRequired, LoginNeeded: true, From: from})
			return
		case err != nil:
			c.logger.WarnContext(ctx, "failed to resolve console session", "error", err)
			redirectToError(w, r, ErrorView{Title: titleSessionFailed, TryAgain: true, From: from})
			return
		case user == nil || !user.IsAdmin:
			c.saveTransition(r, key)
			redirectToError(w, r, ErrorView{Title: titleAdminRequired, LoginNeeded: true, From: from})
			return
		}

		op := &operator{User: user, API: api, SessionKey: key}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, operatorKey, op)))
	})
}

func (c *Console) saveTransition(r *http.Request, key string) {
	if r.Method != http.MethodGet {
		return
	}
	if err := c.state.SaveTransition(r.Context(), key, r.URL.RequestURI()); err != nil {
		c.logger.WarnContext(r.Context(), "failed to save transition", "error", err)
	}
}
