package auth

import (
	"context"

	"github.com/cargoyard/cargoyard/internal/model"
)

// principalKey keys the authenticated principal of a request.
type principalKey struct{}

// ContextWithAuth attaches the authenticated principal to ctx.
func ContextWithAuth(ctx context.Context, principal *model.AuthContext) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// AuthFromContext returns the principal attached by ContextWithAuth, or nil
// for anonymous requests.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	principal, _ := ctx.Value(principalKey{}).(*model.AuthContext)
	return principal
}

// UserIDFromContext returns the authenticated user id, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	if principal := AuthFromContext(ctx); principal != nil {
		return principal.UserID
	}
	return 0
}

// IsAdminSession reports whether the request comes from an admin signed in
// with a browser session. API tokens never carry admin rights.
func IsAdminSession(ctx context.Context) bool {
	principal := AuthFromContext(ctx)
	return principal != nil && principal.IsAdmin && principal.Method == model.AuthMethodCookie
}
