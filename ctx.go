package gatekeeper

import (
	"context"
)

var authCtxKey = &contextKey{"auth"}

type contextKey struct {
	name string
}

// WithAuthContext sets the AuthContext in the given context
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey, authCtx)
}

// AuthFromContext finds the AuthContext from the context.
func AuthFromContext(ctx context.Context) (*AuthContext, bool) {
	raw, ok := ctx.Value(authCtxKey).(*AuthContext)
	return raw, ok
}

// IdentityFromContext returns the resolved identity, Anonymous when the
// pipeline has not run.
func IdentityFromContext(ctx context.Context) Identity {
	if authCtx, ok := AuthFromContext(ctx); ok {
		return authCtx.Identity
	}
	return Anonymous{}
}

// Can is a convenience scope check directly from the standard context.
func Can(ctx context.Context, scope Scope) bool {
	return HasScope(IdentityFromContext(ctx), scope)
}
