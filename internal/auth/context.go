package auth

import "context"

type authContextKey struct{}
type tokenContextKey struct{}

// ContextWithAuth attaches the authenticated request state to the context.
func ContextWithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, &ac)
}

// AuthFromContext extracts the authenticated request state from the context.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	if ctx == nil {
		return AuthContext{}, false
	}
	v, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok || v == nil {
		return AuthContext{}, false
	}
	return *v, true
}

// PrincipalIDFromContext returns the authenticated principal id, if any.
func PrincipalIDFromContext(ctx context.Context) (string, bool) {
	ac, ok := AuthFromContext(ctx)
	if !ok || ac.PrincipalID == "" {
		return "", false
	}
	return ac.PrincipalID, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
