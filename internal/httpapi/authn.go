package httpapi

import (
	"net/http"

	"landingbuilder.io/internal/auth"
)

const authHeader = "Authorization"

// withAuth runs the request pipeline and stores the AuthContext for the handler.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		ac, err := a.svc.Authenticate(r.Context(), r.Header.Get(authHeader))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), ac)))
	})
}

// RequireRole rejects callers whose live role satisfies none of roles.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := auth.AuthFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if err := ac.Require(roles...); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="insufficient_scope"`)
				handleServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// currentAuth is only called behind withAuth.
func currentAuth(r *http.Request) auth.AuthContext {
	ac, _ := auth.AuthFromContext(r.Context())
	return ac
}
