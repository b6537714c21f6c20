package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"landingbuilder.io/internal/auth"
)

func TestRequireRoleAllowsHigherRole(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req = req.WithContext(auth.ContextWithAuth(req.Context(), auth.AuthContext{PrincipalID: "p-1", Role: auth.RoleOwner}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireRoleRejectsLowerRole(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req = req.WithContext(auth.ContextWithAuth(req.Context(), auth.AuthContext{PrincipalID: "p-1", Role: auth.RoleEditor}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestRequireRoleRejectsMissingAuth(t *testing.T) {
	handler := RequireRole(auth.RoleEditor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestStatusForTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: x", auth.ErrUnauthenticated), http.StatusUnauthorized},
		{fmt.Errorf("%w: x", auth.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: x", auth.ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("%w: member: %w", auth.ErrInvalid, auth.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: x", auth.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: x", auth.ErrNotConfigured), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: x", auth.ErrInfrastructure), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if code, _ := statusFor(tc.err); code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, code)
		}
	}
}

func TestInfrastructureErrorsAreNotLeaked(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handleServiceError(rr, req, fmt.Errorf("%w: load session: dial tcp 10.0.0.5:5432", auth.ErrInfrastructure))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "internal error") || strings.Contains(body, "10.0.0.5") {
		t.Fatalf("unexpected body: %s", body)
	}
}
