package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"landingbuilder.io/internal/audit"
	"landingbuilder.io/internal/auth"
	"landingbuilder.io/internal/obs"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// decodeValid decodes the body into dst and runs its ozzo rules.
// It writes the 400 itself and reports whether the handler may continue.
func decodeValid(w http.ResponseWriter, r *http.Request, dst validation.Validatable) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	if err := dst.Validate(); err != nil {
		var fields validation.Errors
		if errors.As(err, &fields) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "validation failed",
				"fields":     fields,
				"request_id": audit.RequestIDFromContext(r.Context()),
			})
			return false
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// statusFor maps an engine error onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	if errors.Is(err, auth.ErrNotFound) {
		return http.StatusNotFound, "not_found"
	}
	switch auth.KindOf(err) {
	case auth.KindUnauthenticated:
		return http.StatusUnauthorized, string(auth.KindUnauthenticated)
	case auth.KindForbidden:
		return http.StatusForbidden, string(auth.KindForbidden)
	case auth.KindInvalid:
		return http.StatusBadRequest, string(auth.KindInvalid)
	case auth.KindConflict:
		return http.StatusConflict, string(auth.KindConflict)
	case auth.KindNotConfigured:
		return http.StatusServiceUnavailable, string(auth.KindNotConfigured)
	default:
		return http.StatusInternalServerError, string(auth.KindInfrastructure)
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	msg := strings.TrimPrefix(err.Error(), "auth: ")
	if code == http.StatusInternalServerError {
		obs.Logger().ErrorContext(r.Context(), "request failed",
			"request_id", audit.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
			"retryable", auth.Retryable(err),
		)
		msg = "internal error"
	}
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	payload := map[string]any{
		"error": msg,
		"code":  kind,
	}
	if code == http.StatusInternalServerError {
		payload["retryable"] = auth.Retryable(err)
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
