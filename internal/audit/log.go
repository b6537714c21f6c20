// Package audit persists engine audit events and mirrors them to the log.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"landingbuilder.io/internal/auth"
	"landingbuilder.io/internal/ids"
	"landingbuilder.io/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// persistTimeout bounds the store write so a slow database never stalls the caller.
const persistTimeout = 2 * time.Second

// Recorder is an auth.AuditSink. Store failures are logged and counted, never returned.
type Recorder struct {
	store  auth.AuditStore
	logger *slog.Logger
	now    func() time.Time
}

var _ auth.AuditSink = (*Recorder)(nil)

// NewRecorder returns a recorder writing to store. A nil store only logs.
func NewRecorder(store auth.AuditStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = obs.Logger()
	}
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Record persists e and logs it.
func (r *Recorder) Record(ctx context.Context, e auth.AuditEntry) {
	if strings.TrimSpace(e.Action) == "" {
		r.logger.WarnContext(ctx, "audit event without action dropped")
		return
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	if e.PrincipalID == "" {
		if pid, ok := auth.PrincipalIDFromContext(ctx); ok {
			e.PrincipalID = pid
		}
	}

	attrs := []any{
		"type", "audit",
		"audit_id", e.ID,
		"action", e.Action,
		"tenant_id", e.TenantID,
		"principal_id", e.PrincipalID,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, "request_id", rid)
	}
	if len(e.Metadata) > 0 {
		attrs = append(attrs, "fields", e.Metadata)
	}

	if r.store != nil {
		// The triggering operation may already be cancelled; the audit row is still wanted.
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		err := r.store.InsertAudit(writeCtx, e)
		cancel()
		if err != nil {
			obs.RecordAuditFailure()
			r.logger.ErrorContext(ctx, "audit event not persisted", append(attrs, "error", err.Error())...)
			return
		}
	}
	r.logger.InfoContext(ctx, "audit event recorded", attrs...)
}
