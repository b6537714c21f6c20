package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"landingbuilder.io/internal/obs"
)

// AuthContext is the authorization state attached to an authenticated request.
// Role comes from the live membership, never from token claims.
type AuthContext struct {
	PrincipalID string `json:"principal_id"`
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	SessionID   string `json:"session_id"`
}

// Require fails with ErrForbidden unless the context holds one of roles.
func (a AuthContext) Require(roles ...Role) error {
	if !HasRequiredRole(a.Role, roles...) {
		return fmt.Errorf("%w: insufficient role", ErrForbidden)
	}
	return nil
}

// Pipeline authenticates bearer credentials per request.
type Pipeline struct {
	codec   *Codec
	store   Store
	members *Memberships
	logger  *slog.Logger
	now     func() time.Time
}

// ExtractBearer returns the token of an "Authorization: Bearer <token>" header.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: malformed authorization header", ErrUnauthenticated)
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", fmt.Errorf("%w: malformed authorization header", ErrUnauthenticated)
	}
	return token, nil
}

// Authenticate runs the request guard over an Authorization header value.
func (p *Pipeline) Authenticate(ctx context.Context, authorization string) (AuthContext, error) {
	ac, err := p.authenticate(ctx, authorization)
	obs.RecordOutcome("authenticate", string(outcome(err)))
	return ac, err
}

func (p *Pipeline) authenticate(ctx context.Context, authorization string) (AuthContext, error) {
	raw, err := ExtractBearer(authorization)
	if err != nil {
		return AuthContext{}, err
	}
	claims, err := p.codec.VerifyAccess(raw)
	if err != nil {
		return AuthContext{}, err
	}
	session, err := p.store.GetSession(ctx, claims.SessionID)
	if errors.Is(err, ErrNotFound) {
		return AuthContext{}, fmt.Errorf("%w: session not found", ErrUnauthenticated)
	}
	if err != nil {
		return AuthContext{}, infra("load session", err)
	}
	if session.Expired(p.now().UTC()) {
		return AuthContext{}, fmt.Errorf("%w: session expired", ErrUnauthenticated)
	}
	if session.PrincipalID != claims.PrincipalID || session.TenantID != claims.TenantID {
		p.logger.WarnContext(ctx, "token claims mismatch",
			"session_id", session.ID,
			"token_principal", claims.PrincipalID,
			"session_principal", session.PrincipalID,
			"token_tenant", claims.TenantID,
			"session_tenant", session.TenantID,
		)
		return AuthContext{}, fmt.Errorf("%w: session does not match token", ErrUnauthenticated)
	}
	membership, ok, err := p.members.Resolve(ctx, claims.PrincipalID, claims.TenantID)
	if err != nil {
		return AuthContext{}, err
	}
	if !ok {
		return AuthContext{}, fmt.Errorf("%w: membership revoked", ErrForbidden)
	}
	return AuthContext{
		PrincipalID: membership.PrincipalID,
		TenantID:    membership.TenantID,
		Email:       claims.Email,
		Role:        membership.Role,
		SessionID:   session.ID,
	}, nil
}
