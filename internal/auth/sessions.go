package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"landingbuilder.io/internal/obs"
)

const defaultRefreshTTL = 30 * 24 * time.Hour

// TokenPair is the credential bundle returned by issue and rotate.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"-"`
}

// IssueParams identifies who a session is for.
type IssueParams struct {
	PrincipalID string
	TenantID    string
	Email       string
	Role        Role
}

// Sessions manages the issued -> rotated* -> ended lifecycle of refresh sessions.
type Sessions struct {
	store         Store
	codec         *Codec
	members       *Memberships
	audit         AuditSink
	logger        *slog.Logger
	now           func() time.Time
	refreshTTL    time.Duration
	revokeOnReuse bool
}

// Issue opens a new session and signs its first access token.
func (s *Sessions) Issue(ctx context.Context, p IssueParams) (TokenPair, error) {
	if p.PrincipalID == "" || p.TenantID == "" {
		return TokenPair{}, fmt.Errorf("%w: principal and tenant are required", ErrInvalid)
	}
	if !p.Role.Valid() {
		return TokenPair{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, p.Role)
	}
	secret, err := newRefreshSecret()
	if err != nil {
		return TokenPair{}, infra("issue session", err)
	}
	hash, err := s.codec.HashSecret(secret)
	if err != nil {
		return TokenPair{}, infra("issue session", err)
	}
	now := s.now().UTC()
	session := Session{
		ID:          uuid.NewString(),
		PrincipalID: p.PrincipalID,
		TenantID:    p.TenantID,
		RefreshHash: hash,
		ExpiresAt:   now.Add(s.refreshTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	access, accessExp, err := s.codec.SignAccess(Claims{
		PrincipalID: p.PrincipalID,
		TenantID:    p.TenantID,
		Email:       p.Email,
		Role:        p.Role,
		SessionID:   session.ID,
	})
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return TokenPair{}, infra("create session", err)
	}
	s.audit.Record(ctx, AuditEntry{TenantID: p.TenantID, PrincipalID: p.PrincipalID, Action: ActionSessionStarted})
	obs.RecordOutcome("issue", "ok")
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     JoinRefreshToken(session.ID, secret),
		RefreshExpiresAt: session.ExpiresAt,
		SessionID:        session.ID,
	}, nil
}

var errInvalidRefresh = fmt.Errorf("%w: refresh token is invalid", ErrInvalid)

// Rotate exchanges a refresh token for a fresh pair. The presented secret is
// invalidated permanently and claims are rebuilt from the live membership.
func (s *Sessions) Rotate(ctx context.Context, refreshToken string) (TokenPair, Claims, error) {
	pair, claims, err := s.rotate(ctx, refreshToken)
	obs.RecordOutcome("rotate", string(outcome(err)))
	return pair, claims, err
}

func (s *Sessions) rotate(ctx context.Context, refreshToken string) (TokenPair, Claims, error) {
	sessionID, secret, err := SplitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, Claims{}, errInvalidRefresh
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return TokenPair{}, Claims{}, errInvalidRefresh
	}
	if err != nil {
		return TokenPair{}, Claims{}, infra("load session", err)
	}
	now := s.now().UTC()
	if session.Expired(now) {
		return TokenPair{}, Claims{}, errInvalidRefresh
	}
	if !s.codec.VerifySecretHash(secret, session.RefreshHash) {
		s.reuseDetected(ctx, session)
		return TokenPair{}, Claims{}, errInvalidRefresh
	}

	membership, ok, err := s.members.Resolve(ctx, session.PrincipalID, session.TenantID)
	if err != nil {
		return TokenPair{}, Claims{}, err
	}
	if !ok {
		return TokenPair{}, Claims{}, errInvalidRefresh
	}
	principal, err := s.store.GetPrincipal(ctx, session.PrincipalID)
	if errors.Is(err, ErrNotFound) {
		return TokenPair{}, Claims{}, errInvalidRefresh
	}
	if err != nil {
		return TokenPair{}, Claims{}, infra("load principal", err)
	}

	nextSecret, err := newRefreshSecret()
	if err != nil {
		return TokenPair{}, Claims{}, infra("rotate session", err)
	}
	nextHash, err := s.codec.HashSecret(nextSecret)
	if err != nil {
		return TokenPair{}, Claims{}, infra("rotate session", err)
	}
	expiresAt := now.Add(s.refreshTTL)
	claims := Claims{
		PrincipalID: membership.PrincipalID,
		TenantID:    membership.TenantID,
		Email:       principal.Email,
		Role:        membership.Role,
		SessionID:   session.ID,
	}
	access, accessExp, err := s.codec.SignAccess(claims)
	if err != nil {
		return TokenPair{}, Claims{}, err
	}
	switch err := s.store.SwapSessionSecret(ctx, session.ID, session.RefreshHash, nextHash, expiresAt, now); {
	case errors.Is(err, ErrNotFound):
		return TokenPair{}, Claims{}, errInvalidRefresh
	case errors.Is(err, ErrConflict):
		return TokenPair{}, Claims{}, fmt.Errorf("%w: session rotated concurrently", ErrConflict)
	case err != nil:
		return TokenPair{}, Claims{}, infra("swap session secret", err)
	}
	s.audit.Record(ctx, AuditEntry{TenantID: session.TenantID, PrincipalID: session.PrincipalID, Action: ActionSessionRotated})
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     JoinRefreshToken(session.ID, nextSecret),
		RefreshExpiresAt: expiresAt,
		SessionID:        session.ID,
	}, claims, nil
}

// reuseDetected handles a known session presented with a superseded secret.
func (s *Sessions) reuseDetected(ctx context.Context, session Session) {
	s.logger.WarnContext(ctx, "refresh token reuse detected",
		"session_id", session.ID, "principal_id", session.PrincipalID, "tenant_id", session.TenantID)
	if !s.revokeOnReuse {
		return
	}
	if _, err := s.store.DeleteSession(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.ErrorContext(ctx, "revoke reused session failed", "session_id", session.ID, "error", err)
		return
	}
	s.audit.Record(ctx, AuditEntry{
		TenantID: session.TenantID, PrincipalID: session.PrincipalID, Action: ActionSessionReuse,
		Metadata: map[string]any{"session_id": session.ID},
	})
}

// Revoke ends a session. Revoking an absent session is a no-op.
func (s *Sessions) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	removed, err := s.store.DeleteSession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return infra("delete session", err)
	}
	s.audit.Record(ctx, AuditEntry{TenantID: removed.TenantID, PrincipalID: removed.PrincipalID, Action: ActionSessionEnded})
	obs.RecordOutcome("revoke", "ok")
	return nil
}

func outcome(err error) Kind {
	if err == nil {
		return "ok"
	}
	return KindOf(err)
}
