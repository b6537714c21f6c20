package auth

import (
	"context"
	"time"
)

// PrincipalStore persists identities.
type PrincipalStore interface {
	// UpsertPrincipal creates the principal for email or returns the existing one.
	// A non-empty name replaces the stored display name.
	UpsertPrincipal(ctx context.Context, p Principal) (Principal, error)
	GetPrincipal(ctx context.Context, id string) (Principal, error)
}

// TenantStore persists tenants.
type TenantStore interface {
	CreateTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, id string) (Tenant, error)
}

// MembershipStore persists (principal, tenant) role bindings.
type MembershipStore interface {
	GetMembership(ctx context.Context, principalID, tenantID string) (Membership, error)
	// EarliestMembership returns the membership whose tenant was created first.
	EarliestMembership(ctx context.Context, principalID string) (Membership, error)
	// CreateMembership fails with ErrConflict when the pair already exists.
	CreateMembership(ctx context.Context, m Membership) error
	// UpdateMembershipRole changes the role only while it still equals from; ErrNotFound otherwise.
	UpdateMembershipRole(ctx context.Context, principalID, tenantID string, from, to Role) error
	DeleteMembership(ctx context.Context, principalID, tenantID string) error
	ListMemberships(ctx context.Context, principalID string) ([]TenantMembership, error)
	ListMembers(ctx context.Context, tenantID string) ([]Member, error)
	FindMemberByEmail(ctx context.Context, tenantID, email string) (Membership, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	// SwapSessionSecret replaces hash and expiry only if the stored hash still equals oldHash.
	// Returns ErrNotFound for a missing session and ErrConflict when the hash has moved on.
	SwapSessionSecret(ctx context.Context, id, oldHash, newHash string, expiresAt, now time.Time) error
	// DeleteSession removes the session and returns what was removed.
	DeleteSession(ctx context.Context, id string) (Session, error)
}

// ConsumeParams selects a pending one-time token for atomic consumption.
// Exactly one of TokenHash and ID is set. A non-empty Email must equal the bound email.
type ConsumeParams struct {
	Kind      TokenKind
	TokenHash string
	ID        string
	Email     string
	Now       time.Time
}

// OneTimeTokenStore persists magic-link and invite tokens.
type OneTimeTokenStore interface {
	CreateOneTimeToken(ctx context.Context, t OneTimeToken) error
	GetOneTimeTokenByHash(ctx context.Context, kind TokenKind, hash string) (OneTimeToken, error)
	// ConsumeOneTimeToken marks a pending, unexpired, matching token with the kind's
	// consumed status in a single conditional write. ErrNotFound when nothing matched.
	ConsumeOneTimeToken(ctx context.Context, p ConsumeParams) (OneTimeToken, error)
	// ExpireOneTimeToken moves a pending token past its expiry to expired.
	ExpireOneTimeToken(ctx context.Context, id string, now time.Time) error
	// RevokeOneTimeToken moves a pending token of tenantID to revoked. ErrNotFound when nothing matched.
	RevokeOneTimeToken(ctx context.Context, kind TokenKind, tenantID, id string, now time.Time) (OneTimeToken, error)
	// ListPendingInvites returns unexpired pending invites of a tenant, newest first.
	ListPendingInvites(ctx context.Context, tenantID string, now time.Time) ([]OneTimeToken, error)
}

// AuditStore persists audit entries.
type AuditStore interface {
	InsertAudit(ctx context.Context, e AuditEntry) error
}

// Store is the persistence contract of the engine.
type Store interface {
	PrincipalStore
	TenantStore
	MembershipStore
	SessionStore
	OneTimeTokenStore
	AuditStore
	// WithinTx runs fn against a transactional view. fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// AuditSink receives audit events. Implementations must not fail the caller.
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, AuditEntry) {}
