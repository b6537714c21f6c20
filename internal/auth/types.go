package auth

import (
	"strings"
	"time"
)

// Principal is a durable identity keyed by a unique normalized email.
type Principal struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Tenant is an isolated account namespace.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultPlan is assigned to tenants created without an explicit plan.
const DefaultPlan = "free"

// Membership binds a principal to a tenant with a role. Unique per pair.
type Membership struct {
	PrincipalID string    `json:"principal_id"`
	TenantID    string    `json:"tenant_id"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// TenantMembership is a membership joined with its tenant.
type TenantMembership struct {
	Tenant   Tenant    `json:"tenant"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Member is a membership joined with its principal.
type Member struct {
	Principal Principal `json:"principal"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Session is one active login. RefreshHash is the only persisted form of the refresh secret.
type Session struct {
	ID          string
	PrincipalID string
	TenantID    string
	RefreshHash string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the session is unusable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TokenKind distinguishes one-time token flavours.
type TokenKind string

const (
	KindMagicLink TokenKind = "magic_link"
	KindInvite    TokenKind = "invite"
)

// Valid reports whether k is a known kind.
func (k TokenKind) Valid() bool {
	return k == KindMagicLink || k == KindInvite
}

// TokenStatus is the lifecycle state of a one-time token.
type TokenStatus string

const (
	StatusPending  TokenStatus = "pending"
	StatusConsumed TokenStatus = "consumed"
	StatusAccepted TokenStatus = "accepted"
	StatusRevoked  TokenStatus = "revoked"
	StatusExpired  TokenStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s TokenStatus) Terminal() bool {
	return s != StatusPending
}

// CanTransition reports whether s may move to next. Tokens only move forward out of pending.
func (s TokenStatus) CanTransition(next TokenStatus) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusConsumed, StatusAccepted, StatusRevoked, StatusExpired:
		return true
	default:
		return false
	}
}

// ConsumedStatus is the terminal status a successful consumption writes for kind.
func ConsumedStatus(kind TokenKind) TokenStatus {
	if kind == KindInvite {
		return StatusAccepted
	}
	return StatusConsumed
}

// OneTimeToken is a single-use credential known to the store only by its hash.
type OneTimeToken struct {
	ID        string    `json:"id"`
	Kind      TokenKind `json:"kind"`
	TokenHash string    `json:"-"`
	Email     string    `json:"email"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Role      Role      `json:"role,omitempty"`
	InviteID  string    `json:"invite_id,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`

	// AccountName is the requested name for a default tenant, magic links only.
	AccountName string `json:"-"`

	Status     TokenStatus `json:"status"`
	ExpiresAt  time.Time   `json:"expires_at"`
	CreatedAt  time.Time   `json:"created_at"`
	ConsumedAt *time.Time  `json:"consumed_at,omitempty"`
	RevokedAt  *time.Time  `json:"revoked_at,omitempty"`
}

// AuditEntry is one audit event.
type AuditEntry struct {
	ID          string
	TenantID    string
	PrincipalID string
	Action      string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Audit actions.
const (
	ActionSessionStarted     = "auth.session.started"
	ActionSessionRotated     = "auth.session.rotated"
	ActionSessionEnded       = "auth.session.ended"
	ActionSessionReuse       = "auth.session.reuse_detected"
	ActionMagicLinkRequested = "auth.magic_link.requested"
	ActionMagicLinkLogin     = "auth.magic_link.login"
	ActionExternalLogin      = "auth.google.login"
	ActionTenantCreated      = "account.created"
	ActionMemberAdded        = "account.member.added"
	ActionMemberUpgraded     = "account.member.role-upgrade"
	ActionMemberRoleChanged  = "account.member.role-changed"
	ActionMemberRemoved      = "account.member.removed"
	ActionInviteCreated      = "account.invite.created"
	ActionInviteRevoked      = "account.invite.revoked"
	ActionInviteAccepted     = "account.invite.accepted"
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DefaultTenantName derives a workspace name from the local part of email.
func DefaultTenantName(email string) string {
	local, _, _ := strings.Cut(NormalizeEmail(email), "@")
	if local == "" {
		local = "workspace"
	}
	return local + "'s workspace"
}
