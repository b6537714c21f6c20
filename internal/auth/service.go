package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"landingbuilder.io/internal/ids"
	"landingbuilder.io/internal/obs"
)

// Service wires the engine components together and runs the login and
// tenant administration flows on top of them.
type Service struct {
	store    Store
	codec    *Codec
	audit    AuditSink
	logger   *slog.Logger
	verifier IdentityVerifier
	now      func() time.Time

	refreshTTL    time.Duration
	magicLinkTTL  time.Duration
	inviteTTL     time.Duration
	revokeOnReuse bool

	sessions *Sessions
	tokens   *OneTimeTokens
	members  *Memberships
	pipeline *Pipeline
}

// ServiceOption customises Service.
type ServiceOption func(*Service) error

// WithClock overrides the time source.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn == nil {
			return errors.New("clock must not be nil")
		}
		s.now = fn
		return nil
	}
}

// WithRefreshTTL overrides the refresh session lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("refresh ttl must be positive")
		}
		s.refreshTTL = ttl
		return nil
	}
}

// WithMagicLinkTTL overrides the magic-link lifetime.
func WithMagicLinkTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("magic link ttl must be positive")
		}
		s.magicLinkTTL = ttl
		return nil
	}
}

// WithInviteTTL overrides the invite lifetime.
func WithInviteTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("invite ttl must be positive")
		}
		s.inviteTTL = ttl
		return nil
	}
}

// WithAuditSink sets the audit destination.
func WithAuditSink(sink AuditSink) ServiceOption {
	return func(s *Service) error {
		if sink != nil {
			s.audit = sink
		}
		return nil
	}
}

// WithLogger sets the logger used for security anomalies.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// WithIdentityVerifier enables third-party login. Without it that path reports ErrNotConfigured.
func WithIdentityVerifier(v IdentityVerifier) ServiceOption {
	return func(s *Service) error {
		s.verifier = v
		return nil
	}
}

// WithReuseRevocation controls whether a superseded refresh secret ends its session.
func WithReuseRevocation(enabled bool) ServiceOption {
	return func(s *Service) error {
		s.revokeOnReuse = enabled
		return nil
	}
}

// NewService constructs the engine.
func NewService(store Store, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if codec == nil {
		return nil, ErrSigning
	}
	s := &Service{
		store:         store,
		codec:         codec,
		audit:         nopAudit{},
		logger:        obs.Logger(),
		now:           time.Now,
		refreshTTL:    defaultRefreshTTL,
		magicLinkTTL:  defaultMagicLinkTTL,
		inviteTTL:     defaultInviteTTL,
		revokeOnReuse: true,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.members = &Memberships{store: store, audit: s.audit, now: s.now}
	s.tokens = &OneTimeTokens{store: store, now: s.now, magicLinkTTL: s.magicLinkTTL, inviteTTL: s.inviteTTL}
	s.sessions = &Sessions{
		store:         store,
		codec:         codec,
		members:       s.members,
		audit:         s.audit,
		logger:        s.logger,
		now:           s.now,
		refreshTTL:    s.refreshTTL,
		revokeOnReuse: s.revokeOnReuse,
	}
	s.pipeline = &Pipeline{codec: codec, store: store, members: s.members, logger: s.logger, now: s.now}
	return s, nil
}

// Sessions exposes the token lifecycle manager.
func (s *Service) Sessions() *Sessions { return s.sessions }

// Tokens exposes the one-time token manager.
func (s *Service) Tokens() *OneTimeTokens { return s.tokens }

// Memberships exposes the membership authority.
func (s *Service) Memberships() *Memberships { return s.members }

// Pipeline exposes the request guard.
func (s *Service) Pipeline() *Pipeline { return s.pipeline }

// Codec exposes the credential codec.
func (s *Service) Codec() *Codec { return s.codec }

// IdentityLoginEnabled reports whether a third-party verifier is configured.
func (s *Service) IdentityLoginEnabled() bool { return s.verifier != nil }

// Authenticate runs the request pipeline.
func (s *Service) Authenticate(ctx context.Context, authorization string) (AuthContext, error) {
	return s.pipeline.Authenticate(ctx, authorization)
}

// auditBuffer holds audit events until the surrounding transaction commits.
type auditBuffer struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (b *auditBuffer) Record(_ context.Context, e AuditEntry) {
	b.mu.Lock()
	b.entries = append(b.entries, e)
	b.mu.Unlock()
}

func (b *auditBuffer) flush(ctx context.Context, sink AuditSink) {
	b.mu.Lock()
	entries := b.entries
	b.entries = nil
	b.mu.Unlock()
	for _, e := range entries {
		sink.Record(ctx, e)
	}
}

type txScope struct {
	store   Store
	members *Memberships
	tokens  *OneTimeTokens
	audit   AuditSink
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx txScope) error) error {
	buf := &auditBuffer{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		return fn(ctx, txScope{
			store:   tx,
			members: s.members.with(tx, buf),
			tokens:  s.tokens.with(tx),
			audit:   buf,
		})
	})
	if err != nil {
		return infra("transaction", err)
	}
	buf.flush(ctx, s.audit)
	return nil
}

// LoginResult is returned by every successful login or refresh.
type LoginResult struct {
	Tokens      TokenPair          `json:"tokens"`
	Principal   Principal          `json:"user"`
	Tenant      Tenant             `json:"account"`
	Role        Role               `json:"role"`
	Memberships []TenantMembership `json:"accounts"`
}

// MagicLinkRequest asks for a magic link.
type MagicLinkRequest struct {
	Email       string
	AccountName string
	TenantID    string
	InviteToken string
}

// MagicLinkTicket is the raw magic link. Delivery is the caller's concern.
type MagicLinkTicket struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TenantID  string    `json:"account_id,omitempty"`
}

// RequestMagicLink mints a magic link for email. An invite token routes the link to the
// invite's tenant and role; an explicit tenant requires an existing membership.
func (s *Service) RequestMagicLink(ctx context.Context, req MagicLinkRequest) (MagicLinkTicket, error) {
	email := NormalizeEmail(req.Email)
	if email == "" {
		return MagicLinkTicket{}, fmt.Errorf("%w: email is required", ErrInvalid)
	}
	var invite *OneTimeToken
	if req.InviteToken != "" {
		inv, err := s.tokens.Inspect(ctx, KindInvite, req.InviteToken, email)
		if err != nil {
			return MagicLinkTicket{}, err
		}
		invite = &inv
	}
	principal, err := s.store.UpsertPrincipal(ctx, Principal{ID: ids.New(), Email: email, CreatedAt: s.now().UTC()})
	if err != nil {
		return MagicLinkTicket{}, infra("upsert principal", err)
	}

	params := CreateTokenParams{Kind: KindMagicLink, Email: email, CreatedBy: principal.ID}
	if req.TenantID == "" && invite == nil {
		params.AccountName = strings.TrimSpace(req.AccountName)
	}
	switch {
	case invite != nil:
		params.TenantID = invite.TenantID
		params.Role = invite.Role
		params.InviteID = invite.ID
	case req.TenantID != "":
		if _, ok, err := s.members.Resolve(ctx, principal.ID, req.TenantID); err != nil {
			return MagicLinkTicket{}, err
		} else if !ok {
			return MagicLinkTicket{}, fmt.Errorf("%w: not a member of the requested account", ErrForbidden)
		}
		params.TenantID = req.TenantID
	}
	issued, err := s.tokens.Create(ctx, params)
	if err != nil {
		return MagicLinkTicket{}, err
	}
	s.audit.Record(ctx, AuditEntry{TenantID: params.TenantID, PrincipalID: principal.ID, Action: ActionMagicLinkRequested})
	return MagicLinkTicket{Token: issued.Raw, ExpiresAt: issued.Token.ExpiresAt, TenantID: params.TenantID}, nil
}

// VerifyMagicLinkRequest redeems a magic link, optionally into a specific tenant.
type VerifyMagicLinkRequest struct {
	Token    string
	TenantID string
}

// VerifyMagicLink consumes the link and starts a session. Invite acceptance and
// membership provisioning commit atomically with the consumption.
func (s *Service) VerifyMagicLink(ctx context.Context, req VerifyMagicLinkRequest) (LoginResult, error) {
	var (
		principal  Principal
		membership Membership
		inviteID   string
	)
	err := s.inTx(ctx, func(ctx context.Context, tx txScope) error {
		link, err := tx.tokens.Consume(ctx, KindMagicLink, req.Token, "")
		if err != nil {
			return err
		}
		inviteID = link.InviteID
		principal, err = tx.store.UpsertPrincipal(ctx, Principal{ID: ids.New(), Email: link.Email, CreatedAt: s.now().UTC()})
		if err != nil {
			return infra("upsert principal", err)
		}
		if link.InviteID != "" {
			if err := s.acceptInvite(ctx, tx, principal, func(ctx context.Context) (OneTimeToken, error) {
				return tx.tokens.ConsumeByID(ctx, KindInvite, link.InviteID, link.Email)
			}); err != nil {
				return err
			}
		}
		requested := req.TenantID
		if requested == "" {
			requested = link.TenantID
		}
		membership, err = s.selectMembership(ctx, tx, principal, requested, link.AccountName)
		return err
	})
	if err != nil {
		s.settleExpired(ctx, KindMagicLink, req.Token, err)
		s.settleExpiredInvite(ctx, inviteID, err)
		return LoginResult{}, err
	}
	return s.startLogin(ctx, principal, membership, ActionMagicLinkLogin, nil)
}

// IdentityLogin is a third-party login attempt.
type IdentityLogin struct {
	Credential  string
	TenantID    string
	InviteToken string
}

// LoginWithIdentity verifies an external credential and starts a session.
func (s *Service) LoginWithIdentity(ctx context.Context, req IdentityLogin) (LoginResult, error) {
	if s.verifier == nil {
		return LoginResult{}, fmt.Errorf("%w: external identity provider", ErrNotConfigured)
	}
	if strings.TrimSpace(req.Credential) == "" {
		return LoginResult{}, fmt.Errorf("%w: credential is required", ErrInvalid)
	}
	ident, err := s.verifier.Verify(ctx, req.Credential)
	if err != nil {
		return LoginResult{}, infra("verify identity", err)
	}
	email := NormalizeEmail(ident.Email)
	if email == "" || ident.Subject == "" {
		return LoginResult{}, fmt.Errorf("%w: identity is missing email or subject", ErrInvalid)
	}

	var (
		principal  Principal
		membership Membership
	)
	err = s.inTx(ctx, func(ctx context.Context, tx txScope) error {
		var err error
		principal, err = tx.store.UpsertPrincipal(ctx, Principal{
			ID: ids.New(), Email: email, Name: strings.TrimSpace(ident.Name), CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return infra("upsert principal", err)
		}
		requested := req.TenantID
		if req.InviteToken != "" {
			var invite OneTimeToken
			if err := s.acceptInvite(ctx, tx, principal, func(ctx context.Context) (OneTimeToken, error) {
				var err error
				invite, err = tx.tokens.Consume(ctx, KindInvite, req.InviteToken, email)
				return invite, err
			}); err != nil {
				return err
			}
			requested = invite.TenantID
		}
		membership, err = s.selectMembership(ctx, tx, principal, requested, "")
		return err
	})
	if err != nil {
		s.settleExpired(ctx, KindInvite, req.InviteToken, err)
		return LoginResult{}, err
	}
	return s.startLogin(ctx, principal, membership, ActionExternalLogin, map[string]any{"external_subject": ident.Subject})
}

// settleExpired persists the expired status of a token whose failed consumption
// was rolled back with the rest of the login.
func (s *Service) settleExpired(ctx context.Context, kind TokenKind, raw string, cause error) {
	if raw == "" || !errors.Is(cause, errInvalidToken) {
		return
	}
	if err := s.tokens.expireLazily(ctx, kind, HashOneTime(raw), s.now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "mark token expired failed", "kind", string(kind), "error", err)
	}
}

// settleExpiredInvite is settleExpired for an invite referenced by id from a magic link.
func (s *Service) settleExpiredInvite(ctx context.Context, id string, cause error) {
	if id == "" || !errors.Is(cause, errInvalidToken) {
		return
	}
	if err := s.tokens.expireByID(ctx, id, s.now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "mark token expired failed", "kind", string(KindInvite), "error", err)
	}
}

// acceptInvite consumes an invite and provisions its membership in the caller's transaction.
func (s *Service) acceptInvite(ctx context.Context, tx txScope, principal Principal, consume func(context.Context) (OneTimeToken, error)) error {
	invite, err := consume(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.members.Ensure(ctx, principal.ID, invite.TenantID, invite.Role); err != nil {
		return err
	}
	tx.audit.Record(ctx, AuditEntry{
		TenantID: invite.TenantID, PrincipalID: principal.ID, Action: ActionInviteAccepted,
		Metadata: map[string]any{"invite_id": invite.ID},
	})
	return nil
}

type loginRoute int

const (
	routeExisting loginRoute = iota
	routeDefaultTenant
	routeDenied
)

// chooseLoginRoute picks the membership a login lands in:
//
//	membership found                 -> use it
//	none, no tenant requested        -> provision the default tenant
//	none, explicit tenant requested  -> forbidden
func chooseLoginRoute(found bool, requested string) loginRoute {
	switch {
	case found:
		return routeExisting
	case requested == "":
		return routeDefaultTenant
	default:
		return routeDenied
	}
}

func (s *Service) selectMembership(ctx context.Context, tx txScope, principal Principal, requested, accountName string) (Membership, error) {
	mem, found, err := tx.members.Resolve(ctx, principal.ID, requested)
	if err != nil {
		return Membership{}, err
	}
	switch chooseLoginRoute(found, requested) {
	case routeExisting:
		return mem, nil
	case routeDefaultTenant:
		_, owner, err := s.createTenantWithOwner(ctx, tx, principal.ID, firstNonEmpty(accountName, DefaultTenantName(principal.Email)))
		return owner, err
	default:
		return Membership{}, fmt.Errorf("%w: not a member of the requested account", ErrForbidden)
	}
}

func (s *Service) createTenantWithOwner(ctx context.Context, tx txScope, principalID, name string) (Tenant, Membership, error) {
	now := s.now().UTC()
	tenant := Tenant{ID: ids.New(), Name: name, Plan: DefaultPlan, CreatedAt: now}
	if err := tx.store.CreateTenant(ctx, tenant); err != nil {
		return Tenant{}, Membership{}, infra("create tenant", err)
	}
	owner := Membership{PrincipalID: principalID, TenantID: tenant.ID, Role: RoleOwner, CreatedAt: now}
	if err := tx.store.CreateMembership(ctx, owner); err != nil {
		return Tenant{}, Membership{}, infra("create owner membership", err)
	}
	tx.audit.Record(ctx, AuditEntry{
		TenantID: tenant.ID, PrincipalID: principalID, Action: ActionTenantCreated,
		Metadata: map[string]any{"name": name},
	})
	return tenant, owner, nil
}

func (s *Service) startLogin(ctx context.Context, principal Principal, membership Membership, action string, meta map[string]any) (LoginResult, error) {
	pair, err := s.sessions.Issue(ctx, IssueParams{
		PrincipalID: principal.ID,
		TenantID:    membership.TenantID,
		Email:       principal.Email,
		Role:        membership.Role,
	})
	if err != nil {
		return LoginResult{}, err
	}
	s.audit.Record(ctx, AuditEntry{TenantID: membership.TenantID, PrincipalID: principal.ID, Action: action, Metadata: meta})
	return s.loginResult(ctx, pair, principal, membership)
}

func (s *Service) loginResult(ctx context.Context, pair TokenPair, principal Principal, membership Membership) (LoginResult, error) {
	tenant, err := s.store.GetTenant(ctx, membership.TenantID)
	if err != nil {
		return LoginResult{}, infra("load tenant", err)
	}
	all, err := s.store.ListMemberships(ctx, principal.ID)
	if err != nil {
		return LoginResult{}, infra("list memberships", err)
	}
	return LoginResult{Tokens: pair, Principal: principal, Tenant: tenant, Role: membership.Role, Memberships: all}, nil
}

// Refresh rotates a refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	pair, claims, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		return LoginResult{}, err
	}
	principal, err := s.store.GetPrincipal(ctx, claims.PrincipalID)
	if err != nil {
		return LoginResult{}, infra("load principal", err)
	}
	return s.loginResult(ctx, pair, principal, Membership{
		PrincipalID: claims.PrincipalID, TenantID: claims.TenantID, Role: claims.Role,
	})
}

// Logout ends the caller's session.
func (s *Service) Logout(ctx context.Context, ac AuthContext) error {
	return s.sessions.Revoke(ctx, ac.SessionID)
}

// Account is the caller's current tenant plus every tenant they belong to.
type Account struct {
	Tenant      Tenant             `json:"account"`
	Role        Role               `json:"role"`
	Memberships []TenantMembership `json:"memberships"`
}

// CurrentAccount describes the caller's tenant.
func (s *Service) CurrentAccount(ctx context.Context, ac AuthContext) (Account, error) {
	tenant, err := s.store.GetTenant(ctx, ac.TenantID)
	if errors.Is(err, ErrNotFound) {
		return Account{}, fmt.Errorf("%w: account: %w", ErrInvalid, ErrNotFound)
	}
	if err != nil {
		return Account{}, infra("load tenant", err)
	}
	all, err := s.store.ListMemberships(ctx, ac.PrincipalID)
	if err != nil {
		return Account{}, infra("list memberships", err)
	}
	return Account{Tenant: tenant, Role: ac.Role, Memberships: all}, nil
}

// CreateTenant creates a tenant owned by the caller.
func (s *Service) CreateTenant(ctx context.Context, ac AuthContext, name string) (Tenant, error) {
	name = strings.TrimSpace(name)
	if n := len([]rune(name)); n < 2 || n > 80 {
		return Tenant{}, fmt.Errorf("%w: account name must be 2-80 characters", ErrInvalid)
	}
	var tenant Tenant
	err := s.inTx(ctx, func(ctx context.Context, tx txScope) error {
		var err error
		tenant, _, err = s.createTenantWithOwner(ctx, tx, ac.PrincipalID, name)
		return err
	})
	return tenant, err
}

// ListMembers lists the caller's tenant members. Requires admin.
func (s *Service) ListMembers(ctx context.Context, ac AuthContext) ([]Member, error) {
	if err := ac.Require(RoleAdmin); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, ac.TenantID)
	if err != nil {
		return nil, infra("list members", err)
	}
	return members, nil
}

var errNoSuchMember = fmt.Errorf("%w: member: %w", ErrInvalid, ErrNotFound)

// ChangeMemberRole sets a member's role. The actor must be able to assign both the
// member's current role and the new one, and may never lower their own role.
func (s *Service) ChangeMemberRole(ctx context.Context, ac AuthContext, principalID string, role Role) (Membership, error) {
	if err := ac.Require(RoleAdmin); err != nil {
		return Membership{}, err
	}
	if !role.Valid() {
		return Membership{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	if principalID == ac.PrincipalID && CompareRoles(role, ac.Role) < 0 {
		return Membership{}, fmt.Errorf("%w: cannot demote yourself", ErrForbidden)
	}
	target, ok, err := s.members.Resolve(ctx, principalID, ac.TenantID)
	if err != nil {
		return Membership{}, err
	}
	if !ok {
		return Membership{}, errNoSuchMember
	}
	if !CanAssign(ac.Role, role) || !CanAssign(ac.Role, target.Role) {
		return Membership{}, fmt.Errorf("%w: insufficient role to assign %s", ErrForbidden, role)
	}
	if target.Role == role {
		return target, nil
	}
	if err := s.store.UpdateMembershipRole(ctx, principalID, ac.TenantID, target.Role, role); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Membership{}, fmt.Errorf("%w: membership changed concurrently", ErrConflict)
		}
		return Membership{}, infra("update membership", err)
	}
	s.audit.Record(ctx, AuditEntry{
		TenantID: ac.TenantID, PrincipalID: ac.PrincipalID, Action: ActionMemberRoleChanged,
		Metadata: map[string]any{"target_principal_id": principalID, "from": string(target.Role), "to": string(role)},
	})
	target.Role = role
	return target, nil
}

// RemoveMember deletes a membership. Sessions bound to it stop authenticating on their next request.
func (s *Service) RemoveMember(ctx context.Context, ac AuthContext, principalID string) error {
	if err := ac.Require(RoleAdmin); err != nil {
		return err
	}
	if principalID == ac.PrincipalID {
		return fmt.Errorf("%w: cannot remove yourself", ErrForbidden)
	}
	target, ok, err := s.members.Resolve(ctx, principalID, ac.TenantID)
	if err != nil {
		return err
	}
	if !ok {
		return errNoSuchMember
	}
	if !CanAssign(ac.Role, target.Role) {
		return fmt.Errorf("%w: insufficient role", ErrForbidden)
	}
	if err := s.store.DeleteMembership(ctx, principalID, ac.TenantID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errNoSuchMember
		}
		return infra("delete membership", err)
	}
	s.audit.Record(ctx, AuditEntry{
		TenantID: ac.TenantID, PrincipalID: ac.PrincipalID, Action: ActionMemberRemoved,
		Metadata: map[string]any{"target_principal_id": principalID},
	})
	return nil
}

// CreateInvite mints an invite into the caller's tenant. The role is checked
// before anything is persisted.
func (s *Service) CreateInvite(ctx context.Context, ac AuthContext, email string, role Role) (IssuedToken, error) {
	if err := ac.Require(RoleAdmin); err != nil {
		return IssuedToken{}, err
	}
	if role == "" {
		role = RoleEditor
	}
	if !role.Valid() {
		return IssuedToken{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	if !CanAssign(ac.Role, role) {
		return IssuedToken{}, fmt.Errorf("%w: insufficient role to assign %s", ErrForbidden, role)
	}
	email = NormalizeEmail(email)
	if email == "" {
		return IssuedToken{}, fmt.Errorf("%w: email is required", ErrInvalid)
	}
	_, err := s.store.FindMemberByEmail(ctx, ac.TenantID, email)
	switch {
	case err == nil:
		return IssuedToken{}, fmt.Errorf("%w: %s is already a member", ErrConflict, email)
	case !errors.Is(err, ErrNotFound):
		return IssuedToken{}, infra("find member", err)
	}
	issued, err := s.tokens.Create(ctx, CreateTokenParams{
		Kind: KindInvite, Email: email, TenantID: ac.TenantID, Role: role, CreatedBy: ac.PrincipalID,
	})
	if err != nil {
		return IssuedToken{}, err
	}
	s.audit.Record(ctx, AuditEntry{
		TenantID: ac.TenantID, PrincipalID: ac.PrincipalID, Action: ActionInviteCreated,
		Metadata: map[string]any{"invite_id": issued.Token.ID, "email": email, "role": string(role)},
	})
	return issued, nil
}

// ListInvites returns the caller's tenant pending invites. Requires admin.
func (s *Service) ListInvites(ctx context.Context, ac AuthContext) ([]OneTimeToken, error) {
	if err := ac.Require(RoleAdmin); err != nil {
		return nil, err
	}
	return s.tokens.ListPendingInvites(ctx, ac.TenantID)
}

// RevokeInvite cancels a pending invite of the caller's tenant.
func (s *Service) RevokeInvite(ctx context.Context, ac AuthContext, inviteID string) (OneTimeToken, error) {
	if err := ac.Require(RoleAdmin); err != nil {
		return OneTimeToken{}, err
	}
	invite, err := s.tokens.Revoke(ctx, KindInvite, ac.TenantID, inviteID)
	if err != nil {
		return OneTimeToken{}, err
	}
	s.audit.Record(ctx, AuditEntry{
		TenantID: ac.TenantID, PrincipalID: ac.PrincipalID, Action: ActionInviteRevoked,
		Metadata: map[string]any{"invite_id": invite.ID},
	})
	return invite, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
