package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"landingbuilder.io/internal/ids"
	"landingbuilder.io/internal/obs"
)

const (
	defaultMagicLinkTTL = 15 * time.Minute
	defaultInviteTTL    = 7 * 24 * time.Hour
)

// CreateTokenParams describes a one-time token to mint.
type CreateTokenParams struct {
	Kind      TokenKind
	Email     string
	TenantID  string
	Role      Role
	InviteID  string
	CreatedBy string
	// AccountName names the default tenant a magic link may provision.
	AccountName string
	// TTL overrides the kind's default lifetime when positive.
	TTL time.Duration
}

// IssuedToken carries the raw token. The raw value is never stored.
type IssuedToken struct {
	Raw   string
	Token OneTimeToken
}

// OneTimeTokens mints and consumes single-use magic-link and invite tokens.
type OneTimeTokens struct {
	store        OneTimeTokenStore
	now          func() time.Time
	magicLinkTTL time.Duration
	inviteTTL    time.Duration
}

func (m *OneTimeTokens) with(st OneTimeTokenStore) *OneTimeTokens {
	cp := *m
	cp.store = st
	return &cp
}

func (m *OneTimeTokens) ttl(kind TokenKind) time.Duration {
	if kind == KindInvite {
		return m.inviteTTL
	}
	return m.magicLinkTTL
}

var errInvalidToken = fmt.Errorf("%w: token is invalid or expired", ErrInvalid)

// Create mints a token. Invites must bind a tenant and a role.
func (m *OneTimeTokens) Create(ctx context.Context, p CreateTokenParams) (IssuedToken, error) {
	if !p.Kind.Valid() {
		return IssuedToken{}, fmt.Errorf("%w: unknown token kind %q", ErrInvalid, p.Kind)
	}
	email := NormalizeEmail(p.Email)
	if email == "" {
		return IssuedToken{}, fmt.Errorf("%w: email is required", ErrInvalid)
	}
	if p.Role != "" && !p.Role.Valid() {
		return IssuedToken{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, p.Role)
	}
	if p.Kind == KindInvite && (p.TenantID == "" || p.Role == "") {
		return IssuedToken{}, fmt.Errorf("%w: invite requires tenant and role", ErrInvalid)
	}
	raw, err := newOneTimeToken()
	if err != nil {
		return IssuedToken{}, infra("create token", err)
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = m.ttl(p.Kind)
	}
	now := m.now().UTC()
	token := OneTimeToken{
		ID:          ids.New(),
		Kind:        p.Kind,
		TokenHash:   HashOneTime(raw),
		Email:       email,
		TenantID:    p.TenantID,
		Role:        p.Role,
		InviteID:    p.InviteID,
		CreatedBy:   p.CreatedBy,
		AccountName: p.AccountName,
		Status:      StatusPending,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := m.store.CreateOneTimeToken(ctx, token); err != nil {
		return IssuedToken{}, infra("store token", err)
	}
	return IssuedToken{Raw: raw, Token: token}, nil
}

// Consume atomically moves a pending token to its terminal consumed status.
// presentedEmail, when set, must equal the bound email.
func (m *OneTimeTokens) Consume(ctx context.Context, kind TokenKind, raw, presentedEmail string) (OneTimeToken, error) {
	tok, err := m.consume(ctx, ConsumeParams{Kind: kind, TokenHash: HashOneTime(raw), Email: NormalizeEmail(presentedEmail)}, raw == "")
	obs.RecordOutcome("consume_"+string(kind), string(outcome(err)))
	return tok, err
}

// ConsumeByID consumes a token referenced by id, e.g. an invite carried by a magic link.
func (m *OneTimeTokens) ConsumeByID(ctx context.Context, kind TokenKind, id, presentedEmail string) (OneTimeToken, error) {
	return m.consume(ctx, ConsumeParams{Kind: kind, ID: id, Email: NormalizeEmail(presentedEmail)}, id == "")
}

func (m *OneTimeTokens) consume(ctx context.Context, p ConsumeParams, empty bool) (OneTimeToken, error) {
	if empty || !p.Kind.Valid() {
		return OneTimeToken{}, errInvalidToken
	}
	p.Now = m.now().UTC()
	tok, err := m.store.ConsumeOneTimeToken(ctx, p)
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return OneTimeToken{}, infra("consume token", err)
	}
	if p.TokenHash != "" {
		err = m.expireLazily(ctx, p.Kind, p.TokenHash, p.Now)
	} else {
		err = m.expireByID(ctx, p.ID, p.Now)
	}
	if err != nil {
		return OneTimeToken{}, err
	}
	return OneTimeToken{}, errInvalidToken
}

// Inspect validates a token without consuming it. Expired tokens are marked expired.
func (m *OneTimeTokens) Inspect(ctx context.Context, kind TokenKind, raw, presentedEmail string) (OneTimeToken, error) {
	if raw == "" || !kind.Valid() {
		return OneTimeToken{}, errInvalidToken
	}
	hash := HashOneTime(raw)
	tok, err := m.store.GetOneTimeTokenByHash(ctx, kind, hash)
	if errors.Is(err, ErrNotFound) {
		return OneTimeToken{}, errInvalidToken
	}
	if err != nil {
		return OneTimeToken{}, infra("load token", err)
	}
	now := m.now().UTC()
	if tok.Status != StatusPending {
		return OneTimeToken{}, errInvalidToken
	}
	if !now.Before(tok.ExpiresAt) {
		if err := m.expireLazily(ctx, kind, hash, now); err != nil {
			return OneTimeToken{}, err
		}
		return OneTimeToken{}, errInvalidToken
	}
	if email := NormalizeEmail(presentedEmail); email != "" && email != tok.Email {
		return OneTimeToken{}, errInvalidToken
	}
	return tok, nil
}

func (m *OneTimeTokens) expireLazily(ctx context.Context, kind TokenKind, hash string, now time.Time) error {
	tok, err := m.store.GetOneTimeTokenByHash(ctx, kind, hash)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return infra("load token", err)
	}
	if tok.Status != StatusPending || now.Before(tok.ExpiresAt) {
		return nil
	}
	if err := m.store.ExpireOneTimeToken(ctx, tok.ID, now); err != nil && !errors.Is(err, ErrNotFound) {
		return infra("expire token", err)
	}
	return nil
}

// expireByID is expireLazily for callers that hold a token id, not a raw value.
// The store only moves a pending token whose expiry has passed.
func (m *OneTimeTokens) expireByID(ctx context.Context, id string, now time.Time) error {
	if err := m.store.ExpireOneTimeToken(ctx, id, now); err != nil && !errors.Is(err, ErrNotFound) {
		return infra("expire token", err)
	}
	return nil
}

// Revoke cancels a pending token owned by tenantID.
func (m *OneTimeTokens) Revoke(ctx context.Context, kind TokenKind, tenantID, id string) (OneTimeToken, error) {
	if tenantID == "" || id == "" {
		return OneTimeToken{}, fmt.Errorf("%w: tenant and token id are required", ErrInvalid)
	}
	tok, err := m.store.RevokeOneTimeToken(ctx, kind, tenantID, id, m.now().UTC())
	if errors.Is(err, ErrNotFound) {
		return OneTimeToken{}, fmt.Errorf("%w: pending %s %s: %w", ErrInvalid, kind, id, ErrNotFound)
	}
	if err != nil {
		return OneTimeToken{}, infra("revoke token", err)
	}
	return tok, nil
}

// ListPendingInvites returns live invites of a tenant, newest first.
func (m *OneTimeTokens) ListPendingInvites(ctx context.Context, tenantID string) ([]OneTimeToken, error) {
	out, err := m.store.ListPendingInvites(ctx, tenantID, m.now().UTC())
	if err != nil {
		return nil, infra("list invites", err)
	}
	return out, nil
}
