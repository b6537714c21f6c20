// Package memory implements auth.Store in process memory for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"landingbuilder.io/internal/auth"
)

type memberKey struct {
	principalID string
	tenantID    string
}

type state struct {
	principals map[string]auth.Principal
	byEmail    map[string]string
	tenants    map[string]auth.Tenant
	members    map[memberKey]auth.Membership
	sessions   map[string]auth.Session
	tokens     map[string]auth.OneTimeToken
	tokenHash  map[string]string
}

func newState() *state {
	return &state{
		principals: make(map[string]auth.Principal),
		byEmail:    make(map[string]string),
		tenants:    make(map[string]auth.Tenant),
		members:    make(map[memberKey]auth.Membership),
		sessions:   make(map[string]auth.Session),
		tokens:     make(map[string]auth.OneTimeToken),
		tokenHash:  make(map[string]string),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for k, v := range s.principals {
		cp.principals[k] = v
	}
	for k, v := range s.byEmail {
		cp.byEmail[k] = v
	}
	for k, v := range s.tenants {
		cp.tenants[k] = v
	}
	for k, v := range s.members {
		cp.members[k] = v
	}
	for k, v := range s.sessions {
		cp.sessions[k] = v
	}
	for k, v := range s.tokens {
		cp.tokens[k] = v
	}
	for k, v := range s.tokenHash {
		cp.tokenHash[k] = v
	}
	return cp
}

// Store is a mutex-guarded auth.Store. Audit rows live outside the
// transactional state so a sink can write while a transaction is open.
type Store struct {
	mu    sync.Mutex
	st    *state
	audit *auditLog
}

type auditLog struct {
	mu      sync.Mutex
	entries []auth.AuditEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), audit: &auditLog{}}
}

var _ auth.Store = (*Store)(nil)

// AuditEntries returns a copy of every persisted audit entry.
func (s *Store) AuditEntries() []auth.AuditEntry {
	s.audit.mu.Lock()
	defer s.audit.mu.Unlock()
	out := make([]auth.AuditEntry, len(s.audit.entries))
	copy(out, s.audit.entries)
	return out
}

func (s *Store) view() *txView {
	return &txView{st: s.st, audit: s.audit}
}

func (s *Store) locked(fn func(v *txView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.view())
}

// WithinTx runs fn on a snapshot that replaces the live state only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx auth.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := &txView{st: s.st.clone(), audit: s.audit}
	if err := fn(ctx, snapshot); err != nil {
		return err
	}
	s.st = snapshot.st
	return nil
}

func (s *Store) UpsertPrincipal(ctx context.Context, p auth.Principal) (out auth.Principal, err error) {
	err = s.locked(func(v *txView) error { out, err = v.UpsertPrincipal(ctx, p); return err })
	return out, err
}

func (s *Store) GetPrincipal(ctx context.Context, id string) (out auth.Principal, err error) {
	err = s.locked(func(v *txView) error { out, err = v.GetPrincipal(ctx, id); return err })
	return out, err
}

func (s *Store) CreateTenant(ctx context.Context, t auth.Tenant) error {
	return s.locked(func(v *txView) error { return v.CreateTenant(ctx, t) })
}

func (s *Store) GetTenant(ctx context.Context, id string) (out auth.Tenant, err error) {
	err = s.locked(func(v *txView) error { out, err = v.GetTenant(ctx, id); return err })
	return out, err
}

func (s *Store) GetMembership(ctx context.Context, principalID, tenantID string) (out auth.Membership, err error) {
	err = s.locked(func(v *txView) error { out, err = v.GetMembership(ctx, principalID, tenantID); return err })
	return out, err
}

func (s *Store) EarliestMembership(ctx context.Context, principalID string) (out auth.Membership, err error) {
	err = s.locked(func(v *txView) error { out, err = v.EarliestMembership(ctx, principalID); return err })
	return out, err
}

func (s *Store) CreateMembership(ctx context.Context, m auth.Membership) error {
	return s.locked(func(v *txView) error { return v.CreateMembership(ctx, m) })
}

func (s *Store) UpdateMembershipRole(ctx context.Context, principalID, tenantID string, from, to auth.Role) error {
	return s.locked(func(v *txView) error { return v.UpdateMembershipRole(ctx, principalID, tenantID, from, to) })
}

func (s *Store) DeleteMembership(ctx context.Context, principalID, tenantID string) error {
	return s.locked(func(v *txView) error { return v.DeleteMembership(ctx, principalID, tenantID) })
}

func (s *Store) ListMemberships(ctx context.Context, principalID string) (out []auth.TenantMembership, err error) {
	err = s.locked(func(v *txView) error { out, err = v.ListMemberships(ctx, principalID); return err })
	return out, err
}

func (s *Store) ListMembers(ctx context.Context, tenantID string) (out []auth.Member, err error) {
	err = s.locked(func(v *txView) error { out, err = v.ListMembers(ctx, tenantID); return err })
	return out, err
}

func (s *Store) FindMemberByEmail(ctx context.Context, tenantID, email string) (out auth.Membership, err error) {
	err = s.locked(func(v *txView) error { out, err = v.FindMemberByEmail(ctx, tenantID, email); return err })
	return out, err
}

func (s *Store) CreateSession(ctx context.Context, sess auth.Session) error {
	return s.locked(func(v *txView) error { return v.CreateSession(ctx, sess) })
}

func (s *Store) GetSession(ctx context.Context, id string) (out auth.Session, err error) {
	err = s.locked(func(v *txView) error { out, err = v.GetSession(ctx, id); return err })
	return out, err
}

func (s *Store) SwapSessionSecret(ctx context.Context, id, oldHash, newHash string, expiresAt, now time.Time) error {
	return s.locked(func(v *txView) error { return v.SwapSessionSecret(ctx, id, oldHash, newHash, expiresAt, now) })
}

func (s *Store) DeleteSession(ctx context.Context, id string) (out auth.Session, err error) {
	err = s.locked(func(v *txView) error { out, err = v.DeleteSession(ctx, id); return err })
	return out, err
}

func (s *Store) CreateOneTimeToken(ctx context.Context, t auth.OneTimeToken) error {
	return s.locked(func(v *txView) error { return v.CreateOneTimeToken(ctx, t) })
}

func (s *Store) GetOneTimeTokenByHash(ctx context.Context, kind auth.TokenKind, hash string) (out auth.OneTimeToken, err error) {
	err = s.locked(func(v *txView) error { out, err = v.GetOneTimeTokenByHash(ctx, kind, hash); return err })
	return out, err
}

func (s *Store) ConsumeOneTimeToken(ctx context.Context, p auth.ConsumeParams) (out auth.OneTimeToken, err error) {
	err = s.locked(func(v *txView) error { out, err = v.ConsumeOneTimeToken(ctx, p); return err })
	return out, err
}

func (s *Store) ExpireOneTimeToken(ctx context.Context, id string, now time.Time) error {
	return s.locked(func(v *txView) error { return v.ExpireOneTimeToken(ctx, id, now) })
}

func (s *Store) RevokeOneTimeToken(ctx context.Context, kind auth.TokenKind, tenantID, id string, now time.Time) (out auth.OneTimeToken, err error) {
	err = s.locked(func(v *txView) error { out, err = v.RevokeOneTimeToken(ctx, kind, tenantID, id, now); return err })
	return out, err
}

func (s *Store) ListPendingInvites(ctx context.Context, tenantID string, now time.Time) (out []auth.OneTimeToken, err error) {
	err = s.locked(func(v *txView) error { out, err = v.ListPendingInvites(ctx, tenantID, now); return err })
	return out, err
}

func (s *Store) InsertAudit(ctx context.Context, e auth.AuditEntry) error {
	return s.view().InsertAudit(ctx, e)
}

// txView operates on a state without locking. The owning Store holds the lock.
type txView struct {
	st    *state
	audit *auditLog
}

var _ auth.Store = (*txView)(nil)

func (v *txView) WithinTx(ctx context.Context, fn func(ctx context.Context, tx auth.Store) error) error {
	return fn(ctx, v)
}

func (v *txView) UpsertPrincipal(_ context.Context, p auth.Principal) (auth.Principal, error) {
	email := auth.NormalizeEmail(p.Email)
	if id, ok := v.st.byEmail[email]; ok {
		existing := v.st.principals[id]
		if p.Name != "" {
			existing.Name = p.Name
			v.st.principals[id] = existing
		}
		return existing, nil
	}
	p.Email = email
	v.st.principals[p.ID] = p
	v.st.byEmail[email] = p.ID
	return p, nil
}

func (v *txView) GetPrincipal(_ context.Context, id string) (auth.Principal, error) {
	p, ok := v.st.principals[id]
	if !ok {
		return auth.Principal{}, auth.ErrNotFound
	}
	return p, nil
}

func (v *txView) CreateTenant(_ context.Context, t auth.Tenant) error {
	if _, ok := v.st.tenants[t.ID]; ok {
		return auth.ErrConflict
	}
	v.st.tenants[t.ID] = t
	return nil
}

func (v *txView) GetTenant(_ context.Context, id string) (auth.Tenant, error) {
	t, ok := v.st.tenants[id]
	if !ok {
		return auth.Tenant{}, auth.ErrNotFound
	}
	return t, nil
}

func (v *txView) GetMembership(_ context.Context, principalID, tenantID string) (auth.Membership, error) {
	m, ok := v.st.members[memberKey{principalID, tenantID}]
	if !ok {
		return auth.Membership{}, auth.ErrNotFound
	}
	return m, nil
}

func (v *txView) EarliestMembership(ctx context.Context, principalID string) (auth.Membership, error) {
	list, _ := v.ListMemberships(ctx, principalID)
	if len(list) == 0 {
		return auth.Membership{}, auth.ErrNotFound
	}
	return v.st.members[memberKey{principalID, list[0].Tenant.ID}], nil
}

func (v *txView) CreateMembership(_ context.Context, m auth.Membership) error {
	key := memberKey{m.PrincipalID, m.TenantID}
	if _, ok := v.st.members[key]; ok {
		return auth.ErrConflict
	}
	if _, ok := v.st.principals[m.PrincipalID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := v.st.tenants[m.TenantID]; !ok {
		return auth.ErrNotFound
	}
	v.st.members[key] = m
	return nil
}

func (v *txView) UpdateMembershipRole(_ context.Context, principalID, tenantID string, from, to auth.Role) error {
	key := memberKey{principalID, tenantID}
	m, ok := v.st.members[key]
	if !ok || m.Role != from {
		return auth.ErrNotFound
	}
	m.Role = to
	v.st.members[key] = m
	return nil
}

func (v *txView) DeleteMembership(_ context.Context, principalID, tenantID string) error {
	key := memberKey{principalID, tenantID}
	if _, ok := v.st.members[key]; !ok {
		return auth.ErrNotFound
	}
	delete(v.st.members, key)
	return nil
}

func (v *txView) ListMemberships(_ context.Context, principalID string) ([]auth.TenantMembership, error) {
	var out []auth.TenantMembership
	for key, m := range v.st.members {
		if key.principalID != principalID {
			continue
		}
		out = append(out, auth.TenantMembership{Tenant: v.st.tenants[key.tenantID], Role: m.Role, JoinedAt: m.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tenant.CreatedAt.Equal(out[j].Tenant.CreatedAt) {
			return out[i].Tenant.ID < out[j].Tenant.ID
		}
		return out[i].Tenant.CreatedAt.Before(out[j].Tenant.CreatedAt)
	})
	return out, nil
}

func (v *txView) ListMembers(_ context.Context, tenantID string) ([]auth.Member, error) {
	var out []auth.Member
	for key, m := range v.st.members {
		if key.tenantID != tenantID {
			continue
		}
		out = append(out, auth.Member{Principal: v.st.principals[key.principalID], Role: m.Role, JoinedAt: m.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal.Email < out[j].Principal.Email })
	return out, nil
}

func (v *txView) FindMemberByEmail(ctx context.Context, tenantID, email string) (auth.Membership, error) {
	id, ok := v.st.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return auth.Membership{}, auth.ErrNotFound
	}
	return v.GetMembership(ctx, id, tenantID)
}

func (v *txView) CreateSession(_ context.Context, s auth.Session) error {
	if _, ok := v.st.sessions[s.ID]; ok {
		return auth.ErrConflict
	}
	v.st.sessions[s.ID] = s
	return nil
}

func (v *txView) GetSession(_ context.Context, id string) (auth.Session, error) {
	s, ok := v.st.sessions[id]
	if !ok {
		return auth.Session{}, auth.ErrNotFound
	}
	return s, nil
}

func (v *txView) SwapSessionSecret(_ context.Context, id, oldHash, newHash string, expiresAt, now time.Time) error {
	s, ok := v.st.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	if s.RefreshHash != oldHash {
		return auth.ErrConflict
	}
	s.RefreshHash = newHash
	s.ExpiresAt = expiresAt
	s.UpdatedAt = now
	v.st.sessions[id] = s
	return nil
}

func (v *txView) DeleteSession(_ context.Context, id string) (auth.Session, error) {
	s, ok := v.st.sessions[id]
	if !ok {
		return auth.Session{}, auth.ErrNotFound
	}
	delete(v.st.sessions, id)
	return s, nil
}

func hashKey(kind auth.TokenKind, hash string) string {
	return string(kind) + ":" + hash
}

func (v *txView) CreateOneTimeToken(_ context.Context, t auth.OneTimeToken) error {
	key := hashKey(t.Kind, t.TokenHash)
	if _, ok := v.st.tokenHash[key]; ok {
		return auth.ErrConflict
	}
	v.st.tokens[t.ID] = t
	v.st.tokenHash[key] = t.ID
	return nil
}

func (v *txView) GetOneTimeTokenByHash(_ context.Context, kind auth.TokenKind, hash string) (auth.OneTimeToken, error) {
	id, ok := v.st.tokenHash[hashKey(kind, hash)]
	if !ok {
		return auth.OneTimeToken{}, auth.ErrNotFound
	}
	return v.st.tokens[id], nil
}

func (v *txView) ConsumeOneTimeToken(_ context.Context, p auth.ConsumeParams) (auth.OneTimeToken, error) {
	id := p.ID
	if p.TokenHash != "" {
		id = v.st.tokenHash[hashKey(p.Kind, p.TokenHash)]
	}
	t, ok := v.st.tokens[id]
	if !ok || t.Kind != p.Kind || !p.Now.Before(t.ExpiresAt) {
		return auth.OneTimeToken{}, auth.ErrNotFound
	}
	if p.Email != "" && p.Email != t.Email {
		return auth.OneTimeToken{}, auth.ErrNotFound
	}
	next := auth.ConsumedStatus(t.Kind)
	if !t.Status.CanTransition(next) {
		return auth.OneTimeToken{}, auth.ErrNotFound
	}
	now := p.Now
	t.Status = next
	t.ConsumedAt = &now
	v.st.tokens[id] = t
	return t, nil
}

func (v *txView) ExpireOneTimeToken(_ context.Context, id string, now time.Time) error {
	t, ok := v.st.tokens[id]
	if !ok || now.Before(t.ExpiresAt) || !t.Status.CanTransition(auth.StatusExpired) {
		return auth.ErrNotFound
	}
	t.Status = auth.StatusExpired
	v.st.tokens[id] = t
	return nil
}

func (v *txView) RevokeOneTimeToken(_ context.Context, kind auth.TokenKind, tenantID, id string, now time.Time) (auth.OneTimeToken, error) {
	t, ok := v.st.tokens[id]
	if !ok || t.Kind != kind || t.TenantID != tenantID || !t.Status.CanTransition(auth.StatusRevoked) {
		return auth.OneTimeToken{}, auth.ErrNotFound
	}
	t.Status = auth.StatusRevoked
	t.RevokedAt = &now
	v.st.tokens[id] = t
	return t, nil
}

func (v *txView) ListPendingInvites(_ context.Context, tenantID string, now time.Time) ([]auth.OneTimeToken, error) {
	var out []auth.OneTimeToken
	for _, t := range v.st.tokens {
		if t.Kind == auth.KindInvite && t.TenantID == tenantID && t.Status == auth.StatusPending && now.Before(t.ExpiresAt) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (v *txView) InsertAudit(_ context.Context, e auth.AuditEntry) error {
	v.audit.mu.Lock()
	defer v.audit.mu.Unlock()
	v.audit.entries = append(v.audit.entries, e)
	return nil
}
