package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is a tenant-scoped permission tier.
type Role string

const (
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// roleOrder lists roles from least to most privileged. Adding a tier only touches this slice.
var roleOrder = []Role{RoleEditor, RoleAdmin, RoleOwner}

func (r Role) weight() int {
	for i, candidate := range roleOrder {
		if candidate == r {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.weight() > 0 }

// Roles returns the hierarchy, least privileged first.
func Roles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

// ParseRole converts user input into a Role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalid, raw)
	}
	return r, nil
}

// CompareRoles returns -1, 0 or 1 as a is below, equal to or above b.
// Unknown roles sort below every known role.
func CompareRoles(a, b Role) int {
	wa, wb := a.weight(), b.weight()
	switch {
	case wa < wb:
		return -1
	case wa > wb:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r meets min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && CompareRoles(r, min) >= 0
}

// HasRequiredRole is true when current meets at least one of required.
// An empty list requires editor.
func HasRequiredRole(current Role, required ...Role) bool {
	if len(required) == 0 {
		required = []Role{RoleEditor}
	}
	for _, r := range required {
		if current.AtLeast(r) {
			return true
		}
	}
	return false
}

// CanAssign reports whether actor may grant target.
func CanAssign(actor, target Role) bool {
	return actor.AtLeast(target)
}

// Memberships resolves and provisions tenant memberships.
type Memberships struct {
	store MembershipStore
	audit AuditSink
	now   func() time.Time
}

func (m *Memberships) with(st MembershipStore, sink AuditSink) *Memberships {
	cp := *m
	cp.store = st
	cp.audit = sink
	return &cp
}

// Resolve returns the exact membership when tenantID is set, otherwise the
// principal's earliest membership. ok is false when nothing matches.
func (m *Memberships) Resolve(ctx context.Context, principalID, tenantID string) (Membership, bool, error) {
	if strings.TrimSpace(principalID) == "" {
		return Membership{}, false, fmt.Errorf("%w: principal id is required", ErrInvalid)
	}
	var (
		mem Membership
		err error
	)
	switch {
	case tenantID != "":
		mem, err = m.store.GetMembership(ctx, principalID, tenantID)
	default:
		mem, err = m.store.EarliestMembership(ctx, principalID)
	}
	if errors.Is(err, ErrNotFound) {
		return Membership{}, false, nil
	}
	if err != nil {
		return Membership{}, false, infra("resolve membership", err)
	}
	return mem, true, nil
}

type ensureAction int

const (
	ensureCreate ensureAction = iota
	ensureUpgrade
	ensureKeep
)

// ensureDecision is the provisioning table: absent creates, lower upgrades,
// equal or higher stays. Provisioning never demotes.
func ensureDecision(existing *Membership, requested Role) ensureAction {
	switch {
	case existing == nil:
		return ensureCreate
	case CompareRoles(existing.Role, requested) < 0:
		return ensureUpgrade
	default:
		return ensureKeep
	}
}

// Ensure provisions a membership with at least role.
func (m *Memberships) Ensure(ctx context.Context, principalID, tenantID string, role Role) (Membership, error) {
	if principalID == "" || tenantID == "" {
		return Membership{}, fmt.Errorf("%w: principal and tenant are required", ErrInvalid)
	}
	if !role.Valid() {
		return Membership{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	// A single retry absorbs a concurrent writer touching the same pair.
	for attempt := 0; ; attempt++ {
		mem, err := m.ensureOnce(ctx, principalID, tenantID, role)
		if errors.Is(err, errEnsureRaced) && attempt == 0 {
			continue
		}
		if errors.Is(err, errEnsureRaced) {
			return Membership{}, fmt.Errorf("%w: membership changed concurrently", ErrConflict)
		}
		return mem, err
	}
}

var errEnsureRaced = errors.New("ensure raced")

func (m *Memberships) ensureOnce(ctx context.Context, principalID, tenantID string, role Role) (Membership, error) {
	var existing *Membership
	current, err := m.store.GetMembership(ctx, principalID, tenantID)
	switch {
	case err == nil:
		existing = &current
	case !errors.Is(err, ErrNotFound):
		return Membership{}, infra("load membership", err)
	}

	switch ensureDecision(existing, role) {
	case ensureCreate:
		mem := Membership{PrincipalID: principalID, TenantID: tenantID, Role: role, CreatedAt: m.now().UTC()}
		if err := m.store.CreateMembership(ctx, mem); err != nil {
			if errors.Is(err, ErrConflict) {
				return Membership{}, errEnsureRaced
			}
			return Membership{}, infra("create membership", err)
		}
		m.audit.Record(ctx, AuditEntry{
			TenantID: tenantID, PrincipalID: principalID, Action: ActionMemberAdded,
			Metadata: map[string]any{"role": string(role)},
		})
		return mem, nil
	case ensureUpgrade:
		if err := m.store.UpdateMembershipRole(ctx, principalID, tenantID, existing.Role, role); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Membership{}, errEnsureRaced
			}
			return Membership{}, infra("upgrade membership", err)
		}
		m.audit.Record(ctx, AuditEntry{
			TenantID: tenantID, PrincipalID: principalID, Action: ActionMemberUpgraded,
			Metadata: map[string]any{"from": string(existing.Role), "to": string(role)},
		})
		upgraded := *existing
		upgraded.Role = role
		return upgraded, nil
	default:
		return *existing, nil
	}
}
