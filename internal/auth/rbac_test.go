package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleOrderIsTotal(t *testing.T) {
	roles := Roles()
	require.Equal(t, []Role{RoleEditor, RoleAdmin, RoleOwner}, roles)
	for i, a := range roles {
		for j, b := range roles {
			want := 0
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			assert.Equal(t, want, CompareRoles(a, b), "%s vs %s", a, b)
		}
	}
	assert.Equal(t, -1, CompareRoles("intern", RoleEditor))
}

func TestCanAssignMatchesWeights(t *testing.T) {
	for _, actor := range Roles() {
		for _, target := range Roles() {
			assert.Equal(t, actor.weight() >= target.weight(), CanAssign(actor, target), "%s -> %s", actor, target)
		}
	}
	assert.False(t, CanAssign("root", RoleEditor))
	assert.False(t, CanAssign(RoleOwner, "root"))
}

func TestHasRequiredRoleIsOrAndMonotonic(t *testing.T) {
	assert.True(t, HasRequiredRole(RoleAdmin, RoleOwner, RoleAdmin))
	assert.False(t, HasRequiredRole(RoleEditor, RoleOwner, RoleAdmin))
	assert.True(t, HasRequiredRole(RoleEditor))
	assert.False(t, HasRequiredRole("guest"))

	sets := [][]Role{{RoleEditor}, {RoleAdmin}, {RoleOwner}, {RoleOwner, RoleAdmin}, {RoleEditor, RoleOwner}}
	for _, required := range sets {
		seen := false
		for _, current := range Roles() {
			got := HasRequiredRole(current, required...)
			if seen {
				assert.True(t, got, "monotonicity broken at %s for %v", current, required)
			}
			seen = seen || got
		}
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	_, err = ParseRole("root")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEnsureDecisionTable(t *testing.T) {
	editor := &Membership{Role: RoleEditor}
	owner := &Membership{Role: RoleOwner}
	assert.Equal(t, ensureCreate, ensureDecision(nil, RoleAdmin))
	assert.Equal(t, ensureUpgrade, ensureDecision(editor, RoleAdmin))
	assert.Equal(t, ensureKeep, ensureDecision(editor, RoleEditor))
	assert.Equal(t, ensureKeep, ensureDecision(owner, RoleEditor))
}

func TestLoginRouteTable(t *testing.T) {
	assert.Equal(t, routeExisting, chooseLoginRoute(true, ""))
	assert.Equal(t, routeExisting, chooseLoginRoute(true, "t-1"))
	assert.Equal(t, routeDefaultTenant, chooseLoginRoute(false, ""))
	assert.Equal(t, routeDenied, chooseLoginRoute(false, "t-1"))
}

func TestTokenStatusMovesForwardOnly(t *testing.T) {
	for _, next := range []TokenStatus{StatusConsumed, StatusAccepted, StatusRevoked, StatusExpired} {
		assert.True(t, StatusPending.CanTransition(next))
		for _, back := range []TokenStatus{StatusPending, StatusConsumed, StatusAccepted, StatusRevoked, StatusExpired} {
			assert.False(t, next.CanTransition(back), "%s -> %s", next, back)
		}
	}
	assert.False(t, StatusPending.CanTransition(StatusPending))
	assert.Equal(t, StatusAccepted, ConsumedStatus(KindInvite))
	assert.Equal(t, StatusConsumed, ConsumedStatus(KindMagicLink))
}

func TestDefaultTenantName(t *testing.T) {
	assert.Equal(t, "alice's workspace", DefaultTenantName(" Alice@Example.com "))
	assert.Equal(t, "workspace's workspace", DefaultTenantName("@example.com"))
}
