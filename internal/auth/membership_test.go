package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landingbuilder.io/internal/auth"
)

func TestEnsureOnlyEverUpgrades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.login("owner@example.com", auth.MagicLinkRequest{})
	bob := h.login("bob@example.com", auth.MagicLinkRequest{})
	tenantID := owner.Tenant.ID
	members := h.svc.Memberships()

	m, err := members.Ensure(ctx, bob.Principal.ID, tenantID, auth.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEditor, m.Role)

	m, err = members.Ensure(ctx, bob.Principal.ID, tenantID, auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, m.Role)

	m, err = members.Ensure(ctx, bob.Principal.ID, tenantID, auth.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, m.Role, "provisioning must not demote")

	stored, ok, err := members.Resolve(ctx, bob.Principal.ID, tenantID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, stored.Role)

	actions := h.audit.actions()
	assert.Contains(t, actions, auth.ActionMemberAdded)
	assert.Contains(t, actions, auth.ActionMemberUpgraded)
}

func TestEnsureValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Memberships().Ensure(context.Background(), "p", "t", "root")
	assert.ErrorIs(t, err, auth.ErrInvalid)
	_, err = h.svc.Memberships().Ensure(context.Background(), "", "t", auth.RoleEditor)
	assert.ErrorIs(t, err, auth.ErrInvalid)
}

func TestResolveFallsBackToEarliestMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.login("alice@example.com", auth.MagicLinkRequest{AccountName: "First"})
	ac := h.mustAuth(res)
	h.clock.Advance(time.Minute)
	second, err := h.svc.CreateTenant(ctx, ac, "Second")
	require.NoError(t, err)

	m, ok, err := h.svc.Memberships().Resolve(ctx, res.Principal.ID, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Tenant.ID, m.TenantID)

	m, ok, err = h.svc.Memberships().Resolve(ctx, res.Principal.ID, second.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, auth.RoleOwner, m.Role)

	_, ok, err = h.svc.Memberships().Resolve(ctx, res.Principal.ID, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = h.svc.Memberships().Resolve(ctx, "nobody", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
