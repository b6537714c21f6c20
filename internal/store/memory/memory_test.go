package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landingbuilder.io/internal/auth"
	"landingbuilder.io/internal/store/memory"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, st *memory.Store) (auth.Principal, auth.Tenant) {
	t.Helper()
	ctx := context.Background()
	p, err := st.UpsertPrincipal(ctx, auth.Principal{ID: "p-1", Email: "Ana@Example.com", CreatedAt: t0})
	require.NoError(t, err)
	tenant := auth.Tenant{ID: "t-1", Name: "Studio", Plan: auth.DefaultPlan, CreatedAt: t0}
	require.NoError(t, st.CreateTenant(ctx, tenant))
	return p, tenant
}

func TestUpsertPrincipalIsKeyedByEmail(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	first, _ := seed(t, st)
	assert.Equal(t, "ana@example.com", first.Email)

	again, err := st.UpsertPrincipal(ctx, auth.Principal{ID: "p-2", Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", again.ID)
	assert.Equal(t, "Ana", again.Name)

	_, err = st.GetPrincipal(ctx, "p-2")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestMembershipConstraints(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	p, tenant := seed(t, st)

	m := auth.Membership{PrincipalID: p.ID, TenantID: tenant.ID, Role: auth.RoleEditor, CreatedAt: t0}
	require.NoError(t, st.CreateMembership(ctx, m))
	assert.ErrorIs(t, st.CreateMembership(ctx, m), auth.ErrConflict)
	assert.ErrorIs(t, st.CreateMembership(ctx, auth.Membership{PrincipalID: "ghost", TenantID: tenant.ID, Role: auth.RoleEditor}), auth.ErrNotFound)

	// conditional on the role still being what the caller saw
	assert.ErrorIs(t, st.UpdateMembershipRole(ctx, p.ID, tenant.ID, auth.RoleAdmin, auth.RoleOwner), auth.ErrNotFound)
	require.NoError(t, st.UpdateMembershipRole(ctx, p.ID, tenant.ID, auth.RoleEditor, auth.RoleAdmin))

	got, err := st.FindMemberByEmail(ctx, tenant.ID, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, got.Role)

	require.NoError(t, st.DeleteMembership(ctx, p.ID, tenant.ID))
	assert.ErrorIs(t, st.DeleteMembership(ctx, p.ID, tenant.ID), auth.ErrNotFound)
}

func TestSwapSessionSecretOutcomes(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, auth.Session{
		ID: "s-1", PrincipalID: "p-1", TenantID: "t-1", RefreshHash: "h1", ExpiresAt: t0.Add(time.Hour), CreatedAt: t0,
	}))

	require.NoError(t, st.SwapSessionSecret(ctx, "s-1", "h1", "h2", t0.Add(2*time.Hour), t0))
	assert.ErrorIs(t, st.SwapSessionSecret(ctx, "s-1", "h1", "h3", t0.Add(2*time.Hour), t0), auth.ErrConflict)
	assert.ErrorIs(t, st.SwapSessionSecret(ctx, "missing", "h1", "h3", t0, t0), auth.ErrNotFound)

	s, err := st.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "h2", s.RefreshHash)
	assert.Equal(t, t0.Add(2*time.Hour), s.ExpiresAt)

	gone, err := st.DeleteSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", gone.ID)
	_, err = st.DeleteSession(ctx, "s-1")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestConsumeOneTimeTokenConditions(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	tok := auth.OneTimeToken{
		ID: "i-1", Kind: auth.KindInvite, TokenHash: "hash", Email: "bob@example.com",
		TenantID: "t-1", Role: auth.RoleEditor, Status: auth.StatusPending,
		ExpiresAt: t0.Add(time.Hour), CreatedAt: t0,
	}
	require.NoError(t, st.CreateOneTimeToken(ctx, tok))
	assert.ErrorIs(t, st.CreateOneTimeToken(ctx, tok), auth.ErrConflict)

	miss := []auth.ConsumeParams{
		{Kind: auth.KindMagicLink, TokenHash: "hash", Now: t0},
		{Kind: auth.KindInvite, TokenHash: "hash", Email: "eve@example.com", Now: t0},
		{Kind: auth.KindInvite, TokenHash: "hash", Now: t0.Add(time.Hour)},
		{Kind: auth.KindInvite, TokenHash: "other", Now: t0},
	}
	for _, p := range miss {
		_, err := st.ConsumeOneTimeToken(ctx, p)
		assert.ErrorIs(t, err, auth.ErrNotFound, "%+v", p)
	}

	got, err := st.ConsumeOneTimeToken(ctx, auth.ConsumeParams{Kind: auth.KindInvite, ID: "i-1", Email: "bob@example.com", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, auth.StatusAccepted, got.Status)
	require.NotNil(t, got.ConsumedAt)

	_, err = st.ConsumeOneTimeToken(ctx, auth.ConsumeParams{Kind: auth.KindInvite, TokenHash: "hash", Now: t0})
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = st.RevokeOneTimeToken(ctx, auth.KindInvite, "t-1", "i-1", t0)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestListPendingInvitesNewestFirst(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.CreateOneTimeToken(ctx, auth.OneTimeToken{
			ID: id, Kind: auth.KindInvite, TokenHash: "h-" + id, Email: id + "@example.com",
			TenantID: "t-1", Role: auth.RoleEditor, Status: auth.StatusPending,
			ExpiresAt: t0.Add(time.Hour), CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	_, err := st.RevokeOneTimeToken(ctx, auth.KindInvite, "t-1", "b", t0)
	require.NoError(t, err)

	list, err := st.ListPendingInvites(ctx, "t-1", t0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[1].ID)

	list, err = st.ListPendingInvites(ctx, "t-1", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithinTx(ctx, func(ctx context.Context, tx auth.Store) error {
		require.NoError(t, tx.CreateTenant(ctx, auth.Tenant{ID: "t-1", Name: "Gone", CreatedAt: t0}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = st.GetTenant(ctx, "t-1")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx auth.Store) error {
		return tx.CreateTenant(ctx, auth.Tenant{ID: "t-1", Name: "Kept", CreatedAt: t0})
	}))
	got, err := st.GetTenant(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "Kept", got.Name)
}

func TestAuditEntriesSurviveRollback(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_ = st.WithinTx(ctx, func(ctx context.Context, tx auth.Store) error {
		require.NoError(t, tx.InsertAudit(ctx, auth.AuditEntry{ID: "a-1", Action: "auth.session.started", CreatedAt: t0}))
		return errors.New("rollback")
	})
	entries := st.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "auth.session.started", entries[0].Action)
}
